package messaging

import (
	"sync"
)

// Registry tracks live subscriptions by id so messages can reach their
// subscription without holding on to it.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: map[uint64]Subscription{}}
}

// SubscriptionHandle is a non owning reference to a registered subscription.
// The zero value refers to nothing.
type SubscriptionHandle struct {
	id       uint64
	registry *Registry
}

func (h SubscriptionHandle) ID() uint64 { return h.id }

// Subscription resolves the handle. It fails once the subscription was removed
// from its registry.
func (h SubscriptionHandle) Subscription() (Subscription, bool) {
	if h.registry == nil {
		return nil, false
	}
	return h.registry.Lookup(h.id)
}

func (r *Registry) Register(sub Subscription) SubscriptionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.subs[r.nextID] = sub
	return SubscriptionHandle{id: r.nextID, registry: r}
}

func (r *Registry) Lookup(id uint64) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	return sub, ok
}

// Unregister removes the subscription behind h. It reports false when h was
// not registered here.
func (r *Registry) Unregister(h SubscriptionHandle) bool {
	if h.registry != r {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[h.id]; !ok {
		return false
	}
	delete(r.subs, h.id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Subscriptions returns a snapshot of the live subscriptions.
func (r *Registry) Subscriptions() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		list = append(list, s)
	}
	return list
}
