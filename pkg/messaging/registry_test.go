package messaging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeSubscription{subject: "a"}, &fakeSubscription{subject: "b"}

	ha := r.Register(a)
	hb := r.Register(b)
	assert.NotEqual(t, ha.ID(), hb.ID())
	assert.Equal(t, 2, r.Len())
	assert.ElementsMatch(t, []Subscription{a, b}, r.Subscriptions())

	got, ok := r.Lookup(ha.ID())
	require.True(t, ok)
	assert.Equal(t, Subscription(a), got)

	assert.True(t, r.Unregister(ha))
	assert.False(t, r.Unregister(ha))
	_, ok = ha.Subscription()
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_foreignHandle(t *testing.T) {
	r1, r2 := NewRegistry(), NewRegistry()
	h := r1.Register(&fakeSubscription{})

	assert.False(t, r2.Unregister(h))
	assert.Equal(t, 1, r1.Len())
}

func TestSubscriptionHandle_zero(t *testing.T) {
	var h SubscriptionHandle
	_, ok := h.Subscription()
	assert.False(t, ok)
}

func TestRegistry_concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Register(&fakeSubscription{})
			_, _ = h.Subscription()
			r.Unregister(h)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
