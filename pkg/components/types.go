package components

import (
	"strings"
	"time"
)

type ComponentCategory string

const (
	PubsubComponent     ComponentCategory = "pubsub"
	MiddlewareComponent ComponentCategory = "middleware"

	DefaultComponentInitTimeout     = time.Second * 5
	DefaultGracefulShutdownDuration = time.Second * 5
)

var ComponentCategories = []ComponentCategory{
	PubsubComponent,
	MiddlewareComponent,
}

// Spec describes a pub-sub or middleware component.
type Spec struct {
	Name     string
	Type     string
	Version  string            `json:"version" yaml:"version"`
	Metadata map[string]string `json:"metadata" yaml:"metadata"`
	Scopes   []string          `json:"scopes" yaml:"scopes"`
}

// SubscriptionSpec binds a topic on a pub-sub component to the runtime
// handler. Metadata carries the subscription option keys, which override the
// component level ones.
type SubscriptionSpec struct {
	Name       string
	PubsubName string
	Topic      string
	Queue      string
	Metadata   map[string]string
}

// Manifest is everything a loader found.
type Manifest struct {
	Components    []Spec
	Subscriptions []SubscriptionSpec
}

// Category returns the category prefix of spec.Type, empty when unknown.
func (spec Spec) Category() ComponentCategory {
	for _, category := range ComponentCategories {
		if strings.HasPrefix(spec.Type, string(category)+".") {
			return category
		}
	}
	return ""
}

// IsInitialVersion reports whether version selects the unversioned
// registration of a component: empty, v0 or v1.
func IsInitialVersion(version string) bool {
	switch strings.ToLower(version) {
	case "", "v0", "v1":
		return true
	}
	return false
}
