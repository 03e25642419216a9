package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpec_Category(t *testing.T) {
	tests := []struct {
		componentType string
		want          ComponentCategory
	}{
		{"pubsub.natsstreaming", PubsubComponent},
		{"middleware.pubsub.logging", MiddlewareComponent},
		{"pubsub", ""},
		{"state.redis", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.componentType, func(t *testing.T) {
			assert.Equal(t, tt.want, Spec{Type: tt.componentType}.Category())
		})
	}
}

func TestIsInitialVersion(t *testing.T) {
	assert.True(t, IsInitialVersion(""))
	assert.True(t, IsInitialVersion("V1"))
	assert.True(t, IsInitialVersion("v0"))
	assert.False(t, IsInitialVersion("v2"))
}
