package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureEnabled(t *testing.T) {
	features := []FeatureSpec{
		{Name: "testEnabled", Enabled: true},
		{Name: "testDisabled", Enabled: false},
	}
	assert.True(t, IsFeatureEnabled(features, "testEnabled"))
	assert.False(t, IsFeatureEnabled(features, "testDisabled"))
	assert.False(t, IsFeatureEnabled(features, "testMissing"))
}

func TestTracingSpec_SamplingRatio(t *testing.T) {
	tests := []struct {
		rate    string
		want    float64
		wantErr bool
	}{
		{"", 1, false},
		{"0", 0, false},
		{"0.25", 0.25, false},
		{"1", 1, false},
		{"1.5", 0, true},
		{"-0.1", 0, true},
		{"often", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			got, err := TracingSpec{SamplingRate: tt.rate}.SamplingRatio()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
