package configuration

import (
	"strconv"

	"github.com/pkg/errors"
)

// PrintPayload makes the subscriber logging middleware include payloads.
const PrintPayload Feature = "PrintPayload"

func IsFeatureEnabled(features []FeatureSpec, target Feature) bool {
	for _, feature := range features {
		if feature.Name == target {
			return feature.Enabled
		}
	}
	return false
}

// SamplingRatio parses SamplingRate, defaulting to 1.
func (t TracingSpec) SamplingRatio() (float64, error) {
	if t.SamplingRate == "" {
		return 1, nil
	}
	ratio, err := strconv.ParseFloat(t.SamplingRate, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid sampling rate %q", t.SamplingRate)
	}
	if ratio < 0 || ratio > 1 {
		return 0, errors.Errorf("sampling rate %v is outside [0, 1]", ratio)
	}
	return ratio, nil
}
