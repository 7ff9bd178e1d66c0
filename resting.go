package intervals

import "fmt"

// RestingClassifier flags samples that belong to a pause or slow walk.
// The policy is fixed at construction; IsResting never re-checks column
// availability.
type RestingClassifier struct {
	policy          RestingPolicy
	speedThreshold  float64
	strideThreshold float64
}

// NewRestingClassifier selects the classification policy for a series.
// A stride-based policy requested for a series without stride length
// falls back to speed-only; the returned diagnostic is non-nil in that case.
func NewRestingClassifier(cfg Config, hasStrideLength bool) (RestingClassifier, *Diagnostic) {
	c := RestingClassifier{
		policy:         RestingPolicySpeed,
		speedThreshold: cfg.RestingSpeedThresholdKmh,
	}
	if cfg.Policy() != RestingPolicySpeedOrStride {
		return c, nil
	}
	if !hasStrideLength {
		return c, &Diagnostic{
			Kind:    DiagnosticPolicyFallback,
			Message: fmt.Sprintf("stride threshold %.0f mm configured but series has no stride length; using speed-only resting classification", *cfg.RestingStrideThresholdMM),
		}
	}
	c.policy = RestingPolicySpeedOrStride
	c.strideThreshold = *cfg.RestingStrideThresholdMM
	return c, nil
}

// Policy returns the policy in effect.
func (c RestingClassifier) Policy() RestingPolicy { return c.policy }

// IsResting reports whether s is slower than the speed threshold or, under
// the speed-or-stride policy, shorter-striding than the stride threshold.
// Samples without a stride reading are judged on speed alone.
func (c RestingClassifier) IsResting(s Sample) bool {
	if s.SpeedKmh < c.speedThreshold {
		return true
	}
	if c.policy == RestingPolicySpeedOrStride && s.StrideLengthMM != nil {
		return *s.StrideLengthMM < c.strideThreshold
	}
	return false
}

// Classify returns the resting flag for every sample of the series.
func (c RestingClassifier) Classify(series SampleSeries) []bool {
	out := make([]bool, len(series.Samples))
	for i, s := range series.Samples {
		out[i] = c.IsResting(s)
	}
	return out
}
