package facematch

// DefaultThreshold is the score at or above which a pair is proposed as a match.
const DefaultThreshold = 0.75

// ThresholdFunc yields the current match threshold.
type ThresholdFunc func() float64

// FixedThreshold returns a ThresholdFunc that always yields t.
func FixedThreshold(t float64) ThresholdFunc {
	return func() float64 { return t }
}

// Policy turns a similarity score into a match decision.
type Policy struct {
	threshold ThresholdFunc
}

// NewPolicy creates a policy. A nil source falls back to DefaultThreshold.
func NewPolicy(source ThresholdFunc) *Policy {
	if source == nil {
		source = FixedThreshold(DefaultThreshold)
	}
	return &Policy{threshold: source}
}

// Threshold returns the threshold currently in effect.
func (p *Policy) Threshold() float64 {
	return p.threshold()
}

// IsMatch reports whether score reaches the threshold (inclusive).
// The threshold is read on every call so configuration changes apply to the
// next decision without touching stored matches.
func (p *Policy) IsMatch(score float64) bool {
	return score >= p.threshold()
}
