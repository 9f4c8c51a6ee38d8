package feedback

import "fmt"

// Policy decides the next conversational action from a sentiment score.
// Thresholds are tunables, not constants: the defaults (+0.3 / -0.3) carry no
// special rationale and callers may reconfigure them.
type Policy struct {
	PositiveThreshold float64 // score above this continues the thread
	NegativeThreshold float64 // score below this switches to alternatives
}

// DefaultPolicy returns the +0.3 / -0.3 thresholds.
func DefaultPolicy() Policy {
	return Policy{PositiveThreshold: 0.3, NegativeThreshold: -0.3}
}

func (p Policy) Validate() error {
	if p.PositiveThreshold <= 0 || p.PositiveThreshold > 1 {
		return fmt.Errorf("policy: positive threshold must be in (0, 1], got %v", p.PositiveThreshold)
	}
	if p.NegativeThreshold >= 0 || p.NegativeThreshold < -1 {
		return fmt.Errorf("policy: negative threshold must be in [-1, 0), got %v", p.NegativeThreshold)
	}
	return nil
}

// NextAction maps score to an action: clearly positive continues, clearly
// negative shows alternatives, anything in between asks a follow-up.
func (p Policy) NextAction(score float64) string {
	switch {
	case score > p.PositiveThreshold:
		return ActionContinue
	case score < p.NegativeThreshold:
		return ActionShowAlternatives
	default:
		return ActionAskFollowUp
	}
}
