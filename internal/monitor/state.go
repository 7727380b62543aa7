package monitor

import (
	"image"
	"time"
)

const (
	// consecutiveFramesRequired is how many consecutive polls must score at or
	// above threshold before a rule fires.
	consecutiveFramesRequired = 2

	// captureFailureResetThreshold is how many consecutive capture failures a
	// rule tolerates before its state is discarded wholesale.
	captureFailureResetThreshold = 3
)

// ruleState is the per-rule comparison state, keyed by the rule's effective
// key. It lives only while the owning rule exists and the monitor is enabled.
type ruleState struct {
	baseline      *image.Gray
	streak        int
	cooldownUntil time.Time
	failureStreak int
	pipelineKey   string
}

// reset discards everything, including the cooldown. The next successful
// capture seeds a fresh baseline.
func (s *ruleState) reset() {
	s.baseline = nil
	s.streak = 0
	s.cooldownUntil = time.Time{}
	s.failureStreak = 0
	s.pipelineKey = ""
}

// sameSize reports whether the baseline matches the given frame dimensions.
func (s *ruleState) sameSize(frame *image.Gray) bool {
	if s.baseline == nil || frame == nil {
		return false
	}
	return s.baseline.Bounds().Size() == frame.Bounds().Size()
}
