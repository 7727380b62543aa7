package monitor

import (
	"strings"
	"time"

	"github.com/eveapm/regionwatch/internal/cv"
	"github.com/eveapm/regionwatch/internal/events"
)

// pollOnce runs one pass over all enabled rules. The engine mutex is held for
// the whole pass, so rule states and capture surfaces are never touched
// concurrently.
func (e *Engine) pollOnce() {
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Enabled {
		e.Trace("Poll skipped: monitor disabled")
		return
	}
	if len(e.rules) == 0 {
		e.Trace("Poll skipped: no region alert rules")
		return
	}

	e.surfaces.Prune(activeCharacterKeys(e.rules))

	now := e.now()
	evaluated := 0
	for i := range e.rules {
		rule := e.rules[i]
		if !rule.Enabled {
			continue
		}
		character := strings.TrimSpace(rule.Character)
		if character == "" {
			continue
		}
		evaluated++
		e.evalRule(rule, character, now)
	}

	duration := time.Since(started)
	e.metrics.RecordTick(duration, evaluated)
	if e.watchdog != nil {
		e.watchdog.RecordActivity()
	}
	e.logger.Debug().
		Int("rules", evaluated).
		Dur("took", duration).
		Msg("poll pass complete")
}

// evalRule captures, scores and advances the state machine for one rule.
func (e *Engine) evalRule(rule Rule, character string, now time.Time) {
	key := rule.EffectiveKey()
	st := e.stateFor(key)

	e.Trace("Poll rule: key=%s char='%s' enabled=%t", key, character, rule.Enabled)

	res := e.source.CaptureForRule(key, character, rule.Region)
	if !res.OK {
		e.metrics.RecordCapture(res.Method, false)
		e.noteCaptureFailure(key, st)
		return
	}
	size := res.Image.Bounds().Size()
	e.Trace("Rule %s capture succeeded via %s (%dx%d)", key, res.Method, size.X, size.Y)
	e.metrics.RecordCapture(res.Method, true)

	// A different method tag means the pixels are no longer comparable with
	// the stored baseline.
	tag := trimTag(res.Method)
	if st.pipelineKey != tag {
		e.Trace("Rule %s capture pipeline changed: '%s' -> '%s' (baseline reset)",
			key, st.pipelineKey, tag)
		if st.pipelineKey != "" {
			e.metrics.RecordPipelineChange()
			e.logger.Debug().
				Str("rule", key).
				Str("previous", st.pipelineKey).
				Str("current", tag).
				Msg("capture pipeline changed")
			e.bus.Publish(events.NewPipelineChangedEvent(key, st.pipelineKey, tag))
		}
		st.pipelineKey = tag
		st.baseline = nil
		st.streak = 0
	}
	st.failureStreak = 0

	current := cv.PreprocessForDiff(res.Image)
	if current == nil {
		e.Trace("Rule %s preprocess failed: current frame is nil", key)
		e.noteCaptureFailure(key, st)
		return
	}

	if !st.sameSize(current) {
		e.Trace("Rule %s baseline initialized", key)
		st.baseline = current
		st.streak = 0
		return
	}

	score := cv.ChangedPercent(st.baseline, current)
	threshold := rule.ClampThreshold()
	above := score >= float64(threshold)
	cooling := now.Before(st.cooldownUntil)
	triggered := false
	if above {
		st.streak++
		triggered = !cooling && st.streak >= consecutiveFramesRequired
	}

	if score > 0 && e.debugEnabled.Load() && e.snapshots != nil {
		e.snapshots.WriteComparison(key, character, st.baseline, current,
			score, threshold, above, cooling, triggered)
	}
	e.Trace("Rule %s compare: score=%.3f threshold=%d above=%t inCooldown=%t consecutive=%d",
		key, score, threshold, above, cooling, st.streak)

	if above {
		if triggered {
			e.Trace("Rule %s triggered alert", key)
			e.logger.Info().
				Str("character", character).
				Str("rule", key).
				Str("label", rule.Label).
				Float64("score", score).
				Int("threshold", threshold).
				Str("method", tag).
				Msg("region alert triggered")
			e.metrics.RecordAlert()
			e.bus.Publish(events.NewAlertTriggeredEvent(character, rule.ID, rule.Label, score, threshold, tag))
			st.cooldownUntil = now.Add(e.cfg.Cooldown)
			st.streak = 0
			// The changed frame becomes the next baseline.
			st.baseline = current
		} else if cooling {
			e.Trace("Rule %s above threshold but cooling down", key)
			// Changes during cooldown are absorbed into the baseline.
			st.streak = 0
			st.baseline = current
		}
		return
	}

	st.streak = 0
	st.baseline = current
}

func (e *Engine) stateFor(key string) *ruleState {
	st, ok := e.states[key]
	if !ok {
		st = &ruleState{}
		e.states[key] = st
	}
	return st
}

// noteCaptureFailure counts a failed capture or preprocess and performs the
// full state reset once the failure streak reaches the threshold.
func (e *Engine) noteCaptureFailure(key string, st *ruleState) {
	st.failureStreak++
	e.Trace("Rule %s capture failure count=%d", key, st.failureStreak)
	if st.failureStreak >= captureFailureResetThreshold {
		e.Trace("Rule %s capture failures reached reset threshold", key)
		e.metrics.RecordStateReset()
		e.logger.Debug().
			Str("rule", key).
			Msg("rule state reset after repeated capture failures")
		st.reset()
	}
}
