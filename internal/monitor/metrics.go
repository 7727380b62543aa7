package monitor

import (
	"strings"
	"sync"
	"time"
)

// Metrics tracks poll loop statistics.
type Metrics struct {
	mu sync.RWMutex

	// Tick accounting
	Ticks            int64
	RulesEvaluated   int64
	LastTickTime     time.Time
	LastTickDuration time.Duration

	// Capture outcomes by acquisition path
	CapturesInternal int64
	CapturesFallback int64
	CaptureFailures  int64

	// Alerting
	AlertsEmitted   int64
	LastAlertTime   time.Time
	PipelineChanges int64
	StateResets     int64

	// LastFailureStatus is the most recent capture failure status string.
	LastFailureStatus string
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordTick records one completed poll pass and how long it took.
func (m *Metrics) RecordTick(duration time.Duration, rulesEvaluated int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Ticks++
	m.RulesEvaluated += int64(rulesEvaluated)
	m.LastTickTime = time.Now()
	m.LastTickDuration = duration
}

// RecordCapture records a capture outcome. Successful methods are attributed
// to the internal or fallback path by their tag prefix; failures keep the
// status string for inspection.
func (m *Metrics) RecordCapture(method string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ok {
		m.CaptureFailures++
		m.LastFailureStatus = method
		return
	}
	if strings.HasPrefix(method, "internal_cropped_thumbnail:") {
		m.CapturesInternal++
	} else {
		m.CapturesFallback++
	}
}

// RecordAlert records an emitted alert.
func (m *Metrics) RecordAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AlertsEmitted++
	m.LastAlertTime = time.Now()
}

// RecordPipelineChange records a rule switching capture paths.
func (m *Metrics) RecordPipelineChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PipelineChanges++
}

// RecordStateReset records a rule state discarded after repeated failures.
func (m *Metrics) RecordStateReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateResets++
}

// Stats returns an immutable snapshot of current metrics.
func (m *Metrics) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Ticks:             m.Ticks,
		RulesEvaluated:    m.RulesEvaluated,
		LastTickTime:      m.LastTickTime,
		LastTickDuration:  m.LastTickDuration,
		CapturesInternal:  m.CapturesInternal,
		CapturesFallback:  m.CapturesFallback,
		CaptureFailures:   m.CaptureFailures,
		AlertsEmitted:     m.AlertsEmitted,
		LastAlertTime:     m.LastAlertTime,
		PipelineChanges:   m.PipelineChanges,
		StateResets:       m.StateResets,
		LastFailureStatus: m.LastFailureStatus,
	}
}

// Stats is a point-in-time snapshot of poll metrics.
type Stats struct {
	Ticks             int64
	RulesEvaluated    int64
	LastTickTime      time.Time
	LastTickDuration  time.Duration
	CapturesInternal  int64
	CapturesFallback  int64
	CaptureFailures   int64
	AlertsEmitted     int64
	LastAlertTime     time.Time
	PipelineChanges   int64
	StateResets       int64
	LastFailureStatus string
}
