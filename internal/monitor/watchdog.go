package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StalledCallback is invoked when the poll goroutine stops making progress.
type StalledCallback func(reason string, err error)

// Watchdog detects a stalled poll loop. Captures are synchronous and cannot
// be cancelled, so a wedged GDI call silently stops all rules; the watchdog
// notices the missing activity and reports it.
type Watchdog struct {
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	lastActivity   time.Time
	stalledCount   int
	stallThreshold int
	stallTimeout   time.Duration
	checkInterval  time.Duration
	onStalled      StalledCallback
	mu             sync.RWMutex
}

// NewWatchdog creates a watchdog with default timings: a stall is three
// consecutive checks with no completed poll pass for 30 seconds.
func NewWatchdog() *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watchdog{
		ctx:            ctx,
		cancel:         cancel,
		lastActivity:   time.Now(),
		stallThreshold: 3,
		stallTimeout:   30 * time.Second,
		checkInterval:  5 * time.Second,
	}
}

// WithStalledCallback sets the callback for stall events.
func (w *Watchdog) WithStalledCallback(callback StalledCallback) *Watchdog {
	w.onStalled = callback
	return w
}

// WithStallTimeout sets how long the poll loop may go without completing a
// pass before a check counts it as stalled.
func (w *Watchdog) WithStallTimeout(timeout time.Duration) *Watchdog {
	w.stallTimeout = timeout
	return w
}

// WithCheckInterval sets how often the watchdog checks for activity.
func (w *Watchdog) WithCheckInterval(interval time.Duration) *Watchdog {
	w.checkInterval = interval
	return w
}

// Start begins stall monitoring.
func (w *Watchdog) Start() {
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.stalledCount = 0
	w.mu.Unlock()

	w.wg.Add(1)
	go w.monitor()
}

// Stop stops stall monitoring.
func (w *Watchdog) Stop() {
	w.cancel()
	w.wg.Wait()
}

// RecordActivity marks the poll loop as alive. The engine calls this after
// every completed poll pass.
func (w *Watchdog) RecordActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
	w.stalledCount = 0
}

func (w *Watchdog) monitor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkStalled()
		}
	}
}

func (w *Watchdog) checkStalled() {
	w.mu.Lock()
	defer w.mu.Unlock()

	sinceActivity := time.Since(w.lastActivity)
	if sinceActivity <= w.stallTimeout {
		w.stalledCount = 0
		return
	}

	w.stalledCount++
	if w.stalledCount >= w.stallThreshold {
		if w.onStalled != nil {
			w.onStalled("poll_stalled", fmt.Errorf("no completed poll pass for %v", sinceActivity))
		}
		w.stalledCount = 0
	}
}
