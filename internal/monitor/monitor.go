package monitor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eveapm/regionwatch/internal/capture"
	"github.com/eveapm/regionwatch/internal/diagnostics"
	"github.com/eveapm/regionwatch/internal/events"
)

// Poll interval and cooldown are clamped to the same ranges the settings
// loader enforces, so a caller handing raw values straight to Reload cannot
// produce a runaway timer.
const (
	minPollInterval = 100 * time.Millisecond
	maxPollInterval = 10 * time.Second
	maxCooldown     = 60 * time.Second
)

// CaptureSource produces a region capture for one rule per poll. Implemented
// by capture.Orchestrator; tests substitute fakes.
type CaptureSource interface {
	CaptureForRule(ruleKey, character string, region capture.Region) capture.Result
}

// Config is the runtime configuration slice the engine acts on.
type Config struct {
	Enabled      bool
	PollInterval time.Duration
	Cooldown     time.Duration
	DebugOutput  bool
}

// Engine polls enabled rules on a timer, scores captured frames against
// per-rule baselines and publishes alerts. All rule state is owned by the
// poll pass; Start, Stop and Reload are safe from any goroutine.
type Engine struct {
	source   CaptureSource
	surfaces capture.SurfaceManager
	bus      events.EventBus
	logger   zerolog.Logger

	debugLog     *diagnostics.DebugLog
	snapshots    *diagnostics.SnapshotWriter
	debugEnabled atomic.Bool
	watchdog     *Watchdog

	mu      sync.Mutex
	cfg     Config
	rules   []Rule
	states  map[string]*ruleState
	running bool

	metrics *Metrics
	now     func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	reloadCh chan struct{}
}

// New creates an engine. It does not poll until Start is called and holds no
// rules until the first Reload.
func New(source CaptureSource, surfaces capture.SurfaceManager, bus events.EventBus, logger zerolog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		source:   source,
		surfaces: surfaces,
		bus:      bus,
		logger:   logger,
		cfg: Config{
			PollInterval: time.Second,
			Cooldown:     5 * time.Second,
		},
		states:   make(map[string]*ruleState),
		metrics:  NewMetrics(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		reloadCh: make(chan struct{}, 1),
	}
}

// WithDiagnostics attaches the rotating debug log and snapshot writer. Both
// stay dormant until a Reload enables debug output.
func (e *Engine) WithDiagnostics(log *diagnostics.DebugLog, snapshots *diagnostics.SnapshotWriter) *Engine {
	e.debugLog = log
	e.snapshots = snapshots
	return e
}

// WithWatchdog attaches a stall watchdog fed by every completed poll pass.
func (e *Engine) WithWatchdog(w *Watchdog) *Engine {
	e.watchdog = w
	return e
}

// Trace writes a formatted line to the debug log when debug output is
// enabled. It never takes the engine mutex, so capture collaborators may call
// it from inside a poll pass.
func (e *Engine) Trace(format string, args ...interface{}) {
	if e.debugLog == nil || !e.debugEnabled.Load() {
		return
	}
	e.debugLog.Printf(format, args...)
}

// Start launches the poll goroutine. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ruleCount := len(e.rules)
	interval := e.cfg.PollInterval
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run()
	if e.watchdog != nil {
		e.watchdog.Start()
	}

	e.logger.Info().
		Int("rules", ruleCount).
		Dur("interval", interval).
		Msg("monitor started")
	e.bus.Publish(events.NewMonitorStartedEvent(ruleCount, interval))
}

// Stop halts polling, waits for any in-flight pass to finish and discards all
// rule state and capture surfaces.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	if e.watchdog != nil {
		e.watchdog.Stop()
	}

	e.mu.Lock()
	e.states = make(map[string]*ruleState)
	e.mu.Unlock()
	e.surfaces.Clear()

	stats := e.metrics.Stats()
	e.logger.Info().
		Int64("ticks", stats.Ticks).
		Int64("alerts", stats.AlertsEmitted).
		Int64("capture_failures", stats.CaptureFailures).
		Msg("monitor stopped")
	e.bus.Publish(events.NewMonitorStoppedEvent())
}

// Running reports whether the poll goroutine is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats returns a snapshot of poll metrics.
func (e *Engine) Stats() Stats {
	return e.metrics.Stats()
}

// Reload swaps in new configuration and rules. States of rules whose
// effective key survives are kept, so cooldowns and baselines persist across
// edits to unrelated rules. Disabling the monitor discards everything.
func (e *Engine) Reload(cfg Config, rules []Rule) {
	cfg.PollInterval = clampDuration(cfg.PollInterval, minPollInterval, maxPollInterval)
	cfg.Cooldown = clampDuration(cfg.Cooldown, 0, maxCooldown)

	e.mu.Lock()
	wasDebug := e.cfg.DebugOutput
	if cfg.DebugOutput && !wasDebug && e.snapshots != nil {
		// Entering debug mode starts a clean snapshot directory.
		if err := e.snapshots.PurgeExisting(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to purge debug snapshots")
		}
	} else if !cfg.DebugOutput && wasDebug && e.snapshots != nil {
		e.snapshots.Reset()
	}
	e.cfg = cfg
	e.debugEnabled.Store(cfg.DebugOutput)

	e.rules = append(e.rules[:0:0], rules...)

	e.Trace("Reload config: enabled=%t pollIntervalMs=%d cooldownMs=%d rules=%d debugOutput=%t",
		cfg.Enabled, cfg.PollInterval.Milliseconds(), cfg.Cooldown.Milliseconds(),
		len(e.rules), cfg.DebugOutput)

	activeKeys := make(map[string]struct{}, len(e.rules))
	enabledCount := 0
	for i := range e.rules {
		rule := &e.rules[i]
		key := rule.EffectiveKey()
		activeKeys[key] = struct{}{}
		if rule.Enabled {
			enabledCount++
		}
		e.Trace("Rule loaded: key=%s char='%s' label='%s' region=[%.4f,%.4f,%.4f,%.4f] threshold=%d enabled=%t",
			key, rule.Character, rule.Label,
			rule.Region.X, rule.Region.Y, rule.Region.W, rule.Region.H,
			rule.Threshold, rule.Enabled)
	}

	// Drop state for rules that no longer exist under any key.
	for key := range e.states {
		if _, ok := activeKeys[key]; !ok {
			delete(e.states, key)
		}
	}
	e.surfaces.Prune(activeCharacterKeys(e.rules))

	if !cfg.Enabled {
		e.states = make(map[string]*ruleState)
		e.surfaces.Clear()
	}
	ruleCount := len(e.rules)
	e.mu.Unlock()

	// Nudge the poll goroutine to re-arm its ticker.
	select {
	case e.reloadCh <- struct{}{}:
	default:
	}

	e.logger.Info().
		Bool("enabled", cfg.Enabled).
		Int("rules", ruleCount).
		Int("enabled_rules", enabledCount).
		Dur("interval", cfg.PollInterval).
		Dur("cooldown", cfg.Cooldown).
		Msg("monitor configuration reloaded")
	e.bus.Publish(events.NewMonitorReloadedEvent(ruleCount, enabledCount))
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.reloadCh:
			ticker.Reset(e.currentInterval())
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

func (e *Engine) currentInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.PollInterval
}

// activeCharacterKeys collects the normalized character names of enabled
// rules, the ownership set for capture surfaces.
func activeCharacterKeys(rules []Rule) map[string]struct{} {
	active := make(map[string]struct{})
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		key := capture.NormalizeCharacter(rules[i].Character)
		if key != "" {
			active[key] = struct{}{}
		}
	}
	return active
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// trimTag canonicalizes a capture method tag for pipeline identity.
func trimTag(tag string) string {
	return strings.TrimSpace(tag)
}
