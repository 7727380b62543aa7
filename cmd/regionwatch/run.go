package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eveapm/regionwatch/internal/capture"
	"github.com/eveapm/regionwatch/internal/config"
	"github.com/eveapm/regionwatch/internal/diagnostics"
	"github.com/eveapm/regionwatch/internal/events"
	"github.com/eveapm/regionwatch/internal/logging"
	"github.com/eveapm/regionwatch/internal/monitor"
	"github.com/eveapm/regionwatch/internal/store"
	"github.com/eveapm/regionwatch/internal/winapi"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	rules, err := config.LoadRules(rulesPath)
	if err != nil {
		return err
	}

	level := settings.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(level, settings.Logging.Console, os.Stderr)

	db, err := store.Open(settings.Storage.DatabasePath, logging.Component(logger, "store"))
	if err != nil {
		return err
	}
	defer db.Close()

	bus := events.NewBus(256, logging.Component(logger, "events"))
	defer bus.Stop()

	registry := winapi.NewRegistry(settings.Capture.ProcessNames, logging.Component(logger, "winapi"))
	captureLogger := logging.Component(logger, "capture")
	surfaces := capture.NewSurfaceManager(captureLogger)
	grabber := capture.NewGDIGrabber(captureLogger)
	orchestrator := capture.NewOrchestrator(registry, surfaces, grabber, captureLogger)

	debugLog := diagnostics.NewDebugLog(settings.Monitor.DebugDir)
	snapshots := diagnostics.NewSnapshotWriter(settings.Monitor.DebugDir, settings.Monitor.SnapshotRetention, debugLog)

	engine := monitor.New(orchestrator, surfaces, bus, logging.Component(logger, "monitor")).
		WithDiagnostics(debugLog, snapshots).
		WithWatchdog(monitor.NewWatchdog().WithStalledCallback(func(reason string, err error) {
			logger.Warn().Str("reason", reason).Err(err).Msg("monitor loop stalled")
			bus.PublishAsync(events.NewErrorEvent("monitor", err, map[string]interface{}{
				"reason": reason,
			}))
		}))
	orchestrator.WithDebugSink(engine.Trace)

	bus.Subscribe(events.EventTypeAlertTriggered, func(event events.Event) {
		if err := db.RecordAlert(alertFromEvent(event)); err != nil {
			logger.Error().Err(err).Msg("failed to record alert")
		}
	})

	stopPrune := startHistoryPruner(db, settings.Storage.HistoryRetentionDays, logging.Component(logger, "store"))
	defer close(stopPrune)

	reload := func() {
		newSettings, err := config.LoadSettings(configPath)
		if err != nil {
			logger.Error().Err(err).Str("path", configPath).Msg("failed to reload settings")
			return
		}
		newRules, err := config.LoadRules(rulesPath)
		if err != nil {
			logger.Error().Err(err).Str("path", rulesPath).Msg("failed to reload rules")
			return
		}
		registry.SetProcessNames(newSettings.Capture.ProcessNames)
		engine.Reload(monitorConfig(newSettings), newRules)
	}
	watcher, err := config.NewWatcher(logging.Component(logger, "config"), reload, configPath, rulesPath)
	if err != nil {
		logger.Warn().Err(err).Msg("config hot reload disabled")
	} else {
		defer watcher.Close()
	}

	engine.Reload(monitorConfig(settings), rules)
	engine.Start()
	defer engine.Stop()

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("rules", rulesPath).
		Int("rule_count", len(rules)).
		Int("pid", os.Getpid()).
		Msg("regionwatch started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	return nil
}

func monitorConfig(settings *config.Settings) monitor.Config {
	return monitor.Config{
		Enabled:      settings.Monitor.Enabled,
		PollInterval: settings.Monitor.PollInterval(),
		Cooldown:     settings.Monitor.Cooldown(),
		DebugOutput:  settings.Monitor.DebugOutput,
	}
}

// alertFromEvent maps an alert event payload onto a history row. The event
// ID and timestamp carry over so the row matches what subscribers saw.
func alertFromEvent(event events.Event) store.Alert {
	alert := store.Alert{
		ID:          event.ID,
		TriggeredAt: event.Timestamp,
	}
	if v, ok := event.Data["character"].(string); ok {
		alert.Character = v
	}
	if v, ok := event.Data["rule_id"].(string); ok {
		alert.RuleID = v
	}
	if v, ok := event.Data["label"].(string); ok {
		alert.Label = v
	}
	if v, ok := event.Data["score"].(float64); ok {
		alert.Score = v
	}
	if v, ok := event.Data["method_tag"].(string); ok {
		alert.MethodTag = v
	}
	return alert
}

// startHistoryPruner removes alerts older than the retention window, once at
// startup and then daily. Closing the returned channel stops it.
func startHistoryPruner(db *store.Store, retentionDays int, logger zerolog.Logger) chan struct{} {
	stop := make(chan struct{})
	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		removed, err := db.PruneOlderThan(cutoff)
		if err != nil {
			logger.Error().Err(err).Msg("failed to prune alert history")
			return
		}
		if removed > 0 {
			logger.Info().Int64("removed", removed).Int("retention_days", retentionDays).Msg("pruned alert history")
		}
	}
	prune()
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				prune()
			case <-stop:
				return
			}
		}
	}()
	return stop
}
