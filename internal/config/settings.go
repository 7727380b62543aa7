package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Settings holds the tool-wide configuration loaded from regionwatch.ini.
// Rules live in their own YAML file, see rules.go.
type Settings struct {
	Monitor MonitorSettings
	Capture CaptureSettings
	Logging LoggingSettings
	Storage StorageSettings
}

// MonitorSettings controls the poll loop and alert pacing.
type MonitorSettings struct {
	Enabled           bool
	PollIntervalMs    int
	CooldownMs        int
	DebugOutput       bool
	DebugDir          string
	SnapshotRetention int
}

// PollInterval returns the poll interval as a duration.
func (m MonitorSettings) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMs) * time.Millisecond
}

// Cooldown returns the alert cooldown as a duration.
func (m MonitorSettings) Cooldown() time.Duration {
	return time.Duration(m.CooldownMs) * time.Millisecond
}

// CaptureSettings selects which processes' windows are watched.
type CaptureSettings struct {
	ProcessNames []string
}

// LoggingSettings controls log output.
type LoggingSettings struct {
	Level   string
	Console bool
}

// StorageSettings controls the alert history database.
type StorageSettings struct {
	DatabasePath         string
	HistoryRetentionDays int
}

// NewDefaultSettings creates settings with default values.
func NewDefaultSettings() *Settings {
	return &Settings{
		Monitor: MonitorSettings{
			Enabled:           true,
			PollIntervalMs:    1000,
			CooldownMs:        5000,
			DebugOutput:       false,
			DebugDir:          "region_alert_debug",
			SnapshotRetention: 200,
		},
		Capture: CaptureSettings{
			ProcessNames: []string{"exefile.exe"},
		},
		Logging: LoggingSettings{
			Level:   "info",
			Console: true,
		},
		Storage: StorageSettings{
			DatabasePath:         "regionwatch.db",
			HistoryRetentionDays: 30,
		},
	}
}

// LoadSettings loads configuration from an INI file. A missing file yields
// defaults; a malformed one is an error. Out-of-range values are clamped.
func LoadSettings(path string) (*Settings, error) {
	settings := NewDefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return settings, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings file: %w", err)
	}

	monitor := cfg.Section("Monitor")
	settings.Monitor.Enabled = monitor.Key("Enabled").MustBool(true)
	settings.Monitor.PollIntervalMs = monitor.Key("PollIntervalMs").MustInt(1000)
	settings.Monitor.CooldownMs = monitor.Key("CooldownMs").MustInt(5000)
	settings.Monitor.DebugOutput = monitor.Key("DebugOutput").MustBool(false)
	settings.Monitor.DebugDir = monitor.Key("DebugDir").MustString("region_alert_debug")
	settings.Monitor.SnapshotRetention = monitor.Key("SnapshotRetention").MustInt(200)

	capture := cfg.Section("Capture")
	processList := capture.Key("ProcessNames").MustString("exefile.exe")
	settings.Capture.ProcessNames = splitProcessNames(processList)

	logging := cfg.Section("Logging")
	settings.Logging.Level = logging.Key("Level").MustString("info")
	settings.Logging.Console = logging.Key("Console").MustBool(true)

	storage := cfg.Section("Storage")
	settings.Storage.DatabasePath = storage.Key("DatabasePath").MustString("regionwatch.db")
	settings.Storage.HistoryRetentionDays = storage.Key("HistoryRetentionDays").MustInt(30)

	settings.clamp()
	return settings, nil
}

// Save writes the settings back to an INI file.
func (s *Settings) Save(path string) error {
	cfg := ini.Empty()

	monitor := cfg.Section("Monitor")
	monitor.Key("Enabled").SetValue(fmt.Sprintf("%t", s.Monitor.Enabled))
	monitor.Key("PollIntervalMs").SetValue(fmt.Sprintf("%d", s.Monitor.PollIntervalMs))
	monitor.Key("CooldownMs").SetValue(fmt.Sprintf("%d", s.Monitor.CooldownMs))
	monitor.Key("DebugOutput").SetValue(fmt.Sprintf("%t", s.Monitor.DebugOutput))
	monitor.Key("DebugDir").SetValue(s.Monitor.DebugDir)
	monitor.Key("SnapshotRetention").SetValue(fmt.Sprintf("%d", s.Monitor.SnapshotRetention))

	capture := cfg.Section("Capture")
	capture.Key("ProcessNames").SetValue(strings.Join(s.Capture.ProcessNames, ","))

	logging := cfg.Section("Logging")
	logging.Key("Level").SetValue(s.Logging.Level)
	logging.Key("Console").SetValue(fmt.Sprintf("%t", s.Logging.Console))

	storage := cfg.Section("Storage")
	storage.Key("DatabasePath").SetValue(s.Storage.DatabasePath)
	storage.Key("HistoryRetentionDays").SetValue(fmt.Sprintf("%d", s.Storage.HistoryRetentionDays))

	return cfg.SaveTo(path)
}

// clamp bounds every numeric setting to its valid range.
func (s *Settings) clamp() {
	s.Monitor.PollIntervalMs = clampInt(s.Monitor.PollIntervalMs, 100, 10000)
	s.Monitor.CooldownMs = clampInt(s.Monitor.CooldownMs, 0, 60000)
	if s.Monitor.SnapshotRetention < 1 {
		s.Monitor.SnapshotRetention = 1
	}
	if strings.TrimSpace(s.Monitor.DebugDir) == "" {
		s.Monitor.DebugDir = "region_alert_debug"
	}
	if len(s.Capture.ProcessNames) == 0 {
		s.Capture.ProcessNames = []string{"exefile.exe"}
	}
	if strings.TrimSpace(s.Storage.DatabasePath) == "" {
		s.Storage.DatabasePath = "regionwatch.db"
	}
	if s.Storage.HistoryRetentionDays < 1 {
		s.Storage.HistoryRetentionDays = 1
	}
}

func splitProcessNames(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
