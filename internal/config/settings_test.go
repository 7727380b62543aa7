package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSettingsMissingFileYieldsDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	require.Equal(t, NewDefaultSettings(), settings)
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "regionwatch.ini", `
[Monitor]
Enabled = true
PollIntervalMs = 750
CooldownMs = 10000
DebugOutput = true
DebugDir = debug_frames
SnapshotRetention = 50

[Capture]
ProcessNames = exefile.exe, evefrontier.exe

[Logging]
Level = debug
Console = false

[Storage]
DatabasePath = alerts.db
HistoryRetentionDays = 7
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	require.True(t, settings.Monitor.Enabled)
	require.Equal(t, 750, settings.Monitor.PollIntervalMs)
	require.Equal(t, 750*time.Millisecond, settings.Monitor.PollInterval())
	require.Equal(t, 10000, settings.Monitor.CooldownMs)
	require.True(t, settings.Monitor.DebugOutput)
	require.Equal(t, "debug_frames", settings.Monitor.DebugDir)
	require.Equal(t, 50, settings.Monitor.SnapshotRetention)
	require.Equal(t, []string{"exefile.exe", "evefrontier.exe"}, settings.Capture.ProcessNames)
	require.Equal(t, "debug", settings.Logging.Level)
	require.False(t, settings.Logging.Console)
	require.Equal(t, "alerts.db", settings.Storage.DatabasePath)
	require.Equal(t, 7, settings.Storage.HistoryRetentionDays)
}

func TestLoadSettingsClampsRanges(t *testing.T) {
	path := writeFile(t, t.TempDir(), "regionwatch.ini", `
[Monitor]
PollIntervalMs = 50
CooldownMs = 90000
SnapshotRetention = 0

[Storage]
HistoryRetentionDays = -3
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	require.Equal(t, 100, settings.Monitor.PollIntervalMs)
	require.Equal(t, 60000, settings.Monitor.CooldownMs)
	require.Equal(t, 1, settings.Monitor.SnapshotRetention)
	require.Equal(t, 1, settings.Storage.HistoryRetentionDays)
}

func TestLoadSettingsClampsUpperPollInterval(t *testing.T) {
	path := writeFile(t, t.TempDir(), "regionwatch.ini", `
[Monitor]
PollIntervalMs = 99999
CooldownMs = -100
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	require.Equal(t, 10000, settings.Monitor.PollIntervalMs)
	require.Equal(t, 0, settings.Monitor.CooldownMs)
}

func TestLoadSettingsMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "regionwatch.ini", "[Monitor\nbroken")

	_, err := LoadSettings(path)
	require.Error(t, err)
}

func TestSettingsSaveRoundTrip(t *testing.T) {
	settings := NewDefaultSettings()
	settings.Monitor.PollIntervalMs = 2500
	settings.Monitor.DebugOutput = true
	settings.Capture.ProcessNames = []string{"exefile.exe", "other.exe"}
	settings.Logging.Level = "trace"
	settings.Storage.HistoryRetentionDays = 90

	path := filepath.Join(t.TempDir(), "regionwatch.ini")
	require.NoError(t, settings.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
}
