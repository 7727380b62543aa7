package store

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one ordered schema change.
type migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
	},
	{
		Version:     2,
		Description: "Create alerts table",
		Up:          migration002Up,
	},
}

// runMigrations applies every migration newer than the recorded version.
func (s *Store) runMigrations() error {
	currentVersion, err := s.Version()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		s.logger.Debug().Int("version", m.Version).Str("description", m.Description).
			Msg("running migration")

		err := s.ExecTx(func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}

			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, m.Version, m.Description, time.Now())
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE alerts (
			id TEXT PRIMARY KEY,
			character TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			label TEXT,
			score REAL NOT NULL,
			method_tag TEXT,
			triggered_at DATETIME NOT NULL
		);

		CREATE INDEX idx_alerts_character ON alerts(character);
		CREATE INDEX idx_alerts_triggered_at ON alerts(triggered_at);
	`)
	return err
}
