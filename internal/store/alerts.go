package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alert is one recorded region-change alert.
type Alert struct {
	ID          string
	Character   string
	RuleID      string
	Label       string
	Score       float64
	MethodTag   string
	TriggeredAt time.Time
}

// RecordAlert persists an alert. A missing ID or timestamp is filled in.
func (s *Store) RecordAlert(alert Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = time.Now()
	}

	return s.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO alerts (id, character, rule_id, label, score, method_tag, triggered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, alert.ID, alert.Character, alert.RuleID, alert.Label, alert.Score,
			alert.MethodTag, alert.TriggeredAt)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
		return nil
	})
}

// RecentAlerts returns the newest alerts, most recent first.
func (s *Store) RecentAlerts(limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.Query(`
		SELECT id, character, rule_id, label, score, method_tag, triggered_at
		FROM alerts
		ORDER BY triggered_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// AlertsForCharacter returns the newest alerts for one character, most
// recent first. Matching ignores case.
func (s *Store) AlertsForCharacter(character string, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.Query(`
		SELECT id, character, rule_id, label, score, method_tag, triggered_at
		FROM alerts
		WHERE character = ? COLLATE NOCASE
		ORDER BY triggered_at DESC
		LIMIT ?
	`, character, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountSince returns the number of alerts triggered at or after t.
func (s *Store) CountSince(t time.Time) (int64, error) {
	var count int64
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM alerts WHERE triggered_at >= ?
	`, t).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PruneOlderThan deletes alerts triggered before the cutoff and returns how
// many were removed.
func (s *Store) PruneOlderThan(cutoff time.Time) (int64, error) {
	var removed int64
	err := s.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM alerts WHERE triggered_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune alerts: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Debug().Int64("removed", removed).Time("cutoff", cutoff).
			Msg("pruned alert history")
	}
	return removed, nil
}

func scanAlerts(rows *sql.Rows) ([]Alert, error) {
	alerts := []Alert{}
	for rows.Next() {
		var alert Alert
		err := rows.Scan(&alert.ID, &alert.Character, &alert.RuleID, &alert.Label,
			&alert.Score, &alert.MethodTag, &alert.TriggeredAt)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
