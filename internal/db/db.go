// Package db persists decoded radar readings to sqlite for later analysis
// by visualisation and calibration tooling.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/ld2410/internal/protocol"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the readings log at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			timestamp               TIMESTAMP,
			mode                    TEXT,
			target_state            TEXT,
			moving_distance_cm      INTEGER,
			moving_energy           INTEGER,
			static_distance_cm      INTEGER,
			static_energy           INTEGER,
			detection_distance_cm   INTEGER
		);
		CREATE INDEX IF NOT EXISTS readings_timestamp ON readings (timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create readings schema: %w", err)
	}

	return &DB{db}, nil
}

// RecordReading appends one reading to the log.
func (d *DB) RecordReading(r protocol.Reading) error {
	_, err := d.Exec(`
		INSERT INTO readings (
			timestamp, mode, target_state,
			moving_distance_cm, moving_energy,
			static_distance_cm, static_energy,
			detection_distance_cm
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC(), r.Mode.String(), r.TargetState.String(),
		r.MovingDistanceCM, r.MovingEnergy,
		r.StaticDistanceCM, r.StaticEnergy,
		r.DetectionDistanceCM,
	)
	if err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}
	return nil
}

// StoredReading is one row of the readings log.
type StoredReading struct {
	Timestamp           time.Time
	Mode                string
	TargetState         string
	MovingDistanceCM    int
	MovingEnergy        int
	StaticDistanceCM    int
	StaticEnergy        int
	DetectionDistanceCM int
}

// Readings returns the most recent readings, newest first, up to limit.
func (d *DB) Readings(limit int) ([]StoredReading, error) {
	rows, err := d.Query(`
		SELECT timestamp, mode, target_state,
		       moving_distance_cm, moving_energy,
		       static_distance_cm, static_energy,
		       detection_distance_cm
		FROM readings
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []StoredReading
	for rows.Next() {
		var r StoredReading
		if err := rows.Scan(
			&r.Timestamp, &r.Mode, &r.TargetState,
			&r.MovingDistanceCM, &r.MovingEnergy,
			&r.StaticDistanceCM, &r.StaticEnergy,
			&r.DetectionDistanceCM,
		); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// AverageDetectionDistance returns the mean detection distance of readings
// recorded at or after since, ignoring rows with no target present.
func (d *DB) AverageDetectionDistance(since time.Time) (float64, error) {
	var avg sql.NullFloat64
	err := d.QueryRow(`
		SELECT AVG(detection_distance_cm)
		FROM readings
		WHERE timestamp >= ? AND target_state != ?`,
		since.UTC(), protocol.NoTarget.String(),
	).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}
