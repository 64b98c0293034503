// Package db provides the sqlite-backed store the CLI tools use to
// record reading sets and estimation runs.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/radiolocate/reading"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the store at path. Use ":memory:"
// for an ephemeral store in tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			scenario          TEXT NOT NULL,
			source_id         TEXT,
			frequency_hz      DOUBLE,
			x                 DOUBLE NOT NULL,
			y                 DOUBLE NOT NULL,
			z                 DOUBLE,
			has_distance      BOOLEAN NOT NULL DEFAULT 0,
			distance          DOUBLE,
			distance_stddev   DOUBLE,
			has_rssi          BOOLEAN NOT NULL DEFAULT 0,
			rssi_dbm          DOUBLE,
			rssi_stddev       DOUBLE,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_readings_scenario ON readings(scenario);
		CREATE TABLE IF NOT EXISTS estimates (
			scenario          TEXT NOT NULL,
			method            TEXT NOT NULL,
			x                 DOUBLE NOT NULL,
			y                 DOUBLE NOT NULL,
			z                 DOUBLE,
			power_dbm         DOUBLE,
			path_loss         DOUBLE,
			num_inliers       BIGINT,
			num_readings      BIGINT,
			iterations        BIGINT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_estimates_scenario ON estimates(scenario);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// InsertReadings records a reading set under a scenario name.
func (db *DB) InsertReadings(scenario string, readings []reading.Reading) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO readings (
			scenario, source_id, frequency_hz, x, y, z,
			has_distance, distance, distance_stddev,
			has_rssi, rssi_dbm, rssi_stddev
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range readings {
		var z sql.NullFloat64
		if r.Position.Dims() > 2 {
			z = sql.NullFloat64{Float64: r.Position[2], Valid: true}
		}
		_, err := stmt.Exec(
			scenario, r.Source.ID, r.Source.FrequencyHz,
			r.Position[0], r.Position[1], z,
			r.HasDistance, r.Distance, r.DistanceStdDev,
			r.HasRSSI, r.RSSIdBm, r.RSSIStdDev,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}
	return tx.Commit()
}

// ListReadings loads the reading set recorded under a scenario name,
// in insertion order.
func (db *DB) ListReadings(scenario string) ([]reading.Reading, error) {
	rows, err := db.Query(`
		SELECT source_id, frequency_hz, x, y, z,
		       has_distance, distance, distance_stddev,
		       has_rssi, rssi_dbm, rssi_stddev
		FROM readings WHERE scenario = ? ORDER BY rowid
	`, scenario)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []reading.Reading
	for rows.Next() {
		var r reading.Reading
		var z sql.NullFloat64
		var x, y float64
		if err := rows.Scan(
			&r.Source.ID, &r.Source.FrequencyHz, &x, &y, &z,
			&r.HasDistance, &r.Distance, &r.DistanceStdDev,
			&r.HasRSSI, &r.RSSIdBm, &r.RSSIStdDev,
		); err != nil {
			return nil, err
		}
		if z.Valid {
			r.Position = reading.Point{x, y, z.Float64}
		} else {
			r.Position = reading.Point{x, y}
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// EstimateRecord is one row of the estimates table.
type EstimateRecord struct {
	Scenario    string
	Method      string
	Position    reading.Point
	PowerdBm    float64
	PathLoss    float64
	NumInliers  int
	NumReadings int
	Iterations  int
	CreatedAt   time.Time
}

// InsertEstimate records the outcome of one estimation run.
func (db *DB) InsertEstimate(rec EstimateRecord) error {
	var z sql.NullFloat64
	if rec.Position.Dims() > 2 {
		z = sql.NullFloat64{Float64: rec.Position[2], Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO estimates (
			scenario, method, x, y, z, power_dbm, path_loss,
			num_inliers, num_readings, iterations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Scenario, rec.Method,
		rec.Position[0], rec.Position[1], z,
		rec.PowerdBm, rec.PathLoss,
		rec.NumInliers, rec.NumReadings, rec.Iterations)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	return nil
}

// ListEstimates loads the estimation runs recorded under a scenario name,
// most recent first.
func (db *DB) ListEstimates(scenario string) ([]EstimateRecord, error) {
	rows, err := db.Query(`
		SELECT scenario, method, x, y, z, power_dbm, path_loss,
		       num_inliers, num_readings, iterations, created_at
		FROM estimates WHERE scenario = ? ORDER BY rowid DESC
	`, scenario)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EstimateRecord
	for rows.Next() {
		var rec EstimateRecord
		var x, y float64
		var z sql.NullFloat64
		if err := rows.Scan(
			&rec.Scenario, &rec.Method, &x, &y, &z,
			&rec.PowerdBm, &rec.PathLoss,
			&rec.NumInliers, &rec.NumReadings, &rec.Iterations,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if z.Valid {
			rec.Position = reading.Point{x, y, z.Float64}
		} else {
			rec.Position = reading.Point{x, y}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
