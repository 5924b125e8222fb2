// Package storage persists completed measurements and caches the
// latest vitals for remote consumers.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Measurement is one completed (or failed) measurement as persisted.
type Measurement struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	HeartRate      int       `json:"heart_rate"`
	HeartRateValid bool      `json:"heart_rate_valid"`
	SpO2           int       `json:"spo2"`
	SpO2Valid      bool      `json:"spo2_valid"`
	Status         string    `json:"status"`
	Condition      string    `json:"condition"`
	Slides         int       `json:"slides"`
}

// MeasurementRepository stores measurement history in PostgreSQL.
type MeasurementRepository struct {
	db *sql.DB
}

// NewMeasurementRepository wraps an existing database handle.
func NewMeasurementRepository(db *sql.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// NewMeasurementRepositoryFromDSN opens a connection pool from a DSN
// and verifies connectivity.
func NewMeasurementRepositoryFromDSN(dsn string) (*MeasurementRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MeasurementRepository{db: db}, nil
}

// Close closes the underlying pool.
func (r *MeasurementRepository) Close() error {
	return r.db.Close()
}

// Save inserts one measurement.
func (r *MeasurementRepository) Save(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO measurements (id, started_at, completed_at, heart_rate, heart_rate_valid, spo2, spo2_valid, status, condition, slides)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.StartedAt,
		m.CompletedAt,
		m.HeartRate,
		m.HeartRateValid,
		m.SpO2,
		m.SpO2Valid,
		m.Status,
		m.Condition,
		m.Slides,
	)

	if err != nil {
		return fmt.Errorf("failed to save measurement: %w", err)
	}

	return nil
}

// Get fetches one measurement by ID.
func (r *MeasurementRepository) Get(ctx context.Context, id string) (*Measurement, error) {
	query := `
		SELECT id, started_at, completed_at, heart_rate, heart_rate_valid, spo2, spo2_valid, status, condition, slides
		FROM measurements
		WHERE id = $1
	`

	var m Measurement
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.StartedAt,
		&m.CompletedAt,
		&m.HeartRate,
		&m.HeartRateValid,
		&m.SpO2,
		&m.SpO2Valid,
		&m.Status,
		&m.Condition,
		&m.Slides,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("measurement not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}

	return &m, nil
}

// List returns measurements newest first.
func (r *MeasurementRepository) List(ctx context.Context, limit, offset int) ([]*Measurement, error) {
	query := `
		SELECT id, started_at, completed_at, heart_rate, heart_rate_valid, spo2, spo2_valid, status, condition, slides
		FROM measurements
		ORDER BY completed_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	var measurements []*Measurement
	for rows.Next() {
		var m Measurement
		err := rows.Scan(
			&m.ID,
			&m.StartedAt,
			&m.CompletedAt,
			&m.HeartRate,
			&m.HeartRateValid,
			&m.SpO2,
			&m.SpO2Valid,
			&m.Status,
			&m.Condition,
			&m.Slides,
		)
		if err != nil {
			continue
		}
		measurements = append(measurements, &m)
	}

	return measurements, nil
}
