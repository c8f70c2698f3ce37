package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
	"github.com/passbi/ridepool/internal/report"
)

// ErrRunNotFound is returned when no archived run has the requested ID
var ErrRunNotFound = errors.New("simulation run not found")

// RunStatus is the final state of an archived run
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is an archived simulation run
type Run struct {
	ID         string                        `json:"id"`
	Status     RunStatus                     `json:"status"`
	Error      string                        `json:"error,omitempty"`
	Params     models.Params                 `json:"params"`
	Limits     dispatch.Limits               `json:"limits"`
	Demands    int                           `json:"demands"`
	Stats      report.Stats                  `json:"stats"`
	Rejections map[dispatch.RejectReason]int `json:"rejections,omitempty"`
	Rides      []models.RideRecord           `json:"rides"`
	CreatedAt  time.Time                     `json:"created_at"`
}

// NewRun builds an archive entry from a simulation outcome.
// runErr is the fatal error of the run, if any.
func NewRun(params models.Params, limits dispatch.Limits, result *dispatch.Result, runErr error) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunCompleted,
		Params:    params,
		Limits:    limits,
		CreatedAt: time.Now().UTC(),
	}
	if result != nil {
		run.Demands = result.Demands
		run.Rides = result.Records
		run.Rejections = result.Rejections
	}
	run.Stats = report.Summarize(run.Rides, run.Demands)

	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	}
	return run
}

const schema = `
CREATE TABLE IF NOT EXISTS simulation_run (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	params      JSONB NOT NULL,
	limits      JSONB NOT NULL,
	demands     INTEGER NOT NULL,
	stats       JSONB NOT NULL,
	rejections  JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS simulation_ride (
	run_id      TEXT NOT NULL REFERENCES simulation_run(id) ON DELETE CASCADE,
	ride_id     INTEGER NOT NULL,
	seq         INTEGER NOT NULL,
	demand_ids  BIGINT[] NOT NULL,
	start_time  DOUBLE PRECISION NOT NULL,
	end_time    DOUBLE PRECISION NOT NULL,
	distance    DOUBLE PRECISION NOT NULL,
	efficiency  DOUBLE PRECISION NOT NULL,
	stops       JSONB NOT NULL,
	PRIMARY KEY (run_id, ride_id)
);
`

// RunStore archives simulation runs in PostgreSQL.
// Runs are written once and never feed into later simulations.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore wraps a connection pool
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// EnsureSchema creates the archive tables if they do not exist
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and its rides in a single transaction
func (s *RunStore) SaveRun(ctx context.Context, run *Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	limits, err := json.Marshal(run.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	rejections, err := json.Marshal(run.Rejections)
	if err != nil {
		return fmt.Errorf("failed to marshal rejections: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO simulation_run (id, status, error, params, limits, demands, stats, rejections, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, string(run.Status), run.Error, params, limits, run.Demands, stats, rejections, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertRides(ctx, tx, run.ID, run.Rides); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRides(ctx context.Context, tx pgx.Tx, runID string, rides []models.RideRecord) error {
	if len(rides) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for seq, rec := range rides {
		stops, err := json.Marshal(rec.Stops)
		if err != nil {
			return fmt.Errorf("failed to marshal stops of ride %d: %w", rec.RideID, err)
		}
		ids := make([]int64, len(rec.DemandIDs))
		for i, id := range rec.DemandIDs {
			ids[i] = int64(id)
		}

		batch.Queue(`
			INSERT INTO simulation_ride (run_id, ride_id, seq, demand_ids, start_time, end_time, distance, efficiency, stops)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, runID, rec.RideID, seq, ids, rec.Start, rec.End, rec.Distance, rec.Efficiency, stops)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert ride %d: %w", i, err)
		}
	}
	return nil
}

// GetRun loads an archived run with its rides in end order
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRunNotFound
	}

	var run Run
	var status string
	var params, limits, stats, rejections []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, status, error, params, limits, demands, stats, rejections, created_at
		FROM simulation_run
		WHERE id = $1
	`, id).Scan(&run.ID, &status, &run.Error, &params, &limits, &run.Demands, &stats, &rejections, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Status = RunStatus(status)

	if err := json.Unmarshal(params, &run.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal(limits, &run.Limits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal limits: %w", err)
	}
	if err := json.Unmarshal(stats, &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	if err := json.Unmarshal(rejections, &run.Rejections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rejections: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ride_id, demand_ids, start_time, end_time, distance, efficiency, stops
		FROM simulation_ride
		WHERE run_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load rides: %w", err)
	}
	defer rows.Close()

	run.Rides = []models.RideRecord{}
	for rows.Next() {
		var rec models.RideRecord
		var ids []int64
		var stops []byte

		if err := rows.Scan(&rec.RideID, &ids, &rec.Start, &rec.End, &rec.Distance, &rec.Efficiency, &stops); err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		if err := json.Unmarshal(stops, &rec.Stops); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stops: %w", err)
		}
		rec.DemandIDs = make([]int, len(ids))
		for i, v := range ids {
			rec.DemandIDs[i] = int(v)
		}
		rec.Duration = rec.End - rec.Start
		run.Rides = append(run.Rides, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rides: %w", err)
	}

	return &run, nil
}

// HealthCheck performs a health check on the database connection
func (s *RunStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
