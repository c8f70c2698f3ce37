package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "sims")
	t.Setenv("DB_MAX_CONNS", "4")

	config := LoadConfigFromEnv()
	assert.Equal(t, "db.internal", config.Host)
	assert.Equal(t, 6543, config.Port)
	assert.Equal(t, "sims", config.Database)
	assert.Equal(t, int32(4), config.MaxConns)
	assert.Contains(t, config.ConnString(), "host=db.internal port=6543 dbname=sims")
}

func TestParsePoolConfig(t *testing.T) {
	t.Run("Pooler port uses the simple protocol", func(t *testing.T) {
		config := &Config{Host: "localhost", Port: 6543, Database: "sims", User: "postgres", SSLMode: "disable", MinConns: 1, MaxConns: 4}

		poolConfig, err := parsePoolConfig(config)
		require.NoError(t, err)
		assert.Equal(t, int32(4), poolConfig.MaxConns)
		assert.Equal(t, pgx.QueryExecModeSimpleProtocol, poolConfig.ConnConfig.DefaultQueryExecMode)
	})

	t.Run("Direct port keeps statement caching", func(t *testing.T) {
		config := &Config{Host: "localhost", Port: 5432, Database: "sims", User: "postgres", SSLMode: "disable", MinConns: 1, MaxConns: 4}

		poolConfig, err := parsePoolConfig(config)
		require.NoError(t, err)
		assert.NotEqual(t, pgx.QueryExecModeSimpleProtocol, poolConfig.ConnConfig.DefaultQueryExecMode)
	})
}

func TestNewRun(t *testing.T) {
	params := models.Params{Capacity: 2, Speed: 1, MinEfficiency: 0.5}
	limits := dispatch.DefaultLimits()
	result := &dispatch.Result{
		Records: []models.RideRecord{
			{RideID: 0, DemandIDs: []int{1, 2}, End: 11, Distance: 10, Efficiency: 2},
		},
		Demands: 2,
	}

	t.Run("Completed run", func(t *testing.T) {
		run := NewRun(params, limits, result, nil)

		_, err := uuid.Parse(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, RunCompleted, run.Status)
		assert.Empty(t, run.Error)
		assert.Equal(t, 2, run.Demands)
		assert.Equal(t, 1, run.Stats.PooledRides)
		assert.WithinDuration(t, time.Now(), run.CreatedAt, time.Minute)
	})

	t.Run("Failed run keeps partial rides", func(t *testing.T) {
		run := NewRun(params, limits, result, errors.New("max demand groups reached"))

		assert.Equal(t, RunFailed, run.Status)
		assert.Equal(t, "max demand groups reached", run.Error)
		assert.Len(t, run.Rides, 1)
	})

	t.Run("Run without result", func(t *testing.T) {
		run := NewRun(params, limits, nil, errors.New("invalid params"))
		assert.Equal(t, RunFailed, run.Status)
		assert.Zero(t, run.Stats.Rides)
	})

	t.Run("IDs are unique", func(t *testing.T) {
		assert.NotEqual(t, NewRun(params, limits, result, nil).ID, NewRun(params, limits, result, nil).ID)
	})
}

func TestGetRunRejectsMalformedID(t *testing.T) {
	// Malformed IDs never reach the database
	store := NewRunStore(nil)

	_, err := store.GetRun(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
