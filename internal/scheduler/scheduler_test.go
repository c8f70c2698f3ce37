package scheduler

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/passbi/ridepool/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleAndNextOrdering(t *testing.T) {
	s := New(16)

	times := []float64{5, 1, 9, 3, 7, 2, 8}
	for i, tm := range times {
		require.NoError(t, s.Schedule(models.Event{RideID: i, Time: tm, Kind: models.EventEnd}))
	}
	assert.Equal(t, len(times), s.Len())

	var got []float64
	for {
		ev, err := s.Next()
		if err == ErrEmpty {
			break
		}
		require.NoError(t, err)
		got = append(got, ev.Time)
	}

	assert.Equal(t, []float64{1, 2, 3, 5, 7, 8, 9}, got)
	assert.Equal(t, 0, s.Len())
}

func TestRandomizedDrainIsSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New(DefaultCapacity)

	for i := 0; i < DefaultCapacity; i++ {
		require.NoError(t, s.Schedule(models.Event{RideID: i, Time: float64(rng.Intn(100))}))
	}

	var got []float64
	for s.Len() > 0 {
		ev, err := s.Next()
		require.NoError(t, err)
		got = append(got, ev.Time)
	}
	assert.True(t, sort.Float64sAreSorted(got))
}

func TestTieBreaking(t *testing.T) {
	s := New(8)

	require.NoError(t, s.Schedule(models.Event{RideID: 0, Time: 4, Kind: models.EventEnd}))
	require.NoError(t, s.Schedule(models.Event{RideID: 1, Time: 4, Kind: models.EventEnd}))
	require.NoError(t, s.Schedule(models.Event{RideID: 2, Time: 4, Kind: models.EventStart}))
	require.NoError(t, s.Schedule(models.Event{RideID: 3, Time: 4, Kind: models.EventStart}))
	require.NoError(t, s.Schedule(models.Event{RideID: 4, Time: 4, Kind: models.EventEnd}))

	expected := []models.Event{
		{RideID: 2, Time: 4, Kind: models.EventStart},
		{RideID: 3, Time: 4, Kind: models.EventStart},
		{RideID: 0, Time: 4, Kind: models.EventEnd},
		{RideID: 1, Time: 4, Kind: models.EventEnd},
		{RideID: 4, Time: 4, Kind: models.EventEnd},
	}
	for _, want := range expected {
		ev, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, want, ev)
	}
}

func TestZeroDurationRideStartsBeforeEnding(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Schedule(models.Event{RideID: 0, Time: 2, Kind: models.EventEnd}))
	require.NoError(t, s.Schedule(models.Event{RideID: 0, Time: 2, Kind: models.EventStart}))

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, models.EventStart, first.Kind)
}

func TestCapacity(t *testing.T) {
	s := New(3)
	assert.Equal(t, 3, s.Cap())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Schedule(models.Event{RideID: i, Time: float64(i)}))
	}

	t.Run("Scheduling beyond capacity fails", func(t *testing.T) {
		err := s.Schedule(models.Event{RideID: 9, Time: 0})
		assert.ErrorIs(t, err, ErrFull)
		assert.Equal(t, 3, s.Len())
	})

	t.Run("Capacity frees up after Next", func(t *testing.T) {
		_, err := s.Next()
		require.NoError(t, err)
		assert.NoError(t, s.Schedule(models.Event{RideID: 9, Time: 0}))
	})
}

func TestEmpty(t *testing.T) {
	s := New(2)

	_, err := s.Next()
	assert.ErrorIs(t, err, ErrEmpty)

	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Schedule(models.Event{RideID: 1, Time: 1}))
	_, err = s.Next()
	require.NoError(t, err)

	// Still deterministic after draining
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, DefaultCapacity, New(-5).Cap())
}
