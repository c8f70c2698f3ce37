package ride

import (
	"errors"
	"testing"

	"github.com/passbi/ridepool/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demand(id int, t, ox, oy, dx, dy float64) models.Demand {
	return models.Demand{
		ID:          id,
		Time:        t,
		Origin:      models.Point{X: ox, Y: oy},
		Destination: models.Point{X: dx, Y: dy},
	}
}

func TestBuildSingleDemand(t *testing.T) {
	d := demand(7, 3, 0, 0, 3, 4)

	r, err := Build([]models.Demand{d}, 1.0)
	require.NoError(t, err)

	require.Len(t, r.Stops, 2)
	assert.Equal(t, models.StopPickup, r.Stops[0].Kind)
	assert.Equal(t, models.StopDropoff, r.Stops[1].Kind)
	assert.Equal(t, 7, r.Stops[0].DemandID)

	require.Len(t, r.Segments, 1)
	assert.Equal(t, models.SegmentTravel, r.Segments[0].Kind)

	assert.InDelta(t, 5.0, r.Distance, 1e-9)
	assert.Equal(t, 1.0, r.Efficiency)
	assert.Equal(t, 3.0, r.Start)
	assert.Equal(t, StatusNotStarted, r.Status())
}

func TestBuildPooledRoute(t *testing.T) {
	a := demand(1, 0, 0, 0, 10, 0)
	b := demand(2, 1, 0.1, 0, 10.1, 0)

	r, err := Build([]models.Demand{a, b}, 0.5)
	require.NoError(t, err)

	t.Run("Stops are pickups then dropoffs in demand order", func(t *testing.T) {
		require.Len(t, r.Stops, 4)
		kinds := []models.StopKind{r.Stops[0].Kind, r.Stops[1].Kind, r.Stops[2].Kind, r.Stops[3].Kind}
		assert.Equal(t, []models.StopKind{models.StopPickup, models.StopPickup, models.StopDropoff, models.StopDropoff}, kinds)
		assert.Equal(t, []int{1, 2, 1, 2}, []int{r.Stops[0].DemandID, r.Stops[1].DemandID, r.Stops[2].DemandID, r.Stops[3].DemandID})
		assert.Equal(t, models.Point{X: 10.1, Y: 0}, r.Stops[3].Point)
	})

	t.Run("Segments are classified", func(t *testing.T) {
		require.Len(t, r.Segments, 3)
		assert.Equal(t, models.SegmentPickup, r.Segments[0].Kind)
		assert.Equal(t, models.SegmentTravel, r.Segments[1].Kind)
		assert.Equal(t, models.SegmentDropoff, r.Segments[2].Kind)
	})

	t.Run("Distance and efficiency", func(t *testing.T) {
		// 0.1 + 9.9 + 0.1
		assert.InDelta(t, 10.1, r.Distance, 1e-9)
		assert.InDelta(t, 20.0/10.1, r.Efficiency, 1e-9)
		assert.GreaterOrEqual(t, r.Efficiency, 0.5)
	})

	assert.Equal(t, []int{1, 2}, r.DemandIDs)
}

func TestBuildLowEfficiency(t *testing.T) {
	// Opposite directions: the pooled detour is far longer than the two direct trips
	a := demand(1, 0, 0, 0, 10, 0)
	b := demand(2, 0, 0, 0, -10, 0)
	group := []models.Demand{a, b}

	r, err := Build(group, 0.9)
	assert.Nil(t, r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLowEfficiency))

	// Input is left untouched
	assert.Equal(t, []models.Demand{a, b}, group)
}

func TestBuildEmptyGroup(t *testing.T) {
	r, err := Build(nil, 0.5)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestBuildZeroDistance(t *testing.T) {
	a := demand(1, 0, 2, 2, 2, 2)
	b := demand(2, 0, 2, 2, 2, 2)

	r, err := Build([]models.Demand{a, b}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Distance)
	assert.Equal(t, 1.0, r.Efficiency)
}

func TestNewSegment(t *testing.T) {
	p := models.Stop{Kind: models.StopPickup, Point: models.Point{X: 0, Y: 0}}
	d := models.Stop{Kind: models.StopDropoff, Point: models.Point{X: 3, Y: 4}}

	tests := []struct {
		name     string
		stops    []models.Stop
		expected models.SegmentKind
		wantErr  bool
	}{
		{"Pickup to pickup", []models.Stop{p, p}, models.SegmentPickup, false},
		{"Pickup to dropoff", []models.Stop{p, d}, models.SegmentTravel, false},
		{"Dropoff to dropoff", []models.Stop{d, d}, models.SegmentDropoff, false},
		{"Dropoff to pickup is rejected", []models.Stop{d, p}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := NewSegment(tt.stops, 0, 1)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSegment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, seg.Kind)
			assert.Equal(t, 0, seg.From)
			assert.Equal(t, 1, seg.To)
			assert.False(t, seg.Complete)
		})
	}
}

func TestScheduleAndLifecycle(t *testing.T) {
	r, err := Build([]models.Demand{demand(1, 4, 0, 0, 0, 10)}, 0.5)
	require.NoError(t, err)

	t.Run("Rejects non-positive speed", func(t *testing.T) {
		assert.ErrorIs(t, r.Schedule(0), ErrInvalidSpeed)
	})

	require.NoError(t, r.Schedule(2))
	assert.InDelta(t, 5.0, r.Duration, 1e-9)
	assert.InDelta(t, 9.0, r.End, 1e-9)

	require.NoError(t, r.StartRide())
	assert.Equal(t, StatusOngoing, r.Status())
	assert.ErrorIs(t, r.StartRide(), ErrInvalidTransition)

	r.MarkDone()
	assert.Equal(t, StatusDone, r.Status())
	for _, seg := range r.Segments {
		assert.True(t, seg.Complete)
	}
	assert.ErrorIs(t, r.StartRide(), ErrInvalidTransition)
}

func TestRecord(t *testing.T) {
	r, err := Build([]models.Demand{demand(1, 0, 0, 0, 10, 0), demand(2, 1, 0, 1, 10, 1)}, 0.5)
	require.NoError(t, err)
	r.ID = 3
	require.NoError(t, r.Schedule(1))

	rec := r.Record()
	assert.Equal(t, 3, rec.RideID)
	assert.Equal(t, []int{1, 2}, rec.DemandIDs)
	assert.Equal(t, 4, rec.StopCount())
	assert.Equal(t, []models.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 10, Y: 0}, {X: 10, Y: 1}}, rec.Stops)
	assert.Equal(t, r.End, rec.End)

	// Record owns its slices
	rec.DemandIDs[0] = 99
	assert.Equal(t, 1, r.DemandIDs[0])
}
