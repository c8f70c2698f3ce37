package report

import (
	"testing"

	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("Empty run", func(t *testing.T) {
		stats := Summarize(nil, 4)
		assert.Equal(t, Stats{Demands: 4}, stats)
	})

	t.Run("Mixed rides", func(t *testing.T) {
		stats := Summarize(sampleResult().Records, 3)

		assert.Equal(t, 2, stats.Rides)
		assert.Equal(t, 1, stats.PooledRides)
		assert.Equal(t, 3, stats.DemandsServed)
		assert.InDelta(t, 15.1, stats.TotalDistance, 1e-9)
		assert.InDelta(t, 25.0, stats.Makespan, 1e-9)
		assert.InDelta(t, 1.0, stats.MinEfficiency, 1e-9)
		assert.InDelta(t, (1.980198+1)/2, stats.MeanEfficiency, 1e-9)
		assert.InDelta(t, 1.5, stats.MeanOccupancy, 1e-9)
	})

	t.Run("Makespan is the latest end, not the last record", func(t *testing.T) {
		records := []models.RideRecord{
			{DemandIDs: []int{1}, End: 30, Efficiency: 1},
			{DemandIDs: []int{2}, End: 12, Efficiency: 1},
		}
		assert.Equal(t, 30.0, Summarize(records, 2).Makespan)
	})
}

func TestSortedRejections(t *testing.T) {
	rejections := map[dispatch.RejectReason]int{
		dispatch.ReasonTimeWindow:          4,
		dispatch.ReasonCapacity:            1,
		dispatch.ReasonEfficiency:          2,
		dispatch.ReasonDestinationDistance: 3,
		dispatch.ReasonOriginDistance:      5,
	}

	// Map iteration order varies, so repeat to catch unsorted output
	for i := 0; i < 10; i++ {
		assert.Equal(t, []RejectionCount{
			{Reason: dispatch.ReasonCapacity, Count: 1},
			{Reason: dispatch.ReasonDestinationDistance, Count: 3},
			{Reason: dispatch.ReasonEfficiency, Count: 2},
			{Reason: dispatch.ReasonOriginDistance, Count: 5},
			{Reason: dispatch.ReasonTimeWindow, Count: 4},
		}, SortedRejections(rejections))
	}

	assert.Empty(t, SortedRejections(nil))
}
