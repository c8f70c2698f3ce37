package report

import (
	"math"
	"sort"

	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
)

// Stats summarizes a simulation run
type Stats struct {
	Rides          int     `json:"rides"`
	PooledRides    int     `json:"pooled_rides"`
	Demands        int     `json:"demands"`
	DemandsServed  int     `json:"demands_served"`
	MeanEfficiency float64 `json:"mean_efficiency"`
	MinEfficiency  float64 `json:"min_efficiency"`
	TotalDistance  float64 `json:"total_distance"`
	Makespan       float64 `json:"makespan"`
	MeanOccupancy  float64 `json:"mean_occupancy"`
}

// Summarize computes run statistics from the completed ride records.
// demandCount is the number of demands submitted to the dispatcher.
func Summarize(records []models.RideRecord, demandCount int) Stats {
	stats := Stats{
		Rides:   len(records),
		Demands: demandCount,
	}
	if len(records) == 0 {
		return stats
	}

	var effSum float64
	stats.MinEfficiency = math.Inf(1)

	for _, rec := range records {
		n := len(rec.DemandIDs)
		stats.DemandsServed += n
		if n > 1 {
			stats.PooledRides++
		}

		effSum += rec.Efficiency
		stats.MinEfficiency = math.Min(stats.MinEfficiency, rec.Efficiency)
		stats.TotalDistance += rec.Distance
		stats.Makespan = math.Max(stats.Makespan, rec.End)
	}

	stats.MeanEfficiency = effSum / float64(len(records))
	stats.MeanOccupancy = float64(stats.DemandsServed) / float64(len(records))

	return stats
}

// RejectionCount is the number of candidates refused for one reason
type RejectionCount struct {
	Reason dispatch.RejectReason
	Count  int
}

// SortedRejections lists rejection counts ordered by reason name
func SortedRejections(rejections map[dispatch.RejectReason]int) []RejectionCount {
	counts := make([]RejectionCount, 0, len(rejections))
	for reason, count := range rejections {
		counts = append(counts, RejectionCount{Reason: reason, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Reason < counts[j].Reason
	})
	return counts
}
