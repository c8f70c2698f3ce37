package dispatch

import (
	"errors"
	"math"

	"github.com/passbi/ridepool/internal/models"
	"github.com/passbi/ridepool/internal/ride"
)

// RejectReason names the admission check a candidate failed
type RejectReason string

const (
	ReasonNone                RejectReason = ""
	ReasonCapacity            RejectReason = "capacity"
	ReasonTimeWindow          RejectReason = "time_window"
	ReasonOriginDistance      RejectReason = "origin_distance"
	ReasonDestinationDistance RejectReason = "destination_distance"
	ReasonEfficiency          RejectReason = "efficiency"
)

// Verdict is the outcome of testing a candidate against a group
type Verdict struct {
	Accepted   bool
	Reason     RejectReason
	Efficiency float64 // set once the efficiency check has run
}

// Evaluate decides whether candidate can join the group. It never mutates
// the group. Checks run cheapest first: capacity, time window, pairwise
// origin/destination distance, then the route efficiency.
//
// Only structural route errors are returned; a low efficiency is a rejection.
func Evaluate(g *Group, candidate models.Demand, p models.Params) (Verdict, error) {
	first, ok := g.First()
	if !ok {
		return Verdict{Accepted: true}, nil
	}

	if g.Len() >= p.Capacity {
		return Verdict{Reason: ReasonCapacity}, nil
	}

	if math.Abs(candidate.Time-first.Time) > p.MaxTimeGap {
		return Verdict{Reason: ReasonTimeWindow}, nil
	}

	for _, m := range g.members {
		if m.OriginDistance(candidate) > p.MaxOriginDistance {
			return Verdict{Reason: ReasonOriginDistance}, nil
		}
		if m.DestinationDistance(candidate) > p.MaxDestinationDistance {
			return Verdict{Reason: ReasonDestinationDistance}, nil
		}
	}

	r, err := ride.Build(g.With(candidate), p.MinEfficiency)
	if errors.Is(err, ride.ErrLowEfficiency) {
		return Verdict{Reason: ReasonEfficiency}, nil
	}
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{Accepted: true, Efficiency: r.Efficiency}, nil
}
