package ride

import (
	"errors"
	"fmt"

	"github.com/passbi/ridepool/internal/models"
)

var (
	// ErrLowEfficiency is returned when the pooled route is not efficient enough.
	// Callers are expected to recover from it.
	ErrLowEfficiency = errors.New("minimum efficiency not reached")

	// Structural errors: the caller passed an inconsistent stop ordering
	ErrEmptyGroup     = errors.New("can't create ride: group has no demands")
	ErrInvalidSegment = errors.New("invalid segment: dropoff followed by pickup")
	ErrMalformedRoute = errors.New("malformed route: pickup/dropoff boundary is not a travel segment")

	ErrInvalidSpeed      = errors.New("vehicle speed must be positive")
	ErrInvalidTransition = errors.New("invalid ride state transition")
)

// Status represents the lifecycle of a ride in the simulation
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusOngoing    Status = "ongoing"
	StatusDone       Status = "done"
)

// Ride is a validated trip serving one or more demands
type Ride struct {
	ID         int
	DemandIDs  []int
	Stops      []models.Stop
	Segments   []models.Segment
	Distance   float64
	Efficiency float64
	Start      float64
	Duration   float64
	End        float64

	status Status
}

// NewSegment classifies the leg between two consecutive stops
func NewSegment(stops []models.Stop, from, to int) (models.Segment, error) {
	beg, end := stops[from], stops[to]

	seg := models.Segment{
		From:   from,
		To:     to,
		Length: models.Distance(beg.Point, end.Point),
	}

	switch {
	case beg.Kind == models.StopPickup && end.Kind == models.StopPickup:
		seg.Kind = models.SegmentPickup
	case beg.Kind == models.StopPickup && end.Kind == models.StopDropoff:
		seg.Kind = models.SegmentTravel
	case beg.Kind == models.StopDropoff && end.Kind == models.StopDropoff:
		seg.Kind = models.SegmentDropoff
	default:
		return models.Segment{}, fmt.Errorf("%w (stops %d -> %d)", ErrInvalidSegment, from, to)
	}

	return seg, nil
}

// Build assembles the route for an ordered set of demands and validates it
// against the minimum efficiency. The demands slice is never modified.
func Build(demands []models.Demand, minEfficiency float64) (*Ride, error) {
	n := len(demands)
	if n == 0 {
		return nil, ErrEmptyGroup
	}

	// All pickups in insertion order, then all dropoffs in the same order
	stops := make([]models.Stop, 2*n)
	ids := make([]int, n)
	for i, d := range demands {
		ids[i] = d.ID
		stops[i] = models.Stop{Kind: models.StopPickup, DemandID: d.ID, DemandIndex: i, Point: d.Origin}
		stops[i+n] = models.Stop{Kind: models.StopDropoff, DemandID: d.ID, DemandIndex: i, Point: d.Destination}
	}

	segments := make([]models.Segment, 2*n-1)
	distance := 0.0
	for i := range segments {
		seg, err := NewSegment(stops, i, i+1)
		if err != nil {
			return nil, err
		}
		segments[i] = seg
		distance += seg.Length
	}

	if segments[n-1].Kind != models.SegmentTravel {
		return nil, fmt.Errorf("%w: segment %d is %s", ErrMalformedRoute, n-1, segments[n-1].Kind)
	}

	efficiency := Efficiency(demands, distance)
	if efficiency < minEfficiency {
		return nil, fmt.Errorf("%w: %.4f < %.4f", ErrLowEfficiency, efficiency, minEfficiency)
	}

	return &Ride{
		DemandIDs:  ids,
		Stops:      stops,
		Segments:   segments,
		Distance:   distance,
		Efficiency: efficiency,
		Start:      demands[0].Time,
		status:     StatusNotStarted,
	}, nil
}

// Efficiency is the summed direct distance of the demands divided by the
// pooled route distance. A zero-length route is neutral (1.0).
func Efficiency(demands []models.Demand, routeDistance float64) float64 {
	if routeDistance == 0 {
		return 1.0
	}

	individual := 0.0
	for _, d := range demands {
		individual += d.DirectDistance()
	}
	return individual / routeDistance
}

// Schedule computes duration and end time from the vehicle speed
func (r *Ride) Schedule(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, speed)
	}
	r.Duration = r.Distance / speed
	r.End = r.Start + r.Duration
	return nil
}

// Status returns the current lifecycle state
func (r *Ride) Status() Status {
	return r.status
}

// StartRide marks the ride as in progress
func (r *Ride) StartRide() error {
	if r.status != StatusNotStarted {
		return fmt.Errorf("%w: ride %d is %s", ErrInvalidTransition, r.ID, r.status)
	}
	r.status = StatusOngoing
	return nil
}

// MarkDone completes the ride and every segment on its route
func (r *Ride) MarkDone() {
	for i := range r.Segments {
		r.Segments[i].Complete = true
	}
	r.status = StatusDone
}

// StopPoints returns the stop coordinates in route order
func (r *Ride) StopPoints() []models.Point {
	points := make([]models.Point, len(r.Stops))
	for i, s := range r.Stops {
		points[i] = s.Point
	}
	return points
}

// Record converts the ride to its output record
func (r *Ride) Record() models.RideRecord {
	ids := make([]int, len(r.DemandIDs))
	copy(ids, r.DemandIDs)

	return models.RideRecord{
		RideID:     r.ID,
		DemandIDs:  ids,
		Start:      r.Start,
		End:        r.End,
		Duration:   r.Duration,
		Distance:   r.Distance,
		Efficiency: r.Efficiency,
		Stops:      r.StopPoints(),
	}
}
