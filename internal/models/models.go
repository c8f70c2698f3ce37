package models

import (
	"errors"
	"fmt"
	"math"
)

// Point represents a location on the simulation plane
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Demand represents a single ride request
type Demand struct {
	ID          int     `json:"id"`
	Time        float64 `json:"time"`
	Origin      Point   `json:"origin"`
	Destination Point   `json:"destination"`
}

// DirectDistance is the length of the trip if it were served alone
func (d Demand) DirectDistance() float64 {
	return Distance(d.Origin, d.Destination)
}

// OriginDistance returns the distance between the origins of two demands
func (d Demand) OriginDistance(other Demand) float64 {
	return Distance(d.Origin, other.Origin)
}

// DestinationDistance returns the distance between the destinations of two demands
func (d Demand) DestinationDistance(other Demand) float64 {
	return Distance(d.Destination, other.Destination)
}

// StopKind represents the type of a stop on a ride route
type StopKind string

const (
	StopPickup  StopKind = "PICKUP"
	StopDropoff StopKind = "DROPOFF"
)

// Stop is one pickup or dropoff on a ride route.
// DemandIndex is the position of the originating demand within its group.
type Stop struct {
	Kind        StopKind `json:"kind"`
	DemandID    int      `json:"demand_id"`
	DemandIndex int      `json:"-"`
	Point       Point    `json:"point"`
}

// SegmentKind represents the type of leg between two consecutive stops
type SegmentKind string

const (
	SegmentPickup  SegmentKind = "PICKUP"  // pickup -> pickup
	SegmentTravel  SegmentKind = "TRAVEL"  // pickup -> dropoff
	SegmentDropoff SegmentKind = "DROPOFF" // dropoff -> dropoff
)

// Segment is a directed leg between two stops of the same ride.
// From and To index into the owning ride's stop sequence.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	From     int         `json:"from"`
	To       int         `json:"to"`
	Length   float64     `json:"length"`
	Complete bool        `json:"complete"`
}

// EventKind represents a ride state transition
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "START"
	case EventEnd:
		return "END"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event marks the instant a ride starts or ends
type Event struct {
	RideID int
	Time   float64
	Kind   EventKind
}

// Params holds the simulation parameters
type Params struct {
	Capacity               int     `json:"capacity"`                 // eta
	Speed                  float64 `json:"speed"`                    // gamma
	MaxTimeGap             float64 `json:"max_time_gap"`             // delta
	MaxOriginDistance      float64 `json:"max_origin_distance"`      // alpha
	MaxDestinationDistance float64 `json:"max_destination_distance"` // beta
	MinEfficiency          float64 `json:"min_efficiency"`           // lambda
	DemandCount            int     `json:"demand_count,omitempty"`
}

// ErrInvalidParams is returned when simulation parameters are out of range
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Validate checks parameter ranges
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"speed":                    p.Speed,
		"max_time_gap":             p.MaxTimeGap,
		"max_origin_distance":      p.MaxOriginDistance,
		"max_destination_distance": p.MaxDestinationDistance,
		"min_efficiency":           p.MinEfficiency,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParams, name)
		}
	}

	switch {
	case p.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidParams, p.Capacity)
	case p.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive, got %g", ErrInvalidParams, p.Speed)
	case p.MaxTimeGap < 0:
		return fmt.Errorf("%w: max_time_gap must be non-negative, got %g", ErrInvalidParams, p.MaxTimeGap)
	case p.MaxOriginDistance < 0:
		return fmt.Errorf("%w: max_origin_distance must be non-negative, got %g", ErrInvalidParams, p.MaxOriginDistance)
	case p.MaxDestinationDistance < 0:
		return fmt.Errorf("%w: max_destination_distance must be non-negative, got %g", ErrInvalidParams, p.MaxDestinationDistance)
	case p.MinEfficiency <= 0:
		return fmt.Errorf("%w: min_efficiency must be positive, got %g", ErrInvalidParams, p.MinEfficiency)
	case p.DemandCount < 0:
		return fmt.Errorf("%w: demand_count must be non-negative, got %d", ErrInvalidParams, p.DemandCount)
	}

	return nil
}

// RideRecord is the externally visible result of a completed ride
type RideRecord struct {
	RideID     int     `json:"ride_id"`
	DemandIDs  []int   `json:"demand_ids"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Duration   float64 `json:"duration"`
	Distance   float64 `json:"distance"`
	Efficiency float64 `json:"efficiency"`
	Stops      []Point `json:"stops"`
}

// StopCount returns the number of stops on the ride route
func (r RideRecord) StopCount() int {
	return len(r.Stops)
}
