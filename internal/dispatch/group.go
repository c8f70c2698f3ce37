package dispatch

import (
	"errors"

	"github.com/passbi/ridepool/internal/models"
)

// ErrGroupFull is returned when a group already holds capacity demands
var ErrGroupFull = errors.New("demand group is full")

// Group is the candidate set of demands being evaluated for pooling.
// It is append-only; only the most recent demand can be removed.
type Group struct {
	members  []models.Demand
	capacity int
}

// NewGroup creates an empty group bounded by the vehicle capacity
func NewGroup(capacity int) *Group {
	return &Group{
		members:  make([]models.Demand, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a demand to the group
func (g *Group) Add(d models.Demand) error {
	if g.Full() {
		return ErrGroupFull
	}
	g.members = append(g.members, d)
	return nil
}

// RemoveLast removes the most recently added demand
func (g *Group) RemoveLast() (models.Demand, bool) {
	if len(g.members) == 0 {
		return models.Demand{}, false
	}
	last := g.members[len(g.members)-1]
	g.members = g.members[:len(g.members)-1]
	return last, true
}

func (g *Group) Len() int      { return len(g.members) }
func (g *Group) Capacity() int { return g.capacity }
func (g *Group) Empty() bool   { return len(g.members) == 0 }
func (g *Group) Full() bool    { return len(g.members) >= g.capacity }

// First returns the demand that opened the group
func (g *Group) First() (models.Demand, bool) {
	if len(g.members) == 0 {
		return models.Demand{}, false
	}
	return g.members[0], true
}

// Members returns a copy of the group's demands in insertion order
func (g *Group) Members() []models.Demand {
	out := make([]models.Demand, len(g.members))
	copy(out, g.members)
	return out
}

// With returns the members followed by candidate, leaving the group unchanged
func (g *Group) With(candidate models.Demand) []models.Demand {
	out := make([]models.Demand, len(g.members), len(g.members)+1)
	copy(out, g.members)
	return append(out, candidate)
}
