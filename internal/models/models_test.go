package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
	}{
		{"Zero distance", Point{1, 1}, Point{1, 1}, 0},
		{"Horizontal", Point{0, 0}, Point{10, 0}, 10},
		{"3-4-5 triangle", Point{0, 0}, Point{3, 4}, 5},
		{"Negative coordinates", Point{-1, -1}, Point{2, 3}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.expected, Distance(tt.b, tt.a), 1e-9)
		})
	}
}

func TestDemandDistances(t *testing.T) {
	a := Demand{ID: 1, Origin: Point{0, 0}, Destination: Point{10, 0}}
	b := Demand{ID: 2, Origin: Point{0, 3}, Destination: Point{14, 3}}

	assert.InDelta(t, 10.0, a.DirectDistance(), 1e-9)
	assert.InDelta(t, 3.0, a.OriginDistance(b), 1e-9)
	assert.InDelta(t, 5.0, a.DestinationDistance(b), 1e-9)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "START", EventStart.String())
	assert.Equal(t, "END", EventEnd.String())
	assert.Equal(t, "EventKind(7)", EventKind(7).String())
}

func TestParamsValidate(t *testing.T) {
	valid := Params{Capacity: 2, Speed: 1, MaxTimeGap: 5, MaxOriginDistance: 10, MaxDestinationDistance: 10, MinEfficiency: 0.5}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"Zero capacity", func(p *Params) { p.Capacity = 0 }},
		{"Zero speed", func(p *Params) { p.Speed = 0 }},
		{"Negative time gap", func(p *Params) { p.MaxTimeGap = -1 }},
		{"Negative origin distance", func(p *Params) { p.MaxOriginDistance = -1 }},
		{"Negative destination distance", func(p *Params) { p.MaxDestinationDistance = -0.1 }},
		{"Zero efficiency", func(p *Params) { p.MinEfficiency = 0 }},
		{"NaN speed", func(p *Params) { p.Speed = math.NaN() }},
		{"Infinite distance", func(p *Params) { p.MaxOriginDistance = math.Inf(1) }},
		{"Negative demand count", func(p *Params) { p.DemandCount = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParams))
		})
	}
}

func TestRideRecordStopCount(t *testing.T) {
	r := RideRecord{Stops: []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}}
	assert.Equal(t, 4, r.StopCount())
}
