package dispatch

import (
	"os"
	"strconv"

	"github.com/passbi/ridepool/internal/scheduler"
)

// DefaultMaxRides bounds the rides table of a single run
const DefaultMaxRides = 200

// Limits holds the fixed table sizes of a simulation run
type Limits struct {
	MaxRides  int `json:"max_rides"`
	MaxEvents int `json:"max_events"`
}

// DefaultLimits returns the built-in table sizes
func DefaultLimits() Limits {
	return Limits{
		MaxRides:  DefaultMaxRides,
		MaxEvents: scheduler.DefaultCapacity,
	}
}

// LoadLimitsFromEnv loads table sizes from environment variables
func LoadLimitsFromEnv() Limits {
	maxRides, err := strconv.Atoi(getEnv("RIDEPOOL_MAX_RIDES", strconv.Itoa(DefaultMaxRides)))
	if err != nil || maxRides <= 0 {
		maxRides = DefaultMaxRides
	}
	maxEvents, err := strconv.Atoi(getEnv("RIDEPOOL_MAX_EVENTS", strconv.Itoa(scheduler.DefaultCapacity)))
	if err != nil || maxEvents <= 0 {
		maxEvents = scheduler.DefaultCapacity
	}

	return Limits{
		MaxRides:  maxRides,
		MaxEvents: maxEvents,
	}
}

// withDefaults fills unset limits
func (l Limits) withDefaults() Limits {
	if l.MaxRides <= 0 {
		l.MaxRides = DefaultMaxRides
	}
	if l.MaxEvents <= 0 {
		l.MaxEvents = scheduler.DefaultCapacity
	}
	return l
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
