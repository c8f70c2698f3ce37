package input

import (
	"log"
	"math"

	"github.com/passbi/ridepool/internal/models"
)

// ValidateDemands removes demands with non-finite fields.
// Duplicate IDs and out-of-order request times are reported but kept:
// the dispatcher assumes arrival order and does not enforce it.
func ValidateDemands(demands []models.Demand) []models.Demand {
	cleaned := make([]models.Demand, 0, len(demands))
	seen := make(map[int]bool, len(demands))
	lastTime := math.Inf(-1)

	for _, d := range demands {
		if !finite(d.Time, d.Origin.X, d.Origin.Y, d.Destination.X, d.Destination.Y) {
			log.Printf("Warning: demand %d has non-finite values, skipping", d.ID)
			continue
		}
		if seen[d.ID] {
			log.Printf("Warning: duplicate demand id %d", d.ID)
		}
		seen[d.ID] = true

		if d.Time < lastTime {
			log.Printf("Warning: demand %d requested at %.2f, before previous demand at %.2f", d.ID, d.Time, lastTime)
		}
		lastTime = d.Time

		cleaned = append(cleaned, d)
	}

	if len(cleaned) < len(demands) {
		log.Printf("Cleaned demands: removed %d invalid demands", len(demands)-len(cleaned))
	}

	return cleaned
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
