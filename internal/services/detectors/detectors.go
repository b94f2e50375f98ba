// Package detectors holds one Detector per strategy family and the builder
// that turns their proposals into priced signals.
package detectors

import (
	"math"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
)

// All returns every detector in evaluation order.
func All() []service.Detector {
	return []service.Detector{
		MeanReversion{},
		Momentum{},
		Scalping{},
		Trend{},
		SupportResistance{},
		Investment{},
	}
}

// ForHorizon filters ds to the detectors reading the given series.
func ForHorizon(ds []service.Detector, h models.Horizon) []service.Detector {
	out := make([]service.Detector, 0, len(ds))
	for _, d := range ds {
		if d.Horizon() == h {
			out = append(out, d)
		}
	}
	return out
}

// nearBy reports |a-b|/a < tol; false for NaN or a zero base.
func nearBy(a, b, tol float64) bool {
	if a == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b)/a < tol
}
