// Package selector applies the global quality bar to a cycle's candidates
// and keeps the best of them.
package selector

import (
	"sort"

	"SignalPulse/internal/domain/models"
)

type Options struct {
	MinConfidence int
	MinRiskReward float64
	// MaxSignals caps the output; zero or less means no cap.
	MaxSignals int
	// FamilyMinConfidence raises the bar per setup (MOMENTUM, VALUE, ...).
	FamilyMinConfidence map[string]int
}

// Select filters candidates by confidence and risk-reward, ranks survivors
// by confidence then risk-reward (both descending) and caps the result.
// Candidates that tie on both keep their arrival order.
func Select(cands []models.Candidate, opts Options) []models.Signal {
	kept := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		if passes(c.Signal, opts) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Signal, kept[j].Signal
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.RiskReward != b.RiskReward {
			return a.RiskReward > b.RiskReward
		}
		return kept[i].Seq < kept[j].Seq
	})

	if opts.MaxSignals > 0 && len(kept) > opts.MaxSignals {
		kept = kept[:opts.MaxSignals]
	}
	out := make([]models.Signal, len(kept))
	for i, c := range kept {
		out[i] = c.Signal
	}
	return out
}

func passes(s models.Signal, opts Options) bool {
	if s.Confidence < opts.MinConfidence || s.RiskReward < opts.MinRiskReward {
		return false
	}
	if floor, ok := opts.FamilyMinConfidence[s.Setup]; ok && s.Confidence < floor {
		return false
	}
	return true
}
