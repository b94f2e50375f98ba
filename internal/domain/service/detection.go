package service

import (
	"context"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/services/indicators"
)

// Detector inspects the latest bars of an indicator frame and proposes at most
// one trade idea.
type Detector interface {
	Strategy() models.Strategy
	Horizon() models.Horizon
	Detect(f *indicators.Frame) (models.Proposal, bool)
}

// ConfidenceScorer rates a proposal on the 1..10 scale.
type ConfidenceScorer interface {
	Score(f *indicators.Frame, strategy models.Strategy) int
}

// Attributor derives the performance record of a closed signal.
type Attributor interface {
	Attribute(ctx context.Context, s models.Signal) (models.PerformanceRecord, error)
}
