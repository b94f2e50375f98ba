package api

import (
	"time"

	"SignalPulse/internal/domain/models"
)

// CycleResponse is the HTTP view of a detection cycle.
type CycleResponse struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Symbols    int               `json:"symbols"`
	Candidates int               `json:"candidates"`
	Emitted    []models.Signal   `json:"emitted"`
	Failures   map[string]string `json:"failures,omitempty"`
}

func toCycleResponse(r models.CycleResult) CycleResponse {
	emitted := r.Emitted
	if emitted == nil {
		emitted = []models.Signal{}
	}
	return CycleResponse{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Symbols:    r.Symbols,
		Candidates: r.Candidates,
		Emitted:    emitted,
		Failures:   r.Failures,
	}
}

func scopeOf(kind, value string) models.Scope {
	switch models.ScopeKind(kind) {
	case models.ScopeAssetClass:
		return models.Scope{Kind: models.ScopeAssetClass, Value: value}
	case models.ScopeStrategy:
		return models.Scope{Kind: models.ScopeStrategy, Value: value}
	default:
		return models.AllScope()
	}
}
