package repository

import (
	"context"
	"errors"
	"time"

	"SignalPulse/internal/domain/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid signal status transition")
)

// MarketStream is a live trade feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type SignalFilter struct {
	Tiers  []models.Tier
	Status models.Status
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// SignalStore persists signals and owns the ACTIVE -> CLOSED/CANCELLED transition.
type SignalStore interface {
	// Insert stores new signals, skipping ones whose idempotency key exists.
	// It returns the signals that were actually created.
	Insert(ctx context.Context, signals []models.Signal) ([]models.Signal, error)
	Get(ctx context.Context, id string) (*models.Signal, error)
	List(ctx context.Context, f SignalFilter) ([]models.Signal, error)
	// Close records the exit once; a non-ACTIVE signal yields ErrInvalidTransition.
	Close(ctx context.Context, id string, exitPrice float64, exitTime time.Time) (*models.Signal, error)
	Cancel(ctx context.Context, id string) (*models.Signal, error)
	// ListUnattributed returns CLOSED signals that have no performance record yet.
	ListUnattributed(ctx context.Context, limit int) ([]models.Signal, error)
}

type PerformanceStore interface {
	// Save inserts the record unless one already exists for the signal.
	Save(ctx context.Context, rec models.PerformanceRecord) (bool, error)
	Get(ctx context.Context, signalID string) (*models.PerformanceRecord, error)
	// ListByEntryDate returns records whose signal was created in [from, to).
	ListByEntryDate(ctx context.Context, from, to time.Time) ([]models.PerformanceRecord, error)
}

type AggregateStore interface {
	// Upsert overwrites the rows for each (date, scope).
	Upsert(ctx context.Context, recs []models.AggregateMetricsRecord) error
	Get(ctx context.Context, date time.Time, scope models.Scope) (*models.AggregateMetricsRecord, error)
	Close() error
}

type SignalPublisher interface {
	PublishEmitted(ctx context.Context, signals []models.Signal) error
	PublishClosed(ctx context.Context, s models.Signal) error
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64, symbols, failed, emitted int)
	RecordProposal(strategy string, accepted bool)
	RecordFetch(provider string, seconds float64, err error)
	RecordAttribution(outcome string)
	RecordError(kind string)
}
