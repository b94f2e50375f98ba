package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/services/attribution"
	pkgkafka "SignalPulse/pkg/kafka"
	"SignalPulse/pkg/queue"
)

// ClosedSignalHandler consumes signal.closed events. With a queue it defers
// attribution to the job workers, otherwise it attributes inline.
type ClosedSignalHandler struct {
	topic   string
	jobs    queue.Publisher
	perf    *PerformanceService
	metrics drepo.Metrics
}

var _ pkgkafka.MessageHandler = (*ClosedSignalHandler)(nil)

func NewClosedSignalHandler(topic string, jobs queue.Publisher, perf *PerformanceService, metrics drepo.Metrics) *ClosedSignalHandler {
	return &ClosedSignalHandler{topic: topic, jobs: jobs, perf: perf, metrics: metrics}
}

func (h *ClosedSignalHandler) Topic() string { return h.topic }

func (h *ClosedSignalHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode signal event: %w", err)
	}
	if ev.Event != models.EventSignalClosed || ev.Signal.ID == "" {
		return nil
	}

	if h.jobs != nil {
		return h.jobs.Enqueue(ctx, JobAttributeSignal, AttributeSignalPayload{SignalID: ev.Signal.ID})
	}
	_, err := h.perf.AttributeSignal(ctx, ev.Signal.ID)
	if errors.Is(err, attribution.ErrNoExitData) || errors.Is(err, ErrSignalNotFound) {
		return nil
	}
	return err
}
