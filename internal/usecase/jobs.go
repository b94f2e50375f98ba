package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"SignalPulse/internal/services/attribution"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/queue"
	"SignalPulse/pkg/util"
)

const (
	JobAttributeSignal = "attribute_signal"
	JobDailyAnalysis   = "daily_analysis"
)

type AttributeSignalPayload struct {
	SignalID string `json:"signal_id"`
}

type DailyAnalysisPayload struct {
	// Date is YYYY-MM-DD; empty means yesterday.
	Date string `json:"date,omitempty"`
}

// AttributeSignalJob attributes one closed signal. Signals that are gone or
// have no exit are acknowledged rather than retried.
func AttributeSignalJob(perf *PerformanceService) queue.Job {
	return queue.JobFunc{
		Kind: JobAttributeSignal,
		Fn: func(ctx context.Context, payload json.RawMessage) error {
			p, err := queue.Decode[AttributeSignalPayload](payload)
			if err != nil {
				return err
			}
			_, err = perf.AttributeSignal(ctx, p.SignalID)
			if errors.Is(err, attribution.ErrNoExitData) || errors.Is(err, ErrSignalNotFound) {
				perf.log.Warn("attribution skipped", logger.String("signal_id", p.SignalID), logger.Error(err))
				return nil
			}
			return err
		},
	}
}

// DailyAnalysisJob runs the daily attribution and aggregate recompute.
func DailyAnalysisJob(perf *PerformanceService) queue.Job {
	return queue.JobFunc{
		Kind: JobDailyAnalysis,
		Fn: func(ctx context.Context, payload json.RawMessage) error {
			p, err := queue.Decode[DailyAnalysisPayload](payload)
			if err != nil {
				return err
			}
			date := perf.now().UTC().AddDate(0, 0, -1)
			if p.Date != "" {
				d, err := time.Parse(util.DateLayout, p.Date)
				if err != nil {
					return err
				}
				date = d
			}
			_, err = perf.RunDailyAnalysis(ctx, date)
			return err
		},
	}
}
