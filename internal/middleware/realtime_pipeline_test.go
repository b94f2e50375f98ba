package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/models"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordCycle(float64, int, int, int) {}
func (m *nopMetrics) RecordProposal(string, bool)        {}
func (m *nopMetrics) RecordFetch(string, float64, error) {}
func (m *nopMetrics) RecordAttribution(string)           {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

type recordingHandler struct {
	mu    sync.Mutex
	fail  int
	ticks []models.PriceTick
}

func (h *recordingHandler) HandleTick(_ context.Context, t models.PriceTick) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail > 0 {
		h.fail--
		return errors.New("downstream busy")
	}
	h.ticks = append(h.ticks, t)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ticks)
}

var t0 = time.Unix(1741000000, 0)

func tick(sym string, price float64, at time.Time) models.PriceTick {
	return models.PriceTick{Symbol: sym, Price: price, Volume: 1, Time: at}
}

func TestPipeline_ValidatesAndThrottles(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	m := &nopMetrics{}
	p := NewRealtimePipeline(h, m, WithMaxRPS(2))
	ctx := context.Background()

	assert.Error(t, p.HandleTick(ctx, models.PriceTick{Price: 1, Time: t0}))
	assert.Error(t, p.HandleTick(ctx, tick("AAPL", 0, t0)))
	assert.Error(t, p.HandleTick(ctx, tick("AAPL", 1, time.Time{})))
	assert.Equal(t, 3, m.errors["pipeline_validate"])

	require.NoError(t, p.HandleTick(ctx, tick("AAPL", 100, t0)))
	require.NoError(t, p.HandleTick(ctx, tick("AAPL", 101, t0.Add(100*time.Millisecond))))
	require.NoError(t, p.HandleTick(ctx, tick("MSFT", 300, t0)))
	assert.Equal(t, 2, h.count(), "second AAPL tick within 500ms is dropped")

	require.NoError(t, p.HandleTick(ctx, tick("AAPL", 102, t0.Add(600*time.Millisecond))))
	assert.Equal(t, 3, h.count())
}

func TestPipeline_BuffersAndRetries(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{fail: 1}
	m := &nopMetrics{}
	p := NewRealtimePipeline(h, m, WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.HandleTick(ctx, tick("AAPL", 100, t0))
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool { return h.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
