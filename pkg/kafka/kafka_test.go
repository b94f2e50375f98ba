package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestProducer_PublishBatch(t *testing.T) {
	t.Parallel()

	w := &memWriter{}
	reg := prometheus.NewRegistry()
	p := NewProducerWithWriter(w, "snappy", reg)

	err := p.PublishBatch(context.Background(), "signals.emitted", []Message{
		{Key: []byte("a"), Value: map[string]int{"n": 1}},
		{Key: []byte("b"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "signals.emitted", w.msgs[0].Topic)

	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 1, got["n"])
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("signals.emitted", "snappy", "ok")))

	require.NoError(t, p.PublishBatch(context.Background(), "x", nil))

	w.err = errors.New("broker down")
	err = p.Publish(context.Background(), "signals.closed", nil, "x")
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("signals.closed", "snappy", "error")))
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(nil)
	assert.Error(t, err)
}

type flakyHandler struct {
	fails int
	calls int
	panic bool
}

func (h *flakyHandler) Topic() string { return "t" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.panic {
		panic("bad payload")
	}
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

func TestConsumer_ProcessRetries(t *testing.T) {
	t.Parallel()

	c, err := NewConsumer(nil, nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)

	ok := &flakyHandler{fails: 2}
	require.NoError(t, c.process(context.Background(), ok, nil))
	assert.Equal(t, 3, ok.calls)

	failing := &flakyHandler{fails: 10}
	assert.Error(t, c.process(context.Background(), failing, nil))
	assert.Equal(t, 3, failing.calls, "one try plus two retries")

	panicky := &flakyHandler{panic: true}
	assert.ErrorContains(t, c.process(context.Background(), panicky, nil), "handler panic")
}

func TestBackoffWithJitter(t *testing.T) {
	t.Parallel()

	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
