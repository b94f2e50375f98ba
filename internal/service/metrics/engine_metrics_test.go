package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := New(prometheus.NewRegistry())

	r.RecordCycle(3.2, 10, 2, 4)
	r.RecordCycle(1.0, 10, 0, 1)
	assert.Equal(t, 18.0, testutil.ToFloat64(r.symbols.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.symbols.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.emitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lastCycleEmits))

	r.RecordProposal("MOMENTUM", true)
	r.RecordProposal("MOMENTUM", false)
	r.RecordProposal("MOMENTUM", false)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.proposals.WithLabelValues("MOMENTUM", "false")))

	r.RecordFetch("alpaca", 0.2, nil)
	r.RecordFetch("alpaca", 0.4, errors.New("429"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchErrors.WithLabelValues("alpaca")))

	r.RecordAttribution("saved")
	r.RecordError("publish")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attributions.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("publish")))
}
