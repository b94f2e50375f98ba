package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attributePayload struct {
	SignalID string `json:"signal_id"`
}

var fixedNow = time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T, cfg Config) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(nil, cfg, client, WithKeyPrefix("test"))
	q.now = func() time.Time { return fixedNow }
	q.newID = func() string { return "id-1" }
	return q, mock
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	q, mock := newTestQueue(t, Config{})
	want := mustJSON(t, Message{
		ID:         "id-1",
		Type:       "attribute_signal",
		Payload:    mustJSON(t, attributePayload{SignalID: "s1"}),
		EnqueuedAt: fixedNow,
	})
	mock.ExpectLPush("test:messages", want).SetVal(1)

	require.NoError(t, q.Enqueue(context.Background(), "attribute_signal", attributePayload{SignalID: "s1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_SuccessTouchesNothing(t *testing.T) {
	t.Parallel()

	q, mock := newTestQueue(t, Config{RetryLimit: 1})
	var got attributePayload
	q.Register(JobFunc{Kind: "attribute_signal", Fn: func(_ context.Context, p json.RawMessage) error {
		var err error
		got, err = Decode[attributePayload](p)
		return err
	}})

	q.process(context.Background(), Message{ID: "m", Type: "attribute_signal", Payload: json.RawMessage(`{"signal_id":"s9"}`)})
	assert.Equal(t, "s9", got.SignalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_FailureRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	q, mock := newTestQueue(t, Config{RetryLimit: 1, RetryDelay: time.Minute})
	q.Register(JobFunc{Kind: "daily_analysis", Fn: func(context.Context, json.RawMessage) error {
		return errors.New("clickhouse down")
	}})
	msg := Message{ID: "m", Type: "daily_analysis", Payload: json.RawMessage(`{}`)}

	retried := msg
	retried.Attempts = 1
	mock.ExpectZAdd("test:retry", redis.Z{Score: float64(fixedNow.Add(time.Minute).Unix()), Member: mustJSON(t, retried)}).SetVal(1)
	q.process(context.Background(), msg)

	mock.ExpectLPush("test:dlq", mustJSON(t, retried)).SetVal(1)
	q.process(context.Background(), retried)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_UnknownTypeDeadLetters(t *testing.T) {
	t.Parallel()

	q, mock := newTestQueue(t, Config{})
	msg := Message{ID: "m", Type: "nope"}
	mock.ExpectLPush("test:dlq", mustJSON(t, msg)).SetVal(1)
	q.process(context.Background(), msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecode(t *testing.T) {
	t.Parallel()

	_, err := Decode[attributePayload](nil)
	assert.Error(t, err)
	_, err = Decode[attributePayload](json.RawMessage(`[`))
	assert.Error(t, err)
}
