package repository

import (
	"context"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	pkgkafka "SignalPulse/pkg/kafka"
)

// BatchPublisher is the part of the Kafka producer the signal publisher uses.
type BatchPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSignalPublisher keys every message by signal ID so the emitted and
// closed events of one signal land on the same partition.
type KafkaSignalPublisher struct {
	producer     BatchPublisher
	emittedTopic string
	closedTopic  string
	now          func() time.Time
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(p BatchPublisher, emittedTopic, closedTopic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{
		producer:     p,
		emittedTopic: emittedTopic,
		closedTopic:  closedTopic,
		now:          time.Now,
	}
}

func (k *KafkaSignalPublisher) PublishEmitted(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	at := k.now().UTC()
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, s := range signals {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(s.ID),
			Value: models.SignalEvent{Event: models.EventSignalEmitted, Signal: s, OccurredAt: at},
		})
	}
	if err := k.producer.PublishBatch(ctx, k.emittedTopic, msgs); err != nil {
		return fmt.Errorf("publish emitted signals: %w", err)
	}
	return nil
}

func (k *KafkaSignalPublisher) PublishClosed(ctx context.Context, s models.Signal) error {
	ev := models.SignalEvent{Event: models.EventSignalClosed, Signal: s, OccurredAt: k.now().UTC()}
	if err := k.producer.Publish(ctx, k.closedTopic, []byte(s.ID), ev); err != nil {
		return fmt.Errorf("publish closed signal %s: %w", s.ID, err)
	}
	return nil
}

func (k *KafkaSignalPublisher) Close() error {
	return k.producer.Close()
}
