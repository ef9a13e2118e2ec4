package repository

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgkafka "SignalForge/pkg/kafka"
)

// SignalEvent is the message written to the signals topic.
type SignalEvent struct {
	Event       string          `json:"event"`
	Key         string          `json:"key"`
	Category    models.Category `json:"category"`
	Date        string          `json:"date"`
	TimeSlot    string          `json:"time_slot"`
	Bias        models.Bias     `json:"bias"`
	Confidence  int             `json:"confidence"`
	Importance  int             `json:"importance"`
	Notify      bool            `json:"notify"`
	Summary     string          `json:"summary"`
	Posture     models.Posture  `json:"posture"`
	PublishedAt time.Time       `json:"published_at"`
	Signal      *models.Signal  `json:"signal"`
}

// KafkaPublisher emits a SignalEvent per stored signal, keyed by category
// so one category's events stay ordered.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Category), NewSignalEvent(s, p.now()), map[string]string{
		"event": "signal.published",
	})
}

// NewSignalEvent flattens the fields consumers filter on.
func NewSignalEvent(s *models.Signal, at time.Time) SignalEvent {
	return SignalEvent{
		Event:       "signal.published",
		Key:         signalKey(s),
		Category:    s.Category,
		Date:        s.Date,
		TimeSlot:    s.TimeSlot,
		Bias:        s.Bias.Bias,
		Confidence:  s.Bias.Confidence,
		Importance:  s.Importance,
		Notify:      s.Notify,
		Summary:     s.Summary.Summary,
		Posture:     s.Regime.Posture,
		PublishedAt: at.UTC(),
		Signal:      s,
	}
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

var _ domrepo.EventPublisher = NopPublisher{}

func (NopPublisher) PublishSignal(context.Context, *models.Signal) error { return nil }
func (NopPublisher) Close() error                                        { return nil }
