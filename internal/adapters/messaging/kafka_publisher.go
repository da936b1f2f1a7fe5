package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
)

// TransitionEvent is published once per committed deal transition.
type TransitionEvent struct {
	DealID          string            `json:"deal_id"`
	AgentUserID     uint              `json:"agent_user_id"`
	From            domain.DealStatus `json:"from"`
	To              domain.DealStatus `json:"to"`
	CommissionTotal string            `json:"commission_total"`
	CommissionAgent string            `json:"commission_agent"`
	HoldUntil       *time.Time        `json:"hold_until,omitempty"`
	Version         int               `json:"version"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransitionPublisher sends deal transitions to a Kafka topic, keyed by deal
// so that events of one deal stay ordered within a partition.
type TransitionPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter builds a writer that waits for all in-sync replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		WriteTimeout:           10 * time.Second,
	}
}

// NewTransitionPublisher creates a publisher. topic is only recorded for logs;
// the writer carries the destination.
func NewTransitionPublisher(writer MessageWriter, topic string) *TransitionPublisher {
	return &TransitionPublisher{writer: writer, topic: topic}
}

// OnTransition implements services.DealTransitionSideEffects.
func (p *TransitionPublisher) OnTransition(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) error {
	event := TransitionEvent{
		DealID:          deal.ID,
		AgentUserID:     deal.AgentUserID,
		From:            from,
		To:              to,
		CommissionTotal: deal.CommissionTotal.StringFixed(domain.MoneyPlaces),
		CommissionAgent: deal.CommissionAgent.StringFixed(domain.MoneyPlaces),
		HoldUntil:       deal.HoldUntil,
		Version:         deal.Version,
		OccurredAt:      deal.UpdatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transition event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(deal.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("deal.transition")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "failed to publish deal transition", "topic", p.topic, "deal_id", deal.ID, "error", err)
		return err
	}

	logger.Debug(ctx, "deal transition published", "topic", p.topic, "deal_id", deal.ID, "to", to)
	return nil
}

// Close flushes pending messages.
func (p *TransitionPublisher) Close() error {
	return p.writer.Close()
}
