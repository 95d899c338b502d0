package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher publishes settlement events as JSON messages on NATS
// subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (p *NATSPublisher) PublishOrderCreated(ctx context.Context, event OrderCreated) error {
	return p.publish(SubjectOrderCreated, event)
}

func (p *NATSPublisher) PublishSettlementFailed(ctx context.Context, event SettlementFailed) error {
	return p.publish(SubjectSettlementFailed, event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encoding %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("events: publishing %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Msg("Event published")
	return nil
}
