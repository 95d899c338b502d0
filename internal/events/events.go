// Package events publishes settlement outcomes for follow-up consumers
// such as receipt mailers and operator alerting. Publishing is best-effort;
// a failed publish is logged and never fails the checkout.
package events

import (
	"context"
	"time"
)

// Subjects for settlement events.
const (
	SubjectOrderCreated     = "settlement.order_created"
	SubjectSettlementFailed = "settlement.failed"
)

// OrderCreated is emitted when a settled payment produced an order.
type OrderCreated struct {
	AuthorizationID string    `json:"authorization_id"`
	OrderID         int64     `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	AmountMinor     int64     `json:"amount_minor"`
	Currency        string    `json:"currency"`
	Paid            bool      `json:"paid"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// SettlementFailed is emitted when a checkout attempt ended in a failure
// state. For post-payment failures RecoveryReference carries the
// authorization ID an operator needs.
type SettlementFailed struct {
	AuthorizationID   string    `json:"authorization_id,omitempty"`
	Reason            string    `json:"reason"`
	RecoveryReference string    `json:"recovery_reference,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher emits settlement events.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreated) error
	PublishSettlementFailed(ctx context.Context, event SettlementFailed) error
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, OrderCreated) error { return nil }

func (NopPublisher) PublishSettlementFailed(context.Context, SettlementFailed) error { return nil }
