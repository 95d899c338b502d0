// Package journal records every settlement outcome durably, keyed by the
// payment authorization identifier. When a payment succeeds but no order
// exists (lost session, backend failure), the journal is where an operator
// finds the correlation reference needed to reconcile by hand.
package journal

import (
	"context"
	"time"
)

// Entry is one recorded settlement outcome.
type Entry struct {
	ID              int64
	AuthorizationID string
	State           string
	FailureReason   string
	OrderID         int64
	OrderNumber     string
	AmountMinor     int64
	Currency        string
	Detail          string
	CreatedAt       time.Time
}

// Journal is the settlement record store. Record must never block or fail
// the customer flow; callers log write errors and continue.
type Journal interface {
	// Record appends one settlement outcome.
	Record(ctx context.Context, entry Entry) error

	// ListFailures returns the most recent failed settlements, newest
	// first. This is the operator recovery surface.
	ListFailures(ctx context.Context, limit int) ([]Entry, error)
}
