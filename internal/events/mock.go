package events

import (
	"context"
	"sync"
)

// RecordingPublisher collects published events for assertions in tests.
type RecordingPublisher struct {
	mu       sync.Mutex
	Created  []OrderCreated
	Failed   []SettlementFailed
	FailWith error
}

var _ Publisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) PublishOrderCreated(ctx context.Context, event OrderCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return p.FailWith
	}
	p.Created = append(p.Created, event)
	return nil
}

func (p *RecordingPublisher) PublishSettlementFailed(ctx context.Context, event SettlementFailed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return p.FailWith
	}
	p.Failed = append(p.Failed, event)
	return nil
}
