package journal

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal keeps settlement entries in memory. Used in tests and
// when no database is configured.
type MemoryJournal struct {
	mu      sync.Mutex
	nextID  int64
	entries []Entry
}

var _ Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(ctx context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.nextID++
	entry.ID = j.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) ListFailures(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var failures []Entry
	for i := len(j.entries) - 1; i >= 0 && len(failures) < limit; i-- {
		if j.entries[i].FailureReason != "" {
			failures = append(failures, j.entries[i])
		}
	}
	return failures, nil
}

// Entries returns a copy of everything recorded, oldest first.
func (j *MemoryJournal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}
