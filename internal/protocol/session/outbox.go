package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
)

// PendingDelta tracks one sent delta awaiting its ack.
type PendingDelta struct {
	Sequence      int64
	Kind          string
	Frame         frame.Frame
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	AckDeadlineAt time.Time
	LastError     string
}

// Outbox stores pending deltas by sequence number.
type Outbox struct {
	mu    sync.RWMutex
	items map[int64]PendingDelta
}

func NewOutbox() *Outbox {
	return &Outbox{
		items: make(map[int64]PendingDelta),
	}
}

func (o *Outbox) Upsert(item PendingDelta) {
	if item.Sequence <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[item.Sequence] = item
}

func (o *Outbox) MarkAttempt(seq int64, at time.Time, ackTimeout time.Duration, lastErr string) (PendingDelta, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[seq]
	if !ok {
		return PendingDelta{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.AckDeadlineAt = at.Add(ackTimeout)
	item.LastError = strings.TrimSpace(lastErr)
	o.items[seq] = item
	return item, true
}

func (o *Outbox) Remove(seq int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, seq)
}

func (o *Outbox) Get(seq int64) (PendingDelta, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[seq]
	return item, ok
}

func (o *Outbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

// List returns pending deltas in sequence order.
func (o *Outbox) List() []PendingDelta {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingDelta, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// Overdue returns pending deltas whose ack deadline passed at now, in sequence order.
func (o *Outbox) Overdue(now time.Time) []PendingDelta {
	var out []PendingDelta
	for _, item := range o.List() {
		if !item.AckDeadlineAt.IsZero() && now.After(item.AckDeadlineAt) {
			out = append(out, item)
		}
	}
	return out
}
