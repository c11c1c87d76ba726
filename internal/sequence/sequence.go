// Package sequence provides the per-stream sequence counter and the provenance
// identifiers stamped onto outbound events.
package sequence

import (
	"crypto/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Counter hands out strictly increasing sequence numbers for one stream.
type Counter struct {
	last atomic.Int64
}

// NewCounter starts a counter whose first Next returns last+1.
func NewCounter(last int64) *Counter {
	c := &Counter{}
	c.last.Store(last)
	return c
}

// Next reserves and returns the next sequence number.
func (c *Counter) Next() int64 {
	return c.last.Add(1)
}

// Resume raises the counter to last; it never moves backwards.
func (c *Counter) Resume(last int64) {
	for {
		cur := c.last.Load()
		if last <= cur || c.last.CompareAndSwap(cur, last) {
			return
		}
	}
}

// Last returns the most recently reserved number.
func (c *Counter) Last() int64 {
	return c.last.Load()
}

// ParticipationID returns configured when set, otherwise a fresh random uuid.
func ParticipationID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	return uuid.NewString()
}

// IDs generates lexically sortable ULID strings, optionally prefixed.
// Safe for concurrent use.
type IDs struct {
	prefix  string
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs returns a generator whose ids start with prefix.
func NewIDs(prefix string) *IDs {
	return &IDs{prefix: prefix, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new id, greater than every id previously returned by g.
func (g *IDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Now(), g.entropy)
	return g.prefix + id.String()
}

// CommandIDs returns the generator used for locally synthesized command ids.
func CommandIDs() *IDs { return NewIDs("cmd-") }

// NotificationIDs returns the generator used by the editing API.
func NotificationIDs() *IDs { return NewIDs("ntf-") }
