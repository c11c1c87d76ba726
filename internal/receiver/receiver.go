// Package receiver turns inbound wire events into local notifications.
//
// Ownership boundary:
// - per-stream sequence ordering of inbound events
// - wire to notification resolution through the stream's mapper
// - synchronous, ordered fan-out to subscribers (typically a replicator)
//
// Unresolvable or out-of-order input is returned to the caller, never dropped.
package receiver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/treesync/internal/mapper"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

var ErrOutOfOrder = errors.New("receiver: sequence number not increasing")

// Receiver decodes the events of one inbound stream. Subscribers must not call
// Receive on the same Receiver from inside Handle.
type Receiver struct {
	mu     sync.Mutex
	stream string
	m      *mapper.Mapper
	out    notification.Forwarder
	last   int64
}

func New(stream string, m *mapper.Mapper) *Receiver {
	return &Receiver{stream: stream, m: m}
}

func (r *Receiver) Stream() string { return r.stream }

// Subscribe registers h for every resolved notification.
func (r *Receiver) Subscribe(h notification.Handler) func() {
	return r.out.Subscribe(h)
}

// LastSequence returns the sequence number of the last dispatched event.
func (r *Receiver) LastSequence() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Resume continues ordering after seq, e.g. once a journal has been replayed.
func (r *Receiver) Resume(seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq > r.last {
		r.last = seq
	}
}

// Receive checks ordering, resolves ev and delivers it to every subscriber in
// subscription order. The first subscriber error is returned and the sequence
// position does not advance.
func (r *Receiver) Receive(ev wire.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := ev.SequenceNumber
	if seq <= r.last {
		observability.RecordReceive(r.stream, "out_of_order", seq)
		return fmt.Errorf("%w: stream=%s seq=%d last=%d", ErrOutOfOrder, r.stream, seq, r.last)
	}
	if gap := seq - r.last; gap > 1 && r.last > 0 {
		log.Warn().Msgf("receiver.Receiver.Receive stream=%s seq=%d gap=%d", r.stream, seq, gap-1)
	}

	n, err := r.m.FromWire(ev)
	if err != nil {
		observability.RecordReceive(r.stream, outcome(err), seq)
		return err
	}
	if err := r.out.Handle(n); err != nil {
		observability.RecordReceive(r.stream, "rejected", seq)
		return err
	}
	r.last = seq
	observability.RecordReceive(r.stream, "accepted", seq)
	log.Debug().Msgf("receiver.Receiver.Receive stream=%s seq=%d kind=%s", r.stream, seq, ev.MessageKind)
	return nil
}

func outcome(err error) string {
	var verr wire.ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, mapper.ErrUnresolvable), errors.Is(err, mapper.ErrDescendantsMismatch):
		return "unresolvable"
	default:
		return "error"
	}
}
