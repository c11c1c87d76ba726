// Package replication runs replication sessions between two peers over a transport.
//
// Ownership boundary:
// - one Peer per stream: local forest, registry, mapper, receiver and replicator
// - outbound mapping of local edits into a pending-delta outbox
// - per-connection sessions: handshake, ordered single-consumer apply, acks, journal
//
// A rejected delta ends the session. Resynchronization is left to the operator.
package replication

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/journal"
	"github.com/danmuck/treesync/internal/mapper"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/receiver"
	"github.com/danmuck/treesync/internal/replicator"
	"github.com/rs/zerolog/log"
)

// Options wires a Peer. Forest, Registry and Mapper are required; the registry
// must already index the forest and be kept current by an identity.Tracker
// subscribed to the forest before the Peer.
type Options struct {
	Stream   string
	Forest   *partition.Forest
	Registry *identity.Registry
	Mapper   *mapper.Mapper
	Journal  *journal.Store
	Session  session.Config
	// ReceiveOnly disables forwarding of local edits.
	ReceiveOnly bool
}

// Peer is the long-lived replication endpoint of one stream. Its outbox
// survives reconnects; at most one session runs at a time.
type Peer struct {
	stream  string
	cfg     session.Config
	forest  *partition.Forest
	mapper  *mapper.Mapper
	recv    *receiver.Receiver
	rep     *replicator.Replicator
	journal *journal.Store
	outbox  *session.Outbox

	msgID       atomic.Uint64
	wake        chan struct{}
	running     atomic.Bool
	unsubscribe []func()

	mu     sync.RWMutex
	remote string
}

var _ notification.Handler = (*Peer)(nil)

func NewPeer(opts Options) (*Peer, error) {
	stream := strings.TrimSpace(opts.Stream)
	if stream == "" {
		return nil, fmt.Errorf("replication: stream is required")
	}
	if opts.Forest == nil || opts.Registry == nil || opts.Mapper == nil {
		return nil, fmt.Errorf("replication: forest, registry and mapper are required")
	}
	cfg := opts.Session
	if cfg.InboxDepth <= 0 {
		cfg.InboxDepth = session.DefaultConfig().InboxDepth
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = session.DefaultConfig().Limits
	}

	p := &Peer{
		stream:  stream,
		cfg:     cfg,
		forest:  opts.Forest,
		mapper:  opts.Mapper,
		recv:    receiver.New(stream, opts.Mapper),
		rep:     replicator.New(stream, opts.Forest, opts.Registry),
		journal: opts.Journal,
		outbox:  session.NewOutbox(),
		wake:    make(chan struct{}, 1),
	}
	p.unsubscribe = append(p.unsubscribe, p.recv.Subscribe(p.rep))
	if !opts.ReceiveOnly {
		p.unsubscribe = append(p.unsubscribe, opts.Forest.Subscribe(p))
	}
	return p, nil
}

func (p *Peer) Stream() string { return p.stream }

// OutboundStream names the journal stream holding a peer's own deltas.
func OutboundStream(stream string) string { return stream + ".out" }

// Limits returns the frame limits transports for this peer should enforce.
func (p *Peer) Limits() frame.Limits { return p.cfg.Limits }

// Receiver exposes the inbound side, e.g. for extra subscribers.
func (p *Peer) Receiver() *receiver.Receiver { return p.recv }

// Close detaches the peer from its forest and receiver.
func (p *Peer) Close() {
	for _, fn := range p.unsubscribe {
		fn()
	}
	p.unsubscribe = nil
}

// Handle maps one local notification to a delta and queues it. It runs on the
// editing goroutine and never blocks on the network. A delta that cannot be
// journaled is not queued.
func (p *Peer) Handle(n notification.Notification) error {
	ev, err := p.mapper.ToWire(n)
	if err != nil {
		log.Error().Msgf("replication.Peer.Handle stream=%s kind=%s err=%v", p.stream, n.Kind(), err)
		return err
	}
	f, err := session.EncodeDeltaFrame(p.nextMessageID(), ev)
	if err != nil {
		return err
	}
	if p.journal != nil {
		if err := p.journal.AppendEvent(context.Background(), OutboundStream(p.stream), p.mapper.ParticipationID(), ev); err != nil {
			log.Error().Msgf("replication.Peer.Handle journal stream=%s seq=%d err=%v", p.stream, ev.SequenceNumber, err)
			return fmt.Errorf("%w: seq=%d: %v", ErrJournal, ev.SequenceNumber, err)
		}
	}
	p.outbox.Upsert(session.PendingDelta{
		Sequence: ev.SequenceNumber,
		Kind:     ev.MessageKind,
		Frame:    f,
		QueuedAt: time.Now(),
	})
	observability.SetOutboxPending(p.stream, p.outbox.Len())
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Restore rebuilds the local replica from the journal: inbound deltas and the
// peer's own outbound deltas are applied in the order they were recorded.
// Inbound ordering and the outbound counter then resume after the replayed
// entries. It returns the last inbound sequence number.
func (p *Peer) Restore(ctx context.Context) (int64, error) {
	if p.journal == nil {
		return 0, nil
	}
	out := OutboundStream(p.stream)
	last, err := journal.ReplayMerged(ctx, p.journal, []string{p.stream, out}, func(_ context.Context, e journal.Entry) error {
		ev, err := e.Event()
		if err != nil {
			return err
		}
		if e.Stream == p.stream {
			return p.recv.Receive(ev)
		}
		n, err := p.mapper.FromWire(ev)
		if err != nil {
			return err
		}
		return p.rep.Apply(n)
	})
	if err != nil {
		return p.recv.LastSequence(), err
	}
	p.recv.Resume(last[p.stream])
	p.mapper.Sequence().Resume(last[out])
	log.Info().Msgf("replication.Peer.Restore stream=%s inbound=%d outbound=%d", p.stream, last[p.stream], last[out])
	return last[p.stream], nil
}

// Status is a point-in-time view of a peer.
type Status struct {
	Stream          string `json:"stream"`
	Connected       bool   `json:"connected"`
	Remote          string `json:"remote,omitempty"`
	InboundLast     int64  `json:"inbound_last"`
	OutboundLast    int64  `json:"outbound_last"`
	PendingOutbound int    `json:"pending_outbound"`
}

func (p *Peer) Status() Status {
	p.mu.RLock()
	remote := p.remote
	p.mu.RUnlock()
	return Status{
		Stream:          p.stream,
		Connected:       p.running.Load() && remote != "",
		Remote:          remote,
		InboundLast:     p.recv.LastSequence(),
		OutboundLast:    p.mapper.Sequence().Last(),
		PendingOutbound: p.outbox.Len(),
	}
}

func (p *Peer) setRemote(id string) {
	p.mu.Lock()
	p.remote = id
	p.mu.Unlock()
}

func (p *Peer) nextMessageID() uint64 {
	return p.msgID.Add(1)
}
