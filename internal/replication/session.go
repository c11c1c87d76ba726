package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/treesync/internal/journal"
	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/schema"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Role decides who speaks first in the handshake.
type Role int

const (
	// Initiator sends hello and waits for hello_ack.
	Initiator Role = iota
	// Acceptor waits for hello, checks it and answers.
	Acceptor
)

func (r Role) String() string {
	if r == Acceptor {
		return "acceptor"
	}
	return "initiator"
}

// link is the state of one connection.
type link struct {
	p        *Peer
	conn     transport.Conn
	remote   string
	sentUpTo int64
	inbox    chan wire.Event
}

// Run performs the handshake on conn and replicates until ctx ends, the
// connection drops, or a delta is rejected by either side. conn is closed on return.
// Cancellation of ctx is not an error.
func (p *Peer) Run(ctx context.Context, conn transport.Conn, role Role) error {
	if !p.running.CompareAndSwap(false, true) {
		_ = conn.Close()
		return ErrBusy
	}
	defer p.running.Store(false)
	defer conn.Close()

	remote, peerLast, err := p.handshake(ctx, conn, role)
	if err != nil {
		log.Warn().Msgf("replication.Peer.Run stream=%s role=%s handshake err=%v", p.stream, role, err)
		return err
	}
	p.setRemote(remote)
	defer p.setRemote("")
	log.Info().Msgf("replication.Peer.Run stream=%s role=%s remote=%s peer_last=%d", p.stream, role, remote, peerLast)

	if err := p.resume(ctx, peerLast); err != nil {
		return err
	}

	l := &link{
		p:        p,
		conn:     conn,
		remote:   remote,
		sentUpTo: peerLast,
		inbox:    make(chan wire.Event, p.cfg.InboxDepth),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error { return l.read(gctx) })
	g.Go(func() error { return l.apply(gctx) })
	g.Go(func() error { return l.write(gctx) })

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	log.Warn().Msgf("replication.Peer.Run stream=%s remote=%s ended err=%v", p.stream, remote, err)
	return err
}

func (p *Peer) hello() session.Hello {
	return session.Hello{
		ParticipationID: p.mapper.ParticipationID(),
		ProtocolVersion: p.mapper.Codec().Version(),
		Stream:          p.stream,
		LastSequence:    p.recv.LastSequence(),
	}
}

// handshake returns the remote participation id and the last sequence number
// the remote has applied from this peer.
func (p *Peer) handshake(ctx context.Context, conn transport.Conn, role Role) (string, int64, error) {
	if p.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
		defer cancel()
	}
	local := p.hello()

	if role == Initiator {
		if err := conn.Send(ctx, session.EncodeHelloFrame(p.nextMessageID(), local, p.cfg.AuthToken)); err != nil {
			return "", 0, fmt.Errorf("send hello: %w", err)
		}
		f, err := conn.Receive(ctx)
		if err != nil {
			return "", 0, fmt.Errorf("receive hello_ack: %w", err)
		}
		ack, err := session.DecodeHelloAckFrame(f)
		if err != nil {
			return "", 0, err
		}
		if err := ack.Err(); err != nil {
			return "", 0, err
		}
		if ack.ProtocolVersion != local.ProtocolVersion {
			return "", 0, fmt.Errorf("%w: local=%q remote=%q", session.ErrVersionMismatch, local.ProtocolVersion, ack.ProtocolVersion)
		}
		return ack.ParticipationID, ack.LastSequence, nil
	}

	f, err := conn.Receive(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("receive hello: %w", err)
	}
	var remote session.Hello
	err = session.Authenticate(p.cfg.AuthToken, f)
	if err == nil {
		remote, err = session.DecodeHelloFrame(f)
	}
	if err == nil {
		err = session.Negotiate(local, remote)
	}
	ack := session.HelloAck{
		ParticipationID: local.ParticipationID,
		ProtocolVersion: local.ProtocolVersion,
		Status:          schema.StatusAccepted,
		LastSequence:    local.LastSequence,
	}
	if err != nil {
		ack.Status = schema.StatusRejected
		ack.Code = ErrorCode(err)
		ack.Message = err.Error()
	}
	if sendErr := conn.Send(ctx, session.EncodeHelloAckFrame(p.nextMessageID(), ack)); sendErr != nil && err == nil {
		err = fmt.Errorf("send hello_ack: %w", sendErr)
	}
	if err != nil {
		return "", 0, err
	}
	return remote.ParticipationID, remote.LastSequence, nil
}

// resume drops deltas the remote already has and reloads journaled ones it lacks.
func (p *Peer) resume(ctx context.Context, peerLast int64) error {
	for _, item := range p.outbox.List() {
		if item.Sequence <= peerLast {
			p.outbox.Remove(item.Sequence)
		}
	}
	if p.journal != nil {
		_, err := journal.Replay(ctx, p.journal, OutboundStream(p.stream), journal.ReplayOptions{AfterSeq: peerLast}, func(_ context.Context, e journal.Entry) error {
			if _, ok := p.outbox.Get(e.Seq); ok {
				return nil
			}
			ev, err := e.Event()
			if err != nil {
				return err
			}
			f, err := session.EncodeDeltaFrame(p.nextMessageID(), ev)
			if err != nil {
				return err
			}
			p.outbox.Upsert(session.PendingDelta{Sequence: e.Seq, Kind: e.Kind, Frame: f, QueuedAt: e.RecordedAt})
			return nil
		})
		if err != nil {
			return fmt.Errorf("reload outbound journal: %w", err)
		}
	}
	if pending := p.outbox.List(); len(pending) > 0 && pending[0].Sequence > peerLast+1 {
		log.Warn().Msgf("replication.Peer.resume stream=%s gap peer_last=%d first_pending=%d", p.stream, peerLast, pending[0].Sequence)
	}
	observability.SetOutboxPending(p.stream, p.outbox.Len())
	return nil
}

// read decodes inbound frames on the reader goroutine and queues deltas for apply.
func (l *link) read(ctx context.Context) error {
	defer close(l.inbox)
	for {
		f, err := l.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch f.Header.MessageType {
		case schema.MsgDelta:
			ev, err := session.DecodeDeltaFrame(f)
			if err != nil {
				seq, _ := session.DeltaSequence(f)
				l.reject(ctx, seq, err)
				return err
			}
			select {
			case l.inbox <- ev:
			case <-ctx.Done():
				return nil
			}
		case schema.MsgAck:
			if err := l.acked(f); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s after handshake", ErrProtocol, schema.Name(f.Header.MessageType))
		}
	}
}

func (l *link) acked(f frame.Frame) error {
	ack, err := session.DecodeAckFrame(f)
	if err != nil {
		return err
	}
	observability.RecordAck(l.p.stream, "in", ack.Status)
	if ack.Status == schema.StatusRejected {
		return fmt.Errorf("%w: seq=%d code=%s: %s", ErrPeerRejected, ack.Sequence, ack.Code, ack.Message)
	}
	l.p.outbox.Remove(ack.Sequence)
	observability.SetOutboxPending(l.p.stream, l.p.outbox.Len())
	log.Debug().Msgf("replication.link.acked stream=%s seq=%d status=%s", l.p.stream, ack.Sequence, ack.Status)
	return nil
}

// apply is the single consumer of the inbox.
func (l *link) apply(ctx context.Context) error {
	for ev := range l.inbox {
		if err := l.p.recv.Receive(ev); err != nil {
			l.reject(ctx, ev.SequenceNumber, err)
			return fmt.Errorf("apply seq=%d: %w", ev.SequenceNumber, err)
		}
		if l.p.journal != nil {
			// applied deltas are journaled even when the session is ending
			if err := l.p.journal.AppendEvent(context.WithoutCancel(ctx), l.p.stream, l.remote, ev); err != nil {
				log.Error().Msgf("replication.link.apply journal stream=%s seq=%d err=%v", l.p.stream, ev.SequenceNumber, err)
				err = fmt.Errorf("%w: seq=%d: %v", ErrJournal, ev.SequenceNumber, err)
				l.reject(ctx, ev.SequenceNumber, err)
				return err
			}
		}
		if err := l.send(ctx, session.EncodeAckFrame(l.p.nextMessageID(), session.Ack{
			Sequence: ev.SequenceNumber,
			Status:   schema.StatusApplied,
		})); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		observability.RecordAck(l.p.stream, "out", schema.StatusApplied)
	}
	return nil
}

// reject reports err to the remote; delivery is best effort since the session is ending.
func (l *link) reject(ctx context.Context, seq int64, err error) {
	code := ErrorCode(err)
	log.Warn().Msgf("replication.link.reject stream=%s seq=%d code=%s err=%v", l.p.stream, seq, code, err)
	sendErr := l.send(ctx, session.EncodeAckFrame(l.p.nextMessageID(), session.Ack{
		Sequence: seq,
		Status:   schema.StatusRejected,
		Code:     code,
		Message:  err.Error(),
	}))
	if sendErr == nil {
		observability.RecordAck(l.p.stream, "out", schema.StatusRejected)
	}
}

func (l *link) send(ctx context.Context, f frame.Frame) error {
	if l.p.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.p.cfg.WriteTimeout)
		defer cancel()
	}
	return l.conn.Send(ctx, f)
}

// write sends queued deltas in sequence order and watches ack deadlines.
func (l *link) write(ctx context.Context) error {
	var tick <-chan time.Time
	if l.p.cfg.AckTimeout > 0 {
		interval := l.p.cfg.AckTimeout / 4
		if interval < 10*time.Millisecond {
			interval = 10 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	if err := l.flush(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.p.wake:
			if err := l.flush(ctx); err != nil {
				return err
			}
		case now := <-tick:
			if overdue := l.p.outbox.Overdue(now); len(overdue) > 0 {
				return fmt.Errorf("%w: seq=%d attempts=%d", ErrAckTimeout, overdue[0].Sequence, overdue[0].Attempts)
			}
		}
	}
}

func (l *link) flush(ctx context.Context) error {
	for _, item := range l.p.outbox.List() {
		if item.Sequence <= l.sentUpTo {
			continue
		}
		if err := l.send(ctx, item.Frame); err != nil {
			l.p.outbox.MarkAttempt(item.Sequence, time.Now(), l.p.cfg.AckTimeout, err.Error())
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		l.p.outbox.MarkAttempt(item.Sequence, time.Now(), l.p.cfg.AckTimeout, "")
		l.sentUpTo = item.Sequence
		observability.RecordSend(l.p.stream, item.Kind)
	}
	return nil
}
