// Package transport moves whole frames between two peers.
//
// Implementations:
// - Pipe: in-memory pair, for tests and in-process replicas
// - Stream: any io.ReadWriteCloser (TCP, TLS) using the frame stream codec
// - WebSocket: one frame per binary websocket message
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
)

var ErrClosed = errors.New("transport: connection closed")

// Conn is a bidirectional frame connection. Send may be called concurrently with
// Receive; concurrent Sends are serialized. Receive has a single caller.
type Conn interface {
	Send(ctx context.Context, f frame.Frame) error
	Receive(ctx context.Context) (frame.Frame, error)
	Close() error
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// deadline returns ctx's deadline, or the zero time (no deadline).
func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}

// watch closes c when ctx ends before stop is called. Blocking reads on
// sockets only return on deadline or close, so cancellation closes the conn.
func watch(ctx context.Context, c Conn) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
