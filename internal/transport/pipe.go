package transport

import (
	"context"
	"sync"

	"github.com/danmuck/treesync/internal/protocol/frame"
)

// Pipe is one end of an in-memory connection.
type Pipe struct {
	in   <-chan frame.Frame
	out  chan<- frame.Frame
	done chan struct{}
	peer *Pipe
	once *sync.Once
}

// NewPipe returns two connected ends. buffer is the per-direction queue depth.
// Closing either end closes both.
func NewPipe(buffer int) (*Pipe, *Pipe) {
	ab := make(chan frame.Frame, buffer)
	ba := make(chan frame.Frame, buffer)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &Pipe{in: ba, out: ab, done: done, once: once}
	b := &Pipe{in: ab, out: ba, done: done, once: once}
	a.peer, b.peer = b, a
	return a, b
}

func (p *Pipe) Send(ctx context.Context, f frame.Frame) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- f:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive drains frames already queued before reporting a close.
func (p *Pipe) Receive(ctx context.Context) (frame.Frame, error) {
	select {
	case f := <-p.in:
		return f, nil
	default:
	}
	select {
	case f := <-p.in:
		return f, nil
	case <-p.done:
		select {
		case f := <-p.in:
			return f, nil
		default:
			return frame.Frame{}, ErrClosed
		}
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
