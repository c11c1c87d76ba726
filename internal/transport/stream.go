package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// Stream carries frames over a byte stream.
type Stream struct {
	rwc    io.ReadWriteCloser
	limits frame.Limits

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewStream(rwc io.ReadWriteCloser, limits frame.Limits) *Stream {
	return &Stream{rwc: rwc, limits: limits, closed: make(chan struct{})}
}

func (s *Stream) Send(ctx context.Context, f frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if d, ok := s.rwc.(deadliner); ok {
		_ = d.SetWriteDeadline(deadline(ctx))
	}
	if err := frame.WriteFrame(s.rwc, f, s.limits); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *Stream) Receive(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if d, ok := s.rwc.(deadliner); ok {
		_ = d.SetReadDeadline(deadline(ctx))
	}
	stop := watch(ctx, s)
	f, err := frame.ReadFrame(s.rwc, s.limits)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return frame.Frame{}, ctx.Err()
		}
		return frame.Frame{}, s.mapErr(err)
	}
	return f, nil
}

func (s *Stream) mapErr(err error) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.rwc.Close()
	})
	return err
}

// Dial opens a TCP (or TLS when tlsCfg is non-nil) stream to address.
func Dial(ctx context.Context, address string, tlsCfg *tls.Config, limits frame.Limits) (*Stream, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if tlsCfg != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: tlsCfg}
		conn, err = td.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf("transport.Dial address=%s tls=%t", address, tlsCfg != nil)
	return NewStream(conn, limits), nil
}

// Listen opens a TCP (or TLS when tlsCfg is non-nil) listener.
func Listen(address string, tlsCfg *tls.Config) (net.Listener, error) {
	if tlsCfg != nil {
		return tls.Listen("tcp", address, tlsCfg)
	}
	return net.Listen("tcp", address)
}

// Serve accepts streams on ln until ctx ends, handing each to handle on its own goroutine.
func Serve(ctx context.Context, ln net.Listener, limits frame.Limits, handle func(context.Context, Conn)) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		log.Debug().Msgf("transport.Serve accepted remote=%s", conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewStream(conn, limits)
			defer s.Close()
			handle(ctx, s)
		}()
	}
}
