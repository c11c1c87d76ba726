package transport

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/testutil/tlstest"
)

func exchange(t *testing.T, a, b Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := frame.New(3, 11, []byte("delta"))
	sent.Auth = []byte("token")
	errc := make(chan error, 1)
	go func() { errc <- a.Send(ctx, sent) }()

	got, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Header.MessageID != 11 || string(got.Payload) != "delta" {
		t.Fatalf("unexpected frame: %+v", got)
	}

	go func() { errc <- b.Send(ctx, frame.New(4, 12, nil)) }()
	back, err := a.Receive(ctx)
	if err != nil || back.Header.MessageID != 12 {
		t.Fatalf("reply: %+v err=%v", back.Header, err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("reply send: %v", err)
	}
}

func TestPipeExchangeAndClose(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe(4)
	exchange(t, a, b)

	ctx := context.Background()
	if err := a.Send(ctx, frame.New(3, 13, nil)); err != nil {
		t.Fatalf("queued send: %v", err)
	}
	_ = a.Close()
	f, err := b.Receive(ctx)
	if err != nil || f.Header.MessageID != 13 {
		t.Fatalf("queued frame lost on close: %+v err=%v", f.Header, err)
	}
	if _, err := b.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Send(ctx, frame.New(3, 14, nil)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
}

func TestPipeReceiveHonorsContext(t *testing.T) {
	testlog.Start(t)
	a, _ := NewPipe(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestStreamExchangeOverNetPipe(t *testing.T) {
	testlog.Start(t)
	c1, c2 := net.Pipe()
	a := NewStream(c1, frame.DefaultLimits())
	b := NewStream(c2, frame.DefaultLimits())
	defer a.Close()
	defer b.Close()
	exchange(t, a, b)

	_ = a.Close()
	if _, err := b.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after peer close, got %v", err)
	}
}

func TestStreamReceiveCancelClosesConn(t *testing.T) {
	testlog.Start(t)
	c1, c2 := net.Pipe()
	defer c2.Close()
	a := NewStream(c1, frame.DefaultLimits())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := a.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestServeAndDialTCP(t *testing.T) {
	testlog.Start(t)
	ln, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, ln, frame.DefaultLimits(), func(ctx context.Context, c Conn) {
			f, err := c.Receive(ctx)
			if err != nil {
				return
			}
			f.Header.MessageID++
			_ = c.Send(ctx, f)
		})
	}()

	client, err := Dial(ctx, ln.Addr().String(), nil, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if err := client.Send(ctx, frame.New(1, 1, []byte("hi"))); err != nil {
		t.Fatalf("send: %v", err)
	}
	echo, err := client.Receive(ctx)
	if err != nil || echo.Header.MessageID != 2 {
		t.Fatalf("echo: %+v err=%v", echo.Header, err)
	}

	cancel()
	if err := <-served; err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestServeAndDialMutualTLS(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "treesync-ca")
	srv := ca.Server(t, "replica")
	cli := ca.Client(t, "source")

	server := session.DefaultConfig()
	server.SecurityMode = session.SecurityModeProduction
	server.AuthToken = "s3cret"
	server.TLS = session.TLSConfig{Enabled: true, Mutual: true, CertFile: srv.CertFile, KeyFile: srv.KeyFile, CAFile: ca.CAFile()}
	if err := server.ValidateServerTransport(); err != nil {
		t.Fatalf("validate server: %v", err)
	}
	stls, err := server.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls: %v", err)
	}
	ln, err := Listen("127.0.0.1:0", stls)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, ln, frame.DefaultLimits(), func(ctx context.Context, c Conn) {
			f, err := c.Receive(ctx)
			if err != nil {
				return
			}
			_ = c.Send(ctx, frame.New(f.Header.MessageType, f.Header.MessageID, append([]byte("ack:"), f.Payload...)))
		})
	}()

	client := session.DefaultConfig()
	client.SecurityMode = session.SecurityModeProduction
	client.AuthToken = "s3cret"
	client.TLS = session.TLSConfig{Enabled: true, Mutual: true, CertFile: cli.CertFile, KeyFile: cli.KeyFile, CAFile: ca.CAFile()}
	if err := client.ValidateClientTransport(); err != nil {
		t.Fatalf("validate client: %v", err)
	}
	ctls, err := client.ClientTLSConfig(ln.Addr().String())
	if err != nil {
		t.Fatalf("client tls: %v", err)
	}
	conn, err := Dial(ctx, ln.Addr().String(), ctls, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.Send(ctx, frame.New(1, 7, []byte("delta"))); err != nil {
		t.Fatalf("send: %v", err)
	}
	reply, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if reply.Header.MessageID != 7 || string(reply.Payload) != "ack:delta" {
		t.Fatalf("reply=%+v payload=%q", reply.Header, reply.Payload)
	}

	cancel()
	if err := <-served; err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestWebSocketExchange(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := make(chan Conn, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(WebSocketHandler(ctx, frame.DefaultLimits(), func(_ context.Context, c Conn) {
		accepted <- c
		<-release
	}))
	defer srv.Close()
	defer close(release)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(ctx, url, nil, nil, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer client.Close()
	server := <-accepted

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exchange(t, client, server)
}
