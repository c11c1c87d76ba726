package session

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/schema"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/testutil/tlstest"
)

var namePtr = meta.Pointer{Language: "shapes", Version: "1", Key: "Line-name"}

func propertyEvent(seq int64) wire.Event {
	return wire.Event{
		MessageKind:    string(notification.KindPropertyChanged),
		SequenceNumber: seq,
		Node:           "line",
		Feature:        wire.Pointer(namePtr),
		NewValue:       wire.String("l2"),
		OldValue:       wire.String("l1"),
	}
}

// roundTrip pushes f through the stream codec.
func roundTrip(t *testing.T, f frame.Frame) frame.Frame {
	t.Helper()
	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf, f, frame.DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := frame.ReadFrame(&buf, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return out
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 1, rng)
	if got < 125*time.Millisecond || got > 375*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestRetryStopsOnSuccessAndGivesUp(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	calls := 0
	err := Retry(context.Background(), cfg, 5, nil, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("dial refused")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("retry: calls=%d err=%v", calls, err)
	}

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), cfg, 2, nil, func(int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("retry give up: calls=%d err=%v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, BackoffConfig{InitialDelay: time.Hour}, 0, nil, func(int) error { return boom })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	now := time.Unix(1700000000, 0)
	o.Upsert(PendingDelta{Sequence: 2, Kind: "ChildAdded", QueuedAt: now})
	o.Upsert(PendingDelta{Sequence: 1, Kind: "PropertyChanged", QueuedAt: now})
	o.Upsert(PendingDelta{Sequence: 0})

	if o.Len() != 2 {
		t.Fatalf("unexpected len=%d", o.Len())
	}
	if list := o.List(); list[0].Sequence != 1 || list[1].Sequence != 2 {
		t.Fatalf("list not in sequence order: %+v", list)
	}

	item, ok := o.MarkAttempt(1, now, 20*time.Second, " timeout ")
	if !ok || item.Attempts != 1 || item.LastError != "timeout" {
		t.Fatalf("unexpected attempt: %+v ok=%v", item, ok)
	}
	if overdue := o.Overdue(now.Add(10 * time.Second)); len(overdue) != 0 {
		t.Fatalf("nothing should be overdue yet: %+v", overdue)
	}
	if overdue := o.Overdue(now.Add(21 * time.Second)); len(overdue) != 1 || overdue[0].Sequence != 1 {
		t.Fatalf("expected seq 1 overdue: %+v", overdue)
	}

	o.Remove(1)
	if _, ok := o.Get(1); ok {
		t.Fatalf("delta should be removed")
	}
	if _, ok := o.MarkAttempt(1, now, time.Second, ""); ok {
		t.Fatalf("marking a removed delta should fail")
	}
}

func TestHelloRoundTripAndNegotiate(t *testing.T) {
	testlog.Start(t)
	local := Hello{ParticipationID: "p-local", ProtocolVersion: "2024.1", Stream: "geo", LastSequence: 9}
	f := roundTrip(t, EncodeHelloFrame(1, local, "secret"))
	if err := Authenticate("secret", f); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := Authenticate("other", f); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, err := DecodeHelloFrame(f)
	if err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if got != local {
		t.Fatalf("hello mismatch: got=%+v want=%+v", got, local)
	}
	if err := Negotiate(local, got); err != nil {
		t.Fatalf("negotiate: %v", err)
	}

	old := got
	old.ProtocolVersion = "2023.1"
	if err := Negotiate(local, old); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	other := got
	other.Stream = "doc"
	if err := Negotiate(local, other); !errors.Is(err, ErrStreamMismatch) {
		t.Fatalf("expected ErrStreamMismatch, got %v", err)
	}
	if err := Negotiate(local, Hello{ProtocolVersion: "2024.1", Stream: "geo"}); !errors.Is(err, ErrInvalidHello) {
		t.Fatalf("expected ErrInvalidHello, got %v", err)
	}
}

func TestHelloAckRejectionCarriesVersionMismatch(t *testing.T) {
	testlog.Start(t)
	f := roundTrip(t, EncodeHelloAckFrame(2, HelloAck{
		ParticipationID: "p-remote",
		ProtocolVersion: "2023.1",
		Status:          schema.StatusRejected,
		Code:            CodeVersionMismatch,
		Message:         "want 2024.1",
	}))
	if f.Header.Flags&frame.FlagIsError == 0 || f.Header.Flags&frame.FlagIsResponse == 0 {
		t.Fatalf("expected response+error flags, got %d", f.Header.Flags)
	}
	ack, err := DecodeHelloAckFrame(f)
	if err != nil {
		t.Fatalf("decode hello ack: %v", err)
	}
	if err := ack.Err(); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	ok := HelloAck{Status: schema.StatusAccepted}
	if ok.Err() != nil {
		t.Fatalf("accepted ack reported error")
	}
}

func TestDeltaFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	f, err := EncodeDeltaFrame(7, propertyEvent(4))
	if err != nil {
		t.Fatalf("encode delta: %v", err)
	}
	f = roundTrip(t, f)
	if seq, err := DeltaSequence(f); err != nil || seq != 4 {
		t.Fatalf("delta sequence=%d err=%v", seq, err)
	}
	ev, err := DecodeDeltaFrame(f)
	if err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if ev.SequenceNumber != 4 || ev.Node != "line" || *ev.NewValue != "l2" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, err := DecodeHelloFrame(f); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("expected ErrUnexpectedMessage, got %v", err)
	}
}

func TestEncodeDeltaRejectsInvalidEvent(t *testing.T) {
	testlog.Start(t)
	ev := propertyEvent(1)
	ev.Node = ""
	if _, err := EncodeDeltaFrame(1, ev); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDecodeDeltaRejectsHeaderMismatch(t *testing.T) {
	testlog.Start(t)
	good, err := EncodeDeltaFrame(1, propertyEvent(5))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	other, err := EncodeDeltaFrame(1, propertyEvent(6))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Sequence header of 5 around a body carrying 6.
	forged := good
	forged.Payload = append(append([]byte(nil), good.Payload[:15]...), other.Payload[15:]...)
	if _, err := DecodeDeltaFrame(forged); !errors.Is(err, ErrDeltaHeaderMismatch) {
		t.Fatalf("expected ErrDeltaHeaderMismatch, got %v", err)
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	f := roundTrip(t, EncodeAckFrame(9, Ack{
		Sequence: 4,
		Status:   schema.StatusRejected,
		Code:     CodeIdentityMismatch,
		Message:  "node line: parent",
	}))
	got, err := DecodeAckFrame(f)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if got.Sequence != 4 || got.Status != schema.StatusRejected || got.Code != CodeIdentityMismatch || got.AckedAtMS == 0 {
		t.Fatalf("unexpected ack: %+v", got)
	}
}

func TestValidateClientTransportProductionRequiresTLSMTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS.Enabled = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrMTLSRequired) {
		t.Fatalf("expected ErrMTLSRequired, got %v", err)
	}

	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrAuthTokenRequired) {
		t.Fatalf("expected ErrAuthTokenRequired, got %v", err)
	}
}

func TestValidateClientTransportMutualRequiresCertKeyCA(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.Enabled = true
	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}

	cfg.TLS.CAFile = "/tmp/ca.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS.CertFile = "/tmp/client.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}

	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("expected valid transport config, got %v", err)
	}
}

func TestValidateServerTransportRejectsUnknownMode(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = "staging"
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
	cfg.SecurityMode = " Production "
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
}

func TestTLSConfigsFromCertificates(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "treesync-ca")
	srv := ca.Server(t, "peer-a", "localhost")
	cli := ca.Client(t, "peer-b")

	server := DefaultConfig()
	server.TLS = TLSConfig{Enabled: true, Mutual: true, CertFile: srv.CertFile, KeyFile: srv.KeyFile, CAFile: ca.CAFile()}
	if err := server.ValidateServerTransport(); err != nil {
		t.Fatalf("validate server: %v", err)
	}
	scfg, err := server.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls: %v", err)
	}
	if scfg.ClientCAs == nil || len(scfg.Certificates) != 1 {
		t.Fatalf("server tls missing material")
	}

	client := DefaultConfig()
	client.TLS = TLSConfig{Enabled: true, Mutual: true, CertFile: cli.CertFile, KeyFile: cli.KeyFile, CAFile: ca.CAFile()}
	ccfg, err := client.ClientTLSConfig("localhost:7400")
	if err != nil {
		t.Fatalf("client tls: %v", err)
	}
	if ccfg.ServerName != "localhost" || ccfg.RootCAs == nil || len(ccfg.Certificates) != 1 {
		t.Fatalf("client tls incomplete: server_name=%q", ccfg.ServerName)
	}

	plain := DefaultConfig()
	if cfg, err := plain.ClientTLSConfig("localhost:1"); cfg != nil || err != nil {
		t.Fatalf("disabled tls should yield nil config: %v %v", cfg, err)
	}
}
