package syncd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/config"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/replication"
	"github.com/danmuck/treesync/internal/replicator"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/tree"
)

// fixture writes the language template and a seed partition into dir.
func fixture(t *testing.T, dir string) (langPath, seedPath string) {
	t.Helper()
	langPath = filepath.Join(dir, "shapes.toml")
	if err := config.WriteTemplate(langPath, "language", true); err != nil {
		t.Fatalf("language: %v", err)
	}
	langs, err := config.LoadLanguages([]string{langPath})
	if err != nil {
		t.Fatalf("load language: %v", err)
	}
	ptr := func(key string) meta.Pointer { return meta.Pointer{Language: "shapes", Version: "1", Key: key} }
	geo, _ := langs.Classifier(ptr("Geometry"))
	circle, _ := langs.Classifier(ptr("Circle"))
	shapes, _ := geo.Feature("Geometry-shapes")

	root := tree.New("geo", geo)
	if err := root.InsertChildRaw(shapes, 0, tree.New("c1", circle)); err != nil {
		t.Fatalf("build seed: %v", err)
	}
	codec, _ := chunk.CodecFor(chunk.Version2024)
	ch, err := chunk.Serialize(root, codec)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	data, _ := json.Marshal(ch)
	seedPath = filepath.Join(dir, "geo.chunk.json")
	if err := os.WriteFile(seedPath, data, 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return langPath, seedPath
}

func newConfig(dir, name, langPath string, streams ...config.StreamConfig) config.SyncdConfig {
	cfg := config.DefaultSyncdConfig()
	cfg.Name = name
	cfg.ParticipationID = name
	cfg.JournalPath = filepath.Join(dir, name+".db")
	cfg.Languages = []string{langPath}
	cfg.Session.AckTimeout = 0
	cfg.Session.Backoff.InitialDelay = 10 * time.Millisecond
	cfg.Streams = streams
	return cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonsReplicateOverWebSocketAndRestore(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	langPath, seedPath := fixture(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := NewService(ctx, newConfig(dir, "source", langPath, config.StreamConfig{
		Name: "geo", Mode: config.ModeListen, Transport: config.TransportWebSocket, Seed: seedPath,
	}))
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer source.Close()
	hs := httptest.NewServer(source.Admin().HTTPRouter())
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/streams/geo/sync"
	replicaCfg := newConfig(dir, "replica", langPath, config.StreamConfig{
		Name: "geo", Mode: config.ModeDial, Transport: config.TransportWebSocket, Address: url, Seed: seedPath, ReceiveOnly: true,
	})
	replica, err := NewService(ctx, replicaCfg)
	if err != nil {
		t.Fatalf("replica: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- replica.dial(ctx, replica.streams[0]) }()

	body := strings.NewReader(`{"value":"ring"}`)
	req, _ := http.NewRequest(http.MethodPut, hs.URL+"/v1/streams/geo/nodes/c1/properties/Circle-name", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("edit status=%d", resp.StatusCode)
	}

	eventually(t, "replica apply", func() bool { return replica.streams[0].peer.Status().InboundLast == 1 })
	eventually(t, "replica journal", func() bool {
		last, err := replica.journal.LastSequence(ctx, "geo")
		return err == nil && last == 1
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("dial loop did not stop")
	}
	replica.Close()

	restarted, err := NewService(context.Background(), replicaCfg)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer restarted.Close()
	st := restarted.streams[0]
	if st.peer.Status().InboundLast != 1 {
		t.Fatalf("restored inbound last=%d", st.peer.Status().InboundLast)
	}
	c1, ok := st.reg.Lookup("c1")
	if !ok {
		t.Fatalf("c1 missing after restore")
	}
	if v, _ := c1.Property(c1.Classifier().Features[0]); v != "ring" {
		t.Fatalf("restored value=%v", v)
	}
}

func TestNewServiceRejectsBadSeed(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	langPath, _ := fixture(t, dir)
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewService(context.Background(), newConfig(dir, "x", langPath, config.StreamConfig{
		Name: "geo", Mode: config.ModeListen, Transport: config.TransportWebSocket, Seed: bad,
	}))
	if err == nil || !strings.Contains(err.Error(), "seed parse failed") {
		t.Fatalf("expected seed parse error, got %v", err)
	}
}

func TestPermanent(t *testing.T) {
	permanent := []error{
		fmt.Errorf("run: %w", replication.ErrPeerRejected),
		replicator.ErrIdentityMismatch,
		session.ErrVersionMismatch,
		session.ErrUnauthorized,
	}
	for _, err := range permanent {
		if !Permanent(err) {
			t.Fatalf("expected permanent: %v", err)
		}
	}
	if Permanent(errors.New("connection reset")) || Permanent(replication.ErrAckTimeout) {
		t.Fatalf("transient error reported permanent")
	}
}
