// Package admin serves the HTTP surface of a sync daemon.
//
// Ownership boundary:
// - health, readiness and prometheus metrics
// - per-stream status, partition snapshots and local edits
// - journal inspection
// - the websocket sync endpoint that accepts replication sessions
package admin

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/journal"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/replication"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnknownStream = errors.New("admin: unknown stream")

// Stream is everything the admin surface needs about one replicated stream.
type Stream struct {
	Peer      *replication.Peer
	Forest    *partition.Forest
	Registry  *identity.Registry
	Languages *meta.Registry
	Codec     chunk.Codec
	// AcceptWebSocket lets remote peers open sessions on /v1/streams/<name>/sync.
	AcceptWebSocket bool
}

type Server struct {
	Name     string
	Addr     string
	Appeared time.Time

	router  *gin.Engine
	journal *journal.Store
	ctx     context.Context

	mu      sync.RWMutex
	streams map[string]Stream
}

// New builds the router. ctx bounds websocket sessions accepted by the server.
func New(ctx context.Context, name, addr string, corsOrigins []string, store *journal.Store) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(name, log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     name,
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
		journal:  store,
		ctx:      ctx,
		streams:  make(map[string]Stream),
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// AddStream exposes a stream; a later call with the same name replaces it.
func (s *Server) AddStream(st Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[st.Peer.Stream()] = st
}

func (s *Server) stream(name string) (Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[name]
	if !ok {
		return Stream{}, ErrUnknownStream
	}
	return st, nil
}

func (s *Server) statuses() []replication.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]replication.Status, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st.Peer.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })
	return out
}

// Serve listens on Addr until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Msgf("admin.Server.Serve name=%s addr=%s", s.Name, s.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
