// Package syncd runs a replication daemon: one peer per configured stream,
// the journal, the admin server and the connectors that keep peers linked.
package syncd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/treesync/internal/admin"
	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/config"
	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/journal"
	"github.com/danmuck/treesync/internal/mapper"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/replication"
	"github.com/danmuck/treesync/internal/replicator"
	"github.com/danmuck/treesync/internal/sequence"
	"github.com/danmuck/treesync/internal/transport"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// stream is one configured stream and its runtime parts.
type stream struct {
	cfg    config.StreamConfig
	peer   *replication.Peer
	forest *partition.Forest
	reg    *identity.Registry
}

type Service struct {
	cfg           config.SyncdConfig
	langs         *meta.Registry
	codec         chunk.Codec
	journal       *journal.Store
	streams       []*stream
	admin         *admin.Server
	participation string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService loads languages, opens the journal and restores every stream.
// ctx bounds sessions the admin server accepts.
func NewService(ctx context.Context, cfg config.SyncdConfig) (*Service, error) {
	langs, err := config.LoadLanguages(cfg.Languages)
	if err != nil {
		return nil, err
	}
	codec, err := chunk.CodecFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	store, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:           cfg,
		langs:         langs,
		codec:         codec,
		journal:       store,
		participation: sequence.ParticipationID(cfg.ParticipationID),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.admin = admin.New(ctx, cfg.Name, cfg.AdminAddr, cfg.CorsOrigins, store)

	for _, sc := range cfg.Streams {
		st, err := s.openStream(ctx, sc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("stream %s: %w", sc.Name, err)
		}
		s.streams = append(s.streams, st)
		s.admin.AddStream(admin.Stream{
			Peer:            st.peer,
			Forest:          st.forest,
			Registry:        st.reg,
			Languages:       langs,
			Codec:           codec,
			AcceptWebSocket: sc.Mode == config.ModeListen && sc.Transport == config.TransportWebSocket,
		})
	}
	log.Info().Msgf("syncd.NewService name=%s participation=%s streams=%d", cfg.Name, s.participation, len(s.streams))
	return s, nil
}

func (s *Service) openStream(ctx context.Context, sc config.StreamConfig) (*stream, error) {
	st := &stream{cfg: sc, forest: partition.NewForest(), reg: identity.New()}
	if sc.Seed != "" {
		root, err := LoadSeed(sc.Seed, s.langs, s.codec)
		if err != nil {
			return nil, err
		}
		if err := st.forest.Mutate(func(tx *partition.Tx) error { return tx.AddPartition(root) }); err != nil {
			return nil, err
		}
		if err := st.reg.Seed(root); err != nil {
			return nil, err
		}
	}
	st.forest.Subscribe(identity.NewTracker(st.reg))

	m, err := mapper.New(mapper.Options{
		Languages:       s.langs,
		Registry:        st.reg,
		Codec:           s.codec,
		ParticipationID: s.participation,
	})
	if err != nil {
		return nil, err
	}
	st.peer, err = replication.NewPeer(replication.Options{
		Stream:      sc.Name,
		Forest:      st.forest,
		Registry:    st.reg,
		Mapper:      m,
		Journal:     s.journal,
		Session:     s.cfg.Session,
		ReceiveOnly: sc.ReceiveOnly,
	})
	if err != nil {
		return nil, err
	}
	if _, err := st.peer.Restore(ctx); err != nil {
		st.peer.Close()
		return nil, fmt.Errorf("restore: %w", err)
	}
	return st, nil
}

// LoadSeed reads a chunk JSON file holding a stream's initial partition.
func LoadSeed(path string, langs *meta.Registry, codec chunk.Codec) (*tree.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed load failed (%s): %w", path, err)
	}
	var ch chunk.Chunk
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("seed parse failed (%s): %w", path, err)
	}
	return chunk.Deserialize(ch, langs, codec)
}

// Admin exposes the admin server.
func (s *Service) Admin() *admin.Server { return s.admin }

func (s *Service) Close() {
	for _, st := range s.streams {
		st.peer.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the admin server and one connector per stream until ctx ends.
// A stream whose session fails for good is parked; the rest keep running.
func (s *Service) Serve(ctx context.Context) error {
	defer s.Close()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.admin.Serve(gctx) })
	for _, st := range s.streams {
		switch {
		case st.cfg.Mode == config.ModeDial:
			g.Go(func() error { return s.dial(gctx, st) })
		case st.cfg.Transport == config.TransportTCP:
			g.Go(func() error { return s.listen(gctx, st) })
		}
	}
	return g.Wait()
}

func (s *Service) listen(ctx context.Context, st *stream) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return fmt.Errorf("stream %s: %w", st.cfg.Name, err)
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		return fmt.Errorf("stream %s: %w", st.cfg.Name, err)
	}
	ln, err := transport.Listen(st.cfg.Address, tlsCfg)
	if err != nil {
		return fmt.Errorf("stream %s: %w", st.cfg.Name, err)
	}
	log.Info().Msgf("syncd.Service.listen stream=%s addr=%s", st.cfg.Name, ln.Addr())
	return transport.Serve(ctx, ln, st.peer.Limits(), func(ctx context.Context, conn transport.Conn) {
		if err := st.peer.Run(ctx, conn, replication.Acceptor); err != nil {
			log.Warn().Msgf("syncd.Service.listen stream=%s session err=%v", st.cfg.Name, err)
		}
	})
}

func (s *Service) dial(ctx context.Context, st *stream) error {
	if err := s.cfg.Session.ValidateClientTransport(); err != nil {
		return fmt.Errorf("stream %s: %w", st.cfg.Name, err)
	}
	for {
		var conn transport.Conn
		err := session.Retry(ctx, s.cfg.Session.Backoff, st.cfg.MaxAttempts, s.random(), func(attempt int) error {
			c, err := s.connect(ctx, st.cfg)
			if err != nil {
				log.Warn().Msgf("syncd.Service.dial stream=%s attempt=%d err=%v", st.cfg.Name, attempt, err)
				return err
			}
			conn = c
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Error().Msgf("syncd.Service.dial stream=%s giving up err=%v", st.cfg.Name, err)
			return nil
		}
		err = st.peer.Run(ctx, conn, replication.Initiator)
		if ctx.Err() != nil {
			return nil
		}
		if Permanent(err) {
			log.Error().Msgf("syncd.Service.dial stream=%s parked code=%s err=%v", st.cfg.Name, replication.ErrorCode(err), err)
			return nil
		}
		log.Warn().Msgf("syncd.Service.dial stream=%s reconnecting err=%v", st.cfg.Name, err)
	}
}

func (s *Service) connect(ctx context.Context, sc config.StreamConfig) (transport.Conn, error) {
	tlsCfg, err := s.cfg.Session.ClientTLSConfig(sc.Address)
	if err != nil {
		return nil, err
	}
	dialCtx := ctx
	if s.cfg.Session.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.Session.HandshakeTimeout)
		defer cancel()
	}
	if sc.Transport == config.TransportWebSocket {
		return transport.DialWebSocket(dialCtx, sc.Address, tlsCfg, nil, s.cfg.Session.Limits)
	}
	return transport.Dial(dialCtx, sc.Address, tlsCfg, s.cfg.Session.Limits)
}

func (s *Service) random() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

// Permanent reports whether reconnecting cannot help: the replicas disagree
// or the peers are not allowed to talk.
func Permanent(err error) bool {
	return errors.Is(err, replication.ErrPeerRejected) ||
		errors.Is(err, replicator.ErrIdentityMismatch) ||
		errors.Is(err, session.ErrVersionMismatch) ||
		errors.Is(err, session.ErrStreamMismatch) ||
		errors.Is(err, session.ErrUnauthorized) ||
		errors.Is(err, session.ErrHelloRejected)
}
