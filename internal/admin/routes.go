package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/replication"
	"github.com/danmuck/treesync/internal/transport"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const defaultJournalPage = 100

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"node":    s.Name,
			"version": "0.1.0",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"streams": len(s.statuses()),
			"node":    s.Name,
		})
	})

	v1 := r.Group("/v1")
	v1.GET("/streams", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"streams": s.statuses()})
	})
	v1.GET("/streams/:stream", s.withStream(func(c *gin.Context, st Stream) {
		c.JSON(http.StatusOK, st.Peer.Status())
	}))
	v1.GET("/streams/:stream/partitions", s.withStream(s.listPartitions))
	v1.POST("/streams/:stream/partitions", s.withStream(s.addPartition))
	v1.DELETE("/streams/:stream/partitions/:id", s.withStream(s.removePartition))
	v1.PUT("/streams/:stream/nodes/:id/properties/:feature", s.withStream(s.setProperty))
	v1.GET("/streams/:stream/sync", s.withStream(s.sync))

	v1.GET("/journal", s.journalStreams)
	v1.GET("/journal/:stream", s.journalEntries)
}

func (s *Server) withStream(fn func(*gin.Context, Stream)) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.stream(c.Param("stream"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		fn(c, st)
	}
}

func (s *Server) listPartitions(c *gin.Context, st Stream) {
	var chunks []chunk.Chunk
	var err error
	st.Forest.View(func(roots []*tree.Node) {
		for _, root := range roots {
			var ch chunk.Chunk
			ch, err = chunk.Serialize(root, st.Codec)
			if err != nil {
				return
			}
			chunks = append(chunks, ch)
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partitions": chunks})
}

func (s *Server) addPartition(c *gin.Context, st Stream) {
	var ch chunk.Chunk
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	root, err := chunk.Deserialize(ch, st.Languages, st.Codec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := st.Forest.AddPartition(root); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": root.ID(), "nodes": len(ch.Nodes)})
}

func (s *Server) removePartition(c *gin.Context, st Stream) {
	if err := st.Forest.RemovePartition(tree.NodeID(c.Param("id"))); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// propertyRequest carries a serialized value; null deletes the property.
type propertyRequest struct {
	Value *string `json:"value"`
}

func (s *Server) setProperty(c *gin.Context, st Stream) {
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var (
		n       *tree.Node
		feat    *meta.Feature
		missing error
	)
	st.Forest.View(func([]*tree.Node) {
		var ok bool
		if n, ok = st.Registry.Lookup(tree.NodeID(c.Param("id"))); !ok {
			missing = identity.ErrNotRegistered
			return
		}
		if feat, ok = n.Classifier().Feature(c.Param("feature")); !ok {
			missing = tree.ErrUnknownFeature
		}
	})
	if missing != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": missing.Error()})
		return
	}
	var err error
	if req.Value == nil {
		err = st.Forest.DeleteProperty(n, feat)
	} else {
		var v any
		v, err = st.Codec.Decode(feat, *req.Value)
		if err == nil {
			err = st.Forest.SetProperty(n, feat, v)
		}
	}
	if err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) sync(c *gin.Context, st Stream) {
	if !st.AcceptWebSocket {
		c.JSON(http.StatusForbidden, gin.H{"error": "stream does not accept websocket sessions"})
		return
	}
	handler := transport.WebSocketHandler(s.ctx, st.Peer.Limits(), func(ctx context.Context, conn transport.Conn) {
		if err := st.Peer.Run(ctx, conn, replication.Acceptor); err != nil {
			log.Warn().Msgf("admin.Server.sync stream=%s remote=%s err=%v", st.Peer.Stream(), c.ClientIP(), err)
		}
	})
	handler.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) journalStreams(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	streams, err := s.journal.Streams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

type journalEntry struct {
	Seq        int64           `json:"seq"`
	Kind       string          `json:"kind"`
	Origin     string          `json:"origin"`
	RecordedAt time.Time       `json:"recorded_at"`
	Event      json.RawMessage `json:"event"`
}

func (s *Server) journalEntries(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	after, err := queryInt(c, "after", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := queryInt(c, "limit", defaultJournalPage)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	entries, err := s.journal.List(c.Request.Context(), c.Param("stream"), after, int(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]journalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, journalEntry{
			Seq:        e.Seq,
			Kind:       e.Kind,
			Origin:     e.Origin,
			RecordedAt: e.RecordedAt,
			Event:      json.RawMessage(e.Body),
		})
	}
	c.JSON(http.StatusOK, gin.H{"stream": c.Param("stream"), "entries": out})
}

func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func editStatus(err error) int {
	switch {
	case errors.Is(err, partition.ErrUnknownPartition),
		errors.Is(err, partition.ErrNotInForest):
		return http.StatusNotFound
	case errors.Is(err, partition.ErrDuplicatePartition),
		errors.Is(err, identity.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, partition.ErrNotPartition),
		errors.Is(err, chunk.ErrInvalidValue),
		errors.Is(err, tree.ErrFeatureKind),
		errors.Is(err, tree.ErrUnknownFeature):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
