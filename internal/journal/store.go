// Package journal persists applied wire events per stream in SQLite and
// replays them in sequence order.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	ErrDuplicate     = errors.New("journal: sequence already recorded")
	ErrNotConfigured = errors.New("journal: store is not configured")
	ErrInvalidEntry  = errors.New("journal: invalid entry")
)

// Entry is one journaled wire event.
type Entry struct {
	Row        int64
	Stream     string
	Seq        int64
	Kind       string
	Origin     string
	Body       []byte
	RecordedAt time.Time
}

// Event decodes the entry body.
func (e Entry) Event() (wire.Event, error) {
	return wire.Unmarshal(e.Body)
}

// Store persists entries in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the journal at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrNotConfigured)
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Debug().Msgf("journal.Open path=%s", path)
	return &Store{sqlDB: sqlDB}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := sqlDB.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append records one entry. Recording the same (stream, seq) twice returns ErrDuplicate.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	stream := strings.TrimSpace(e.Stream)
	if stream == "" {
		return fmt.Errorf("%w: stream is required", ErrInvalidEntry)
	}
	if e.Seq <= 0 {
		return fmt.Errorf("%w: seq must be positive, got %d", ErrInvalidEntry, e.Seq)
	}
	if strings.TrimSpace(e.Kind) == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidEntry)
	}
	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO journal_events (stream, seq, kind, origin, body, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stream,
		e.Seq,
		e.Kind,
		strings.TrimSpace(e.Origin),
		e.Body,
		toMillis(recordedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			observability.RecordJournalAppend(stream, "duplicate")
			return fmt.Errorf("%w: stream=%s seq=%d", ErrDuplicate, stream, e.Seq)
		}
		observability.RecordJournalAppend(stream, "error")
		return fmt.Errorf("append journal entry: %w", err)
	}
	observability.RecordJournalAppend(stream, "appended")
	return nil
}

// AppendEvent journals a validated wire event received from origin.
func (s *Store) AppendEvent(ctx context.Context, stream, origin string, ev wire.Event) error {
	body, err := wire.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Append(ctx, Entry{
		Stream: stream,
		Seq:    ev.SequenceNumber,
		Kind:   ev.MessageKind,
		Origin: origin,
		Body:   body,
	})
}

// List returns up to limit entries of stream with seq > afterSeq, in sequence order.
func (s *Store) List(ctx context.Context, stream string, afterSeq int64, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = replayPageSize
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT stream, seq, kind, origin, body, recorded_at
		 FROM journal_events
		 WHERE stream = ? AND seq > ?
		 ORDER BY seq
		 LIMIT ?`,
		strings.TrimSpace(stream),
		afterSeq,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			recordedAt int64
		)
		if err := rows.Scan(&e.Stream, &e.Seq, &e.Kind, &e.Origin, &e.Body, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.RecordedAt = fromMillis(recordedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

// ListMerged returns up to limit entries of any of streams with row > afterRow,
// in the order they were appended.
func (s *Store) ListMerged(ctx context.Context, streams []string, afterRow int64, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	if len(streams) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = replayPageSize
	}
	args := make([]any, 0, len(streams)+2)
	for _, stream := range streams {
		args = append(args, strings.TrimSpace(stream))
	}
	args = append(args, afterRow, limit)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(streams)), ",")
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT rowid, stream, seq, kind, origin, body, recorded_at
		 FROM journal_events
		 WHERE stream IN (`+placeholders+`) AND rowid > ?
		 ORDER BY rowid
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list merged journal entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			recordedAt int64
		)
		if err := rows.Scan(&e.Row, &e.Stream, &e.Seq, &e.Kind, &e.Origin, &e.Body, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.RecordedAt = fromMillis(recordedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

// LastSequence returns the highest recorded seq of stream, or 0.
func (s *Store) LastSequence(ctx context.Context, stream string) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, ErrNotConfigured
	}
	var last sql.NullInt64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT MAX(seq) FROM journal_events WHERE stream = ?`,
		strings.TrimSpace(stream),
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last journal sequence: %w", err)
	}
	return last.Int64, nil
}

// StreamInfo summarizes one journaled stream.
type StreamInfo struct {
	Stream       string `json:"stream"`
	Entries      int64  `json:"entries"`
	LastSequence int64  `json:"last_sequence"`
}

// Streams lists every stream with at least one entry.
func (s *Store) Streams(ctx context.Context) ([]StreamInfo, error) {
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT stream, COUNT(*), MAX(seq) FROM journal_events GROUP BY stream ORDER BY stream`,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal streams: %w", err)
	}
	defer rows.Close()
	var out []StreamInfo
	for rows.Next() {
		var info StreamInfo
		if err := rows.Scan(&info.Stream, &info.Entries, &info.LastSequence); err != nil {
			return nil, fmt.Errorf("scan journal stream: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
