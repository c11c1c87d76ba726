package journal

import (
	"context"
	"fmt"
	"strings"
)

const replayPageSize = 200

// Lister pages entries of a stream in sequence order.
type Lister interface {
	List(ctx context.Context, stream string, afterSeq int64, limit int) ([]Entry, error)
}

// ReplayOptions bounds a replay. Zero UntilSeq means no upper bound.
type ReplayOptions struct {
	AfterSeq int64
	UntilSeq int64
	Filter   func(Entry) bool
}

// Replay feeds entries of stream to apply in sequence order and returns the
// last sequence number visited. It stops at the first apply error.
func Replay(ctx context.Context, store Lister, stream string, options ReplayOptions, apply func(context.Context, Entry) error) (int64, error) {
	if store == nil {
		return 0, ErrNotConfigured
	}
	if strings.TrimSpace(stream) == "" {
		return 0, fmt.Errorf("%w: stream is required", ErrInvalidEntry)
	}

	lastSeq := options.AfterSeq
	for {
		entries, err := store.List(ctx, stream, lastSeq, replayPageSize)
		if err != nil {
			return lastSeq, err
		}
		if len(entries) == 0 {
			return lastSeq, nil
		}
		for _, e := range entries {
			if options.UntilSeq > 0 && e.Seq > options.UntilSeq {
				return lastSeq, nil
			}
			if options.Filter != nil && !options.Filter(e) {
				lastSeq = e.Seq
				continue
			}
			if err := apply(ctx, e); err != nil {
				return lastSeq, fmt.Errorf("replay stream=%s seq=%d: %w", stream, e.Seq, err)
			}
			lastSeq = e.Seq
		}
	}
}

// MergedLister pages entries of several streams in append order.
type MergedLister interface {
	ListMerged(ctx context.Context, streams []string, afterRow int64, limit int) ([]Entry, error)
}

// ReplayMerged feeds every entry of streams to apply in append order and
// returns the last sequence number visited per stream.
func ReplayMerged(ctx context.Context, store MergedLister, streams []string, apply func(context.Context, Entry) error) (map[string]int64, error) {
	if store == nil {
		return nil, ErrNotConfigured
	}
	last := make(map[string]int64, len(streams))
	var row int64
	for {
		entries, err := store.ListMerged(ctx, streams, row, replayPageSize)
		if err != nil {
			return last, err
		}
		if len(entries) == 0 {
			return last, nil
		}
		for _, e := range entries {
			if err := apply(ctx, e); err != nil {
				return last, fmt.Errorf("replay stream=%s seq=%d: %w", e.Stream, e.Seq, err)
			}
			last[e.Stream] = e.Seq
			row = e.Row
		}
	}
}
