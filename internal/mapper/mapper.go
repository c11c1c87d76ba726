// Package mapper converts notifications to wire events and back.
//
// Ownership boundary:
// - sequence number and provenance assignment on the way out
// - chunk embedding for creations, descendant ids for removals
// - id and MetaPointer resolution on the way in
package mapper

import (
	"errors"
	"fmt"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/sequence"
	"github.com/danmuck/treesync/internal/tree"
)

var (
	ErrUnresolvable        = errors.New("mapper: unresolvable reference")
	ErrDescendantsMismatch = errors.New("mapper: descendant ids disagree with registry")
	ErrIncomplete          = errors.New("mapper: notification missing required node")
)

// Options wires a Mapper to one stream.
type Options struct {
	Languages       *meta.Registry
	Registry        *identity.Registry
	Codec           chunk.Codec
	Sequence        *sequence.Counter
	ParticipationID string
	CommandIDs      *sequence.IDs
	NotificationIDs *sequence.IDs
}

// Mapper translates in both directions for one stream. Safe for concurrent use
// as long as the registry is only mutated through Registry.Update.
type Mapper struct {
	langs         *meta.Registry
	reg           *identity.Registry
	codec         chunk.Codec
	seq           *sequence.Counter
	participation string
	commands      *sequence.IDs
	notifications *sequence.IDs
}

func New(opts Options) (*Mapper, error) {
	if opts.Languages == nil || opts.Registry == nil || opts.Codec == nil {
		return nil, fmt.Errorf("mapper: languages, registry and codec are required")
	}
	m := &Mapper{
		langs:         opts.Languages,
		reg:           opts.Registry,
		codec:         opts.Codec,
		seq:           opts.Sequence,
		participation: sequence.ParticipationID(opts.ParticipationID),
		commands:      opts.CommandIDs,
		notifications: opts.NotificationIDs,
	}
	if m.seq == nil {
		m.seq = sequence.NewCounter(0)
	}
	if m.commands == nil {
		m.commands = sequence.CommandIDs()
	}
	if m.notifications == nil {
		m.notifications = sequence.NotificationIDs()
	}
	return m, nil
}

// ParticipationID returns the id stamped on locally originated events.
func (m *Mapper) ParticipationID() string { return m.participation }

// Codec returns the property codec in use.
func (m *Mapper) Codec() chunk.Codec { return m.codec }

// Sequence returns the outbound sequence counter.
func (m *Mapper) Sequence() *sequence.Counter { return m.seq }

func ptr(f *meta.Feature) *meta.Pointer {
	if f == nil {
		return nil
	}
	p := f.Pointer()
	return &p
}

func classifierPtr(c *meta.Classifier) *meta.Pointer {
	if c == nil {
		return nil
	}
	p := c.Pointer()
	return &p
}

func idOf(n *tree.Node) string {
	if n == nil {
		return ""
	}
	return string(n.ID())
}

func descendants(n *tree.Node) []string {
	if n == nil {
		return nil
	}
	ids := n.DescendantIDs(false)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
