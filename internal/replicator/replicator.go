// Package replicator applies notifications to a replica forest.
//
// Ownership boundary:
// - resolution of every referenced node through the replica's identity registry
// - verification of the declared before-state (identity mismatch detection)
// - non-notifying tree surgery plus registry upkeep, atomic per notification
//
// A failed apply leaves both the replica and its registry exactly as they were.
package replicator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/observability"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

var (
	ErrIdentityMismatch = errors.New("replicator: replica disagrees with declared before-state")
	ErrReentrantApply   = errors.New("replicator: apply already in progress")
	ErrIncomplete       = errors.New("replicator: notification missing required node")
)

// MismatchError details one identity mismatch. It unwraps to ErrIdentityMismatch.
type MismatchError struct {
	Kind  notification.Kind
	Node  tree.NodeID
	Field string
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("replicator: kind=%s node=%q %s: want %s, got %s", e.Kind, e.Node, e.Field, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrIdentityMismatch }

// Replicator applies notifications to one replica forest. Apply is not
// re-entrant and is meant to be driven by a single consumer.
type Replicator struct {
	mu     sync.Mutex
	name   string
	forest *partition.Forest
	reg    *identity.Registry
}

var _ notification.Handler = (*Replicator)(nil)

// New binds a replicator to a replica forest and the registry that indexes it.
// The registry must already hold every node of forest.
func New(name string, forest *partition.Forest, reg *identity.Registry) *Replicator {
	return &Replicator{name: name, forest: forest, reg: reg}
}

func (r *Replicator) Name() string { return r.name }

// Handle applies n; it lets a Replicator subscribe to a Forwarder or Receiver.
func (r *Replicator) Handle(n notification.Notification) error {
	return r.Apply(n)
}

// Apply verifies n against the replica and performs it. On any failure the
// replica and registry are rolled back and the error is returned.
func (r *Replicator) Apply(n notification.Notification) error {
	if !r.mu.TryLock() {
		return ErrReentrantApply
	}
	defer r.mu.Unlock()

	start := time.Now()
	err := r.reg.Update(func(tx *identity.Txn) error {
		return r.forest.Mutate(func(ftx *partition.Tx) error {
			a := &applier{kind: n.Kind(), reg: tx, forest: ftx}
			if err := n.Accept(a); err != nil {
				a.rollback()
				return err
			}
			return nil
		})
	})

	outcome := "applied"
	switch {
	case errors.Is(err, ErrIdentityMismatch):
		outcome = "mismatch"
		log.Warn().Msgf("replicator.Replicator.Apply replica=%s kind=%s id=%s err=%v", r.name, n.Kind(), n.ID(), err)
	case err != nil:
		outcome = "error"
		log.Warn().Msgf("replicator.Replicator.Apply replica=%s kind=%s id=%s err=%v", r.name, n.Kind(), n.ID(), err)
	default:
		log.Debug().Msgf("replicator.Replicator.Apply replica=%s kind=%s id=%s", r.name, n.Kind(), n.ID())
	}
	observability.RecordApply(r.name, string(n.Kind()), outcome, time.Since(start))
	return err
}
