package identity

import (
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

// Tracker keeps a registry in step with a forest edited through the notifying API.
// It reconciles rather than asserts: ids are registered when missing and
// retargeted when present.
type Tracker struct {
	reg *Registry
}

var _ notification.Handler = (*Tracker)(nil)

func NewTracker(reg *Registry) *Tracker {
	return &Tracker{reg: reg}
}

// Handle applies the footprint of n, part by part for composites.
func (t *Tracker) Handle(n notification.Notification) error {
	return t.reg.Update(func(tx *Txn) error {
		return t.track(tx, n)
	})
}

func (t *Tracker) track(tx *Txn, n notification.Notification) error {
	if c, ok := n.(notification.Composite); ok {
		for _, p := range c.Parts {
			if err := t.track(tx, p); err != nil {
				return err
			}
		}
		return nil
	}
	eff := notification.Footprint(n)
	for _, root := range eff.Removed {
		for _, d := range root.Descendants(true) {
			if cur, ok := tx.Lookup(d.ID()); ok && cur == d {
				if err := tx.Unregister(d.ID()); err != nil {
					return err
				}
			}
		}
	}
	for _, group := range [][]*tree.Node{eff.Moved, eff.Added} {
		for _, root := range group {
			for _, d := range root.Descendants(true) {
				if err := upsert(tx, d); err != nil {
					return err
				}
			}
		}
	}
	if !eff.Empty() {
		log.Debug().Msgf("identity.Tracker.Handle kind=%s added=%d removed=%d moved=%d",
			n.Kind(), len(eff.Added), len(eff.Removed), len(eff.Moved))
	}
	return nil
}

func upsert(tx *Txn, n *tree.Node) error {
	if _, ok := tx.Lookup(n.ID()); ok {
		return tx.Retarget(n)
	}
	return tx.Register(n)
}
