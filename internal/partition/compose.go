package partition

import (
	"errors"
	"fmt"

	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

type composition struct {
	parts []notification.Notification
	added map[*tree.Node]bool
}

// markFresh records every node of a subtree introduced by this composite.
func (c *composition) markFresh(root *tree.Node) {
	if c == nil || root == nil {
		return
	}
	for _, n := range root.Descendants(true) {
		c.added[n] = true
	}
}

// owners rejects edits whose owning node was introduced by this composite.
// The peer materializes such subtrees from a chunk taken after the composite
// completes, so a later part would edit them twice.
func (c *composition) owners(nodes ...*tree.Node) error {
	if c == nil {
		return nil
	}
	for _, n := range nodes {
		if n != nil && c.added[n] {
			return fmt.Errorf("%w: %s", ErrFreshSubtree, n.ID())
		}
	}
	return nil
}

// Compose runs fn and raises the edits it makes as one Composite. Edits applied
// before fn failed are still raised; they already changed the local tree.
// Nested calls join the outer composite. Compose assumes a single editor.
func (f *Forest) Compose(fn func() error) error {
	f.mu.Lock()
	if f.compose != nil {
		f.mu.Unlock()
		return fn()
	}
	c := &composition{added: make(map[*tree.Node]bool)}
	f.compose = c
	f.mu.Unlock()

	err := fn()

	f.mu.Lock()
	f.compose = nil
	if len(c.parts) == 0 {
		f.mu.Unlock()
		return err
	}
	t := f.ticket()
	f.mu.Unlock()
	comp := notification.NewComposite(notification.ID(f.ids.Next()), c.parts...)
	log.Debug().Msgf("partition.Forest.Compose id=%s parts=%d ticket=%d", comp.ID(), len(c.parts), t)
	if herr := f.deliver(t, comp); herr != nil {
		return errors.Join(err, herr)
	}
	return err
}
