// Package partition owns the notifying editing API over tree nodes.
//
// Ownership boundary:
// - the Forest of partition roots held by one participant
// - one notification per logical edit, delivered to subscribers
// - composite grouping of multi-step edits (Compose)
// - raw, non-notifying forest access for replay (Mutate)
//
// Every edit is applied with tree raw primitives first and announced after the
// forest lock is released, so subscribers may read the forest. Announcements
// leave in the order the edits were applied; a subscriber must not edit the
// forest it is subscribed to.
package partition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/sequence"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotPartition       = errors.New("partition: classifier is not a partition concept")
	ErrDuplicatePartition = errors.New("partition: partition already present")
	ErrUnknownPartition   = errors.New("partition: unknown partition")
	ErrNotInForest        = errors.New("partition: node is not in this forest")
	ErrNotDetached        = errors.New("partition: node must be detached")
	ErrWrongSlot          = errors.New("partition: node is not held by the expected slot")
	ErrFreshSubtree       = errors.New("partition: edit inside a subtree added by the same composite")
)

// Forest is the ordered set of partitions one participant edits or replicates.
type Forest struct {
	mu      sync.RWMutex
	roots   []*tree.Node
	byID    map[tree.NodeID]*tree.Node
	out     *notification.Forwarder
	ids     *sequence.IDs
	compose *composition

	// issued is guarded by mu; served by order.
	issued uint64
	order  sync.Mutex
	turn   *sync.Cond
	served uint64
}

func NewForest() *Forest {
	f := &Forest{
		byID: make(map[tree.NodeID]*tree.Node),
		out:  &notification.Forwarder{},
		ids:  sequence.NotificationIDs(),
	}
	f.turn = sync.NewCond(&f.order)
	return f
}

// ticket reserves the next delivery slot. Callers hold mu, so tickets follow
// the order in which edits were applied.
func (f *Forest) ticket() uint64 {
	f.issued++
	return f.issued
}

// deliver hands n to subscribers once every earlier ticket has been delivered.
func (f *Forest) deliver(t uint64, n notification.Notification) error {
	f.order.Lock()
	for f.served+1 != t {
		f.turn.Wait()
	}
	f.order.Unlock()
	defer func() {
		f.order.Lock()
		f.served = t
		f.order.Unlock()
		f.turn.Broadcast()
	}()
	return f.out.Handle(n)
}

// Subscribe registers h for every notification this forest raises.
func (f *Forest) Subscribe(h notification.Handler) func() {
	return f.out.Subscribe(h)
}

// Partitions returns the partition roots in insertion order.
func (f *Forest) Partitions() []*tree.Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*tree.Node(nil), f.roots...)
}

// Partition returns the partition root with id.
func (f *Forest) Partition(id tree.NodeID) (*tree.Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	root, ok := f.byID[id]
	return root, ok
}

// View runs fn under the read lock; fn must not edit the forest.
func (f *Forest) View(fn func(roots []*tree.Node)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn(f.roots)
}

// AddPartition appends a detached partition root and raises PartitionAdded.
func (f *Forest) AddPartition(root *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if root == nil {
			return nil, tree.ErrNilNode
		}
		if root.Parent() != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotDetached, root.ID())
		}
		if err := f.insertRoot(len(f.roots), root); err != nil {
			return nil, err
		}
		c.markFresh(root)
		return notification.PartitionAdded{NewPartition: root}, nil
	})
}

// RemovePartition drops the partition with id and raises PartitionDeleted.
func (f *Forest) RemovePartition(id tree.NodeID) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		root, _, err := f.removeRoot(id)
		if err != nil {
			return nil, err
		}
		return notification.PartitionDeleted{DeletedPartition: root}, nil
	})
}

func (f *Forest) insertRoot(index int, root *tree.Node) error {
	if c := root.Classifier(); c == nil || !c.Partition {
		return fmt.Errorf("%w: %s", ErrNotPartition, root.ID())
	}
	if _, ok := f.byID[root.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePartition, root.ID())
	}
	if index < 0 || index > len(f.roots) {
		return fmt.Errorf("%w: partitions index=%d len=%d", tree.ErrIndexOutOfRange, index, len(f.roots))
	}
	f.roots = append(f.roots, nil)
	copy(f.roots[index+1:], f.roots[index:])
	f.roots[index] = root
	f.byID[root.ID()] = root
	return nil
}

func (f *Forest) removeRoot(id tree.NodeID) (*tree.Node, int, error) {
	root, ok := f.byID[id]
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrUnknownPartition, id)
	}
	for i, r := range f.roots {
		if r == root {
			f.roots = append(f.roots[:i:i], f.roots[i+1:]...)
			delete(f.byID, id)
			return root, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrUnknownPartition, id)
}

// contains reports whether n belongs to one of this forest's partitions.
func (f *Forest) contains(n *tree.Node) bool {
	if n == nil {
		return false
	}
	root := n.Root()
	return f.byID[root.ID()] == root
}

// edit runs one surgery under the write lock and delivers its notification.
// Inside Compose the notification is buffered instead.
func (f *Forest) edit(fn func(c *composition) (notification.Notification, error)) error {
	f.mu.Lock()
	c := f.compose
	n, err := fn(c)
	if err != nil || n == nil {
		f.mu.Unlock()
		return err
	}
	n = notification.WithHeader(n, notification.Header{NotificationID: notification.ID(f.ids.Next())})
	if c != nil {
		c.parts = append(c.parts, n)
		f.mu.Unlock()
		return nil
	}
	t := f.ticket()
	f.mu.Unlock()
	log.Debug().Msgf("partition.Forest.edit kind=%s id=%s ticket=%d", n.Kind(), n.ID(), t)
	return f.deliver(t, n)
}

// Tx is raw, non-notifying access to the forest's partition list.
type Tx struct {
	f *Forest
}

// Mutate runs fn with the write lock held. No notifications are raised.
func (f *Forest) Mutate(fn func(tx *Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&Tx{f: f})
}

// Partition returns the root with id.
func (tx *Tx) Partition(id tree.NodeID) (*tree.Node, bool) {
	root, ok := tx.f.byID[id]
	return root, ok
}

// InsertPartition places a detached root at index.
func (tx *Tx) InsertPartition(index int, root *tree.Node) error {
	if root == nil {
		return tree.ErrNilNode
	}
	if root.Parent() != nil {
		return fmt.Errorf("%w: %s", ErrNotDetached, root.ID())
	}
	return tx.f.insertRoot(index, root)
}

// AddPartition appends a detached root.
func (tx *Tx) AddPartition(root *tree.Node) error {
	return tx.InsertPartition(len(tx.f.roots), root)
}

// RemovePartition drops the root with id and reports its former index.
func (tx *Tx) RemovePartition(id tree.NodeID) (*tree.Node, int, error) {
	return tx.f.removeRoot(id)
}
