// Package identity owns the registry correlating node ids with live nodes of
// one tree instance.
//
// Ownership boundary:
// - id -> node handle and parent id bookkeeping
// - transactional updates that roll back on failure
// - keeping a locally edited forest registered (Tracker)
//
// A registry belongs to one replica; two replicas never share node handles.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/treesync/internal/tree"
)

var (
	ErrAlreadyRegistered = errors.New("identity: id already registered")
	ErrNotRegistered     = errors.New("identity: id not registered")
	ErrNilNode           = errors.New("identity: nil node")
)

type entry struct {
	node   *tree.Node
	parent tree.NodeID
}

// Registry maps node ids to live nodes. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[tree.NodeID]entry
}

func New() *Registry {
	return &Registry{entries: make(map[tree.NodeID]entry)}
}

// Lookup returns the node registered under id.
func (r *Registry) Lookup(id tree.NodeID) (*tree.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.node, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id tree.NodeID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns id -> parent id for every entry. Roots map to "".
func (r *Registry) Snapshot() map[tree.NodeID]tree.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[tree.NodeID]tree.NodeID, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.parent
	}
	return out
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []tree.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tree.NodeID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Update runs fn with exclusive access. Registry changes made through the Txn
// are rolled back when fn returns an error. Readers never observe a partial update.
func (r *Registry) Update(fn func(tx *Txn) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &Txn{r: r}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Seed registers root and every descendant.
func (r *Registry) Seed(root *tree.Node) error {
	return r.Update(func(tx *Txn) error { return tx.RegisterTree(root) })
}

// Txn is a registry view valid only inside Update.
type Txn struct {
	r    *Registry
	undo []func()
}

// Lookup returns the node registered under id.
func (tx *Txn) Lookup(id tree.NodeID) (*tree.Node, bool) {
	e, ok := tx.r.entries[id]
	return e.node, ok
}

// Resolve is Lookup returning ErrNotRegistered for a missing id.
func (tx *Txn) Resolve(id tree.NodeID) (*tree.Node, error) {
	n, ok := tx.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return n, nil
}

// Register adds n under its id with its current parent.
func (tx *Txn) Register(n *tree.Node) error {
	if n == nil {
		return ErrNilNode
	}
	id := n.ID()
	if _, ok := tx.r.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	tx.r.entries[id] = entry{node: n, parent: parentID(n)}
	tx.undo = append(tx.undo, func() { delete(tx.r.entries, id) })
	return nil
}

// RegisterTree registers root and every descendant, annotations included.
func (tx *Txn) RegisterTree(root *tree.Node) error {
	if root == nil {
		return ErrNilNode
	}
	for _, n := range root.Descendants(true) {
		if err := tx.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes id.
func (tx *Txn) Unregister(id tree.NodeID) error {
	e, ok := tx.r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	delete(tx.r.entries, id)
	tx.undo = append(tx.undo, func() { tx.r.entries[id] = e })
	return nil
}

// UnregisterTree removes root and every descendant.
func (tx *Txn) UnregisterTree(root *tree.Node) error {
	if root == nil {
		return ErrNilNode
	}
	for _, id := range root.DescendantIDs(true) {
		if err := tx.Unregister(id); err != nil {
			return err
		}
	}
	return nil
}

// Retarget records n's current parent.
func (tx *Txn) Retarget(n *tree.Node) error {
	if n == nil {
		return ErrNilNode
	}
	id := n.ID()
	e, ok := tx.r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	prev := e
	e.parent = parentID(n)
	tx.r.entries[id] = e
	tx.undo = append(tx.undo, func() { tx.r.entries[id] = prev })
	return nil
}

// Parent returns the parent id recorded for id.
func (tx *Txn) Parent(id tree.NodeID) (tree.NodeID, bool) {
	e, ok := tx.r.entries[id]
	return e.parent, ok
}

func (tx *Txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func parentID(n *tree.Node) tree.NodeID {
	if p := n.Parent(); p != nil {
		return p.ID()
	}
	return ""
}
