package partition

import (
	"fmt"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
)

// InsertChild places child at index of parent's containment feat. A detached
// child is added; an attached child is moved, and index is its final position.
// Inserting into an occupied single containment replaces the occupant.
func (f *Forest) InsertChild(parent *tree.Node, feat *meta.Feature, index int, child *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.insertChild(c, parent, feat, index, child)
	})
}

// AddChild appends child to parent's containment feat. A child already held by
// that containment stays where it is and nothing is raised.
func (f *Forest) AddChild(parent *tree.Node, feat *meta.Feature, child *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if child != nil && child.Parent() == parent && child.Containment() == feat {
			return nil, nil
		}
		index := 0
		if parent != nil && feat != nil && feat.Multiple {
			index = len(parent.Children(feat))
		}
		return f.insertChild(c, parent, feat, index, child)
	})
}

// RemoveChild detaches child from its containment.
func (f *Forest) RemoveChild(child *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.member(child); err != nil {
			return nil, err
		}
		parent, feat := child.Parent(), child.Containment()
		if feat == nil {
			return nil, fmt.Errorf("%w: %s is not in a containment", ErrWrongSlot, child.ID())
		}
		if err := c.owners(parent); err != nil {
			return nil, err
		}
		index := child.Index()
		if _, err := parent.RemoveChildRaw(feat, index); err != nil {
			return nil, err
		}
		return notification.ChildDeleted{Parent: parent, Containment: feat, Index: index, DeletedChild: child}, nil
	})
}

// ReplaceChild puts replacement where old is. An attached replacement is moved
// there and old is evicted in the same edit.
func (f *Forest) ReplaceChild(old, replacement *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.member(old); err != nil {
			return nil, err
		}
		if replacement == nil {
			return nil, tree.ErrNilNode
		}
		if replacement == old {
			return nil, nil
		}
		if replacement.Parent() == nil {
			return f.replaceChild(c, old, replacement)
		}
		return f.moveAndReplaceChild(c, old, replacement)
	})
}

func (f *Forest) insertChild(c *composition, parent *tree.Node, feat *meta.Feature, index int, child *tree.Node) (notification.Notification, error) {
	if err := f.member(parent); err != nil {
		return nil, err
	}
	if child == nil {
		return nil, tree.ErrNilNode
	}
	if err := c.owners(parent); err != nil {
		return nil, err
	}
	if child.Parent() != nil {
		return f.moveChild(c, parent, feat, index, child)
	}
	if err := f.detachedOnly(child); err != nil {
		return nil, err
	}
	if feat != nil && !feat.Multiple {
		if occupant, ok := parent.ChildAt(feat, 0); ok && index == 0 {
			return f.replaceChild(c, occupant, child)
		}
	}
	if err := parent.InsertChildRaw(feat, index, child); err != nil {
		return nil, err
	}
	c.markFresh(child)
	return notification.ChildAdded{Parent: parent, Containment: feat, Index: index, NewChild: child}, nil
}

func (f *Forest) moveChild(c *composition, newParent *tree.Node, newFeat *meta.Feature, index int, child *tree.Node) (notification.Notification, error) {
	if err := f.member(child); err != nil {
		return nil, err
	}
	oldParent, oldFeat, oldIndex := child.Parent(), child.Containment(), child.Index()
	if oldFeat == nil {
		return nil, fmt.Errorf("%w: %s is an annotation", ErrWrongSlot, child.ID())
	}
	if err := c.owners(oldParent, newParent); err != nil {
		return nil, err
	}
	if child.IsAncestorOf(newParent) {
		return nil, fmt.Errorf("%w: %s into %s", tree.ErrCycle, child.ID(), newParent.ID())
	}

	if oldParent == newParent && oldFeat == newFeat {
		size := len(oldParent.Children(oldFeat))
		if index < 0 || index >= size {
			return nil, fmt.Errorf("%w: %s index=%d len=%d", tree.ErrIndexOutOfRange, oldFeat, index, size)
		}
		if index == oldIndex {
			return nil, nil
		}
		if err := relocate(child, newParent, newFeat, index); err != nil {
			return nil, err
		}
		return notification.ChildMovedInSameContainment{
			Parent: oldParent, Containment: oldFeat, NewIndex: index, MovedChild: child, OldIndex: oldIndex,
		}, nil
	}

	if newFeat != nil && !newFeat.Multiple {
		if occupant, ok := newParent.ChildAt(newFeat, 0); ok && index == 0 {
			return f.moveAndReplaceChild(c, occupant, child)
		}
	}
	if err := relocate(child, newParent, newFeat, index); err != nil {
		return nil, err
	}
	if oldParent == newParent {
		return notification.ChildMovedFromOtherContainmentInSameParent{
			Parent: newParent, NewContainment: newFeat, NewIndex: index, MovedChild: child,
			OldContainment: oldFeat, OldIndex: oldIndex,
		}, nil
	}
	return notification.ChildMovedFromOtherContainment{
		NewParent: newParent, NewContainment: newFeat, NewIndex: index, MovedChild: child,
		OldParent: oldParent, OldContainment: oldFeat, OldIndex: oldIndex,
	}, nil
}

func (f *Forest) replaceChild(c *composition, old, replacement *tree.Node) (notification.Notification, error) {
	parent, feat, index := old.Parent(), old.Containment(), old.Index()
	if feat == nil {
		return nil, fmt.Errorf("%w: %s is not in a containment", ErrWrongSlot, old.ID())
	}
	if err := f.detachedOnly(replacement); err != nil {
		return nil, err
	}
	if err := c.owners(parent); err != nil {
		return nil, err
	}
	if _, err := parent.RemoveChildRaw(feat, index); err != nil {
		return nil, err
	}
	if err := parent.InsertChildRaw(feat, index, replacement); err != nil {
		_ = parent.InsertChildRaw(feat, index, old)
		return nil, err
	}
	c.markFresh(replacement)
	return notification.ChildReplaced{
		Parent: parent, Containment: feat, Index: index, NewChild: replacement, ReplacedChild: old,
	}, nil
}

// moveAndReplaceChild moves moved into replaced's slot and evicts replaced.
// Across slots NewIndex reports replaced's position and OldIndex moved's; within one
// containment the two are swapped. Both are taken before the edit.
func (f *Forest) moveAndReplaceChild(c *composition, replaced, moved *tree.Node) (notification.Notification, error) {
	if err := f.member(moved); err != nil {
		return nil, err
	}
	newParent, newFeat, newIndex := replaced.Parent(), replaced.Containment(), replaced.Index()
	oldParent, oldFeat, oldIndex := moved.Parent(), moved.Containment(), moved.Index()
	if newFeat == nil || oldFeat == nil {
		return nil, fmt.Errorf("%w: move and replace needs two containment slots", ErrWrongSlot)
	}
	if err := c.owners(oldParent, newParent); err != nil {
		return nil, err
	}
	if moved.IsAncestorOf(newParent) {
		return nil, fmt.Errorf("%w: %s into %s", tree.ErrCycle, moved.ID(), newParent.ID())
	}
	if err := swapInto(moved, replaced); err != nil {
		return nil, err
	}
	switch {
	case oldParent == newParent && oldFeat == newFeat:
		return notification.ChildMovedAndReplacedInSameContainment{
			Parent: newParent, Containment: newFeat, NewIndex: oldIndex, MovedChild: moved,
			OldIndex: newIndex, ReplacedChild: replaced,
		}, nil
	case oldParent == newParent:
		return notification.ChildMovedAndReplacedFromOtherContainmentInSameParent{
			Parent: newParent, NewContainment: newFeat, NewIndex: newIndex, MovedChild: moved,
			OldContainment: oldFeat, OldIndex: oldIndex, ReplacedChild: replaced,
		}, nil
	default:
		return notification.ChildMovedAndReplacedFromOtherContainment{
			NewParent: newParent, NewContainment: newFeat, NewIndex: newIndex, MovedChild: moved,
			OldParent: oldParent, OldContainment: oldFeat, OldIndex: oldIndex, ReplacedChild: replaced,
		}, nil
	}
}

// relocate detaches child and inserts it at index of parent's feat, restoring
// the old position when the insert fails.
func relocate(child, parent *tree.Node, feat *meta.Feature, index int) error {
	oldParent, oldFeat := child.Parent(), child.Containment()
	_, oldIndex, err := child.Detach()
	if err != nil {
		return err
	}
	if err := parent.InsertChildRaw(feat, index, child); err != nil {
		_ = oldParent.InsertChildRaw(oldFeat, oldIndex, child)
		return err
	}
	return nil
}

// swapInto detaches moved, evicts replaced and puts moved into replaced's former slot.
func swapInto(moved, replaced *tree.Node) error {
	parent, feat := replaced.Parent(), replaced.Containment()
	if _, _, err := moved.Detach(); err != nil {
		return err
	}
	index := replaced.Index()
	if _, err := parent.RemoveChildRaw(feat, index); err != nil {
		return err
	}
	return parent.InsertChildRaw(feat, index, moved)
}

func (f *Forest) member(nodes ...*tree.Node) error {
	for _, n := range nodes {
		if n == nil {
			return tree.ErrNilNode
		}
		if !f.contains(n) {
			return fmt.Errorf("%w: %s", ErrNotInForest, n.ID())
		}
	}
	return nil
}

func (f *Forest) detachedOnly(n *tree.Node) error {
	if n.Parent() != nil || f.byID[n.ID()] == n {
		return fmt.Errorf("%w: %s", ErrNotDetached, n.ID())
	}
	return nil
}
