package partition

import (
	"fmt"

	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
)

// InsertAnnotation places ann at index of parent's annotations. An attached
// annotation is moved and index is its final position.
func (f *Forest) InsertAnnotation(parent *tree.Node, index int, ann *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.insertAnnotation(c, parent, index, ann)
	})
}

// AddAnnotation appends ann to parent's annotations. An annotation already on
// parent stays where it is.
func (f *Forest) AddAnnotation(parent, ann *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if ann != nil && ann.IsAnnotation() && ann.Parent() == parent {
			return nil, nil
		}
		index := 0
		if parent != nil {
			index = len(parent.Annotations())
		}
		return f.insertAnnotation(c, parent, index, ann)
	})
}

// RemoveAnnotation detaches ann from its parent.
func (f *Forest) RemoveAnnotation(ann *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.member(ann); err != nil {
			return nil, err
		}
		if !ann.IsAnnotation() {
			return nil, fmt.Errorf("%w: %s is not an annotation", ErrWrongSlot, ann.ID())
		}
		parent, index := ann.Parent(), ann.Index()
		if err := c.owners(parent); err != nil {
			return nil, err
		}
		if _, err := parent.RemoveAnnotationRaw(index); err != nil {
			return nil, err
		}
		return notification.AnnotationDeleted{Parent: parent, Index: index, DeletedAnnotation: ann}, nil
	})
}

// ReplaceAnnotation puts replacement where old is, moving it if attached.
func (f *Forest) ReplaceAnnotation(old, replacement *tree.Node) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.member(old); err != nil {
			return nil, err
		}
		if !old.IsAnnotation() {
			return nil, fmt.Errorf("%w: %s is not an annotation", ErrWrongSlot, old.ID())
		}
		if replacement == nil {
			return nil, tree.ErrNilNode
		}
		if replacement == old {
			return nil, nil
		}
		parent, index := old.Parent(), old.Index()
		if err := c.owners(parent); err != nil {
			return nil, err
		}
		if replacement.Parent() != nil {
			return f.moveAndReplaceAnnotation(c, old, replacement)
		}
		if err := f.detachedOnly(replacement); err != nil {
			return nil, err
		}
		if _, err := parent.RemoveAnnotationRaw(index); err != nil {
			return nil, err
		}
		if err := parent.InsertAnnotationRaw(index, replacement); err != nil {
			_ = parent.InsertAnnotationRaw(index, old)
			return nil, err
		}
		c.markFresh(replacement)
		return notification.AnnotationReplaced{Parent: parent, Index: index, NewAnnotation: replacement, ReplacedAnnotation: old}, nil
	})
}

func (f *Forest) insertAnnotation(c *composition, parent *tree.Node, index int, ann *tree.Node) (notification.Notification, error) {
	if err := f.member(parent); err != nil {
		return nil, err
	}
	if ann == nil {
		return nil, tree.ErrNilNode
	}
	if err := c.owners(parent); err != nil {
		return nil, err
	}
	if ann.Parent() == nil {
		if err := f.detachedOnly(ann); err != nil {
			return nil, err
		}
		if err := parent.InsertAnnotationRaw(index, ann); err != nil {
			return nil, err
		}
		c.markFresh(ann)
		return notification.AnnotationAdded{Parent: parent, Index: index, NewAnnotation: ann}, nil
	}

	if err := f.member(ann); err != nil {
		return nil, err
	}
	if !ann.IsAnnotation() {
		return nil, fmt.Errorf("%w: %s is not an annotation", ErrWrongSlot, ann.ID())
	}
	oldParent, oldIndex := ann.Parent(), ann.Index()
	if err := c.owners(oldParent); err != nil {
		return nil, err
	}
	if ann.IsAncestorOf(parent) {
		return nil, fmt.Errorf("%w: %s into %s", tree.ErrCycle, ann.ID(), parent.ID())
	}
	if oldParent == parent {
		size := len(parent.Annotations())
		if index < 0 || index >= size {
			return nil, fmt.Errorf("%w: annotations index=%d len=%d", tree.ErrIndexOutOfRange, index, size)
		}
		if index == oldIndex {
			return nil, nil
		}
	}
	if _, err := oldParent.RemoveAnnotationRaw(oldIndex); err != nil {
		return nil, err
	}
	if err := parent.InsertAnnotationRaw(index, ann); err != nil {
		_ = oldParent.InsertAnnotationRaw(oldIndex, ann)
		return nil, err
	}
	if oldParent == parent {
		return notification.AnnotationMovedInSameParent{Parent: parent, NewIndex: index, MovedAnnotation: ann, OldIndex: oldIndex}, nil
	}
	return notification.AnnotationMovedFromOtherParent{
		NewParent: parent, NewIndex: index, MovedAnnotation: ann, OldParent: oldParent, OldIndex: oldIndex,
	}, nil
}

func (f *Forest) moveAndReplaceAnnotation(c *composition, replaced, moved *tree.Node) (notification.Notification, error) {
	if err := f.member(moved); err != nil {
		return nil, err
	}
	if !moved.IsAnnotation() {
		return nil, fmt.Errorf("%w: %s is not an annotation", ErrWrongSlot, moved.ID())
	}
	newParent, newIndex := replaced.Parent(), replaced.Index()
	oldParent, oldIndex := moved.Parent(), moved.Index()
	if err := c.owners(oldParent); err != nil {
		return nil, err
	}
	if moved.IsAncestorOf(newParent) {
		return nil, fmt.Errorf("%w: %s into %s", tree.ErrCycle, moved.ID(), newParent.ID())
	}
	if _, err := oldParent.RemoveAnnotationRaw(oldIndex); err != nil {
		return nil, err
	}
	at := replaced.Index()
	if _, err := newParent.RemoveAnnotationRaw(at); err != nil {
		return nil, err
	}
	if err := newParent.InsertAnnotationRaw(at, moved); err != nil {
		return nil, err
	}
	if oldParent == newParent {
		return notification.AnnotationMovedAndReplacedInSameParent{
			Parent: newParent, NewIndex: oldIndex, MovedAnnotation: moved, OldIndex: newIndex, ReplacedAnnotation: replaced,
		}, nil
	}
	return notification.AnnotationMovedAndReplacedFromOtherParent{
		NewParent: newParent, NewIndex: newIndex, MovedAnnotation: moved,
		OldParent: oldParent, OldIndex: oldIndex, ReplacedAnnotation: replaced,
	}, nil
}
