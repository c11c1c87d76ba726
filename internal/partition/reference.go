package partition

import (
	"fmt"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
)

// InsertReference inserts t at index of n's reference feat. On an occupied
// single reference at index 0 the target is overwritten instead.
func (f *Forest) InsertReference(n *tree.Node, feat *meta.Feature, index int, t tree.Target) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.insertReference(c, n, feat, index, t)
	})
}

// AddReference appends t to n's reference feat.
func (f *Forest) AddReference(n *tree.Node, feat *meta.Feature, t tree.Target) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		index := 0
		if n != nil && feat != nil && feat.Multiple {
			index = len(n.References(feat))
		}
		return f.insertReference(c, n, feat, index, t)
	})
}

// RemoveReference deletes the target at index of n's reference feat.
func (f *Forest) RemoveReference(n *tree.Node, feat *meta.Feature, index int) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, n); err != nil {
			return nil, err
		}
		old, err := n.RemoveReferenceRaw(feat, index)
		if err != nil {
			return nil, err
		}
		return notification.ReferenceDeleted{Parent: n, Reference: feat, Index: index, DeletedTarget: old}, nil
	})
}

// SetReference overwrites the target at index. When only one half of the
// target changes, the matching ResolveInfo or Target variant is raised.
func (f *Forest) SetReference(n *tree.Node, feat *meta.Feature, index int, t tree.Target) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.setReference(c, n, feat, index, func(tree.Target) tree.Target { return t })
	})
}

// SetResolveInfo changes only the resolve info of the target at index.
func (f *Forest) SetResolveInfo(n *tree.Node, feat *meta.Feature, index int, resolveInfo string) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.setReference(c, n, feat, index, func(old tree.Target) tree.Target {
			return tree.Target{ID: old.ID, ResolveInfo: resolveInfo}
		})
	})
}

// SetTargetID changes only the target id of the entry at index.
func (f *Forest) SetTargetID(n *tree.Node, feat *meta.Feature, index int, id tree.NodeID) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		return f.setReference(c, n, feat, index, func(old tree.Target) tree.Target {
			return tree.Target{ID: id, ResolveInfo: old.ResolveInfo}
		})
	})
}

// MoveReference moves the entry at fromIndex of from's fromFeat to toIndex of
// to's toFeat; toIndex is the final position.
func (f *Forest) MoveReference(from *tree.Node, fromFeat *meta.Feature, fromIndex int, to *tree.Node, toFeat *meta.Feature, toIndex int) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, from, to); err != nil {
			return nil, err
		}
		t, ok := from.ReferenceAt(fromFeat, fromIndex)
		if !ok {
			return nil, fmt.Errorf("%w: %s index=%d", tree.ErrIndexOutOfRange, fromFeat, fromIndex)
		}
		if from == to && fromFeat == toFeat {
			size := len(from.References(fromFeat))
			if toIndex < 0 || toIndex >= size {
				return nil, fmt.Errorf("%w: %s index=%d len=%d", tree.ErrIndexOutOfRange, toFeat, toIndex, size)
			}
			if toIndex == fromIndex {
				return nil, nil
			}
		} else if toFeat != nil && !toFeat.Multiple && toIndex == 0 && len(to.References(toFeat)) > 0 {
			return f.moveAndReplaceReference(from, fromFeat, fromIndex, to, toFeat, 0)
		}
		if _, err := from.RemoveReferenceRaw(fromFeat, fromIndex); err != nil {
			return nil, err
		}
		if err := to.InsertReferenceRaw(toFeat, toIndex, t); err != nil {
			_ = from.InsertReferenceRaw(fromFeat, fromIndex, t)
			return nil, err
		}
		switch {
		case from == to && fromFeat == toFeat:
			return notification.EntryMovedInSameReference{Parent: from, Reference: fromFeat, NewIndex: toIndex, OldIndex: fromIndex, Target: t}, nil
		case from == to:
			return notification.EntryMovedFromOtherReferenceInSameParent{
				Parent: from, NewReference: toFeat, NewIndex: toIndex, OldReference: fromFeat, OldIndex: fromIndex, Target: t,
			}, nil
		default:
			return notification.EntryMovedFromOtherReference{
				NewParent: to, NewReference: toFeat, NewIndex: toIndex,
				OldParent: from, OldReference: fromFeat, OldIndex: fromIndex, Target: t,
			}, nil
		}
	})
}

// MoveAndReplaceReference moves the entry at fromIndex onto the entry at
// toIndex, which is dropped. Both indices are positions before the edit.
func (f *Forest) MoveAndReplaceReference(from *tree.Node, fromFeat *meta.Feature, fromIndex int, to *tree.Node, toFeat *meta.Feature, toIndex int) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, from, to); err != nil {
			return nil, err
		}
		return f.moveAndReplaceReference(from, fromFeat, fromIndex, to, toFeat, toIndex)
	})
}

func (f *Forest) insertReference(c *composition, n *tree.Node, feat *meta.Feature, index int, t tree.Target) (notification.Notification, error) {
	if err := f.referenceOwner(c, n); err != nil {
		return nil, err
	}
	if feat != nil && !feat.Multiple && index == 0 && len(n.References(feat)) > 0 {
		return f.setReference(c, n, feat, 0, func(tree.Target) tree.Target { return t })
	}
	if err := n.InsertReferenceRaw(feat, index, t); err != nil {
		return nil, err
	}
	return notification.ReferenceAdded{Parent: n, Reference: feat, Index: index, NewTarget: t}, nil
}

func (f *Forest) setReference(c *composition, n *tree.Node, feat *meta.Feature, index int, next func(tree.Target) tree.Target) (notification.Notification, error) {
	if err := f.referenceOwner(c, n); err != nil {
		return nil, err
	}
	old, ok := n.ReferenceAt(feat, index)
	if !ok {
		return nil, fmt.Errorf("%w: %s index=%d", tree.ErrIndexOutOfRange, feat, index)
	}
	t := next(old)
	if t == old {
		return nil, nil
	}
	if _, err := n.SetReferenceRaw(feat, index, t); err != nil {
		return nil, err
	}
	return referenceChange(n, feat, index, old, t), nil
}

// referenceChange picks the narrowest variant describing old -> t.
func referenceChange(n *tree.Node, feat *meta.Feature, index int, old, t tree.Target) notification.Notification {
	switch {
	case old.ID == t.ID && old.ResolveInfo == "":
		return notification.ReferenceResolveInfoAdded{Parent: n, Reference: feat, Index: index, NewResolveInfo: t.ResolveInfo, Target: t.ID}
	case old.ID == t.ID && t.ResolveInfo == "":
		return notification.ReferenceResolveInfoDeleted{Parent: n, Reference: feat, Index: index, Target: t.ID, DeletedResolveInfo: old.ResolveInfo}
	case old.ID == t.ID:
		return notification.ReferenceResolveInfoChanged{
			Parent: n, Reference: feat, Index: index, NewResolveInfo: t.ResolveInfo, Target: t.ID, OldResolveInfo: old.ResolveInfo,
		}
	case old.ResolveInfo == t.ResolveInfo && old.ID == "":
		return notification.ReferenceTargetAdded{Parent: n, Reference: feat, Index: index, NewTarget: t.ID, ResolveInfo: t.ResolveInfo}
	case old.ResolveInfo == t.ResolveInfo && t.ID == "":
		return notification.ReferenceTargetDeleted{Parent: n, Reference: feat, Index: index, ResolveInfo: t.ResolveInfo, DeletedTarget: old.ID}
	case old.ResolveInfo == t.ResolveInfo:
		return notification.ReferenceTargetChanged{
			Parent: n, Reference: feat, Index: index, NewTarget: t.ID, ResolveInfo: t.ResolveInfo, OldTarget: old.ID,
		}
	default:
		return notification.ReferenceChanged{Parent: n, Reference: feat, Index: index, NewTarget: t, OldTarget: old}
	}
}

func (f *Forest) moveAndReplaceReference(from *tree.Node, fromFeat *meta.Feature, fromIndex int, to *tree.Node, toFeat *meta.Feature, toIndex int) (notification.Notification, error) {
	sameRef := from == to && fromFeat == toFeat
	if sameRef && fromIndex == toIndex {
		return nil, fmt.Errorf("%w: entry cannot replace itself", ErrWrongSlot)
	}
	moved, ok := from.ReferenceAt(fromFeat, fromIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %s index=%d", tree.ErrIndexOutOfRange, fromFeat, fromIndex)
	}
	if _, ok := to.ReferenceAt(toFeat, toIndex); !ok {
		return nil, fmt.Errorf("%w: %s index=%d", tree.ErrIndexOutOfRange, toFeat, toIndex)
	}
	if _, err := from.RemoveReferenceRaw(fromFeat, fromIndex); err != nil {
		return nil, err
	}
	at := toIndex
	if sameRef && fromIndex < toIndex {
		at--
	}
	replaced, err := to.SetReferenceRaw(toFeat, at, moved)
	if err != nil {
		_ = from.InsertReferenceRaw(fromFeat, fromIndex, moved)
		return nil, err
	}
	switch {
	case sameRef:
		return notification.EntryMovedAndReplacedInSameReference{
			Parent: from, Reference: fromFeat, NewIndex: fromIndex, MovedTarget: moved, OldIndex: toIndex, ReplacedTarget: replaced,
		}, nil
	case from == to:
		return notification.EntryMovedAndReplacedFromOtherReferenceInSameParent{
			Parent: from, NewReference: toFeat, NewIndex: toIndex, MovedTarget: moved,
			OldReference: fromFeat, OldIndex: fromIndex, ReplacedTarget: replaced,
		}, nil
	default:
		return notification.EntryMovedAndReplacedFromOtherReference{
			NewParent: to, NewReference: toFeat, NewIndex: toIndex, MovedTarget: moved,
			OldParent: from, OldReference: fromFeat, OldIndex: fromIndex, ReplacedTarget: replaced,
		}, nil
	}
}

func (f *Forest) referenceOwner(c *composition, nodes ...*tree.Node) error {
	if err := f.member(nodes...); err != nil {
		return err
	}
	return c.owners(nodes...)
}
