package replicator

import (
	"fmt"

	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/tree"
)

// applier carries one apply: resolution, verification and undoable surgery.
// A nil feature addresses the annotation list.
type applier struct {
	kind   notification.Kind
	reg    *identity.Txn
	forest *partition.Tx
	undo   []func()
}

func (a *applier) rollback() {
	for i := len(a.undo) - 1; i >= 0; i-- {
		a.undo[i]()
	}
	a.undo = nil
}

func (a *applier) node(n *tree.Node) (*tree.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: kind=%s", ErrIncomplete, a.kind)
	}
	r, err := a.reg.Resolve(n.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: kind=%s: %w", ErrIdentityMismatch, a.kind, err)
	}
	return r, nil
}

func (a *applier) nodes(in ...*tree.Node) ([]*tree.Node, error) {
	out := make([]*tree.Node, 0, len(in))
	for _, n := range in {
		r, err := a.node(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *applier) mismatch(id tree.NodeID, field, want, got string) error {
	return &MismatchError{Kind: a.kind, Node: id, Field: field, Want: want, Got: got}
}

func slotName(parent *tree.Node, f *meta.Feature, index int) string {
	if f == nil {
		return fmt.Sprintf("%s.annotations[%d]", parent.ID(), index)
	}
	return fmt.Sprintf("%s.%s[%d]", parent.ID(), f.Name, index)
}

func slotAt(parent *tree.Node, f *meta.Feature, index int) (*tree.Node, bool) {
	if f == nil {
		return parent.AnnotationAt(index)
	}
	return parent.ChildAt(f, index)
}

// expectAt checks that subject occupies index of parent's slot f.
func (a *applier) expectAt(parent *tree.Node, f *meta.Feature, index int, subject *tree.Node) error {
	got, ok := slotAt(parent, f, index)
	if !ok {
		return a.mismatch(subject.ID(), "position", slotName(parent, f, index), "empty slot")
	}
	if got != subject {
		return a.mismatch(subject.ID(), "occupant of "+slotName(parent, f, index), string(subject.ID()), string(got.ID()))
	}
	return nil
}

func (a *applier) insert(parent *tree.Node, f *meta.Feature, index int, child *tree.Node) error {
	var err error
	if f == nil {
		err = parent.InsertAnnotationRaw(index, child)
	} else {
		err = parent.InsertChildRaw(f, index, child)
	}
	if err != nil {
		return err
	}
	a.undo = append(a.undo, func() { _, _ = a.remove0(parent, f, index) })
	return nil
}

func (a *applier) remove(parent *tree.Node, f *meta.Feature, index int) (*tree.Node, error) {
	child, err := a.remove0(parent, f, index)
	if err != nil {
		return nil, err
	}
	a.undo = append(a.undo, func() {
		if f == nil {
			_ = parent.InsertAnnotationRaw(index, child)
		} else {
			_ = parent.InsertChildRaw(f, index, child)
		}
	})
	return child, nil
}

func (a *applier) remove0(parent *tree.Node, f *meta.Feature, index int) (*tree.Node, error) {
	if f == nil {
		return parent.RemoveAnnotationRaw(index)
	}
	return parent.RemoveChildRaw(f, index)
}

// add materializes a copy of content at index and registers it.
func (a *applier) add(parent *tree.Node, f *meta.Feature, index int, content *tree.Node) error {
	if content == nil {
		return fmt.Errorf("%w: kind=%s new content", ErrIncomplete, a.kind)
	}
	clone := content.Clone()
	if err := a.insert(parent, f, index, clone); err != nil {
		return err
	}
	return a.reg.RegisterTree(clone)
}

// drop removes the declared subject from index and unregisters its subtree.
func (a *applier) drop(parent *tree.Node, f *meta.Feature, index int, subject *tree.Node) error {
	if err := a.expectAt(parent, f, index, subject); err != nil {
		return err
	}
	if _, err := a.remove(parent, f, index); err != nil {
		return err
	}
	return a.reg.UnregisterTree(subject)
}

// replace evicts the declared occupant at index and puts a copy of content there.
func (a *applier) replace(parent *tree.Node, f *meta.Feature, index int, replaced, content *tree.Node) error {
	if err := a.drop(parent, f, index, replaced); err != nil {
		return err
	}
	return a.add(parent, f, index, content)
}

// move relocates the same node instance; newIndex is its final position.
func (a *applier) move(oldParent *tree.Node, oldF *meta.Feature, oldIndex int, newParent *tree.Node, newF *meta.Feature, newIndex int, moved *tree.Node) error {
	if err := a.expectAt(oldParent, oldF, oldIndex, moved); err != nil {
		return err
	}
	if _, err := a.remove(oldParent, oldF, oldIndex); err != nil {
		return err
	}
	if err := a.insert(newParent, newF, newIndex, moved); err != nil {
		return err
	}
	return a.reg.Retarget(moved)
}

// moveAndReplace detaches moved from oldIndex, evicts replaced from newIndex and
// puts moved there. Both indices are before-state positions; callers decoding a
// single-list event pass its indices swapped.
func (a *applier) moveAndReplace(oldParent *tree.Node, oldF *meta.Feature, oldIndex int, newParent *tree.Node, newF *meta.Feature, newIndex int, moved, replaced *tree.Node) error {
	if moved == replaced {
		return a.mismatch(moved.ID(), "replaced", "a different node", "the moved node")
	}
	if err := a.expectAt(oldParent, oldF, oldIndex, moved); err != nil {
		return err
	}
	if err := a.expectAt(newParent, newF, newIndex, replaced); err != nil {
		return err
	}
	if _, err := a.remove(oldParent, oldF, oldIndex); err != nil {
		return err
	}
	at := newIndex
	if oldParent == newParent && oldF == newF && oldIndex < newIndex {
		at--
	}
	if _, err := a.remove(newParent, newF, at); err != nil {
		return err
	}
	if err := a.insert(newParent, newF, at, moved); err != nil {
		return err
	}
	if err := a.reg.UnregisterTree(replaced); err != nil {
		return err
	}
	return a.reg.Retarget(moved)
}

func (a *applier) expectTarget(parent *tree.Node, f *meta.Feature, index int, want tree.Target) error {
	got, ok := parent.ReferenceAt(f, index)
	if !ok {
		return a.mismatch(parent.ID(), "reference "+slotName(parent, f, index), want.String(), "empty slot")
	}
	if got != want {
		return a.mismatch(parent.ID(), "reference "+slotName(parent, f, index), want.String(), got.String())
	}
	return nil
}

func (a *applier) insertTarget(parent *tree.Node, f *meta.Feature, index int, t tree.Target) error {
	if err := parent.InsertReferenceRaw(f, index, t); err != nil {
		return err
	}
	a.undo = append(a.undo, func() { _, _ = parent.RemoveReferenceRaw(f, index) })
	return nil
}

func (a *applier) removeTarget(parent *tree.Node, f *meta.Feature, index int) (tree.Target, error) {
	t, err := parent.RemoveReferenceRaw(f, index)
	if err != nil {
		return tree.Target{}, err
	}
	a.undo = append(a.undo, func() { _ = parent.InsertReferenceRaw(f, index, t) })
	return t, nil
}

func (a *applier) setTarget(parent *tree.Node, f *meta.Feature, index int, t tree.Target) error {
	old, err := parent.SetReferenceRaw(f, index, t)
	if err != nil {
		return err
	}
	a.undo = append(a.undo, func() { _, _ = parent.SetReferenceRaw(f, index, old) })
	return nil
}

// rewrite verifies the entry at index equals want and overwrites it with next.
func (a *applier) rewrite(parent *tree.Node, f *meta.Feature, index int, want, next tree.Target) error {
	if err := a.expectTarget(parent, f, index, want); err != nil {
		return err
	}
	return a.setTarget(parent, f, index, next)
}

func (a *applier) moveTarget(oldParent *tree.Node, oldF *meta.Feature, oldIndex int, newParent *tree.Node, newF *meta.Feature, newIndex int, t tree.Target) error {
	if err := a.expectTarget(oldParent, oldF, oldIndex, t); err != nil {
		return err
	}
	if _, err := a.removeTarget(oldParent, oldF, oldIndex); err != nil {
		return err
	}
	return a.insertTarget(newParent, newF, newIndex, t)
}

func (a *applier) moveAndReplaceTarget(oldParent *tree.Node, oldF *meta.Feature, oldIndex int, newParent *tree.Node, newF *meta.Feature, newIndex int, moved, replaced tree.Target) error {
	if err := a.expectTarget(oldParent, oldF, oldIndex, moved); err != nil {
		return err
	}
	if err := a.expectTarget(newParent, newF, newIndex, replaced); err != nil {
		return err
	}
	if oldParent == newParent && oldF == newF && oldIndex == newIndex {
		return a.mismatch(oldParent.ID(), "reference "+slotName(oldParent, oldF, oldIndex), "two distinct entries", "the same entry")
	}
	if _, err := a.removeTarget(oldParent, oldF, oldIndex); err != nil {
		return err
	}
	at := newIndex
	if oldParent == newParent && oldF == newF && oldIndex < newIndex {
		at--
	}
	return a.setTarget(newParent, newF, at, moved)
}

func (a *applier) setProperty(n *tree.Node, f *meta.Feature, v any) error {
	old, had := n.Property(f)
	if err := n.SetPropertyRaw(f, v); err != nil {
		return err
	}
	a.undo = append(a.undo, func() {
		if had {
			_ = n.SetPropertyRaw(f, old)
		} else {
			_ = n.SetPropertyRaw(f, nil)
		}
	})
	return nil
}

func (a *applier) expectProperty(n *tree.Node, f *meta.Feature, want any, present bool) error {
	got, had := n.Property(f)
	switch {
	case !present && had:
		return a.mismatch(n.ID(), "property "+f.Name, "unset", fmt.Sprint(got))
	case present && !had:
		return a.mismatch(n.ID(), "property "+f.Name, fmt.Sprint(want), "unset")
	case present && !tree.SameValue(got, want):
		return a.mismatch(n.ID(), "property "+f.Name, fmt.Sprint(want), fmt.Sprint(got))
	}
	return nil
}
