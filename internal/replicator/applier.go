package replicator

import (
	"fmt"

	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

var _ notification.Visitor = (*applier)(nil)

func (a *applier) VisitPartitionAdded(n notification.PartitionAdded) error {
	if n.NewPartition == nil {
		return fmt.Errorf("%w: kind=%s new partition", ErrIncomplete, a.kind)
	}
	clone := n.NewPartition.Clone()
	if err := a.forest.AddPartition(clone); err != nil {
		return err
	}
	a.undo = append(a.undo, func() { _, _, _ = a.forest.RemovePartition(clone.ID()) })
	return a.reg.RegisterTree(clone)
}

func (a *applier) VisitPartitionDeleted(n notification.PartitionDeleted) error {
	root, err := a.node(n.DeletedPartition)
	if err != nil {
		return err
	}
	if cur, ok := a.forest.Partition(root.ID()); !ok || cur != root {
		return a.mismatch(root.ID(), "position", "partition root", "nested node")
	}
	_, index, err := a.forest.RemovePartition(root.ID())
	if err != nil {
		return err
	}
	a.undo = append(a.undo, func() { _ = a.forest.InsertPartition(index, root) })
	return a.reg.UnregisterTree(root)
}

func (a *applier) VisitClassifierChanged(n notification.ClassifierChanged) error {
	node, err := a.node(n.Node)
	if err != nil {
		return err
	}
	if n.NewClassifier == nil || n.OldClassifier == nil {
		return fmt.Errorf("%w: kind=%s classifier", ErrIncomplete, a.kind)
	}
	cur := node.Classifier()
	if cur == nil || cur.Pointer() != n.OldClassifier.Pointer() {
		got := "none"
		if cur != nil {
			got = cur.Pointer().String()
		}
		return a.mismatch(node.ID(), "classifier", n.OldClassifier.Pointer().String(), got)
	}
	node.SetClassifierRaw(n.NewClassifier)
	a.undo = append(a.undo, func() { node.SetClassifierRaw(cur) })
	return nil
}

func (a *applier) VisitPropertyAdded(n notification.PropertyAdded) error {
	node, err := a.node(n.Node)
	if err != nil {
		return err
	}
	if err := a.expectProperty(node, n.Property, nil, false); err != nil {
		return err
	}
	return a.setProperty(node, n.Property, n.NewValue)
}

func (a *applier) VisitPropertyDeleted(n notification.PropertyDeleted) error {
	node, err := a.node(n.Node)
	if err != nil {
		return err
	}
	if err := a.expectProperty(node, n.Property, n.OldValue, true); err != nil {
		return err
	}
	return a.setProperty(node, n.Property, nil)
}

func (a *applier) VisitPropertyChanged(n notification.PropertyChanged) error {
	node, err := a.node(n.Node)
	if err != nil {
		return err
	}
	if err := a.expectProperty(node, n.Property, n.OldValue, true); err != nil {
		return err
	}
	return a.setProperty(node, n.Property, n.NewValue)
}

func (a *applier) VisitChildAdded(n notification.ChildAdded) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.add(parent, n.Containment, n.Index, n.NewChild)
}

func (a *applier) VisitChildDeleted(n notification.ChildDeleted) error {
	got, err := a.nodes(n.Parent, n.DeletedChild)
	if err != nil {
		return err
	}
	return a.drop(got[0], n.Containment, n.Index, got[1])
}

func (a *applier) VisitChildReplaced(n notification.ChildReplaced) error {
	got, err := a.nodes(n.Parent, n.ReplacedChild)
	if err != nil {
		return err
	}
	return a.replace(got[0], n.Containment, n.Index, got[1], n.NewChild)
}

func (a *applier) VisitChildMovedFromOtherContainment(n notification.ChildMovedFromOtherContainment) error {
	got, err := a.nodes(n.OldParent, n.NewParent, n.MovedChild)
	if err != nil {
		return err
	}
	return a.move(got[0], n.OldContainment, n.OldIndex, got[1], n.NewContainment, n.NewIndex, got[2])
}

func (a *applier) VisitChildMovedFromOtherContainmentInSameParent(n notification.ChildMovedFromOtherContainmentInSameParent) error {
	got, err := a.nodes(n.Parent, n.MovedChild)
	if err != nil {
		return err
	}
	return a.move(got[0], n.OldContainment, n.OldIndex, got[0], n.NewContainment, n.NewIndex, got[1])
}

func (a *applier) VisitChildMovedInSameContainment(n notification.ChildMovedInSameContainment) error {
	got, err := a.nodes(n.Parent, n.MovedChild)
	if err != nil {
		return err
	}
	return a.move(got[0], n.Containment, n.OldIndex, got[0], n.Containment, n.NewIndex, got[1])
}

func (a *applier) VisitChildMovedAndReplacedFromOtherContainment(n notification.ChildMovedAndReplacedFromOtherContainment) error {
	got, err := a.nodes(n.OldParent, n.NewParent, n.MovedChild, n.ReplacedChild)
	if err != nil {
		return err
	}
	return a.moveAndReplace(got[0], n.OldContainment, n.OldIndex, got[1], n.NewContainment, n.NewIndex, got[2], got[3])
}

func (a *applier) VisitChildMovedAndReplacedFromOtherContainmentInSameParent(n notification.ChildMovedAndReplacedFromOtherContainmentInSameParent) error {
	got, err := a.nodes(n.Parent, n.MovedChild, n.ReplacedChild)
	if err != nil {
		return err
	}
	return a.moveAndReplace(got[0], n.OldContainment, n.OldIndex, got[0], n.NewContainment, n.NewIndex, got[1], got[2])
}

func (a *applier) VisitChildMovedAndReplacedInSameContainment(n notification.ChildMovedAndReplacedInSameContainment) error {
	got, err := a.nodes(n.Parent, n.MovedChild, n.ReplacedChild)
	if err != nil {
		return err
	}
	return a.moveAndReplace(got[0], n.Containment, n.NewIndex, got[0], n.Containment, n.OldIndex, got[1], got[2])
}

func (a *applier) VisitAnnotationAdded(n notification.AnnotationAdded) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.add(parent, nil, n.Index, n.NewAnnotation)
}

func (a *applier) VisitAnnotationDeleted(n notification.AnnotationDeleted) error {
	got, err := a.nodes(n.Parent, n.DeletedAnnotation)
	if err != nil {
		return err
	}
	return a.drop(got[0], nil, n.Index, got[1])
}

func (a *applier) VisitAnnotationReplaced(n notification.AnnotationReplaced) error {
	got, err := a.nodes(n.Parent, n.ReplacedAnnotation)
	if err != nil {
		return err
	}
	return a.replace(got[0], nil, n.Index, got[1], n.NewAnnotation)
}

func (a *applier) VisitAnnotationMovedFromOtherParent(n notification.AnnotationMovedFromOtherParent) error {
	got, err := a.nodes(n.OldParent, n.NewParent, n.MovedAnnotation)
	if err != nil {
		return err
	}
	return a.move(got[0], nil, n.OldIndex, got[1], nil, n.NewIndex, got[2])
}

func (a *applier) VisitAnnotationMovedInSameParent(n notification.AnnotationMovedInSameParent) error {
	got, err := a.nodes(n.Parent, n.MovedAnnotation)
	if err != nil {
		return err
	}
	return a.move(got[0], nil, n.OldIndex, got[0], nil, n.NewIndex, got[1])
}

func (a *applier) VisitAnnotationMovedAndReplacedFromOtherParent(n notification.AnnotationMovedAndReplacedFromOtherParent) error {
	got, err := a.nodes(n.OldParent, n.NewParent, n.MovedAnnotation, n.ReplacedAnnotation)
	if err != nil {
		return err
	}
	return a.moveAndReplace(got[0], nil, n.OldIndex, got[1], nil, n.NewIndex, got[2], got[3])
}

func (a *applier) VisitAnnotationMovedAndReplacedInSameParent(n notification.AnnotationMovedAndReplacedInSameParent) error {
	got, err := a.nodes(n.Parent, n.MovedAnnotation, n.ReplacedAnnotation)
	if err != nil {
		return err
	}
	return a.moveAndReplace(got[0], nil, n.NewIndex, got[0], nil, n.OldIndex, got[1], got[2])
}

func (a *applier) VisitReferenceAdded(n notification.ReferenceAdded) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.insertTarget(parent, n.Reference, n.Index, n.NewTarget)
}

func (a *applier) VisitReferenceDeleted(n notification.ReferenceDeleted) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	if err := a.expectTarget(parent, n.Reference, n.Index, n.DeletedTarget); err != nil {
		return err
	}
	_, err = a.removeTarget(parent, n.Reference, n.Index)
	return err
}

func (a *applier) VisitReferenceChanged(n notification.ReferenceChanged) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.rewrite(parent, n.Reference, n.Index, n.OldTarget, n.NewTarget)
}

func (a *applier) VisitEntryMovedFromOtherReference(n notification.EntryMovedFromOtherReference) error {
	got, err := a.nodes(n.OldParent, n.NewParent)
	if err != nil {
		return err
	}
	return a.moveTarget(got[0], n.OldReference, n.OldIndex, got[1], n.NewReference, n.NewIndex, n.Target)
}

func (a *applier) VisitEntryMovedFromOtherReferenceInSameParent(n notification.EntryMovedFromOtherReferenceInSameParent) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.moveTarget(parent, n.OldReference, n.OldIndex, parent, n.NewReference, n.NewIndex, n.Target)
}

func (a *applier) VisitEntryMovedInSameReference(n notification.EntryMovedInSameReference) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.moveTarget(parent, n.Reference, n.OldIndex, parent, n.Reference, n.NewIndex, n.Target)
}

func (a *applier) VisitEntryMovedAndReplacedFromOtherReference(n notification.EntryMovedAndReplacedFromOtherReference) error {
	got, err := a.nodes(n.OldParent, n.NewParent)
	if err != nil {
		return err
	}
	return a.moveAndReplaceTarget(got[0], n.OldReference, n.OldIndex, got[1], n.NewReference, n.NewIndex, n.MovedTarget, n.ReplacedTarget)
}

func (a *applier) VisitEntryMovedAndReplacedFromOtherReferenceInSameParent(n notification.EntryMovedAndReplacedFromOtherReferenceInSameParent) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.moveAndReplaceTarget(parent, n.OldReference, n.OldIndex, parent, n.NewReference, n.NewIndex, n.MovedTarget, n.ReplacedTarget)
}

func (a *applier) VisitEntryMovedAndReplacedInSameReference(n notification.EntryMovedAndReplacedInSameReference) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	return a.moveAndReplaceTarget(parent, n.Reference, n.NewIndex, parent, n.Reference, n.OldIndex, n.MovedTarget, n.ReplacedTarget)
}

func (a *applier) VisitReferenceResolveInfoAdded(n notification.ReferenceResolveInfoAdded) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ID: n.Target}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ID: n.Target, ResolveInfo: n.NewResolveInfo})
}

func (a *applier) VisitReferenceResolveInfoDeleted(n notification.ReferenceResolveInfoDeleted) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ID: n.Target, ResolveInfo: n.DeletedResolveInfo}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ID: n.Target})
}

func (a *applier) VisitReferenceResolveInfoChanged(n notification.ReferenceResolveInfoChanged) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ID: n.Target, ResolveInfo: n.OldResolveInfo}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ID: n.Target, ResolveInfo: n.NewResolveInfo})
}

func (a *applier) VisitReferenceTargetAdded(n notification.ReferenceTargetAdded) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ResolveInfo: n.ResolveInfo}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ID: n.NewTarget, ResolveInfo: n.ResolveInfo})
}

func (a *applier) VisitReferenceTargetDeleted(n notification.ReferenceTargetDeleted) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ID: n.DeletedTarget, ResolveInfo: n.ResolveInfo}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ResolveInfo: n.ResolveInfo})
}

func (a *applier) VisitReferenceTargetChanged(n notification.ReferenceTargetChanged) error {
	parent, err := a.node(n.Parent)
	if err != nil {
		return err
	}
	want := tree.Target{ID: n.OldTarget, ResolveInfo: n.ResolveInfo}
	return a.rewrite(parent, n.Reference, n.Index, want, tree.Target{ID: n.NewTarget, ResolveInfo: n.ResolveInfo})
}

// VisitComposite applies parts in order against one shared undo log.
func (a *applier) VisitComposite(n notification.Composite) error {
	outer := a.kind
	defer func() { a.kind = outer }()
	for i, p := range n.Parts {
		a.kind = p.Kind()
		if err := p.Accept(a); err != nil {
			return fmt.Errorf("composite part=%d: %w", i, err)
		}
	}
	return nil
}

func (a *applier) VisitNoOp(notification.NoOp) error { return nil }

func (a *applier) VisitError(n notification.Error) error {
	log.Warn().Msgf("replicator.applier.VisitError id=%s code=%s msg=%q", n.ID(), n.Code, n.Message)
	return nil
}
