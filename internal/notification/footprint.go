package notification

import "github.com/danmuck/treesync/internal/tree"

// Effect is the registry-relevant part of a notification.
type Effect struct {
	// Added holds roots of subtrees that entered the model.
	Added []*tree.Node
	// Removed holds roots of subtrees that left the model, evicted occupants included.
	Removed []*tree.Node
	// Moved holds nodes that changed position but stayed in the model.
	Moved []*tree.Node
}

// Empty reports whether the notification leaves node membership untouched.
func (e Effect) Empty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Moved) == 0
}

// Footprint computes the Effect of n, flattening composites in order.
func Footprint(n Notification) Effect {
	f := &footprinter{}
	_ = n.Accept(f)
	return f.Effect
}

type footprinter struct {
	Effect
}

var _ Visitor = (*footprinter)(nil)

func (f *footprinter) VisitPartitionAdded(n PartitionAdded) error {
	f.Added = append(f.Added, n.NewPartition)
	return nil
}

func (f *footprinter) VisitPartitionDeleted(n PartitionDeleted) error {
	f.Removed = append(f.Removed, n.DeletedPartition)
	return nil
}

func (f *footprinter) VisitClassifierChanged(ClassifierChanged) error { return nil }
func (f *footprinter) VisitPropertyAdded(PropertyAdded) error { return nil }
func (f *footprinter) VisitPropertyDeleted(PropertyDeleted) error { return nil }
func (f *footprinter) VisitPropertyChanged(PropertyChanged) error { return nil }

func (f *footprinter) VisitChildAdded(n ChildAdded) error {
	f.Added = append(f.Added, n.NewChild)
	return nil
}

func (f *footprinter) VisitChildDeleted(n ChildDeleted) error {
	f.Removed = append(f.Removed, n.DeletedChild)
	return nil
}

func (f *footprinter) VisitChildReplaced(n ChildReplaced) error {
	f.Removed = append(f.Removed, n.ReplacedChild)
	f.Added = append(f.Added, n.NewChild)
	return nil
}

func (f *footprinter) VisitChildMovedFromOtherContainment(n ChildMovedFromOtherContainment) error {
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitChildMovedFromOtherContainmentInSameParent(n ChildMovedFromOtherContainmentInSameParent) error {
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitChildMovedInSameContainment(n ChildMovedInSameContainment) error {
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitChildMovedAndReplacedFromOtherContainment(n ChildMovedAndReplacedFromOtherContainment) error {
	f.Removed = append(f.Removed, n.ReplacedChild)
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitChildMovedAndReplacedFromOtherContainmentInSameParent(n ChildMovedAndReplacedFromOtherContainmentInSameParent) error {
	f.Removed = append(f.Removed, n.ReplacedChild)
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitChildMovedAndReplacedInSameContainment(n ChildMovedAndReplacedInSameContainment) error {
	f.Removed = append(f.Removed, n.ReplacedChild)
	f.Moved = append(f.Moved, n.MovedChild)
	return nil
}

func (f *footprinter) VisitAnnotationAdded(n AnnotationAdded) error {
	f.Added = append(f.Added, n.NewAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationDeleted(n AnnotationDeleted) error {
	f.Removed = append(f.Removed, n.DeletedAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationReplaced(n AnnotationReplaced) error {
	f.Removed = append(f.Removed, n.ReplacedAnnotation)
	f.Added = append(f.Added, n.NewAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationMovedFromOtherParent(n AnnotationMovedFromOtherParent) error {
	f.Moved = append(f.Moved, n.MovedAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationMovedInSameParent(n AnnotationMovedInSameParent) error {
	f.Moved = append(f.Moved, n.MovedAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationMovedAndReplacedFromOtherParent(n AnnotationMovedAndReplacedFromOtherParent) error {
	f.Removed = append(f.Removed, n.ReplacedAnnotation)
	f.Moved = append(f.Moved, n.MovedAnnotation)
	return nil
}

func (f *footprinter) VisitAnnotationMovedAndReplacedInSameParent(n AnnotationMovedAndReplacedInSameParent) error {
	f.Removed = append(f.Removed, n.ReplacedAnnotation)
	f.Moved = append(f.Moved, n.MovedAnnotation)
	return nil
}

func (f *footprinter) VisitReferenceAdded(ReferenceAdded) error { return nil }
func (f *footprinter) VisitReferenceDeleted(ReferenceDeleted) error { return nil }
func (f *footprinter) VisitReferenceChanged(ReferenceChanged) error { return nil }
func (f *footprinter) VisitEntryMovedFromOtherReference(EntryMovedFromOtherReference) error { return nil }
func (f *footprinter) VisitEntryMovedFromOtherReferenceInSameParent(EntryMovedFromOtherReferenceInSameParent) error { return nil }
func (f *footprinter) VisitEntryMovedInSameReference(EntryMovedInSameReference) error { return nil }
func (f *footprinter) VisitEntryMovedAndReplacedFromOtherReference(EntryMovedAndReplacedFromOtherReference) error { return nil }
func (f *footprinter) VisitEntryMovedAndReplacedFromOtherReferenceInSameParent(EntryMovedAndReplacedFromOtherReferenceInSameParent) error { return nil }
func (f *footprinter) VisitEntryMovedAndReplacedInSameReference(EntryMovedAndReplacedInSameReference) error { return nil }
func (f *footprinter) VisitReferenceResolveInfoAdded(ReferenceResolveInfoAdded) error { return nil }
func (f *footprinter) VisitReferenceResolveInfoDeleted(ReferenceResolveInfoDeleted) error { return nil }
func (f *footprinter) VisitReferenceResolveInfoChanged(ReferenceResolveInfoChanged) error { return nil }
func (f *footprinter) VisitReferenceTargetAdded(ReferenceTargetAdded) error { return nil }
func (f *footprinter) VisitReferenceTargetDeleted(ReferenceTargetDeleted) error { return nil }
func (f *footprinter) VisitReferenceTargetChanged(ReferenceTargetChanged) error { return nil }

func (f *footprinter) VisitComposite(n Composite) error {
	for _, p := range n.Parts {
		if err := p.Accept(f); err != nil {
			return err
		}
	}
	return nil
}

func (f *footprinter) VisitNoOp(NoOp) error { return nil }
func (f *footprinter) VisitError(Error) error { return nil }
