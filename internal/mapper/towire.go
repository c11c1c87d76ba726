package mapper

import (
	"fmt"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

// ToWire maps n to a wire event carrying the next sequence number. Notifications
// without an origin are stamped with this participation and a fresh command id.
func (m *Mapper) ToWire(n notification.Notification) (wire.Event, error) {
	ev, err := m.encode(n)
	if err != nil {
		return wire.Event{}, err
	}
	ev.SequenceNumber = m.seq.Next()
	if len(ev.OriginCommands) == 0 {
		ev.OriginCommands = []notification.CommandSource{{
			ParticipationID: m.participation,
			CommandID:       m.commands.Next(),
		}}
	}
	log.Debug().Msgf("mapper.Mapper.ToWire kind=%s seq=%d", ev.MessageKind, ev.SequenceNumber)
	return ev, nil
}

func (m *Mapper) encode(n notification.Notification) (wire.Event, error) {
	enc := &encoder{m: m}
	if err := n.Accept(enc); err != nil {
		return wire.Event{}, fmt.Errorf("%s: %w", n.Kind(), err)
	}
	enc.ev.MessageKind = string(n.Kind())
	if c, ok := n.(notification.Composite); ok {
		enc.ev.OriginCommands = notification.CompositeOrigin(c.Parts)
		if len(enc.ev.OriginCommands) == 0 {
			enc.ev.OriginCommands = c.Origin()
		}
	} else {
		enc.ev.OriginCommands = n.Origin()
	}
	return enc.ev, nil
}

type encoder struct {
	m  *Mapper
	ev wire.Event
}

var _ notification.Visitor = (*encoder)(nil)

func (e *encoder) chunk(n *tree.Node) (*chunk.Chunk, error) {
	if n == nil {
		return nil, ErrIncomplete
	}
	ch, err := chunk.Serialize(n, e.m.codec)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (e *encoder) value(f *meta.Feature, v any) (*string, error) {
	raw, err := e.m.codec.Encode(f, v)
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

func (e *encoder) target(t tree.Target) *chunk.Target {
	ct := chunk.EncodeTarget(t)
	return &ct
}

func (e *encoder) VisitPartitionAdded(n notification.PartitionAdded) error {
	ch, err := e.chunk(n.NewPartition)
	e.ev.NewChunk = ch
	return err
}

func (e *encoder) VisitPartitionDeleted(n notification.PartitionDeleted) error {
	if n.DeletedPartition == nil {
		return ErrIncomplete
	}
	e.ev.Node = idOf(n.DeletedPartition)
	e.ev.DeletedDescendants = descendants(n.DeletedPartition)
	return nil
}

func (e *encoder) VisitClassifierChanged(n notification.ClassifierChanged) error {
	e.ev.Node = idOf(n.Node)
	e.ev.NewClassifier = classifierPtr(n.NewClassifier)
	e.ev.OldClassifier = classifierPtr(n.OldClassifier)
	return nil
}

func (e *encoder) VisitPropertyAdded(n notification.PropertyAdded) error {
	e.ev.Node = idOf(n.Node)
	e.ev.Feature = ptr(n.Property)
	var err error
	e.ev.NewValue, err = e.value(n.Property, n.NewValue)
	return err
}

func (e *encoder) VisitPropertyDeleted(n notification.PropertyDeleted) error {
	e.ev.Node = idOf(n.Node)
	e.ev.Feature = ptr(n.Property)
	var err error
	e.ev.OldValue, err = e.value(n.Property, n.OldValue)
	return err
}

func (e *encoder) VisitPropertyChanged(n notification.PropertyChanged) error {
	e.ev.Node = idOf(n.Node)
	e.ev.Feature = ptr(n.Property)
	var err error
	if e.ev.NewValue, err = e.value(n.Property, n.NewValue); err != nil {
		return err
	}
	e.ev.OldValue, err = e.value(n.Property, n.OldValue)
	return err
}

func (e *encoder) VisitChildAdded(n notification.ChildAdded) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Containment)
	e.ev.Index = wire.Int(n.Index)
	var err error
	e.ev.NewChunk, err = e.chunk(n.NewChild)
	return err
}

func (e *encoder) VisitChildDeleted(n notification.ChildDeleted) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Containment)
	e.ev.Index = wire.Int(n.Index)
	e.ev.Node = idOf(n.DeletedChild)
	e.ev.DeletedDescendants = descendants(n.DeletedChild)
	return nil
}

func (e *encoder) VisitChildReplaced(n notification.ChildReplaced) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Containment)
	e.ev.Index = wire.Int(n.Index)
	e.ev.Replaced = idOf(n.ReplacedChild)
	e.ev.ReplacedDescendants = descendants(n.ReplacedChild)
	var err error
	e.ev.NewChunk, err = e.chunk(n.NewChild)
	return err
}

func (e *encoder) VisitChildMovedFromOtherContainment(n notification.ChildMovedFromOtherContainment) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewFeature = ptr(n.NewContainment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldFeature = ptr(n.OldContainment)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	return nil
}

func (e *encoder) VisitChildMovedFromOtherContainmentInSameParent(n notification.ChildMovedFromOtherContainmentInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewFeature = ptr(n.NewContainment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldFeature = ptr(n.OldContainment)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	return nil
}

func (e *encoder) VisitChildMovedInSameContainment(n notification.ChildMovedInSameContainment) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Containment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	return nil
}

func (e *encoder) VisitChildMovedAndReplacedFromOtherContainment(n notification.ChildMovedAndReplacedFromOtherContainment) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewFeature = ptr(n.NewContainment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldFeature = ptr(n.OldContainment)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.Replaced = idOf(n.ReplacedChild)
	e.ev.ReplacedDescendants = descendants(n.ReplacedChild)
	return nil
}

func (e *encoder) VisitChildMovedAndReplacedFromOtherContainmentInSameParent(n notification.ChildMovedAndReplacedFromOtherContainmentInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewFeature = ptr(n.NewContainment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldFeature = ptr(n.OldContainment)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.Replaced = idOf(n.ReplacedChild)
	e.ev.ReplacedDescendants = descendants(n.ReplacedChild)
	return nil
}

func (e *encoder) VisitChildMovedAndReplacedInSameContainment(n notification.ChildMovedAndReplacedInSameContainment) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Containment)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedChild)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.Replaced = idOf(n.ReplacedChild)
	e.ev.ReplacedDescendants = descendants(n.ReplacedChild)
	return nil
}

func (e *encoder) VisitAnnotationAdded(n notification.AnnotationAdded) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Index = wire.Int(n.Index)
	var err error
	e.ev.NewChunk, err = e.chunk(n.NewAnnotation)
	return err
}

func (e *encoder) VisitAnnotationDeleted(n notification.AnnotationDeleted) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Index = wire.Int(n.Index)
	e.ev.Node = idOf(n.DeletedAnnotation)
	e.ev.DeletedDescendants = descendants(n.DeletedAnnotation)
	return nil
}

func (e *encoder) VisitAnnotationReplaced(n notification.AnnotationReplaced) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Index = wire.Int(n.Index)
	e.ev.Replaced = idOf(n.ReplacedAnnotation)
	e.ev.ReplacedDescendants = descendants(n.ReplacedAnnotation)
	var err error
	e.ev.NewChunk, err = e.chunk(n.NewAnnotation)
	return err
}

func (e *encoder) VisitAnnotationMovedFromOtherParent(n notification.AnnotationMovedFromOtherParent) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedAnnotation)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	return nil
}

func (e *encoder) VisitAnnotationMovedInSameParent(n notification.AnnotationMovedInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedAnnotation)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	return nil
}

func (e *encoder) VisitAnnotationMovedAndReplacedFromOtherParent(n notification.AnnotationMovedAndReplacedFromOtherParent) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedAnnotation)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.Replaced = idOf(n.ReplacedAnnotation)
	e.ev.ReplacedDescendants = descendants(n.ReplacedAnnotation)
	return nil
}

func (e *encoder) VisitAnnotationMovedAndReplacedInSameParent(n notification.AnnotationMovedAndReplacedInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.Node = idOf(n.MovedAnnotation)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.Replaced = idOf(n.ReplacedAnnotation)
	e.ev.ReplacedDescendants = descendants(n.ReplacedAnnotation)
	return nil
}

func (e *encoder) VisitReferenceAdded(n notification.ReferenceAdded) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = e.target(n.NewTarget)
	return nil
}

func (e *encoder) VisitReferenceDeleted(n notification.ReferenceDeleted) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.OldTarget = e.target(n.DeletedTarget)
	return nil
}

func (e *encoder) VisitReferenceChanged(n notification.ReferenceChanged) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = e.target(n.NewTarget)
	e.ev.OldTarget = e.target(n.OldTarget)
	return nil
}

func (e *encoder) VisitEntryMovedFromOtherReference(n notification.EntryMovedFromOtherReference) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewFeature = ptr(n.NewReference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldFeature = ptr(n.OldReference)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.Target)
	return nil
}

func (e *encoder) VisitEntryMovedFromOtherReferenceInSameParent(n notification.EntryMovedFromOtherReferenceInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewFeature = ptr(n.NewReference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldFeature = ptr(n.OldReference)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.Target)
	return nil
}

func (e *encoder) VisitEntryMovedInSameReference(n notification.EntryMovedInSameReference) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Reference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.Target)
	return nil
}

func (e *encoder) VisitEntryMovedAndReplacedFromOtherReference(n notification.EntryMovedAndReplacedFromOtherReference) error {
	e.ev.NewParent = idOf(n.NewParent)
	e.ev.NewFeature = ptr(n.NewReference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldParent = idOf(n.OldParent)
	e.ev.OldFeature = ptr(n.OldReference)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.MovedTarget)
	e.ev.OldTarget = e.target(n.ReplacedTarget)
	return nil
}

func (e *encoder) VisitEntryMovedAndReplacedFromOtherReferenceInSameParent(n notification.EntryMovedAndReplacedFromOtherReferenceInSameParent) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.NewFeature = ptr(n.NewReference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldFeature = ptr(n.OldReference)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.MovedTarget)
	e.ev.OldTarget = e.target(n.ReplacedTarget)
	return nil
}

func (e *encoder) VisitEntryMovedAndReplacedInSameReference(n notification.EntryMovedAndReplacedInSameReference) error {
	e.ev.Parent = idOf(n.Parent)
	e.ev.Feature = ptr(n.Reference)
	e.ev.NewIndex = wire.Int(n.NewIndex)
	e.ev.OldIndex = wire.Int(n.OldIndex)
	e.ev.NewTarget = e.target(n.MovedTarget)
	e.ev.OldTarget = e.target(n.ReplacedTarget)
	return nil
}

func (e *encoder) VisitReferenceResolveInfoAdded(n notification.ReferenceResolveInfoAdded) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = &chunk.Target{ResolveInfo: wire.String(n.NewResolveInfo), Reference: optString(string(n.Target))}
	return nil
}

func (e *encoder) VisitReferenceResolveInfoDeleted(n notification.ReferenceResolveInfoDeleted) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.OldTarget = &chunk.Target{ResolveInfo: wire.String(n.DeletedResolveInfo), Reference: optString(string(n.Target))}
	return nil
}

func (e *encoder) VisitReferenceResolveInfoChanged(n notification.ReferenceResolveInfoChanged) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = &chunk.Target{ResolveInfo: wire.String(n.NewResolveInfo), Reference: optString(string(n.Target))}
	e.ev.OldTarget = &chunk.Target{ResolveInfo: wire.String(n.OldResolveInfo)}
	return nil
}

func (e *encoder) VisitReferenceTargetAdded(n notification.ReferenceTargetAdded) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = &chunk.Target{Reference: wire.String(string(n.NewTarget)), ResolveInfo: optString(n.ResolveInfo)}
	return nil
}

func (e *encoder) VisitReferenceTargetDeleted(n notification.ReferenceTargetDeleted) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.OldTarget = &chunk.Target{Reference: wire.String(string(n.DeletedTarget)), ResolveInfo: optString(n.ResolveInfo)}
	return nil
}

func (e *encoder) VisitReferenceTargetChanged(n notification.ReferenceTargetChanged) error {
	e.referenceSlot(n.Parent, n.Reference, n.Index)
	e.ev.NewTarget = &chunk.Target{Reference: wire.String(string(n.NewTarget)), ResolveInfo: optString(n.ResolveInfo)}
	e.ev.OldTarget = &chunk.Target{Reference: wire.String(string(n.OldTarget))}
	return nil
}

func (e *encoder) VisitComposite(n notification.Composite) error {
	e.ev.Parts = make([]wire.Event, 0, len(n.Parts))
	for _, p := range n.Parts {
		part, err := e.m.encode(p)
		if err != nil {
			return err
		}
		e.ev.Parts = append(e.ev.Parts, part)
	}
	return nil
}

func (e *encoder) VisitNoOp(notification.NoOp) error { return nil }

func (e *encoder) VisitError(n notification.Error) error {
	e.ev.Code = n.Code
	e.ev.Message = n.Message
	return nil
}

func (e *encoder) referenceSlot(parent *tree.Node, f *meta.Feature, index int) {
	e.ev.Parent = idOf(parent)
	e.ev.Feature = ptr(f)
	e.ev.Index = wire.Int(index)
}
