package notification

import (
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/tree"
)

// Kind names a variant. Values double as the wire message_kind.
type Kind string

const (
	KindPartitionAdded   Kind = "PartitionAdded"
	KindPartitionDeleted Kind = "PartitionDeleted"

	KindClassifierChanged Kind = "ClassifierChanged"

	KindPropertyAdded   Kind = "PropertyAdded"
	KindPropertyDeleted Kind = "PropertyDeleted"
	KindPropertyChanged Kind = "PropertyChanged"

	KindChildAdded                                            Kind = "ChildAdded"
	KindChildDeleted                                          Kind = "ChildDeleted"
	KindChildReplaced                                         Kind = "ChildReplaced"
	KindChildMovedFromOtherContainment                        Kind = "ChildMovedFromOtherContainment"
	KindChildMovedFromOtherContainmentInSameParent            Kind = "ChildMovedFromOtherContainmentInSameParent"
	KindChildMovedInSameContainment                           Kind = "ChildMovedInSameContainment"
	KindChildMovedAndReplacedFromOtherContainment             Kind = "ChildMovedAndReplacedFromOtherContainment"
	KindChildMovedAndReplacedFromOtherContainmentInSameParent Kind = "ChildMovedAndReplacedFromOtherContainmentInSameParent"
	KindChildMovedAndReplacedInSameContainment                Kind = "ChildMovedAndReplacedInSameContainment"

	KindAnnotationAdded                           Kind = "AnnotationAdded"
	KindAnnotationDeleted                         Kind = "AnnotationDeleted"
	KindAnnotationReplaced                        Kind = "AnnotationReplaced"
	KindAnnotationMovedFromOtherParent            Kind = "AnnotationMovedFromOtherParent"
	KindAnnotationMovedInSameParent               Kind = "AnnotationMovedInSameParent"
	KindAnnotationMovedAndReplacedFromOtherParent Kind = "AnnotationMovedAndReplacedFromOtherParent"
	KindAnnotationMovedAndReplacedInSameParent    Kind = "AnnotationMovedAndReplacedInSameParent"

	KindReferenceAdded                                      Kind = "ReferenceAdded"
	KindReferenceDeleted                                    Kind = "ReferenceDeleted"
	KindReferenceChanged                                    Kind = "ReferenceChanged"
	KindEntryMovedFromOtherReference                        Kind = "EntryMovedFromOtherReference"
	KindEntryMovedFromOtherReferenceInSameParent            Kind = "EntryMovedFromOtherReferenceInSameParent"
	KindEntryMovedInSameReference                           Kind = "EntryMovedInSameReference"
	KindEntryMovedAndReplacedFromOtherReference             Kind = "EntryMovedAndReplacedFromOtherReference"
	KindEntryMovedAndReplacedFromOtherReferenceInSameParent Kind = "EntryMovedAndReplacedFromOtherReferenceInSameParent"
	KindEntryMovedAndReplacedInSameReference                Kind = "EntryMovedAndReplacedInSameReference"
	KindReferenceResolveInfoAdded                           Kind = "ReferenceResolveInfoAdded"
	KindReferenceResolveInfoDeleted                         Kind = "ReferenceResolveInfoDeleted"
	KindReferenceResolveInfoChanged                         Kind = "ReferenceResolveInfoChanged"
	KindReferenceTargetAdded                                Kind = "ReferenceTargetAdded"
	KindReferenceTargetDeleted                              Kind = "ReferenceTargetDeleted"
	KindReferenceTargetChanged                              Kind = "ReferenceTargetChanged"

	KindComposite Kind = "Composite"
	KindNoOp      Kind = "NoOp"
	KindError     Kind = "Error"
)

// Kinds lists every variant in declaration order.
var Kinds = []Kind{
	KindPartitionAdded,
	KindPartitionDeleted,
	KindClassifierChanged,
	KindPropertyAdded,
	KindPropertyDeleted,
	KindPropertyChanged,
	KindChildAdded,
	KindChildDeleted,
	KindChildReplaced,
	KindChildMovedFromOtherContainment,
	KindChildMovedFromOtherContainmentInSameParent,
	KindChildMovedInSameContainment,
	KindChildMovedAndReplacedFromOtherContainment,
	KindChildMovedAndReplacedFromOtherContainmentInSameParent,
	KindChildMovedAndReplacedInSameContainment,
	KindAnnotationAdded,
	KindAnnotationDeleted,
	KindAnnotationReplaced,
	KindAnnotationMovedFromOtherParent,
	KindAnnotationMovedInSameParent,
	KindAnnotationMovedAndReplacedFromOtherParent,
	KindAnnotationMovedAndReplacedInSameParent,
	KindReferenceAdded,
	KindReferenceDeleted,
	KindReferenceChanged,
	KindEntryMovedFromOtherReference,
	KindEntryMovedFromOtherReferenceInSameParent,
	KindEntryMovedInSameReference,
	KindEntryMovedAndReplacedFromOtherReference,
	KindEntryMovedAndReplacedFromOtherReferenceInSameParent,
	KindEntryMovedAndReplacedInSameReference,
	KindReferenceResolveInfoAdded,
	KindReferenceResolveInfoDeleted,
	KindReferenceResolveInfoChanged,
	KindReferenceTargetAdded,
	KindReferenceTargetDeleted,
	KindReferenceTargetChanged,
	KindComposite,
	KindNoOp,
	KindError,
}

// Visitor has one method per variant. Implementations must handle every arm.
type Visitor interface {
	VisitPartitionAdded(n PartitionAdded) error
	VisitPartitionDeleted(n PartitionDeleted) error
	VisitClassifierChanged(n ClassifierChanged) error
	VisitPropertyAdded(n PropertyAdded) error
	VisitPropertyDeleted(n PropertyDeleted) error
	VisitPropertyChanged(n PropertyChanged) error
	VisitChildAdded(n ChildAdded) error
	VisitChildDeleted(n ChildDeleted) error
	VisitChildReplaced(n ChildReplaced) error
	VisitChildMovedFromOtherContainment(n ChildMovedFromOtherContainment) error
	VisitChildMovedFromOtherContainmentInSameParent(n ChildMovedFromOtherContainmentInSameParent) error
	VisitChildMovedInSameContainment(n ChildMovedInSameContainment) error
	VisitChildMovedAndReplacedFromOtherContainment(n ChildMovedAndReplacedFromOtherContainment) error
	VisitChildMovedAndReplacedFromOtherContainmentInSameParent(n ChildMovedAndReplacedFromOtherContainmentInSameParent) error
	VisitChildMovedAndReplacedInSameContainment(n ChildMovedAndReplacedInSameContainment) error
	VisitAnnotationAdded(n AnnotationAdded) error
	VisitAnnotationDeleted(n AnnotationDeleted) error
	VisitAnnotationReplaced(n AnnotationReplaced) error
	VisitAnnotationMovedFromOtherParent(n AnnotationMovedFromOtherParent) error
	VisitAnnotationMovedInSameParent(n AnnotationMovedInSameParent) error
	VisitAnnotationMovedAndReplacedFromOtherParent(n AnnotationMovedAndReplacedFromOtherParent) error
	VisitAnnotationMovedAndReplacedInSameParent(n AnnotationMovedAndReplacedInSameParent) error
	VisitReferenceAdded(n ReferenceAdded) error
	VisitReferenceDeleted(n ReferenceDeleted) error
	VisitReferenceChanged(n ReferenceChanged) error
	VisitEntryMovedFromOtherReference(n EntryMovedFromOtherReference) error
	VisitEntryMovedFromOtherReferenceInSameParent(n EntryMovedFromOtherReferenceInSameParent) error
	VisitEntryMovedInSameReference(n EntryMovedInSameReference) error
	VisitEntryMovedAndReplacedFromOtherReference(n EntryMovedAndReplacedFromOtherReference) error
	VisitEntryMovedAndReplacedFromOtherReferenceInSameParent(n EntryMovedAndReplacedFromOtherReferenceInSameParent) error
	VisitEntryMovedAndReplacedInSameReference(n EntryMovedAndReplacedInSameReference) error
	VisitReferenceResolveInfoAdded(n ReferenceResolveInfoAdded) error
	VisitReferenceResolveInfoDeleted(n ReferenceResolveInfoDeleted) error
	VisitReferenceResolveInfoChanged(n ReferenceResolveInfoChanged) error
	VisitReferenceTargetAdded(n ReferenceTargetAdded) error
	VisitReferenceTargetDeleted(n ReferenceTargetDeleted) error
	VisitReferenceTargetChanged(n ReferenceTargetChanged) error
	VisitComposite(n Composite) error
	VisitNoOp(n NoOp) error
	VisitError(n Error) error
}

// PartitionAdded reports a new partition root together with its current subtree.
type PartitionAdded struct {
	Header

	NewPartition *tree.Node
}

// PartitionDeleted reports a removed partition root.
type PartitionDeleted struct {
	Header

	DeletedPartition *tree.Node
}

// ClassifierChanged reports a node whose classifier was swapped in place.
type ClassifierChanged struct {
	Header

	Node          *tree.Node
	NewClassifier *meta.Classifier
	OldClassifier *meta.Classifier
}

type PropertyAdded struct {
	Header

	Node     *tree.Node
	Property *meta.Feature
	NewValue any
}

type PropertyDeleted struct {
	Header

	Node     *tree.Node
	Property *meta.Feature
	OldValue any
}

type PropertyChanged struct {
	Header

	Node     *tree.Node
	Property *meta.Feature
	NewValue any
	OldValue any
}

type ChildAdded struct {
	Header

	Parent      *tree.Node
	Containment *meta.Feature
	Index       int
	NewChild    *tree.Node
}

type ChildDeleted struct {
	Header

	Parent       *tree.Node
	Containment  *meta.Feature
	Index        int
	DeletedChild *tree.Node
}

// ChildReplaced reports NewChild taking ReplacedChild's slot; the replaced subtree leaves the model.
type ChildReplaced struct {
	Header

	Parent        *tree.Node
	Containment   *meta.Feature
	Index         int
	NewChild      *tree.Node
	ReplacedChild *tree.Node
}

// ChildMovedFromOtherContainment reports a child moved between containments of different parents.
// NewIndex is the position after the move.
type ChildMovedFromOtherContainment struct {
	Header

	NewParent      *tree.Node
	NewContainment *meta.Feature
	NewIndex       int
	MovedChild     *tree.Node
	OldParent      *tree.Node
	OldContainment *meta.Feature
	OldIndex       int
}

type ChildMovedFromOtherContainmentInSameParent struct {
	Header

	Parent         *tree.Node
	NewContainment *meta.Feature
	NewIndex       int
	MovedChild     *tree.Node
	OldContainment *meta.Feature
	OldIndex       int
}

// ChildMovedInSameContainment reports a reorder; NewIndex is the final position.
type ChildMovedInSameContainment struct {
	Header

	Parent      *tree.Node
	Containment *meta.Feature
	NewIndex    int
	MovedChild  *tree.Node
	OldIndex    int
}

// ChildMovedAndReplacedFromOtherContainment reports MovedChild evicting ReplacedChild at
// NewParent/NewContainment/NewIndex. Both indices refer to the before-state.
type ChildMovedAndReplacedFromOtherContainment struct {
	Header

	NewParent      *tree.Node
	NewContainment *meta.Feature
	NewIndex       int
	MovedChild     *tree.Node
	OldParent      *tree.Node
	OldContainment *meta.Feature
	OldIndex       int
	ReplacedChild  *tree.Node
}

type ChildMovedAndReplacedFromOtherContainmentInSameParent struct {
	Header

	Parent         *tree.Node
	NewContainment *meta.Feature
	NewIndex       int
	MovedChild     *tree.Node
	OldContainment *meta.Feature
	OldIndex       int
	ReplacedChild  *tree.Node
}

// ChildMovedAndReplacedInSameContainment moves the child at NewIndex into the slot at
// OldIndex, evicting ReplacedChild. Both indices refer to the before-state: NewIndex is
// where the moved child sits, OldIndex where the replaced child sits. The moved child
// lands at OldIndex when NewIndex > OldIndex and at OldIndex-1 otherwise.
type ChildMovedAndReplacedInSameContainment struct {
	Header

	Parent        *tree.Node
	Containment   *meta.Feature
	NewIndex      int
	MovedChild    *tree.Node
	OldIndex      int
	ReplacedChild *tree.Node
}

// AnnotationAdded reports an annotation attached to Parent at Index.
type AnnotationAdded struct {
	Header

	Parent        *tree.Node
	Index         int
	NewAnnotation *tree.Node
}

type AnnotationDeleted struct {
	Header

	Parent            *tree.Node
	Index             int
	DeletedAnnotation *tree.Node
}

type AnnotationReplaced struct {
	Header

	Parent             *tree.Node
	Index              int
	NewAnnotation      *tree.Node
	ReplacedAnnotation *tree.Node
}

type AnnotationMovedFromOtherParent struct {
	Header

	NewParent       *tree.Node
	NewIndex        int
	MovedAnnotation *tree.Node
	OldParent       *tree.Node
	OldIndex        int
}

type AnnotationMovedInSameParent struct {
	Header

	Parent          *tree.Node
	NewIndex        int
	MovedAnnotation *tree.Node
	OldIndex        int
}

type AnnotationMovedAndReplacedFromOtherParent struct {
	Header

	NewParent          *tree.Node
	NewIndex           int
	MovedAnnotation    *tree.Node
	OldParent          *tree.Node
	OldIndex           int
	ReplacedAnnotation *tree.Node
}

// AnnotationMovedAndReplacedInSameParent follows the same index rules as
// ChildMovedAndReplacedInSameContainment.
type AnnotationMovedAndReplacedInSameParent struct {
	Header

	Parent             *tree.Node
	NewIndex           int
	MovedAnnotation    *tree.Node
	OldIndex           int
	ReplacedAnnotation *tree.Node
}

// ReferenceAdded reports a new entry in a reference feature.
type ReferenceAdded struct {
	Header

	Parent    *tree.Node
	Reference *meta.Feature
	Index     int
	NewTarget tree.Target
}

type ReferenceDeleted struct {
	Header

	Parent        *tree.Node
	Reference     *meta.Feature
	Index         int
	DeletedTarget tree.Target
}

// ReferenceChanged replaces a whole entry, target id and resolve info together.
type ReferenceChanged struct {
	Header

	Parent    *tree.Node
	Reference *meta.Feature
	Index     int
	NewTarget tree.Target
	OldTarget tree.Target
}

type EntryMovedFromOtherReference struct {
	Header

	NewParent    *tree.Node
	NewReference *meta.Feature
	NewIndex     int
	OldParent    *tree.Node
	OldReference *meta.Feature
	OldIndex     int
	Target       tree.Target
}

type EntryMovedFromOtherReferenceInSameParent struct {
	Header

	Parent       *tree.Node
	NewReference *meta.Feature
	NewIndex     int
	OldReference *meta.Feature
	OldIndex     int
	Target       tree.Target
}

// EntryMovedInSameReference reorders one entry of a reference; NewIndex is the final position.
type EntryMovedInSameReference struct {
	Header

	Parent    *tree.Node
	Reference *meta.Feature
	NewIndex  int
	OldIndex  int
	Target    tree.Target
}

type EntryMovedAndReplacedFromOtherReference struct {
	Header

	NewParent      *tree.Node
	NewReference   *meta.Feature
	NewIndex       int
	MovedTarget    tree.Target
	OldParent      *tree.Node
	OldReference   *meta.Feature
	OldIndex       int
	ReplacedTarget tree.Target
}

type EntryMovedAndReplacedFromOtherReferenceInSameParent struct {
	Header

	Parent         *tree.Node
	NewReference   *meta.Feature
	NewIndex       int
	MovedTarget    tree.Target
	OldReference   *meta.Feature
	OldIndex       int
	ReplacedTarget tree.Target
}

// EntryMovedAndReplacedInSameReference follows the same index rules as
// ChildMovedAndReplacedInSameContainment.
type EntryMovedAndReplacedInSameReference struct {
	Header

	Parent         *tree.Node
	Reference      *meta.Feature
	NewIndex       int
	MovedTarget    tree.Target
	OldIndex       int
	ReplacedTarget tree.Target
}

// ReferenceResolveInfoAdded sets resolve info on an entry that had only a target id.
type ReferenceResolveInfoAdded struct {
	Header

	Parent         *tree.Node
	Reference      *meta.Feature
	Index          int
	NewResolveInfo string
	Target         tree.NodeID
}

type ReferenceResolveInfoDeleted struct {
	Header

	Parent             *tree.Node
	Reference          *meta.Feature
	Index              int
	Target             tree.NodeID
	DeletedResolveInfo string
}

// ReferenceResolveInfoChanged rewrites the resolve info half of an entry; the target id is untouched.
type ReferenceResolveInfoChanged struct {
	Header

	Parent         *tree.Node
	Reference      *meta.Feature
	Index          int
	NewResolveInfo string
	Target         tree.NodeID
	OldResolveInfo string
}

// ReferenceTargetAdded sets the target id on an entry that had only resolve info.
type ReferenceTargetAdded struct {
	Header

	Parent      *tree.Node
	Reference   *meta.Feature
	Index       int
	NewTarget   tree.NodeID
	ResolveInfo string
}

type ReferenceTargetDeleted struct {
	Header

	Parent        *tree.Node
	Reference     *meta.Feature
	Index         int
	ResolveInfo   string
	DeletedTarget tree.NodeID
}

// ReferenceTargetChanged retargets an entry; the resolve info is untouched.
type ReferenceTargetChanged struct {
	Header

	Parent      *tree.Node
	Reference   *meta.Feature
	Index       int
	NewTarget   tree.NodeID
	ResolveInfo string
	OldTarget   tree.NodeID
}

// Composite groups parts that replay as one unit.
type Composite struct {
	Header

	Parts []Notification
}

// NoOp carries provenance without changing the model.
type NoOp struct {
	Header
}

// Error reports a failure on the emitting side.
type Error struct {
	Header

	Code    string
	Message string
}

func (n PartitionAdded) Kind() Kind { return KindPartitionAdded }
func (n PartitionAdded) Accept(v Visitor) error { return v.VisitPartitionAdded(n) }
func (n PartitionAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n PartitionDeleted) Kind() Kind { return KindPartitionDeleted }
func (n PartitionDeleted) Accept(v Visitor) error { return v.VisitPartitionDeleted(n) }
func (n PartitionDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ClassifierChanged) Kind() Kind { return KindClassifierChanged }
func (n ClassifierChanged) Accept(v Visitor) error { return v.VisitClassifierChanged(n) }
func (n ClassifierChanged) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n PropertyAdded) Kind() Kind { return KindPropertyAdded }
func (n PropertyAdded) Accept(v Visitor) error { return v.VisitPropertyAdded(n) }
func (n PropertyAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n PropertyDeleted) Kind() Kind { return KindPropertyDeleted }
func (n PropertyDeleted) Accept(v Visitor) error { return v.VisitPropertyDeleted(n) }
func (n PropertyDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n PropertyChanged) Kind() Kind { return KindPropertyChanged }
func (n PropertyChanged) Accept(v Visitor) error { return v.VisitPropertyChanged(n) }
func (n PropertyChanged) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildAdded) Kind() Kind { return KindChildAdded }
func (n ChildAdded) Accept(v Visitor) error { return v.VisitChildAdded(n) }
func (n ChildAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildDeleted) Kind() Kind { return KindChildDeleted }
func (n ChildDeleted) Accept(v Visitor) error { return v.VisitChildDeleted(n) }
func (n ChildDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildReplaced) Kind() Kind { return KindChildReplaced }
func (n ChildReplaced) Accept(v Visitor) error { return v.VisitChildReplaced(n) }
func (n ChildReplaced) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedFromOtherContainment) Kind() Kind { return KindChildMovedFromOtherContainment }
func (n ChildMovedFromOtherContainment) Accept(v Visitor) error { return v.VisitChildMovedFromOtherContainment(n) }
func (n ChildMovedFromOtherContainment) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedFromOtherContainmentInSameParent) Kind() Kind { return KindChildMovedFromOtherContainmentInSameParent }
func (n ChildMovedFromOtherContainmentInSameParent) Accept(v Visitor) error { return v.VisitChildMovedFromOtherContainmentInSameParent(n) }
func (n ChildMovedFromOtherContainmentInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedInSameContainment) Kind() Kind { return KindChildMovedInSameContainment }
func (n ChildMovedInSameContainment) Accept(v Visitor) error { return v.VisitChildMovedInSameContainment(n) }
func (n ChildMovedInSameContainment) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedAndReplacedFromOtherContainment) Kind() Kind { return KindChildMovedAndReplacedFromOtherContainment }
func (n ChildMovedAndReplacedFromOtherContainment) Accept(v Visitor) error { return v.VisitChildMovedAndReplacedFromOtherContainment(n) }
func (n ChildMovedAndReplacedFromOtherContainment) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedAndReplacedFromOtherContainmentInSameParent) Kind() Kind { return KindChildMovedAndReplacedFromOtherContainmentInSameParent }
func (n ChildMovedAndReplacedFromOtherContainmentInSameParent) Accept(v Visitor) error { return v.VisitChildMovedAndReplacedFromOtherContainmentInSameParent(n) }
func (n ChildMovedAndReplacedFromOtherContainmentInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ChildMovedAndReplacedInSameContainment) Kind() Kind { return KindChildMovedAndReplacedInSameContainment }
func (n ChildMovedAndReplacedInSameContainment) Accept(v Visitor) error { return v.VisitChildMovedAndReplacedInSameContainment(n) }
func (n ChildMovedAndReplacedInSameContainment) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationAdded) Kind() Kind { return KindAnnotationAdded }
func (n AnnotationAdded) Accept(v Visitor) error { return v.VisitAnnotationAdded(n) }
func (n AnnotationAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationDeleted) Kind() Kind { return KindAnnotationDeleted }
func (n AnnotationDeleted) Accept(v Visitor) error { return v.VisitAnnotationDeleted(n) }
func (n AnnotationDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationReplaced) Kind() Kind { return KindAnnotationReplaced }
func (n AnnotationReplaced) Accept(v Visitor) error { return v.VisitAnnotationReplaced(n) }
func (n AnnotationReplaced) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationMovedFromOtherParent) Kind() Kind { return KindAnnotationMovedFromOtherParent }
func (n AnnotationMovedFromOtherParent) Accept(v Visitor) error { return v.VisitAnnotationMovedFromOtherParent(n) }
func (n AnnotationMovedFromOtherParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationMovedInSameParent) Kind() Kind { return KindAnnotationMovedInSameParent }
func (n AnnotationMovedInSameParent) Accept(v Visitor) error { return v.VisitAnnotationMovedInSameParent(n) }
func (n AnnotationMovedInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationMovedAndReplacedFromOtherParent) Kind() Kind { return KindAnnotationMovedAndReplacedFromOtherParent }
func (n AnnotationMovedAndReplacedFromOtherParent) Accept(v Visitor) error { return v.VisitAnnotationMovedAndReplacedFromOtherParent(n) }
func (n AnnotationMovedAndReplacedFromOtherParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n AnnotationMovedAndReplacedInSameParent) Kind() Kind { return KindAnnotationMovedAndReplacedInSameParent }
func (n AnnotationMovedAndReplacedInSameParent) Accept(v Visitor) error { return v.VisitAnnotationMovedAndReplacedInSameParent(n) }
func (n AnnotationMovedAndReplacedInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceAdded) Kind() Kind { return KindReferenceAdded }
func (n ReferenceAdded) Accept(v Visitor) error { return v.VisitReferenceAdded(n) }
func (n ReferenceAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceDeleted) Kind() Kind { return KindReferenceDeleted }
func (n ReferenceDeleted) Accept(v Visitor) error { return v.VisitReferenceDeleted(n) }
func (n ReferenceDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceChanged) Kind() Kind { return KindReferenceChanged }
func (n ReferenceChanged) Accept(v Visitor) error { return v.VisitReferenceChanged(n) }
func (n ReferenceChanged) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedFromOtherReference) Kind() Kind { return KindEntryMovedFromOtherReference }
func (n EntryMovedFromOtherReference) Accept(v Visitor) error { return v.VisitEntryMovedFromOtherReference(n) }
func (n EntryMovedFromOtherReference) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedFromOtherReferenceInSameParent) Kind() Kind { return KindEntryMovedFromOtherReferenceInSameParent }
func (n EntryMovedFromOtherReferenceInSameParent) Accept(v Visitor) error { return v.VisitEntryMovedFromOtherReferenceInSameParent(n) }
func (n EntryMovedFromOtherReferenceInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedInSameReference) Kind() Kind { return KindEntryMovedInSameReference }
func (n EntryMovedInSameReference) Accept(v Visitor) error { return v.VisitEntryMovedInSameReference(n) }
func (n EntryMovedInSameReference) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedAndReplacedFromOtherReference) Kind() Kind { return KindEntryMovedAndReplacedFromOtherReference }
func (n EntryMovedAndReplacedFromOtherReference) Accept(v Visitor) error { return v.VisitEntryMovedAndReplacedFromOtherReference(n) }
func (n EntryMovedAndReplacedFromOtherReference) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedAndReplacedFromOtherReferenceInSameParent) Kind() Kind { return KindEntryMovedAndReplacedFromOtherReferenceInSameParent }
func (n EntryMovedAndReplacedFromOtherReferenceInSameParent) Accept(v Visitor) error { return v.VisitEntryMovedAndReplacedFromOtherReferenceInSameParent(n) }
func (n EntryMovedAndReplacedFromOtherReferenceInSameParent) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n EntryMovedAndReplacedInSameReference) Kind() Kind { return KindEntryMovedAndReplacedInSameReference }
func (n EntryMovedAndReplacedInSameReference) Accept(v Visitor) error { return v.VisitEntryMovedAndReplacedInSameReference(n) }
func (n EntryMovedAndReplacedInSameReference) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceResolveInfoAdded) Kind() Kind { return KindReferenceResolveInfoAdded }
func (n ReferenceResolveInfoAdded) Accept(v Visitor) error { return v.VisitReferenceResolveInfoAdded(n) }
func (n ReferenceResolveInfoAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceResolveInfoDeleted) Kind() Kind { return KindReferenceResolveInfoDeleted }
func (n ReferenceResolveInfoDeleted) Accept(v Visitor) error { return v.VisitReferenceResolveInfoDeleted(n) }
func (n ReferenceResolveInfoDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceResolveInfoChanged) Kind() Kind { return KindReferenceResolveInfoChanged }
func (n ReferenceResolveInfoChanged) Accept(v Visitor) error { return v.VisitReferenceResolveInfoChanged(n) }
func (n ReferenceResolveInfoChanged) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceTargetAdded) Kind() Kind { return KindReferenceTargetAdded }
func (n ReferenceTargetAdded) Accept(v Visitor) error { return v.VisitReferenceTargetAdded(n) }
func (n ReferenceTargetAdded) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceTargetDeleted) Kind() Kind { return KindReferenceTargetDeleted }
func (n ReferenceTargetDeleted) Accept(v Visitor) error { return v.VisitReferenceTargetDeleted(n) }
func (n ReferenceTargetDeleted) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n ReferenceTargetChanged) Kind() Kind { return KindReferenceTargetChanged }
func (n ReferenceTargetChanged) Accept(v Visitor) error { return v.VisitReferenceTargetChanged(n) }
func (n ReferenceTargetChanged) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n Composite) Kind() Kind { return KindComposite }
func (n Composite) Accept(v Visitor) error { return v.VisitComposite(n) }
func (n Composite) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n NoOp) Kind() Kind { return KindNoOp }
func (n NoOp) Accept(v Visitor) error { return v.VisitNoOp(n) }
func (n NoOp) withHeader(h Header) Notification {
	n.Header = h
	return n
}

func (n Error) Kind() Kind { return KindError }
func (n Error) Accept(v Visitor) error { return v.VisitError(n) }
func (n Error) withHeader(h Header) Notification {
	n.Header = h
	return n
}
