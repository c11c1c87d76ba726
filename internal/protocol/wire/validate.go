package wire

import (
	"fmt"

	"github.com/danmuck/treesync/internal/notification"
	"github.com/rs/zerolog/log"
)

// Field names one optional envelope field by its JSON name.
type Field string

const (
	FieldNode                Field = "node"
	FieldParent              Field = "parent"
	FieldNewParent           Field = "new_parent"
	FieldOldParent           Field = "old_parent"
	FieldFeature             Field = "feature"
	FieldNewFeature          Field = "new_feature"
	FieldOldFeature          Field = "old_feature"
	FieldNewClassifier       Field = "new_classifier"
	FieldOldClassifier       Field = "old_classifier"
	FieldIndex               Field = "index"
	FieldNewIndex            Field = "new_index"
	FieldOldIndex            Field = "old_index"
	FieldNewValue            Field = "new_value"
	FieldOldValue            Field = "old_value"
	FieldNewChunk            Field = "new_chunk"
	FieldReplaced            Field = "replaced"
	FieldNewTarget           Field = "new_target"
	FieldOldTarget           Field = "old_target"
	FieldNewTargetReference  Field = "new_target.reference"
	FieldNewTargetResolve    Field = "new_target.resolveInfo"
	FieldOldTargetReference  Field = "old_target.reference"
	FieldOldTargetResolve    Field = "old_target.resolveInfo"
	FieldCode                Field = "code"
	FieldParts               Field = "parts"
	FieldSequenceNumber      Field = "sequence_number"
	FieldMessageKind         Field = "message_kind"
	FieldDeletedDescendants  Field = "deleted_descendants"
	FieldReplacedDescendants Field = "replaced_descendants"
)

type ValidationError struct {
	MessageKind string
	Field       Field
	Reason      string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("wire: message_kind=%q: %s", e.MessageKind, e.Reason)
	}
	return fmt.Sprintf("wire: message_kind=%q field=%s: %s", e.MessageKind, e.Field, e.Reason)
}

var (
	childMove    = []Field{FieldNode, FieldNewIndex, FieldOldIndex}
	entryMove    = []Field{FieldNewIndex, FieldOldIndex, FieldNewTarget}
	annotationIx = []Field{FieldParent, FieldIndex}
	referenceIx  = []Field{FieldParent, FieldFeature, FieldIndex}
)

func join(groups ...[]Field) []Field {
	out := make([]Field, 0)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var requirements = map[notification.Kind][]Field{
	notification.KindPartitionAdded:   {FieldNewChunk},
	notification.KindPartitionDeleted: {FieldNode},

	notification.KindClassifierChanged: {FieldNode, FieldNewClassifier, FieldOldClassifier},

	notification.KindPropertyAdded:   {FieldNode, FieldFeature, FieldNewValue},
	notification.KindPropertyDeleted: {FieldNode, FieldFeature, FieldOldValue},
	notification.KindPropertyChanged: {FieldNode, FieldFeature, FieldNewValue, FieldOldValue},

	notification.KindChildAdded:                                            {FieldParent, FieldFeature, FieldIndex, FieldNewChunk},
	notification.KindChildDeleted:                                          {FieldParent, FieldFeature, FieldIndex, FieldNode},
	notification.KindChildReplaced:                                         {FieldParent, FieldFeature, FieldIndex, FieldNewChunk, FieldReplaced},
	notification.KindChildMovedFromOtherContainment:                        join(childMove, []Field{FieldNewParent, FieldNewFeature, FieldOldParent, FieldOldFeature}),
	notification.KindChildMovedFromOtherContainmentInSameParent:            join(childMove, []Field{FieldParent, FieldNewFeature, FieldOldFeature}),
	notification.KindChildMovedInSameContainment:                           join(childMove, []Field{FieldParent, FieldFeature}),
	notification.KindChildMovedAndReplacedFromOtherContainment:             join(childMove, []Field{FieldNewParent, FieldNewFeature, FieldOldParent, FieldOldFeature, FieldReplaced}),
	notification.KindChildMovedAndReplacedFromOtherContainmentInSameParent: join(childMove, []Field{FieldParent, FieldNewFeature, FieldOldFeature, FieldReplaced}),
	notification.KindChildMovedAndReplacedInSameContainment:                join(childMove, []Field{FieldParent, FieldFeature, FieldReplaced}),

	notification.KindAnnotationAdded:                           join(annotationIx, []Field{FieldNewChunk}),
	notification.KindAnnotationDeleted:                         join(annotationIx, []Field{FieldNode}),
	notification.KindAnnotationReplaced:                        join(annotationIx, []Field{FieldNewChunk, FieldReplaced}),
	notification.KindAnnotationMovedFromOtherParent:            join(childMove, []Field{FieldNewParent, FieldOldParent}),
	notification.KindAnnotationMovedInSameParent:               join(childMove, []Field{FieldParent}),
	notification.KindAnnotationMovedAndReplacedFromOtherParent: join(childMove, []Field{FieldNewParent, FieldOldParent, FieldReplaced}),
	notification.KindAnnotationMovedAndReplacedInSameParent:    join(childMove, []Field{FieldParent, FieldReplaced}),

	notification.KindReferenceAdded:                                      join(referenceIx, []Field{FieldNewTarget}),
	notification.KindReferenceDeleted:                                    join(referenceIx, []Field{FieldOldTarget}),
	notification.KindReferenceChanged:                                    join(referenceIx, []Field{FieldNewTarget, FieldOldTarget}),
	notification.KindEntryMovedFromOtherReference:                        join(entryMove, []Field{FieldNewParent, FieldNewFeature, FieldOldParent, FieldOldFeature}),
	notification.KindEntryMovedFromOtherReferenceInSameParent:            join(entryMove, []Field{FieldParent, FieldNewFeature, FieldOldFeature}),
	notification.KindEntryMovedInSameReference:                           join(entryMove, []Field{FieldParent, FieldFeature}),
	notification.KindEntryMovedAndReplacedFromOtherReference:             join(entryMove, []Field{FieldNewParent, FieldNewFeature, FieldOldParent, FieldOldFeature, FieldOldTarget}),
	notification.KindEntryMovedAndReplacedFromOtherReferenceInSameParent: join(entryMove, []Field{FieldParent, FieldNewFeature, FieldOldFeature, FieldOldTarget}),
	notification.KindEntryMovedAndReplacedInSameReference:                join(entryMove, []Field{FieldParent, FieldFeature, FieldOldTarget}),
	notification.KindReferenceResolveInfoAdded:                           join(referenceIx, []Field{FieldNewTargetResolve}),
	notification.KindReferenceResolveInfoDeleted:                         join(referenceIx, []Field{FieldOldTargetResolve}),
	notification.KindReferenceResolveInfoChanged:                         join(referenceIx, []Field{FieldNewTargetResolve, FieldOldTargetResolve}),
	notification.KindReferenceTargetAdded:                                join(referenceIx, []Field{FieldNewTargetReference}),
	notification.KindReferenceTargetDeleted:                              join(referenceIx, []Field{FieldOldTargetReference}),
	notification.KindReferenceTargetChanged:                              join(referenceIx, []Field{FieldNewTargetReference, FieldOldTargetReference}),

	notification.KindComposite: {FieldParts},
	notification.KindNoOp:      {},
	notification.KindError:     {FieldCode},
}

// Validate enforces the required fields of e's kind, recursing into composite parts.
// Fields not required by the kind are ignored.
func Validate(e Event) error {
	if e.SequenceNumber <= 0 {
		return ValidationError{MessageKind: e.MessageKind, Field: FieldSequenceNumber, Reason: "must be positive"}
	}
	return validate(e, false)
}

// ValidatePart validates an event nested in a composite, which carries no sequence number.
func ValidatePart(e Event) error {
	return validate(e, true)
}

func validate(e Event, part bool) error {
	if e.MessageKind == "" {
		return ValidationError{Field: FieldMessageKind, Reason: "missing required field"}
	}
	reqs, ok := requirements[e.Kind()]
	if !ok {
		log.Error().Msgf("wire.Validate unknown message_kind=%q", e.MessageKind)
		return ValidationError{MessageKind: e.MessageKind, Reason: "unknown message_kind"}
	}
	if part && e.SequenceNumber != 0 {
		return ValidationError{MessageKind: e.MessageKind, Field: FieldSequenceNumber, Reason: "composite part carries its own sequence number"}
	}
	for _, f := range reqs {
		if !present(e, f) {
			log.Error().Msgf("wire.Validate missing field message_kind=%q field=%s", e.MessageKind, f)
			return ValidationError{MessageKind: e.MessageKind, Field: f, Reason: "missing required field"}
		}
	}
	for _, idx := range []struct {
		f Field
		v *int
	}{{FieldIndex, e.Index}, {FieldNewIndex, e.NewIndex}, {FieldOldIndex, e.OldIndex}} {
		if idx.v != nil && *idx.v < 0 {
			return ValidationError{MessageKind: e.MessageKind, Field: idx.f, Reason: "negative index"}
		}
	}
	for _, p := range e.Parts {
		if err := validate(p, true); err != nil {
			return err
		}
	}
	return nil
}

func present(e Event, f Field) bool {
	switch f {
	case FieldNode:
		return e.Node != ""
	case FieldParent:
		return e.Parent != ""
	case FieldNewParent:
		return e.NewParent != ""
	case FieldOldParent:
		return e.OldParent != ""
	case FieldFeature:
		return e.Feature != nil && !e.Feature.IsZero()
	case FieldNewFeature:
		return e.NewFeature != nil && !e.NewFeature.IsZero()
	case FieldOldFeature:
		return e.OldFeature != nil && !e.OldFeature.IsZero()
	case FieldNewClassifier:
		return e.NewClassifier != nil && !e.NewClassifier.IsZero()
	case FieldOldClassifier:
		return e.OldClassifier != nil && !e.OldClassifier.IsZero()
	case FieldIndex:
		return e.Index != nil
	case FieldNewIndex:
		return e.NewIndex != nil
	case FieldOldIndex:
		return e.OldIndex != nil
	case FieldNewValue:
		return e.NewValue != nil
	case FieldOldValue:
		return e.OldValue != nil
	case FieldNewChunk:
		return e.NewChunk != nil && len(e.NewChunk.Nodes) > 0
	case FieldReplaced:
		return e.Replaced != ""
	case FieldNewTarget:
		return e.NewTarget != nil && (e.NewTarget.Reference != nil || e.NewTarget.ResolveInfo != nil)
	case FieldOldTarget:
		return e.OldTarget != nil && (e.OldTarget.Reference != nil || e.OldTarget.ResolveInfo != nil)
	case FieldNewTargetReference:
		return e.NewTarget != nil && e.NewTarget.Reference != nil
	case FieldNewTargetResolve:
		return e.NewTarget != nil && e.NewTarget.ResolveInfo != nil
	case FieldOldTargetReference:
		return e.OldTarget != nil && e.OldTarget.Reference != nil
	case FieldOldTargetResolve:
		return e.OldTarget != nil && e.OldTarget.ResolveInfo != nil
	case FieldCode:
		return e.Code != ""
	case FieldParts:
		return len(e.Parts) > 0
	default:
		return false
	}
}

// Kinds returns every message kind with a requirement entry.
func Kinds() []notification.Kind {
	out := make([]notification.Kind, 0, len(requirements))
	for _, k := range notification.Kinds {
		if _, ok := requirements[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
