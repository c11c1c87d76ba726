package mapper

import (
	"fmt"
	"slices"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/rs/zerolog/log"
)

// FromWire validates ev and resolves it into a notification against the
// registry. Nodes referenced by id must be registered, except inside a composite
// where later parts may also name nodes introduced by earlier parts.
func (m *Mapper) FromWire(ev wire.Event) (notification.Notification, error) {
	if err := wire.Validate(ev); err != nil {
		return nil, err
	}
	d := &decoder{m: m, fresh: make(map[tree.NodeID]*tree.Node)}
	n := d.decode(ev, false)
	if d.err != nil {
		log.Debug().Msgf("mapper.Mapper.FromWire kind=%s seq=%d err=%v", ev.MessageKind, ev.SequenceNumber, d.err)
		return nil, fmt.Errorf("%s seq=%d: %w", ev.MessageKind, ev.SequenceNumber, d.err)
	}
	return n, nil
}

// decoder keeps the first failure; later calls become no-ops.
type decoder struct {
	m     *Mapper
	fresh map[tree.NodeID]*tree.Node
	err   error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) node(id string) *tree.Node {
	if d.err != nil {
		return nil
	}
	if n, ok := d.fresh[tree.NodeID(id)]; ok {
		return n
	}
	if n, ok := d.m.reg.Lookup(tree.NodeID(id)); ok {
		return n
	}
	d.fail(fmt.Errorf("%w: node %q", ErrUnresolvable, id))
	return nil
}

func (d *decoder) classifier(p *meta.Pointer) *meta.Classifier {
	if d.err != nil {
		return nil
	}
	c, err := d.m.langs.Classifier(*p)
	if err != nil {
		d.fail(fmt.Errorf("%w: %w", ErrUnresolvable, err))
		return nil
	}
	return c
}

func (d *decoder) feature(owner *tree.Node, p *meta.Pointer) *meta.Feature {
	if d.err != nil {
		return nil
	}
	f, err := d.m.langs.Feature(owner.Classifier(), *p)
	if err != nil {
		d.fail(fmt.Errorf("%w: %w", ErrUnresolvable, err))
		return nil
	}
	return f
}

func (d *decoder) value(f *meta.Feature, raw *string) any {
	if d.err != nil {
		return nil
	}
	v, err := d.m.codec.Decode(f, *raw)
	if err != nil {
		d.fail(err)
		return nil
	}
	return v
}

func (d *decoder) subtree(c *chunk.Chunk) *tree.Node {
	if d.err != nil {
		return nil
	}
	root, err := chunk.Deserialize(*c, d.m.langs, d.m.codec)
	if err != nil {
		d.fail(err)
		return nil
	}
	for _, n := range root.Descendants(true) {
		d.fresh[n.ID()] = n
	}
	return root
}

// removed resolves a node about to be removed and checks the descendant ids the
// sender listed. Inside a composite the check is skipped: earlier parts may have
// changed the subtree.
func (d *decoder) removed(id string, listed []string, part bool) *tree.Node {
	n := d.node(id)
	if n == nil || part {
		return n
	}
	got := descendants(n)
	want := append([]string(nil), listed...)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		d.fail(fmt.Errorf("%w: node %q has %v, event lists %v", ErrDescendantsMismatch, id, got, want))
		return nil
	}
	return n
}

func index(p *int) int { return *p }

func targetRef(t *chunk.Target) tree.NodeID {
	if t == nil || t.Reference == nil {
		return ""
	}
	return tree.NodeID(*t.Reference)
}

func targetInfo(t *chunk.Target) string {
	if t == nil || t.ResolveInfo == nil {
		return ""
	}
	return *t.ResolveInfo
}

func target(t *chunk.Target) tree.Target {
	if t == nil {
		return tree.Target{}
	}
	return chunk.DecodeTarget(*t)
}

func (d *decoder) decode(ev wire.Event, part bool) notification.Notification {
	n := d.decodeBody(ev, part)
	if d.err != nil {
		return nil
	}
	return notification.WithHeader(n, notification.Header{
		NotificationID: notification.ID(d.m.notifications.Next()),
		Sources:        append([]notification.CommandSource(nil), ev.OriginCommands...),
	})
}

// decodeFunc resolves the body of one wire event kind. part is set for the
// parts of a composite.
type decodeFunc func(d *decoder, ev wire.Event, part bool) notification.Notification

var decoders map[notification.Kind]decodeFunc

func init() {
	decoders = map[notification.Kind]decodeFunc{
		notification.KindPartitionAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.PartitionAdded{NewPartition: d.subtree(ev.NewChunk)}
		},
		notification.KindPartitionDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.PartitionDeleted{DeletedPartition: d.removed(ev.Node, ev.DeletedDescendants, part)}
		},
		notification.KindClassifierChanged: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.ClassifierChanged{
				Node:          d.node(ev.Node),
				NewClassifier: d.classifier(ev.NewClassifier),
				OldClassifier: d.classifier(ev.OldClassifier),
			}
		},

		notification.KindPropertyAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			node := d.node(ev.Node)
			f := d.feature(node, ev.Feature)
			return notification.PropertyAdded{Node: node, Property: f, NewValue: d.value(f, ev.NewValue)}
		},
		notification.KindPropertyDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			node := d.node(ev.Node)
			f := d.feature(node, ev.Feature)
			return notification.PropertyDeleted{Node: node, Property: f, OldValue: d.value(f, ev.OldValue)}
		},
		notification.KindPropertyChanged: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			node := d.node(ev.Node)
			f := d.feature(node, ev.Feature)
			return notification.PropertyChanged{Node: node, Property: f, NewValue: d.value(f, ev.NewValue), OldValue: d.value(f, ev.OldValue)}
		},

		notification.KindChildAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildAdded{
				Parent:      parent,
				Containment: d.feature(parent, ev.Feature),
				Index:       index(ev.Index),
				NewChild:    d.subtree(ev.NewChunk),
			}
		},
		notification.KindChildDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildDeleted{
				Parent:       parent,
				Containment:  d.feature(parent, ev.Feature),
				Index:        index(ev.Index),
				DeletedChild: d.removed(ev.Node, ev.DeletedDescendants, part),
			}
		},
		notification.KindChildReplaced: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildReplaced{
				Parent:        parent,
				Containment:   d.feature(parent, ev.Feature),
				Index:         index(ev.Index),
				ReplacedChild: d.removed(ev.Replaced, ev.ReplacedDescendants, part),
				NewChild:      d.subtree(ev.NewChunk),
			}
		},
		notification.KindChildMovedFromOtherContainment: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			newParent, oldParent := d.node(ev.NewParent), d.node(ev.OldParent)
			return notification.ChildMovedFromOtherContainment{
				NewParent:      newParent,
				NewContainment: d.feature(newParent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedChild:     d.node(ev.Node),
				OldParent:      oldParent,
				OldContainment: d.feature(oldParent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
			}
		},
		notification.KindChildMovedFromOtherContainmentInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildMovedFromOtherContainmentInSameParent{
				Parent:         parent,
				NewContainment: d.feature(parent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedChild:     d.node(ev.Node),
				OldContainment: d.feature(parent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
			}
		},
		notification.KindChildMovedInSameContainment: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildMovedInSameContainment{
				Parent:      parent,
				Containment: d.feature(parent, ev.Feature),
				NewIndex:    index(ev.NewIndex),
				MovedChild:  d.node(ev.Node),
				OldIndex:    index(ev.OldIndex),
			}
		},
		notification.KindChildMovedAndReplacedFromOtherContainment: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			newParent, oldParent := d.node(ev.NewParent), d.node(ev.OldParent)
			return notification.ChildMovedAndReplacedFromOtherContainment{
				NewParent:      newParent,
				NewContainment: d.feature(newParent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedChild:     d.node(ev.Node),
				OldParent:      oldParent,
				OldContainment: d.feature(oldParent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
				ReplacedChild:  d.removed(ev.Replaced, ev.ReplacedDescendants, part),
			}
		},
		notification.KindChildMovedAndReplacedFromOtherContainmentInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildMovedAndReplacedFromOtherContainmentInSameParent{
				Parent:         parent,
				NewContainment: d.feature(parent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedChild:     d.node(ev.Node),
				OldContainment: d.feature(parent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
				ReplacedChild:  d.removed(ev.Replaced, ev.ReplacedDescendants, part),
			}
		},
		notification.KindChildMovedAndReplacedInSameContainment: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ChildMovedAndReplacedInSameContainment{
				Parent:        parent,
				Containment:   d.feature(parent, ev.Feature),
				NewIndex:      index(ev.NewIndex),
				MovedChild:    d.node(ev.Node),
				OldIndex:      index(ev.OldIndex),
				ReplacedChild: d.removed(ev.Replaced, ev.ReplacedDescendants, part),
			}
		},

		notification.KindAnnotationAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationAdded{
				Parent:        d.node(ev.Parent),
				Index:         index(ev.Index),
				NewAnnotation: d.subtree(ev.NewChunk),
			}
		},
		notification.KindAnnotationDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationDeleted{
				Parent:            d.node(ev.Parent),
				Index:             index(ev.Index),
				DeletedAnnotation: d.removed(ev.Node, ev.DeletedDescendants, part),
			}
		},
		notification.KindAnnotationReplaced: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationReplaced{
				Parent:             d.node(ev.Parent),
				Index:              index(ev.Index),
				ReplacedAnnotation: d.removed(ev.Replaced, ev.ReplacedDescendants, part),
				NewAnnotation:      d.subtree(ev.NewChunk),
			}
		},
		notification.KindAnnotationMovedFromOtherParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationMovedFromOtherParent{
				NewParent:       d.node(ev.NewParent),
				NewIndex:        index(ev.NewIndex),
				MovedAnnotation: d.node(ev.Node),
				OldParent:       d.node(ev.OldParent),
				OldIndex:        index(ev.OldIndex),
			}
		},
		notification.KindAnnotationMovedInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationMovedInSameParent{
				Parent:          d.node(ev.Parent),
				NewIndex:        index(ev.NewIndex),
				MovedAnnotation: d.node(ev.Node),
				OldIndex:        index(ev.OldIndex),
			}
		},
		notification.KindAnnotationMovedAndReplacedFromOtherParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationMovedAndReplacedFromOtherParent{
				NewParent:          d.node(ev.NewParent),
				NewIndex:           index(ev.NewIndex),
				MovedAnnotation:    d.node(ev.Node),
				OldParent:          d.node(ev.OldParent),
				OldIndex:           index(ev.OldIndex),
				ReplacedAnnotation: d.removed(ev.Replaced, ev.ReplacedDescendants, part),
			}
		},
		notification.KindAnnotationMovedAndReplacedInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.AnnotationMovedAndReplacedInSameParent{
				Parent:             d.node(ev.Parent),
				NewIndex:           index(ev.NewIndex),
				MovedAnnotation:    d.node(ev.Node),
				OldIndex:           index(ev.OldIndex),
				ReplacedAnnotation: d.removed(ev.Replaced, ev.ReplacedDescendants, part),
			}
		},

		notification.KindReferenceAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceAdded{Parent: parent, Reference: d.feature(parent, ev.Feature), Index: index(ev.Index), NewTarget: target(ev.NewTarget)}
		},
		notification.KindReferenceDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceDeleted{Parent: parent, Reference: d.feature(parent, ev.Feature), Index: index(ev.Index), DeletedTarget: target(ev.OldTarget)}
		},
		notification.KindReferenceChanged: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceChanged{Parent: parent, Reference: d.feature(parent, ev.Feature), Index: index(ev.Index), NewTarget: target(ev.NewTarget), OldTarget: target(ev.OldTarget)}
		},
		notification.KindEntryMovedFromOtherReference: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			newParent, oldParent := d.node(ev.NewParent), d.node(ev.OldParent)
			return notification.EntryMovedFromOtherReference{
				NewParent:    newParent,
				NewReference: d.feature(newParent, ev.NewFeature),
				NewIndex:     index(ev.NewIndex),
				OldParent:    oldParent,
				OldReference: d.feature(oldParent, ev.OldFeature),
				OldIndex:     index(ev.OldIndex),
				Target:       target(ev.NewTarget),
			}
		},
		notification.KindEntryMovedFromOtherReferenceInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.EntryMovedFromOtherReferenceInSameParent{
				Parent:       parent,
				NewReference: d.feature(parent, ev.NewFeature),
				NewIndex:     index(ev.NewIndex),
				OldReference: d.feature(parent, ev.OldFeature),
				OldIndex:     index(ev.OldIndex),
				Target:       target(ev.NewTarget),
			}
		},
		notification.KindEntryMovedInSameReference: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.EntryMovedInSameReference{
				Parent:    parent,
				Reference: d.feature(parent, ev.Feature),
				NewIndex:  index(ev.NewIndex),
				OldIndex:  index(ev.OldIndex),
				Target:    target(ev.NewTarget),
			}
		},
		notification.KindEntryMovedAndReplacedFromOtherReference: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			newParent, oldParent := d.node(ev.NewParent), d.node(ev.OldParent)
			return notification.EntryMovedAndReplacedFromOtherReference{
				NewParent:      newParent,
				NewReference:   d.feature(newParent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedTarget:    target(ev.NewTarget),
				OldParent:      oldParent,
				OldReference:   d.feature(oldParent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
				ReplacedTarget: target(ev.OldTarget),
			}
		},
		notification.KindEntryMovedAndReplacedFromOtherReferenceInSameParent: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.EntryMovedAndReplacedFromOtherReferenceInSameParent{
				Parent:         parent,
				NewReference:   d.feature(parent, ev.NewFeature),
				NewIndex:       index(ev.NewIndex),
				MovedTarget:    target(ev.NewTarget),
				OldReference:   d.feature(parent, ev.OldFeature),
				OldIndex:       index(ev.OldIndex),
				ReplacedTarget: target(ev.OldTarget),
			}
		},
		notification.KindEntryMovedAndReplacedInSameReference: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.EntryMovedAndReplacedInSameReference{
				Parent:         parent,
				Reference:      d.feature(parent, ev.Feature),
				NewIndex:       index(ev.NewIndex),
				MovedTarget:    target(ev.NewTarget),
				OldIndex:       index(ev.OldIndex),
				ReplacedTarget: target(ev.OldTarget),
			}
		},

		notification.KindReferenceResolveInfoAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceResolveInfoAdded{
				Parent:         parent,
				Reference:      d.feature(parent, ev.Feature),
				Index:          index(ev.Index),
				NewResolveInfo: targetInfo(ev.NewTarget),
				Target:         targetRef(ev.NewTarget),
			}
		},
		notification.KindReferenceResolveInfoDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceResolveInfoDeleted{
				Parent:             parent,
				Reference:          d.feature(parent, ev.Feature),
				Index:              index(ev.Index),
				Target:             targetRef(ev.OldTarget),
				DeletedResolveInfo: targetInfo(ev.OldTarget),
			}
		},
		notification.KindReferenceResolveInfoChanged: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceResolveInfoChanged{
				Parent:         parent,
				Reference:      d.feature(parent, ev.Feature),
				Index:          index(ev.Index),
				NewResolveInfo: targetInfo(ev.NewTarget),
				Target:         targetRef(ev.NewTarget),
				OldResolveInfo: targetInfo(ev.OldTarget),
			}
		},
		notification.KindReferenceTargetAdded: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceTargetAdded{
				Parent:      parent,
				Reference:   d.feature(parent, ev.Feature),
				Index:       index(ev.Index),
				NewTarget:   targetRef(ev.NewTarget),
				ResolveInfo: targetInfo(ev.NewTarget),
			}
		},
		notification.KindReferenceTargetDeleted: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceTargetDeleted{
				Parent:        parent,
				Reference:     d.feature(parent, ev.Feature),
				Index:         index(ev.Index),
				ResolveInfo:   targetInfo(ev.OldTarget),
				DeletedTarget: targetRef(ev.OldTarget),
			}
		},
		notification.KindReferenceTargetChanged: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parent := d.node(ev.Parent)
			return notification.ReferenceTargetChanged{
				Parent:      parent,
				Reference:   d.feature(parent, ev.Feature),
				Index:       index(ev.Index),
				NewTarget:   targetRef(ev.NewTarget),
				ResolveInfo: targetInfo(ev.NewTarget),
				OldTarget:   targetRef(ev.OldTarget),
			}
		},

		notification.KindComposite: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			parts := make([]notification.Notification, 0, len(ev.Parts))
			for _, p := range ev.Parts {
				n := d.decode(p, true)
				if d.err != nil {
					return nil
				}
				parts = append(parts, n)
			}
			return notification.Composite{Parts: parts}
		},
		notification.KindNoOp: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.NoOp{}
		},
		notification.KindError: func(d *decoder, ev wire.Event, part bool) notification.Notification {
			return notification.Error{Code: ev.Code, Message: ev.Message}
		},
	}
}

func (d *decoder) decodeBody(ev wire.Event, part bool) notification.Notification {
	decode, ok := decoders[ev.Kind()]
	if !ok {
		d.fail(fmt.Errorf("%w: kind %q", ErrUnresolvable, ev.MessageKind))
		return nil
	}
	return decode(d, ev, part)
}
