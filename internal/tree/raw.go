package tree

import (
	"fmt"

	"github.com/danmuck/treesync/internal/meta"
)

// SetClassifierRaw replaces n's classifier. Stored feature values are kept.
func (n *Node) SetClassifierRaw(c *meta.Classifier) {
	n.classifier = c
}

// SetPropertyRaw sets property f to v; a nil v removes the property.
func (n *Node) SetPropertyRaw(f *meta.Feature, v any) error {
	if err := n.checkFeature(f, meta.KindProperty); err != nil {
		return err
	}
	if v == nil {
		delete(n.properties, f)
		return nil
	}
	n.properties[f] = v
	return nil
}

// InsertChildRaw attaches a detached child at index of containment f.
func (n *Node) InsertChildRaw(f *meta.Feature, index int, child *Node) error {
	if err := n.checkFeature(f, meta.KindContainment); err != nil {
		return err
	}
	if err := n.checkAttachable(child); err != nil {
		return err
	}
	list := n.children[f]
	if index < 0 || index > len(list) {
		return fmt.Errorf("%w: %s index=%d len=%d", ErrIndexOutOfRange, f, index, len(list))
	}
	if !f.Multiple && len(list) > 0 {
		return fmt.Errorf("%w: %s", ErrSingleOccupied, f)
	}
	n.children[f] = insertAt(list, index, child)
	child.parent = n
	child.containment = f
	return nil
}

// RemoveChildRaw detaches and returns the child at index of containment f.
func (n *Node) RemoveChildRaw(f *meta.Feature, index int) (*Node, error) {
	if err := n.checkFeature(f, meta.KindContainment); err != nil {
		return nil, err
	}
	list := n.children[f]
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %s index=%d len=%d", ErrIndexOutOfRange, f, index, len(list))
	}
	child := list[index]
	list = removeAt(list, index)
	if len(list) == 0 {
		delete(n.children, f)
	} else {
		n.children[f] = list
	}
	child.parent = nil
	child.containment = nil
	return child, nil
}

// InsertAnnotationRaw attaches a detached annotation at index.
func (n *Node) InsertAnnotationRaw(index int, ann *Node) error {
	if err := n.checkAttachable(ann); err != nil {
		return err
	}
	if ann.classifier != nil && !ann.classifier.Annotation {
		return fmt.Errorf("%w: %s", ErrNotAnnotation, ann.classifier.Name)
	}
	if index < 0 || index > len(n.annotations) {
		return fmt.Errorf("%w: annotations index=%d len=%d", ErrIndexOutOfRange, index, len(n.annotations))
	}
	n.annotations = insertAt(n.annotations, index, ann)
	ann.parent = n
	ann.containment = nil
	return nil
}

// RemoveAnnotationRaw detaches and returns the annotation at index.
func (n *Node) RemoveAnnotationRaw(index int) (*Node, error) {
	if index < 0 || index >= len(n.annotations) {
		return nil, fmt.Errorf("%w: annotations index=%d len=%d", ErrIndexOutOfRange, index, len(n.annotations))
	}
	ann := n.annotations[index]
	n.annotations = removeAt(n.annotations, index)
	ann.parent = nil
	return ann, nil
}

// Detach removes n from its parent and reports where it was.
func (n *Node) Detach() (*meta.Feature, int, error) {
	if n.parent == nil {
		return nil, -1, ErrNotAttached
	}
	parent := n.parent
	f := n.containment
	index := n.Index()
	if f == nil {
		_, err := parent.RemoveAnnotationRaw(index)
		return nil, index, err
	}
	_, err := parent.RemoveChildRaw(f, index)
	return f, index, err
}

// InsertReferenceRaw inserts target t at index of reference f.
func (n *Node) InsertReferenceRaw(f *meta.Feature, index int, t Target) error {
	if err := n.checkFeature(f, meta.KindReference); err != nil {
		return err
	}
	if !t.Valid() {
		return ErrInvalidTarget
	}
	list := n.references[f]
	if index < 0 || index > len(list) {
		return fmt.Errorf("%w: %s index=%d len=%d", ErrIndexOutOfRange, f, index, len(list))
	}
	if !f.Multiple && len(list) > 0 {
		return fmt.Errorf("%w: %s", ErrSingleOccupied, f)
	}
	n.references[f] = insertAt(list, index, t)
	return nil
}

// RemoveReferenceRaw removes and returns the target at index of reference f.
func (n *Node) RemoveReferenceRaw(f *meta.Feature, index int) (Target, error) {
	if err := n.checkFeature(f, meta.KindReference); err != nil {
		return Target{}, err
	}
	list := n.references[f]
	if index < 0 || index >= len(list) {
		return Target{}, fmt.Errorf("%w: %s index=%d len=%d", ErrIndexOutOfRange, f, index, len(list))
	}
	t := list[index]
	list = removeAt(list, index)
	if len(list) == 0 {
		delete(n.references, f)
	} else {
		n.references[f] = list
	}
	return t, nil
}

// SetReferenceRaw overwrites the target at index of reference f and returns the old one.
func (n *Node) SetReferenceRaw(f *meta.Feature, index int, t Target) (Target, error) {
	if err := n.checkFeature(f, meta.KindReference); err != nil {
		return Target{}, err
	}
	if !t.Valid() {
		return Target{}, ErrInvalidTarget
	}
	list := n.references[f]
	if index < 0 || index >= len(list) {
		return Target{}, fmt.Errorf("%w: %s index=%d len=%d", ErrIndexOutOfRange, f, index, len(list))
	}
	old := list[index]
	list[index] = t
	return old, nil
}

func (n *Node) checkFeature(f *meta.Feature, kind meta.FeatureKind) error {
	if f == nil {
		return fmt.Errorf("%w: nil feature", ErrUnknownFeature)
	}
	if f.Kind != kind {
		return fmt.Errorf("%w: %s is %s, want %s", ErrFeatureKind, f, f.Kind, kind)
	}
	if n.classifier != nil && !n.classifier.HasFeature(f) {
		return fmt.Errorf("%w: %s on %s", ErrUnknownFeature, f, n.classifier.Name)
	}
	return nil
}

func (n *Node) checkAttachable(child *Node) error {
	if child == nil {
		return ErrNilNode
	}
	if child.parent != nil {
		return fmt.Errorf("%w: %s", ErrAttached, child.id)
	}
	if child.IsAncestorOf(n) {
		return fmt.Errorf("%w: %s into %s", ErrCycle, child.id, n.id)
	}
	return nil
}

func insertAt[T any](list []T, index int, v T) []T {
	var zero T
	list = append(list, zero)
	copy(list[index+1:], list[index:])
	list[index] = v
	return list
}

func removeAt[T any](list []T, index int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...)
}
