// Package tree owns the in-memory node representation and its raw primitives.
//
// Ownership boundary:
// - node identity, classifier and position (parent, containment, index)
// - property, containment, annotation and reference storage
// - raw (non-notifying) attach/detach/reorder primitives
//
// Raw primitives never raise notifications. Editing code that must notify
// lives in the partition package; replay code uses these primitives directly.
package tree

import (
	"errors"
	"sort"

	"github.com/danmuck/treesync/internal/meta"
)

// NodeID identifies one node within a distributed model instance.
type NodeID string

var (
	ErrIndexOutOfRange = errors.New("tree: index out of range")
	ErrFeatureKind     = errors.New("tree: feature kind mismatch")
	ErrUnknownFeature  = errors.New("tree: feature not on classifier")
	ErrAttached        = errors.New("tree: node already attached")
	ErrNotAttached     = errors.New("tree: node not attached")
	ErrSingleOccupied  = errors.New("tree: single-valued feature occupied")
	ErrInvalidTarget   = errors.New("tree: reference target has neither id nor resolve info")
	ErrNotAnnotation   = errors.New("tree: classifier is not an annotation")
	ErrCycle           = errors.New("tree: insert would create a cycle")
	ErrNilNode         = errors.New("tree: nil node")
)

// Node is one element of a model tree.
type Node struct {
	id          NodeID
	classifier  *meta.Classifier
	parent      *Node
	containment *meta.Feature

	properties  map[*meta.Feature]any
	children    map[*meta.Feature][]*Node
	references  map[*meta.Feature][]Target
	annotations []*Node
}

// New creates a detached node.
func New(id NodeID, c *meta.Classifier) *Node {
	return &Node{
		id:         id,
		classifier: c,
		properties: make(map[*meta.Feature]any),
		children:   make(map[*meta.Feature][]*Node),
		references: make(map[*meta.Feature][]Target),
	}
}

func (n *Node) ID() NodeID { return n.id }
func (n *Node) Classifier() *meta.Classifier { return n.classifier }
func (n *Node) Parent() *Node { return n.parent }

// Containment returns the feature holding n, or nil for roots and annotations.
func (n *Node) Containment() *meta.Feature { return n.containment }

// IsAnnotation reports whether n is attached as an annotation.
func (n *Node) IsAnnotation() bool {
	return n.parent != nil && n.containment == nil
}

// Root walks up to the topmost ancestor.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Index returns n's position within its containment or annotation list, or -1 for roots.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	var list []*Node
	if n.containment == nil {
		list = n.parent.annotations
	} else {
		list = n.parent.children[n.containment]
	}
	for i, c := range list {
		if c == n {
			return i
		}
	}
	return -1
}

// Property returns the value of property f.
func (n *Node) Property(f *meta.Feature) (any, bool) {
	v, ok := n.properties[f]
	return v, ok
}

// Children returns a copy of the nodes held by containment f.
func (n *Node) Children(f *meta.Feature) []*Node {
	return append([]*Node(nil), n.children[f]...)
}

// ChildAt returns the child at index of containment f.
func (n *Node) ChildAt(f *meta.Feature, index int) (*Node, bool) {
	list := n.children[f]
	if index < 0 || index >= len(list) {
		return nil, false
	}
	return list[index], true
}

// Annotations returns a copy of n's annotations.
func (n *Node) Annotations() []*Node {
	return append([]*Node(nil), n.annotations...)
}

// AnnotationAt returns the annotation at index.
func (n *Node) AnnotationAt(index int) (*Node, bool) {
	if index < 0 || index >= len(n.annotations) {
		return nil, false
	}
	return n.annotations[index], true
}

// References returns a copy of the targets held by reference f.
func (n *Node) References(f *meta.Feature) []Target {
	return append([]Target(nil), n.references[f]...)
}

// ReferenceAt returns the target at index of reference f.
func (n *Node) ReferenceAt(f *meta.Feature, index int) (Target, bool) {
	list := n.references[f]
	if index < 0 || index >= len(list) {
		return Target{}, false
	}
	return list[index], true
}

// PropertyFeatures returns the properties set on n in stable order.
func (n *Node) PropertyFeatures() []*meta.Feature {
	return sortedFeatures(n.properties)
}

// ContainmentFeatures returns the non-empty containments of n in stable order.
func (n *Node) ContainmentFeatures() []*meta.Feature {
	return sortedFeatures(n.children)
}

// ReferenceFeatures returns the non-empty references of n in stable order.
func (n *Node) ReferenceFeatures() []*meta.Feature {
	return sortedFeatures(n.references)
}

// AllChildren returns contained children in feature order followed by annotations.
func (n *Node) AllChildren() []*Node {
	out := make([]*Node, 0)
	for _, f := range n.ContainmentFeatures() {
		out = append(out, n.children[f]...)
	}
	return append(out, n.annotations...)
}

// Descendants returns every node below n in pre-order, optionally including n.
func (n *Node) Descendants(includeSelf bool) []*Node {
	out := make([]*Node, 0)
	if includeSelf {
		out = append(out, n)
	}
	for _, c := range n.AllChildren() {
		out = append(out, c.Descendants(true)...)
	}
	return out
}

// DescendantIDs returns the ids of Descendants(includeSelf).
func (n *Node) DescendantIDs(includeSelf bool) []NodeID {
	nodes := n.Descendants(includeSelf)
	out := make([]NodeID, 0, len(nodes))
	for _, d := range nodes {
		out = append(out, d.id)
	}
	return out
}

// IsAncestorOf reports whether n is other or one of other's ancestors.
func (n *Node) IsAncestorOf(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func sortedFeatures[V any](m map[*meta.Feature]V) []*meta.Feature {
	out := make([]*meta.Feature, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pointer().String() < out[j].Pointer().String()
	})
	return out
}
