package tree

import (
	"fmt"
	"reflect"

	"github.com/danmuck/treesync/internal/meta"
)

// Clone deep-copies n and its descendants. Ids and classifiers are kept; the copy is detached.
func (n *Node) Clone() *Node {
	out := New(n.id, n.classifier)
	for f, v := range n.properties {
		out.properties[f] = v
	}
	for f, list := range n.references {
		out.references[f] = append([]Target(nil), list...)
	}
	for f, list := range n.children {
		copies := make([]*Node, 0, len(list))
		for _, c := range list {
			cc := c.Clone()
			cc.parent = out
			cc.containment = f
			copies = append(copies, cc)
		}
		out.children[f] = copies
	}
	for _, a := range n.annotations {
		ac := a.Clone()
		ac.parent = out
		out.annotations = append(out.annotations, ac)
	}
	return out
}

// Diff compares two subtrees by id, classifier and feature values and returns the differences.
func Diff(a, b *Node) []string {
	var out []string
	diffInto(&out, a, b)
	return out
}

// Equal reports whether Diff(a, b) is empty.
func Equal(a, b *Node) bool {
	return len(Diff(a, b)) == 0
}

func diffInto(out *[]string, a, b *Node) {
	if a == nil || b == nil {
		if a != b {
			*out = append(*out, fmt.Sprintf("nil mismatch: %v vs %v", a, b))
		}
		return
	}
	if a.id != b.id {
		*out = append(*out, fmt.Sprintf("id %s != %s", a.id, b.id))
		return
	}
	if a.classifier != b.classifier {
		*out = append(*out, fmt.Sprintf("%s: classifier mismatch", a.id))
	}
	if !sameProperties(a.properties, b.properties) {
		*out = append(*out, fmt.Sprintf("%s: properties %v != %v", a.id, a.properties, b.properties))
	}
	if !reflect.DeepEqual(a.references, b.references) {
		*out = append(*out, fmt.Sprintf("%s: references %v != %v", a.id, a.references, b.references))
	}
	features := map[string]bool{}
	for _, f := range a.ContainmentFeatures() {
		features[f.Key] = true
		diffLists(out, a.id, f.Key, a.children[f], b.children[f])
	}
	for _, f := range b.ContainmentFeatures() {
		if !features[f.Key] {
			diffLists(out, a.id, f.Key, a.children[f], b.children[f])
		}
	}
	diffLists(out, a.id, "annotations", a.annotations, b.annotations)
}

func diffLists(out *[]string, id NodeID, label string, a, b []*Node) {
	if len(a) != len(b) {
		*out = append(*out, fmt.Sprintf("%s.%s: len %d != %d", id, label, len(a), len(b)))
		return
	}
	for i := range a {
		diffInto(out, a[i], b[i])
	}
}

func sameProperties(a, b map[*meta.Feature]any) bool {
	if len(a) != len(b) {
		return false
	}
	for f, v := range a {
		w, ok := b[f]
		if !ok || !SameValue(v, w) {
			return false
		}
	}
	return true
}
