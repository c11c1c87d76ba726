// Package chunk owns the self-contained serialized form of a subtree and the
// version-specific encoding of property values.
package chunk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/tree"
)

var (
	ErrUnsupportedVersion = errors.New("chunk: unsupported serialization version")
	ErrInvalidValue       = errors.New("chunk: invalid property value")
	ErrDuplicateNode      = errors.New("chunk: duplicate node id")
	ErrDanglingChild      = errors.New("chunk: child id not in chunk")
	ErrRoot               = errors.New("chunk: chunk must have exactly one root")
)

// Chunk is a serialized subtree: a root plus every current descendant.
type Chunk struct {
	SerializationFormatVersion string         `json:"serializationFormatVersion"`
	Languages                  []UsedLanguage `json:"languages"`
	Nodes                      []Node         `json:"nodes"`
}

type UsedLanguage struct {
	Key     string `json:"key"`
	Version string `json:"version"`
}

type Node struct {
	ID           string        `json:"id"`
	Classifier   meta.Pointer  `json:"classifier"`
	Properties   []Property    `json:"properties"`
	Containments []Containment `json:"containments"`
	References   []Reference   `json:"references"`
	Annotations  []string      `json:"annotations"`
	Parent       *string       `json:"parent"`
}

type Property struct {
	Property meta.Pointer `json:"property"`
	Value    *string      `json:"value"`
}

type Containment struct {
	Containment meta.Pointer `json:"containment"`
	Children    []string     `json:"children"`
}

type Reference struct {
	Reference meta.Pointer `json:"reference"`
	Targets   []Target     `json:"targets"`
}

type Target struct {
	ResolveInfo *string `json:"resolveInfo"`
	Reference   *string `json:"reference"`
}

// IDs returns the node ids in chunk order.
func (c Chunk) IDs() []tree.NodeID {
	out := make([]tree.NodeID, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		out = append(out, tree.NodeID(n.ID))
	}
	return out
}

// Serialize captures root and its descendants in pre-order.
func Serialize(root *tree.Node, codec Codec) (Chunk, error) {
	if root == nil {
		return Chunk{}, fmt.Errorf("%w: nil root", ErrRoot)
	}
	out := Chunk{SerializationFormatVersion: codec.Version()}
	langs := make(map[UsedLanguage]bool)
	for _, n := range root.Descendants(true) {
		sn, err := serializeNode(n, codec, langs)
		if err != nil {
			return Chunk{}, err
		}
		out.Nodes = append(out.Nodes, sn)
	}
	for l := range langs {
		out.Languages = append(out.Languages, l)
	}
	sort.Slice(out.Languages, func(i, j int) bool {
		if out.Languages[i].Key != out.Languages[j].Key {
			return out.Languages[i].Key < out.Languages[j].Key
		}
		return out.Languages[i].Version < out.Languages[j].Version
	})
	return out, nil
}

func serializeNode(n *tree.Node, codec Codec, langs map[UsedLanguage]bool) (Node, error) {
	c := n.Classifier()
	if c == nil {
		return Node{}, fmt.Errorf("%w: node %s has no classifier", meta.ErrUnknownPointer, n.ID())
	}
	langs[UsedLanguage{Key: c.Language.Key, Version: c.Language.Version}] = true
	sn := Node{
		ID:           string(n.ID()),
		Classifier:   c.Pointer(),
		Properties:   []Property{},
		Containments: []Containment{},
		References:   []Reference{},
		Annotations:  []string{},
	}
	if p := n.Parent(); p != nil {
		id := string(p.ID())
		sn.Parent = &id
	}
	for _, f := range n.PropertyFeatures() {
		v, _ := n.Property(f)
		raw, err := codec.Encode(f, v)
		if err != nil {
			return Node{}, fmt.Errorf("node %s: %w", n.ID(), err)
		}
		sn.Properties = append(sn.Properties, Property{Property: f.Pointer(), Value: &raw})
	}
	for _, f := range n.ContainmentFeatures() {
		ids := make([]string, 0)
		for _, child := range n.Children(f) {
			ids = append(ids, string(child.ID()))
		}
		sn.Containments = append(sn.Containments, Containment{Containment: f.Pointer(), Children: ids})
	}
	for _, f := range n.ReferenceFeatures() {
		targets := make([]Target, 0)
		for _, t := range n.References(f) {
			targets = append(targets, EncodeTarget(t))
		}
		sn.References = append(sn.References, Reference{Reference: f.Pointer(), Targets: targets})
	}
	for _, a := range n.Annotations() {
		sn.Annotations = append(sn.Annotations, string(a.ID()))
	}
	return sn, nil
}

// EncodeTarget converts a tree target to its serialized form; empty halves become null.
func EncodeTarget(t tree.Target) Target {
	var out Target
	if t.ID != "" {
		id := string(t.ID)
		out.Reference = &id
	}
	if t.ResolveInfo != "" {
		ri := t.ResolveInfo
		out.ResolveInfo = &ri
	}
	return out
}

// Deserialize materializes a detached subtree from c. Every classifier and
// feature pointer must resolve through langs.
func Deserialize(c Chunk, langs *meta.Registry, codec Codec) (*tree.Node, error) {
	if c.SerializationFormatVersion != codec.Version() {
		return nil, fmt.Errorf("%w: chunk %q, codec %q", ErrUnsupportedVersion, c.SerializationFormatVersion, codec.Version())
	}
	if len(c.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty chunk", ErrRoot)
	}
	nodes := make(map[string]*tree.Node, len(c.Nodes))
	for _, sn := range c.Nodes {
		if _, dup := nodes[sn.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, sn.ID)
		}
		cls, err := langs.Classifier(sn.Classifier)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", sn.ID, err)
		}
		nodes[sn.ID] = tree.New(tree.NodeID(sn.ID), cls)
	}

	contained := make(map[string]bool, len(c.Nodes))
	for _, sn := range c.Nodes {
		n := nodes[sn.ID]
		if err := fillNode(n, sn, nodes, contained, langs, codec); err != nil {
			return nil, fmt.Errorf("node %s: %w", sn.ID, err)
		}
	}

	var root *tree.Node
	for _, sn := range c.Nodes {
		if contained[sn.ID] {
			continue
		}
		if root != nil {
			return nil, fmt.Errorf("%w: %s and %s", ErrRoot, root.ID(), sn.ID)
		}
		root = nodes[sn.ID]
	}
	if root == nil {
		return nil, fmt.Errorf("%w: containment cycle", ErrRoot)
	}
	return root, nil
}

func fillNode(n *tree.Node, sn Node, nodes map[string]*tree.Node, contained map[string]bool, langs *meta.Registry, codec Codec) error {
	cls := n.Classifier()
	for _, p := range sn.Properties {
		f, err := langs.Feature(cls, p.Property)
		if err != nil {
			return err
		}
		if p.Value == nil {
			continue
		}
		v, err := codec.Decode(f, *p.Value)
		if err != nil {
			return err
		}
		if err := n.SetPropertyRaw(f, v); err != nil {
			return err
		}
	}
	for _, ct := range sn.Containments {
		f, err := langs.Feature(cls, ct.Containment)
		if err != nil {
			return err
		}
		for i, id := range ct.Children {
			child, ok := nodes[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrDanglingChild, id)
			}
			if err := n.InsertChildRaw(f, i, child); err != nil {
				return err
			}
			contained[id] = true
		}
	}
	for _, rf := range sn.References {
		f, err := langs.Feature(cls, rf.Reference)
		if err != nil {
			return err
		}
		for i, t := range rf.Targets {
			if err := n.InsertReferenceRaw(f, i, DecodeTarget(t)); err != nil {
				return err
			}
		}
	}
	for i, id := range sn.Annotations {
		ann, ok := nodes[id]
		if !ok {
			return fmt.Errorf("%w: annotation %s", ErrDanglingChild, id)
		}
		if err := n.InsertAnnotationRaw(i, ann); err != nil {
			return err
		}
		contained[id] = true
	}
	return nil
}

// DecodeTarget converts a serialized target to its tree form.
func DecodeTarget(t Target) tree.Target {
	var out tree.Target
	if t.Reference != nil {
		out.ID = tree.NodeID(*t.Reference)
	}
	if t.ResolveInfo != nil {
		out.ResolveInfo = *t.ResolveInfo
	}
	return out
}
