// Package meta owns the metamodel surface consumed by the replication core.
//
// Ownership boundary:
// - MetaPointer identity for classifiers and features
// - language/classifier/feature/enumeration shapes
// - pointer resolution (Registry)
//
// Instances are canonical: every tree node and notification refers to the same
// *Classifier and *Feature values that a Registry hands out, so features can be
// used directly as map keys.
package meta

import (
	"fmt"
	"strings"
)

// Pointer is the process-independent identity of a classifier, feature or enumeration.
type Pointer struct {
	Language string `json:"language" toml:"language"`
	Version  string `json:"version" toml:"version"`
	Key      string `json:"key" toml:"key"`
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s@%s:%s", p.Language, p.Version, p.Key)
}

// IsZero reports whether the pointer has no key.
func (p Pointer) IsZero() bool {
	return strings.TrimSpace(p.Key) == ""
}

// FeatureKind classifies a feature.
type FeatureKind string

const (
	KindProperty    FeatureKind = "property"
	KindContainment FeatureKind = "containment"
	KindReference   FeatureKind = "reference"
)

// Primitive names the built-in property datatypes.
type Primitive string

const (
	PrimitiveString  Primitive = "string"
	PrimitiveInteger Primitive = "integer"
	PrimitiveBoolean Primitive = "boolean"
	PrimitiveEnum    Primitive = "enum"
)

// Language groups classifiers and enumerations under one key and version.
type Language struct {
	Key          string
	Version      string
	Name         string
	Classifiers  []*Classifier
	Enumerations []*Enumeration
}

// Classifier is a concept or annotation type.
type Classifier struct {
	Key        string
	Name       string
	Language   *Language
	Partition  bool
	Annotation bool
	Features   []*Feature
}

// Pointer returns the classifier's MetaPointer.
func (c *Classifier) Pointer() Pointer {
	return Pointer{Language: c.Language.Key, Version: c.Language.Version, Key: c.Key}
}

// Feature returns the classifier's feature with key.
func (c *Classifier) Feature(key string) (*Feature, bool) {
	for _, f := range c.Features {
		if f.Key == key {
			return f, true
		}
	}
	return nil, false
}

// HasFeature reports whether f belongs to c.
func (c *Classifier) HasFeature(f *Feature) bool {
	for _, own := range c.Features {
		if own == f {
			return true
		}
	}
	return false
}

// Feature is a property, containment or reference slot on a classifier.
type Feature struct {
	Key        string
	Name       string
	Kind       FeatureKind
	Multiple   bool
	Optional   bool
	Primitive  Primitive
	Enum       *Enumeration
	Classifier *Classifier
}

// Pointer returns the feature's MetaPointer.
func (f *Feature) Pointer() Pointer {
	lang := f.Classifier.Language
	return Pointer{Language: lang.Key, Version: lang.Version, Key: f.Key}
}

func (f *Feature) String() string {
	return f.Classifier.Name + "." + f.Name
}

// Enumeration is a closed set of literals usable as a property datatype.
type Enumeration struct {
	Key      string
	Name     string
	Language *Language
	Literals []EnumLiteral
}

// Pointer returns the enumeration's MetaPointer.
func (e *Enumeration) Pointer() Pointer {
	return Pointer{Language: e.Language.Key, Version: e.Language.Version, Key: e.Key}
}

// LiteralByKey returns the literal with key.
func (e *Enumeration) LiteralByKey(key string) (EnumLiteral, bool) {
	for _, lit := range e.Literals {
		if lit.Key == key {
			return lit, true
		}
	}
	return EnumLiteral{}, false
}

// LiteralByName returns the literal with name.
func (e *Enumeration) LiteralByName(name string) (EnumLiteral, bool) {
	for _, lit := range e.Literals {
		if lit.Name == name {
			return lit, true
		}
	}
	return EnumLiteral{}, false
}

// EnumLiteral is one enumeration value.
type EnumLiteral struct {
	Key  string
	Name string
}
