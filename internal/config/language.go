package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/treesync/internal/meta"
)

// LanguageFile is the TOML form of one language definition.
type LanguageFile struct {
	Key          string            `toml:"key"`
	Version      string            `toml:"version"`
	Name         string            `toml:"name"`
	Enumerations []EnumerationFile `toml:"enumerations"`
	Classifiers  []ClassifierFile  `toml:"classifiers"`
}

type EnumerationFile struct {
	Key      string            `toml:"key"`
	Name     string            `toml:"name"`
	Literals []meta.EnumLiteral `toml:"literals"`
}

type ClassifierFile struct {
	Key        string        `toml:"key"`
	Name       string        `toml:"name"`
	Partition  bool          `toml:"partition"`
	Annotation bool          `toml:"annotation"`
	Features   []FeatureFile `toml:"features"`
}

// FeatureFile is one feature. Kind is property, containment or reference;
// Type is a primitive name or, for enum properties, the enumeration key.
type FeatureFile struct {
	Key      string `toml:"key"`
	Name     string `toml:"name"`
	Kind     string `toml:"kind"`
	Type     string `toml:"type"`
	Multiple bool   `toml:"multiple"`
}

// LoadLanguage reads and builds one language definition.
func LoadLanguage(path string) (*meta.Language, error) {
	var raw LanguageFile
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("language load failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalid, path, undecoded)
	}
	lang, err := BuildLanguage(raw)
	if err != nil {
		return nil, fmt.Errorf("language %s: %w", path, err)
	}
	return lang, nil
}

// LoadLanguages builds a metamodel registry from every file in paths.
func LoadLanguages(paths []string) (*meta.Registry, error) {
	langs := make([]*meta.Language, 0, len(paths))
	for _, path := range paths {
		lang, err := LoadLanguage(path)
		if err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return meta.NewRegistry(langs...)
}

func BuildLanguage(raw LanguageFile) (*meta.Language, error) {
	key := strings.TrimSpace(raw.Key)
	if key == "" || strings.TrimSpace(raw.Version) == "" {
		return nil, fmt.Errorf("%w: key and version are required", ErrInvalid)
	}
	lang := meta.NewLanguage(key, strings.TrimSpace(raw.Version), raw.Name)

	enums := map[string]*meta.Enumeration{}
	for _, e := range raw.Enumerations {
		if e.Key == "" || len(e.Literals) == 0 {
			return nil, fmt.Errorf("%w: enumeration %q needs a key and literals", ErrInvalid, e.Key)
		}
		enums[e.Key] = lang.Enumeration(e.Key, e.Name, e.Literals...)
	}

	for _, c := range raw.Classifiers {
		if c.Key == "" {
			return nil, fmt.Errorf("%w: classifier without key", ErrInvalid)
		}
		if c.Partition && c.Annotation {
			return nil, fmt.Errorf("%w: classifier %q cannot be both partition and annotation", ErrInvalid, c.Key)
		}
		var cls *meta.Classifier
		switch {
		case c.Partition:
			cls = lang.PartitionConcept(c.Key, c.Name)
		case c.Annotation:
			cls = lang.AnnotationType(c.Key, c.Name)
		default:
			cls = lang.Concept(c.Key, c.Name)
		}
		for _, f := range c.Features {
			if err := addFeature(cls, f, enums); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalid, c.Key, f.Key, err)
			}
		}
	}
	return lang, nil
}

func addFeature(cls *meta.Classifier, f FeatureFile, enums map[string]*meta.Enumeration) error {
	if f.Key == "" {
		return fmt.Errorf("feature key is required")
	}
	switch meta.FeatureKind(strings.ToLower(f.Kind)) {
	case meta.KindProperty:
		switch prim := meta.Primitive(strings.ToLower(f.Type)); prim {
		case meta.PrimitiveString, meta.PrimitiveInteger, meta.PrimitiveBoolean:
			cls.Property(f.Key, f.Name, prim)
		default:
			e, ok := enums[f.Type]
			if !ok {
				return fmt.Errorf("unknown property type %q", f.Type)
			}
			cls.EnumProperty(f.Key, f.Name, e)
		}
	case meta.KindContainment:
		cls.Containment(f.Key, f.Name, f.Multiple)
	case meta.KindReference:
		cls.Reference(f.Key, f.Name, f.Multiple)
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}
	return nil
}
