package meta

import (
	"errors"
	"testing"
)

func testLanguage() (*Language, *Classifier, *Feature) {
	lang := NewLanguage("lang", "1", "Lang")
	c := lang.PartitionConcept("Root", "Root")
	f := c.Containment("Root-items", "items", true)
	c.Property("Root-name", "name", PrimitiveString)
	return lang, c, f
}

func TestRegistryResolvesPointers(t *testing.T) {
	lang, c, f := testLanguage()
	reg, err := NewRegistry(lang)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	gotC, err := reg.Classifier(Pointer{Language: "lang", Version: "1", Key: "Root"})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	if gotC != c {
		t.Fatalf("classifier instance mismatch")
	}
	gotF, err := reg.Feature(c, f.Pointer())
	if err != nil {
		t.Fatalf("feature: %v", err)
	}
	if gotF != f {
		t.Fatalf("feature instance mismatch")
	}
}

func TestRegistryUnknownPointers(t *testing.T) {
	lang, c, _ := testLanguage()
	reg, err := NewRegistry(lang)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if _, err := reg.Classifier(Pointer{Language: "lang", Version: "2", Key: "Root"}); !errors.Is(err, ErrUnknownPointer) {
		t.Fatalf("expected ErrUnknownPointer for version skew, got %v", err)
	}
	if _, err := reg.Feature(c, Pointer{Language: "lang", Version: "1", Key: "Root-missing"}); !errors.Is(err, ErrNotAFeature) {
		t.Fatalf("expected ErrNotAFeature, got %v", err)
	}
	if _, err := reg.Feature(nil, Pointer{Key: "x"}); !errors.Is(err, ErrUnknownPointer) {
		t.Fatalf("expected ErrUnknownPointer without classifier, got %v", err)
	}
}

func TestRegistryRejectsDuplicateLanguage(t *testing.T) {
	lang, _, _ := testLanguage()
	if _, err := NewRegistry(lang, lang); !errors.Is(err, ErrDuplicatePointer) {
		t.Fatalf("expected ErrDuplicatePointer, got %v", err)
	}
}

func TestEnumerationLookups(t *testing.T) {
	lang := NewLanguage("lang", "1", "Lang")
	e := lang.Enumeration("Color", "Color", EnumLiteral{Key: "Color-red", Name: "red"})
	if lit, ok := e.LiteralByKey("Color-red"); !ok || lit.Name != "red" {
		t.Fatalf("literal by key: %+v ok=%v", lit, ok)
	}
	if lit, ok := e.LiteralByName("red"); !ok || lit.Key != "Color-red" {
		t.Fatalf("literal by name: %+v ok=%v", lit, ok)
	}
	if _, ok := e.LiteralByName("blue"); ok {
		t.Fatalf("unexpected literal blue")
	}
}
