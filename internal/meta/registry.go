package meta

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownPointer   = errors.New("meta: unknown pointer")
	ErrDuplicatePointer = errors.New("meta: duplicate pointer")
	ErrNotAFeature      = errors.New("meta: pointer is not a feature of classifier")
)

// Registry resolves MetaPointers to canonical metamodel instances.
type Registry struct {
	mu           sync.RWMutex
	languages    map[string]*Language
	classifiers  map[Pointer]*Classifier
	features     map[featureKey]*Feature
	enumerations map[Pointer]*Enumeration
}

// Feature keys are only unique within their classifier.
type featureKey struct {
	classifier Pointer
	feature    Pointer
}

// NewRegistry indexes langs. Duplicate pointers are rejected.
func NewRegistry(langs ...*Language) (*Registry, error) {
	r := &Registry{
		languages:    make(map[string]*Language),
		classifiers:  make(map[Pointer]*Classifier),
		features:     make(map[featureKey]*Feature),
		enumerations: make(map[Pointer]*Enumeration),
	}
	for _, lang := range langs {
		if err := r.Add(lang); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add indexes one language.
func (r *Registry) Add(lang *Language) error {
	if lang == nil {
		return fmt.Errorf("%w: nil language", ErrUnknownPointer)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := lang.Key + "@" + lang.Version
	if _, ok := r.languages[id]; ok {
		return fmt.Errorf("%w: language %s", ErrDuplicatePointer, id)
	}
	for _, c := range lang.Classifiers {
		if _, ok := r.classifiers[c.Pointer()]; ok {
			return fmt.Errorf("%w: classifier %s", ErrDuplicatePointer, c.Pointer())
		}
		for _, f := range c.Features {
			k := featureKey{classifier: c.Pointer(), feature: f.Pointer()}
			if _, ok := r.features[k]; ok {
				return fmt.Errorf("%w: feature %s", ErrDuplicatePointer, f.Pointer())
			}
		}
	}
	r.languages[id] = lang
	for _, c := range lang.Classifiers {
		r.classifiers[c.Pointer()] = c
		for _, f := range c.Features {
			r.features[featureKey{classifier: c.Pointer(), feature: f.Pointer()}] = f
		}
	}
	for _, e := range lang.Enumerations {
		r.enumerations[e.Pointer()] = e
	}
	return nil
}

// Classifier resolves a classifier pointer.
func (r *Registry) Classifier(p Pointer) (*Classifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classifiers[p]
	if !ok {
		return nil, fmt.Errorf("%w: classifier %s", ErrUnknownPointer, p)
	}
	return c, nil
}

// Feature resolves a feature pointer in the context of classifier c.
func (r *Registry) Feature(c *Classifier, p Pointer) (*Feature, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: feature %s without classifier", ErrUnknownPointer, p)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[featureKey{classifier: c.Pointer(), feature: p}]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotAFeature, p, c.Pointer())
	}
	return f, nil
}

// Enumeration resolves an enumeration pointer.
func (r *Registry) Enumeration(p Pointer) (*Enumeration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enumerations[p]
	if !ok {
		return nil, fmt.Errorf("%w: enumeration %s", ErrUnknownPointer, p)
	}
	return e, nil
}

// Languages returns registered languages ordered by key then version.
func (r *Registry) Languages() []*Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Language, 0, len(r.languages))
	for _, lang := range r.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key == out[j].Key {
			return out[i].Version < out[j].Version
		}
		return out[i].Key < out[j].Key
	})
	return out
}
