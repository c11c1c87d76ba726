package meta

// NewLanguage starts an empty language.
func NewLanguage(key, version, name string) *Language {
	return &Language{Key: key, Version: version, Name: name}
}

// Concept adds a concept classifier.
func (l *Language) Concept(key, name string) *Classifier {
	c := &Classifier{Key: key, Name: name, Language: l}
	l.Classifiers = append(l.Classifiers, c)
	return c
}

// PartitionConcept adds a classifier whose instances may be partition roots.
func (l *Language) PartitionConcept(key, name string) *Classifier {
	c := l.Concept(key, name)
	c.Partition = true
	return c
}

// AnnotationType adds a classifier whose instances attach as annotations.
func (l *Language) AnnotationType(key, name string) *Classifier {
	c := l.Concept(key, name)
	c.Annotation = true
	return c
}

// Enumeration adds an enumeration with literals given as key/name pairs.
func (l *Language) Enumeration(key, name string, literals ...EnumLiteral) *Enumeration {
	e := &Enumeration{Key: key, Name: name, Language: l, Literals: literals}
	l.Enumerations = append(l.Enumerations, e)
	return e
}

// Property adds a property feature.
func (c *Classifier) Property(key, name string, prim Primitive) *Feature {
	return c.add(&Feature{Key: key, Name: name, Kind: KindProperty, Optional: true, Primitive: prim})
}

// EnumProperty adds a property typed by enumeration e.
func (c *Classifier) EnumProperty(key, name string, e *Enumeration) *Feature {
	return c.add(&Feature{Key: key, Name: name, Kind: KindProperty, Optional: true, Primitive: PrimitiveEnum, Enum: e})
}

// Containment adds a containment feature.
func (c *Classifier) Containment(key, name string, multiple bool) *Feature {
	return c.add(&Feature{Key: key, Name: name, Kind: KindContainment, Multiple: multiple, Optional: true})
}

// Reference adds a reference feature.
func (c *Classifier) Reference(key, name string, multiple bool) *Feature {
	return c.add(&Feature{Key: key, Name: name, Kind: KindReference, Multiple: multiple, Optional: true})
}

func (c *Classifier) add(f *Feature) *Feature {
	f.Classifier = c
	c.Features = append(c.Features, f)
	return f
}
