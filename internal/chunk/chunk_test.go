package chunk

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/testutil/shapes"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/tree"
)

func sampleTree(t *testing.T, s *shapes.Language) *tree.Node {
	t.Helper()
	root := tree.New("geo", s.Geometry)
	circle := tree.New("circle", s.Circle)
	center := tree.New("center", s.Coord)
	bom := tree.New("bom", s.BillOfMaterials)
	steps := []error{
		circle.SetPropertyRaw(s.CircleName, "c1"),
		circle.SetPropertyRaw(s.CircleRadius, int64(7)),
		circle.SetPropertyRaw(s.CircleState, meta.EnumLiteral{Key: "MatterState-gas", Name: "gas"}),
		center.SetPropertyRaw(s.CoordX, int64(-3)),
		circle.InsertChildRaw(s.CircleCenter, 0, center),
		root.InsertChildRaw(s.GeometryShapes, 0, circle),
		bom.InsertReferenceRaw(s.BoMMaterials, 0, tree.Target{ID: "center", ResolveInfo: "ctr"}),
		bom.InsertReferenceRaw(s.BoMMaterials, 1, tree.Target{ResolveInfo: "unresolved"}),
		circle.InsertAnnotationRaw(0, bom),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("build step %d: %v", i, err)
		}
	}
	return root
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	for _, version := range SupportedVersions() {
		codec, err := CodecFor(version)
		if err != nil {
			t.Fatalf("codec %s: %v", version, err)
		}
		root := sampleTree(t, s)
		circle, _ := root.ChildAt(s.GeometryShapes, 0)

		ch, err := Serialize(circle, codec)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		raw, err := json.Marshal(ch)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded Chunk
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got, err := Deserialize(decoded, s.Registry, codec)
		if err != nil {
			t.Fatalf("deserialize %s: %v", version, err)
		}
		if got.Parent() != nil {
			t.Fatalf("deserialized root must be detached")
		}
		if diff := tree.Diff(circle, got); len(diff) != 0 {
			t.Fatalf("version %s diff: %v", version, diff)
		}
	}
}

func TestSerializeOrderAndParent(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	codec, _ := CodecFor(Version2024)
	root := sampleTree(t, s)
	circle, _ := root.ChildAt(s.GeometryShapes, 0)

	ch, err := Serialize(circle, codec)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	ids := ch.IDs()
	want := []tree.NodeID{"circle", "center", "bom"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids=%v want %v", ids, want)
		}
	}
	if ch.Nodes[0].Parent == nil || *ch.Nodes[0].Parent != "geo" {
		t.Fatalf("root parent not recorded")
	}
	if len(ch.Languages) != 1 || ch.Languages[0].Key != "shapes" {
		t.Fatalf("languages=%v", ch.Languages)
	}
}

func TestEnumEncodingDependsOnVersion(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	gas := meta.EnumLiteral{Key: "MatterState-gas", Name: "gas"}

	old, _ := CodecFor(Version2023)
	cur, _ := CodecFor(Version2024)
	if v, _ := old.Encode(s.CircleState, gas); v != "gas" {
		t.Fatalf("2023.1 enum=%q", v)
	}
	if v, _ := cur.Encode(s.CircleState, gas); v != "MatterState-gas" {
		t.Fatalf("2024.1 enum=%q", v)
	}
	if _, err := cur.Decode(s.CircleState, "gas"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("2024.1 must reject literal names, got %v", err)
	}
}

func TestCodecPrimitives(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	codec, _ := CodecFor(Version2024)

	if v, _ := codec.Encode(s.DocTechnical, true); v != "true" {
		t.Fatalf("bool=%q", v)
	}
	if v, err := codec.Decode(s.CoordX, "-12"); err != nil || v != int64(-12) {
		t.Fatalf("int decode=%v err=%v", v, err)
	}
	if _, err := codec.Decode(s.CoordX, "1.5"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := codec.Decode(s.DocTechnical, "yes"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := codec.Encode(s.LineName, 42); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := CodecFor("2022.9"); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDeserializeRejectsBadChunks(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	codec, _ := CodecFor(Version2024)
	circle := s.Circle.Pointer()

	cases := map[string]struct {
		chunk Chunk
		want  error
	}{
		"unknown classifier": {
			chunk: Chunk{SerializationFormatVersion: Version2024, Nodes: []Node{
				{ID: "x", Classifier: meta.Pointer{Language: "shapes", Version: "1", Key: "Hexagon"}},
			}},
			want: meta.ErrUnknownPointer,
		},
		"dangling child": {
			chunk: Chunk{SerializationFormatVersion: Version2024, Nodes: []Node{
				{ID: "c", Classifier: circle, Containments: []Containment{
					{Containment: s.CircleCenter.Pointer(), Children: []string{"missing"}},
				}},
			}},
			want: ErrDanglingChild,
		},
		"two roots": {
			chunk: Chunk{SerializationFormatVersion: Version2024, Nodes: []Node{
				{ID: "a", Classifier: circle},
				{ID: "b", Classifier: circle},
			}},
			want: ErrRoot,
		},
		"duplicate id": {
			chunk: Chunk{SerializationFormatVersion: Version2024, Nodes: []Node{
				{ID: "a", Classifier: circle},
				{ID: "a", Classifier: circle},
			}},
			want: ErrDuplicateNode,
		},
		"version skew": {
			chunk: Chunk{SerializationFormatVersion: Version2023, Nodes: []Node{{ID: "a", Classifier: circle}}},
			want:  ErrUnsupportedVersion,
		},
	}
	for name, tc := range cases {
		if _, err := Deserialize(tc.chunk, s.Registry, codec); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}
}
