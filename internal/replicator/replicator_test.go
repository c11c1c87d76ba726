package replicator

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/testutil/shapes"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/tree"
	"github.com/go-playground/assert/v2"
)

type peer struct {
	forest *partition.Forest
	reg    *identity.Registry
	root   *tree.Node
}

func (p peer) node(t *testing.T, id tree.NodeID) *tree.Node {
	t.Helper()
	n, ok := p.reg.Lookup(id)
	if !ok {
		t.Fatalf("node %s not registered", id)
	}
	return n
}

// tracked builds a forest around root whose registry follows local edits.
func tracked(t *testing.T, root *tree.Node) peer {
	t.Helper()
	p := peer{forest: partition.NewForest(), reg: identity.New(), root: root}
	if err := p.forest.Mutate(func(tx *partition.Tx) error { return tx.AddPartition(root) }); err != nil {
		t.Fatalf("add partition: %v", err)
	}
	if err := p.reg.Seed(root); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p.forest.Subscribe(identity.NewTracker(p.reg))
	return p
}

func geometry(s *shapes.Language) *tree.Node {
	root := tree.New("geo", s.Geometry)
	line := tree.New("line", s.Line)
	_ = line.InsertChildRaw(s.LineStart, 0, tree.New("start", s.Coord))
	_ = root.InsertChildRaw(s.GeometryShapes, 0, line)
	_ = root.InsertChildRaw(s.GeometryShapes, 1, tree.New("circle", s.Circle))
	return root
}

// pair returns a source and a replica of it with a replicator subscribed to the source.
func pair(t *testing.T, s *shapes.Language) (peer, peer, *Replicator) {
	t.Helper()
	src := tracked(t, geometry(s))
	dst := tracked(t, src.root.Clone())
	r := New("replica", dst.forest, dst.reg)
	src.forest.Subscribe(r)
	return src, dst, r
}

func assertConverged(t *testing.T, a, b peer) {
	t.Helper()
	if diff := tree.Diff(a.root, b.root); len(diff) != 0 {
		t.Fatalf("trees diverged: %v", diff)
	}
	if !reflect.DeepEqual(a.reg.Snapshot(), b.reg.Snapshot()) {
		t.Fatalf("registries diverged:\n%v\n%v", a.reg.Snapshot(), b.reg.Snapshot())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
}

func TestReplicaFollowsEdits(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	f := src.forest
	root, line, circle := src.root, src.node(t, "line"), src.node(t, "circle")

	must(t, f.SetProperty(line, s.LineName, "l1"))
	must(t, f.SetProperty(line, s.LineName, "l2"))
	must(t, f.SetProperty(circle, s.CircleRadius, 3))
	center := tree.New("center", s.Coord)
	must(t, f.AddChild(circle, s.CircleCenter, center))
	bom := tree.New("bom", s.BillOfMaterials)
	must(t, f.AddAnnotation(line, bom))
	must(t, f.AddReference(root, s.GeometryFavs, tree.To(circle, "circle")))
	must(t, f.SetResolveInfo(root, s.GeometryFavs, 0, "c"))
	must(t, f.InsertChild(root, s.GeometryShapes, 0, circle))
	group := tree.New("group", s.Group)
	must(t, f.AddChild(root, s.GeometryShapes, group))
	must(t, f.InsertChild(group, s.GroupParts, 0, line))
	must(t, f.DeleteProperty(line, s.LineName))
	must(t, f.RemoveAnnotation(bom))
	must(t, f.ChangeClassifier(center, s.Documentation))
	must(t, f.RemoveChild(center))
	assertConverged(t, src, dst)

	replicaLine := dst.node(t, "line")
	if replicaLine == line {
		t.Fatalf("replica shares node instances with the source")
	}
	assert.Equal(t, replicaLine.ID(), line.ID())
	assert.Equal(t, replicaLine.Parent().ID(), tree.NodeID("group"))
}

func TestReferenceEditsReplicate(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	f := src.forest
	root, line := src.root, src.node(t, "line")
	group := tree.New("group", s.Group)
	must(t, f.AddChild(root, s.GeometryShapes, group))

	must(t, f.AddReference(root, s.GeometryFavs, tree.To(line, "line")))
	must(t, f.AddReference(root, s.GeometryFavs, tree.Target{ResolveInfo: "circle"}))
	must(t, f.SetTargetID(root, s.GeometryFavs, 1, "circle"))
	must(t, f.SetResolveInfo(root, s.GeometryFavs, 0, ""))
	must(t, f.SetResolveInfo(root, s.GeometryFavs, 0, "again"))
	must(t, f.SetTargetID(root, s.GeometryFavs, 0, "group"))
	must(t, f.SetReference(root, s.GeometryFavs, 0, tree.Target{ID: "line", ResolveInfo: "l"}))
	must(t, f.MoveReference(root, s.GeometryFavs, 0, root, s.GeometryFavs, 1))
	must(t, f.MoveReference(root, s.GeometryFavs, 0, root, s.GeometryPinned, 0))
	must(t, f.MoveReference(root, s.GeometryPinned, 0, group, s.GroupSource, 0))
	must(t, f.MoveReference(root, s.GeometryFavs, 0, group, s.GroupSource, 0))
	must(t, f.RemoveReference(group, s.GroupSource, 0))
	assertConverged(t, src, dst)
}

func TestMoveAndReplaceInSameContainment(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	var got []notification.Notification
	src.forest.Subscribe(notification.HandlerFunc(func(n notification.Notification) error {
		got = append(got, n)
		return nil
	}))

	// [line, circle]: circle evicts line.
	must(t, src.forest.ReplaceChild(src.node(t, "line"), src.node(t, "circle")))
	ev, ok := got[0].(notification.ChildMovedAndReplacedInSameContainment)
	if !ok {
		t.Fatalf("kind=%s", got[0].Kind())
	}
	assert.Equal(t, ev.NewIndex, 1)
	assert.Equal(t, ev.OldIndex, 0)
	assertConverged(t, src, dst)
	if dst.reg.Contains("line") || dst.reg.Contains("start") {
		t.Fatalf("replaced subtree still registered")
	}

	// [circle, group, other]: circle evicts other from the left.
	must(t, src.forest.AddChild(src.root, s.GeometryShapes, tree.New("group", s.Group)))
	must(t, src.forest.AddChild(src.root, s.GeometryShapes, tree.New("other", s.Circle)))
	must(t, src.forest.ReplaceChild(src.node(t, "other"), src.node(t, "circle")))
	assertConverged(t, src, dst)
	shapesList := dst.root.Children(s.GeometryShapes)
	assert.Equal(t, len(shapesList), 2)
	assert.Equal(t, shapesList[0].ID(), tree.NodeID("group"))
	assert.Equal(t, shapesList[1].ID(), tree.NodeID("circle"))
}

func TestMoveKeepsReplicaNodeIdentity(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	before := dst.node(t, "circle")

	must(t, src.forest.AddChild(src.root, s.GeometryShapes, tree.New("group", s.Group)))
	must(t, src.forest.InsertChild(src.node(t, "group"), s.GroupParts, 0, src.node(t, "circle")))
	must(t, src.forest.InsertChild(src.node(t, "group"), s.GroupDisabled, 0, src.node(t, "circle")))

	after := dst.node(t, "circle")
	if after != before {
		t.Fatalf("move materialized a new node")
	}
	assert.Equal(t, dst.reg.Snapshot()["circle"], tree.NodeID("group"))
	assert.Equal(t, after.Containment(), s.GroupDisabled)
	assertConverged(t, src, dst)
}

func TestPartitionsReplicate(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)

	geo2 := tree.New("geo2", s.Geometry)
	_ = geo2.InsertChildRaw(s.GeometryShapes, 0, tree.New("l2", s.Line))
	must(t, src.forest.AddPartition(geo2))
	if _, ok := dst.forest.Partition("geo2"); !ok || !dst.reg.Contains("l2") {
		t.Fatalf("partition not replicated")
	}
	must(t, src.forest.RemovePartition("geo2"))
	if _, ok := dst.forest.Partition("geo2"); ok || dst.reg.Contains("l2") {
		t.Fatalf("partition not removed")
	}
	assert.Equal(t, len(dst.forest.Partitions()), 1)
}

func TestMismatchLeavesReplicaUntouched(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, r := pair(t, s)
	root, line, circle := src.root, src.node(t, "line"), src.node(t, "circle")
	start := src.node(t, "start")
	bom := tree.New("bom", s.BillOfMaterials)
	bom2 := tree.New("bom2", s.BillOfMaterials)
	must(t, src.forest.AddAnnotation(line, bom))
	must(t, src.forest.AddAnnotation(line, bom2))
	must(t, src.forest.AddReference(root, s.GeometryFavs, tree.To(line, "line")))
	must(t, src.forest.AddReference(root, s.GeometryFavs, tree.To(circle, "circle")))
	must(t, src.forest.SetProperty(line, s.LineName, "l1"))

	badDelete := notification.ChildDeleted{Parent: root, Containment: s.GeometryShapes, Index: 0, DeletedChild: circle}
	cases := []struct {
		name string
		n    notification.Notification
	}{
		{"child at wrong index", badDelete},
		{"annotation on wrong parent", notification.AnnotationDeleted{Parent: circle, Index: 0, DeletedAnnotation: bom}},
		{"reference target differs", notification.ReferenceDeleted{Parent: root, Reference: s.GeometryFavs, Index: 0, DeletedTarget: tree.Target{ID: "circle"}}},
		{"property old value differs", notification.PropertyChanged{Node: line, Property: s.LineName, NewValue: "x", OldValue: "other"}},
		{"property already set", notification.PropertyAdded{Node: line, Property: s.LineName, NewValue: "x"}},
		{"classifier differs", notification.ClassifierChanged{Node: line, NewClassifier: s.Group, OldClassifier: s.Circle}},
		{"nested node is not a partition", notification.PartitionDeleted{DeletedPartition: line}},
		{"unknown parent", notification.ChildAdded{Parent: tree.New("missing", s.Group), Containment: s.GroupParts, NewChild: tree.New("x", s.Line)}},
		{"move from wrong slot", notification.ChildMovedInSameContainment{Parent: root, Containment: s.GeometryShapes, NewIndex: 1, MovedChild: line, OldIndex: 1}},
		{"replace names wrong occupant", notification.ChildReplaced{Parent: root, Containment: s.GeometryShapes, Index: 0, NewChild: tree.New("x", s.Line), ReplacedChild: circle}},
		{"move from other containment, empty old slot", notification.ChildMovedFromOtherContainment{
			NewParent: root, NewContainment: s.GeometryShapes, NewIndex: 0, MovedChild: start,
			OldParent: circle, OldContainment: s.CircleCenter, OldIndex: 0,
		}},
		{"move from other containment in same parent, wrong index", notification.ChildMovedFromOtherContainmentInSameParent{
			Parent: line, NewContainment: s.LineEnd, NewIndex: 0, MovedChild: start, OldContainment: s.LineStart, OldIndex: 1,
		}},
		{"move and replace from other containment, wrong occupant", notification.ChildMovedAndReplacedFromOtherContainment{
			NewParent: root, NewContainment: s.GeometryShapes, NewIndex: 1, MovedChild: start,
			OldParent: line, OldContainment: s.LineStart, OldIndex: 0, ReplacedChild: line,
		}},
		{"move and replace in same containment, indices swapped", notification.ChildMovedAndReplacedInSameContainment{
			Parent: root, Containment: s.GeometryShapes, NewIndex: 0, MovedChild: circle, OldIndex: 1, ReplacedChild: line,
		}},
		{"annotation moved from other parent, wrong index", notification.AnnotationMovedFromOtherParent{
			NewParent: circle, NewIndex: 0, MovedAnnotation: bom, OldParent: line, OldIndex: 1,
		}},
		{"annotation moved in same parent, wrong index", notification.AnnotationMovedInSameParent{Parent: line, NewIndex: 1, MovedAnnotation: bom, OldIndex: 1}},
		{"annotation move and replace, indices swapped", notification.AnnotationMovedAndReplacedInSameParent{
			Parent: line, NewIndex: 0, MovedAnnotation: bom2, OldIndex: 1, ReplacedAnnotation: bom,
		}},
		{"annotation move and replace from other parent, wrong occupant", notification.AnnotationMovedAndReplacedFromOtherParent{
			NewParent: line, NewIndex: 0, MovedAnnotation: bom2, OldParent: line, OldIndex: 1, ReplacedAnnotation: bom2,
		}},
		{"entry moved in same reference, wrong target", notification.EntryMovedInSameReference{
			Parent: root, Reference: s.GeometryFavs, NewIndex: 0, OldIndex: 1, Target: tree.To(line, "line"),
		}},
		{"entry moved to other reference, wrong target", notification.EntryMovedFromOtherReferenceInSameParent{
			Parent: root, NewReference: s.GeometryPinned, NewIndex: 0, OldReference: s.GeometryFavs, OldIndex: 0, Target: tree.Target{ID: "circle"},
		}},
		{"entry move and replace, wrong replaced target", notification.EntryMovedAndReplacedInSameReference{
			Parent: root, Reference: s.GeometryFavs, NewIndex: 1, MovedTarget: tree.To(circle, "circle"), OldIndex: 0, ReplacedTarget: tree.Target{ID: "group"},
		}},
		{"entry move and replace from other reference, empty slot", notification.EntryMovedAndReplacedFromOtherReferenceInSameParent{
			Parent: root, NewReference: s.GeometryFavs, NewIndex: 0, MovedTarget: tree.Target{ID: "line"},
			OldReference: s.GeometryPinned, OldIndex: 0, ReplacedTarget: tree.To(line, "line"),
		}},
		{"composite rolls back earlier parts", notification.NewComposite("c1",
			notification.PropertyChanged{Node: line, Property: s.LineName, NewValue: "l9", OldValue: "l1"},
			notification.ChildAdded{Parent: circle, Containment: s.CircleCenter, NewChild: tree.New("center", s.Coord)},
			badDelete,
		)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := dst.root.Clone()
			snap := dst.reg.Snapshot()
			err := r.Apply(tc.n)
			if !errors.Is(err, ErrIdentityMismatch) {
				t.Fatalf("expected ErrIdentityMismatch, got %v", err)
			}
			if diff := tree.Diff(before, dst.root); len(diff) != 0 {
				t.Fatalf("replica changed: %v", diff)
			}
			if !reflect.DeepEqual(snap, dst.reg.Snapshot()) {
				t.Fatalf("registry changed")
			}
		})
	}

	var mm *MismatchError
	if !errors.As(r.Apply(badDelete), &mm) {
		t.Fatalf("expected *MismatchError")
	}
	assert.Equal(t, mm.Node, tree.NodeID("circle"))
	assert.Equal(t, mm.Kind, notification.KindChildDeleted)

	if err := r.Apply(notification.ChildAdded{Parent: tree.New("missing", s.Group), Containment: s.GroupParts}); !errors.Is(err, identity.ErrNotRegistered) {
		t.Fatalf("expected wrapped ErrNotRegistered, got %v", err)
	}
	assertConverged(t, src, dst)
}

func TestApplyIsOrderSensitive(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src := tracked(t, geometry(s))
	dst := tracked(t, src.root.Clone())
	r := New("replica", dst.forest, dst.reg)
	var got []notification.Notification
	src.forest.Subscribe(notification.HandlerFunc(func(n notification.Notification) error {
		got = append(got, n)
		return nil
	}))

	line := src.node(t, "line")
	must(t, src.forest.SetProperty(line, s.LineName, "a"))
	must(t, src.forest.SetProperty(line, s.LineName, "b"))
	if len(got) != 2 {
		t.Fatalf("got %d notifications", len(got))
	}
	if err := r.Apply(got[1]); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("out-of-order apply: %v", err)
	}
	for _, n := range got {
		must(t, r.Apply(n))
	}
	v, _ := dst.node(t, "line").Property(s.LineName)
	assert.Equal(t, v, "b")
}

func TestCompositeAppliesAsOneUnit(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	f := src.forest
	err := f.Compose(func() error {
		group := tree.New("group", s.Group)
		if err := f.AddChild(src.root, s.GeometryShapes, group); err != nil {
			return err
		}
		if err := f.SetProperty(src.node(t, "circle"), s.CircleName, "c"); err != nil {
			return err
		}
		return f.InsertChild(src.root, s.GeometryShapes, 0, src.node(t, "circle"))
	})
	must(t, err)
	assertConverged(t, src, dst)
}

func TestReentrantApplyIsRejected(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	_, _, r := pair(t, s)
	r.mu.Lock()
	err := r.Apply(notification.NoOp{})
	r.mu.Unlock()
	if !errors.Is(err, ErrReentrantApply) {
		t.Fatalf("expected ErrReentrantApply, got %v", err)
	}
	must(t, r.Apply(notification.NoOp{}))
	must(t, r.Apply(notification.Error{Code: "remote", Message: "boom"}))
}

func TestBidirectionalReplication(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	a := tracked(t, geometry(s))
	b := tracked(t, a.root.Clone())
	a.forest.Subscribe(New("b-from-a", b.forest, b.reg))
	b.forest.Subscribe(New("a-from-b", a.forest, a.reg))

	must(t, a.forest.SetProperty(a.node(t, "line"), s.LineName, "from-a"))
	must(t, b.forest.AddChild(b.node(t, "circle"), s.CircleCenter, tree.New("center", s.Coord)))
	must(t, a.forest.SetProperty(a.node(t, "center"), s.CoordX, 4))
	must(t, b.forest.InsertChild(b.root, s.GeometryShapes, 0, b.node(t, "circle")))
	must(t, a.forest.AddAnnotation(a.node(t, "circle"), tree.New("bom", s.BillOfMaterials)))
	assertConverged(t, a, b)

	if a.node(t, "center") == b.node(t, "center") {
		t.Fatalf("peers share node instances")
	}
}

func TestAnnotationInsertKeepsIdentityByID(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	line := src.node(t, "line")
	must(t, src.forest.AddAnnotation(line, tree.New("bof", s.BillOfMaterials)))

	added := tree.New("added", s.BillOfMaterials)
	must(t, src.forest.InsertAnnotation(line, 1, added))

	got := dst.node(t, "line").Annotations()
	if len(got) != 2 || got[0].ID() != "bof" || got[1].ID() != "added" {
		t.Fatalf("annotations=%v", got)
	}
	if got[1] == added {
		t.Fatalf("replica holds the source instance")
	}
	assertConverged(t, src, dst)
}

func TestAnnotationMovedAndReplacedInSameParentScenario(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src := tracked(t, geometry(s))
	line := src.node(t, "line")
	replaced := tree.New("replaced", s.BillOfMaterials)
	moved := tree.New("moved", s.BillOfMaterials)
	must(t, src.forest.AddAnnotation(line, replaced))
	must(t, src.forest.AddAnnotation(line, moved))
	dst := tracked(t, src.root.Clone())
	r := New("replica", dst.forest, dst.reg)
	rmoved := dst.node(t, "moved")

	err := r.Apply(notification.AnnotationMovedAndReplacedInSameParent{
		NewIndex: 1, MovedAnnotation: moved, Parent: line, OldIndex: 0, ReplacedAnnotation: replaced,
	})
	must(t, err)
	got := dst.node(t, "line").Annotations()
	if len(got) != 1 || got[0] != rmoved || got[0].Index() != 0 {
		t.Fatalf("annotations=%v", got)
	}
	if dst.reg.Contains("replaced") {
		t.Fatalf("replaced annotation still registered")
	}
}

func TestAnnotationMoveAndReplaceEmitsSingleListIndices(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	var got []notification.Notification
	src.forest.Subscribe(notification.HandlerFunc(func(n notification.Notification) error {
		got = append(got, n)
		return nil
	}))
	line := src.node(t, "line")
	replaced := tree.New("replaced", s.BillOfMaterials)
	moved := tree.New("moved", s.BillOfMaterials)
	must(t, src.forest.AddAnnotation(line, replaced))
	must(t, src.forest.AddAnnotation(line, moved))

	got = nil
	must(t, src.forest.ReplaceAnnotation(replaced, moved))
	ev, ok := got[0].(notification.AnnotationMovedAndReplacedInSameParent)
	if !ok {
		t.Fatalf("kind=%s", got[0].Kind())
	}
	assert.Equal(t, ev.NewIndex, 1)
	assert.Equal(t, ev.OldIndex, 0)
	assertConverged(t, src, dst)
	assert.Equal(t, len(dst.node(t, "line").Annotations()), 1)
}

func TestMoveFromOtherContainmentWithWrongOrigin(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, r := pair(t, s)
	must(t, src.forest.AddChild(src.root, s.GeometryShapes, tree.New("group", s.Group)))
	group, circle := src.node(t, "group"), src.node(t, "circle")

	before := dst.root.Clone()
	snap := dst.reg.Snapshot()
	err := r.Apply(notification.ChildMovedFromOtherContainment{
		NewParent: group, NewContainment: s.GroupParts, NewIndex: 0, MovedChild: circle,
		OldParent: group, OldContainment: s.GroupDisabled, OldIndex: 0,
	})
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
	if diff := tree.Diff(before, dst.root); len(diff) != 0 {
		t.Fatalf("replica changed: %v", diff)
	}
	if !reflect.DeepEqual(snap, dst.reg.Snapshot()) {
		t.Fatalf("registry changed")
	}
}

// population counts children, annotations and reference entries held directly by n.
func population(n *tree.Node) int {
	total := len(n.Annotations())
	for _, f := range n.ContainmentFeatures() {
		total += len(n.Children(f))
	}
	for _, f := range n.ReferenceFeatures() {
		total += len(n.References(f))
	}
	return total
}

func TestMovesConserveElementCount(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src, dst, _ := pair(t, s)
	f := src.forest
	root, line, circle := src.root, src.node(t, "line"), src.node(t, "circle")
	must(t, f.AddChild(root, s.GeometryShapes, tree.New("group", s.Group)))
	group := src.node(t, "group")
	must(t, f.AddChild(group, s.GroupParts, tree.New("g1", s.Circle)))
	must(t, f.AddChild(group, s.GroupParts, tree.New("g2", s.Circle)))
	must(t, f.AddAnnotation(line, tree.New("a1", s.BillOfMaterials)))
	must(t, f.AddAnnotation(line, tree.New("a2", s.BillOfMaterials)))
	must(t, f.AddReference(root, s.GeometryFavs, tree.To(line, "line")))
	must(t, f.AddReference(root, s.GeometryFavs, tree.To(circle, "circle")))

	count := func(ids ...tree.NodeID) int {
		total := 0
		for _, id := range ids {
			total += population(dst.node(t, id))
		}
		return total
	}
	moves := []struct {
		name    string
		parents []tree.NodeID
		edit    func() error
	}{
		{"child in same containment", []tree.NodeID{"geo"}, func() error { return f.InsertChild(root, s.GeometryShapes, 0, group) }},
		{"child to other containment in same parent", []tree.NodeID{"group"}, func() error {
			return f.InsertChild(group, s.GroupDisabled, 0, src.node(t, "g1"))
		}},
		{"child from other parent", []tree.NodeID{"geo", "group"}, func() error { return f.InsertChild(group, s.GroupParts, 0, circle) }},
		{"annotation in same parent", []tree.NodeID{"line"}, func() error { return f.InsertAnnotation(line, 0, src.node(t, "a2")) }},
		{"annotation from other parent", []tree.NodeID{"line", "group"}, func() error { return f.InsertAnnotation(group, 0, src.node(t, "a1")) }},
		{"entry in same reference", []tree.NodeID{"geo"}, func() error { return f.MoveReference(root, s.GeometryFavs, 0, root, s.GeometryFavs, 1) }},
		{"entry to other reference", []tree.NodeID{"geo"}, func() error { return f.MoveReference(root, s.GeometryFavs, 0, root, s.GeometryPinned, 0) }},
		{"entry to other parent", []tree.NodeID{"geo", "group"}, func() error { return f.MoveReference(root, s.GeometryPinned, 0, group, s.GroupSource, 0) }},
	}
	for _, mv := range moves {
		before := count(mv.parents...)
		must(t, mv.edit())
		if after := count(mv.parents...); after != before {
			t.Fatalf("%s: element count %d -> %d", mv.name, before, after)
		}
	}
	assertConverged(t, src, dst)
}

