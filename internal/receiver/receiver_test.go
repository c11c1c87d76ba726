package receiver_test

import (
	"errors"
	"testing"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/identity"
	"github.com/danmuck/treesync/internal/mapper"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/partition"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/receiver"
	"github.com/danmuck/treesync/internal/replicator"
	"github.com/danmuck/treesync/internal/testutil/shapes"
	"github.com/danmuck/treesync/internal/testutil/testlog"
	"github.com/danmuck/treesync/internal/tree"
)

type side struct {
	forest *partition.Forest
	reg    *identity.Registry
	root   *tree.Node
	m      *mapper.Mapper
}

func newSide(t *testing.T, s *shapes.Language, root *tree.Node, participation string) side {
	t.Helper()
	x := side{forest: partition.NewForest(), reg: identity.New(), root: root}
	if err := x.forest.Mutate(func(tx *partition.Tx) error { return tx.AddPartition(root) }); err != nil {
		t.Fatalf("partition: %v", err)
	}
	if err := x.reg.Seed(root); err != nil {
		t.Fatalf("seed: %v", err)
	}
	codec, err := chunk.CodecFor(chunk.Version2024)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	x.m, err = mapper.New(mapper.Options{Languages: s.Registry, Registry: x.reg, Codec: codec, ParticipationID: participation})
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	return x
}

// outbound records source notifications as JSON-decoded wire events.
func outbound(t *testing.T, x side) *[]wire.Event {
	t.Helper()
	x.forest.Subscribe(identity.NewTracker(x.reg))
	var evs []wire.Event
	x.forest.Subscribe(notification.HandlerFunc(func(n notification.Notification) error {
		ev, err := x.m.ToWire(n)
		if err != nil {
			return err
		}
		raw, err := wire.Marshal(ev)
		if err != nil {
			return err
		}
		back, err := wire.Unmarshal(raw)
		if err != nil {
			return err
		}
		evs = append(evs, back)
		return nil
	}))
	return &evs
}

func geometry(s *shapes.Language) *tree.Node {
	root := tree.New("geo", s.Geometry)
	line := tree.New("line", s.Line)
	_ = line.InsertChildRaw(s.LineStart, 0, tree.New("start", s.Coord))
	_ = root.InsertChildRaw(s.GeometryShapes, 0, line)
	_ = root.InsertChildRaw(s.GeometryShapes, 1, tree.New("circle", s.Circle))
	return root
}

func TestReceiveReplicatesOverWire(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src := newSide(t, s, geometry(s), "peer-a")
	dst := newSide(t, s, src.root.Clone(), "peer-b")
	evs := outbound(t, src)

	rcv := receiver.New("a->b", dst.m)
	rcv.Subscribe(replicator.New("b", dst.forest, dst.reg))

	line, _ := src.reg.Lookup("line")
	circle, _ := src.reg.Lookup("circle")
	f := src.forest
	steps := []func() error{
		func() error { return f.SetProperty(line, s.LineName, "l") },
		func() error { return f.SetProperty(circle, s.CircleRadius, 5) },
		func() error { return f.SetProperty(circle, s.CircleState, s.MatterState.Literals[1]) },
		func() error { return f.AddChild(circle, s.CircleCenter, tree.New("center", s.Coord)) },
		func() error { return f.AddReference(src.root, s.GeometryFavs, tree.To(circle, "circle")) },
		func() error {
			return f.Compose(func() error {
				group := tree.New("group", s.Group)
				_ = group.InsertChildRaw(s.GroupParts, 0, tree.New("inner", s.Line))
				if err := f.AddChild(src.root, s.GeometryShapes, group); err != nil {
					return err
				}
				return f.InsertChild(circle, s.CircleCenter, 0, group)
			})
		},
		func() error { return f.RemoveChild(line) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	for _, ev := range *evs {
		if err := rcv.Receive(ev); err != nil {
			t.Fatalf("receive %s seq=%d: %v", ev.MessageKind, ev.SequenceNumber, err)
		}
	}
	if diff := tree.Diff(src.root, dst.root); len(diff) != 0 {
		t.Fatalf("replica diverged: %v", diff)
	}
	if rcv.LastSequence() != (*evs)[len(*evs)-1].SequenceNumber {
		t.Fatalf("last sequence=%d", rcv.LastSequence())
	}
	if dst.reg.Contains("line") || dst.reg.Contains("start") || !dst.reg.Contains("inner") {
		t.Fatalf("replica registry out of step: %v", dst.reg.IDs())
	}
}

func TestReceiveRejectsOutOfOrder(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src := newSide(t, s, geometry(s), "peer-a")
	dst := newSide(t, s, src.root.Clone(), "peer-b")
	evs := outbound(t, src)
	rcv := receiver.New("a->b", dst.m)
	var seen []notification.Notification
	rcv.Subscribe(notification.HandlerFunc(func(n notification.Notification) error {
		seen = append(seen, n)
		return nil
	}))

	line, _ := src.reg.Lookup("line")
	_ = src.forest.SetProperty(line, s.LineName, "a")
	_ = src.forest.SetProperty(line, s.LineName, "b")

	if err := rcv.Receive((*evs)[1]); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := rcv.Receive((*evs)[0]); !errors.Is(err, receiver.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if err := rcv.Receive((*evs)[1]); !errors.Is(err, receiver.ErrOutOfOrder) {
		t.Fatalf("duplicate: expected ErrOutOfOrder, got %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("dispatched %d notifications", len(seen))
	}
	got := seen[0].Origin()
	if len(got) != 1 || got[0].ParticipationID != "peer-a" {
		t.Fatalf("origin=%v", got)
	}
}

func TestReceiveReturnsResolutionAndHandlerFailures(t *testing.T) {
	testlog.Start(t)
	s := shapes.New()
	src := newSide(t, s, geometry(s), "peer-a")
	dst := newSide(t, s, tree.New("geo", s.Geometry), "peer-b")
	evs := outbound(t, src)
	rcv := receiver.New("a->b", dst.m)

	line, _ := src.reg.Lookup("line")
	_ = src.forest.SetProperty(line, s.LineName, "a")
	if err := rcv.Receive((*evs)[0]); !errors.Is(err, mapper.ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
	if rcv.LastSequence() != 0 {
		t.Fatalf("failed event advanced the stream")
	}

	boom := errors.New("boom")
	rcv.Subscribe(notification.HandlerFunc(func(notification.Notification) error { return boom }))
	if err := rcv.Receive(wire.Event{MessageKind: string(notification.KindNoOp), SequenceNumber: 7}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	rcv.Resume(7)
	if err := rcv.Receive(wire.Event{MessageKind: string(notification.KindNoOp), SequenceNumber: 7}); !errors.Is(err, receiver.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder after resume, got %v", err)
	}
}
