package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/testutil/testlog"
)

var shapesPtr = meta.Pointer{Language: "shapes", Version: "1", Key: "Geometry-shapes"}

func TestEveryKindHasRequirements(t *testing.T) {
	testlog.Start(t)
	if got, want := len(Kinds()), len(notification.Kinds); got != want {
		t.Fatalf("requirements cover %d kinds, taxonomy has %d", got, want)
	}
}

func TestValidateMissingField(t *testing.T) {
	testlog.Start(t)
	ev := Event{
		MessageKind:    string(notification.KindChildDeleted),
		SequenceNumber: 1,
		Parent:         "geo",
		Feature:        Pointer(shapesPtr),
		Index:          Int(0),
	}
	err := Validate(ev)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != FieldNode {
		t.Fatalf("expected missing node, got %+v", verr)
	}

	ev.Node = "line"
	if err := Validate(ev); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
}

func TestValidateRejectsUnknownKindAndBadSequence(t *testing.T) {
	testlog.Start(t)
	if err := Validate(Event{MessageKind: "ChildTeleported", SequenceNumber: 1}); err == nil {
		t.Fatalf("unknown kind accepted")
	}
	if err := Validate(Event{MessageKind: string(notification.KindNoOp)}); err == nil {
		t.Fatalf("zero sequence number accepted")
	}
	neg := Event{
		MessageKind:    string(notification.KindChildDeleted),
		SequenceNumber: 1,
		Parent:         "geo",
		Node:           "line",
		Feature:        Pointer(shapesPtr),
		Index:          Int(-1),
	}
	if err := Validate(neg); err == nil {
		t.Fatalf("negative index accepted")
	}
}

func TestValidateHalfTargets(t *testing.T) {
	testlog.Start(t)
	ev := Event{
		MessageKind:    string(notification.KindReferenceTargetAdded),
		SequenceNumber: 3,
		Parent:         "geo",
		Feature:        Pointer(shapesPtr),
		Index:          Int(0),
		NewTarget:      &chunk.Target{ResolveInfo: String("only info")},
	}
	if err := Validate(ev); err == nil {
		t.Fatalf("target-added without reference accepted")
	}
	ev.NewTarget.Reference = String("line")
	if err := Validate(ev); err != nil {
		t.Fatalf("valid target-added rejected: %v", err)
	}
}

func TestCompositePartsCarryNoSequence(t *testing.T) {
	testlog.Start(t)
	comp := Event{
		MessageKind:    string(notification.KindComposite),
		SequenceNumber: 9,
		Parts: []Event{
			{MessageKind: string(notification.KindNoOp)},
			{MessageKind: string(notification.KindError), Code: "x", SequenceNumber: 4},
		},
	}
	if err := Validate(comp); err == nil {
		t.Fatalf("part with sequence number accepted")
	}
	comp.Parts[1].SequenceNumber = 0
	raw, err := Marshal(comp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SequenceNumber != 9 || len(got.Parts) != 2 || got.Parts[1].Code != "x" {
		t.Fatalf("unexpected composite: %+v", got)
	}
}

func TestEnvelopeUsesSnakeCaseNames(t *testing.T) {
	testlog.Start(t)
	ev := Event{
		MessageKind:      string(notification.KindChildMovedInSameContainment),
		SequenceNumber:   7,
		OriginCommands:   []notification.CommandSource{{ParticipationID: "peer-a", CommandID: "c1"}},
		ProtocolMessages: []ProtocolMessage{{Kind: "trace", Message: "hi"}},
		Parent:           "geo",
		Feature:          Pointer(shapesPtr),
		Node:             "line",
		NewIndex:         Int(1),
		OldIndex:         Int(0),
	}
	raw, err := Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"message_kind", "sequence_number", "origin_commands", "protocol_messages", "new_index", "old_index"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing %q in %s", key, raw)
		}
	}
	var origins []map[string]string
	if err := json.Unmarshal(fields["origin_commands"], &origins); err != nil {
		t.Fatalf("decode origins: %v", err)
	}
	if origins[0]["participation_id"] != "peer-a" || origins[0]["command_id"] != "c1" {
		t.Fatalf("origin_commands=%s", fields["origin_commands"])
	}
	back, err := Unmarshal(raw)
	if err != nil || back.SequenceNumber != 7 || *back.NewIndex != 1 {
		t.Fatalf("unmarshal: %+v err=%v", back, err)
	}
}

