package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/schema"
	"github.com/danmuck/treesync/internal/protocol/tlv"
	"github.com/danmuck/treesync/internal/protocol/wire"
)

// Ack codes carried on rejected acks and hello acks.
const (
	CodeVersionMismatch  = "version_mismatch"
	CodeStreamMismatch   = "stream_mismatch"
	CodeUnauthorized     = "unauthorized"
	CodeIdentityMismatch = "identity_mismatch"
	CodeUnresolvable     = "unresolvable"
	CodeInvalid          = "invalid"
	CodeOutOfOrder       = "out_of_order"
	CodeInternal         = "internal"
)

var ErrDeltaHeaderMismatch = errors.New("session: delta header disagrees with body")

// Ack reports what the receiving peer did with one delta.
type Ack struct {
	Sequence  int64
	Status    string
	Code      string
	Message   string
	AckedAtMS uint64
}

// EncodeDeltaFrame wraps one validated wire event. Sequence and kind are mirrored
// into TLV fields so a peer can ack or log without decoding the body.
func EncodeDeltaFrame(messageID uint64, ev wire.Event) (frame.Frame, error) {
	body, err := wire.Marshal(ev)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(schema.MsgDelta, messageID, tlv.EncodeFields([]tlv.Field{
		tlv.NewUint64(schema.FieldSequenceNumber, uint64(ev.SequenceNumber)),
		tlv.NewString(schema.FieldMessageKind, ev.MessageKind),
		tlv.NewBytes(schema.FieldBody, body),
	})), nil
}

// DecodeDeltaFrame unwraps and validates one wire event.
func DecodeDeltaFrame(f frame.Frame) (wire.Event, error) {
	fields, err := decode(f, schema.MsgDelta)
	if err != nil {
		return wire.Event{}, err
	}
	seq, err := sequenceField(fields, schema.FieldSequenceNumber)
	if err != nil {
		return wire.Event{}, err
	}
	bodyField, _ := tlv.GetField(fields, schema.FieldBody)
	ev, err := wire.Unmarshal(bodyField.Value)
	if err != nil {
		return wire.Event{}, err
	}
	kind := text(fields, schema.FieldMessageKind)
	if ev.SequenceNumber != seq || ev.MessageKind != kind {
		return wire.Event{}, fmt.Errorf(
			"%w: header seq=%d kind=%s body seq=%d kind=%s",
			ErrDeltaHeaderMismatch,
			seq,
			kind,
			ev.SequenceNumber,
			ev.MessageKind,
		)
	}
	return ev, nil
}

// DeltaSequence reads the sequence number of a delta frame without decoding its body.
func DeltaSequence(f frame.Frame) (int64, error) {
	fields, err := decode(f, schema.MsgDelta)
	if err != nil {
		return 0, err
	}
	return sequenceField(fields, schema.FieldSequenceNumber)
}

func EncodeAckFrame(messageID uint64, a Ack) frame.Frame {
	if a.AckedAtMS == 0 {
		a.AckedAtMS = uint64(time.Now().UnixMilli())
	}
	fields := []tlv.Field{
		tlv.NewUint64(schema.FieldSequenceNumber, uint64(a.Sequence)),
		tlv.NewString(schema.FieldAckStatus, a.Status),
		tlv.NewUint64(schema.FieldAckedAtMS, a.AckedAtMS),
	}
	fields = appendOptional(fields, a.Code, a.Message)
	f := frame.New(schema.MsgAck, messageID, tlv.EncodeFields(fields))
	f.Header.Flags |= frame.FlagIsResponse
	if a.Status == schema.StatusRejected {
		f.Header.Flags |= frame.FlagIsError
	}
	return f
}

func DecodeAckFrame(f frame.Frame) (Ack, error) {
	fields, err := decode(f, schema.MsgAck)
	if err != nil {
		return Ack{}, err
	}
	seq, err := sequenceField(fields, schema.FieldSequenceNumber)
	if err != nil {
		return Ack{}, err
	}
	a := Ack{
		Sequence: seq,
		Status:   text(fields, schema.FieldAckStatus),
		Code:     text(fields, schema.FieldAckCode),
		Message:  text(fields, schema.FieldMessage),
	}
	if at, ok := tlv.GetField(fields, schema.FieldAckedAtMS); ok {
		a.AckedAtMS, _ = at.Uint64()
	}
	return a, nil
}
