package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/treesync/internal/protocol/frame"
	"github.com/danmuck/treesync/internal/protocol/schema"
	"github.com/danmuck/treesync/internal/protocol/tlv"
)

var (
	ErrVersionMismatch   = errors.New("session: protocol version mismatch")
	ErrStreamMismatch    = errors.New("session: stream mismatch")
	ErrUnauthorized      = errors.New("session: unauthorized")
	ErrUnexpectedMessage = errors.New("session: unexpected message type")
	ErrHelloRejected     = errors.New("session: hello rejected")
	ErrInvalidHello      = errors.New("session: invalid hello")
)

// Hello opens a session: who is speaking, which protocol version and stream,
// and the last sequence number the sender has applied from its peer.
type Hello struct {
	ParticipationID string
	ProtocolVersion string
	Stream          string
	LastSequence    int64
}

func (h Hello) Validate() error {
	if strings.TrimSpace(h.ParticipationID) == "" {
		return fmt.Errorf("%w: participation id required", ErrInvalidHello)
	}
	if strings.TrimSpace(h.ProtocolVersion) == "" {
		return fmt.Errorf("%w: protocol version required", ErrInvalidHello)
	}
	if strings.TrimSpace(h.Stream) == "" {
		return fmt.Errorf("%w: stream required", ErrInvalidHello)
	}
	if h.LastSequence < 0 {
		return fmt.Errorf("%w: negative last sequence", ErrInvalidHello)
	}
	return nil
}

// HelloAck answers a Hello. LastSequence is the responder's applied position.
type HelloAck struct {
	ParticipationID string
	ProtocolVersion string
	Status          string
	Code            string
	Message         string
	LastSequence    int64
}

// Negotiate checks a remote hello against the local one.
func Negotiate(local, remote Hello) error {
	if err := remote.Validate(); err != nil {
		return err
	}
	if remote.ProtocolVersion != local.ProtocolVersion {
		return fmt.Errorf("%w: local=%q remote=%q", ErrVersionMismatch, local.ProtocolVersion, remote.ProtocolVersion)
	}
	if remote.Stream != local.Stream {
		return fmt.Errorf("%w: local=%q remote=%q", ErrStreamMismatch, local.Stream, remote.Stream)
	}
	return nil
}

// Authenticate compares the frame's auth block with token. An empty token disables the check.
func Authenticate(token string, f frame.Frame) error {
	if token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), f.Auth) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func EncodeHelloFrame(messageID uint64, h Hello, token string) frame.Frame {
	f := frame.New(schema.MsgHello, messageID, tlv.EncodeFields([]tlv.Field{
		tlv.NewString(schema.FieldParticipationID, h.ParticipationID),
		tlv.NewString(schema.FieldProtocolVersion, h.ProtocolVersion),
		tlv.NewString(schema.FieldStream, h.Stream),
		tlv.NewUint64(schema.FieldLastSequence, uint64(h.LastSequence)),
	}))
	if token != "" {
		f.Auth = []byte(token)
	}
	return f
}

func DecodeHelloFrame(f frame.Frame) (Hello, error) {
	fields, err := decode(f, schema.MsgHello)
	if err != nil {
		return Hello{}, err
	}
	last, err := sequenceField(fields, schema.FieldLastSequence)
	if err != nil {
		return Hello{}, err
	}
	return Hello{
		ParticipationID: text(fields, schema.FieldParticipationID),
		ProtocolVersion: text(fields, schema.FieldProtocolVersion),
		Stream:          text(fields, schema.FieldStream),
		LastSequence:    last,
	}, nil
}

func EncodeHelloAckFrame(messageID uint64, a HelloAck) frame.Frame {
	fields := []tlv.Field{
		tlv.NewString(schema.FieldParticipationID, a.ParticipationID),
		tlv.NewString(schema.FieldProtocolVersion, a.ProtocolVersion),
		tlv.NewString(schema.FieldAckStatus, a.Status),
		tlv.NewUint64(schema.FieldLastSequence, uint64(a.LastSequence)),
	}
	fields = appendOptional(fields, a.Code, a.Message)
	f := frame.New(schema.MsgHelloAck, messageID, tlv.EncodeFields(fields))
	f.Header.Flags |= frame.FlagIsResponse
	if a.Status == schema.StatusRejected {
		f.Header.Flags |= frame.FlagIsError
	}
	return f
}

func DecodeHelloAckFrame(f frame.Frame) (HelloAck, error) {
	fields, err := decode(f, schema.MsgHelloAck)
	if err != nil {
		return HelloAck{}, err
	}
	last, err := sequenceField(fields, schema.FieldLastSequence)
	if err != nil {
		return HelloAck{}, err
	}
	return HelloAck{
		ParticipationID: text(fields, schema.FieldParticipationID),
		ProtocolVersion: text(fields, schema.FieldProtocolVersion),
		Status:          text(fields, schema.FieldAckStatus),
		Code:            text(fields, schema.FieldAckCode),
		Message:         text(fields, schema.FieldMessage),
		LastSequence:    last,
	}, nil
}

// Err converts a rejected HelloAck into an error; version rejections keep ErrVersionMismatch.
func (a HelloAck) Err() error {
	if a.Status != schema.StatusRejected {
		return nil
	}
	switch a.Code {
	case CodeVersionMismatch:
		return fmt.Errorf("%w: %s", ErrVersionMismatch, a.Message)
	case CodeStreamMismatch:
		return fmt.Errorf("%w: %s", ErrStreamMismatch, a.Message)
	case CodeUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, a.Message)
	}
	return fmt.Errorf("%w: code=%s %s", ErrHelloRejected, a.Code, a.Message)
}

func decode(f frame.Frame, want uint32) ([]tlv.Field, error) {
	if f.Header.MessageType != want {
		return nil, fmt.Errorf(
			"%w: got=%s want=%s",
			ErrUnexpectedMessage,
			schema.Name(f.Header.MessageType),
			schema.Name(want),
		)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(want, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func text(fields []tlv.Field, id uint16) string {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return ""
	}
	v, _ := f.Text()
	return v
}

func sequenceField(fields []tlv.Field, id uint16) (int64, error) {
	f, _ := tlv.GetField(fields, id)
	v, err := f.Uint64()
	if err != nil {
		return 0, err
	}
	if v > 1<<62 {
		return 0, fmt.Errorf("session: sequence out of range: %d", v)
	}
	return int64(v), nil
}

func appendOptional(fields []tlv.Field, code, message string) []tlv.Field {
	if code != "" {
		fields = append(fields, tlv.NewString(schema.FieldAckCode, code))
	}
	if message != "" {
		fields = append(fields, tlv.NewString(schema.FieldMessage, message))
	}
	return fields
}
