// Package schema names the session message types and their required TLV fields.
package schema

import (
	"fmt"

	"github.com/danmuck/treesync/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs.
const (
	MsgHello    uint32 = 1
	MsgHelloAck uint32 = 2
	MsgDelta    uint32 = 3
	MsgAck      uint32 = 4
)

// Field IDs.
const (
	FieldParticipationID uint16 = 1
	FieldProtocolVersion uint16 = 2
	FieldStream          uint16 = 3
	FieldLastSequence    uint16 = 4

	FieldSequenceNumber uint16 = 100
	FieldMessageKind    uint16 = 101
	FieldBody           uint16 = 102

	FieldAckStatus uint16 = 200
	FieldAckCode   uint16 = 201
	FieldMessage   uint16 = 202
	FieldAckedAtMS uint16 = 203
)

// Ack statuses.
const (
	StatusAccepted = "accepted"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgHello: {
		{FieldParticipationID, tlv.TypeString},
		{FieldProtocolVersion, tlv.TypeString},
		{FieldStream, tlv.TypeString},
		{FieldLastSequence, tlv.TypeU64},
	},
	MsgHelloAck: {
		{FieldParticipationID, tlv.TypeString},
		{FieldProtocolVersion, tlv.TypeString},
		{FieldAckStatus, tlv.TypeString},
		{FieldLastSequence, tlv.TypeU64},
	},
	MsgDelta: {
		{FieldSequenceNumber, tlv.TypeU64},
		{FieldMessageKind, tlv.TypeString},
		{FieldBody, tlv.TypeBytes},
	},
	MsgAck: {
		{FieldSequenceNumber, tlv.TypeU64},
		{FieldAckStatus, tlv.TypeString},
	},
}

// Optional fields are type checked when present.
var optional = map[uint16]uint8{
	FieldAckCode:   tlv.TypeString,
	FieldMessage:   tlv.TypeString,
	FieldAckedAtMS: tlv.TypeU64,
}

// Validate enforces required fields and field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	log.Debug().Msgf("schema.Validate message_type=%d fields=%d", messageType, len(fields))
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Msgf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().Msgf("schema.Validate missing field message_type=%d field_id=%d", messageType, req.ID)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().Msgf(
				"schema.Validate type mismatch message_type=%d field_id=%d got=%d want=%d",
				messageType,
				req.ID,
				f.Type,
				req.Type,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	for _, f := range fields {
		if want, ok := optional[f.ID]; ok && f.Type != want {
			return ValidationError{MessageType: messageType, FieldID: f.ID, Reason: "type mismatch"}
		}
	}
	return nil
}

// Name returns a log label for a message type.
func Name(messageType uint32) string {
	switch messageType {
	case MsgHello:
		return "hello"
	case MsgHelloAck:
		return "hello_ack"
	case MsgDelta:
		return "delta"
	case MsgAck:
		return "ack"
	default:
		return fmt.Sprintf("unknown(%d)", messageType)
	}
}
