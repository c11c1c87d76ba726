// Package wire owns the canonical JSON shape of a replicated event.
//
// Ownership boundary:
// - the flat Event envelope shared by every message kind
// - per-kind required field table and validation
//
// Ids and pointers stay unresolved here; the mapper package resolves them.
package wire

import (
	"encoding/json"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
)

// Event is one wire message. Which optional fields are set depends on MessageKind.
//
// Subject conventions: Node names the deleted, moved or edited node; Replaced
// names the evicted occupant. DeletedDescendants and ReplacedDescendants list
// the ids below those nodes, excluding the nodes themselves.
type Event struct {
	MessageKind      string                       `json:"message_kind"`
	SequenceNumber   int64                        `json:"sequence_number,omitempty"`
	OriginCommands   []notification.CommandSource `json:"origin_commands,omitempty"`
	ProtocolMessages []ProtocolMessage            `json:"protocol_messages,omitempty"`

	Node      string `json:"node,omitempty"`
	Parent    string `json:"parent,omitempty"`
	NewParent string `json:"new_parent,omitempty"`
	OldParent string `json:"old_parent,omitempty"`

	Feature       *meta.Pointer `json:"feature,omitempty"`
	NewFeature    *meta.Pointer `json:"new_feature,omitempty"`
	OldFeature    *meta.Pointer `json:"old_feature,omitempty"`
	NewClassifier *meta.Pointer `json:"new_classifier,omitempty"`
	OldClassifier *meta.Pointer `json:"old_classifier,omitempty"`

	Index    *int `json:"index,omitempty"`
	NewIndex *int `json:"new_index,omitempty"`
	OldIndex *int `json:"old_index,omitempty"`

	NewValue *string `json:"new_value,omitempty"`
	OldValue *string `json:"old_value,omitempty"`

	NewChunk            *chunk.Chunk `json:"new_chunk,omitempty"`
	Replaced            string       `json:"replaced,omitempty"`
	DeletedDescendants  []string     `json:"deleted_descendants,omitempty"`
	ReplacedDescendants []string     `json:"replaced_descendants,omitempty"`

	NewTarget *chunk.Target `json:"new_target,omitempty"`
	OldTarget *chunk.Target `json:"old_target,omitempty"`

	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
	Parts   []Event `json:"parts,omitempty"`
}

// ProtocolMessage is an optional diagnostic attached to an event.
type ProtocolMessage struct {
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
	Data    []KeyValue `json:"data,omitempty"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Kind returns MessageKind as a notification kind.
func (e Event) Kind() notification.Kind {
	return notification.Kind(e.MessageKind)
}

// Marshal encodes e as JSON after validating it.
func Marshal(e Event) ([]byte, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Unmarshal decodes and validates one event.
func Unmarshal(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, err
	}
	if err := Validate(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Int returns a pointer to v for the optional index fields.
func Int(v int) *int { return &v }

// String returns a pointer to v for the optional value fields.
func String(v string) *string { return &v }

// Pointer returns a pointer to a copy of p.
func Pointer(p meta.Pointer) *meta.Pointer { return &p }
