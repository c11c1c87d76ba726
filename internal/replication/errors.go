package replication

import (
	"errors"

	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/mapper"
	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/protocol/schema"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/protocol/wire"
	"github.com/danmuck/treesync/internal/receiver"
	"github.com/danmuck/treesync/internal/replicator"
	"github.com/danmuck/treesync/internal/tree"
)

var (
	ErrBusy         = errors.New("replication: peer already has a running session")
	ErrPeerRejected = errors.New("replication: peer rejected a delta")
	ErrAckTimeout   = errors.New("replication: delta not acknowledged in time")
	ErrProtocol     = errors.New("replication: protocol violation")
	ErrJournal      = errors.New("replication: journal append failed")
)

// ErrorCode maps an error to the code carried on rejected acks.
func ErrorCode(err error) string {
	var verr wire.ValidationError
	var serr schema.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrVersionMismatch), errors.Is(err, chunk.ErrUnsupportedVersion):
		return session.CodeVersionMismatch
	case errors.Is(err, session.ErrStreamMismatch):
		return session.CodeStreamMismatch
	case errors.Is(err, session.ErrUnauthorized):
		return session.CodeUnauthorized
	case errors.Is(err, replicator.ErrIdentityMismatch):
		return session.CodeIdentityMismatch
	case errors.Is(err, mapper.ErrUnresolvable),
		errors.Is(err, mapper.ErrDescendantsMismatch),
		errors.Is(err, meta.ErrUnknownPointer):
		return session.CodeUnresolvable
	case errors.Is(err, receiver.ErrOutOfOrder):
		return session.CodeOutOfOrder
	case errors.As(err, &verr),
		errors.As(err, &serr),
		errors.Is(err, session.ErrDeltaHeaderMismatch),
		errors.Is(err, session.ErrInvalidHello),
		errors.Is(err, chunk.ErrInvalidValue),
		errors.Is(err, tree.ErrIndexOutOfRange),
		errors.Is(err, tree.ErrFeatureKind):
		return session.CodeInvalid
	default:
		return session.CodeInternal
	}
}
