// Package notification owns the closed taxonomy of in-process tree edits.
//
// Ownership boundary:
// - one flat struct per edit variant with its provenance header
// - exhaustive dispatch through Visitor
// - registry footprint of a notification
// - synchronous fan-out to handlers (Forwarder)
//
// Notifications reference live nodes. Conversion to and from the wire lives in
// the mapper package.
package notification

// ID identifies one notification within the emitting process.
type ID string

// CommandSource is the causal origin of a notification: who issued which command.
type CommandSource struct {
	ParticipationID string `json:"participation_id"`
	CommandID       string `json:"command_id"`
}

// Header carries the identity and provenance shared by every variant.
type Header struct {
	NotificationID ID
	Sources        []CommandSource
}

func (h Header) ID() ID { return h.NotificationID }

// Origin returns the command sources recorded for the notification, possibly none.
func (h Header) Origin() []CommandSource { return h.Sources }

func (h Header) header() Header { return h }

// Notification is implemented only by the variants declared in this package.
type Notification interface {
	ID() ID
	Origin() []CommandSource
	Kind() Kind
	Accept(v Visitor) error

	header() Header
	withHeader(h Header) Notification
}

// WithHeader returns a copy of n carrying h.
func WithHeader(n Notification, h Header) Notification {
	return n.withHeader(h)
}

// WithOrigin returns a copy of n whose sources are replaced by sources.
func WithOrigin(n Notification, sources []CommandSource) Notification {
	h := n.header()
	h.Sources = append([]CommandSource(nil), sources...)
	return n.withHeader(h)
}

// CompositeOrigin returns the union of sources across parts in first-seen order.
func CompositeOrigin(parts []Notification) []CommandSource {
	seen := make(map[CommandSource]bool)
	out := make([]CommandSource, 0)
	for _, p := range parts {
		var srcs []CommandSource
		if c, ok := p.(Composite); ok {
			srcs = CompositeOrigin(c.Parts)
			srcs = append(srcs, c.Sources...)
		} else {
			srcs = p.Origin()
		}
		for _, s := range srcs {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// NewComposite groups parts under id, taking the union of their origins.
func NewComposite(id ID, parts ...Notification) Composite {
	return Composite{
		Header: Header{NotificationID: id, Sources: CompositeOrigin(parts)},
		Parts:  parts,
	}
}
