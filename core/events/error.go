package events

const (
	// KindStreamError identifies an explicit error event sent inside the stream.
	KindStreamError Kind = "error"
	// KindUnrecognized identifies a well-formed frame of an unknown shape.
	KindUnrecognized Kind = "unrecognized"
)

// StreamError is an error reported by the chat endpoint as part of the
// stream. It does not terminate the stream by itself.
type StreamError struct {
	Base
	Message string
}

// NewStreamError creates a stream error event.
func NewStreamError(message string) StreamError {
	return StreamError{Base: NewBase(KindStreamError), Message: message}
}

// Unrecognized keeps forward compatibility with event shapes this package
// does not know about yet. Consumers log and ignore it.
type Unrecognized struct {
	Base
	Type string
	Raw  string
}

// NewUnrecognized creates an unrecognized event.
func NewUnrecognized(eventType, raw string) Unrecognized {
	return Unrecognized{Base: NewBase(KindUnrecognized), Type: eventType, Raw: raw}
}
