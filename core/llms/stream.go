package llms

import (
	"context"

	"github.com/koscakluka/ema-voice/core/events"
)

// EventStream is a streaming chat response decoded into protocol events.
type EventStream interface {
	// Events yields decoded events in arrival order. Iteration stops at the
	// end sentinel, the end of the body or the first transport error.
	Events(context.Context) func(func(events.Event, error) bool)
	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// ChatClient opens streaming chat responses.
type ChatClient interface {
	StreamChat(context.Context, ChatRequest) (EventStream, error)
}
