package events

const (
	// KindResponseIDCaptured identifies a continuation id found on any frame.
	KindResponseIDCaptured Kind = "response.id"
	// KindChatEnded identifies the terminal event of a stateful chat.
	KindChatEnded Kind = "chat.end"
)

// ResponseIDCaptured carries a continuation id for stateful backends.
type ResponseIDCaptured struct {
	Base
	ResponseID string
}

// NewResponseIDCaptured creates a response id captured event.
func NewResponseIDCaptured(responseID string) ResponseIDCaptured {
	return ResponseIDCaptured{Base: NewBase(KindResponseIDCaptured), ResponseID: responseID}
}

// ChatEnded marks the end of a chat and carries its continuation id, if any.
type ChatEnded struct {
	Base
	ResponseID string
}

// NewChatEnded creates a chat ended event.
func NewChatEnded(responseID string) ChatEnded {
	return ChatEnded{Base: NewBase(KindChatEnded), ResponseID: responseID}
}
