package events

const (
	// KindReasoningStarted identifies the start of a reasoning region.
	KindReasoningStarted Kind = "reasoning.start"
	// KindReasoningDelta identifies an append-only piece of reasoning text.
	KindReasoningDelta Kind = "reasoning.delta"
	// KindReasoningEnded identifies the explicit end of a reasoning region.
	KindReasoningEnded Kind = "reasoning.end"
)

// ReasoningStarted opens a reasoning region.
type ReasoningStarted struct{ Base }

// NewReasoningStarted creates a reasoning started event.
func NewReasoningStarted() ReasoningStarted {
	return ReasoningStarted{Base: NewBase(KindReasoningStarted)}
}

// ReasoningDelta carries hidden deliberation text. A delta received while no
// region is open implicitly opens one.
type ReasoningDelta struct {
	Base
	Content string
}

// NewReasoningDelta creates a reasoning delta event.
func NewReasoningDelta(content string) ReasoningDelta {
	return ReasoningDelta{Base: NewBase(KindReasoningDelta), Content: content}
}

// ReasoningEnded closes the currently open reasoning region.
type ReasoningEnded struct{ Base }

// NewReasoningEnded creates a reasoning ended event.
func NewReasoningEnded() ReasoningEnded {
	return ReasoningEnded{Base: NewBase(KindReasoningEnded)}
}
