package events

const (
	// KindContentDelta identifies an append-only piece of visible response text.
	KindContentDelta Kind = "content.delta"
)

// ContentDelta carries ordinary response text in stream order.
type ContentDelta struct {
	Base
	Content string
}

// NewContentDelta creates a content delta event.
func NewContentDelta(content string) ContentDelta {
	return ContentDelta{Base: NewBase(KindContentDelta), Content: content}
}
