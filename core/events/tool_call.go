package events

const (
	// KindToolCallStarted identifies tool call execution start.
	KindToolCallStarted Kind = "tool_call.start"
	// KindToolCallArguments identifies the resolved arguments of a started call.
	KindToolCallArguments Kind = "tool_call.arguments"
	// KindToolCallSucceeded identifies successful tool call completion.
	KindToolCallSucceeded Kind = "tool_call.success"
	// KindToolCallFailed identifies tool call failure.
	KindToolCallFailed Kind = "tool_call.failure"
)

// ToolCallStarted marks start of tool execution.
type ToolCallStarted struct {
	Base
	Tool string
}

// NewToolCallStarted creates a tool call started event.
func NewToolCallStarted(tool string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), Tool: tool}
}

// ToolCallArguments carries the arguments of the most recently started call.
type ToolCallArguments struct {
	Base
	Tool      string
	Arguments string
}

// NewToolCallArguments creates a tool call arguments event.
func NewToolCallArguments(tool, arguments string) ToolCallArguments {
	return ToolCallArguments{Base: NewBase(KindToolCallArguments), Tool: tool, Arguments: arguments}
}

// ToolCallSucceeded marks successful tool execution.
type ToolCallSucceeded struct {
	Base
	Tool string
}

// NewToolCallSucceeded creates a tool call succeeded event.
func NewToolCallSucceeded(tool string) ToolCallSucceeded {
	return ToolCallSucceeded{Base: NewBase(KindToolCallSucceeded), Tool: tool}
}

// ToolCallFailed marks failed tool execution.
type ToolCallFailed struct {
	Base
	Tool   string
	Reason string
}

// NewToolCallFailed creates a tool call failed event.
func NewToolCallFailed(tool, reason string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), Tool: tool, Reason: reason}
}
