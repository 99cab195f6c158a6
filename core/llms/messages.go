package llms

import (
	"regexp"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message sent to a stateless chat endpoint.
type Message struct {
	Role    Role
	Content string
	// Images holds image URLs (or data URLs) attached to a user message. Only
	// stateless requests carry them.
	Images []string
}

// AssistantResponse is everything the assistant produced for a single turn.
type AssistantResponse struct {
	// ID identifies the response message on the display surface
	ID string
	// Content is the spoken/visible answer without reasoning or tool status
	Content string
	// Reasoning holds every reasoning region wrapped in think tags
	Reasoning string
	// DisplayText is the final text that was shown to the user
	DisplayText string
	// ResponseID is the continuation id reported by a stateful endpoint
	ResponseID string
	ToolCalls  []ToolCall

	IsCompleted    bool
	IsCancelled    bool
	IsLoopDetected bool
	Error          string
}

type ToolCall struct {
	Name      string
	Arguments string
	Succeeded bool
	Failed    bool
	Reason    string
}

// Turn is a single user prompt together with the assistant's response.
type Turn struct {
	ID       string
	Prompt   string
	Images   []string
	Response AssistantResponse

	// IsFinalised is true once the response has been folded, regardless of
	// whether it was completed, cancelled or failed.
	IsFinalised bool
}

func (t *Turn) IsCancelled() bool {
	return t.IsFinalised && t.Response.IsCancelled
}

var thinkBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>\s*`)

// StripReasoning removes think blocks from assistant content before it is
// sent back to the model as history.
func StripReasoning(content string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(content, ""))
}

// ToMessages converts the most recent historyLimit turns into alternating
// user/assistant messages. A non-positive historyLimit keeps every turn.
// Turns without a response keep only the user message.
func ToMessages(turns []Turn, historyLimit int) []Message {
	if historyLimit > 0 && len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}

	messages := make([]Message, 0, len(turns)*2)
	for _, turn := range turns {
		messages = append(messages, Message{
			Role:    RoleUser,
			Content: turn.Prompt,
			Images:  turn.Images,
		})
		if content := StripReasoning(turn.Response.Content); content != "" {
			messages = append(messages, Message{
				Role:    RoleAssistant,
				Content: content,
			})
		}
	}
	return messages
}
