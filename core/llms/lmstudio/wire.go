package lmstudio

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
)

// Request bodies

type statefulRequestBody struct {
	Model              string   `json:"model"`
	Input              string   `json:"input"`
	SystemPrompt       string   `json:"system_prompt,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Stream             bool     `json:"stream"`
	Store              *bool    `json:"store,omitempty"`
	PreviousResponseID string   `json:"previous_response_id,omitempty"`
}

type statelessRequestBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is either a string or a list of contentPart when images are
	// attached.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func toRequestBody(request llms.ChatRequest) any {
	if request.Stateful {
		return statefulRequestBody{
			Model:              request.Model,
			Input:              request.Input,
			SystemPrompt:       request.SystemPrompt,
			Temperature:        request.Temperature,
			Stream:             true,
			Store:              request.Store,
			PreviousResponseID: request.PreviousResponseID,
		}
	}

	messages := make([]chatMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(llms.RoleSystem), Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, toChatMessage(message))
	}
	return statelessRequestBody{
		Model:       request.Model,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
		Stream:      true,
	}
}

func toChatMessage(message llms.Message) chatMessage {
	if len(message.Images) == 0 {
		return chatMessage{Role: string(message.Role), Content: message.Content}
	}

	parts := make([]contentPart, 0, len(message.Images)+1)
	if message.Content != "" {
		parts = append(parts, contentPart{Type: "text", Text: message.Content})
	}
	for _, image := range message.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: image}})
	}
	return chatMessage{Role: string(message.Role), Content: parts}
}

// Stream frames

// streamFrame is the union of every JSON shape the chat endpoint streams.
// Only the fields relevant to the frame's shape are populated.
type streamFrame struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`

	Choices []streamChoice     `json:"choices"`
	Output  []streamOutputItem `json:"output"`

	Content   string          `json:"content"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Reason    string          `json:"reason"`
	Progress  *float64        `json:"progress"`
	Result    *struct {
		ResponseID string `json:"response_id"`
	} `json:"result"`

	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

type streamChoice struct {
	Delta   *streamChoiceContent `json:"delta"`
	Message *streamChoiceContent `json:"message"`
}

type streamChoiceContent struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
	Reasoning        string `json:"reasoning"`
}

type streamOutputItem struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// textOf reads a field that is either a plain string, a list of text parts
// or an object with a message/text field.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var parts []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.Text)
			b.WriteString(part.Content)
		}
		return b.String()
	}

	var object struct {
		Message string `json:"message"`
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &object); err == nil {
		switch {
		case object.Message != "":
			return object.Message
		case object.Text != "":
			return object.Text
		default:
			return object.Content
		}
	}
	return ""
}

// argumentsOf returns tool arguments as compact JSON text, unquoting plain
// strings.
func argumentsOf(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return string(raw)
}
