package websocket

import "github.com/koscakluka/ema-voice/core/events"

type messageType string

const (
	messageTypeMessageUpdate  messageType = "message.update"
	messageTypePlaybackStatus messageType = "playback.status"
)

// outgoingMessage is broadcast to every connected client.
type outgoingMessage struct {
	Type   messageType                `json:"type"`
	ID     string                     `json:"id"`
	Text   string                     `json:"text,omitempty"`
	Status events.PlaybackStatusValue `json:"status,omitempty"`
}

type ControlType string

const (
	ControlCancel       ControlType = "cancel"
	ControlStopSpeaking ControlType = "stop_speaking"
	ControlPrompt       ControlType = "prompt"
)

// ControlMessage is sent by a client to steer the conversation.
type ControlMessage struct {
	Type ControlType `json:"type"`
	// Content is the prompt text of a ControlPrompt message
	Content string `json:"content,omitempty"`
}
