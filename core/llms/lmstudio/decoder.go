package lmstudio

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/koscakluka/ema-voice/core/events"
)

const (
	endSentinel  = "[END]"
	doneSentinel = "[DONE]"

	eventPrefix = "event:"
	dataPrefix  = "data:"

	maxLoggedFrameLength = 200
)

var frameDelimiter = []byte("\n\n")

// Decoder splits the chat stream into frames and decodes every frame into
// protocol events. Incomplete frames are kept as bytes until the delimiter
// arrives, so multi-byte characters split across reads survive intact.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	pending []byte
	done    bool
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write consumes the next piece of the stream and returns the events of every
// frame it completed. Nothing is decoded after the end sentinel.
func (d *Decoder) Write(p []byte) []events.Event {
	if d.done {
		return nil
	}

	d.pending = append(d.pending, p...)
	if bytes.IndexByte(d.pending, '\r') >= 0 {
		d.pending = bytes.ReplaceAll(d.pending, []byte("\r\n"), []byte("\n"))
	}

	var decoded []events.Event
	for !d.done {
		i := bytes.Index(d.pending, frameDelimiter)
		if i < 0 {
			break
		}
		frame := d.pending[:i]
		d.pending = d.pending[i+len(frameDelimiter):]
		decoded = append(decoded, d.decodeFrame(frame)...)
	}

	if d.done {
		d.pending = nil
	}
	return decoded
}

// Flush decodes whatever is left once the stream has ended without a final
// delimiter. The decoder is done afterwards.
func (d *Decoder) Flush() []events.Event {
	if d.done {
		return nil
	}
	frame := d.pending
	d.pending = nil
	decoded := d.decodeFrame(frame)
	d.done = true
	return decoded
}

// Done reports whether the end sentinel has been seen or the decoder has been
// flushed.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) decodeFrame(frame []byte) []events.Event {
	payload, eventName := framePayload(frame)
	switch payload {
	case endSentinel, doneSentinel:
		d.done = true
		return nil
	case "":
		if eventName == "" {
			return nil
		}
		return streamFrame{Type: eventName}.events("")
	}

	var f streamFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		logger.Warn("skipping malformed stream frame",
			"error", err,
			"frame", truncate(payload, maxLoggedFrameLength))
		return nil
	}
	if f.Type == "" {
		f.Type = eventName
	}
	return f.events(payload)
}

// framePayload extracts the data of a server-sent event frame. Frames that do
// not use event/data fields are returned as they are.
func framePayload(frame []byte) (payload string, eventName string) {
	text := strings.TrimSpace(string(frame))
	if text == "" {
		return "", ""
	}
	if !strings.HasPrefix(text, eventPrefix) && !strings.HasPrefix(text, dataPrefix) && !strings.HasPrefix(text, ":") {
		return text, ""
	}

	var data []string
	for line := range strings.SplitSeq(text, "\n") {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			eventName = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			data = append(data, strings.TrimSpace(line[len(dataPrefix):]))
		}
	}
	return strings.TrimSpace(strings.Join(data, "\n")), eventName
}

// events maps the frame to its events. The first recognized shape wins, a
// top-level response id is always reported first.
func (f streamFrame) events(raw string) []events.Event {
	var decoded []events.Event
	if f.ResponseID != "" {
		decoded = append(decoded, events.NewResponseIDCaptured(f.ResponseID))
	}

	switch {
	case len(f.Choices) > 0:
		content := f.Choices[0].Delta
		if content == nil {
			content = f.Choices[0].Message
		}
		if content == nil {
			break
		}
		if reasoning := firstNonEmpty(content.ReasoningContent, content.Reasoning); reasoning != "" {
			decoded = append(decoded, events.NewReasoningDelta(reasoning))
		}
		if content.Content != "" {
			decoded = append(decoded, events.NewContentDelta(content.Content))
		}

	case len(f.Output) > 0:
		for _, item := range f.Output {
			text := textOf(item.Content)
			if text == "" {
				continue
			}
			if item.Type == "reasoning" {
				decoded = append(decoded, events.NewReasoningDelta(text))
			} else {
				decoded = append(decoded, events.NewContentDelta(text))
			}
		}

	case f.Type == "message.delta":
		if f.Content != "" {
			decoded = append(decoded, events.NewContentDelta(f.Content))
		}

	case f.Type == "reasoning.start":
		decoded = append(decoded, events.NewReasoningStarted())
	case f.Type == "reasoning.delta":
		if f.Content != "" {
			decoded = append(decoded, events.NewReasoningDelta(f.Content))
		}
	case f.Type == "reasoning.end":
		decoded = append(decoded, events.NewReasoningEnded())

	case f.Type == "tool_call.start":
		decoded = append(decoded, events.NewToolCallStarted(f.Tool))
	case f.Type == "tool_call.arguments":
		decoded = append(decoded, events.NewToolCallArguments(f.Tool, argumentsOf(f.Arguments)))
	case f.Type == "tool_call.success":
		decoded = append(decoded, events.NewToolCallSucceeded(f.Tool))
	case f.Type == "tool_call.failure":
		decoded = append(decoded, events.NewToolCallFailed(f.Tool, f.Reason))

	case f.Type == "prompt_processing.start":
		decoded = append(decoded, events.NewPromptProcessingProgress(0))
	case f.Type == "prompt_processing.progress":
		decoded = append(decoded, events.NewPromptProcessingProgress(f.progress()))
	case f.Type == "prompt_processing.end":
		decoded = append(decoded, events.NewPromptProcessingProgress(1))
	case f.Type == "model_load.start":
		decoded = append(decoded, events.NewModelLoadProgress(0))
	case f.Type == "model_load.progress":
		decoded = append(decoded, events.NewModelLoadProgress(f.progress()))
	case f.Type == "model_load.end":
		decoded = append(decoded, events.NewModelLoadProgress(1))

	case f.Type == "chat.end":
		var responseID string
		if f.Result != nil {
			responseID = f.Result.ResponseID
		}
		decoded = append(decoded, events.NewChatEnded(responseID))

	case f.Type == "error" || hasValue(f.Error):
		message := firstNonEmpty(textOf(f.Error), textOf(f.Message), "unknown error")
		decoded = append(decoded, events.NewStreamError(message))

	default:
		if f.Type == "" && len(decoded) > 0 {
			break
		}
		logger.Debug("unrecognized stream frame", "type", f.Type)
		decoded = append(decoded, events.NewUnrecognized(f.Type, raw))
	}
	return decoded
}

func (f streamFrame) progress() float64 {
	if f.Progress == nil {
		return 0
	}
	return *f.Progress
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return strings.ToValidUTF8(text[:limit], "") + "..."
}
