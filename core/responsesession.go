package orchestration

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"

	maxToolArgumentsLength = 120

	stoppedAnnotation = "\n\n*[Stopped by user]*"
)

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentReasoning
	segmentToolStatus
	segmentAnnotation
)

type displaySegment struct {
	kind   segmentKind
	text   string
	closed bool
}

// sessionUpdate tells the caller which views of the session changed after an
// event was applied.
type sessionUpdate struct {
	display bool
	speech  bool
	loop    bool
}

// ResponseSession folds the decoded events of one assistant response into the
// text shown on the display and the text handed to speech.
type ResponseSession struct {
	ID    string
	Epoch uint64

	showReasoning bool

	mu          sync.Mutex
	segments    []displaySegment
	speechText  strings.Builder
	contentText strings.Builder
	loopText    strings.Builder
	responseID  string
	placeholder string
	toolCalls   []llms.ToolCall

	openReasoning int
	openTools     map[string]int
	heldBack      string
	inlineThink   bool

	loop *loopDetector

	completed    bool
	cancelled    bool
	loopDetected bool
	errMessage   string
}

func newResponseSession(epoch uint64, showReasoning bool, loopConfig LoopDetectorConfig) *ResponseSession {
	return &ResponseSession{
		ID:            uuid.NewString(),
		Epoch:         epoch,
		showReasoning: showReasoning,
		openReasoning: -1,
		openTools:     map[string]int{},
		loop:          newLoopDetector(loopConfig),
	}
}

// Apply folds one event into the session.
func (s *ResponseSession) Apply(event events.Event) sessionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var update sessionUpdate
	if s.loopDetected {
		return update
	}

	loopTextLength := s.loopText.Len()
	switch event := event.(type) {
	case events.ContentDelta:
		update.speech = s.appendContentLocked(event.Content)
		update.display = true
	case events.ReasoningStarted:
		s.openReasoningLocked()
		update.display = s.showReasoning
	case events.ReasoningDelta:
		s.appendReasoningLocked(event.Content)
		update.display = s.showReasoning
	case events.ReasoningEnded:
		s.closeReasoningLocked()
		update.display = s.showReasoning
	case events.ToolCallStarted:
		s.closeReasoningLocked()
		s.segments = append(s.segments, displaySegment{kind: segmentToolStatus, text: toolCallLine(event.Tool, "")})
		s.openTools[event.Tool] = len(s.segments) - 1
		s.toolCalls = append(s.toolCalls, llms.ToolCall{Name: event.Tool})
		update.display = true
	case events.ToolCallArguments:
		line := toolCallLine(event.Tool, event.Arguments)
		if i, ok := s.openTools[event.Tool]; ok {
			s.segments[i].text = line
		} else {
			s.segments = append(s.segments, displaySegment{kind: segmentToolStatus, text: line})
			s.openTools[event.Tool] = len(s.segments) - 1
		}
		if call := s.lastToolCallLocked(event.Tool); call != nil {
			call.Arguments = event.Arguments
		}
		update.display = true
	case events.ToolCallSucceeded:
		delete(s.openTools, event.Tool)
		s.segments = append(s.segments, displaySegment{kind: segmentToolStatus, text: fmt.Sprintf("> ✅ **Tool Finished:** `%s`", event.Tool)})
		if call := s.lastToolCallLocked(event.Tool); call != nil {
			call.Succeeded = true
		}
		update.display = true
	case events.ToolCallFailed:
		delete(s.openTools, event.Tool)
		line := fmt.Sprintf("> ❌ **Tool Failed:** `%s`", event.Tool)
		if event.Reason != "" {
			line += " " + event.Reason
		}
		s.segments = append(s.segments, displaySegment{kind: segmentToolStatus, text: line})
		if call := s.lastToolCallLocked(event.Tool); call != nil {
			call.Failed = true
			call.Reason = event.Reason
		}
		update.display = true
	case events.PromptProcessingProgress:
		s.placeholder = fmt.Sprintf("*Processing prompt… %d%%*", event.Percent())
		update.display = true
	case events.ModelLoadProgress:
		s.placeholder = fmt.Sprintf("*Loading model… %d%%*", event.Percent())
		update.display = true
	case events.ResponseIDCaptured:
		s.captureResponseIDLocked(event.ResponseID)
	case events.ChatEnded:
		s.captureResponseIDLocked(event.ResponseID)
	case events.StreamError:
		s.annotateLocked("\n\n**Error:** " + event.Message)
		update.display = true
	case events.Unrecognized:
		logger.Debug("ignoring unrecognized stream event", "type", event.Type)
	}

	if s.loopText.Len() != loopTextLength {
		if s.loop.Check(s.loopText.String()) {
			s.loopDetected = true
			s.annotateLocked(loopWarning)
			update.display = true
			update.loop = true
		}
	}
	return update
}

// Close ends the response: held back partial tags are released and an open
// reasoning region is closed.
func (s *ResponseSession) Close() (speechChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held := s.heldBack; held != "" {
		s.heldBack = ""
		if s.inlineThink {
			s.appendReasoningLocked(held)
		} else {
			s.appendVisibleLocked(held)
			speechChanged = true
		}
	}
	s.inlineThink = false
	s.closeReasoningLocked()
	return speechChanged
}

func (s *ResponseSession) MarkCompleted() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
}

// MarkCancelled records a user abort and annotates the display once.
func (s *ResponseSession) MarkCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.loopDetected {
		return
	}
	s.cancelled = true
	s.annotateLocked(stoppedAnnotation)
}

// MarkFailed records a failed generation and annotates the display with
// explanation.
func (s *ResponseSession) MarkFailed(explanation string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMessage = explanation
	s.annotateLocked("\n\n**Error:** " + explanation)
}

func (s *ResponseSession) DisplayText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayTextLocked()
}

func (s *ResponseSession) SpeechText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speechText.String()
}

func (s *ResponseSession) ReasoningText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasoningTextLocked()
}

func (s *ResponseSession) ResponseID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseID
}

func (s *ResponseSession) IsLoopDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDetected
}

type sessionSnapshot struct {
	ID             string
	Content        string
	Reasoning      string
	DisplayText    string
	ResponseID     string
	ToolCalls      []llms.ToolCall
	IsCompleted    bool
	IsCancelled    bool
	IsLoopDetected bool
	Error          string
}

// Snapshot returns the state of the session as an assistant response that
// can be kept in history.
func (s *ResponseSession) Snapshot() llms.AssistantResponse {
	s.mu.Lock()
	snapshot := sessionSnapshot{
		ID:             s.ID,
		Content:        s.contentText.String(),
		Reasoning:      s.reasoningTextLocked(),
		DisplayText:    s.displayTextLocked(),
		ResponseID:     s.responseID,
		ToolCalls:      append([]llms.ToolCall(nil), s.toolCalls...),
		IsCompleted:    s.completed,
		IsCancelled:    s.cancelled,
		IsLoopDetected: s.loopDetected,
		Error:          s.errMessage,
	}
	s.mu.Unlock()

	var response llms.AssistantResponse
	if err := copier.CopyWithOption(&response, &snapshot, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("failed to copy response snapshot", "error", err)
	}
	return response
}

func (s *ResponseSession) appendContentLocked(delta string) (speechChanged bool) {
	text := s.heldBack + delta
	s.heldBack = ""

	for text != "" {
		if s.inlineThink {
			end := strings.Index(text, thinkCloseTag)
			if end < 0 {
				keep := partialTagLength(text, thinkCloseTag)
				s.appendReasoningLocked(text[:len(text)-keep])
				s.heldBack = text[len(text)-keep:]
				return speechChanged
			}
			s.appendReasoningLocked(text[:end])
			s.closeReasoningLocked()
			s.inlineThink = false
			text = text[end+len(thinkCloseTag):]
			continue
		}

		start := strings.Index(text, thinkOpenTag)
		if start < 0 {
			keep := max(partialTagLength(text, thinkOpenTag), partialTagLength(text, thinkCloseTag))
			visible := strings.ReplaceAll(text[:len(text)-keep], thinkCloseTag, "")
			if visible != "" {
				s.appendVisibleLocked(visible)
				speechChanged = true
			}
			s.heldBack = text[len(text)-keep:]
			return speechChanged
		}

		if visible := strings.ReplaceAll(text[:start], thinkCloseTag, ""); visible != "" {
			s.appendVisibleLocked(visible)
			speechChanged = true
		}
		s.openReasoningLocked()
		s.inlineThink = true
		text = text[start+len(thinkOpenTag):]
	}
	return speechChanged
}

func (s *ResponseSession) appendVisibleLocked(text string) {
	s.closeReasoningLocked()

	if n := len(s.segments); n > 0 && s.segments[n-1].kind == segmentText {
		s.segments[n-1].text += text
	} else {
		s.segments = append(s.segments, displaySegment{kind: segmentText, text: text})
	}
	s.speechText.WriteString(text)
	s.contentText.WriteString(text)
	s.loopText.WriteString(text)
}

func (s *ResponseSession) openReasoningLocked() {
	if s.openReasoning >= 0 {
		return
	}
	s.segments = append(s.segments, displaySegment{kind: segmentReasoning})
	s.openReasoning = len(s.segments) - 1
}

func (s *ResponseSession) appendReasoningLocked(text string) {
	if text == "" {
		return
	}
	s.openReasoningLocked()
	s.segments[s.openReasoning].text += text
	s.loopText.WriteString(text)
}

func (s *ResponseSession) closeReasoningLocked() {
	if s.openReasoning < 0 {
		return
	}
	s.segments[s.openReasoning].closed = true
	s.openReasoning = -1
}

func (s *ResponseSession) annotateLocked(text string) {
	s.segments = append(s.segments, displaySegment{kind: segmentAnnotation, text: text})
}

func (s *ResponseSession) captureResponseIDLocked(responseID string) {
	if responseID != "" {
		s.responseID = responseID
	}
}

func (s *ResponseSession) lastToolCallLocked(name string) *llms.ToolCall {
	for i := len(s.toolCalls) - 1; i >= 0; i-- {
		if s.toolCalls[i].Name == name {
			return &s.toolCalls[i]
		}
	}
	return nil
}

func (s *ResponseSession) displayTextLocked() string {
	var b strings.Builder
	for _, segment := range s.segments {
		switch segment.kind {
		case segmentText, segmentAnnotation:
			b.WriteString(segment.text)
		case segmentReasoning:
			if s.showReasoning {
				writeReasoning(&b, segment)
			}
		case segmentToolStatus:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			b.WriteString(segment.text)
			b.WriteString("\n")
		}
	}

	if b.Len() == 0 {
		return s.placeholder
	}
	return b.String()
}

func (s *ResponseSession) reasoningTextLocked() string {
	var b strings.Builder
	for _, segment := range s.segments {
		if segment.kind == segmentReasoning {
			writeReasoning(&b, segment)
		}
	}
	return b.String()
}

func writeReasoning(b *strings.Builder, segment displaySegment) {
	b.WriteString(thinkOpenTag)
	b.WriteString(segment.text)
	if segment.closed {
		b.WriteString(thinkCloseTag)
		b.WriteString("\n")
	}
}

func toolCallLine(tool, arguments string) string {
	if arguments == "" {
		return fmt.Sprintf("> 🛠️ **Tool Call:** `%s`", tool)
	}
	if runes := []rune(arguments); len(runes) > maxToolArgumentsLength {
		arguments = string(runes[:maxToolArgumentsLength]) + "…"
	}
	return fmt.Sprintf("> 🛠️ **Tool Call:** `%s` `%s`", tool, arguments)
}

// partialTagLength returns the length of the longest suffix of text that is a
// proper prefix of tag.
func partialTagLength(text, tag string) int {
	for n := min(len(tag)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, tag[:n]) {
			return n
		}
	}
	return 0
}
