package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
)

type fakeResponder struct {
	mu        sync.Mutex
	prompts   []string
	cancelled int
	stopped   int
	resets    int
	err       error
}

func (r *fakeResponder) Respond(_ context.Context, prompt string, _ ...string) (llms.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	return llms.Turn{Prompt: prompt, IsFinalised: true}, r.err
}

func (r *fakeResponder) Cancel()       { r.mu.Lock(); r.cancelled++; r.mu.Unlock() }
func (r *fakeResponder) StopSpeaking() { r.mu.Lock(); r.stopped++; r.mu.Unlock() }
func (r *fakeResponder) Reset()        { r.mu.Lock(); r.resets++; r.mu.Unlock() }

func newSizedModel(r responder) *tuiModel {
	m := newTUIModel(r)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func typeText(m *tuiModel, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestTUISubmitsPrompt(t *testing.T) {
	r := &fakeResponder{}
	m := newSizedModel(r)

	typeText(m, "  hello there ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a command answering the prompt")
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input to be cleared, got %q", m.input.Value())
	}
	if m.pending != 1 {
		t.Fatalf("expected one pending response, got %d", m.pending)
	}

	msg := cmd()
	done, ok := msg.(responseDoneMsg)
	if !ok {
		t.Fatalf("expected responseDoneMsg, got %T", msg)
	}
	if len(r.prompts) != 1 || r.prompts[0] != "hello there" {
		t.Fatalf("expected trimmed prompt, got %q", r.prompts)
	}

	m.Update(done)
	if m.pending != 0 {
		t.Fatalf("expected no pending responses, got %d", m.pending)
	}
}

func TestTUIIgnoresEmptyPrompt(t *testing.T) {
	r := &fakeResponder{}
	m := newSizedModel(r)

	typeText(m, "   ")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatalf("expected no command for an empty prompt")
	}
	if len(m.transcript) != 0 {
		t.Fatalf("expected empty transcript, got %+v", m.transcript)
	}
}

func TestTUIControls(t *testing.T) {
	r := &fakeResponder{}
	m := newSizedModel(r)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	typeText(m, "/reset")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if r.cancelled != 1 || r.stopped != 1 || r.resets != 1 {
		t.Fatalf("expected one cancel, stop and reset, got %d %d %d", r.cancelled, r.stopped, r.resets)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if r.cancelled != 2 {
		t.Fatalf("expected quitting to cancel the response, got %d cancels", r.cancelled)
	}
}

func TestTUIMessageUpdatesReplaceText(t *testing.T) {
	m := newSizedModel(&fakeResponder{})

	m.Update(messageUpdateMsg{id: "r1", text: "Hel"})
	m.Update(messageUpdateMsg{id: "r1", text: "Hello."})
	m.Update(messageUpdateMsg{id: "r2", text: "Next"})

	if len(m.transcript) != 2 {
		t.Fatalf("expected two assistant entries, got %+v", m.transcript)
	}
	if m.transcript[0].text != "Hello." || m.transcript[1].text != "Next" {
		t.Fatalf("expected replaced text, got %+v", m.transcript)
	}
	if view := m.renderTranscript(); !strings.Contains(view, "Hello.") || strings.Contains(view, "Hel\n") {
		t.Fatalf("expected rendered latest text, got %q", view)
	}
}

func TestTUIShowsErrorAndPlayback(t *testing.T) {
	m := newSizedModel(&fakeResponder{})

	m.Update(playbackStatusMsg(events.NewPlaybackStatus("r1", events.PlaybackStatusPlaying)))
	if m.playback != events.PlaybackStatusPlaying {
		t.Fatalf("expected playing status, got %q", m.playback)
	}
	if view := m.View(); !strings.Contains(view, "speaking") {
		t.Fatalf("expected speaking indicator, got %q", view)
	}

	m.Update(responseDoneMsg{err: errors.New("response generation failed: boom")})
	if view := m.View(); !strings.Contains(view, "boom") {
		t.Fatalf("expected error in status bar, got %q", view)
	}
}
