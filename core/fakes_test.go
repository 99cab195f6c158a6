package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errFakeSynthesis = errors.New("fake synthesis failure")

// fakeSynthesizer returns the text itself as the audio payload.
type fakeSynthesizer struct {
	delay func(text string) time.Duration
	fail  func(text string) bool
	block chan struct{}

	mu          sync.Mutex
	calls       map[string]int
	inFlight    int
	maxInFlight int
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[text]++
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay != nil {
		select {
		case <-time.After(s.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail != nil && s.fail(text) {
		return nil, errFakeSynthesis
	}
	return []byte(text), nil
}

func (s *fakeSynthesizer) callCount(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[text]
}

func (s *fakeSynthesizer) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// fakePlayer records payloads it played to completion. With block set it
// plays until the context is cancelled.
type fakePlayer struct {
	block   bool
	started chan struct{}

	mu     sync.Mutex
	played []string
}

func newBlockingPlayer() *fakePlayer {
	return &fakePlayer{block: true, started: make(chan struct{}, 16)}
}

func (p *fakePlayer) Play(ctx context.Context, payload []byte) error {
	if p.block {
		p.started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	p.played = append(p.played, string(payload))
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type displayUpdate struct {
	id   string
	text string
}

type fakeDisplay struct {
	// onUpdate runs synchronously after every update.
	onUpdate func(text string)

	mu      sync.Mutex
	updates []displayUpdate
}

func (d *fakeDisplay) UpdateMessage(id, text string) {
	d.mu.Lock()
	d.updates = append(d.updates, displayUpdate{id: id, text: text})
	d.mu.Unlock()

	if d.onUpdate != nil {
		d.onUpdate(text)
	}
}

func (d *fakeDisplay) Texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	texts := make([]string, 0, len(d.updates))
	for _, update := range d.updates {
		texts = append(texts, update.text)
	}
	return texts
}

func (d *fakeDisplay) Last() displayUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.updates) == 0 {
		return displayUpdate{}
	}
	return d.updates[len(d.updates)-1]
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) record(status string) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func (r *statusRecorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

func waitOrFail(t *testing.T, name string, wait func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected %s to finish in time", name)
	}
}
