package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// prefetchEntry resolves once synthesis of its text finished, failed or was
// discarded. audio is only read after done is closed.
type prefetchEntry struct {
	text  string
	epoch uint64
	done  chan struct{}
	audio []byte
}

func resolvedEntry(text string) *prefetchEntry {
	entry := &prefetchEntry{text: text, done: make(chan struct{})}
	close(entry.done)
	return entry
}

// prefetchCache synthesizes chunk audio ahead of playback. Every distinct
// text has at most one synthesis request in flight.
type prefetchCache struct {
	synthesizer texttospeech.Synthesizer
	epoch       *Epoch
	captured    uint64
	semaphore   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*prefetchEntry
}

func newPrefetchCache(ctx context.Context, synthesizer texttospeech.Synthesizer, epoch *Epoch, captured uint64, maxConcurrent int) *prefetchCache {
	ctx, cancel := context.WithCancel(ctx)
	return &prefetchCache{
		synthesizer: synthesizer,
		epoch:       epoch,
		captured:    captured,
		semaphore:   make(chan struct{}, max(maxConcurrent, 1)),
		ctx:         ctx,
		cancel:      cancel,
		entries:     map[string]*prefetchEntry{},
	}
}

// Prefetch returns the entry for text, starting synthesis if there is none.
// The entry is registered before the request starts so concurrent callers
// share it.
func (c *prefetchCache) Prefetch(text string) *prefetchEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[text]; ok {
		return entry
	}
	if c.ctx.Err() != nil || c.synthesizer == nil {
		return resolvedEntry(text)
	}

	entry := &prefetchEntry{text: text, epoch: c.captured, done: make(chan struct{})}
	c.entries[text] = entry
	c.wg.Add(1)
	go c.synthesize(entry)
	return entry
}

func (c *prefetchCache) synthesize(entry *prefetchEntry) {
	defer c.wg.Done()
	defer close(entry.done)

	select {
	case c.semaphore <- struct{}{}:
	case <-c.ctx.Done():
		return
	}
	defer func() { <-c.semaphore }()

	if !c.epoch.IsCurrent(entry.epoch) {
		synthesisDiscarded.Add(c.ctx, 1)
		return
	}

	ctx, span := tracer.Start(c.ctx, "synthesize speech chunk", trace.WithAttributes(
		attribute.Int("speech_chunk.length", len(entry.text)),
	))
	defer span.End()

	synthesisRequests.Add(ctx, 1)
	audio, err := c.synthesizer.Synthesize(ctx, entry.text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("failed to synthesize speech chunk: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		synthesisFailures.Add(ctx, 1)
		logger.Warn("speech chunk synthesis failed, chunk will be skipped", "error", err)
		return
	}

	if !c.epoch.IsCurrent(entry.epoch) {
		synthesisDiscarded.Add(ctx, 1)
		logger.Debug("discarding speech chunk audio from a stale epoch")
		return
	}
	entry.audio = audio
}

// Take waits for the audio of text, prefetching it on demand, and removes it
// from the cache. It reports false when there is no usable audio.
func (c *prefetchCache) Take(ctx context.Context, text string) ([]byte, bool) {
	entry := c.Prefetch(text)

	select {
	case <-entry.done:
	case <-ctx.Done():
		return nil, false
	}

	c.mu.Lock()
	if c.entries[text] == entry {
		delete(c.entries, text)
	}
	c.mu.Unlock()

	if len(entry.audio) == 0 {
		return nil, false
	}
	return entry.audio, true
}

func (c *prefetchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush aborts in-flight synthesis and drops every entry. Later prefetches
// resolve to no audio.
func (c *prefetchCache) Flush() {
	c.cancel()

	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Wait blocks until every synthesis goroutine has returned.
func (c *prefetchCache) Wait() {
	c.wg.Wait()
}
