package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type SpeechConfig struct {
	Segmenter SegmenterConfig
	// PrefetchLookahead is how many queued chunks beyond the one being played
	// are synthesized ahead.
	PrefetchLookahead int
	// MaxConcurrentSynthesis bounds the synthesis requests in flight.
	MaxConcurrentSynthesis int
	// WaitPollInterval is how long the scheduler waits for new chunks before
	// checking again. It backs off up to four times this value.
	WaitPollInterval time.Duration
}

func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Segmenter:              DefaultSegmenterConfig(),
		PrefetchLookahead:      2,
		MaxConcurrentSynthesis: 3,
		WaitPollInterval:       50 * time.Millisecond,
	}
}

func (c SpeechConfig) withDefaults() SpeechConfig {
	defaults := DefaultSpeechConfig()
	c.Segmenter = c.Segmenter.withDefaults()
	if c.PrefetchLookahead < 0 {
		c.PrefetchLookahead = defaults.PrefetchLookahead
	}
	if c.MaxConcurrentSynthesis <= 0 {
		c.MaxConcurrentSynthesis = defaults.MaxConcurrentSynthesis
	}
	if c.WaitPollInterval <= 0 {
		c.WaitPollInterval = defaults.WaitPollInterval
	}
	return c
}

// speechPipeline turns the speech text of one response into audio. Each
// response gets its own pipeline so nothing carries over between turns.
type speechPipeline struct {
	mu        sync.Mutex
	segmenter *segmenter
	queue     *playbackQueue
	cache     *prefetchCache
	scheduler *playbackScheduler

	epoch    *Epoch
	captured uint64

	spokenMu sync.Mutex
	spoken   []string
}

func newSpeechPipeline(
	ctx context.Context,
	epoch *Epoch,
	captured uint64,
	cleaner *speechtext.Cleaner,
	synthesizer texttospeech.Synthesizer,
	player AudioPlayer,
	config SpeechConfig,
	onStatus func(events.PlaybackStatusValue),
) *speechPipeline {
	config = config.withDefaults()

	p := &speechPipeline{
		segmenter: newSegmenter(config.Segmenter, cleaner),
		queue:     newPlaybackQueue(),
		cache:     newPrefetchCache(ctx, synthesizer, epoch, captured, config.MaxConcurrentSynthesis),
		epoch:     epoch,
		captured:  captured,
	}
	p.scheduler = newPlaybackScheduler(
		ctx,
		p.queue,
		p.cache,
		player,
		epoch,
		captured,
		schedulerConfig{
			PrefetchLookahead: config.PrefetchLookahead,
			WaitPollInterval:  config.WaitPollInterval,
		},
		onStatus,
		p.markSpoken,
	)
	return p
}

// Feed hands the full speech text so far to the segmenter and queues the
// chunks that became ready.
func (p *speechPipeline) Feed(speechText string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.epoch.IsCurrent(p.captured) {
		return
	}
	p.push(p.segmenter.Feed(speechText))
}

// Finalize flushes the remaining speech text and marks the end of the
// stream.
func (p *speechPipeline) Finalize(speechText string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.epoch.IsCurrent(p.captured) {
		p.push(p.segmenter.Finalize(speechText))
	}
	p.queue.EndOfStream()
}

func (p *speechPipeline) push(chunks []SpeechChunk) {
	for _, chunk := range chunks {
		if !p.epoch.IsCurrent(p.captured) {
			return
		}
		if !p.queue.Push(chunk) {
			return
		}
		p.cache.Prefetch(chunk.Text)
		p.scheduler.Start()
	}
}

// Cancel drops queued chunks, aborts synthesis and stops the current clip.
func (p *speechPipeline) Cancel() {
	if p == nil {
		return
	}

	p.queue.Clear()
	p.scheduler.Cancel()
	p.cache.Flush()
}

// Wait blocks until playback finished or was cancelled and every synthesis
// request has returned.
func (p *speechPipeline) Wait() {
	if p == nil {
		return
	}

	p.scheduler.Wait()
	p.cache.Flush()
	p.cache.Wait()
}

func (p *speechPipeline) State() PlaybackState {
	if p == nil {
		return PlaybackIdle
	}
	return p.scheduler.State()
}

// Spoken returns the chunks that were played to completion, in order.
func (p *speechPipeline) Spoken() []string {
	if p == nil {
		return nil
	}

	p.spokenMu.Lock()
	defer p.spokenMu.Unlock()
	return append([]string(nil), p.spoken...)
}

func (p *speechPipeline) markSpoken(chunk SpeechChunk) {
	p.spokenMu.Lock()
	p.spoken = append(p.spoken, chunk.Text)
	p.spokenMu.Unlock()
}
