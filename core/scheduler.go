package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type PlaybackState int32

const (
	PlaybackIdle PlaybackState = iota
	PlaybackRunning
	PlaybackWaitingForMore
	PlaybackPlaying
	PlaybackFinished
	PlaybackCancelled
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackRunning:
		return "running"
	case PlaybackWaitingForMore:
		return "waiting_for_more"
	case PlaybackPlaying:
		return "playing"
	case PlaybackFinished:
		return "finished"
	case PlaybackCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

func (s PlaybackState) status() events.PlaybackStatusValue {
	switch s {
	case PlaybackRunning, PlaybackWaitingForMore:
		return events.PlaybackStatusLoading
	case PlaybackPlaying:
		return events.PlaybackStatusPlaying
	default:
		return events.PlaybackStatusIdle
	}
}

// AudioPlayer plays one encoded payload to completion. It must return
// promptly once ctx is done.
type AudioPlayer interface {
	Play(ctx context.Context, payload []byte) error
}

type schedulerConfig struct {
	PrefetchLookahead int
	WaitPollInterval  time.Duration
}

// playbackScheduler plays the chunks of one queue strictly in order, one at
// a time.
type playbackScheduler struct {
	queue  *playbackQueue
	cache  *prefetchCache
	player AudioPlayer
	config schedulerConfig

	epoch    *Epoch
	captured uint64

	onStatus func(events.PlaybackStatusValue)
	onPlayed func(SpeechChunk)

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	started    atomic.Bool
	startOnce  sync.Once
	done       chan struct{}
	statusMu   sync.Mutex
	lastStatus events.PlaybackStatusValue
}

func newPlaybackScheduler(
	ctx context.Context,
	queue *playbackQueue,
	cache *prefetchCache,
	player AudioPlayer,
	epoch *Epoch,
	captured uint64,
	config schedulerConfig,
	onStatus func(events.PlaybackStatusValue),
	onPlayed func(SpeechChunk),
) *playbackScheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &playbackScheduler{
		queue:      queue,
		cache:      cache,
		player:     player,
		config:     config,
		epoch:      epoch,
		captured:   captured,
		onStatus:   onStatus,
		onPlayed:   onPlayed,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		lastStatus: events.PlaybackStatusIdle,
	}
}

// Start launches the playback loop. Calls after the first are no-ops.
func (s *playbackScheduler) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.loop()
	})
}

func (s *playbackScheduler) State() PlaybackState {
	return PlaybackState(s.state.Load())
}

// Cancel stops the loop and the clip that is currently playing.
func (s *playbackScheduler) Cancel() {
	s.cancel()
}

// Wait blocks until the loop has exited. It returns immediately if the loop
// was never started.
func (s *playbackScheduler) Wait() {
	if !s.started.Load() {
		return
	}
	<-s.done
}

func (s *playbackScheduler) loop() {
	defer close(s.done)

	ctx, span := tracer.Start(s.ctx, "play speech")
	defer span.End()

	s.setState(PlaybackRunning)
	interval := s.config.WaitPollInterval
	played := 0
	for {
		if !s.isCurrent(ctx) {
			s.setState(PlaybackCancelled)
			span.SetAttributes(attribute.Int("speech.chunks_played", played))
			return
		}

		chunk, ok := s.queue.TryPop()
		if !ok {
			if s.queue.IsDrained() {
				s.setState(PlaybackFinished)
				span.SetAttributes(attribute.Int("speech.chunks_played", played))
				return
			}

			s.setState(PlaybackWaitingForMore)
			if s.queue.Wait(ctx, interval) {
				interval = s.config.WaitPollInterval
			} else {
				interval = min(interval*2, 4*s.config.WaitPollInterval)
			}
			continue
		}
		interval = s.config.WaitPollInterval

		for _, next := range s.queue.Peek(s.config.PrefetchLookahead) {
			s.cache.Prefetch(next.Text)
		}

		s.setState(PlaybackRunning)
		audio, ok := s.cache.Take(ctx, chunk.Text)
		if !ok {
			if s.isCurrent(ctx) {
				logger.Debug("skipping speech chunk without audio", "index", chunk.Index)
			}
			continue
		}
		if !s.isCurrent(ctx) {
			continue
		}

		s.setState(PlaybackPlaying)
		err := s.player.Play(ctx, audio)
		if !s.isCurrent(ctx) {
			continue
		}
		if err != nil {
			err = fmt.Errorf("failed to play speech chunk %d: %w", chunk.Index, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("speech chunk playback failed", "error", err)
			continue
		}

		played++
		span.AddEvent("speech chunk played", trace.WithAttributes(attribute.Int("speech_chunk.index", chunk.Index)))
		if s.onPlayed != nil {
			s.onPlayed(chunk)
		}
	}
}

func (s *playbackScheduler) isCurrent(ctx context.Context) bool {
	return ctx.Err() == nil && s.epoch.IsCurrent(s.captured)
}

func (s *playbackScheduler) setState(state PlaybackState) {
	s.state.Store(int32(state))

	status := state.status()
	s.statusMu.Lock()
	changed := status != s.lastStatus
	s.lastStatus = status
	s.statusMu.Unlock()

	if !changed || s.onStatus == nil {
		return
	}
	// Stale loops may only report that they went idle.
	if status != events.PlaybackStatusIdle && !s.epoch.IsCurrent(s.captured) {
		return
	}
	s.onStatus(status)
}
