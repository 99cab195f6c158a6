package orchestration

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtext"
)

const threeLines = "First sentence here.\nSecond sentence here.\nThird sentence here.\n"

var threeLineChunks = []string{"First sentence here.", "Second sentence here.", "Third sentence here."}

func testSpeechConfig() SpeechConfig {
	config := DefaultSpeechConfig()
	config.Segmenter.TargetChunkSize = 10
	config.WaitPollInterval = 5 * time.Millisecond
	return config
}

func TestSpeechPipelinePlaysInOrderDespiteLatency(t *testing.T) {
	delays := map[string]time.Duration{
		"First sentence here.":  60 * time.Millisecond,
		"Second sentence here.": 30 * time.Millisecond,
	}
	synthesizer := &fakeSynthesizer{delay: func(text string) time.Duration { return delays[text] }}
	player := &fakePlayer{}
	statuses := &statusRecorder{}

	pipeline := newSpeechPipeline(context.Background(), &Epoch{}, 0, speechtext.NewCleaner(), synthesizer, player, testSpeechConfig(),
		func(status events.PlaybackStatusValue) { statuses.record(string(status)) })

	pipeline.Feed(threeLines[:30])
	pipeline.Feed(threeLines)
	pipeline.Finalize(threeLines)
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	if got := player.Played(); !slices.Equal(got, threeLineChunks) {
		t.Fatalf("expected chunks played in order %q, got %q", threeLineChunks, got)
	}
	if got := pipeline.Spoken(); !slices.Equal(got, threeLineChunks) {
		t.Fatalf("expected spoken chunks %q, got %q", threeLineChunks, got)
	}
	if state := pipeline.State(); state != PlaybackFinished {
		t.Fatalf("expected finished state, got %s", state)
	}

	got := statuses.Statuses()
	if !slices.Contains(got, string(events.PlaybackStatusPlaying)) || got[len(got)-1] != string(events.PlaybackStatusIdle) {
		t.Fatalf("expected playing and a final idle status, got %q", got)
	}
}

func TestSpeechPipelineSkipsFailedChunks(t *testing.T) {
	synthesizer := &fakeSynthesizer{fail: func(text string) bool { return strings.HasPrefix(text, "Second") }}
	player := &fakePlayer{}

	pipeline := newSpeechPipeline(context.Background(), &Epoch{}, 0, speechtext.NewCleaner(), synthesizer, player, testSpeechConfig(), nil)
	pipeline.Feed(threeLines)
	pipeline.Finalize(threeLines)
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	expected := []string{"First sentence here.", "Third sentence here."}
	if got := player.Played(); !slices.Equal(got, expected) {
		t.Fatalf("expected failed chunk to be skipped, got %q", got)
	}
}

func TestSpeechPipelineNeverPlaysAfterEpochAdvance(t *testing.T) {
	epoch := &Epoch{}
	synthesizer := &fakeSynthesizer{block: make(chan struct{})}
	player := &fakePlayer{}

	pipeline := newSpeechPipeline(context.Background(), epoch, epoch.Current(), speechtext.NewCleaner(), synthesizer, player, testSpeechConfig(), nil)
	pipeline.Feed(threeLines)

	epoch.Advance()
	close(synthesizer.block)
	pipeline.Finalize(threeLines)
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	if got := player.Played(); len(got) != 0 {
		t.Fatalf("expected no playback after epoch advance, got %q", got)
	}
	if state := pipeline.State(); state != PlaybackCancelled {
		t.Fatalf("expected cancelled state, got %s", state)
	}
}

func TestSpeechPipelineCancelStopsCurrentClip(t *testing.T) {
	synthesizer := &fakeSynthesizer{}
	player := newBlockingPlayer()

	pipeline := newSpeechPipeline(context.Background(), &Epoch{}, 0, speechtext.NewCleaner(), synthesizer, player, testSpeechConfig(), nil)
	pipeline.Feed(threeLines)
	pipeline.Finalize(threeLines)

	select {
	case <-player.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected playback to start")
	}

	pipeline.Cancel()
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	if state := pipeline.State(); state != PlaybackCancelled {
		t.Fatalf("expected cancelled state, got %s", state)
	}
	if n := len(player.started); n != 0 {
		t.Fatalf("expected no clip to start after cancel, %d started", n)
	}
}

func TestSpeechPipelineWithoutChunksDoesNotStart(t *testing.T) {
	pipeline := newSpeechPipeline(context.Background(), &Epoch{}, 0, speechtext.NewCleaner(), &fakeSynthesizer{}, &fakePlayer{}, testSpeechConfig(), nil)
	pipeline.Feed("```go\nx := 1\n```")
	pipeline.Finalize("```go\nx := 1\n```")
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	if state := pipeline.State(); state != PlaybackIdle {
		t.Fatalf("expected idle state, got %s", state)
	}
}

func TestPrefetchCacheDeduplicates(t *testing.T) {
	synthesizer := &fakeSynthesizer{delay: func(string) time.Duration { return 10 * time.Millisecond }}
	cache := newPrefetchCache(context.Background(), synthesizer, &Epoch{}, 0, 3)

	first := cache.Prefetch("hello")
	second := cache.Prefetch("hello")
	if first != second {
		t.Fatalf("expected the same entry for the same text")
	}

	audio, ok := cache.Take(context.Background(), "hello")
	if !ok || string(audio) != "hello" {
		t.Fatalf("expected audio %q, got %q (ok=%v)", "hello", audio, ok)
	}
	if n := synthesizer.callCount("hello"); n != 1 {
		t.Fatalf("expected one synthesis call, got %d", n)
	}
	if n := cache.Len(); n != 0 {
		t.Fatalf("expected taken entry to be removed, %d left", n)
	}
}

func TestPrefetchCacheBoundsConcurrency(t *testing.T) {
	synthesizer := &fakeSynthesizer{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	cache := newPrefetchCache(context.Background(), synthesizer, &Epoch{}, 0, 3)

	for i := range 10 {
		cache.Prefetch(strings.Repeat("x", i+1))
	}
	waitOrFail(t, "prefetch cache", cache.Wait)

	if n := synthesizer.totalCalls(); n != 10 {
		t.Fatalf("expected 10 synthesis calls, got %d", n)
	}
	if synthesizer.maxInFlight > 3 {
		t.Fatalf("expected at most 3 concurrent requests, got %d", synthesizer.maxInFlight)
	}
}

func TestPrefetchCacheDiscardsStaleAudio(t *testing.T) {
	epoch := &Epoch{}
	synthesizer := &fakeSynthesizer{block: make(chan struct{})}
	cache := newPrefetchCache(context.Background(), synthesizer, epoch, epoch.Current(), 3)

	cache.Prefetch("stale")
	epoch.Advance()
	close(synthesizer.block)

	if audio, ok := cache.Take(context.Background(), "stale"); ok {
		t.Fatalf("expected stale audio to be discarded, got %q", audio)
	}
}

func TestPrefetchCacheFlushAbortsRequests(t *testing.T) {
	synthesizer := &fakeSynthesizer{block: make(chan struct{})}
	cache := newPrefetchCache(context.Background(), synthesizer, &Epoch{}, 0, 3)

	entry := cache.Prefetch("pending")
	cache.Flush()
	waitOrFail(t, "prefetch cache", cache.Wait)

	select {
	case <-entry.done:
	default:
		t.Fatalf("expected flushed entry to be resolved")
	}
	if len(entry.audio) != 0 {
		t.Fatalf("expected flushed entry without audio")
	}
	if _, ok := cache.Take(context.Background(), "pending"); ok {
		t.Fatalf("expected no audio after flush")
	}
}

func TestPlaybackQueue(t *testing.T) {
	queue := newPlaybackQueue()
	for i := range 3 {
		queue.Push(SpeechChunk{Index: i, Text: strings.Repeat("a", i+1)})
	}

	if peeked := queue.Peek(2); len(peeked) != 2 || peeked[0].Index != 0 {
		t.Fatalf("expected to peek the first two chunks, got %+v", peeked)
	}
	if chunk, ok := queue.TryPop(); !ok || chunk.Index != 0 {
		t.Fatalf("expected first chunk, got %+v (ok=%v)", chunk, ok)
	}
	if !queue.Wait(context.Background(), time.Second) {
		t.Fatalf("expected pending update signal")
	}
	if queue.Wait(context.Background(), 5*time.Millisecond) {
		t.Fatalf("expected wait to time out without updates")
	}

	queue.EndOfStream()
	queue.Push(SpeechChunk{Index: 99})
	if n := queue.Len(); n != 2 {
		t.Fatalf("expected pushes after end of stream to be ignored, got %d chunks", n)
	}
	if queue.IsDrained() {
		t.Fatalf("expected queue with chunks not to be drained")
	}

	queue.Clear()
	if _, ok := queue.TryPop(); ok {
		t.Fatalf("expected cleared queue to be empty")
	}
	if !queue.IsDrained() {
		t.Fatalf("expected cleared queue to be drained")
	}
}

func TestSpeechPipelineStartedForStaleTurnNeverPlays(t *testing.T) {
	epoch := &Epoch{}
	captured := epoch.Advance()
	epoch.Advance()
	player := &fakePlayer{}

	pipeline := newSpeechPipeline(context.Background(), epoch, captured, speechtext.NewCleaner(), &fakeSynthesizer{}, player, testSpeechConfig(), nil)
	pipeline.Feed(threeLines)
	pipeline.Finalize(threeLines)
	waitOrFail(t, "speech pipeline", pipeline.Wait)

	if got := player.Played(); len(got) != 0 {
		t.Fatalf("expected no playback for a superseded turn, got %q", got)
	}
}
