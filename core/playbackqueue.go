package orchestration

import (
	"context"
	"sync"
	"time"
)

// TODO: Chunks that were already popped stay in the slice until the queue is
// dropped. A ring buffer would let long responses release them.

// playbackQueue is the FIFO between the segmenter and the playback scheduler.
type playbackQueue struct {
	mu             sync.Mutex
	chunks         []SpeechChunk
	chunksConsumed int
	endOfStream    bool
	cleared        bool
	updateSignal   chan struct{}
}

func newPlaybackQueue() *playbackQueue {
	return &playbackQueue{
		updateSignal: make(chan struct{}, 1),
	}
}

// Push appends chunk. It reports false once the queue was cleared or ended.
func (q *playbackQueue) Push(chunk SpeechChunk) bool {
	q.mu.Lock()
	if q.cleared || q.endOfStream {
		q.mu.Unlock()
		return false
	}
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
	q.signalUpdate()
	return true
}

// EndOfStream marks that no more chunks will be pushed.
func (q *playbackQueue) EndOfStream() {
	q.mu.Lock()
	q.endOfStream = true
	q.mu.Unlock()
	q.signalUpdate()
}

// TryPop removes the next chunk without waiting.
func (q *playbackQueue) TryPop() (SpeechChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cleared || q.chunksConsumed >= len(q.chunks) {
		return SpeechChunk{}, false
	}
	chunk := q.chunks[q.chunksConsumed]
	q.chunksConsumed++
	return chunk, true
}

// Peek returns up to n chunks that would be popped next.
func (q *playbackQueue) Peek(n int) []SpeechChunk {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cleared || n <= 0 {
		return nil
	}
	end := min(q.chunksConsumed+n, len(q.chunks))
	return append([]SpeechChunk(nil), q.chunks[q.chunksConsumed:end]...)
}

// IsDrained reports whether every chunk has been popped and nothing more will
// arrive.
func (q *playbackQueue) IsDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.cleared || (q.endOfStream && q.chunksConsumed >= len(q.chunks))
}

func (q *playbackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cleared {
		return 0
	}
	return len(q.chunks) - q.chunksConsumed
}

// Clear drops every queued chunk and rejects further pushes.
func (q *playbackQueue) Clear() {
	q.mu.Lock()
	q.cleared = true
	q.chunks = nil
	q.chunksConsumed = 0
	q.mu.Unlock()
	q.signalUpdate()
}

// Wait blocks until the queue changes, timeout passes or ctx is done. It
// reports whether it was woken by a change.
func (q *playbackQueue) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.updateSignal:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (q *playbackQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
