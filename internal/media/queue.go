package media

import (
	"sync"

	"github.com/meshdesk/client/internal/wire"
)

// displayQueue is the bounded per-display frame queue spec §4.7 describes:
// non-key frames are pushed in, overwriting the oldest entry once full; any
// keyframe drains the queue first so the decoder never wastes cycles on
// stale non-key frames behind it.
type displayQueue struct {
	mu       sync.Mutex
	capacity int
	frames   []*wire.VideoFrame
}

func newDisplayQueue(capacity int) *displayQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &displayQueue{capacity: capacity}
}

// PushOrOverwrite appends a non-key frame, dropping the oldest if the queue
// is at capacity.
func (q *displayQueue) PushOrOverwrite(f *wire.VideoFrame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) >= q.capacity {
		q.frames = q.frames[1:]
	}
	q.frames = append(q.frames, f)
}

// Drain empties the queue and returns everything that was in it, oldest
// first, for the caller to discard (keyframe arrival) or flush to the
// decoder.
func (q *displayQueue) Drain() []*wire.VideoFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.frames
	q.frames = nil
	return out
}

// Len reports the current queue depth, read by the FPS controller's status
// tick.
func (q *displayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
