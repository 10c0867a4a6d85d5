// Package media implements the worker sequences of the media pipeline (C7):
// dedicated video/audio/recorder workers fed by unbounded channels, each
// display's video carried through a bounded keyframe-draining queue.
package media

import (
	"sync"
	"time"

	"github.com/meshdesk/client/internal/latency"
	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/wire"
)

var log = logging.L("media")

// VideoDecoder decodes one encoded frame into an RGBA buffer. Reset is
// called when the session needs to drop all decoder state (peer requested
// a resolution/display switch). Implementations are not required to be
// safe for concurrent use; the video worker serializes every call for a
// given display onto its own decode goroutine.
type VideoDecoder interface {
	Decode(encoded []byte, keyFrame bool) (rgba []byte, width, height int32, err error)
	Reset()
}

// FrameSink receives decoded frames for display.
type FrameSink func(display int32, rgba []byte, width, height int32)

// EncodedSink receives the raw encoded payload, in parallel with decoding,
// for an active screen recording.
type EncodedSink func(display int32, encoded []byte, timestamp int64)

// DecoderFactory builds a fresh VideoDecoder, called once per display on
// first frame and again whenever Reset is requested for that display.
type DecoderFactory func() VideoDecoder

// VideoWorker owns one decoder per display and the bounded queues feeding
// them, and updates the shared latency controller's video timeline on
// every frame. Non-key frames are queued and decoded by a per-display
// goroutine woken on a "queue changed" notification; keyframes always
// bypass the queue and decode inline on the caller's goroutine, draining
// whatever was pending first.
type VideoWorker struct {
	newDecoder DecoderFactory
	latency    *latency.Controller
	onFrame    FrameSink

	queueCapacity int

	mu        sync.Mutex
	decoders  map[int32]VideoDecoder
	decodeMu  map[int32]*sync.Mutex
	queues    map[int32]*displayQueue
	notify    map[int32]chan struct{}
	recording map[int32]EncodedSink
	closed    chan struct{}
}

// NewVideoWorker returns a VideoWorker. queueCapacity bounds each display's
// non-key-frame backlog.
func NewVideoWorker(newDecoder DecoderFactory, lat *latency.Controller, onFrame FrameSink, queueCapacity int) *VideoWorker {
	return &VideoWorker{
		newDecoder:    newDecoder,
		latency:       lat,
		onFrame:       onFrame,
		queueCapacity: queueCapacity,
		decoders:      map[int32]VideoDecoder{},
		decodeMu:      map[int32]*sync.Mutex{},
		queues:        map[int32]*displayQueue{},
		notify:        map[int32]chan struct{}{},
		recording:     map[int32]EncodedSink{},
		closed:        make(chan struct{}),
	}
}

// Close stops every per-display decode goroutine. Safe to call once per
// worker, at session teardown.
func (w *VideoWorker) Close() {
	close(w.closed)
}

func (w *VideoWorker) queueFor(display int32) (*displayQueue, chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queues[display]
	if !ok {
		q = newDisplayQueue(w.queueCapacity)
		w.queues[display] = q
		ch := make(chan struct{}, 1)
		w.notify[display] = ch
		go w.decodeLoop(display, q, ch)
	}
	return q, w.notify[display]
}

func (w *VideoWorker) decoderFor(display int32) (VideoDecoder, *sync.Mutex) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.decoders[display]
	if !ok {
		d = w.newDecoder()
		w.decoders[display] = d
		w.decodeMu[display] = &sync.Mutex{}
	}
	return d, w.decodeMu[display]
}

// decodeLoop is the per-display decoder goroutine: it wakes on every
// queue-changed notification and drains whatever is currently queued, in
// arrival order.
func (w *VideoWorker) decodeLoop(display int32, q *displayQueue, notify chan struct{}) {
	for {
		select {
		case <-w.closed:
			return
		case <-notify:
			for _, f := range q.Drain() {
				if err := w.decode(f); err != nil {
					log.Warn("queued video decode failed", "display", display, "error", err)
				}
			}
		}
	}
}

// QueueLen reports display's current backlog depth, for the FPS controller.
func (w *VideoWorker) QueueLen(display int32) int {
	q, _ := w.queueFor(display)
	return q.Len()
}

// RecordScreen starts or stops forwarding display's encoded frames (pre-
// decode) to sink. Passing a nil sink stops recording.
func (w *VideoWorker) RecordScreen(display int32, sink EncodedSink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sink == nil {
		delete(w.recording, display)
		return
	}
	w.recording[display] = sink
}

// Reset drops and recreates the decoder for display, discarding any queued
// backlog.
func (w *VideoWorker) Reset(display int32) {
	w.mu.Lock()
	delete(w.decoders, display)
	w.mu.Unlock()
	q, _ := w.queueFor(display)
	q.Drain()
}

// HandleFrame processes one incoming VideoFrame: updates the latency
// timeline, forwards the encoded payload to an active recorder, and
// applies the keyframe-drain queueing policy.
func (w *VideoWorker) HandleFrame(f *wire.VideoFrame, now time.Time) error {
	w.latency.OnVideoFrame(time.Duration(f.Timestamp)*time.Millisecond, now)

	w.mu.Lock()
	sink := w.recording[f.Display]
	w.mu.Unlock()
	if sink != nil {
		sink(f.Display, f.Data, f.Timestamp)
	}

	q, notify := w.queueFor(f.Display)
	if f.IsKeyFrame {
		q.Drain()
		return w.decode(f)
	}
	q.PushOrOverwrite(f)
	select {
	case notify <- struct{}{}:
	default:
	}
	return nil
}

func (w *VideoWorker) decode(f *wire.VideoFrame) error {
	decoder, decodeMu := w.decoderFor(f.Display)
	decodeMu.Lock()
	defer decodeMu.Unlock()
	rgba, width, height, err := decoder.Decode(f.Data, f.IsKeyFrame)
	if err != nil {
		log.Warn("video decode failed", "display", f.Display, "error", err)
		return err
	}
	if width == 0 {
		width = f.Width
	}
	if height == 0 {
		height = f.Height
	}
	w.onFrame(f.Display, rgba, width, height)
	return nil
}
