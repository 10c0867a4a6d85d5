package media

import (
	"sync"
	"testing"
	"time"

	"github.com/meshdesk/client/internal/latency"
	"github.com/meshdesk/client/internal/wire"
)

type fakeDecoder struct {
	mu      sync.Mutex
	calls   int
	resetCt int
}

func (d *fakeDecoder) Decode(encoded []byte, keyFrame bool) ([]byte, int32, int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return []byte{0xAA}, 10, 20, nil
}

func (d *fakeDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetCt++
}

func TestVideoWorkerKeyframeBypassesQueueAndDecodesInline(t *testing.T) {
	fd := &fakeDecoder{}
	var got []int32
	var mu sync.Mutex
	onFrame := func(display int32, rgba []byte, w, h int32) {
		mu.Lock()
		got = append(got, display)
		mu.Unlock()
	}

	vw := NewVideoWorker(func() VideoDecoder { return fd }, latency.New(), onFrame, 8)
	defer vw.Close()

	err := vw.HandleFrame(&wire.VideoFrame{Display: 0, IsKeyFrame: true, Data: []byte{1}}, time.Now())
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("onFrame called %d times, want 1", n)
	}
}

func TestVideoWorkerNonKeyFrameIsDecodedAsynchronously(t *testing.T) {
	fd := &fakeDecoder{}
	done := make(chan int32, 4)
	onFrame := func(display int32, rgba []byte, w, h int32) {
		done <- display
	}

	vw := NewVideoWorker(func() VideoDecoder { return fd }, latency.New(), onFrame, 8)
	defer vw.Close()

	if err := vw.HandleFrame(&wire.VideoFrame{Display: 1, IsKeyFrame: false, Data: []byte{1}}, time.Now()); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	select {
	case display := <-done:
		if display != 1 {
			t.Fatalf("display = %d, want 1", display)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async decode of queued non-key frame")
	}
}

func TestVideoWorkerQueueLenTracksBacklog(t *testing.T) {
	fd := &blockingDecoder{unblock: make(chan struct{})}
	onFrame := func(display int32, rgba []byte, w, h int32) {}

	vw := NewVideoWorker(func() VideoDecoder { return fd }, latency.New(), onFrame, 8)
	defer vw.Close()

	// First non-key frame gets picked up by the decode loop and blocks
	// inside Decode, so subsequent pushes accumulate in the queue.
	vw.HandleFrame(&wire.VideoFrame{Display: 2, IsKeyFrame: false, Data: []byte{1}}, time.Now())
	time.Sleep(50 * time.Millisecond) // let the decode loop pick up frame 1 and block

	vw.HandleFrame(&wire.VideoFrame{Display: 2, IsKeyFrame: false, Data: []byte{2}}, time.Now())
	vw.HandleFrame(&wire.VideoFrame{Display: 2, IsKeyFrame: false, Data: []byte{3}}, time.Now())

	if got := vw.QueueLen(2); got != 2 {
		t.Fatalf("QueueLen = %d, want 2 (one frame in-flight, two queued)", got)
	}
	close(fd.unblock)
}

type blockingDecoder struct {
	unblock chan struct{}
}

func (d *blockingDecoder) Decode(encoded []byte, keyFrame bool) ([]byte, int32, int32, error) {
	<-d.unblock
	return []byte{1}, 1, 1, nil
}
func (d *blockingDecoder) Reset() {}

func TestVideoWorkerResetClearsDecoderAndQueue(t *testing.T) {
	fd := &fakeDecoder{}
	onFrame := func(display int32, rgba []byte, w, h int32) {}
	vw := NewVideoWorker(func() VideoDecoder { return fd }, latency.New(), onFrame, 8)
	defer vw.Close()

	vw.HandleFrame(&wire.VideoFrame{Display: 3, IsKeyFrame: true, Data: []byte{1}}, time.Now())
	vw.Reset(3)
	if got := vw.QueueLen(3); got != 0 {
		t.Fatalf("QueueLen after reset = %d, want 0", got)
	}
}
