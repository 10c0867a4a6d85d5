package media

import (
	"testing"

	"github.com/meshdesk/client/internal/wire"
)

func TestDisplayQueuePushOrOverwriteDropsOldest(t *testing.T) {
	q := newDisplayQueue(2)
	q.PushOrOverwrite(&wire.VideoFrame{Timestamp: 1})
	q.PushOrOverwrite(&wire.VideoFrame{Timestamp: 2})
	q.PushOrOverwrite(&wire.VideoFrame{Timestamp: 3})

	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Timestamp != 2 || got[1].Timestamp != 3 {
		t.Fatalf("expected oldest entry dropped, got %+v", got)
	}
}

func TestDisplayQueueDrainEmptiesQueue(t *testing.T) {
	q := newDisplayQueue(5)
	q.PushOrOverwrite(&wire.VideoFrame{Timestamp: 1})
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	q.Drain()
	if q.Len() != 0 {
		t.Fatalf("Len after drain = %d, want 0", q.Len())
	}
}
