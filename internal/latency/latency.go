// Package latency implements the latency-synced audio gate (C6): it tracks
// the most recently received video frame's remote timestamp and the local
// instant it arrived, and from that decides whether an incoming audio frame
// is close enough to the video timeline to be worth playing.
package latency

import (
	"sync"
	"time"
)

// Hysteresis band bounds, per spec §4.6: once audio is allowed, it takes a
// swing of more than 500ms to disallow it again; once disallowed, it takes
// a swing back under 100ms to re-allow it. This band prevents the gate from
// flapping on every frame near a single threshold.
const (
	disallowBand = 500 * time.Millisecond
	allowBand    = 100 * time.Millisecond
)

// Controller holds the shared video timeline and the current admission
// decision for audio. Safe for concurrent use by the video and audio
// workers.
type Controller struct {
	mu sync.Mutex

	lastVideoRemoteTS time.Duration
	updateTime        time.Time
	allowAudio        bool
}

// New returns a Controller with audio disallowed until the first video
// frame establishes a timeline.
func New() *Controller {
	return &Controller{}
}

// OnVideoFrame records a newly-received video frame's remote timestamp and
// the local instant it arrived.
func (c *Controller) OnVideoFrame(remoteTS time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastVideoRemoteTS = remoteTS
	c.updateTime = now
}

// AllowAudio reports whether an audio frame with remote timestamp
// remoteTS, arriving at now, should be played: it updates the hysteresis
// state and returns the post-update decision.
func (c *Controller) AllowAudio(remoteTS time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.updateTime.IsZero() {
		return false
	}

	expected := now.Sub(c.updateTime) + c.lastVideoRemoteTS
	latency := expected - remoteTS
	if latency < 0 {
		latency = -latency
	}

	if c.allowAudio {
		if latency > disallowBand {
			c.allowAudio = false
		}
	} else {
		if latency < allowBand {
			c.allowAudio = true
		}
	}
	return c.allowAudio
}
