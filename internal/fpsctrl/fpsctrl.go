// Package fpsctrl implements the adaptive FPS controller (C8): a 1Hz status
// tick that watches each display's decode queue depth and observed decode
// rate, decides whether to request a new encoder FPS cap from the peer, and
// issues bounded refresh requests to cut tearing when a display's queue
// backs up.
package fpsctrl

import "time"

// DisplayStats is the per-display input the status tick reads each second.
type DisplayStats struct {
	QueueLen     int
	DecodeFPS    float64
	LastRefresh  time.Time
	HasRefreshed bool
}

// clampFPS bounds a custom_fps configuration value to [5,120], defaulting
// to 30 when unset.
func clampFPS(customFPS int) int {
	if customFPS == 0 {
		customFPS = 30
	}
	if customFPS < 5 {
		customFPS = 5
	}
	if customFPS > 120 {
		customFPS = 120
	}
	return customFPS
}

// Controller tracks the per-display FPS/refresh state across status ticks.
type Controller struct {
	customFPS int
	isDirect  bool

	lastAutoFPS  map[string]int
	idleCounter  map[string]int
	firstTime    map[string]bool
	refreshCount int
}

// MaxRefreshesPerSession caps refresh_video requests, per spec §4.8.
const MaxRefreshesPerSession = 20

// New returns a Controller for a session with the given custom-fps
// configuration (0 selects the default of 30) and direct/relay flag.
func New(customFPS int, isDirect bool) *Controller {
	return &Controller{
		customFPS:   clampFPS(customFPS),
		isDirect:    isDirect,
		lastAutoFPS: map[string]int{},
		idleCounter: map[string]int{},
		firstTime:   map[string]bool{},
	}
}

// FPSDecision is the outcome of one display's status-tick FPS evaluation.
type FPSDecision struct {
	Send   bool
	AutoFPS int
}

// Tick evaluates one display's stats and returns whether to send an
// option{custom_fps=auto} update, per spec §4.8's decrease/increase rules.
func (c *Controller) Tick(display string, stats DisplayStats) FPSDecision {
	direct := 0.9
	if !c.isDirect {
		direct = 0.8
	}
	limited := stats.DecodeFPS * direct
	if limited > float64(c.customFPS) {
		limited = float64(c.customFPS)
	}

	lastAuto, seen := c.lastAutoFPS[display]
	if !seen {
		c.firstTime[display] = true
	}

	decrease := (stats.QueueLen > 1 && float64(lastAuto) > limited) ||
		float64(stats.QueueLen) > maxF(1, limited/2)

	if stats.QueueLen <= 1 {
		c.idleCounter[display]++
	} else {
		c.idleCounter[display] = 0
	}
	increase := float64(lastAuto+3) <= limited && c.idleCounter[display] > 3

	if !(c.firstTime[display] || decrease || increase) {
		return FPSDecision{Send: false}
	}

	auto := limited
	if decrease && limited < float64(stats.QueueLen) {
		auto = limited / 2
	}
	if auto < 1 {
		auto = 1
	}

	autoInt := int(auto)
	c.lastAutoFPS[display] = autoInt
	c.firstTime[display] = false
	return FPSDecision{Send: true, AutoFPS: autoInt}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ShouldRefresh decides whether display should be sent a refresh_video
// request this tick: its queue must exceed min(decode_fps, capacity/2),
// and either it has never been refreshed or the last refresh was over 10s
// ago. Honors the session-wide MaxRefreshesPerSession cap.
func (c *Controller) ShouldRefresh(stats DisplayStats, capacity int, now time.Time) bool {
	if c.refreshCount >= MaxRefreshesPerSession {
		return false
	}
	threshold := stats.DecodeFPS
	half := float64(capacity) / 2
	if half < threshold {
		threshold = half
	}
	if float64(stats.QueueLen) <= threshold {
		return false
	}
	if stats.HasRefreshed && now.Sub(stats.LastRefresh) < 10*time.Second {
		return false
	}
	c.refreshCount++
	return true
}
