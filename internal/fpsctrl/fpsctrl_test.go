package fpsctrl

import (
	"testing"
	"time"
)

func TestTickFirstCallAlwaysSends(t *testing.T) {
	c := New(30, true)
	d := c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 30})
	if !d.Send {
		t.Fatal("expected first-time tick to send")
	}
	if d.AutoFPS <= 0 {
		t.Fatalf("AutoFPS = %d, want > 0", d.AutoFPS)
	}
}

func TestTickCustomFPSClampedToCeiling(t *testing.T) {
	c := New(30, true)
	d := c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 200})
	// limited = min(200*0.9, 30) = 30
	if d.AutoFPS != 30 {
		t.Fatalf("AutoFPS = %d, want 30 (capped by custom_fps)", d.AutoFPS)
	}
}

func TestTickDirectVsRelayFactor(t *testing.T) {
	cDirect := New(1000, true)
	cRelay := New(1000, false)

	dDirect := cDirect.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 100})
	dRelay := cRelay.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 100})

	if dDirect.AutoFPS <= dRelay.AutoFPS {
		t.Fatalf("direct factor (0.9) should yield a higher cap than relay (0.8): direct=%d relay=%d",
			dDirect.AutoFPS, dRelay.AutoFPS)
	}
}

func TestTickSteadyStateDoesNotResend(t *testing.T) {
	c := New(30, true)
	first := c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 30})
	if !first.Send {
		t.Fatal("expected first tick to send")
	}

	// Same stats again: not first-time, queue small so no decrease, idle
	// counter hasn't exceeded 3 yet so no increase either.
	second := c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 30})
	if second.Send {
		t.Fatal("expected steady-state tick to not resend")
	}
}

func TestTickBackedUpQueueTriggersDecrease(t *testing.T) {
	c := New(30, true)
	c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 30}) // seed lastAuto=27

	d := c.Tick("d0", DisplayStats{QueueLen: 50, DecodeFPS: 30})
	if !d.Send {
		t.Fatal("expected decrease to trigger a send when queue is badly backed up")
	}
}

func TestTickIdleCounterTriggersIncreaseAfterFourIdleTicks(t *testing.T) {
	c := New(120, true)
	// Seed a low lastAutoFPS by starting with a low decode fps.
	c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 10})

	fired := false
	for i := 0; i < 5; i++ {
		if c.Tick("d0", DisplayStats{QueueLen: 0, DecodeFPS: 100}).Send {
			fired = true
		}
	}
	if !fired {
		t.Fatal("expected an increase to eventually fire once idle_counter > 3")
	}
}

func TestShouldRefreshRespectsSessionCap(t *testing.T) {
	c := New(30, true)
	now := time.Now()
	stats := DisplayStats{QueueLen: 100, DecodeFPS: 10}

	count := 0
	for i := 0; i < MaxRefreshesPerSession+5; i++ {
		if c.ShouldRefresh(stats, 20, now.Add(time.Duration(i)*11*time.Second)) {
			count++
		}
	}
	if count != MaxRefreshesPerSession {
		t.Fatalf("refresh count = %d, want %d (session cap)", count, MaxRefreshesPerSession)
	}
}

func TestShouldRefreshRespectsTenSecondCooldown(t *testing.T) {
	c := New(30, true)
	now := time.Now()
	stats := DisplayStats{QueueLen: 100, DecodeFPS: 10}

	if !c.ShouldRefresh(stats, 20, now) {
		t.Fatal("expected first refresh to fire")
	}
	statsAfterRefresh := DisplayStats{QueueLen: 100, DecodeFPS: 10, HasRefreshed: true, LastRefresh: now}
	if c.ShouldRefresh(statsAfterRefresh, 20, now.Add(5*time.Second)) {
		t.Fatal("expected refresh to be suppressed within the 10s cooldown")
	}
	if !c.ShouldRefresh(statsAfterRefresh, 20, now.Add(11*time.Second)) {
		t.Fatal("expected refresh to fire again after the 10s cooldown")
	}
}

func TestShouldRefreshRequiresQueueOverThreshold(t *testing.T) {
	c := New(30, true)
	now := time.Now()
	// QueueLen below min(decode_fps, capacity/2) should not refresh.
	stats := DisplayStats{QueueLen: 1, DecodeFPS: 10}
	if c.ShouldRefresh(stats, 20, now) {
		t.Fatal("expected no refresh when queue is under threshold")
	}
}
