package orchestrator

import (
	"testing"
	"time"

	"github.com/meshdesk/client/internal/wire"
)

func defaultPolicy() Policy {
	return Policy{
		ConnectTimeout: 10 * time.Second,
		PunchTime:      1 * time.Second,
		MyNatType:      wire.NatAsymmetric,
	}
}

func TestComputeTimeoutLocalOrSymmetricPeerIsFast(t *testing.T) {
	p := defaultPolicy()
	if got := computeTimeout(p, true, wire.NatAsymmetric, true, 0); got != time.Second {
		t.Fatalf("peerLocal: got %v, want 1s", got)
	}
	if got := computeTimeout(p, false, wire.NatSymmetric, true, 0); got != time.Second {
		t.Fatalf("peerNat symmetric: got %v, want 1s", got)
	}
}

func TestComputeTimeoutNoRelayHintUsesConnectTimeout(t *testing.T) {
	p := defaultPolicy()
	got := computeTimeout(p, false, wire.NatAsymmetric, false, 0)
	if got != p.ConnectTimeout {
		t.Fatalf("got %v, want %v", got, p.ConnectTimeout)
	}
}

func TestComputeTimeoutBothAsymmetricNoPriorFailures(t *testing.T) {
	p := defaultPolicy()
	got := computeTimeout(p, false, wire.NatAsymmetric, true, 0)
	if got != p.ConnectTimeout {
		t.Fatalf("got %v, want %v", got, p.ConnectTimeout)
	}
}

func TestComputeTimeoutBothAsymmetricWithPriorFailuresUsesPunchSchedule(t *testing.T) {
	p := defaultPolicy()
	got := computeTimeout(p, false, wire.NatAsymmetric, true, 1)
	want := p.PunchTime * 6
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestComputeTimeoutMySideSymmetricIsFast(t *testing.T) {
	p := defaultPolicy()
	p.MyNatType = wire.NatSymmetric
	got := computeTimeout(p, false, wire.NatAsymmetric, true, 0)
	if got != time.Second {
		t.Fatalf("got %v, want 1s", got)
	}
}

func TestComputeTimeoutFallsBackToPunchScheduleWhenUnresolved(t *testing.T) {
	p := defaultPolicy()
	p.MyNatType = wire.NatUnknown
	got := computeTimeout(p, false, wire.NatUnknown, true, 0)
	want := p.PunchTime * 6
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = computeTimeout(p, false, wire.NatUnknown, true, 1)
	want = p.PunchTime * 3
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestComputeTimeoutNeverGoesBelowOneSecond(t *testing.T) {
	p := defaultPolicy()
	p.PunchTime = 10 * time.Millisecond
	p.MyNatType = wire.NatUnknown
	got := computeTimeout(p, false, wire.NatUnknown, true, 0)
	if got != time.Second {
		t.Fatalf("got %v, want floor of 1s", got)
	}
}
