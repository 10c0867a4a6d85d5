// Package orchestrator composes the rendezvous client (C2) and handshake
// engine (C3) into a single connect operation (C4): choosing direct vs
// relay, applying NAT-aware connect timeouts, and tracking the persisted
// direct-connection-failure counter that biases future attempts toward
// relay sooner.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v3"

	"github.com/meshdesk/client/internal/handshake"
	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/peerconfig"
	"github.com/meshdesk/client/internal/rendezvous"
	"github.com/meshdesk/client/internal/transport"
	"github.com/meshdesk/client/internal/wire"
)

var log = logging.L("orchestrator")

// Policy bundles the fixed timeouts the connect-timeout formula needs.
type Policy struct {
	ConnectTimeout time.Duration
	PunchTime      time.Duration
	MyNatType      wire.NatType
}

// computeTimeout implements spec §4.4's connect-timeout decision table.
func computeTimeout(p Policy, peerLocal bool, peerNat wire.NatType, hasRelayHint bool, priorDirectFailures int) time.Duration {
	var timeout time.Duration

	switch {
	case peerLocal || peerNat == wire.NatSymmetric:
		timeout = 1000 * time.Millisecond
	case !hasRelayHint:
		timeout = p.ConnectTimeout
	case peerNat == wire.NatAsymmetric:
		if p.MyNatType == wire.NatAsymmetric {
			timeout = p.ConnectTimeout
			if priorDirectFailures > 0 {
				timeout = p.PunchTime * 6
			}
		} else if p.MyNatType == wire.NatSymmetric {
			timeout = 1000 * time.Millisecond
		}
	}

	if timeout == 0 {
		factor := time.Duration(6)
		if priorDirectFailures > 0 {
			factor = 3
		}
		timeout = p.PunchTime * factor
	}
	if timeout < 1000*time.Millisecond {
		timeout = 1000 * time.Millisecond
	}
	return timeout
}

// Config bundles everything Connect needs.
type Config struct {
	Rendezvous *rendezvous.Client
	Policy     Policy
	Handshake  handshake.Config
	// ForceRelay skips direct dialing entirely (user-requested relay mode).
	ForceRelay bool
	// LocalAddr is the address the rendezvous hole-punch bound, reused for
	// the direct dial so the NAT mapping survives.
	LocalAddr net.Addr
	// StunServer, if set, is probed via iceProbe to double-check a
	// rendezvous-reported is_local hint before committing to the
	// tighter 1s local-peer timeout.
	StunServer string
}

// Result is the established session transport plus whether it's direct.
type Result struct {
	Conn     *transport.Conn
	IsDirect bool
}

// Connect resolves peerID via rendezvous, dials direct or relay per policy,
// runs the handshake, and updates pc's persisted direct-failure
// counter when the direct/relay status changes.
func Connect(ctx context.Context, peerID string, token []byte, licenceKey string, connType wire.ConnType, cfg Config, pc *peerconfig.Config) (*Result, error) {
	var rr *rendezvous.Result
	var err error

	if rendezvous.IsIPv4Literal(peerID) {
		rr = &rendezvous.Result{Relay: &rendezvous.RelayResult{RelayServer: net.JoinHostPort(peerID, relayPort)}}
	} else {
		rr, err = cfg.Rendezvous.PunchHole(ctx, peerID, token, cfg.Policy.MyNatType, licenceKey, connType)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: rendezvous: %w", err)
		}
	}

	if !cfg.ForceRelay && rr.Direct != nil {
		result, err := connectDirect(ctx, cfg, rr.Direct, pc)
		if err == nil {
			peerconfig.ResetDirectFailure(pc)
			return result, nil
		}
		log.Warn("direct connect failed, falling back to relay", "peer_id", peerID, "error", err)
		peerconfig.RecordDirectFailure(pc)
	}

	relayServer := relayPort
	if rr.Relay != nil {
		relayServer = rr.Relay.RelayServer
	} else if rr.Direct != nil && rr.Direct.RelayHint != "" {
		relayServer = rr.Direct.RelayHint
	}
	return connectRelay(ctx, cfg, relayServer)
}

// relayPort is appended to an IPv4-literal peer id when rendezvous is
// skipped entirely, per spec §4.2.
const relayPort = "21117"

func connectDirect(ctx context.Context, cfg Config, d *rendezvous.DirectResult, pc *peerconfig.Config) (*Result, error) {
	priorFailures := 0
	if pc != nil {
		priorFailures = pc.DirectFailureCount
	}

	isLocal := d.IsLocal
	if isLocal && cfg.StunServer != "" {
		if mapped, err := iceProbe(ctx, cfg.StunServer, 2*time.Second); err != nil {
			log.Warn("ice probe failed, trusting rendezvous is_local as-is", "error", err)
		} else if mapped != d.PeerAddr {
			log.Debug("ice probe disagrees with rendezvous is_local hint, treating as non-local", "probed", mapped, "peer_addr", d.PeerAddr)
			isLocal = false
		}
	}

	timeout := computeTimeout(cfg.Policy, isLocal, d.PeerNat, d.RelayHint != "", priorFailures)

	dialer := &net.Dialer{Timeout: timeout}
	if cfg.LocalAddr != nil {
		dialer.LocalAddr = cfg.LocalAddr
	}
	netConn, err := dialer.DialContext(ctx, "tcp", d.PeerAddr)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: direct dial %s: %w", d.PeerAddr, err)
	}

	conn := transport.New(netConn)
	if _, err := handshake.Run(conn, cfg.Handshake); err != nil {
		conn.Close()
		return nil, fmt.Errorf("orchestrator: handshake: %w", err)
	}
	return &Result{Conn: conn, IsDirect: true}, nil
}

// iceProbe sends a single STUN binding request to stunServer and returns the
// host:port the server observed the request arrive from. The orchestrator
// uses this to cross-check a rendezvous-reported is_local hint: if the
// STUN-observed mapping doesn't match the peer address the rendezvous server
// handed back, the two sides aren't actually on the same local network and
// the longer NAT-aware timeout should apply instead of the 1s local fast path.
func iceProbe(ctx context.Context, stunServer string, timeout time.Duration) (string, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "udp", stunServer)
	if err != nil {
		return "", fmt.Errorf("dial stun server %s: %w", stunServer, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return "", fmt.Errorf("build binding request: %w", err)
	}
	if _, err := conn.Write(req.Raw); err != nil {
		return "", fmt.Errorf("send binding request: %w", err)
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("read binding response: %w", err)
	}

	resp := &stun.Message{Raw: buf[:n]}
	if err := resp.Decode(); err != nil {
		return "", fmt.Errorf("decode binding response: %w", err)
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(resp); err != nil {
		return "", fmt.Errorf("read xor-mapped-address: %w", err)
	}
	return net.JoinHostPort(xorAddr.IP.String(), fmt.Sprintf("%d", xorAddr.Port)), nil
}

// connectRelay issues up to 3 relay attempts via distinct sockets, since the
// relay server tracks NAT mappings per-connection.
func connectRelay(ctx context.Context, cfg Config, relayServer string) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		conn, err := transport.Dial(relayServer, cfg.Policy.ConnectTimeout)
		if err != nil {
			lastErr = err
			log.Warn("relay dial attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if _, err := handshake.Run(conn, cfg.Handshake); err != nil {
			conn.Close()
			lastErr = err
			log.Warn("relay handshake attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return &Result{Conn: conn, IsDirect: false}, nil
	}
	return nil, fmt.Errorf("orchestrator: relay connect failed after 3 attempts: %w", lastErr)
}
