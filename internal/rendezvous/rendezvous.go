// Package rendezvous implements the discovery client (C2): it dials a set
// of rendezvous hosts, races them for the first live connection, and
// exchanges a PunchHoleRequest/PunchHoleResponse or RequestRelay/
// RelayResponse pair to learn how to reach a peer.
package rendezvous

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/mtls"
	"github.com/meshdesk/client/internal/wire"
)

var log = logging.L("rendezvous")

// Config configures a Client.
type Config struct {
	// Hosts are ws:// or wss:// rendezvous server URLs, raced in parallel;
	// the first to establish a connection is used.
	Hosts []string
	// DialTimeout bounds each individual host dial. Defaults to 5s.
	DialTimeout time.Duration
	// ClientCertPEM/ClientKeyPEM configure an optional client certificate
	// for wss:// hosts that require mutual TLS, built once via
	// internal/mtls.BuildTLSConfig. Both empty means the dialer's default
	// TLS config (or no TLS at all, for ws:// hosts).
	ClientCertPEM string
	ClientKeyPEM  string
}

// Client discovers how to reach a peer via one or more rendezvous servers.
type Client struct {
	cfg       Config
	tlsConfig *tls.Config
}

// New creates a Client from cfg. If cfg carries a client cert/key pair, it
// is parsed immediately so a malformed pair fails fast at startup rather
// than on the first dial; parse failures are logged and the client falls
// back to dialing without a client certificate.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	tlsConfig, err := mtls.BuildTLSConfig(cfg.ClientCertPEM, cfg.ClientKeyPEM)
	if err != nil {
		log.Warn("rendezvous client cert invalid, dialing without mTLS", "error", err)
	} else {
		c.tlsConfig = tlsConfig
	}
	return c
}

// Result is the outcome of a successful punch-hole exchange: exactly one of
// Direct or Relay is set.
type Result struct {
	Direct *DirectResult
	Relay  *RelayResult
}

// DirectResult describes a peer reachable by direct hole-punched dial.
type DirectResult struct {
	PeerAddr   string
	PeerNat    wire.NatType
	IsLocal    bool
	SignedIDPk []byte
	RelayHint  string
}

// RelayResult describes a relay session to fall back to.
type RelayResult struct {
	UUID        string
	RelayServer string
	PK          []byte
}

// FailureError wraps a rendezvous-reported punch-hole failure such as
// IdNotExist or Offline. These are fatal for the current attempt.
type FailureError struct {
	Failure wire.PunchHoleFailure
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("rendezvous: punch hole failed: %s", e.Failure)
}

// IsIPv4Literal reports whether peerID is itself a dotted-quad IPv4
// address. When true, the caller should skip rendezvous dialing entirely
// and dial the relay port on that address directly.
func IsIPv4Literal(peerID string) bool {
	ip := net.ParseIP(peerID)
	return ip != nil && ip.To4() != nil
}

// PunchHole sends a PunchHoleRequest and classifies the reply, retrying up
// to 3 times with a growing per-attempt deadline of attempt*6s. A
// rendezvous-reported failure (wrong id, offline, license issue) is fatal
// and returned immediately without further retries.
func (c *Client) PunchHole(ctx context.Context, peerID string, token []byte, natType wire.NatType, licenceKey string, connType wire.ConnType) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		deadline := time.Duration(attempt) * 6 * time.Second
		attemptCtx, cancel := context.WithTimeout(ctx, deadline)
		result, err := c.punchHoleOnce(attemptCtx, peerID, token, natType, licenceKey, connType)
		cancel()
		if err == nil {
			return result, nil
		}
		var failErr *FailureError
		if errors.As(err, &failErr) {
			return nil, err
		}
		lastErr = err
		log.Warn("punch hole attempt failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("rendezvous: all attempts failed: %w", lastErr)
}

func (c *Client) punchHoleOnce(ctx context.Context, peerID string, token []byte, natType wire.NatType, licenceKey string, connType wire.ConnType) (*Result, error) {
	conn, err := c.dialRace(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := &wire.RendezvousMessage{PunchHoleRequest: &wire.PunchHoleRequest{
		PeerID: peerID, Token: token, NatType: natType, LicenceKey: licenceKey, ConnType: connType,
	}}
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.MarshalRendezvous(req)); err != nil {
		return nil, fmt.Errorf("rendezvous: send punch hole request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read response: %w", err)
	}

	resp, err := wire.UnmarshalRendezvous(data)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: parse response: %w", err)
	}

	switch {
	case resp.PunchHoleResponse != nil:
		ph := resp.PunchHoleResponse
		if ph.Failure != wire.FailureNone {
			return nil, &FailureError{Failure: ph.Failure}
		}
		if ph.SocketAddr == "" {
			return nil, fmt.Errorf("rendezvous: empty socket address in success response")
		}
		return &Result{Direct: &DirectResult{
			PeerAddr: ph.SocketAddr, PeerNat: ph.PeerNatType, IsLocal: ph.IsLocal,
			SignedIDPk: ph.SignedIDPk, RelayHint: ph.RelayHint,
		}}, nil
	case resp.RelayResponse != nil:
		r := resp.RelayResponse
		return &Result{Relay: &RelayResult{UUID: r.UUID, RelayServer: r.RelayServer, PK: r.PK}}, nil
	default:
		return nil, fmt.Errorf("rendezvous: unexpected response variant")
	}
}

// dialRace dials every configured host concurrently and returns the first
// to connect, closing the rest. The candidate set is meant to be refreshed
// by the caller between PunchHole calls (e.g. dropping hosts that keep
// losing the race), which is why Hosts is plain config rather than
// internal state.
func (c *Client) dialRace(ctx context.Context) (*websocket.Conn, error) {
	if len(c.cfg.Hosts) == 0 {
		return nil, fmt.Errorf("rendezvous: no hosts configured")
	}

	type dialResult struct {
		conn *websocket.Conn
		err  error
	}
	results := make(chan dialResult, len(c.cfg.Hosts))
	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout(), TLSClientConfig: c.tlsConfig}

	for _, host := range c.cfg.Hosts {
		host := host
		go func() {
			conn, _, err := dialer.DialContext(ctx, host, nil)
			results <- dialResult{conn: conn, err: err}
		}()
	}

	var firstErr error
	var winner *websocket.Conn
	for i := 0; i < len(c.cfg.Hosts); i++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if winner == nil {
			winner = r.conn
		} else {
			r.conn.Close()
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("rendezvous: no host reachable: %w", firstErr)
	}
	return winner, nil
}

func (c *Client) dialTimeout() time.Duration {
	if c.cfg.DialTimeout > 0 {
		return c.cfg.DialTimeout
	}
	return 5 * time.Second
}
