package rendezvous

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshdesk/client/internal/wire"
)

var upgrader = websocket.Upgrader{}

// newFakeServer starts an httptest server that upgrades to a WebSocket and
// responds to a PunchHoleRequest with resp.
func newFakeServer(t *testing.T, resp *wire.RendezvousMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, err = conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, wire.MarshalRendezvous(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestPunchHoleSuccessDirect(t *testing.T) {
	srv := newFakeServer(t, &wire.RendezvousMessage{PunchHoleResponse: &wire.PunchHoleResponse{
		SocketAddr: "203.0.113.9:21116", PeerNatType: wire.NatAsymmetric, IsLocal: true, SignedIDPk: []byte{1, 2},
	}})

	c := New(Config{Hosts: []string{wsURL(srv.URL)}})
	result, err := c.PunchHole(context.Background(), "peer1", []byte("tok"), wire.NatAsymmetric, "", wire.ConnDefault)
	if err != nil {
		t.Fatalf("PunchHole: %v", err)
	}
	if result.Direct == nil || result.Direct.PeerAddr != "203.0.113.9:21116" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPunchHoleRelayFallback(t *testing.T) {
	srv := newFakeServer(t, &wire.RendezvousMessage{RelayResponse: &wire.RelayResponse{
		UUID: "u1", RelayServer: "relay.example.com:21117", PK: []byte{9},
	}})

	c := New(Config{Hosts: []string{wsURL(srv.URL)}})
	result, err := c.PunchHole(context.Background(), "peer1", nil, wire.NatSymmetric, "", wire.ConnDefault)
	if err != nil {
		t.Fatalf("PunchHole: %v", err)
	}
	if result.Relay == nil || result.Relay.RelayServer != "relay.example.com:21117" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPunchHoleFailureIsFatalNoRetry(t *testing.T) {
	srv := newFakeServer(t, &wire.RendezvousMessage{PunchHoleResponse: &wire.PunchHoleResponse{
		Failure: wire.FailureIDNotExist,
	}})

	c := New(Config{Hosts: []string{wsURL(srv.URL)}})
	start := time.Now()
	_, err := c.PunchHole(context.Background(), "nonexistent", nil, wire.NatUnknown, "", wire.ConnDefault)
	elapsed := time.Since(start)

	var failErr *FailureError
	if err == nil {
		t.Fatal("expected FailureError")
	}
	if !asFailureError(err, &failErr) {
		t.Fatalf("expected *FailureError, got %T: %v", err, err)
	}
	if failErr.Failure != wire.FailureIDNotExist {
		t.Fatalf("got failure %v, want IDNotExist", failErr.Failure)
	}
	// A single failed attempt should return well under the 6s first-retry
	// deadline, since failures short-circuit the retry loop.
	if elapsed > 5*time.Second {
		t.Fatalf("fatal failure should not retry, took %v", elapsed)
	}
}

func asFailureError(err error, target **FailureError) bool {
	fe, ok := err.(*FailureError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

func TestIsIPv4Literal(t *testing.T) {
	cases := map[string]bool{
		"203.0.113.5": true,
		"peer-abc123": false,
		"::1":         false,
	}
	for in, want := range cases {
		if got := IsIPv4Literal(in); got != want {
			t.Errorf("IsIPv4Literal(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPunchHoleNoHostsConfigured(t *testing.T) {
	c := New(Config{})
	if _, err := c.PunchHole(context.Background(), "peer1", nil, wire.NatUnknown, "", wire.ConnDefault); err == nil {
		t.Fatal("expected error with no hosts configured")
	}
}

func TestNewWithMalformedClientCertFallsBackToNoTLS(t *testing.T) {
	c := New(Config{Hosts: []string{"wss://example.invalid"}, ClientCertPEM: "not pem", ClientKeyPEM: "also not pem"})
	if c.tlsConfig != nil {
		t.Fatal("expected nil tlsConfig after a malformed cert pair")
	}
}

func TestNewWithNoClientCertLeavesTLSConfigNil(t *testing.T) {
	c := New(Config{Hosts: []string{"wss://example.invalid"}})
	if c.tlsConfig != nil {
		t.Fatal("expected nil tlsConfig when no client cert is configured")
	}
}
