package handshake

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/meshdesk/client/internal/transport"
	"github.com/meshdesk/client/internal/wire"
)

func TestRunSealedKeyExchangeSuccess(t *testing.T) {
	rendezvousPub, rendezvousPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	peerPub, peerPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("box.GenerateKey: %v", err)
	}

	peerID := "peer-123"
	signedIDPk := SignSignedID(rendezvousPriv, peerID, peerPub[:])

	a, b := net.Pipe()
	clientConn := transport.New(a)
	peerConn := transport.New(b)
	defer clientConn.Close()
	defer peerConn.Close()

	// Simulate the remote peer: send SignedId, then read back our PublicKey
	// and unseal the symmetric key to confirm it matches what the client
	// installed.
	recoveredKey := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		signedIDMsg := &wire.Message{SignedId: &wire.SignedId{ID: peerID, PublicKey: signedIDPk}}
		if err := peerConn.Send(wire.Marshal(signedIDMsg)); err != nil {
			errs <- err
			return
		}
		raw, err := peerConn.NextTimeout(2 * time.Second)
		if err != nil {
			errs <- err
			return
		}
		reply, err := wire.Unmarshal(raw)
		if err != nil {
			errs <- err
			return
		}
		if reply.PublicKey == nil {
			errs <- nil
			recoveredKey <- nil
			return
		}
		var ephPub [32]byte
		copy(ephPub[:], reply.PublicKey.AsymmetricValue)
		var zeroNonce [24]byte
		opened, ok := box.Open(nil, reply.PublicKey.SymmetricValue, &zeroNonce, &ephPub, peerPriv)
		if !ok {
			errs <- nil
			recoveredKey <- nil
			return
		}
		errs <- nil
		recoveredKey <- opened
	}()

	result, err := Run(clientConn, Config{
		RendezvousPubKey: rendezvousPub,
		PeerID:           peerID,
		ReadTimeout:      2 * time.Second,
		ConnectTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Sealed {
		t.Fatal("expected Sealed=true")
	}

	if err := <-errs; err != nil {
		t.Fatalf("peer goroutine: %v", err)
	}
	key := <-recoveredKey
	if key == nil {
		t.Fatal("peer failed to unseal symmetric key")
	}
	if len(key) != 32 {
		t.Fatalf("recovered key length = %d, want 32", len(key))
	}
}

func TestRunSignedIDMismatchDegradesUnsealed(t *testing.T) {
	_, rendezvousPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	wrongPub, _, err := ed25519.GenerateKey(rand.Reader) // mismatched verifier key
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	peerPub, _, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("box.GenerateKey: %v", err)
	}

	peerID := "peer-123"
	signedIDPk := SignSignedID(rendezvousPriv, peerID, peerPub[:])

	a, b := net.Pipe()
	clientConn := transport.New(a)
	peerConn := transport.New(b)
	defer clientConn.Close()
	defer peerConn.Close()

	go func() {
		signedIDMsg := &wire.Message{SignedId: &wire.SignedId{ID: peerID, PublicKey: signedIDPk}}
		peerConn.Send(wire.Marshal(signedIDMsg))
	}()

	result, err := Run(clientConn, Config{
		RendezvousPubKey: wrongPub, // doesn't match rendezvousPriv, so verification fails
		PeerID:           peerID,
		ReadTimeout:      2 * time.Second,
		ConnectTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Sealed {
		t.Fatal("expected Sealed=false on signature mismatch")
	}

	raw, err := peerConn.NextTimeout(2 * time.Second)
	if err != nil {
		t.Fatalf("expected unsealed marker frame: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty marker frame, got %d bytes", len(raw))
	}
}

func TestRunTimesOutWaitingForSignedID(t *testing.T) {
	a, b := net.Pipe()
	clientConn := transport.New(a)
	defer clientConn.Close()
	defer b.Close()

	_, err := Run(clientConn, Config{
		RendezvousPubKey: make([]byte, ed25519.PublicKeySize),
		PeerID:           "peer-123",
		ReadTimeout:      50 * time.Millisecond,
		ConnectTimeout:   time.Second,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
