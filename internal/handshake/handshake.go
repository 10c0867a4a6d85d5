// Package handshake implements the two-phase connection handshake (C3):
// signed-identity verification against the rendezvous server's well-known
// public key, followed by a sealed ephemeral key exchange that installs a
// symmetric key into the framed transport (C1).
package handshake

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/secmem"
	"github.com/meshdesk/client/internal/transport"
	"github.com/meshdesk/client/internal/wire"
)

var log = logging.L("handshake")

const (
	signatureSize  = ed25519.SignatureSize
	longTermPkSize = ed25519.PublicKeySize
)

// Config carries the timeouts and well-known key the engine needs.
type Config struct {
	// RendezvousPubKey verifies the signed_id_pk the rendezvous server
	// vouches for.
	RendezvousPubKey ed25519.PublicKey
	// PeerID is the id this connection claims to be; verified against the
	// signed identity.
	PeerID string
	// ReadTimeout bounds waiting for the peer's SignedId message.
	ReadTimeout time.Duration
	// ConnectTimeout bounds sending the sealed PublicKey reply.
	ConnectTimeout time.Duration
}

// Result reports whether encryption was installed and, if so, the peer's
// long-term identity key.
type Result struct {
	// Sealed is true once a symmetric key has been installed into the
	// transport. False means the connection degraded to unsealed mode
	// because the signed identity didn't match — still usable, just
	// unauthenticated, to preserve connectivity with old rendezvous hosts.
	Sealed bool
	// PeerLongTermPk is the peer's long-term public key, present whenever
	// the signed identity was at least parseable (regardless of Sealed).
	PeerLongTermPk []byte
}

// SignSignedID builds the signed_id_pk blob a rendezvous server attaches to
// a PunchHoleResponse: an ed25519 signature over (peerID || peerLongTermPk)
// made with the rendezvous's private key, followed by the long-term key
// itself. Exported for rendezvous-server-side test fixtures.
func SignSignedID(rendezvousPriv ed25519.PrivateKey, peerID string, peerLongTermPk []byte) []byte {
	msg := append([]byte(peerID), peerLongTermPk...)
	sig := ed25519.Sign(rendezvousPriv, msg)
	out := make([]byte, 0, len(sig)+len(peerLongTermPk))
	out = append(out, sig...)
	out = append(out, peerLongTermPk...)
	return out
}

// verifySignedID splits signedIDPk into its signature and long-term-key
// parts and verifies the signature covers (peerID || longTermPk) under
// rendezvousPubKey.
func verifySignedID(rendezvousPubKey ed25519.PublicKey, peerID string, signedIDPk []byte) (longTermPk []byte, ok bool) {
	if len(signedIDPk) <= signatureSize {
		return nil, false
	}
	sig := signedIDPk[:signatureSize]
	longTermPk = signedIDPk[signatureSize:]
	msg := append([]byte(peerID), longTermPk...)
	return longTermPk, ed25519.Verify(rendezvousPubKey, msg, sig)
}

// Run performs the two-phase handshake over conn: it waits for the peer's
// SignedId frame, verifies it against cfg, and either installs a sealed
// symmetric key into conn or proceeds unsealed.
func Run(conn *transport.Conn, cfg Config) (*Result, error) {
	raw, err := conn.NextTimeout(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("handshake: waiting for signed id: %w", err)
	}
	msg, err := wire.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("handshake: parse signed id frame: %w", err)
	}
	if msg.SignedId == nil {
		return nil, fmt.Errorf("handshake: expected SignedId frame, got %+v", msg)
	}

	longTermPk, ok := verifySignedID(cfg.RendezvousPubKey, cfg.PeerID, msg.SignedId.PublicKey)
	if !ok {
		log.Warn("signed identity mismatch, degrading to unsealed connection", "peer_id", cfg.PeerID)
		empty := wire.Marshal(&wire.Message{})
		if err := conn.Send(empty); err != nil {
			return nil, fmt.Errorf("handshake: send unsealed marker: %w", err)
		}
		return &Result{Sealed: false, PeerLongTermPk: longTermPk}, nil
	}

	rawSymKey := make([]byte, 32)
	if _, err := rand.Read(rawSymKey); err != nil {
		return nil, fmt.Errorf("handshake: generate symmetric key: %w", err)
	}
	// symKey never outlives this call as a bare slice: it's wrapped the
	// instant it's generated and zeroed the instant both the seal and
	// conn.SetKey have consumed it.
	symKey := secmem.NewSecureString(string(rawSymKey))
	for i := range rawSymKey {
		rawSymKey[i] = 0
	}
	defer symKey.Zero()

	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("handshake: generate ephemeral keypair: %w", err)
	}
	// The ephemeral box secret key is single-use by construction (a fresh
	// keypair per connection, sealing exactly one message): wrap it in the
	// same secmem discipline and wipe the raw array the box package handed
	// back once the seal below is done with it.
	ephSecret := secmem.NewSecureString(string(ephPriv[:]))
	defer ephSecret.Zero()
	defer func() {
		for i := range ephPriv {
			ephPriv[i] = 0
		}
	}()

	var peerKey [32]byte
	copy(peerKey[:], longTermPk)

	// Sealing uses a zero nonce: safe here only because the asymmetric
	// keypair is freshly generated per connection and never reused, so the
	// (key, nonce) pair sealing the symmetric key is never repeated.
	var zeroNonce [24]byte
	sealed := box.Seal(nil, []byte(symKey.Reveal()), &zeroNonce, &peerKey, ephPriv)

	pubKeyMsg := &wire.Message{PublicKey: &wire.PublicKey{
		AsymmetricValue: ephPub[:],
		SymmetricValue:  sealed,
	}}

	if err := conn.Unwrap().SetWriteDeadline(time.Now().Add(cfg.ConnectTimeout)); err != nil {
		return nil, fmt.Errorf("handshake: set write deadline: %w", err)
	}
	defer conn.Unwrap().SetWriteDeadline(time.Time{})

	if err := conn.Send(wire.Marshal(pubKeyMsg)); err != nil {
		return nil, fmt.Errorf("handshake: send public key: %w", err)
	}

	if err := conn.SetKey([]byte(symKey.Reveal()), []byte(symKey.Reveal())); err != nil {
		return nil, fmt.Errorf("handshake: install symmetric key: %w", err)
	}

	return &Result{Sealed: true, PeerLongTermPk: longTermPk}, nil
}
