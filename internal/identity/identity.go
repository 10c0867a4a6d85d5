// Package identity owns this machine's own ed25519 keypair and numeric peer
// id: generated once on first run, persisted alongside the per-peer config
// store, and reused across invocations so other peers keep recognizing this
// machine.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
)

// Identity is this machine's durable connection identity. PrivateKey is kept
// as a bare ed25519.PrivateKey rather than wrapped in secmem.SecureString.
// The handshake does not sign with it; it only verifies the peer's signed id.
type Identity struct {
	ID         string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

func dir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MeshDesk")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MeshDesk")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "meshdesk")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "meshdesk")
	}
}

func idPath() string  { return filepath.Join(dir(), "id") }
func keyPath() string { return filepath.Join(dir(), "id_ed25519") }

// Load reads the persisted identity, generating and persisting a fresh one
// on first run.
func Load() (*Identity, error) {
	if err := os.MkdirAll(dir(), 0700); err != nil {
		return nil, fmt.Errorf("identity: mkdir: %w", err)
	}

	idBytes, idErr := os.ReadFile(idPath())
	keyBytes, keyErr := os.ReadFile(keyPath())
	if idErr == nil && keyErr == nil {
		priv, err := base64.StdEncoding.DecodeString(string(keyBytes))
		if err != nil || len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("identity: malformed private key at %s", keyPath())
		}
		sk := ed25519.PrivateKey(priv)
		return &Identity{
			ID:         string(idBytes),
			PublicKey:  sk.Public().(ed25519.PublicKey),
			PrivateKey: sk,
		}, nil
	}

	return generate()
}

func generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	id, err := randomNumericID()
	if err != nil {
		return nil, fmt.Errorf("identity: generate id: %w", err)
	}

	if err := os.WriteFile(idPath(), []byte(id), 0600); err != nil {
		return nil, fmt.Errorf("identity: write id: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(priv)
	if err := os.WriteFile(keyPath(), []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("identity: write key: %w", err)
	}

	return &Identity{ID: id, PublicKey: pub, PrivateKey: priv}, nil
}

// randomNumericID produces a 9-digit numeric id in the peer-id style used
// throughout the wire protocol (e.g. "123 456 789" when displayed).
func randomNumericID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100_000_000), nil
}
