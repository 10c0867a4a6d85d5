// Package secmem holds values that must never land in a log line, a
// marshaled config, or a core dump without deliberate effort: remembered
// passwords, session symmetric keys, and ephemeral handshake secrets.
package secmem

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/meshdesk/client/internal/logging"
)

var log = logging.L("secmem")

// SecureString holds sensitive data with best-effort memory zeroing. Go's GC
// may copy or retain the backing array elsewhere, so this is defense in
// depth against accidental exposure (logging, JSON marshaling, %#v dumps),
// not a guarantee against a determined attacker with memory access.
type SecureString struct {
	mu   sync.Mutex
	data []byte

	// warnedOnce is set the first time Reveal is called after Zero, so a
	// use-after-zero bug logs once per value instead of flooding on every
	// call in a retry loop.
	warnedOnce atomic.Bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// Reveal returns the plaintext value. Callers should hold it only as long
// as needed and never store the returned string somewhere longer-lived than
// the SecureString itself. Returns "" once Zero has been called.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		if !s.warnedOnce.Swap(true) {
			log.Warn("secmem: Reveal called after Zero")
		}
		return ""
	}
	return string(s.data)
}

// IsZeroed reports whether Zero has already been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// Zero overwrites the backing byte slice with zeros and drops the reference,
// so the plaintext cannot be recovered through this SecureString again. Call
// it as soon as a secret has served its purpose: after a handshake seals a
// symmetric key, after a login request carrying a password digest is sent.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

// String returns a redacted representation, so a SecureString embedded in a
// struct logged via %v/%s never leaks its contents by accident.
func (s *SecureString) String() string {
	return "[REDACTED]"
}

// GoString returns a redacted representation to prevent accidental logging
// via fmt.Printf("%#v", token).
func (s *SecureString) GoString() string {
	return "[REDACTED]"
}

// Format implements fmt.Formatter so every verb (%s, %v, %q, %x, ...) prints
// the same redacted marker; without it, fmt would quote the Stringer output
// for %q instead of leaving it bare.
func (s *SecureString) Format(f fmt.State, verb rune) {
	io.WriteString(f, "[REDACTED]")
}

// MarshalJSON always emits the redacted marker, never the underlying bytes,
// so a SecureString field embedded in a config struct round-trips safely
// through an accidental json.Marshal of the whole struct.
func (s *SecureString) MarshalJSON() ([]byte, error) {
	return json.Marshal("[REDACTED]")
}

// UnmarshalJSON always fails: a SecureString has no wire representation to
// decode from, and silently accepting "[REDACTED]" as a value would corrupt
// a real secret if ever round-tripped through JSON by mistake.
func (s *SecureString) UnmarshalJSON([]byte) error {
	return fmt.Errorf("secmem: SecureString cannot be unmarshaled from JSON")
}

// MarshalText mirrors MarshalJSON for encoding paths that use
// encoding.TextMarshaler instead (e.g. YAML via a JSON shim).
func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}
