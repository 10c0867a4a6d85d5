// Package transport implements the framed, optionally-encrypted byte stream
// that carries wire.Message frames between two peers (C1). A Conn starts in
// plaintext length-prefixed mode; once the handshake (internal/handshake)
// derives a shared key, SetKey switches it to AEAD-sealed frames. SetRaw
// switches a Conn permanently into an unframed byte pipe for port forwarding
// (C11), after which Send/Next are no longer valid.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/meshdesk/client/internal/logging"
)

var log = logging.L("transport")

// MaxFrameSize bounds a single frame's plaintext length, guarding against a
// malformed or hostile length header driving an unbounded allocation.
const MaxFrameSize = 64 * 1024 * 1024

var (
	// ErrClosed is returned by Send/Next once the Conn has been closed.
	ErrClosed = errors.New("transport: closed")
	// ErrTimeout is returned by NextTimeout when the deadline elapses.
	ErrTimeout = errors.New("transport: timeout")
	// ErrMalformed is returned when a frame's length header is out of bounds.
	ErrMalformed = errors.New("transport: malformed frame")
	// ErrAlreadyKeyed is returned by a second call to SetKey. A symmetric
	// key may be installed at most once per Conn; re-keying would reset
	// both counters to zero and reuse nonces already spent on the first key.
	ErrAlreadyKeyed = errors.New("transport: symmetric key already installed")
)

// Conn frames messages over a net.Conn as [4-byte BE length][payload], where
// payload is either plaintext or, once a key is set, a ChaCha20-Poly1305
// sealed ciphertext. The nonce is not sent: each direction keeps its own
// counter, written little-endian into the 12-byte nonce.
type Conn struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool

	keyMu   sync.RWMutex
	sendAEAD, recvAEAD cipher
	sendCounter, recvCounter uint64

	raw bool
}

// cipher is the minimal AEAD surface transport needs; satisfied by
// golang.org/x/crypto/chacha20poly1305's cipher.AEAD.
type cipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// New wraps an already-dialed or already-accepted net.Conn.
func New(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// SetKey derives a ChaCha20-Poly1305 AEAD from a 32-byte shared secret and
// enables frame encryption in both directions. sendKey and recvKey may be
// the same secret (symmetric) or distinct per-direction keys negotiated by
// the handshake; passing distinct keys avoids nonce reuse when both sides
// independently start their counters at zero.
//
// A key may be installed at most once: a second call returns ErrAlreadyKeyed
// rather than resetting the per-direction counters, which would otherwise
// reuse already-spent nonces against the new key.
func (c *Conn) SetKey(sendKey, recvKey []byte) error {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.sendAEAD != nil || c.recvAEAD != nil {
		return ErrAlreadyKeyed
	}
	send, err := chacha20poly1305.New(sendKey)
	if err != nil {
		return fmt.Errorf("transport: set key: %w", err)
	}
	recv, err := chacha20poly1305.New(recvKey)
	if err != nil {
		return fmt.Errorf("transport: set key: %w", err)
	}
	c.sendAEAD = send
	c.recvAEAD = recv
	c.sendCounter = 0
	c.recvCounter = 0
	return nil
}

// SetRaw records that the Conn carries unframed passthrough traffic for port
// forwarding (C11). Send and Next do not check this flag and keep framing;
// raw traffic goes through SendBytes or the net.Conn returned by Unwrap.
func (c *Conn) SetRaw() {
	c.mu.Lock()
	c.raw = true
	c.mu.Unlock()
}

// Unwrap returns the underlying net.Conn, for raw-mode direct io.Copy use.
func (c *Conn) Unwrap() net.Conn { return c.conn }

// LocalAddr returns the connection's local address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// IsIPv4 reports whether the local address is an IPv4 address.
func (c *Conn) IsIPv4() bool {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		host = c.conn.LocalAddr().String()
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Send frames and writes a plaintext message, sealing it first if a key has
// been set.
func (c *Conn) Send(plaintext []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	payload := plaintext
	c.keyMu.RLock()
	aead := c.sendAEAD
	c.keyMu.RUnlock()
	if aead != nil {
		nonce := make([]byte, aead.NonceSize())
		c.keyMu.Lock()
		binary.LittleEndian.PutUint64(nonce, c.sendCounter)
		c.sendCounter++
		c.keyMu.Unlock()
		payload = aead.Seal(nil, nonce, plaintext, nil)
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.conn.Write(header); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("transport: write payload: %w", err)
	}
	return nil
}

// SendBytes writes raw bytes with no framing, for use after SetRaw.
func (c *Conn) SendBytes(b []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// Next blocks until a complete frame is available, decrypting it if a key
// has been set, and returns the plaintext payload.
func (c *Conn) Next() ([]byte, error) {
	return c.next()
}

// NextTimeout is like Next but gives up after d, returning ErrTimeout.
func (c *Conn) NextTimeout(d time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	payload, err := c.next()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return payload, nil
}

func (c *Conn) next() ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		if isClosedErr(err) {
			return nil, ErrClosed
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, ErrMalformed
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		if isClosedErr(err) {
			return nil, ErrClosed
		}
		return nil, err
	}

	c.keyMu.RLock()
	aead := c.recvAEAD
	c.keyMu.RUnlock()
	if aead == nil {
		return payload, nil
	}

	nonce := make([]byte, aead.NonceSize())
	c.keyMu.Lock()
	binary.LittleEndian.PutUint64(nonce, c.recvCounter)
	c.recvCounter++
	c.keyMu.Unlock()

	plaintext, err := aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plaintext, nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// Dial opens a TCP connection to addr with the given timeout and wraps it.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	log.Debug("dialed", "addr", addr)
	return New(conn), nil
}
