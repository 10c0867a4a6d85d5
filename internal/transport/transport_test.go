package transport

import (
	"net"
	"testing"
	"time"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestSendNextRoundTripPlaintext(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	go func() {
		if err := a.Send([]byte("hello")); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := b.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestSendNextRoundTripEncrypted(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	if err := a.SetKey(key, key); err != nil {
		t.Fatalf("SetKey a: %v", err)
	}
	if err := b.SetKey(key, key); err != nil {
		t.Fatalf("SetKey b: %v", err)
	}

	go func() {
		if err := a.Send([]byte("secret")); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := b.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(got) != "secret" {
		t.Fatalf("got %q, want secret", got)
	}
}

func TestEncryptedMultipleFramesAdvanceNonceCounter(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	key := make([]byte, 32)
	if err := a.SetKey(key, key); err != nil {
		t.Fatalf("SetKey a: %v", err)
	}
	if err := b.SetKey(key, key); err != nil {
		t.Fatalf("SetKey b: %v", err)
	}

	msgs := []string{"one", "two", "three"}
	go func() {
		for _, m := range msgs {
			if err := a.Send([]byte(m)); err != nil {
				t.Errorf("Send: %v", err)
			}
		}
	}()

	for _, want := range msgs {
		got, err := b.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestNextTimeoutExpires(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()
	_ = a

	_, err := b.NextTimeout(50 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCloseThenSendReturnsErrClosed(t *testing.T) {
	a, b := pipeConns(t)
	defer b.Close()
	a.Close()

	if err := a.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMalformedFrameLengthRejected(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	go func() {
		// Write a length header claiming a frame larger than MaxFrameSize.
		header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
		a.conn.Write(header)
	}()

	_, err := b.Next()
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestSetRawAllowsSendBytes(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	a.SetRaw()
	go func() {
		if err := a.SendBytes([]byte("raw-bytes")); err != nil {
			t.Errorf("SendBytes: %v", err)
		}
	}()

	buf := make([]byte, len("raw-bytes"))
	if _, err := b.conn.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "raw-bytes" {
		t.Fatalf("got %q, want raw-bytes", buf)
	}
}

func TestSetKeyTwiceReturnsErrAlreadyKeyed(t *testing.T) {
	a, b := pipeConns(t)
	defer a.Close()
	defer b.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	if err := a.SetKey(key, key); err != nil {
		t.Fatalf("first SetKey: %v", err)
	}
	if err := a.SetKey(key, key); err != ErrAlreadyKeyed {
		t.Fatalf("second SetKey error = %v, want ErrAlreadyKeyed", err)
	}
}
