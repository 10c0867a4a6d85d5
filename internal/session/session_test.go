package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/meshdesk/client/internal/filexfer"
	"github.com/meshdesk/client/internal/logincfg"
	"github.com/meshdesk/client/internal/media"
	"github.com/meshdesk/client/internal/peerconfig"
	"github.com/meshdesk/client/internal/transport"
	"github.com/meshdesk/client/internal/wire"
)

type fakeDecoder struct{ calls int }

func (d *fakeDecoder) Decode(encoded []byte, keyFrame bool) ([]byte, int32, int32, error) {
	d.calls++
	return []byte{0xBE, 0xEF}, 4, 3, nil
}
func (d *fakeDecoder) Reset() {}

func newTestSession(t *testing.T) (*Session, *transport.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	conn := transport.New(a)
	peerConn := transport.New(b)

	cfg := peerconfig.Default("123456789")
	login, err := logincfg.New(cfg, wire.ConnDefault)
	if err != nil {
		t.Fatalf("logincfg.New: %v", err)
	}

	s := New(Config{
		Conn:               conn,
		Login:              login,
		Files:              filexfer.NewManager(),
		MyID:               "987654321",
		MyName:             "tester",
		Version:            "1.0.0",
		Round:              NewConnectionRound(),
		NewVideoDecoder:    func() media.VideoDecoder { return &fakeDecoder{} },
		VideoQueueCapacity: 4,
		RecvTimeout:        200 * time.Millisecond,
	})
	return s, peerConn
}

func sendFromPeer(t *testing.T, peerConn *transport.Conn, m *wire.Message) {
	t.Helper()
	if err := peerConn.Send(wire.Marshal(m)); err != nil {
		t.Fatalf("peer send: %v", err)
	}
}

func TestSessionLoginFlowSendsLoginRequest(t *testing.T) {
	s, peerConn := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	sendFromPeer(t, peerConn, &wire.Message{Hash: &wire.Hash{Salt: []byte("s"), Challenge: []byte("c")}})

	buf, err := peerConn.NextTimeout(time.Second)
	if err != nil {
		t.Fatalf("waiting for login request: %v", err)
	}
	resp, err := wire.Unmarshal(buf)
	if err != nil {
		t.Fatalf("unmarshal login request: %v", err)
	}
	if resp.LoginRequest == nil {
		t.Fatalf("expected a LoginRequest, got %+v", resp)
	}
	if resp.LoginRequest.MyID != "987654321" {
		t.Errorf("MyID = %q, want 987654321", resp.LoginRequest.MyID)
	}

	s.ui <- UICommand{Close: true}
	if _, err := peerConn.NextTimeout(time.Second); err != nil {
		t.Fatalf("waiting for close frame: %v", err)
	}
	<-done
}

func TestSessionConnectionReadyOnPeerInfo(t *testing.T) {
	s, peerConn := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go s.Run(ctx)

	sendFromPeer(t, peerConn, &wire.Message{LoginResponse: &wire.LoginResponse{
		PeerInfo: &wire.PeerInfo{Version: "1.2.3", Features: []string{"clipboard"}},
	}})

	select {
	case ev := <-s.Events():
		if ev.ConnectionReady == nil {
			t.Fatalf("expected ConnectionReady event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnectionReady event")
	}

	s.ui <- UICommand{Close: true}
}

func TestSessionTimesOutAfterSilence(t *testing.T) {
	s, _ := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Run(ctx)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestSessionStaleRoundExitsCleanly(t *testing.T) {
	s, _ := newTestSession(t)
	// Bump the round past what the session captured at creation, simulating
	// a reconnect elsewhere invalidating this session's loop.
	s.round.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Run(ctx)
	if err != nil {
		t.Fatalf("expected clean exit on stale round, got %v", err)
	}
}

func TestSessionFileResponseDispatchedToManager(t *testing.T) {
	s, peerConn := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	job, err := s.files.AddJob(filexfer.Write, t.TempDir()+"/out.bin", "remote.bin", false)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	job.TotalSize = 4

	go s.Run(ctx)

	sendFromPeer(t, peerConn, &wire.Message{FileResponse: &wire.FileResponse{
		JobID: job.ID,
		Block: &wire.FileBlock{Offset: 0, Data: []byte{1, 2, 3, 4}},
	}})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if job.Status == filexfer.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != filexfer.StatusCompleted {
		t.Fatalf("job status = %v, want StatusCompleted", job.Status)
	}

	s.ui <- UICommand{Close: true}
}

func TestSessionToggleRoundTrips(t *testing.T) {
	s, peerConn := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go s.Run(ctx)

	s.ui <- UICommand{Toggle: &ToggleCommand{Name: logincfg.ToggleDisableClipboard, On: true}}

	buf, err := peerConn.NextTimeout(time.Second)
	if err != nil {
		t.Fatalf("waiting for toggle option frame: %v", err)
	}
	m, err := wire.Unmarshal(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Misc == nil || m.Misc.Option == nil {
		t.Fatalf("expected Misc.Option frame, got %+v", m)
	}
	if !m.Misc.Option.Toggles[logincfg.ToggleDisableClipboard] {
		t.Errorf("expected disable-clipboard toggle set true")
	}
	if !s.login.Config().DisableClipboard {
		t.Errorf("expected DisableClipboard applied to config")
	}

	s.ui <- UICommand{Close: true}
}
