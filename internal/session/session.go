package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meshdesk/client/internal/filexfer"
	"github.com/meshdesk/client/internal/fpsctrl"
	"github.com/meshdesk/client/internal/latency"
	"github.com/meshdesk/client/internal/logincfg"
	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/media"
	"github.com/meshdesk/client/internal/transport"
	"github.com/meshdesk/client/internal/wire"
)

var log = logging.L("session")

// Config bundles everything a Session needs. The caller supplies the
// platform-specific media backends (decoder factories, audio sink); Session
// stays platform-agnostic.
type Config struct {
	Conn  *transport.Conn
	Login *logincfg.Handler
	Files *filexfer.Manager

	MyID, MyName, Version string
	PlaintextPassword      string
	IsDirect               bool
	Round                  *ConnectionRound

	NewVideoDecoder    media.DecoderFactory
	AudioDecoder       media.AudioDecoder
	AudioSink          media.AudioSink
	Resample           media.Resampler
	VideoQueueCapacity int
	RecvTimeout        time.Duration
}

// Session owns one connection's transport and per-connection state: the
// media workers, the FPS controller, the file-transfer manager, and the
// login-config handler. Run multiplexes its five event sources until a
// termination condition fires.
type Session struct {
	conn  *transport.Conn
	login *logincfg.Handler
	files *filexfer.Manager

	myID, myName, version string
	plaintextPassword      string
	isDirect               bool
	round                  *ConnectionRound
	myRound                int64
	recvTimeout            time.Duration

	video   *media.VideoWorker
	audio   *media.AudioWorker
	fps     *fpsctrl.Controller
	latency *latency.Controller
	metrics *media.StreamMetrics

	ui        chan UICommand
	events    chan UIEvent
	clipboard chan wire.Clipboard

	loggedIn               bool
	restartingRemoteDevice bool
	lastVoiceToken         uint64
	lastActive             map[int32]time.Time
	firstVideoFrame        bool
}

// New constructs a Session ready for Run. cfg.Round may be nil, in which
// case the session never observes a stale round (standalone use, e.g. tests).
func New(cfg Config) *Session {
	if cfg.VideoQueueCapacity == 0 {
		cfg.VideoQueueCapacity = 8
	}
	if cfg.RecvTimeout == 0 {
		cfg.RecvTimeout = 30 * time.Second
	}
	if cfg.Round == nil {
		cfg.Round = NewConnectionRound()
	}

	s := &Session{
		conn:              cfg.Conn,
		login:             cfg.Login,
		files:             cfg.Files,
		myID:              cfg.MyID,
		myName:            cfg.MyName,
		version:           cfg.Version,
		plaintextPassword: cfg.PlaintextPassword,
		isDirect:           cfg.IsDirect,
		round:              cfg.Round,
		myRound:            cfg.Round.Current(),
		recvTimeout:        cfg.RecvTimeout,
		latency:            latency.New(),
		ui:                 make(chan UICommand, 64),
		events:             make(chan UIEvent, 64),
		clipboard:          make(chan wire.Clipboard, 16),
		lastActive:         map[int32]time.Time{},
		firstVideoFrame:    true,
	}
	s.metrics = media.NewStreamMetrics()
	s.video = media.NewVideoWorker(cfg.NewVideoDecoder, s.latency, s.onVideoFrame, cfg.VideoQueueCapacity)
	s.audio = media.NewAudioWorker(cfg.AudioDecoder, cfg.AudioSink, s.latency, cfg.Resample)
	s.fps = fpsctrl.New(s.login.Config().CustomFPS, s.isDirect)
	return s
}

// UICommands returns the send side of the UI command channel.
func (s *Session) UICommands() chan<- UICommand { return s.ui }

// Events returns the receive side of the UI event channel.
func (s *Session) Events() <-chan UIEvent { return s.events }

// ClipboardIn returns the send side of the local-clipboard-watcher channel.
func (s *Session) ClipboardIn() chan<- wire.Clipboard { return s.clipboard }

func (s *Session) emit(e UIEvent) {
	select {
	case s.events <- e:
	default:
		log.Warn("ui event dropped, channel full")
	}
}

type peerMsg struct {
	msg *wire.Message
	err error
}

func (s *Session) readPeer(out chan<- peerMsg) {
	for {
		buf, err := s.conn.Next()
		if err != nil {
			out <- peerMsg{err: err}
			return
		}
		m, err := wire.Unmarshal(buf)
		if err != nil {
			out <- peerMsg{err: err}
			return
		}
		out <- peerMsg{msg: m}
	}
}

// Run multiplexes the peer stream, UI commands, the clipboard channel, and
// the file/status tick timers until a termination condition is reached. It
// returns nil on a clean UI-initiated close, a stale-round exit, a close
// reason sent by the peer, or a peer close while restartingRemoteDevice is
// set, and a non-nil error for every other termination.
func (s *Session) Run(ctx context.Context) error {
	defer s.video.Close()
	defer close(s.events)

	peerCh := make(chan peerMsg, 16)
	go s.readPeer(peerCh)

	recvTimer := time.NewTimer(s.recvTimeout)
	defer recvTimer.Stop()
	fileTick := time.NewTimer(s.files.TickInterval())
	defer fileTick.Stop()
	statusTick := time.NewTicker(time.Second)
	defer statusTick.Stop()

	for {
		if s.round.Current() != s.myRound {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case pm := <-peerCh:
			if pm.err != nil {
				return s.handlePeerClosed(pm.err)
			}
			recvTimer.Reset(s.recvTimeout)
			term, err := s.dispatch(pm.msg)
			if term {
				return err
			}

		case cmd := <-s.ui:
			term, err := s.handleUICommand(cmd)
			if term {
				return err
			}

		case cb := <-s.clipboard:
			if s.login.Config().DisableClipboard {
				continue
			}
			if err := s.send(&wire.Message{Clipboard: &cb}); err != nil {
				log.Warn("send clipboard failed", "error", err)
			}

		case <-fileTick.C:
			s.tickFiles()
			fileTick.Reset(s.files.TickInterval())

		case <-statusTick.C:
			s.tickStatus()

		case <-recvTimer.C:
			s.emit(UIEvent{ErrorBox: &wire.MessageBox{Kind: "error", Title: "Connection Error", Text: "Timeout"}})
			return fmt.Errorf("session: timeout: no data received for %s", s.recvTimeout)
		}
	}
}

func (s *Session) send(m *wire.Message) error {
	return s.conn.Send(wire.Marshal(m))
}

func (s *Session) handlePeerClosed(err error) error {
	if s.restartingRemoteDevice {
		s.emit(UIEvent{Closed: &ClosedEvent{Reason: "restarting remote device"}})
		return nil
	}
	s.emit(UIEvent{Closed: &ClosedEvent{Reason: "Reset by the peer"}})
	return fmt.Errorf("session: peer closed: %w", err)
}

// SendFileAction implements filexfer.Sender: it converts a queued action
// into its wire.FileAction and sends it over the transport.
func (s *Session) SendFileAction(jobID int64, action any) error {
	payload, ok := action.(filexfer.FileActionPayload)
	if !ok {
		return fmt.Errorf("session: unrecognized file action %T", action)
	}
	return s.send(&wire.Message{FileAction: payload.ToWire(jobID)})
}

func (s *Session) tickFiles() {
	for _, p := range s.files.Tick(time.Now()) {
		s.emit(UIEvent{FileProgress: &FileProgressEvent{
			JobID:       p.JobID,
			Transferred: p.Transferred,
			TotalSize:   p.TotalSize,
			Speed:       p.Speed,
			Status:      int(p.Status),
		}})
	}
}

func (s *Session) tickStatus() {
	now := time.Now()
	for display, lastActive := range s.lastActive {
		key := fmt.Sprintf("%d", display)
		stats := fpsctrl.DisplayStats{
			QueueLen: s.video.QueueLen(display),
		}
		_ = lastActive
		decision := s.fps.Tick(key, stats)
		if decision.Send {
			if err := s.send(&wire.Message{Misc: &wire.Misc{Option: &wire.OptionMessage{CustomFPS: int32(decision.AutoFPS)}}}); err != nil {
				log.Warn("send fps option failed", "display", display, "error", err)
				continue
			}
			s.emit(UIEvent{Status: &StatusEvent{Display: key, DecodeFPS: stats.DecodeFPS, AutoFPS: decision.AutoFPS}})
		}
	}
}

// --- peer message dispatch ---

func (s *Session) dispatch(m *wire.Message) (terminate bool, err error) {
	switch {
	case m.Hash != nil:
		return false, s.handleHash(m.Hash)
	case m.LoginResponse != nil:
		return s.handleLoginResponse(m.LoginResponse)
	case m.VideoFrame != nil:
		s.handleVideoFrame(m.VideoFrame)
		return false, nil
	case m.AudioFrame != nil:
		s.handleAudioFrame(m.AudioFrame)
		return false, nil
	case m.CursorData != nil:
		s.emit(UIEvent{Cursor: &CursorEvent{Data: m.CursorData}})
		return false, nil
	case m.CursorId != nil:
		id := m.CursorId.ID
		s.emit(UIEvent{Cursor: &CursorEvent{ID: &id}})
		return false, nil
	case m.CursorPosition != nil:
		s.emit(UIEvent{Cursor: &CursorEvent{Position: m.CursorPosition}})
		return false, nil
	case m.Clipboard != nil:
		if !s.login.Config().DisableClipboard {
			s.emit(UIEvent{Clipboard: m.Clipboard})
		}
		return false, nil
	case m.MultiClipboards != nil:
		if !s.login.Config().DisableClipboard {
			for i := range m.MultiClipboards.Clipboards {
				s.emit(UIEvent{Clipboard: &m.MultiClipboards.Clipboards[i]})
			}
		}
		return false, nil
	case m.Cliprdr != nil:
		if s.login.Config().EnableFileTransfer {
			s.emit(UIEvent{Clipboard: &wire.Clipboard{Format: "cliprdr", Content: []byte(strings.Join(m.Cliprdr.FileList, "\x00"))}})
		}
		return false, nil
	case m.FileResponse != nil:
		if err := s.files.ApplyFileResponse(m.FileResponse, s); err != nil {
			log.Warn("apply file response failed", "job_id", m.FileResponse.JobID, "error", err)
		}
		return false, nil
	case m.Misc != nil:
		return s.handleMisc(m.Misc)
	case m.TestDelay != nil:
		return false, s.handleTestDelay(m.TestDelay)
	case m.VoiceCallRequest != nil:
		s.handleVoiceCallRequest(m.VoiceCallRequest)
		return false, nil
	case m.VoiceCallResponse != nil:
		s.handleVoiceCallResponse(m.VoiceCallResponse)
		return false, nil
	}
	return false, nil
}

func (s *Session) handleHash(h *wire.Hash) error {
	passwordBytes := s.login.HandleHash(h, s.plaintextPassword)
	req := s.login.BuildLoginRequest(s.myID, s.myName, s.version, passwordBytes, nil)
	return s.send(&wire.Message{LoginRequest: req})
}

func (s *Session) handleLoginResponse(r *wire.LoginResponse) (terminate bool, err error) {
	if s.loggedIn {
		// Login-response handling is single-shot per session; duplicates ignored.
		return false, nil
	}

	if r.PeerInfo != nil {
		s.loggedIn = true
		s.login.SetPeerInfo(r.PeerInfo.Version, featureSet(r.PeerInfo.Features))

		cfg := s.login.Config()
		if cfg.PrivacyMode {
			if opt, err := s.login.ApplyToggle(logincfg.TogglePrivacyMode, true); err == nil {
				_ = s.send(&wire.Message{Misc: &wire.Misc{Option: opt}})
			}
		}

		s.emit(UIEvent{ConnectionReady: &ConnectionReadyEvent{Secure: true, Direct: s.isDirect}})
		return false, nil
	}

	if r.Error == "Require 2FA" {
		s.emit(UIEvent{Require2FA: true})
		return false, nil
	}

	if r.Error == "Wrong Password" {
		s.login.Config().PasswordHash = nil
		s.login.ClearRememberedPassword()
		s.emit(UIEvent{RePromptPassword: true})
		return false, nil
	}

	s.emit(UIEvent{ErrorBox: &wire.MessageBox{Kind: "error", Title: "Login Error", Text: r.Error}})
	return true, fmt.Errorf("session: login error: %s", r.Error)
}

func featureSet(features []string) map[string]bool {
	out := make(map[string]bool, len(features))
	for _, f := range features {
		out[f] = true
	}
	return out
}

func (s *Session) handleVideoFrame(f *wire.VideoFrame) {
	now := time.Now()
	if s.firstVideoFrame {
		s.firstVideoFrame = false
		// Adapt-size and initial control messages: nothing further needed
		// here since the decoder reports its own width/height per frame.
	}
	s.lastActive[f.Display] = now
	if err := s.video.HandleFrame(f, now); err != nil {
		log.Warn("video frame handling failed", "display", f.Display, "error", err)
	}
}

func (s *Session) handleAudioFrame(f *wire.AudioFrame) {
	if s.login.Config().DisableAudio {
		return
	}
	if err := s.audio.HandleFrame(f, time.Now()); err != nil {
		log.Warn("audio frame handling failed", "error", err)
	}
}

func (s *Session) onVideoFrame(display int32, rgba []byte, width, height int32) {
	s.emit(UIEvent{VideoFrame: &VideoFrameEvent{Display: display, RGBA: rgba, Width: width, Height: height}})
}

func (s *Session) handleMisc(m *wire.Misc) (terminate bool, err error) {
	if m.PermissionInfo != nil {
		if m.PermissionInfo.FileTransferRevoked {
			s.emit(UIEvent{ErrorBox: &wire.MessageBox{Kind: "info", Title: "Permission", Text: "file transfer permission revoked"}})
			return true, fmt.Errorf("session: file transfer permission revoked")
		}
	}
	if m.HasSwitchDisplay {
		s.video.Reset(m.SwitchDisplay)
	}
	if m.HasCloseReason {
		s.emit(UIEvent{Closed: &ClosedEvent{Reason: m.CloseReason}})
		return true, nil
	}
	if m.ElevationResponse != "" {
		s.emit(UIEvent{ErrorBox: &wire.MessageBox{Kind: "info", Title: "Elevation", Text: m.ElevationResponse}})
	}
	return false, nil
}

func (s *Session) handleTestDelay(t *wire.TestDelay) error {
	if t.FromClient {
		return nil
	}
	return s.send(&wire.Message{TestDelay: &wire.TestDelay{
		Timestamp:  t.Timestamp,
		FromClient: true,
		LastDelay:  t.LastDelay,
	}})
}

func (s *Session) handleVoiceCallRequest(r *wire.VoiceCallRequest) {
	if !r.IsConnect {
		// Stop local voice stream: nothing to tear down until a real audio
		// capture device is wired in; the flag alone suffices for the UI.
		s.emit(UIEvent{ErrorBox: &wire.MessageBox{Kind: "info", Title: "Voice", Text: "call ended"}})
	}
}

func (s *Session) handleVoiceCallResponse(r *wire.VoiceCallResponse) {
	if r.RequestTimestamp != s.lastVoiceToken {
		log.Warn("voice call response token mismatch, ignored", "got", r.RequestTimestamp, "want", s.lastVoiceToken)
		return
	}
}

// --- UI command dispatch ---

func (s *Session) handleUICommand(cmd UICommand) (terminate bool, err error) {
	switch {
	case cmd.Close:
		_ = s.send(&wire.Message{Misc: &wire.Misc{HasCloseReason: true, CloseReason: ""}})
		return true, nil

	case cmd.Login != nil:
		s.plaintextPassword = cmd.Login.Password
		s.login.SetRemember(cmd.Login.Remember)
		return false, nil

	case cmd.Toggle != nil:
		opt, err := s.login.ApplyToggle(cmd.Toggle.Name, cmd.Toggle.On)
		if err != nil {
			return false, nil
		}
		if err := s.send(&wire.Message{Misc: &wire.Misc{Option: opt}}); err != nil {
			log.Warn("send toggle failed", "name", cmd.Toggle.Name, "error", err)
		}
		return false, nil

	case cmd.SendFiles != nil:
		if _, err := s.files.SendFiles(filexfer.Read, cmd.SendFiles.LocalPath, cmd.SendFiles.RemotePath, cmd.SendFiles.IsDir, s); err != nil {
			log.Warn("send files failed", "error", err)
		}
		return false, nil

	case cmd.CancelJob != nil:
		if err := s.files.CancelJob(cmd.CancelJob.JobID, s); err != nil {
			log.Warn("cancel job failed", "job_id", cmd.CancelJob.JobID, "error", err)
		}
		return false, nil

	case cmd.Auth2FA != nil:
		if err := s.send(&wire.Message{Auth2FA: &wire.Auth2FA{Code: cmd.Auth2FA.Code, TrustThisDevice: cmd.Auth2FA.TrustThisDevice}}); err != nil {
			log.Warn("send 2fa failed", "error", err)
		}
		return false, nil
	}
	return false, nil
}
