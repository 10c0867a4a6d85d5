package session

import "github.com/meshdesk/client/internal/wire"

// UICommand is one instruction arriving from the UI's unbounded command
// channel. Exactly one field is set per instance, mirroring the Message
// union's oneof-over-pointer-fields convention.
type UICommand struct {
	Login      *LoginCommand
	Toggle     *ToggleCommand
	SendFiles  *SendFilesCommand
	CancelJob  *CancelJobCommand
	Auth2FA    *Auth2FACommand
	Close      bool
}

// LoginCommand supplies a freshly-typed password and whether to remember it.
type LoginCommand struct {
	Password string
	Remember bool
}

// ToggleCommand flips one named option, per logincfg's toggle set.
type ToggleCommand struct {
	Name string
	On   bool
}

// SendFilesCommand starts an upload of a local path to a remote path.
type SendFilesCommand struct {
	LocalPath  string
	RemotePath string
	IsDir      bool
}

// CancelJobCommand cancels an in-flight file-transfer job.
type CancelJobCommand struct {
	JobID int64
}

// Auth2FACommand submits a two-factor code in response to a Require2FA event.
type Auth2FACommand struct {
	Code            string
	TrustThisDevice bool
}

// UIEvent is one notification delivered to the UI. Exactly one field is set.
type UIEvent struct {
	ConnectionReady *ConnectionReadyEvent
	ErrorBox        *wire.MessageBox
	RePromptPassword bool
	Require2FA      bool
	Cursor          *CursorEvent
	VideoFrame      *VideoFrameEvent
	Clipboard       *wire.Clipboard
	FileProgress    *FileProgressEvent
	Status          *StatusEvent
	Closed          *ClosedEvent
}

// ConnectionReadyEvent reports a completed handshake's security/path summary.
type ConnectionReadyEvent struct {
	Secure bool
	Direct bool
}

// CursorEvent carries whichever of the three cursor sub-messages arrived.
type CursorEvent struct {
	Data     *wire.CursorData
	ID       *uint64
	Position *wire.CursorPosition
}

// VideoFrameEvent carries one decoded frame, ready to blit.
type VideoFrameEvent struct {
	Display int32
	RGBA    []byte
	Width   int32
	Height  int32
}

// FileProgressEvent mirrors filexfer.Progress for UI consumption.
type FileProgressEvent struct {
	JobID       int64
	Transferred int64
	TotalSize   int64
	Speed       float64
	Status      int
}

// StatusEvent is the 1Hz per-display decode-fps report.
type StatusEvent struct {
	Display   string
	DecodeFPS float64
	AutoFPS   int
}

// ClosedEvent reports why the session loop exited.
type ClosedEvent struct {
	Reason string
}
