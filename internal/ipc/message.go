package ipc

import "encoding/json"

// Message type constants for the single-instance bus.
const (
	TypeConnectRequest  = "connect_request"
	TypeConnectResponse = "connect_response"
	TypePing            = "ping"
	TypePong            = "pong"
)

// MaxMessageSize is the maximum size of a JSON bus message.
const MaxMessageSize = 64 * 1024

// ProtocolVersion is the current bus protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all bus messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// ConnectRequest asks the instance that owns the bus to open a new session
// for the given peer. The bus owner ("meshdesk bridge") logs the request and
// replies Accepted without opening a session; no CLI invocation sends it.
type ConnectRequest struct {
	PeerID       string `json:"peerId"`
	ConnType     string `json:"connType"` // "default", "file-transfer", "port-forward", "rdp"
	LocalPort    int    `json:"localPort,omitempty"`
	RemoteHost   string `json:"remoteHost,omitempty"`
	RemotePort   int    `json:"remotePort,omitempty"`
	RequesterPID int    `json:"requesterPid"`
}

// ConnectResponse is returned by the bus owner after accepting (or
// rejecting) a ConnectRequest.
type ConnectResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
