// Package logincfg implements the per-session login-config engine (C5): it
// wraps a peerconfig.Config with the volatile state that only lives for the
// duration of one connection attempt (remembered password bytes, connection
// type, peer version/features, session id), and builds the outgoing
// LoginRequest and OptionMessage frames from the two combined.
package logincfg

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/meshdesk/client/internal/peerconfig"
	"github.com/meshdesk/client/internal/secmem"
	"github.com/meshdesk/client/internal/wire"
)

// Handler owns one peer's PeerConfig plus this session's volatile state. It
// wraps the canonical copy the way the session loop's LoginConfigHandler
// does: only the session owner calls the mutating methods, everyone else
// reads a snapshot.
type Handler struct {
	cfg *peerconfig.Config

	connType    wire.ConnType
	peerVersion string
	peerFeatures map[string]bool
	sessionID   uint64

	remember           bool
	rememberedPassword *secmem.SecureString
}

// New creates a Handler for a freshly loaded peer profile and a fresh random
// session id, for the given connection type.
func New(cfg *peerconfig.Config, connType wire.ConnType) (*Handler, error) {
	sessionID, err := randomSessionID()
	if err != nil {
		return nil, fmt.Errorf("logincfg: session id: %w", err)
	}
	return &Handler{
		cfg:          cfg,
		connType:     connType,
		peerFeatures: map[string]bool{},
		sessionID:    sessionID,
	}, nil
}

func randomSessionID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// Config returns the underlying persisted profile.
func (h *Handler) Config() *peerconfig.Config { return h.cfg }

// SetPeerInfo records the peer's advertised version and feature set, learned
// from the LoginResponse's PeerInfo, for use by KeyboardMode and option
// construction.
func (h *Handler) SetPeerInfo(version string, features map[string]bool) {
	h.peerVersion = version
	h.peerFeatures = features
}

// KeyboardMode returns the configured mode if one was ever explicitly set
// (i.e. persisted in the profile), else the version-dependent default.
func (h *Handler) KeyboardMode() peerconfig.KeyboardMode {
	if h.cfg.KeyboardMode != "" {
		return h.cfg.KeyboardMode
	}
	return peerconfig.KeyboardModeForVersion(h.peerVersion)
}

// DerivePassword computes the remembered password from the user-supplied
// plaintext and the server's salt: sha256(user_password || salt). The
// caller persists the result into h.cfg.PasswordHash and calls Save.
func DerivePassword(userPassword string, salt []byte) []byte {
	sum := sha256.Sum256(append([]byte(userPassword), salt...))
	return sum[:]
}

// LoginPayload derives the login-request password bytes from a remembered
// password and the server's challenge: sha256(remembered_password ||
// challenge). Both the freshly-typed-password path and the
// remembered-password path converge here once a Hash{salt,challenge} has
// been received.
func LoginPayload(rememberedPassword, challenge []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, rememberedPassword...), challenge...))
	return sum[:]
}

// SetRemember records whether this login should persist PasswordHash on
// success.
func (h *Handler) SetRemember(remember bool) { h.remember = remember }

// HandleHash derives the login password from hash.Salt and hash.Challenge:
// if a password hash is already remembered for this peer, it is used
// directly as the remembered password (the salt step already happened on a
// prior login); otherwise plaintextPassword is hashed with the salt first.
// Returns the bytes to send as LoginRequest.PasswordBytes.
func (h *Handler) HandleHash(hash *wire.Hash, plaintextPassword string) []byte {
	remembered := h.cfg.PasswordHash
	if len(remembered) == 0 {
		remembered = DerivePassword(plaintextPassword, hash.Salt)
	}
	if h.rememberedPassword != nil {
		h.rememberedPassword.Zero()
	}
	h.rememberedPassword = secmem.NewSecureString(string(remembered))
	if h.remember {
		h.cfg.PasswordHash = remembered
	}
	return LoginPayload(remembered, hash.Challenge)
}

// BuildLoginRequest assembles the LoginRequest for this session: identity
// fields plus the option message and, depending on connType, a
// FileTransfer or PortForward sub-message.
func (h *Handler) BuildLoginRequest(myID, myName, version string, passwordBytes []byte, pf *wire.PortForwardOption) *wire.LoginRequest {
	req := &wire.LoginRequest{
		Username:      h.cfg.PeerID,
		PasswordBytes: passwordBytes,
		MyID:          myID,
		MyName:        myName,
		SessionID:     h.sessionID,
		Version:       version,
		Option:        h.BuildOption(nil),
	}
	switch h.connType {
	case wire.ConnFileTransfer:
		req.FileTransfer = &wire.FileTransferOption{Dir: "", ShowHidden: false}
	case wire.ConnPortForward:
		req.PortForward = pf
	}
	return req
}

// BuildOption constructs an OptionMessage carrying every non-default
// toggle, the configured image quality/fps, and the caller's current
// supported-codec list (nil if not yet known).
func (h *Handler) BuildOption(supportedCodecs []string) *wire.OptionMessage {
	toggles := map[string]bool{}
	for name, on := range h.nonDefaultToggles() {
		toggles[name] = on
	}
	return &wire.OptionMessage{
		ImageQuality:       string(h.cfg.ImageQuality),
		CustomImageQuality: int32(h.cfg.CustomImageQuality),
		CustomFPS:          int32(h.cfg.CustomFPS),
		Toggles:            toggles,
		SupportedCodecs:    supportedCodecs,
	}
}

// nonDefaultToggles returns only the boolean toggles that differ from the
// all-off default, since the wire option message only ever lists deviations.
func (h *Handler) nonDefaultToggles() map[string]bool {
	out := map[string]bool{}
	add := func(name string, v bool) {
		if v {
			out[name] = true
		}
	}
	add("show-remote-cursor", h.cfg.ShowRemoteCursor)
	add("disable-audio", h.cfg.DisableAudio)
	add("disable-clipboard", h.cfg.DisableClipboard)
	add("lock-after-session-end", h.cfg.LockAfterSession)
	add("privacy-mode", h.cfg.PrivacyMode)
	add("enable-file-transfer", h.cfg.EnableFileTransfer)
	add("show-quality-monitor", h.cfg.QualityMonitor)
	add("view-only", h.cfg.ViewOnly)
	add("swap-left-right-mouse", h.cfg.SwapLeftRight)
	add("reverse-mouse-wheel", h.cfg.ReverseWheel)
	return out
}

// Toggle names understood by ApplyToggle. block-input/unblock-input are
// send-only: they change nothing in the persisted config, only in what gets
// sent to the peer.
const (
	ToggleShowRemoteCursor = "show-remote-cursor"
	ToggleDisableAudio     = "disable-audio"
	ToggleDisableClipboard = "disable-clipboard"
	ToggleLockAfterSession = "lock-after-session-end"
	TogglePrivacyMode      = "privacy-mode"
	ToggleFileTransfer     = "enable-file-transfer"
	ToggleQualityMonitor   = "show-quality-monitor"
	ToggleViewOnly         = "view-only"
	ToggleSwapLeftRight    = "swap-left-right-mouse"
	ToggleReverseWheel     = "reverse-mouse-wheel"
	ToggleBlockInput       = "block-input"
	ToggleUnblockInput     = "unblock-input"
)

// ApplyToggle updates the persisted config for a UI-driven toggle flip and
// returns the Option misc message to send to the peer reflecting just this
// change. block-input/unblock-input are send-only: they flip nothing in
// cfg, they only ever get sent.
func (h *Handler) ApplyToggle(name string, on bool) (*wire.OptionMessage, error) {
	switch name {
	case ToggleShowRemoteCursor:
		h.cfg.ShowRemoteCursor = on
	case ToggleDisableAudio:
		h.cfg.DisableAudio = on
	case ToggleDisableClipboard:
		h.cfg.DisableClipboard = on
	case ToggleLockAfterSession:
		h.cfg.LockAfterSession = on
	case TogglePrivacyMode:
		h.cfg.PrivacyMode = on
	case ToggleFileTransfer:
		h.cfg.EnableFileTransfer = on
	case ToggleQualityMonitor:
		h.cfg.QualityMonitor = on
	case ToggleViewOnly:
		h.cfg.ViewOnly = on
	case ToggleSwapLeftRight:
		h.cfg.SwapLeftRight = on
	case ToggleReverseWheel:
		h.cfg.ReverseWheel = on
	case ToggleBlockInput, ToggleUnblockInput:
		return &wire.OptionMessage{Toggles: map[string]bool{name: true}}, nil
	default:
		return nil, fmt.Errorf("logincfg: unknown toggle %q", name)
	}
	if err := peerconfig.Save(h.cfg); err != nil {
		return nil, fmt.Errorf("logincfg: save after toggle %q: %w", name, err)
	}
	return &wire.OptionMessage{Toggles: map[string]bool{name: on}}, nil
}

// SessionID returns this session's random nonce, used to correlate the
// login request with its response and to tag outgoing messages.
func (h *Handler) SessionID() uint64 { return h.sessionID }

// ClearRememberedPassword zeros this session's in-memory remembered
// password, e.g. after the peer rejects it with "Wrong Password" and the
// UI must prompt for a new one.
func (h *Handler) ClearRememberedPassword() {
	if h.rememberedPassword != nil {
		h.rememberedPassword.Zero()
		h.rememberedPassword = nil
	}
}
