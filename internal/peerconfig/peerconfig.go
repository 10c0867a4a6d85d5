// Package peerconfig persists per-peer connection preferences: remembered
// password hash, image quality, toggles, keyboard mode, port-forward list,
// transfer-job metadata and the direct-connection-failure counter that the
// orchestrator passes to its connect-timeout choice.
package peerconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/viper"

	"github.com/meshdesk/client/internal/logging"
)

var log = logging.L("peerconfig")

// ImageQuality selects the bitrate/quality tradeoff for the video stream.
type ImageQuality string

const (
	QualityLow      ImageQuality = "low"
	QualityBalanced ImageQuality = "balanced"
	QualityBest     ImageQuality = "best"
	QualityCustom   ImageQuality = "custom"
)

// KeyboardMode controls how local key events are translated for the peer.
type KeyboardMode string

const (
	KeyboardLegacy    KeyboardMode = "legacy"
	KeyboardMap       KeyboardMode = "map"
	KeyboardTranslate KeyboardMode = "translate"
)

// PortForwardRule describes one local-to-remote TCP tunnel remembered for a peer.
type PortForwardRule struct {
	LocalPort  int    `mapstructure:"local_port" yaml:"local_port"`
	RemoteHost string `mapstructure:"remote_host" yaml:"remote_host"`
	RemotePort int    `mapstructure:"remote_port" yaml:"remote_port"`
}

// TransferJobMeta records a resumable file-transfer job's last-known state,
// keyed by job id in Config.TransferJobs.
type TransferJobMeta struct {
	LocalPath    string `mapstructure:"local_path" yaml:"local_path"`
	RemotePath   string `mapstructure:"remote_path" yaml:"remote_path"`
	IsRemoteToLocal bool `mapstructure:"is_remote_to_local" yaml:"is_remote_to_local"`
	TotalSize    int64  `mapstructure:"total_size" yaml:"total_size"`
	Transferred  int64  `mapstructure:"transferred" yaml:"transferred"`
}

// Config is the persisted, per-peer-id connection profile. One YAML document
// lives on disk per remembered peer, named by id under Dir().
type Config struct {
	PeerID string `mapstructure:"peer_id" yaml:"peer_id"`

	PasswordHash []byte `mapstructure:"password_hash" yaml:"password_hash"`

	ImageQuality       ImageQuality `mapstructure:"image_quality" yaml:"image_quality"`
	CustomImageQuality int          `mapstructure:"custom_image_quality" yaml:"custom_image_quality"`
	CustomFPS          int          `mapstructure:"custom_fps" yaml:"custom_fps"`

	ShowRemoteCursor  bool `mapstructure:"show_remote_cursor" yaml:"show_remote_cursor"`
	DisableAudio      bool `mapstructure:"disable_audio" yaml:"disable_audio"`
	DisableClipboard  bool `mapstructure:"disable_clipboard" yaml:"disable_clipboard"`
	LockAfterSession  bool `mapstructure:"lock_after_session" yaml:"lock_after_session"`
	PrivacyMode       bool `mapstructure:"privacy_mode" yaml:"privacy_mode"`
	EnableFileTransfer bool `mapstructure:"enable_file_transfer" yaml:"enable_file_transfer"`
	QualityMonitor    bool `mapstructure:"quality_monitor" yaml:"quality_monitor"`
	ViewOnly          bool `mapstructure:"view_only" yaml:"view_only"`
	SwapLeftRight     bool `mapstructure:"swap_left_right" yaml:"swap_left_right"`
	ReverseWheel      bool `mapstructure:"reverse_wheel" yaml:"reverse_wheel"`

	KeyboardMode KeyboardMode `mapstructure:"keyboard_mode" yaml:"keyboard_mode"`

	CustomResolutions map[string][2]int `mapstructure:"custom_resolutions" yaml:"custom_resolutions"`

	PortForwards []PortForwardRule          `mapstructure:"port_forwards" yaml:"port_forwards"`
	TransferJobs map[string]TransferJobMeta `mapstructure:"transfer_jobs" yaml:"transfer_jobs"`

	DirectFailureCount int `mapstructure:"direct_failure_count" yaml:"direct_failure_count"`

	Options map[string]string `mapstructure:"options" yaml:"options"`
}

// Default returns a profile seeded with the defaults a never-before-seen
// peer should get.
func Default(peerID string) *Config {
	return &Config{
		PeerID:            peerID,
		ImageQuality:      QualityBalanced,
		ShowRemoteCursor:  true,
		CustomResolutions: map[string][2]int{},
		TransferJobs:      map[string]TransferJobMeta{},
		Options:           map[string]string{},
	}
}

// KeyboardModeForVersion returns the default keyboard mode for a peer
// advertising the given client version: legacy before 1.2.0, map otherwise.
func KeyboardModeForVersion(peerVersion string) KeyboardMode {
	if versionLess(peerVersion, "1.2.0") {
		return KeyboardLegacy
	}
	return KeyboardMap
}

func versionLess(a, b string) bool {
	pa, pb := splitVersion(a), splitVersion(b)
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return false
}

func splitVersion(v string) [3]int {
	var out [3]int
	var part, idx int
	for _, r := range v {
		if r == '.' {
			if idx < 3 {
				out[idx] = part
			}
			idx++
			part = 0
			continue
		}
		if r >= '0' && r <= '9' {
			part = part*10 + int(r-'0')
		}
	}
	if idx < 3 {
		out[idx] = part
	}
	return out
}

var (
	storeMu sync.Mutex
)

// Dir returns the platform-specific directory holding one YAML file per
// remembered peer.
func Dir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MeshDesk", "peers")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MeshDesk", "peers")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "meshdesk", "peers")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "meshdesk", "peers")
	}
}

func pathFor(peerID string) string {
	return filepath.Join(Dir(), peerID+".yaml")
}

// Load reads the remembered profile for peerID, or a fresh Default() if
// none has been persisted yet.
func Load(peerID string) (*Config, error) {
	storeMu.Lock()
	defer storeMu.Unlock()

	cfg := Default(peerID)

	path := pathFor(peerID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("peerconfig: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("peerconfig: unmarshal %s: %w", path, err)
	}
	cfg.PeerID = peerID
	if cfg.TransferJobs == nil {
		cfg.TransferJobs = map[string]TransferJobMeta{}
	}
	if cfg.CustomResolutions == nil {
		cfg.CustomResolutions = map[string][2]int{}
	}
	if cfg.Options == nil {
		cfg.Options = map[string]string{}
	}
	return cfg, nil
}

// Save persists cfg to its per-peer YAML file, read-copy-update style: the
// caller mutates the in-memory struct returned by Load and calls Save to
// write the whole document back.
func Save(cfg *Config) error {
	storeMu.Lock()
	defer storeMu.Unlock()

	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return fmt.Errorf("peerconfig: mkdir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("peer_id", cfg.PeerID)
	v.Set("password_hash", cfg.PasswordHash)
	v.Set("image_quality", cfg.ImageQuality)
	v.Set("custom_image_quality", cfg.CustomImageQuality)
	v.Set("custom_fps", cfg.CustomFPS)
	v.Set("show_remote_cursor", cfg.ShowRemoteCursor)
	v.Set("disable_audio", cfg.DisableAudio)
	v.Set("disable_clipboard", cfg.DisableClipboard)
	v.Set("lock_after_session", cfg.LockAfterSession)
	v.Set("privacy_mode", cfg.PrivacyMode)
	v.Set("enable_file_transfer", cfg.EnableFileTransfer)
	v.Set("quality_monitor", cfg.QualityMonitor)
	v.Set("view_only", cfg.ViewOnly)
	v.Set("swap_left_right", cfg.SwapLeftRight)
	v.Set("reverse_wheel", cfg.ReverseWheel)
	v.Set("keyboard_mode", cfg.KeyboardMode)
	v.Set("custom_resolutions", cfg.CustomResolutions)
	v.Set("port_forwards", cfg.PortForwards)
	v.Set("transfer_jobs", cfg.TransferJobs)
	v.Set("direct_failure_count", cfg.DirectFailureCount)
	v.Set("options", cfg.Options)

	path := pathFor(cfg.PeerID)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("peerconfig: write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// RecordDirectFailure increments and persists the direct-connection-failure
// counter the orchestrator passes to its connect-timeout choice.
func RecordDirectFailure(cfg *Config) error {
	cfg.DirectFailureCount++
	return Save(cfg)
}

// ResetDirectFailure clears the counter after a successful direct connection.
func ResetDirectFailure(cfg *Config) error {
	if cfg.DirectFailureCount == 0 {
		return nil
	}
	cfg.DirectFailureCount = 0
	return Save(cfg)
}
