package peerconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("APPDATA", dir)
}

func TestLoadMissingReturnsDefault(t *testing.T) {
	withTempDir(t)

	cfg, err := Load("peer123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeerID != "peer123" {
		t.Fatalf("PeerID = %q, want peer123", cfg.PeerID)
	}
	if cfg.ImageQuality != QualityBalanced {
		t.Fatalf("ImageQuality = %q, want balanced", cfg.ImageQuality)
	}
	if cfg.KeyboardMode != "" {
		t.Fatalf("KeyboardMode = %q, want empty (version-dependent default)", cfg.KeyboardMode)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	withTempDir(t)

	cfg := Default("peer456")
	cfg.PasswordHash = []byte{1, 2, 3, 4}
	cfg.ImageQuality = QualityCustom
	cfg.CustomImageQuality = 80
	cfg.DisableAudio = true
	cfg.PortForwards = append(cfg.PortForwards, PortForwardRule{LocalPort: 3389, RemoteHost: "127.0.0.1", RemotePort: 3389})
	cfg.DirectFailureCount = 2

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load("peer456")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded.PasswordHash) != string(cfg.PasswordHash) {
		t.Fatalf("PasswordHash = %v, want %v", loaded.PasswordHash, cfg.PasswordHash)
	}
	if loaded.ImageQuality != QualityCustom || loaded.CustomImageQuality != 80 {
		t.Fatalf("quality not round-tripped: %+v", loaded)
	}
	if !loaded.DisableAudio {
		t.Fatal("DisableAudio not round-tripped")
	}
	if len(loaded.PortForwards) != 1 || loaded.PortForwards[0].RemotePort != 3389 {
		t.Fatalf("PortForwards not round-tripped: %+v", loaded.PortForwards)
	}
	if loaded.DirectFailureCount != 2 {
		t.Fatalf("DirectFailureCount = %d, want 2", loaded.DirectFailureCount)
	}
}

func TestSavePersistsOwnerOnlyPermissions(t *testing.T) {
	withTempDir(t)

	cfg := Default("peer789")
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(pathFor("peer789"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestRecordDirectFailureIncrementsAndPersists(t *testing.T) {
	withTempDir(t)

	cfg := Default("peerA")
	if err := RecordDirectFailure(cfg); err != nil {
		t.Fatalf("RecordDirectFailure: %v", err)
	}
	if cfg.DirectFailureCount != 1 {
		t.Fatalf("DirectFailureCount = %d, want 1", cfg.DirectFailureCount)
	}

	reloaded, err := Load("peerA")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.DirectFailureCount != 1 {
		t.Fatalf("reloaded DirectFailureCount = %d, want 1", reloaded.DirectFailureCount)
	}
}

func TestResetDirectFailureClearsCounter(t *testing.T) {
	withTempDir(t)

	cfg := Default("peerB")
	cfg.DirectFailureCount = 5
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := ResetDirectFailure(cfg); err != nil {
		t.Fatalf("ResetDirectFailure: %v", err)
	}
	if cfg.DirectFailureCount != 0 {
		t.Fatalf("DirectFailureCount = %d, want 0", cfg.DirectFailureCount)
	}
}

func TestKeyboardModeForVersion(t *testing.T) {
	cases := []struct {
		version string
		want    KeyboardMode
	}{
		{"1.1.9", KeyboardLegacy},
		{"1.2.0", KeyboardMap},
		{"1.3.0", KeyboardMap},
		{"0.9.0", KeyboardLegacy},
	}
	for _, tc := range cases {
		if got := KeyboardModeForVersion(tc.version); got != tc.want {
			t.Errorf("KeyboardModeForVersion(%q) = %q, want %q", tc.version, got, tc.want)
		}
	}
}
