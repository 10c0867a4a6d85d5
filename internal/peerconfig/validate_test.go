package peerconfig

import (
	"errors"
	"testing"
)

func TestValidateTieredEmptyPeerIDIsFatal(t *testing.T) {
	cfg := Default("")
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for empty peer_id")
	}
}

func TestValidateTieredInvalidImageQualityIsFatal(t *testing.T) {
	cfg := Default("peer1")
	cfg.ImageQuality = "ultra"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for invalid image_quality")
	}
}

func TestValidateTieredInvalidKeyboardModeIsFatal(t *testing.T) {
	cfg := Default("peer1")
	cfg.KeyboardMode = "bogus"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for invalid keyboard_mode")
	}
}

func TestValidateTieredCustomImageQualityClamping(t *testing.T) {
	cfg := Default("peer1")
	cfg.ImageQuality = QualityCustom
	cfg.CustomImageQuality = 1
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("expected only a warning, got fatals: %v", result.Fatals)
	}
	if cfg.CustomImageQuality != 10 {
		t.Fatalf("CustomImageQuality = %d, want clamped to 10", cfg.CustomImageQuality)
	}
}

func TestValidateTieredCustomFPSClamping(t *testing.T) {
	cfg := Default("peer1")
	cfg.CustomFPS = 500
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("expected only a warning, got fatals: %v", result.Fatals)
	}
	if cfg.CustomFPS != 120 {
		t.Fatalf("CustomFPS = %d, want clamped to 120", cfg.CustomFPS)
	}
}

func TestValidateTieredInvalidPortForwardIsFatal(t *testing.T) {
	cfg := Default("peer1")
	cfg.PortForwards = []PortForwardRule{{LocalPort: 0, RemoteHost: "h", RemotePort: 80}}
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for out-of-range local_port")
	}
}

func TestValidateTieredNegativeDirectFailureCountIsWarning(t *testing.T) {
	cfg := Default("peer1")
	cfg.DirectFailureCount = -3
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("expected only a warning, got fatals: %v", result.Fatals)
	}
	if cfg.DirectFailureCount != 0 {
		t.Fatalf("DirectFailureCount = %d, want clamped to 0", cfg.DirectFailureCount)
	}
}

func TestHasFatals(t *testing.T) {
	var r ValidationResult
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, errors.New("test fatal"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}
