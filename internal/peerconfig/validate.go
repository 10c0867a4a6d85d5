package peerconfig

import (
	"fmt"
)

// ValidationResult separates validation errors into ones that must block
// using the profile (Fatals) from ones that are logged and clamped in place
// (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal validation error was recorded.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

var validImageQualities = map[ImageQuality]bool{
	QualityLow:      true,
	QualityBalanced: true,
	QualityBest:     true,
	QualityCustom:   true,
}

var validKeyboardModes = map[KeyboardMode]bool{
	KeyboardLegacy:    true,
	KeyboardMap:       true,
	KeyboardTranslate: true,
}

// ValidateTiered checks cfg for invalid values. Out-of-range numeric fields
// are clamped in place and reported as warnings; structurally invalid
// enum/port values are fatal since there is no safe default to fall back to.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.PeerID == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("peer_id must not be empty"))
	}

	if c.ImageQuality != "" && !validImageQualities[c.ImageQuality] {
		r.Fatals = append(r.Fatals, fmt.Errorf("image_quality %q is not one of low|balanced|best|custom", c.ImageQuality))
	}

	if c.KeyboardMode != "" && !validKeyboardModes[c.KeyboardMode] {
		r.Fatals = append(r.Fatals, fmt.Errorf("keyboard_mode %q is not one of legacy|map|translate", c.KeyboardMode))
	}

	if c.ImageQuality == QualityCustom {
		if c.CustomImageQuality < 10 {
			r.Warnings = append(r.Warnings, fmt.Errorf("custom_image_quality %d is below minimum 10, clamping", c.CustomImageQuality))
			c.CustomImageQuality = 10
		} else if c.CustomImageQuality > 100 {
			r.Warnings = append(r.Warnings, fmt.Errorf("custom_image_quality %d exceeds maximum 100, clamping", c.CustomImageQuality))
			c.CustomImageQuality = 100
		}
	}

	if c.CustomFPS != 0 {
		if c.CustomFPS < 5 {
			r.Warnings = append(r.Warnings, fmt.Errorf("custom_fps %d is below minimum 5, clamping", c.CustomFPS))
			c.CustomFPS = 5
		} else if c.CustomFPS > 120 {
			r.Warnings = append(r.Warnings, fmt.Errorf("custom_fps %d exceeds maximum 120, clamping", c.CustomFPS))
			c.CustomFPS = 120
		}
	}

	for i, pf := range c.PortForwards {
		if pf.LocalPort < 1 || pf.LocalPort > 65535 {
			r.Fatals = append(r.Fatals, fmt.Errorf("port_forwards[%d].local_port %d out of range", i, pf.LocalPort))
		}
		if pf.RemotePort < 1 || pf.RemotePort > 65535 {
			r.Fatals = append(r.Fatals, fmt.Errorf("port_forwards[%d].remote_port %d out of range", i, pf.RemotePort))
		}
		if pf.RemoteHost == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("port_forwards[%d].remote_host must not be empty", i))
		}
	}

	if c.DirectFailureCount < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("direct_failure_count %d is negative, clamping", c.DirectFailureCount))
		c.DirectFailureCount = 0
	}

	return r
}
