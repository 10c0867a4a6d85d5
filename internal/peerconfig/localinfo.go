package peerconfig

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// LocalInfo describes this machine. Hostname and platform make up the
// outgoing LoginRequest.MyName (see DisplayName); AvailableRAMBytes is only
// logged locally and is not sent to the peer.
type LocalInfo struct {
	Hostname         string
	Platform         string
	PlatformVersion  string
	AvailableRAMBytes uint64
}

// GatherLocalInfo collects this machine's identity and available memory via
// gopsutil, the same library the corpus's device-enrollment and hardware
// collectors use for "what machine is this" questions. Each field falls
// back independently to a conservative default rather than failing the
// whole call, since a partial identity is still useful for a login request.
func GatherLocalInfo() LocalInfo {
	info := LocalInfo{Hostname: "unknown"}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hi, err := host.Info(); err == nil {
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
	} else {
		log.Warn("gopsutil host.Info failed, platform left blank", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.AvailableRAMBytes = vm.Available
	} else {
		log.Warn("gopsutil mem.VirtualMemory failed, available RAM left zero", "error", err)
	}

	return info
}

// DisplayName renders a "hostname (platform version)" string suitable for
// LoginRequest.MyName, the same composition the corpus's enrollment device
// info uses for a human-readable machine label.
func (i LocalInfo) DisplayName() string {
	if i.Platform == "" {
		return i.Hostname
	}
	return fmt.Sprintf("%s (%s %s)", i.Hostname, i.Platform, i.PlatformVersion)
}
