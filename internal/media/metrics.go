package media

import (
	"sync"

	"github.com/pion/rtcp"
)

// StreamMetrics tracks the loss/jitter stats carried by RTCP-shaped receiver
// reports. Neither the quality-monitor display nor the FPS controller reads
// it.
type StreamMetrics struct {
	mu sync.Mutex

	fractionLost uint8
	totalLost    uint32
	jitter       uint32
}

// NewStreamMetrics returns an empty StreamMetrics.
func NewStreamMetrics() *StreamMetrics { return &StreamMetrics{} }

// ApplyReceiverReport parses an RTCP-encoded packet and, if it contains a
// ReceiverReport, records its first report block's loss/jitter figures.
// Packets that don't carry a ReceiverReport are ignored rather than
// treated as an error, since the control channel may multiplex other RTCP
// packet types this client doesn't act on.
func (m *StreamMetrics) ApplyReceiverReport(raw []byte) error {
	packets, err := rtcp.Unmarshal(raw)
	if err != nil {
		return err
	}
	for _, p := range packets {
		rr, ok := p.(*rtcp.ReceiverReport)
		if !ok || len(rr.Reports) == 0 {
			continue
		}
		report := rr.Reports[0]
		m.mu.Lock()
		m.fractionLost = report.FractionLost
		m.totalLost = report.TotalLost
		m.jitter = report.Jitter
		m.mu.Unlock()
	}
	return nil
}

// Snapshot is a point-in-time read of the tracked stats.
type Snapshot struct {
	FractionLost uint8
	TotalLost    uint32
	Jitter       uint32
}

// Snapshot returns the most recently applied receiver-report figures.
func (m *StreamMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{FractionLost: m.fractionLost, TotalLost: m.totalLost, Jitter: m.jitter}
}
