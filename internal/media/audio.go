package media

import (
	"time"

	"github.com/meshdesk/client/internal/latency"
	"github.com/meshdesk/client/internal/wire"
)

// AudioDecoder decodes one encoded audio frame into interleaved float32
// samples at its native sample rate/channel count.
type AudioDecoder interface {
	Decode(encoded []byte, sampleRate, channels int32) (samples []float32, err error)
}

// AudioSink is the per-OS playback destination: native output stream,
// platform low-latency path, or a server playback stream. Resampling to
// the device's native rate, if required, happens before Write.
type AudioSink interface {
	Write(samples []float32) error
	DeviceSampleRate() int32
	// PendingSamples reports how many samples are currently queued for
	// playback but not yet rendered, for the 120s safety cap.
	PendingSamples() int64
	// ClearBuffer discards everything currently queued for playback.
	ClearBuffer()
}

// Resampler converts samples at fromRate to toRate. A no-op implementation
// that just returns samples unchanged is valid when rates already match.
type Resampler func(samples []float32, fromRate, toRate int32) []float32

// maxBufferedDuration is the audio worker's safety cap: if the sink's
// pending buffer estimate exceeds this, the worker clears it rather than
// let playback drift further and further behind, per spec §4.7.
const maxBufferedDuration = 120 * time.Second

// AudioWorker decodes incoming AudioFrames, consults the latency
// controller for admissibility, resamples if needed, and enqueues to the
// sink.
type AudioWorker struct {
	decoder  AudioDecoder
	sink     AudioSink
	latency  *latency.Controller
	resample Resampler
	disabled bool
}

// NewAudioWorker returns an AudioWorker. resample may be nil, in which case
// frames whose sample rate doesn't match the sink's are dropped with a
// warning instead of resampled.
func NewAudioWorker(decoder AudioDecoder, sink AudioSink, lat *latency.Controller, resample Resampler) *AudioWorker {
	return &AudioWorker{decoder: decoder, sink: sink, latency: lat, resample: resample}
}

// SetDisabled toggles whether incoming frames are dropped outright, for
// the disable-audio toggle.
func (w *AudioWorker) SetDisabled(disabled bool) { w.disabled = disabled }

// HandleFrame decodes and plays one AudioFrame if it is currently
// admissible per the latency gate.
func (w *AudioWorker) HandleFrame(f *wire.AudioFrame, now time.Time) error {
	if w.disabled {
		return nil
	}
	if !w.latency.AllowAudio(time.Duration(f.Timestamp)*time.Millisecond, now) {
		return nil
	}

	samples, err := w.decoder.Decode(f.Data, f.SampleRate, f.Channels)
	if err != nil {
		log.Warn("audio decode failed", "error", err)
		return err
	}

	deviceRate := w.sink.DeviceSampleRate()
	if deviceRate != 0 && f.SampleRate != 0 && deviceRate != f.SampleRate {
		if w.resample == nil {
			log.Warn("dropping audio frame: rate mismatch with no resampler", "frame_rate", f.SampleRate, "device_rate", deviceRate)
			return nil
		}
		samples = w.resample(samples, f.SampleRate, deviceRate)
	}

	capSamples := int64(deviceRate) * int64(maxBufferedDuration/time.Second)
	if deviceRate != 0 && w.sink.PendingSamples() > capSamples {
		log.Warn("audio buffer exceeded safety cap, clearing", "pending_samples", w.sink.PendingSamples())
		w.sink.ClearBuffer()
	}

	return w.sink.Write(samples)
}
