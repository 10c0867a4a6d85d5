package main

// This CLI driver has no display or audio output backend of its own: it
// logs connection/session events and leaves pixel rendering, audio
// playback, and local input capture to a platform front-end wired in on
// top of the session package. headlessAudioDecoder/headlessAudioSink let
// the session's audio worker run without a real device attached.

type headlessAudioDecoder struct{}

func (headlessAudioDecoder) Decode(encoded []byte, sampleRate, channels int32) ([]float32, error) {
	return nil, nil
}

type headlessAudioSink struct{}

func (headlessAudioSink) Write(samples []float32) error { return nil }
func (headlessAudioSink) DeviceSampleRate() int32        { return 48000 }
func (headlessAudioSink) PendingSamples() int64          { return 0 }
func (headlessAudioSink) ClearBuffer()                   {}
