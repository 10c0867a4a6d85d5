package media

// Recorder consumes encoded (pre-decode) frames for an optional screen
// recording, passing them through at the peer's frame rate rather than
// re-encoding.
type Recorder interface {
	WriteEncoded(display int32, encoded []byte, timestamp int64) error
	Close() error
}

// recorderSink adapts a Recorder into the EncodedSink the video worker's
// RecordScreen expects.
func recorderSink(r Recorder) EncodedSink {
	return func(display int32, encoded []byte, timestamp int64) {
		if err := r.WriteEncoded(display, encoded, timestamp); err != nil {
			log.Warn("recorder write failed", "display", display, "error", err)
		}
	}
}

// StartRecording wires r into worker as display's recording sink.
func StartRecording(worker *VideoWorker, display int32, r Recorder) {
	worker.RecordScreen(display, recorderSink(r))
}

// StopRecording detaches any recorder from display and closes it.
func StopRecording(worker *VideoWorker, display int32, r Recorder) error {
	worker.RecordScreen(display, nil)
	return r.Close()
}
