package media

import (
	"fmt"
	"image"

	openh264 "github.com/y9o/go-openh264"
)

// h264Decoder is the concrete VideoDecoder backend for the H264 codec
// capability bit. The decoder interface itself is the external-collaborator
// boundary the pipeline depends on; this is the one library behind it.
// VP8/9/AV1 are left pluggable with no bundled backend, same as the
// platform-native decoders the teacher leaves to OS libraries.
type h264Decoder struct {
	dec *openh264.Decoder
}

// NewH264DecoderFactory returns a DecoderFactory producing fresh
// h264Decoder instances, for wiring into NewVideoWorker.
func NewH264DecoderFactory() DecoderFactory {
	return func() VideoDecoder { return &h264Decoder{} }
}

func (h *h264Decoder) ensure() error {
	if h.dec != nil {
		return nil
	}
	dec, err := openh264.NewDecoder()
	if err != nil {
		return fmt.Errorf("media: open h264 decoder: %w", err)
	}
	h.dec = dec
	return nil
}

// Decode feeds one Annex-B encoded access unit to the decoder and converts
// its YCbCr output into tightly-packed RGBA for the UI callback.
func (h *h264Decoder) Decode(encoded []byte, keyFrame bool) ([]byte, int32, int32, error) {
	if err := h.ensure(); err != nil {
		return nil, 0, 0, err
	}
	img, err := h.dec.Decode(encoded)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("media: h264 decode: %w", err)
	}
	if img == nil {
		// Decoder consumed the frame but has nothing to display yet
		// (common right after a non-key frame following a seek); not
		// an error.
		return nil, 0, 0, nil
	}
	rgba, w, h2 := ycbcrToRGBA(img)
	return rgba, int32(w), int32(h2), nil
}

// Reset discards decoder state so the next Decode call rebuilds it; used
// when the peer reports a resolution or display switch.
func (h *h264Decoder) Reset() {
	if h.dec != nil {
		h.dec.Close()
		h.dec = nil
	}
}

// ycbcrToRGBA converts a decoded YCbCr image into interleaved RGBA bytes.
func ycbcrToRGBA(img *image.YCbCr) ([]byte, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out[i+0] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(b >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out, w, h
}
