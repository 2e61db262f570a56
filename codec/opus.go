package codec

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// opusDecoder wraps a pion/opus decoder to satisfy Decoder. Decode failures
// are returned as errors; Conceal yields a zeroed frame, per the PLC
// contract.
type opusDecoder struct {
	dec    opus.Decoder
	closed bool
}

// OpusDecoderFactory creates opusDecoder instances, one per mixer stream
// entry, matching the "owned decoder state" invariant of the per-source
// stream table.
type OpusDecoderFactory struct{}

// NewDecoder returns a fresh opus-backed Decoder.
func (OpusDecoderFactory) NewDecoder() (Decoder, error) {
	return &opusDecoder{dec: opus.NewDecoder()}, nil
}

// Decode decodes one Opus payload into exactly FrameSamples of PCM. A
// decode failure is returned to the caller, who treats it as a loss and
// calls Conceal.
func (d *opusDecoder) Decode(payload []byte) ([]int16, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("codec: empty opus payload")
	}

	out := make([]byte, FrameSamples*2)
	_, isStereo, err := d.dec.Decode(payload, out)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "opusDecoder.Decode",
			"error":    err.Error(),
		}).Debug("opus decode failed, caller will conceal")
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	pcm := bytesToPCM(out, isStereo)
	return fitFrame(pcm), nil
}

// Conceal synthesizes a silent frame; pion/opus exposes no native PLC path.
func (d *opusDecoder) Conceal() []int16 {
	return make([]int16, FrameSamples)
}

func (d *opusDecoder) Close() error {
	d.closed = true
	return nil
}

func bytesToPCM(buf []byte, stereo bool) []int16 {
	n := len(buf) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(buf[i*2]) | int16(buf[i*2+1])<<8
	}
	if stereo {
		mono := make([]int16, n/2)
		for i := range mono {
			mono[i] = pcm[i*2]
		}
		return mono
	}
	return pcm
}

// fitFrame pads or truncates decoded PCM to exactly FrameSamples, since the
// mixer sums fixed-size frames.
func fitFrame(pcm []int16) []int16 {
	if len(pcm) == FrameSamples {
		return pcm
	}
	out := make([]int16, FrameSamples)
	copy(out, pcm)
	return out
}

// PCMEncoder is a passthrough encoder: it serializes PCM samples
// little-endian with no compression, mirroring the teacher's own
// SimplePCMEncoder fallback used in the absence of a pure-Go Opus encoder.
type PCMEncoder struct {
	bitRate uint32
	closed  bool
}

// NewPCMEncoder returns a passthrough encoder at the given nominal bit rate
// (recorded for parity with a real encoder's API; it does not affect output
// size since no compression is performed).
func NewPCMEncoder(bitRate uint32) *PCMEncoder {
	return &PCMEncoder{bitRate: bitRate}
}

// Encode serializes one PCM frame little-endian.
func (e *PCMEncoder) Encode(pcm []int16) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}

func (e *PCMEncoder) Close() error {
	e.closed = true
	return nil
}
