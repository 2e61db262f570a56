// Package codec defines the opaque encode/decode/PLC capability interface
// the jitter buffer and mixer hold a handle to, and ships one concrete
// implementation backed by github.com/pion/opus for decode plus a PCM
// passthrough for encode (no pure-Go Opus encoder exists in the dependency
// set this module draws from).
package codec

import "errors"

// FrameSamples is the sample count of one 20ms frame at 48kHz mono.
const FrameSamples = 960

// ErrClosed is returned by a Decoder/Encoder operation after Close.
var ErrClosed = errors.New("codec: closed")

// Encoder turns one PCM frame into an encoded payload.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
	Close() error
}

// Decoder turns one encoded payload into a PCM frame, and can conceal a
// missing frame when none arrived.
type Decoder interface {
	// Decode returns exactly one frame of PCM for a received payload.
	Decode(payload []byte) ([]int16, error)
	// Conceal synthesizes one frame of PCM for a payload that never arrived.
	Conceal() []int16
	Close() error
}

// DecoderFactory creates a fresh Decoder, one per stream entry, matching
// the per-source "owned decoder state" of the multi-stream mixer.
type DecoderFactory interface {
	NewDecoder() (Decoder, error)
}
