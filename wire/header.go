// Package wire implements the binary encode/decode layer for the control and
// media frame formats: a length-prefixed TCP control header, a flat RTP-like
// UDP media header, and the peer/discovery records carried inside control
// frames.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ControlMagic is the fixed magic value at the start of every control frame.
const ControlMagic uint32 = 0x53565043

// ControlHeaderSize is the on-wire size of a control header in bytes.
const ControlHeaderSize = 20

// MaxControlFrame is the largest total control frame (header + payload)
// the accumulator will accept.
const MaxControlFrame = 4096

// Message type codes. Fixed for interoperability with deployed clients.
const (
	MsgDiscoveryRequest  uint16 = 0x0001
	MsgDiscoveryResponse uint16 = 0x0002
	MsgHello             uint16 = 0x0101
	MsgHelloAck          uint16 = 0x0102
	MsgJoin              uint16 = 0x0103
	MsgLeave             uint16 = 0x0104
	MsgHeartbeat         uint16 = 0x0105
	MsgAudioStart        uint16 = 0x0201
	MsgAudioStop         uint16 = 0x0202
	MsgAudioMute         uint16 = 0x0203
	MsgAudioUnmute       uint16 = 0x0204
	MsgParamUpdate       uint16 = 0x0205
	MsgTimeSync          uint16 = 0x0206
	MsgPeerList          uint16 = 0x0301
	MsgPeerJoin          uint16 = 0x0302
	MsgPeerLeave         uint16 = 0x0303
	MsgPeerState         uint16 = 0x0304
)

// ErrBadMagic is returned when a control header's magic does not match
// ControlMagic; the caller must reset its accumulator on receipt.
var ErrBadMagic = errors.New("wire: bad control magic")

// ErrFrameTooLarge is returned when a control frame's declared total size
// exceeds MaxControlFrame.
var ErrFrameTooLarge = errors.New("wire: control frame too large")

// ErrShortHeader is returned when fewer than ControlHeaderSize bytes are
// available to decode a header.
var ErrShortHeader = errors.New("wire: short control header")

// ControlHeader is the fixed 20-byte header prefixing every control frame.
type ControlHeader struct {
	Magic       uint32
	Version     uint16
	Type        uint16
	PayloadLen  uint32
	Sequence    uint32
	TimestampMs uint32
}

// NewControlHeader builds a header for a payload of the given length.
func NewControlHeader(msgType uint16, payloadLen int, sequence, timestampMs uint32) ControlHeader {
	return ControlHeader{
		Magic:       ControlMagic,
		Version:     1,
		Type:        msgType,
		PayloadLen:  uint32(payloadLen),
		Sequence:    sequence,
		TimestampMs: timestampMs,
	}
}

// Encode writes the header in little-endian order into a fresh
// ControlHeaderSize-byte slice.
func (h ControlHeader) Encode() []byte {
	buf := make([]byte, ControlHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Type)
	binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.Sequence)
	binary.LittleEndian.PutUint32(buf[16:20], h.TimestampMs)
	return buf
}

// DecodeControlHeader parses a ControlHeaderSize-byte header, validating the
// magic and overall frame size.
func DecodeControlHeader(buf []byte) (ControlHeader, error) {
	var h ControlHeader
	if len(buf) < ControlHeaderSize {
		return h, ErrShortHeader
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != ControlMagic {
		return h, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	h.Type = binary.LittleEndian.Uint16(buf[6:8])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[8:12])
	h.Sequence = binary.LittleEndian.Uint32(buf[12:16])
	h.TimestampMs = binary.LittleEndian.Uint32(buf[16:20])
	if int(h.PayloadLen)+ControlHeaderSize > MaxControlFrame {
		return h, fmt.Errorf("%w: total %d exceeds %d", ErrFrameTooLarge, int(h.PayloadLen)+ControlHeaderSize, MaxControlFrame)
	}
	return h, nil
}

// ControlFrame is a decoded header plus its payload bytes.
type ControlFrame struct {
	Header  ControlHeader
	Payload []byte
}

// EncodeControlFrame serializes a full frame: header followed by payload.
func EncodeControlFrame(msgType uint16, payload []byte, sequence, timestampMs uint32) ([]byte, error) {
	if ControlHeaderSize+len(payload) > MaxControlFrame {
		return nil, fmt.Errorf("%w: total %d exceeds %d", ErrFrameTooLarge, ControlHeaderSize+len(payload), MaxControlFrame)
	}
	h := NewControlHeader(msgType, len(payload), sequence, timestampMs)
	out := h.Encode()
	out = append(out, payload...)
	return out, nil
}

// Accumulator buffers a reliable stream and yields complete control frames
// as enough bytes become available. A bad-magic header resets the
// accumulator to empty rather than attempting resync within the stream.
type Accumulator struct {
	buf []byte
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Feed appends newly-read bytes and returns every complete frame they make
// available, in order. On a bad magic it drops the accumulated bytes and
// reports the error to the caller, who may choose to disconnect.
func (a *Accumulator) Feed(data []byte) ([]ControlFrame, error) {
	a.buf = append(a.buf, data...)

	var frames []ControlFrame
	for {
		if len(a.buf) < ControlHeaderSize {
			return frames, nil
		}
		h, err := DecodeControlHeader(a.buf)
		if err != nil {
			a.buf = a.buf[:0]
			return frames, err
		}
		total := ControlHeaderSize + int(h.PayloadLen)
		if len(a.buf) < total {
			return frames, nil
		}
		payload := make([]byte, h.PayloadLen)
		copy(payload, a.buf[ControlHeaderSize:total])
		frames = append(frames, ControlFrame{Header: h, Payload: payload})
		a.buf = a.buf[total:]
	}
}

// Reset discards any partially-accumulated bytes.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}
