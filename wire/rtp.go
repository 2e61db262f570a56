package wire

import (
	"encoding/binary"
	"errors"
)

// RTPHeaderSize is the flat on-wire size of a media header.
const RTPHeaderSize = 16

// MaxMediaPayload bounds the encoded payload carried in one media datagram.
const MaxMediaPayload = 512

// MaxMediaDatagram is RTPHeaderSize + MaxMediaPayload.
const MaxMediaDatagram = RTPHeaderSize + MaxMediaPayload

// RTPVersion is the only supported media header version.
const RTPVersion = 2

// Payload type codes.
const (
	PayloadPCM  uint8 = 0
	PayloadOpus uint8 = 111
)

// Flag bits within RTPHeader.Flags.
const (
	FlagMarker uint16 = 1 << 0
	FlagVAD    uint16 = 1 << 1
)

// ErrShortDatagram is returned when a media datagram is smaller than
// RTPHeaderSize.
var ErrShortDatagram = errors.New("wire: short media datagram")

// ErrBadVersion is returned when a media header's version is not RTPVersion.
var ErrBadVersion = errors.New("wire: bad media version")

// RTPHeader is the flat 16-byte record prefixing every media datagram.
type RTPHeader struct {
	Version     uint8
	PayloadType uint8
	Sequence    uint16
	Timestamp   uint32
	Source      uint32
	PayloadLen  uint16
	Flags       uint16
}

// Marker reports whether the marker bit (unused by the core) is set.
func (h RTPHeader) Marker() bool { return h.Flags&FlagMarker != 0 }

// VAD reports whether the voice-activity bit is set.
func (h RTPHeader) VAD() bool { return h.Flags&FlagVAD != 0 }

// SetMarker sets or clears the marker bit.
func (h *RTPHeader) SetMarker(on bool) { h.setFlag(FlagMarker, on) }

// SetVAD sets or clears the voice-activity bit.
func (h *RTPHeader) SetVAD(on bool) { h.setFlag(FlagVAD, on) }

func (h *RTPHeader) setFlag(bit uint16, on bool) {
	if on {
		h.Flags |= bit
	} else {
		h.Flags &^= bit
	}
}

// Encode writes the header in little-endian order into a fresh
// RTPHeaderSize-byte slice.
func (h RTPHeader) Encode() []byte {
	buf := make([]byte, RTPHeaderSize)
	buf[0] = h.Version
	buf[1] = h.PayloadType
	binary.LittleEndian.PutUint16(buf[2:4], h.Sequence)
	binary.LittleEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:12], h.Source)
	binary.LittleEndian.PutUint16(buf[12:14], h.PayloadLen)
	binary.LittleEndian.PutUint16(buf[14:16], h.Flags)
	return buf
}

// DecodeRTPHeader parses the leading RTPHeaderSize bytes of a datagram.
func DecodeRTPHeader(buf []byte) (RTPHeader, error) {
	var h RTPHeader
	if len(buf) < RTPHeaderSize {
		return h, ErrShortDatagram
	}
	h.Version = buf[0]
	if h.Version != RTPVersion {
		return h, ErrBadVersion
	}
	h.PayloadType = buf[1]
	h.Sequence = binary.LittleEndian.Uint16(buf[2:4])
	h.Timestamp = binary.LittleEndian.Uint32(buf[4:8])
	h.Source = binary.LittleEndian.Uint32(buf[8:12])
	h.PayloadLen = binary.LittleEndian.Uint16(buf[12:14])
	h.Flags = binary.LittleEndian.Uint16(buf[14:16])
	return h, nil
}

// EncodeMediaDatagram serializes a header and payload into one datagram.
func EncodeMediaDatagram(h RTPHeader, payload []byte) []byte {
	h.PayloadLen = uint16(len(payload))
	out := h.Encode()
	out = append(out, payload...)
	return out
}

// DecodeMediaDatagram splits a datagram into its header and payload,
// validating version and declared length.
func DecodeMediaDatagram(buf []byte) (RTPHeader, []byte, error) {
	h, err := DecodeRTPHeader(buf)
	if err != nil {
		return h, nil, err
	}
	end := RTPHeaderSize + int(h.PayloadLen)
	if end > len(buf) {
		return h, nil, ErrShortDatagram
	}
	return h, buf[RTPHeaderSize:end], nil
}

// SeqDelta computes the signed 16-bit distance from b to a (a - b), using
// the half-space wrap rule for sequence-number comparison.
func SeqDelta(a, b uint16) int16 {
	return int16(a - b)
}
