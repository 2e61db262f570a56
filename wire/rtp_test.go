package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTPHeaderRoundTrip(t *testing.T) {
	var h RTPHeader
	h.Version = RTPVersion
	h.PayloadType = PayloadOpus
	h.Sequence = 100
	h.Timestamp = 48000
	h.Source = 7
	h.SetVAD(true)

	datagram := EncodeMediaDatagram(h, []byte("payload"))
	decodedHeader, payload, err := DecodeMediaDatagram(datagram)
	require.NoError(t, err)

	assert.Equal(t, h.Version, decodedHeader.Version)
	assert.Equal(t, h.PayloadType, decodedHeader.PayloadType)
	assert.Equal(t, h.Sequence, decodedHeader.Sequence)
	assert.Equal(t, h.Timestamp, decodedHeader.Timestamp)
	assert.Equal(t, h.Source, decodedHeader.Source)
	assert.True(t, decodedHeader.VAD())
	assert.False(t, decodedHeader.Marker())
	assert.Equal(t, []byte("payload"), payload)
}

func TestDecodeMediaDatagramShort(t *testing.T) {
	_, _, err := DecodeMediaDatagram([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortDatagram)
}

func TestDecodeMediaDatagramBadVersion(t *testing.T) {
	buf := make([]byte, RTPHeaderSize)
	buf[0] = 3
	_, _, err := DecodeMediaDatagram(buf)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestSeqDeltaWrap(t *testing.T) {
	assert.Equal(t, int16(1), SeqDelta(0, 65535))
	assert.Equal(t, int16(-1), SeqDelta(65535, 0))
	assert.Equal(t, int16(0), SeqDelta(100, 100))
}

func TestMarkerAndVADFlagsIndependent(t *testing.T) {
	var h RTPHeader
	h.SetMarker(true)
	assert.True(t, h.Marker())
	assert.False(t, h.VAD())

	h.SetVAD(true)
	assert.True(t, h.Marker())
	assert.True(t, h.VAD())

	h.SetMarker(false)
	assert.False(t, h.Marker())
	assert.True(t, h.VAD())
}
