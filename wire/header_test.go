package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlHeaderRoundTrip(t *testing.T) {
	h := NewControlHeader(MsgHello, 12, 42, 123456)
	encoded := h.Encode()
	require.Len(t, encoded, ControlHeaderSize)

	decoded, err := DecodeControlHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h.Magic, decoded.Magic)
	assert.Equal(t, h.Version, decoded.Version)
	assert.Equal(t, h.Type, decoded.Type)
	assert.Equal(t, h.PayloadLen, decoded.PayloadLen)
	assert.Equal(t, h.Sequence, decoded.Sequence)
	assert.Equal(t, h.TimestampMs, decoded.TimestampMs)
}

func TestDecodeControlHeaderBadMagic(t *testing.T) {
	buf := make([]byte, ControlHeaderSize)
	buf[0] = 0xff
	_, err := DecodeControlHeader(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeControlHeaderShort(t *testing.T) {
	_, err := DecodeControlHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestDecodeControlHeaderTooLarge(t *testing.T) {
	h := NewControlHeader(MsgHello, MaxControlFrame, 0, 0)
	buf := h.Encode()
	_, err := DecodeControlHeader(buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestAccumulatorFeedsCompleteFrames(t *testing.T) {
	frame1, err := EncodeControlFrame(MsgHello, []byte("hello"), 1, 0)
	require.NoError(t, err)
	frame2, err := EncodeControlFrame(MsgHeartbeat, nil, 2, 0)
	require.NoError(t, err)

	acc := NewAccumulator()

	// Split the first frame across two Feed calls to exercise partial reads.
	frames, err := acc.Feed(frame1[:5])
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = acc.Feed(frame1[5:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, MsgHello, frames[0].Header.Type)
	assert.Equal(t, []byte("hello"), frames[0].Payload)

	frames, err = acc.Feed(frame2)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, MsgHeartbeat, frames[0].Header.Type)
}

func TestAccumulatorMultipleFramesInOneFeed(t *testing.T) {
	frame1, _ := EncodeControlFrame(MsgAudioStart, nil, 1, 0)
	frame2, _ := EncodeControlFrame(MsgAudioStop, nil, 2, 0)

	acc := NewAccumulator()
	frames, err := acc.Feed(append(frame1, frame2...))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, MsgAudioStart, frames[0].Header.Type)
	assert.Equal(t, MsgAudioStop, frames[1].Header.Type)
}

func TestAccumulatorResetsOnBadMagic(t *testing.T) {
	acc := NewAccumulator()
	junk := make([]byte, ControlHeaderSize)
	junk[0] = 0xde

	_, err := acc.Feed(junk)
	assert.ErrorIs(t, err, ErrBadMagic)

	frame, _ := EncodeControlFrame(MsgHello, nil, 1, 0)
	frames, err := acc.Feed(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)
}
