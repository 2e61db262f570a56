package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMEncoderRoundTripLength(t *testing.T) {
	enc := NewPCMEncoder(64000)
	pcm := make([]int16, FrameSamples)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	out, err := enc.Encode(pcm)
	require.NoError(t, err)
	assert.Len(t, out, FrameSamples*2)
}

func TestPCMEncoderClosed(t *testing.T) {
	enc := NewPCMEncoder(64000)
	require.NoError(t, enc.Close())
	_, err := enc.Encode(make([]int16, FrameSamples))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpusDecoderConcealReturnsSilence(t *testing.T) {
	factory := OpusDecoderFactory{}
	dec, err := factory.NewDecoder()
	require.NoError(t, err)

	pcm := dec.Conceal()
	require.Len(t, pcm, FrameSamples)
	for _, s := range pcm {
		assert.Equal(t, int16(0), s)
	}
}

func TestOpusDecoderRejectsEmptyPayload(t *testing.T) {
	factory := OpusDecoderFactory{}
	dec, err := factory.NewDecoder()
	require.NoError(t, err)

	_, err = dec.Decode(nil)
	assert.Error(t, err)
}

func TestOpusDecoderClosed(t *testing.T) {
	factory := OpusDecoderFactory{}
	dec, err := factory.NewDecoder()
	require.NoError(t, err)
	require.NoError(t, dec.Close())

	_, err = dec.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFitFramePadsShortPCM(t *testing.T) {
	short := []int16{1, 2, 3}
	fitted := fitFrame(short)
	assert.Len(t, fitted, FrameSamples)
	assert.Equal(t, int16(1), fitted[0])
}

func TestFitFrameTruncatesLongPCM(t *testing.T) {
	long := make([]int16, FrameSamples*2)
	fitted := fitFrame(long)
	assert.Len(t, fitted, FrameSamples)
}
