package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func silentFrame(n int) []int16 {
	return make([]int16, n)
}

func sineFrame(n int, cyclesPerFrame float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		v := math.Sin(2 * math.Pi * cyclesPerFrame * float64(i) / float64(n))
		pcm[i] = int16(v * 20000)
	}
	return pcm
}

func TestCalcRMSSilence(t *testing.T) {
	assert.Equal(t, 0.0, CalcRMS(silentFrame(960)))
}

func TestLinearToDbFloors(t *testing.T) {
	assert.Equal(t, floorDb, LinearToDb(0))
}

func TestCalcZeroCrossingRateConstant(t *testing.T) {
	pcm := make([]int16, 100)
	for i := range pcm {
		pcm[i] = 100
	}
	assert.Equal(t, 0.0, CalcZeroCrossingRate(pcm))
}

func TestCalcZeroCrossingRateAlternating(t *testing.T) {
	pcm := make([]int16, 100)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 100
		} else {
			pcm[i] = -100
		}
	}
	assert.Greater(t, CalcZeroCrossingRate(pcm), 0.9)
}

func TestAnalyzeSilenceClassifiesSilent(t *testing.T) {
	a := Analyze(silentFrame(960), DefaultConfig())
	assert.True(t, a.IsSilence)
	assert.False(t, a.IsHighEnergy)
}

func TestGateMonotonicGainDecayOnSilence(t *testing.T) {
	g := NewGateState(DefaultConfig())
	frame := silentFrame(960)

	last := g.CurrentGain()
	for i := 0; i < 50; i++ {
		pcmCopy := make([]int16, len(frame))
		copy(pcmCopy, frame)
		g.Process(pcmCopy, 20)
		assert.LessOrEqual(t, g.CurrentGain(), last)
		last = g.CurrentGain()
	}
	assert.LessOrEqual(t, g.CurrentGain(), 0.05)
}

func TestGateRecoversOnVoiceLikeSignal(t *testing.T) {
	g := NewGateState(DefaultConfig())
	silent := silentFrame(960)
	for i := 0; i < 10; i++ {
		pcmCopy := make([]int16, len(silent))
		copy(pcmCopy, silent)
		g.Process(pcmCopy, 20)
	}
	require := assert.New(t)
	require.LessOrEqual(g.CurrentGain(), 0.1)

	voice := sineFrame(960, 40) // zero-crossing rate well within voice band
	for i := 0; i < 50; i++ {
		pcmCopy := make([]int16, len(voice))
		copy(pcmCopy, voice)
		g.Process(pcmCopy, 20)
	}
	assert.GreaterOrEqual(t, g.CurrentGain(), 0.95)
}

func TestApplyGainSaturates(t *testing.T) {
	pcm := []int16{32000, -32000}
	applyGain(pcm, 2.0)
	assert.Equal(t, int16(32767), pcm[0])
	assert.Equal(t, int16(-32768), pcm[1])
}
