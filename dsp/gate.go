// Package dsp implements the capture-side voice/noise discriminator: a
// per-frame RMS/zero-crossing analyzer driving an attack/release-smoothed
// gain that attenuates silence and high-energy non-voice content before
// capture audio is encoded and sent.
package dsp

import "math"

// Defaults from the external-interfaces section.
const (
	DefaultNoiseGateThresholdDb  = -40.0
	DefaultHighEnergyThresholdDb = -6.0
	DefaultZCRLow                = 0.05
	DefaultZCRHigh               = 0.5
	DefaultAttenuation           = 0.1
	DefaultAttackMs              = 5.0
	DefaultReleaseMs             = 50.0
	floorDb                      = -100.0
)

// Config tunes the classification thresholds and smoothing time constants.
type Config struct {
	NoiseGateThresholdDb  float64
	HighEnergyThresholdDb float64
	ZCRLow                float64
	ZCRHigh               float64
	Attenuation           float64
	AttackMs              float64
	ReleaseMs             float64
	GateEnabled           bool
	NoiseDetectEnabled    bool
}

// DefaultConfig returns the spec's default thresholds with both the
// silence gate and noise-attenuation detection enabled.
func DefaultConfig() Config {
	return Config{
		NoiseGateThresholdDb:  DefaultNoiseGateThresholdDb,
		HighEnergyThresholdDb: DefaultHighEnergyThresholdDb,
		ZCRLow:                DefaultZCRLow,
		ZCRHigh:               DefaultZCRHigh,
		Attenuation:           DefaultAttenuation,
		AttackMs:              DefaultAttackMs,
		ReleaseMs:             DefaultReleaseMs,
		GateEnabled:           true,
		NoiseDetectEnabled:    true,
	}
}

// Analysis is the result of analyzing one capture frame.
type Analysis struct {
	RMS            float64
	RMSDb          float64
	ZCR            float64
	IsSilence      bool
	IsHighEnergy   bool
	IsLikelyNoise  bool
	IsLikelyVoice  bool
}

// CalcRMS returns the root-mean-square of pcm normalized to [0,1].
func CalcRMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// LinearToDb converts a normalized linear amplitude to decibels, floored
// at floorDb to avoid -Inf for silence.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return floorDb
	}
	db := 20 * math.Log10(linear)
	if db < floorDb {
		return floorDb
	}
	return db
}

// CalcZeroCrossingRate returns the fraction of adjacent sample pairs whose
// sign differs.
func CalcZeroCrossingRate(pcm []int16) float64 {
	if len(pcm) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(pcm); i++ {
		if (pcm[i-1] >= 0) != (pcm[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(pcm)-1)
}

// Analyze classifies one capture frame per the spec's silence/high-energy/
// noise/voice rules.
func Analyze(pcm []int16, cfg Config) Analysis {
	rms := CalcRMS(pcm)
	db := LinearToDb(rms)
	zcr := CalcZeroCrossingRate(pcm)

	a := Analysis{RMS: rms, RMSDb: db, ZCR: zcr}
	a.IsSilence = db < cfg.NoiseGateThresholdDb
	a.IsHighEnergy = db > cfg.HighEnergyThresholdDb
	a.IsLikelyNoise = a.IsHighEnergy && zcr < cfg.ZCRLow
	a.IsLikelyVoice = !a.IsSilence && zcr >= cfg.ZCRLow && zcr <= cfg.ZCRHigh
	return a
}

// GateState holds the one-pole smoothed gain applied to outgoing capture
// audio.
type GateState struct {
	cfg     Config
	current float64
	target  float64
}

// NewGateState returns a gate with full gain (1.0) applied.
func NewGateState(cfg Config) *GateState {
	return &GateState{cfg: cfg, current: 1.0, target: 1.0}
}

// CurrentGain returns the gate's current smoothed gain.
func (g *GateState) CurrentGain() float64 { return g.current }

// Process analyzes one frame, selects a target gain, advances the current
// gain one step via attack/release one-pole smoothing, and applies the
// resulting gain to pcm in place with saturation.
func (g *GateState) Process(pcm []int16, frameMs float64) Analysis {
	a := Analyze(pcm, g.cfg)

	target := 1.0
	if a.IsSilence && g.cfg.GateEnabled {
		target = 0.0
	} else if a.IsLikelyNoise && g.cfg.NoiseDetectEnabled {
		target = g.cfg.Attenuation
	}
	g.target = target

	var coef float64
	if target < g.current {
		coef = 1 - math.Exp(-frameMs/g.cfg.AttackMs)
	} else {
		coef = 1 - math.Exp(-frameMs/g.cfg.ReleaseMs)
	}
	g.current += (target - g.current) * coef

	applyGain(pcm, g.current)
	return a
}

// applyGain scales pcm in place by gain, saturating to the int16 range.
func applyGain(pcm []int16, gain float64) {
	for i, s := range pcm {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}
}
