// Package jitter implements the single-stream jitter buffer: a fixed-length
// circular timeline of slots indexed by the low bits of the RTP sequence
// number, absorbing reordering and jitter and synthesizing concealment
// frames on loss.
package jitter

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/codec"
)

// SlotState is the lifecycle state of one timeline slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotFilled
	SlotDecoded
)

// Slot is one entry in the buffer's circular timeline.
type Slot struct {
	State     SlotState
	Sequence  uint16
	Timestamp uint32
	Source    uint32
	Payload   []byte
	Decoded   []int16
	ArrivedAt time.Time
}

// Stats accumulates the counters used to derive loss rate and to verify the
// buffer's accounting invariants.
type Stats struct {
	PacketsReceived uint64
	PacketsLost     uint64
	PacketsLate     uint64
	Overruns        uint64
	Duplicates      uint64
	Reorders        uint64
}

// LossRate returns PacketsLost / (PacketsReceived + PacketsLost), or 0 when
// the denominator is not yet positive.
func (s Stats) LossRate() float64 {
	denom := s.PacketsReceived + s.PacketsLost
	if denom == 0 {
		return 0
	}
	return float64(s.PacketsLost) / float64(denom)
}

// Config tunes one buffer instance.
type Config struct {
	Slots         int
	FrameMs       uint32
	SampleRate    uint32
	TargetDelayMs uint32
	MinDelayMs    uint32
	MaxDelayMs    uint32
	Adaptive      bool
}

// DefaultConfig matches the external-interfaces defaults (N=16, 20ms
// frames, 48kHz, 20ms target delay, adaptive widening off).
func DefaultConfig() Config {
	return Config{
		Slots:         16,
		FrameMs:       20,
		SampleRate:    48000,
		TargetDelayMs: 20,
		MinDelayMs:    10,
		MaxDelayMs:    60,
		Adaptive:      false,
	}
}

// Buffer is a fixed-N circular jitter buffer for one media source.
type Buffer struct {
	mu sync.Mutex

	cfg     Config
	decoder codec.Decoder

	slots       []Slot
	head        int
	count       int
	nextSeq     uint16
	initialized bool

	jitterMs       float64
	lastArrival    time.Time
	lastTimestamp  uint32
	hasLastSamples bool

	stats Stats
}

// New returns an empty buffer bound to the given decoder, which the buffer
// owns and closes on Close.
func New(cfg Config, decoder codec.Decoder) *Buffer {
	if cfg.Slots <= 0 {
		cfg.Slots = 16
	}
	return &Buffer{
		cfg:     cfg,
		decoder: decoder,
		slots:   make([]Slot, cfg.Slots),
	}
}

// Stats returns a snapshot of the buffer's counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Level returns the current buffered depth in milliseconds.
func (b *Buffer) Level() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint32(b.count) * b.cfg.FrameMs
}

func (b *Buffer) slotIndex(seq uint16) int {
	return (b.head + int(seq-b.nextSeq)) % len(b.slots)
}

// Put inserts one arrived media frame following the five-step insert
// algorithm: late/overrun classification, duplicate rejection, slot fill,
// and jitter estimation.
func (b *Buffer) Put(seq uint16, timestamp, source uint32, payload []byte, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		b.initialized = true
		b.nextSeq = seq
		b.head = 0
	}

	n := len(b.slots)
	delta := int16(seq - b.nextSeq)

	if int(delta) < -n/2 {
		b.stats.PacketsLate++
		logrus.WithFields(logrus.Fields{
			"function": "Buffer.Put",
			"seq":      seq,
			"next_seq": b.nextSeq,
		}).Debug("dropped late packet")
		return
	}
	if int(delta) >= n {
		b.stats.Overruns++
		logrus.WithFields(logrus.Fields{
			"function": "Buffer.Put",
			"seq":      seq,
			"next_seq": b.nextSeq,
		}).Debug("dropped overrun packet")
		return
	}

	idx := b.slotIndex(seq)
	slot := &b.slots[idx]

	if slot.State != SlotEmpty && slot.Sequence == seq {
		b.stats.Duplicates++
		return
	}

	if slot.State == SlotEmpty {
		payloadCopy := make([]byte, len(payload))
		copy(payloadCopy, payload)
		slot.State = SlotFilled
		slot.Sequence = seq
		slot.Timestamp = timestamp
		slot.Source = source
		slot.Payload = payloadCopy
		slot.Decoded = nil
		slot.ArrivedAt = now
		b.count++
		b.stats.PacketsReceived++
		if delta < 0 {
			b.stats.Reorders++
		}
	}

	b.updateJitter(timestamp, now)
}

func (b *Buffer) updateJitter(timestamp uint32, now time.Time) {
	if !b.hasLastSamples {
		b.hasLastSamples = true
		b.lastArrival = now
		b.lastTimestamp = timestamp
		return
	}

	arrivalDeltaMs := float64(now.Sub(b.lastArrival)) / float64(time.Millisecond)
	tsDeltaMs := float64(int32(timestamp-b.lastTimestamp)) * 1000 / float64(b.cfg.SampleRate)

	diff := arrivalDeltaMs - tsDeltaMs
	if diff < 0 {
		diff = -diff
	}
	b.jitterMs += (diff - b.jitterMs) / 16

	b.lastArrival = now
	b.lastTimestamp = timestamp
}

// JitterMs returns the current RFC-3550-style jitter estimate.
func (b *Buffer) JitterMs() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jitterMs
}

// targetDelayMs returns the effective warm-up/target delay, widened toward
// jitter*k under the adaptive extension when enabled.
func (b *Buffer) targetDelayMs() uint32 {
	if !b.cfg.Adaptive {
		return b.cfg.TargetDelayMs
	}
	widened := uint32(b.jitterMs * 2)
	if widened < b.cfg.TargetDelayMs {
		widened = b.cfg.TargetDelayMs
	}
	if widened > b.cfg.MaxDelayMs {
		widened = b.cfg.MaxDelayMs
	}
	return widened
}

// Get emits one frame per call, following the five-step emit algorithm,
// gated by target-delay warm-up: emission is held back while the buffered
// depth is below the target delay and fewer than three frames are buffered
// (see original_source's JitterBuffer_Get level_ms/count gate).
func (b *Buffer) Get() ([]int16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil, false
	}
	if b.count == 0 {
		return nil, false
	}

	levelMs := uint32(b.count) * b.cfg.FrameMs
	if levelMs < b.targetDelayMs() && b.count < 3 {
		return nil, false
	}

	slot := &b.slots[b.head]

	var pcm []int16
	if slot.State == SlotEmpty {
		b.stats.PacketsLost++
		pcm = b.decoder.Conceal()
	} else {
		decoded, err := b.decoder.Decode(slot.Payload)
		if err != nil {
			b.stats.PacketsLost++
			pcm = b.decoder.Conceal()
		} else {
			slot.State = SlotDecoded
			slot.Decoded = decoded
			pcm = decoded
		}
		*slot = Slot{}
		b.count--
	}

	b.head = (b.head + 1) % len(b.slots)
	b.nextSeq++

	return pcm, true
}

// Reset clears all slots and counters; the owned decoder stays open so the
// buffer can be reused, matching the boundary's "reset the affected subsystem" policy for
// internal invariant violations rather than propagating a panic.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Buffer) resetLocked() {
	for i := range b.slots {
		b.slots[i] = Slot{}
	}
	b.head = 0
	b.count = 0
	b.initialized = false
	b.hasLastSamples = false
	b.jitterMs = 0
	b.stats = Stats{}
}

// Close releases the owned decoder.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.decoder != nil {
		return b.decoder.Close()
	}
	return nil
}
