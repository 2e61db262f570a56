// Package mixer implements the multi-stream jitter mixer: a bounded table
// of per-source jitter buffers, pulled once per tick and summed with
// int32 headroom before saturating to int16 on output.
package mixer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/codec"
	"github.com/opd-ai/lanvox/jitter"
)

// InactivityTimeout is how long an entry may sit idle before the periodic
// sweep evicts it.
const InactivityTimeout = 10 * time.Second

type streamEntry struct {
	source     uint32
	active     bool
	buffer     *jitter.Buffer
	decoder    codec.Decoder
	lastActive time.Time
}

// Mixer owns a fixed table of K stream entries, K = the session's max peer
// count, and sums one frame per active entry into a saturated output frame.
type Mixer struct {
	mu sync.Mutex

	selfSource uint32
	factory    codec.DecoderFactory
	jitterCfg  jitter.Config
	entries    []streamEntry
	frameLen   int
}

// New returns a mixer with K entries, none active.
func New(k int, selfSource uint32, factory codec.DecoderFactory, jitterCfg jitter.Config, frameLen int) *Mixer {
	return &Mixer{
		selfSource: selfSource,
		factory:    factory,
		jitterCfg:  jitterCfg,
		entries:    make([]streamEntry, k),
		frameLen:   frameLen,
	}
}

// Insert forwards one arrived media frame to the entry for its source,
// creating or evicting an entry as needed. Frames from the mixer's own
// source are skipped per the "skip self-source" rule.
func (m *Mixer) Insert(seq uint16, timestamp, source uint32, payload []byte, now time.Time) {
	if source == m.selfSource {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		e := &m.entries[i]
		if e.active && e.source == source {
			e.lastActive = now
			e.buffer.Put(seq, timestamp, source, payload, now)
			return
		}
	}

	idx := m.freeOrEvictLocked(now)
	if err := m.activateLocked(idx, source); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Mixer.Insert",
			"source":   source,
			"error":    err.Error(),
		}).Error("failed to create decoder for new stream entry")
		return
	}

	e := &m.entries[idx]
	e.lastActive = now
	e.buffer.Put(seq, timestamp, source, payload, now)
}

// freeOrEvictLocked returns the index of a free entry, or evicts the
// oldest-last-active entry when the table is full. Caller holds mu.
func (m *Mixer) freeOrEvictLocked(now time.Time) int {
	for i := range m.entries {
		if !m.entries[i].active {
			return i
		}
	}

	oldest := 0
	for i := range m.entries {
		if m.entries[i].lastActive.Before(m.entries[oldest].lastActive) {
			oldest = i
		}
	}
	m.destroyLocked(oldest)
	return oldest
}

// activateLocked creates a fresh decoder and then a jitter buffer around it
// for the entry at idx, so a decoder-creation failure leaves nothing to
// clean up, and marks it active.
func (m *Mixer) activateLocked(idx int, source uint32) error {
	dec, err := m.factory.NewDecoder()
	if err != nil {
		return err
	}
	m.entries[idx] = streamEntry{
		source:  source,
		active:  true,
		buffer:  jitter.New(m.jitterCfg, dec),
		decoder: dec,
	}
	return nil
}

// destroyLocked tears down an entry's jitter buffer and decoder together,
// preserving the "destruction is always paired" invariant. Caller holds mu.
func (m *Mixer) destroyLocked(idx int) {
	e := &m.entries[idx]
	if e.buffer != nil {
		e.buffer.Close()
	}
	*e = streamEntry{}
}

// Pull sums one frame from every active entry into a saturated int16 frame.
// An entry with no frame available this tick contributes nothing.
func (m *Mixer) Pull() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := make([]int32, m.frameLen)
	any := false

	for i := range m.entries {
		e := &m.entries[i]
		if !e.active {
			continue
		}
		pcm, ok := e.buffer.Get()
		if !ok {
			continue
		}
		any = true
		for j := 0; j < len(acc) && j < len(pcm); j++ {
			acc[j] += int32(pcm[j])
		}
	}

	if !any {
		return nil
	}

	out := make([]int16, m.frameLen)
	for i, v := range acc {
		out[i] = saturate(v)
	}
	return out
}

func saturate(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Sweep marks any entry inactive whose last-active time is older than
// InactivityTimeout, destroying its jitter buffer and decoder.
func (m *Mixer) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		e := &m.entries[i]
		if e.active && now.Sub(e.lastActive) > InactivityTimeout {
			m.destroyLocked(i)
		}
	}
}

// ActiveCount returns the number of currently active stream entries.
func (m *Mixer) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.entries {
		if m.entries[i].active {
			n++
		}
	}
	return n
}

// Reset destroys every active entry.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].active {
			m.destroyLocked(i)
		}
	}
}
