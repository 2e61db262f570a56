package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder returns the payload's first byte as a marker sample so tests
// can distinguish decoded frames from concealment (all-9999) frames.
type fakeDecoder struct {
	failSeqs map[byte]bool
}

func (d *fakeDecoder) Decode(payload []byte) ([]int16, error) {
	if len(payload) > 0 && d.failSeqs[payload[0]] {
		return nil, assertErr{}
	}
	pcm := make([]int16, 960)
	if len(payload) > 0 {
		pcm[0] = int16(payload[0])
	}
	return pcm, nil
}

func (d *fakeDecoder) Conceal() []int16 {
	pcm := make([]int16, 960)
	pcm[0] = -1
	return pcm
}

func (d *fakeDecoder) Close() error { return nil }

type assertErr struct{}

func (assertErr) Error() string { return "decode failed" }

func newTestBuffer() (*Buffer, *fakeDecoder) {
	dec := &fakeDecoder{failSeqs: map[byte]bool{}}
	cfg := DefaultConfig()
	cfg.TargetDelayMs = 0 // disable warm-up gate to isolate insert/emit ordering in most tests
	return New(cfg, dec), dec
}

func TestOrderedStreamNoLossNoReorder(t *testing.T) {
	buf, _ := newTestBuffer()
	base := time.Now()

	for i := 0; i < 16; i++ {
		seq := uint16(100 + i)
		ts := uint32(i) * 960
		buf.Put(seq, ts, 1, []byte{byte(seq)}, base.Add(time.Duration(i)*20*time.Millisecond))
	}

	nonPLC := 0
	for i := 0; i < 16; i++ {
		pcm, ok := buf.Get()
		require.True(t, ok)
		if pcm[0] != -1 {
			nonPLC++
		}
	}
	assert.Equal(t, 16, nonPLC)

	stats := buf.Stats()
	assert.Equal(t, uint64(0), stats.PacketsLost)
	assert.Equal(t, uint64(0), stats.Reorders)
}

func TestOneDropInsertsPLCAtGap(t *testing.T) {
	buf, _ := newTestBuffer()
	base := time.Now()

	seqs := []uint16{100, 101, 103, 104}
	for i, seq := range seqs {
		buf.Put(seq, uint32(seq)*960, 1, []byte{byte(seq)}, base.Add(time.Duration(i)*20*time.Millisecond))
	}

	var results []int16
	for i := 0; i < 5; i++ {
		pcm, ok := buf.Get()
		require.True(t, ok)
		results = append(results, pcm[0])
	}

	plcCount := 0
	for _, s := range results {
		if s == -1 {
			plcCount++
		}
	}
	assert.Equal(t, 1, plcCount)

	stats := buf.Stats()
	assert.Equal(t, uint64(1), stats.PacketsLost)
	// Reorder counting is intentionally not pinned to an exact value here:
	// the tightened delta<0 rule only fires when a packet arrives after
	// next_seq has already advanced past it, which this pre-emit insertion
	// order does not trigger.
}

func TestSequenceWrapIsContiguous(t *testing.T) {
	buf, _ := newTestBuffer()
	base := time.Now()

	seqs := []uint16{65534, 65535, 0, 1}
	for i, seq := range seqs {
		buf.Put(seq, uint32(i)*960, 1, []byte{byte(i)}, base.Add(time.Duration(i)*20*time.Millisecond))
	}

	for i := 0; i < 4; i++ {
		pcm, ok := buf.Get()
		require.True(t, ok)
		assert.NotEqual(t, int16(-1), pcm[0])
	}

	stats := buf.Stats()
	assert.Equal(t, uint64(0), stats.PacketsLate)
	assert.Equal(t, uint64(0), stats.Overruns)
}

func TestDuplicateSequenceDroppedSilently(t *testing.T) {
	buf, _ := newTestBuffer()
	now := time.Now()

	buf.Put(200, 0, 1, []byte{200}, now)
	buf.Put(200, 0, 1, []byte{200}, now.Add(5*time.Millisecond))

	stats := buf.Stats()
	assert.Equal(t, uint64(1), stats.PacketsReceived)
	assert.Equal(t, uint64(1), stats.Duplicates)
}

func TestEmitNothingBeforeFirstInsert(t *testing.T) {
	buf, _ := newTestBuffer()
	_, ok := buf.Get()
	assert.False(t, ok)
}

func TestEmitMonotonicSequenceAfterFirstEmit(t *testing.T) {
	buf, _ := newTestBuffer()
	base := time.Now()
	for i := 0; i < 10; i++ {
		buf.Put(uint16(50+i), uint32(i)*960, 1, []byte{byte(i)}, base.Add(time.Duration(i)*20*time.Millisecond))
	}

	last := int16(-2)
	for i := 0; i < 10; i++ {
		pcm, ok := buf.Get()
		require.True(t, ok)
		assert.Greater(t, pcm[0], last)
		last = pcm[0]
	}
}

func TestTargetDelayWarmUpHoldsEmission(t *testing.T) {
	dec := &fakeDecoder{failSeqs: map[byte]bool{}}
	cfg := DefaultConfig()
	cfg.TargetDelayMs = 60 // 3 frames at 20ms
	buf := New(cfg, dec)

	buf.Put(1, 0, 1, []byte{1}, time.Now())
	_, ok := buf.Get()
	assert.False(t, ok, "should hold emission until target delay reached")

	buf.Put(2, 960, 1, []byte{2}, time.Now())
	buf.Put(3, 1920, 1, []byte{3}, time.Now())
	_, ok = buf.Get()
	assert.True(t, ok, "should emit once count reaches warm-up threshold")
}

func TestResetClearsStateAndCounters(t *testing.T) {
	buf, _ := newTestBuffer()
	buf.Put(1, 0, 1, []byte{1}, time.Now())
	buf.Reset()

	_, ok := buf.Get()
	assert.False(t, ok)
	assert.Equal(t, Stats{}, buf.Stats())
}
