// Package audioloop drives the two cooperating per-frame tasks that move
// audio between the local device and the network: a capture tick (gate,
// encode, send) and a playback tick (mix, output). Timing is locked to
// whatever calls Tick — this package has no timer of its own — and neither
// tick depends on any concrete OS audio binding; callers supply raw PCM
// in/out through the AudioSource/AudioSink interfaces below.
package audioloop

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/codec"
	"github.com/opd-ai/lanvox/dsp"
	"github.com/opd-ai/lanvox/mixer"
	"github.com/opd-ai/lanvox/transport"
	"github.com/opd-ai/lanvox/wire"
)

// AudioSource yields one raw PCM capture frame per call.
type AudioSource interface {
	ReadFrame() ([]int16, error)
}

// AudioSink accepts one raw PCM frame for playback.
type AudioSink interface {
	WriteFrame(pcm []int16) error
}

// RetrySleep is the pause a playback tick takes on an empty mixer pull
// before the caller should try again.
const RetrySleep = 5 * time.Millisecond

// Capture runs the gate -> encode -> send path for one local source.
type Capture struct {
	Source AudioSource
	Gate   *dsp.GateState
	Codec  codec.Encoder
	Socket *transport.UDPSocket
	Dest   net.Addr

	SelfSource uint32
	FrameMs    float64

	Muted bool

	seq       uint16
	timestamp uint32
}

// Tick reads, gates, encodes, and transmits one capture frame. It is a
// no-op send when Muted is set, though the gate still runs so gain state
// stays warm across a mute/unmute cycle.
func (c *Capture) Tick() error {
	pcm, err := c.Source.ReadFrame()
	if err != nil {
		return err
	}

	analysis := c.Gate.Process(pcm, c.FrameMs)

	frameLen := uint32(len(pcm))
	seq := c.seq
	ts := c.timestamp
	c.seq++
	c.timestamp += frameLen

	if c.Muted {
		return nil
	}

	payload, err := c.Codec.Encode(pcm)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Capture.Tick",
			"error":    err.Error(),
		}).Warn("encode failed, dropping frame")
		return nil
	}

	header := wire.RTPHeader{
		Version:     wire.RTPVersion,
		PayloadType: wire.PayloadOpus,
		Sequence:    seq,
		Timestamp:   ts,
		Source:      c.SelfSource,
	}
	header.SetVAD(!analysis.IsSilence)

	datagram := wire.EncodeMediaDatagram(header, payload)
	if err := c.Socket.SendTo(datagram, c.Dest); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Capture.Tick",
			"error":    err.Error(),
		}).Debug("media send failed")
	}
	return nil
}

// Playback runs the mix -> output path for one destination device.
type Playback struct {
	Mixer *mixer.Mixer
	Sink  AudioSink
}

// Tick pulls one mixed frame and writes it to the sink. It returns
// (false, nil) on an empty pull so the caller can apply RetrySleep; it
// never sleeps itself, keeping this package free of any timer dependency.
func (p *Playback) Tick() (bool, error) {
	pcm := p.Mixer.Pull()
	if pcm == nil {
		return false, nil
	}
	if err := p.Sink.WriteFrame(pcm); err != nil {
		return true, err
	}
	return true, nil
}

// Run drives Tick in a loop paced by frameInterval until stopCh is closed,
// sleeping RetrySleep after an empty pull instead of waiting a full frame
// interval.
func (p *Playback) Run(stopCh <-chan struct{}, frameInterval time.Duration) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			wrote, err := p.Tick()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Playback.Run",
					"error":    err.Error(),
				}).Warn("playback write failed")
				continue
			}
			if !wrote {
				time.Sleep(RetrySleep)
			}
		}
	}
}

// Run drives Tick in a loop paced by frameInterval until stopCh is closed.
func (c *Capture) Run(stopCh <-chan struct{}, frameInterval time.Duration) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := c.Tick(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Capture.Run",
					"error":    err.Error(),
				}).Warn("capture read failed")
			}
		}
	}
}
