// Package lanvox glues wire framing, transport endpoints, the session state
// machine, server fan-out, the jitter/mixer chain, the capture DSP gate,
// and discovery into two constructible entry points, Server and Client,
// following the explicit-value-not-singleton construction and
// New/Start/Stop lifecycle shape of this codebase's original facade type.
package lanvox

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/audioloop"
	"github.com/opd-ai/lanvox/codec"
	"github.com/opd-ai/lanvox/config"
	"github.com/opd-ai/lanvox/discovery"
	"github.com/opd-ai/lanvox/dsp"
	"github.com/opd-ai/lanvox/jitter"
	"github.com/opd-ai/lanvox/mixer"
	"github.com/opd-ai/lanvox/relay"
	"github.com/opd-ai/lanvox/session"
	"github.com/opd-ai/lanvox/transport"
	"github.com/opd-ai/lanvox/wire"
)

func jitterConfigFrom(cfg *config.Config) jitter.Config {
	return jitter.Config{
		Slots:         int(cfg.JitterSlots),
		FrameMs:       cfg.FrameMs,
		SampleRate:    cfg.SampleRate,
		TargetDelayMs: cfg.JitterTargetMs,
		MinDelayMs:    cfg.JitterMinMs,
		MaxDelayMs:    cfg.JitterMaxMs,
		Adaptive:      cfg.JitterAdaptive,
	}
}

// Server bundles a session table, media relay, and discovery responder
// bound to one host's ports.
type Server struct {
	Config *config.Config

	Session   *session.Server
	relayer   *relay.Relay
	responder *discovery.Responder
	media     *transport.UDPSocket
}

// NewServer builds a server bound to cfg's ports but does not yet listen;
// call Start to bind sockets and begin serving.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		Config:  cfg,
		Session: session.NewServer(cfg.ServerName, int(cfg.MaxPeers), cfg.SampleRate, cfg.MediaPort),
	}
}

// Start binds the control listener, media socket, and discovery responder,
// and begins the heartbeat sweep.
func (s *Server) Start() error {
	if _, err := s.Session.Start(fmt.Sprintf(":%d", s.Config.ControlPort), s.Config.HeartbeatTimeout, s.Config.HeartbeatInterval); err != nil {
		return fmt.Errorf("lanvox: control listener: %w", err)
	}

	media, err := transport.NewMediaSocket(fmt.Sprintf(":%d", s.Config.MediaPort), func(data []byte, addr net.Addr) {
		if s.relayer != nil {
			s.relayer.HandleDatagram(data, addr)
		}
	})
	if err != nil {
		s.Session.Stop()
		return fmt.Errorf("lanvox: media socket: %w", err)
	}
	s.media = media
	s.relayer = relay.New(media, s.Session.Table)

	responder, err := discovery.NewResponder(
		fmt.Sprintf(":%d", s.Config.DiscoveryPort),
		1, s.Config.ControlPort, s.Config.MediaPort,
		wire.CapOpus|wire.CapVAD|wire.CapJitter,
		s.Config.ServerName, "1.0",
		uint16(s.Config.MaxPeers),
		func() uint16 { return uint16(s.Session.Table.Len()) },
	)
	if err != nil {
		s.media.Close()
		s.Session.Stop()
		return fmt.Errorf("lanvox: discovery responder: %w", err)
	}
	s.responder = responder

	logrus.WithFields(logrus.Fields{
		"function": "Server.Start",
		"control":  s.Config.ControlPort,
		"media":    s.Config.MediaPort,
	}).Info("server started")
	return nil
}

// Stop tears down every listening socket in reverse startup order.
func (s *Server) Stop() {
	if s.responder != nil {
		s.responder.Stop()
	}
	if s.media != nil {
		s.media.Close()
	}
	s.Session.Stop()
}

// Client bundles a control session, mixer, and media socket for one
// listening participant.
type Client struct {
	Config *config.Config

	Session *session.Client
	Mixer   *mixer.Mixer
	Gate    *dsp.GateState

	media  *transport.UDPSocket
	server *net.UDPAddr

	playbackStop chan struct{}
	captureStop  chan struct{}
}

// NewClient builds a disconnected client identity for the given display
// name.
func NewClient(cfg *config.Config, name string) *Client {
	return &Client{
		Config:  cfg,
		Session: session.NewClient(name),
		Gate:    dsp.NewGateState(dsp.DefaultConfig()),
	}
}

// Connect opens the media socket, performs the control handshake against
// serverControlAddr, and starts the mixer that owns incoming per-source
// jitter buffers.
func (c *Client) Connect(serverControlAddr string) error {
	media, err := transport.NewMediaSocket(":0", c.handleMediaDatagram)
	if err != nil {
		return fmt.Errorf("lanvox: media socket: %w", err)
	}
	c.media = media

	localPort := uint16(media.LocalAddr().(*net.UDPAddr).Port)
	if err := c.Session.Connect(serverControlAddr, localPort, 5*time.Second); err != nil {
		media.Close()
		return err
	}

	c.Mixer = mixer.New(int(c.Config.MaxPeers), c.Session.Source, codec.OpusDecoderFactory{}, jitterConfigFrom(c.Config), int(c.Config.FrameSamples()))

	host, _, err := net.SplitHostPort(serverControlAddr)
	if err != nil {
		media.Close()
		c.Session.Disconnect()
		return fmt.Errorf("lanvox: parse server address: %w", err)
	}
	c.server = &net.UDPAddr{IP: net.ParseIP(host), Port: int(c.Session.ServerMediaPort)}

	return nil
}

// StartAudio wires a capture source and playback sink into background
// tick loops paced by the configured frame duration.
func (c *Client) StartAudio(source audioloop.AudioSource, sink audioloop.AudioSink, enc codec.Encoder) {
	frameInterval := time.Duration(c.Config.FrameMs) * time.Millisecond

	capture := &audioloop.Capture{
		Source:     source,
		Gate:       c.Gate,
		Codec:      enc,
		Socket:     c.media,
		Dest:       c.server,
		SelfSource: c.Session.Source,
		FrameMs:    float64(c.Config.FrameMs),
	}
	playback := &audioloop.Playback{Mixer: c.Mixer, Sink: sink}

	c.captureStop = make(chan struct{})
	c.playbackStop = make(chan struct{})
	go capture.Run(c.captureStop, frameInterval)
	go playback.Run(c.playbackStop, frameInterval)
}

func (c *Client) handleMediaDatagram(data []byte, _ net.Addr) {
	if c.Mixer == nil {
		return
	}
	header, payload, err := wire.DecodeMediaDatagram(data)
	if err != nil {
		return
	}
	c.Mixer.Insert(header.Sequence, header.Timestamp, header.Source, payload, time.Now())
}

// Disconnect stops audio loops, closes the media socket, and returns the
// control session to disconnected, discarding all owned jitter buffers.
func (c *Client) Disconnect() {
	if c.captureStop != nil {
		close(c.captureStop)
	}
	if c.playbackStop != nil {
		close(c.playbackStop)
	}
	if c.Mixer != nil {
		c.Mixer.Reset()
	}
	if c.media != nil {
		c.media.Close()
	}
	c.Session.Disconnect()
}
