// Package config centralizes the default runtime values for every tunable
// named in the external-interfaces section: ports, session limits, audio
// format, and jitter/codec parameters. It follows the flat defaulted
// options-struct-plus-constructor shape used throughout the codebase this
// module is built from, rather than a config file or environment parser.
package config

import "time"

// Config holds every runtime-tunable value for a server or client instance.
type Config struct {
	DiscoveryPort uint16
	ControlPort   uint16
	MediaPort     uint16

	MaxPeers uint32

	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	FrameMs       uint32

	JitterTargetMs uint32
	JitterMinMs    uint32
	JitterMaxMs    uint32
	JitterSlots    uint32
	JitterAdaptive bool

	CodecBitrate uint32

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	DiscoveryInterval time.Duration

	ServerName string
}

// Default returns a Config populated with the values from the external
// interfaces section, the way NewOptions builds a zero-value-safe options
// struct rather than requiring every field to be set by the caller.
func Default() *Config {
	return &Config{
		DiscoveryPort: 37020,
		ControlPort:   5000,
		MediaPort:     6000,

		MaxPeers: 16,

		SampleRate:    48000,
		Channels:      1,
		BitsPerSample: 16,
		FrameMs:       20,

		JitterTargetMs: 20,
		JitterMinMs:    10,
		JitterMaxMs:    60,
		JitterSlots:    16,
		JitterAdaptive: false,

		CodecBitrate: 32000,

		HeartbeatInterval: 3 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		DiscoveryInterval: 3 * time.Second,

		ServerName: "lanvox",
	}
}

// FrameSamples returns the sample count of one frame at the configured
// sample rate and frame duration (960 at the defaults).
func (c *Config) FrameSamples() uint32 {
	return c.SampleRate * c.FrameMs / 1000
}
