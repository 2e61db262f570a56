// Package lanvox implements a LAN voice-conferencing core: wire framing,
// transport endpoints, a session state machine, server fan-out, a
// single-stream jitter buffer, a multi-stream mixer, a capture DSP gate,
// an audio loop, and discovery, glued together behind two constructible
// entry points.
//
// # Getting Started
//
// Build a server from a defaulted config and start it:
//
//	cfg := config.Default()
//	srv := lanvox.NewServer(cfg)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
//
// A client connects, then wires its own audio source/sink once the
// control handshake has assigned it a source identifier:
//
//	client := lanvox.NewClient(cfg, "alice")
//	if err := client.Connect("192.168.1.10:5000"); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	client.StartAudio(myMicSource, mySpeakerSink, codec.NewPCMEncoder(cfg.CodecBitrate))
//
// # Core Types
//
//   - [Server]: server-side session table, media relay, discovery responder
//   - [Client]: client-side control session, per-source jitter mixer
//
// # Subsystems
//
// This package is the integration point, orchestrating:
//
//   - [wire]: control/media frame encode and decode
//   - [transport]: UDP discovery/media sockets and the TCP control listener
//   - [session]: server membership table and client connection state machine
//   - [relay]: server-side media fan-out
//   - [jitter]: single-stream jitter buffer
//   - [mixer]: bounded multi-stream mixer
//   - [dsp]: capture gate (RMS/ZCR analysis, attack/release gain)
//   - [audioloop]: capture/playback tick drivers
//   - [discovery]: broadcast responder/requester
//   - [codec]: opaque encode/decode/PLC interface
//   - [config]: defaulted runtime options
package lanvox
