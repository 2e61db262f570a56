// Package main is the command-line entry point for the lanvox client: it
// performs the control handshake against a server and drives capture and
// playback ticks against whatever AudioSource/AudioSink the host provides.
//
// This binary wires in a silent placeholder source/sink so the handshake,
// jitter, and mixer paths can be exercised end to end without an OS audio
// binding; embedders link a real device implementation against the same
// audioloop.AudioSource/AudioSink interfaces.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox"
	"github.com/opd-ai/lanvox/codec"
	"github.com/opd-ai/lanvox/config"
)

var flagSet = flag.NewFlagSet("lanvox-client", flag.ExitOnError)

type cliConfig struct {
	serverAddr string
	name       string
	logLevel   string
	help       bool
}

func parseFlags() *cliConfig {
	c := &cliConfig{}

	flagSet.StringVar(&c.serverAddr, "server", "", "server control address, host:port (required)")
	flagSet.StringVar(&c.name, "name", "", "display name to announce (required)")
	flagSet.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&c.help, "help", false, "show this help message")

	flagSet.Parse(os.Args[1:])
	return c
}

func printUsage() {
	fmt.Println("lanvox-client: LAN voice-conferencing client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s -server host:port -name alice\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flagSet.PrintDefaults()
}

func validateCLIConfig(c *cliConfig) error {
	if c.serverAddr == "" {
		return fmt.Errorf("-server is required")
	}
	if c.name == "" {
		return fmt.Errorf("-name is required")
	}
	return nil
}

// silentSource yields a frame of digital silence for every capture tick.
type silentSource struct {
	frameSamples int
}

func (s silentSource) ReadFrame() ([]int16, error) {
	return make([]int16, s.frameSamples), nil
}

// discardSink drops every played-back frame.
type discardSink struct{}

func (discardSink) WriteFrame(pcm []int16) error { return nil }

func main() {
	c := parseFlags()
	if c.help {
		printUsage()
		return
	}
	if err := validateCLIConfig(c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", c.logLevel, err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	cfg := config.Default()
	client := lanvox.NewClient(cfg, c.name)

	if err := client.Connect(c.serverAddr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"server":   c.serverAddr,
			"error":    err.Error(),
		}).Fatal("connect failed")
	}

	source := silentSource{frameSamples: int(cfg.FrameSamples())}
	client.StartAudio(source, discardSink{}, codec.NewPCMEncoder(cfg.CodecBitrate))

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"server":   c.serverAddr,
		"name":     c.name,
	}).Info("connected")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	sig := <-sigChan

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"signal":   sig.String(),
	}).Info("disconnecting")
	client.Disconnect()
	time.Sleep(50 * time.Millisecond)
}
