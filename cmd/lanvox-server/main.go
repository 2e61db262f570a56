// Package main is the command-line entry point for the lanvox server: a
// LAN voice-conferencing relay that accepts control connections, fans out
// media between in-session peers, and answers discovery broadcasts.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox"
	"github.com/opd-ai/lanvox/config"
)

var flagSet = flag.NewFlagSet("lanvox-server", flag.ExitOnError)

type cliConfig struct {
	discoveryPort uint
	controlPort   uint
	mediaPort     uint
	maxPeers      uint
	serverName    string
	logLevel      string
	help          bool
}

func parseFlags() *cliConfig {
	defaults := config.Default()
	c := &cliConfig{}

	flagSet.UintVar(&c.discoveryPort, "discovery-port", uint(defaults.DiscoveryPort), "UDP discovery port")
	flagSet.UintVar(&c.controlPort, "control-port", uint(defaults.ControlPort), "TCP control port")
	flagSet.UintVar(&c.mediaPort, "media-port", uint(defaults.MediaPort), "UDP media port")
	flagSet.UintVar(&c.maxPeers, "max-peers", uint(defaults.MaxPeers), "maximum simultaneous peers")
	flagSet.StringVar(&c.serverName, "name", defaults.ServerName, "server name advertised to discovery requesters")
	flagSet.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&c.help, "help", false, "show this help message")

	flagSet.Parse(os.Args[1:])
	return c
}

func printUsage() {
	fmt.Println("lanvox-server: LAN voice-conferencing relay")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flagSet.PrintDefaults()
}

func main() {
	c := parseFlags()
	if c.help {
		printUsage()
		return
	}

	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", c.logLevel, err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	cfg := config.Default()
	cfg.DiscoveryPort = uint16(c.discoveryPort)
	cfg.ControlPort = uint16(c.controlPort)
	cfg.MediaPort = uint16(c.mediaPort)
	cfg.MaxPeers = uint32(c.maxPeers)
	cfg.ServerName = c.serverName

	srv := lanvox.NewServer(cfg)
	if err := srv.Start(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Fatal("server failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	sig := <-sigChan

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"signal":   sig.String(),
	}).Info("shutting down")
	srv.Stop()
}
