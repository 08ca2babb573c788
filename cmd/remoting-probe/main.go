// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// remoting-probe dials a remoting endpoint, performs the handshake,
// and reports what was negotiated: transmission mode, both
// capabilities, and any pre-handshake noise the peer emitted before
// its first marker. Useful when a connection "hangs" and the question
// is whether the peer is speaking the protocol at all.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/remoting/lib/channel"
	"github.com/bureau-foundation/remoting/lib/config"
	"github.com/bureau-foundation/remoting/lib/version"
	"github.com/bureau-foundation/remoting/lib/wire"
	"github.com/bureau-foundation/remoting/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var dialAddress string
	var modeName string
	var timeout time.Duration
	var showHeader bool
	var verbose bool

	flagSet := pflag.NewFlagSet("remoting-probe", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to remoting config file (default: REMOTING_CONFIG)")
	flagSet.StringVar(&dialAddress, "dial", "", "endpoint address, e.g. agent.internal:7099 (overrides config)")
	flagSet.StringVar(&modeName, "mode", "", "transmission mode: negotiate, binary, or text (overrides config)")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "bound on dial plus handshake")
	flagSet.BoolVar(&showHeader, "show-header", false, "dump pre-handshake bytes from the peer")
	flagSet.BoolVar(&verbose, "verbose", false, "debug logging to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other remoting binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("remoting-probe")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dialAddress != "" {
		cfg.Transport.Dial = dialAddress
	}
	if modeName != "" {
		cfg.Channel.Mode = modeName
	}
	if cfg.Transport.Dial == "" {
		return fmt.Errorf("no endpoint to probe; pass --dial or set transport.dial in the config")
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	capability, err := cfg.Capability()
	if err != nil {
		return err
	}
	filter, err := cfg.ClassFilter()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := transport.TCPDialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, cfg.Transport.Dial)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cfg.Transport.Dial, err)
	}
	defer conn.Close()

	// The handshake itself has no timeout; closing the conn from the
	// context is what bounds it.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var header bytes.Buffer
	started := time.Now()
	ch, err := channel.NewBuilder("probe").
		WithMode(mode).
		WithCapability(capability).
		WithClassFilter(filter).
		WithHeaderStream(&header).
		WithLogger(logger).
		Build(conn, conn)
	if err != nil {
		if header.Len() > 0 {
			fmt.Printf("peer emitted %d bytes before failing:\n%s\n", header.Len(), header.String())
		}
		return err
	}

	fmt.Printf("endpoint:     %s\n", cfg.Transport.Dial)
	fmt.Printf("handshake:    %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("mode:         %s\n", ch.Mode())
	fmt.Printf("protocol:     local %d, peer %d\n",
		ch.LocalCapability().Protocol, ch.PeerCapability().Protocol)
	fmt.Printf("compression:  %s\n", describeCompression(ch.LocalCapability(), ch.PeerCapability()))
	if showHeader && header.Len() > 0 {
		fmt.Printf("header bytes: %q\n", header.String())
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("REMOTING_CONFIG") != "" {
		return config.Load()
	}
	// Probing needs no config file; flags carry the endpoint.
	return config.Default(), nil
}

func describeCompression(local, peer wire.Capability) string {
	tag := wire.CommonCompression(local, peer)
	return tag.String()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Probe a remoting endpoint's handshake.

Dials the endpoint, runs the handshake to completion, and reports the
negotiated mode and capabilities. Leading noise the peer emits before
its first protocol marker (login banners, shell output) is captured
and shown with --show-header.

Usage:
  remoting-probe --dial HOST:PORT [flags]

Examples:
  # Probe with full negotiation
  remoting-probe --dial agent.internal:7099

  # Insist on binary mode; a text-only peer fails the handshake
  remoting-probe --dial agent.internal:7099 --mode binary

  # Show what a misbehaving peer says before the protocol starts
  remoting-probe --dial agent.internal:7099 --show-header

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
