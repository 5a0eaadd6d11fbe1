// Command gobetween is a configurable MIDI router and transformer: given a
// YAML document naming a set of MIDI endpoints and per-source mapping
// rules, it continuously routes, matches, and transforms MIDI traffic
// between them until the first task ends (§4.7, §6).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/jparoz/gobetween/config"
	"github.com/jparoz/gobetween/router"
)

const usage = `Usage: gobetween [--log <level>] <config>

Bounce MIDI commands between devices, as described by <config>.
`

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("log", "info", "log level: error, warn, info, debug, trace, off")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}
	configPath := flag.Arg(0)

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gobetween:", err)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		return 1
	}

	r, err := router.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to build router", "err", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("received interrupt, shutting down")
		cancel()
	}()

	if err := r.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("router ended with an error", "err", err)
		return 2
	}

	return 0
}

// newLogger builds the single *log.Logger threaded through router, endpoint,
// and midi (§2). "trace" has no distinct level in charmbracelet/log, so it
// maps to Debug with a "trace" field set; "off" discards all output instead
// of mapping to a level, since there's no level above Error that suppresses
// Fatal too.
func newLogger(level string) (*log.Logger, error) {
	logger := log.New(os.Stderr)

	if level == "off" {
		logger.SetOutput(io.Discard)
		return logger, nil
	}

	if level == "trace" {
		logger.SetLevel(log.DebugLevel)
		return logger.With("trace", true), nil
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)
	return logger, nil
}
