// Command gobetween-tap is a passthrough debug tap: it connects every
// device named in a config file and prints every event broadcast by every
// one of them, with no mapping rules applied. Useful for checking a
// config's device list before wiring mappings for real.
//
// Adapted from the teacher's examples/dump-received, generalised from one
// hardcoded RTP-MIDI session to any number of configured endpoints.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/grandcat/zeroconf"
	flag "github.com/spf13/pflag"

	"github.com/jparoz/gobetween/config"
	"github.com/jparoz/gobetween/endpoint"
	"github.com/jparoz/gobetween/midi"
	"github.com/jparoz/gobetween/sq"
)

const usage = `Usage: gobetween-tap [--advertise] <config>

Connect every device in <config> and print every event it broadcasts.
`

func main() {
	os.Exit(run())
}

func run() int {
	advertise := flag.Bool("advertise", false, "advertise this tap as a _midi._tcp Bonjour service")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}

	logger := log.New(os.Stderr)

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		logger.Error("failed to load config", "err", err)
		return 1
	}

	if *advertise {
		server, err := zeroconf.Register("gobetween-tap", "_midi._tcp", "local.", 51325, []string{"txtv=0"}, nil)
		if err != nil {
			logger.Error("failed to advertise via mDNS", "err", err)
			return 1
		}
		defer server.Shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoints := make([]*endpoint.Endpoint, 0, len(cfg.Devices))
	for _, info := range cfg.Devices {
		ep, err := endpoint.New(info, cfg.BroadcastCapacity, cfg.EgressCapacity, logger)
		if err != nil {
			logger.Error("failed to build endpoint", "device", info.Name, "err", err)
			return 1
		}
		endpoints = append(endpoints, ep)

		go func(name string, ep *endpoint.Endpoint) {
			if err := ep.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("endpoint ended", "device", name, "err", err)
			}
		}(info.Name, ep)

		go printEvents(info.Name, ep.Subscribe())
		if info.NRPN {
			go printNRPN(info.Name, ep.SubscribeNRPN(), logger)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()
	return 0
}

func printEvents(device string, events <-chan midi.Event) {
	for ev := range events {
		fmt.Printf("%s: %+v\n", device, ev)
	}
}

// printNRPN decodes every composite NRPN command recognised on an
// NRPN-speaking device into its typed sq.Message, so the tap shows the
// mixing-console operation a command represents rather than its raw
// coarse/fine CC pair. A command the sq dialect doesn't recognise (not
// every NRPN ID on the console maps to a known page) is logged and skipped.
func printNRPN(device string, commands <-chan midi.NRPNCommand, logger *log.Logger) {
	for cmd := range commands {
		msg, err := sq.FromNRPN(cmd)
		if err != nil {
			logger.Debug("unrecognised nrpn command", "device", device, "command", cmd, "err", err)
			continue
		}
		fmt.Printf("%s: %+v\n", device, msg)
	}
}
