package endpoint

import (
	"context"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/jparoz/gobetween/midi"
)

// nativeTransport opens a physical or virtual MIDI input/output pair by
// exact port name (§4.6). The input side is a driver callback, invoked on
// the driver's own thread; it must not block, so decoded events go straight
// to Endpoint.ingest, which only ever does a non-blocking broadcast send.
//
// Grounded on other_examples' leafo-midirouter (rtmididrv.New, drv.Ins/Outs,
// exact-name matching, midi.ListenTo/SendTo) in place of original_source's
// midir bindings.
type nativeTransport struct {
	inName  string
	outName string
}

func (t *nativeTransport) run(ctx context.Context, e *Endpoint) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("endpoint: opening native MIDI driver: %w", err)
	}
	defer drv.Close()

	inPort, err := findIn(drv, t.inName)
	if err != nil {
		return err
	}
	outPort, err := findOut(drv, t.outName)
	if err != nil {
		return err
	}

	sender, err := gomidi.SendTo(outPort)
	if err != nil {
		return fmt.Errorf("endpoint: opening sender for %q: %w", t.outName, err)
	}

	dec := midi.NewDecoder()
	dec.Warn = func(format string, args ...any) { e.log.Warnf(format, args...) }

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, _ int32) {
		dec.Feed([]byte(msg), e.ingest)
	})
	if err != nil {
		return fmt.Errorf("endpoint: listening to %q: %w", t.inName, err)
	}
	defer stop()
	defer e.closeSubscribers()

	e.log.Info("connected", "in", t.inName, "out", t.outName)

	for {
		select {
		case ev, ok := <-e.egress:
			if !ok {
				return nil
			}
			out, err := midi.Encode(ev)
			if err != nil {
				e.log.Error("encode error, dropping event", "event", ev, "err", err)
				continue
			}
			if err := sender(gomidi.Message(out)); err != nil {
				return err
			}

		case cmd, ok := <-e.nrpnOut:
			if !ok {
				return nil
			}
			if err := sender(gomidi.Message(midi.EncodeNRPN(cmd))); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func findIn(drv *rtmididrv.Driver, name string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("endpoint: listing MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("endpoint: no MIDI input port named %q", name)
}

func findOut(drv *rtmididrv.Driver, name string) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("endpoint: listing MIDI outputs: %w", err)
	}
	for _, out := range outs {
		if out.String() == name {
			return out, nil
		}
	}
	return nil, fmt.Errorf("endpoint: no MIDI output port named %q", name)
}
