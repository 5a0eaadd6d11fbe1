package endpoint

import (
	"context"
	"net"

	"github.com/jparoz/gobetween/midi"
)

// tcpTransport connects to a host:port MIDI-over-TCP device (§4.6). Reads
// use an incrementally-growing buffer whose unconsumed tail is copied back
// to the front after every Feed.
//
// Grounded on original_source/src/device.rs's tcp_midi (dial, then select
// between a growing read buffer and a send channel) and the teacher's
// session package's connection handling, adapted from a single fixed-size
// read to the codec's growing-buffer contract.
type tcpTransport struct {
	address string
}

func (t *tcpTransport) run(ctx context.Context, e *Endpoint) error {
	conn, err := net.Dial("tcp", t.address)
	if err != nil {
		return err
	}
	defer conn.Close()

	e.log.Info("connected", "address", t.address)

	// Cancellation is a sibling task's failure, not a transport event.
	// writeLoop can select on ctx directly; readLoop is parked in a
	// synchronous conn.Read with nothing to select on, so the standard way
	// to unblock it is to close the connection out from under it.
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopWatch:
		}
	}()

	errCh := make(chan error, 2)
	go t.readLoop(e, conn, errCh)
	go t.writeLoop(ctx, e, conn, errCh)

	err = <-errCh
	e.closeSubscribers()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *tcpTransport) readLoop(e *Endpoint, conn net.Conn, errCh chan<- error) {
	dec := midi.NewDecoder()
	dec.Warn = func(format string, args ...any) { e.log.Warnf(format, args...) }

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := conn.Read(chunk)
		if err != nil {
			errCh <- err
			return
		}

		buf = append(buf, chunk[:n]...)
		consumed := dec.Feed(buf, e.ingest)
		buf = append(buf[:0], buf[consumed:]...)
	}
}

func (t *tcpTransport) writeLoop(ctx context.Context, e *Endpoint, conn net.Conn, errCh chan<- error) {
	for {
		select {
		case ev, ok := <-e.egress:
			if !ok {
				errCh <- nil
				return
			}
			out, err := midi.Encode(ev)
			if err != nil {
				e.log.Error("encode error, dropping event", "event", ev, "err", err)
				continue
			}
			if _, err := conn.Write(out); err != nil {
				errCh <- err
				return
			}

		case cmd, ok := <-e.nrpnOut:
			if !ok {
				errCh <- nil
				return
			}
			if _, err := conn.Write(midi.EncodeNRPN(cmd)); err != nil {
				errCh <- err
				return
			}

		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
	}
}
