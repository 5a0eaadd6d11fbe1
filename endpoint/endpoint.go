// Package endpoint implements per-device ingress and egress tasks (C6): each
// Endpoint owns a transport (TCP or native MIDI), feeds the byte codec in
// package midi, fans incoming events out to subscribers, and serialises
// outgoing events received on a bounded point-to-point channel.
package endpoint

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jparoz/gobetween/config"
	"github.com/jparoz/gobetween/midi"
)

// Endpoint is the public contract of C6: Subscribe for a broadcast receiver
// of events produced by this device, Sender for a point-to-point sender of
// events to deliver to it. Neither half is required to be consumed;
// unsubscribed or unsent events are dropped silently.
type Endpoint struct {
	Name string
	NRPN bool

	broadcastCap int
	egressCap    int

	mu          sync.Mutex
	subscribers map[int]chan midi.Event
	nextSubID   int

	nrpnMu          sync.Mutex
	nrpnSubscribers map[int]chan midi.NRPNCommand
	nextNRPNSubID   int
	nrpnDecoder     *midi.NRPNDecoder

	egress  chan midi.Event
	nrpnOut chan midi.NRPNCommand

	transport transport
	log       *log.Logger
}

// transport is the per-kind half of an Endpoint that actually moves bytes.
// run blocks until the transport stops, either because the connection/port
// closed, because of a transport error, or because ctx was cancelled. The
// TCP transport returns as soon as the first of its read and write loops
// ends; it does not wait for the other loop to exit.
type transport interface {
	run(ctx context.Context, e *Endpoint) error
}

// New builds an Endpoint for info, not yet running. Call Run to start its
// ingress and egress tasks.
func New(info config.DeviceInfo, broadcastCap, egressCap int, logger *log.Logger) (*Endpoint, error) {
	e := &Endpoint{
		Name:         info.Name,
		NRPN:         info.NRPN,
		broadcastCap: broadcastCap,
		egressCap:    egressCap,
		subscribers:  make(map[int]chan midi.Event),
		egress:       make(chan midi.Event, egressCap),
		log:          logger.With("endpoint", info.Name),
	}
	if info.NRPN {
		e.nrpnSubscribers = make(map[int]chan midi.NRPNCommand)
		e.nrpnDecoder = midi.NewNRPNDecoder()
		e.nrpnOut = make(chan midi.NRPNCommand, egressCap)
	}

	switch info.Kind {
	case config.TCP:
		e.transport = &tcpTransport{address: info.Address}
	case config.Native:
		e.transport = &nativeTransport{inName: info.MidiIn, outName: info.MidiOut}
	default:
		return nil, unsupportedKindError(info.Name)
	}

	return e, nil
}

// Subscribe returns a new broadcast receiver of events produced by this
// endpoint's ingress task. The channel is buffered at the endpoint's
// broadcast capacity (§4.6); a subscriber that falls behind has events
// dropped for it, never for the producer.
func (e *Endpoint) Subscribe() <-chan midi.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan midi.Event, e.broadcastCap)
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	return ch
}

// Sender returns this endpoint's point-to-point egress channel. It is
// bounded at the endpoint's egress capacity (§4.6); sending to it suspends
// the caller once full, propagating backpressure upstream.
func (e *Endpoint) Sender() chan<- midi.Event {
	return e.egress
}

// SubscribeNRPN returns a broadcast receiver of composite NRPN commands
// recognised from this endpoint's ControlChange traffic (§4.2). Only
// meaningful for endpoints configured with nrpn: true; other endpoints
// return nil.
func (e *Endpoint) SubscribeNRPN() <-chan midi.NRPNCommand {
	if !e.NRPN {
		return nil
	}
	e.nrpnMu.Lock()
	defer e.nrpnMu.Unlock()

	ch := make(chan midi.NRPNCommand, e.broadcastCap)
	id := e.nextNRPNSubID
	e.nextNRPNSubID++
	e.nrpnSubscribers[id] = ch
	return ch
}

// SendNRPN encodes cmd to its canonical byte sequence and queues it on this
// endpoint's egress, bypassing the plain Event path. It reports false
// without queueing anything if the endpoint isn't configured for NRPN.
func (e *Endpoint) SendNRPN(cmd midi.NRPNCommand) bool {
	if !e.NRPN {
		return false
	}
	e.nrpnOut <- cmd
	return true
}

// ingest is the shared decode-side entry point for both transport kinds: for
// a plain endpoint every decoded Event is published directly; for an
// NRPN-speaking endpoint, ControlChange events are first run through the
// NRPN recognizer (C2), so recognised composite commands are published on
// the NRPN channel instead of leaking their constituent CCs to subscribers.
func (e *Endpoint) ingest(ev midi.Event) {
	if !e.NRPN {
		e.publish(ev)
		return
	}
	e.nrpnDecoder.Push(ev, e.publishNRPN, e.publish)
}

// publishNRPN fans cmd out to every current NRPN subscriber, dropping it for
// any whose channel is full.
func (e *Endpoint) publishNRPN(cmd midi.NRPNCommand) {
	e.nrpnMu.Lock()
	defer e.nrpnMu.Unlock()

	for id, ch := range e.nrpnSubscribers {
		select {
		case ch <- cmd:
		default:
			e.log.Debug("dropping nrpn command for lagging subscriber", "subscriber", id, "command", cmd)
		}
	}
}

// publish fans ev out to every current subscriber, dropping it for any
// whose channel is full rather than blocking the ingress task.
func (e *Endpoint) publish(ev midi.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			e.log.Debug("dropping event for lagging subscriber", "subscriber", id, "event", ev)
		}
	}
}

// closeSubscribers closes every broadcast channel, signalling subscribers
// that this endpoint's ingress has ended.
func (e *Endpoint) closeSubscribers() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}

	if e.NRPN {
		e.nrpnMu.Lock()
		for id, ch := range e.nrpnSubscribers {
			close(ch)
			delete(e.nrpnSubscribers, id)
		}
		e.nrpnMu.Unlock()
	}
}

// Run starts the endpoint's transport, blocking until it exits (either
// because the underlying connection closed, because of a transport error,
// or because ctx was cancelled). Intended to be run as one of the router's
// supervised tasks.
func (e *Endpoint) Run(ctx context.Context) error {
	return e.transport.run(ctx, e)
}

func unsupportedKindError(name string) error {
	return &unsupportedKind{name: name}
}

type unsupportedKind struct{ name string }

func (u *unsupportedKind) Error() string {
	return "endpoint: device " + u.name + " has no recognised transport kind"
}
