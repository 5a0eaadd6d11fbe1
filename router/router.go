// Package router implements the supervisor (C7): it builds an Endpoint for
// every configured device, spawns each endpoint's ingress/egress task, and
// spawns one mapper task per mapping rule that pumps matched-and-transformed
// events from a source endpoint's broadcast to a target endpoint's sender.
package router

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/jparoz/gobetween/config"
	"github.com/jparoz/gobetween/endpoint"
	"github.com/jparoz/gobetween/midi"
)

// eventSource and eventSink are the narrow slices of *endpoint.Endpoint that
// mapperTask actually needs; keeping mapperTask's parameters this narrow
// lets tests exercise the mapping logic with a plain fake, independent of
// any real transport.
type eventSource interface {
	Subscribe() <-chan midi.Event
}

type eventSink interface {
	Sender() chan<- midi.Event
}

// DeviceNotFoundError is returned at build time when a mapping names a
// device that doesn't appear in the config's device list. config.Parse
// already rejects this for the document's own mappings; Build re-validates
// it defensively against whatever config.Config it's actually handed.
type DeviceNotFoundError struct {
	Name string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("router: device %q not found", e.Name)
}

// Router owns every endpoint for the lifetime of one Run call.
type Router struct {
	endpoints map[string]*endpoint.Endpoint
	mappings  []config.Mapping
	log       *log.Logger
}

// Build constructs an Endpoint for each of cfg's devices, not yet running.
func Build(cfg *config.Config, logger *log.Logger) (*Router, error) {
	r := &Router{
		endpoints: make(map[string]*endpoint.Endpoint, len(cfg.Devices)),
		mappings:  cfg.Mappings,
		log:       logger,
	}

	for _, info := range cfg.Devices {
		ep, err := endpoint.New(info, cfg.BroadcastCapacity, cfg.EgressCapacity, logger)
		if err != nil {
			return nil, err
		}
		r.endpoints[info.Name] = ep
	}

	for _, m := range r.mappings {
		if _, ok := r.endpoints[m.From]; !ok {
			return nil, &DeviceNotFoundError{Name: m.From}
		}
		if _, ok := r.endpoints[m.Target]; !ok {
			return nil, &DeviceNotFoundError{Name: m.Target}
		}
	}

	return r, nil
}

// Run starts every endpoint's transport and every mapping's mapper task, and
// blocks until the first one of them returns - whether that's a clean drain
// or a transport error (§4.7, §7: "the supervisor terminates on the first
// task that returns: whether with success... or failure"). It cancels every
// remaining task the moment the first one finishes, waits for them to
// unwind, and returns that first task's result.
//
// golang.org/x/sync/errgroup's Wait blocks for every spawned goroutine to
// finish and only cancels its context on a non-nil error, so a task that
// exits cleanly (e.g. mapperTask when its source's broadcast channel
// closes) would never end Run or wake its siblings. A plain context plus a
// buffered result channel gives first-to-finish-of-either-outcome semantics
// instead.
func (r *Router) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(r.endpoints) + len(r.mappings)
	if total == 0 {
		return nil
	}
	results := make(chan error, total)

	for name, ep := range r.endpoints {
		ep := ep
		name := name
		go func() {
			err := ep.Run(ctx)
			if err != nil {
				r.log.Error("endpoint task ended", "device", name, "err", err)
			} else {
				r.log.Info("endpoint task ended", "device", name)
			}
			results <- err
		}()
	}

	for _, m := range r.mappings {
		m := m
		source := r.endpoints[m.From]
		target := r.endpoints[m.Target]
		go func() {
			results <- r.mapperTask(ctx, m, source, target)
		}()
	}

	first := <-results
	cancel()
	for i := 1; i < total; i++ {
		<-results
	}
	return first
}

// mapperTask receives every event broadcast by source, applies m's
// transformer, and forwards a successful transform to target's sender. It
// returns nil when source's broadcast channel closes (the source endpoint
// drained), and ctx's error when ctx is cancelled (Run cancels it as soon as
// any sibling task finishes).
func (r *Router) mapperTask(ctx context.Context, m config.Mapping, source eventSource, target eventSink) error {
	events := source.Subscribe()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			out, matched := m.Transformer.Transform(ev)
			if !matched {
				continue
			}
			select {
			case target.Sender() <- out:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
