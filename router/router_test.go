package router

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/jparoz/gobetween/config"
	"github.com/jparoz/gobetween/midi"
)

// fakeSource/fakeSink stand in for *endpoint.Endpoint in mapperTask tests,
// so the mapping logic can be exercised without a real transport.
type fakeSource struct{ ch chan midi.Event }

func (f *fakeSource) Subscribe() <-chan midi.Event { return f.ch }

type fakeSink struct{ ch chan midi.Event }

func (f *fakeSink) Sender() chan<- midi.Event { return f.ch }

func passthroughMapping(t *testing.T) config.Mapping {
	t.Helper()
	tmpl := midi.Template{Kind: midi.NoteOn}
	tr, err := midi.NewTransformer(tmpl, tmpl, nil)
	require.NoError(t, err)
	return config.Mapping{From: "A", Target: "B", Transformer: &tr}
}

func TestMapperTaskForwardsMatchedEvents(t *testing.T) {
	r := &Router{log: log.New(io.Discard)}
	source := &fakeSource{ch: make(chan midi.Event, 1)}
	sink := &fakeSink{ch: make(chan midi.Event, 1)}

	done := make(chan error, 1)
	go func() { done <- r.mapperTask(context.Background(), passthroughMapping(t), source, sink) }()

	ev := midi.Event{Kind: midi.NoteOn, Channel: 1, Key: 60, Velocity: 100}
	source.ch <- ev
	close(source.ch)

	require.Equal(t, ev, <-sink.ch)
	require.NoError(t, <-done)
}

func TestMapperTaskDropsUnmatchedEvents(t *testing.T) {
	r := &Router{log: log.New(io.Discard)}
	source := &fakeSource{ch: make(chan midi.Event, 1)}
	sink := &fakeSink{ch: make(chan midi.Event, 1)}

	done := make(chan error, 1)
	go func() { done <- r.mapperTask(context.Background(), passthroughMapping(t), source, sink) }()

	source.ch <- midi.Event{Kind: midi.ControlChange, Channel: 1, Controller: 7, Value: 10}
	close(source.ch)

	require.NoError(t, <-done)
	select {
	case ev := <-sink.ch:
		t.Fatalf("unmatched event should not be forwarded, got %+v", ev)
	default:
	}
}

func TestMapperTaskExitsOnCancellation(t *testing.T) {
	r := &Router{log: log.New(io.Discard)}
	source := &fakeSource{ch: make(chan midi.Event)}
	sink := &fakeSink{ch: make(chan midi.Event)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.mapperTask(ctx, passthroughMapping(t), source, sink) }()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("mapperTask did not exit after context cancellation")
	}
}

func TestBuildRejectsUnknownMappingDevice(t *testing.T) {
	tmpl := midi.Template{Kind: midi.NoteOn}
	tr, err := midi.NewTransformer(tmpl, tmpl, nil)
	require.NoError(t, err)

	cfg := &config.Config{
		Devices: []config.DeviceInfo{
			{Name: "A", Kind: config.TCP, Address: "localhost:0"},
		},
		Mappings: []config.Mapping{
			{From: "A", Target: "Ghost", Transformer: &tr},
		},
		BroadcastCapacity: 8,
		EgressCapacity:    2,
	}

	_, err = Build(cfg, log.New(io.Discard))
	require.Error(t, err)
	var notFound *DeviceNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "Ghost", notFound.Name)
}

func TestBuildConstructsAnEndpointPerDevice(t *testing.T) {
	cfg := &config.Config{
		Devices: []config.DeviceInfo{
			{Name: "A", Kind: config.TCP, Address: "localhost:0"},
			{Name: "B", Kind: config.TCP, Address: "localhost:0"},
		},
		BroadcastCapacity: 8,
		EgressCapacity:    2,
	}

	r, err := Build(cfg, log.New(io.Discard))
	require.NoError(t, err)
	require.Len(t, r.endpoints, 2)
}
