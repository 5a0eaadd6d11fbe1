package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeNRPNFallsThroughOnNonNRPNController(t *testing.T) {
	// A plain CC that never touches the NRPN MSB selector (0x63) can never
	// be part of an NRPN command: ok and need must both be false so the
	// caller treats it as an ordinary CC with nothing consumed.
	ccs := []Event{
		{Kind: ControlChange, Channel: nrpnChannel, Controller: 7, Value: 100},
	}
	_, consumed, ok, need := DecodeNRPN(ccs)
	require.False(t, ok)
	require.False(t, need)
	require.Equal(t, 0, consumed)
}

func TestDecodeNRPNFallsThroughOnWrongChannel(t *testing.T) {
	// Right controller, wrong channel: isNRPNSelector requires nrpnChannel,
	// so this can never resolve to an NRPN command either.
	ccs := []Event{
		{Kind: ControlChange, Channel: nrpnChannel + 1, Controller: ccNRPNMSB, Value: 1},
	}
	_, consumed, ok, need := DecodeNRPN(ccs)
	require.False(t, ok)
	require.False(t, need)
	require.Equal(t, 0, consumed)
}

func TestDecodeNRPNNeedsMoreAfterSelectorsAlone(t *testing.T) {
	// Both selectors present but nothing after them yet: still completable,
	// so the caller should hold back consumption rather than fall through.
	ccs := []Event{
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccNRPNMSB, Value: 1},
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccNRPNLSB, Value: 2},
	}
	_, consumed, ok, need := DecodeNRPN(ccs)
	require.False(t, ok)
	require.True(t, need)
	require.Equal(t, 0, consumed)
}

func TestDecodeNRPNMatchesAbsolute(t *testing.T) {
	ccs := []Event{
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccNRPNMSB, Value: 1},
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccNRPNLSB, Value: 2},
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccDataMSB, Value: 64},
		{Kind: ControlChange, Channel: nrpnChannel, Controller: ccDataLSB, Value: 0},
	}
	cmd, consumed, ok, need := DecodeNRPN(ccs)
	require.True(t, ok)
	require.False(t, need)
	require.Equal(t, 4, consumed)
	require.Equal(t, NRPNCommand{Kind: NRPNAbsolute, ID: NRPNID{MSB: 1, LSB: 2}, Coarse: 64, Fine: 0}, cmd)
}

// TestNRPNDecoderPushFallsBackToPlainCC confirms property 7's "falls
// through" half end-to-end through NRPNDecoder.Push: a CC sequence that
// never matches any nrpnPattern must be handed to onEvent unchanged, in
// order, rather than held or dropped.
func TestNRPNDecoderPushFallsBackToPlainCC(t *testing.T) {
	d := NewNRPNDecoder()

	var commands []NRPNCommand
	var events []Event
	onCommand := func(c NRPNCommand) { commands = append(commands, c) }
	onEvent := func(e Event) { events = append(events, e) }

	plain := []Event{
		{Kind: ControlChange, Channel: 0, Controller: 7, Value: 100},
		{Kind: ControlChange, Channel: 0, Controller: 10, Value: 64},
	}
	for _, e := range plain {
		d.Push(e, onCommand, onEvent)
	}

	require.Empty(t, commands)
	require.Equal(t, plain, events)
}
