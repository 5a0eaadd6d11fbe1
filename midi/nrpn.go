package midi

import "fmt"

// NRPNKind identifies which of the four composite NRPN commands a value
// represents.
type NRPNKind int

const (
	NRPNAbsolute NRPNKind = iota
	NRPNIncrement
	NRPNDecrement
	NRPNGet
)

// NRPN control-change numbers used by the composite command prefixes.
const (
	ccNRPNMSB  = 0x63
	ccNRPNLSB  = 0x62
	ccDataMSB  = 0x06
	ccDataLSB  = 0x26
	ccData     = 0x60
	nrpnIncVal = 0x00
	nrpnDecVal = 0x00
	nrpnGetVal = 0x7F

	nrpnChannel = 0 // the console dialect always addresses channel 0
)

// NRPNCommand is the parsed/emitted form of a 14-bit-addressed NRPN
// composite command: Absolute sets a value outright, Increment/Decrement
// nudge it, Get requests its current value. id is the pair (msb, lsb)
// forming the 14-bit parameter number.
//
// Grounded on original_source/src/sq/message/mod.rs's Nrpn::to_bytes /
// Nrpn::from_buf.
type NRPNCommand struct {
	Kind NRPNKind
	ID   NRPNID

	// Coarse and Fine are only meaningful for NRPNAbsolute; both must be
	// <= 0x7F (§3 NRPN command invariant).
	Coarse uint8
	Fine   uint8
}

// NRPNID is a pair of 7-bit bytes denoting a 14-bit NRPN parameter number.
type NRPNID struct {
	MSB uint8
	LSB uint8
}

// Value returns the 14-bit parameter number this ID addresses.
func (id NRPNID) Value() uint16 {
	return uint16(id.MSB&0x7F)<<7 | uint16(id.LSB&0x7F)
}

// Absolute constructs an Absolute command, validating the §3 invariant that
// its data bytes are each <= 0x7F.
func Absolute(id NRPNID, coarse, fine uint8) (NRPNCommand, error) {
	if coarse > 0x7F || fine > 0x7F {
		return NRPNCommand{}, fmt.Errorf("midi: nrpn absolute coarse/fine must be <= 0x7F, got %d/%d", coarse, fine)
	}
	return NRPNCommand{Kind: NRPNAbsolute, ID: id, Coarse: coarse, Fine: fine}, nil
}

// Increment constructs an Increment command for id.
func Increment(id NRPNID) NRPNCommand { return NRPNCommand{Kind: NRPNIncrement, ID: id} }

// Decrement constructs a Decrement command for id.
func Decrement(id NRPNID) NRPNCommand { return NRPNCommand{Kind: NRPNDecrement, ID: id} }

// Get constructs a Get command for id.
func Get(id NRPNID) NRPNCommand { return NRPNCommand{Kind: NRPNGet, ID: id} }

// EncodeNRPN serialises cmd to its canonical byte pattern: 12 bytes for
// Absolute, 9 for Increment/Decrement/Get, always a multiple of 3 (§4.2).
func EncodeNRPN(cmd NRPNCommand) []byte {
	cc := func(controller, value uint8) []byte {
		return []byte{ccByte | nrpnChannel, controller, value}
	}

	out := make([]byte, 0, 12)
	out = append(out, cc(ccNRPNMSB, cmd.ID.MSB)...)
	out = append(out, cc(ccNRPNLSB, cmd.ID.LSB)...)

	switch cmd.Kind {
	case NRPNAbsolute:
		out = append(out, cc(ccDataMSB, cmd.Coarse)...)
		out = append(out, cc(ccDataLSB, cmd.Fine)...)
	case NRPNIncrement:
		out = append(out, cc(ccData, nrpnIncVal)...)
	case NRPNDecrement:
		out = append(out, cc(0x61, nrpnDecVal)...)
	case NRPNGet:
		out = append(out, cc(ccData, nrpnGetVal)...)
	}
	return out
}

// nrpnPattern describes one of the four fixed CC-sequences, used for
// anchored prefix matching against a stream of already-decoded CC events.
type nrpnPattern struct {
	kind NRPNKind
	// tailControllers/tailValues hold the (controller, value) pairs after
	// the MSB/LSB selectors; a value of -1 means "any value accepted here" (used for the coarse/
	// fine data bytes of Absolute).
	tailControllers []uint8
	tailValues      []int
}

var nrpnPatterns = []nrpnPattern{
	// Tie-break order per §4.2: Absolute before Increment before Decrement before Get.
	{kind: NRPNAbsolute, tailControllers: []uint8{ccDataMSB, ccDataLSB}, tailValues: []int{-1, -1}},
	{kind: NRPNIncrement, tailControllers: []uint8{ccData}, tailValues: []int{nrpnIncVal}},
	{kind: NRPNDecrement, tailControllers: []uint8{0x61}, tailValues: []int{nrpnDecVal}},
	{kind: NRPNGet, tailControllers: []uint8{ccData}, tailValues: []int{nrpnGetVal}},
}

// DecodeNRPN tries to match a canonical NRPN command at the head of ccs (a
// slice of already-parsed ControlChange events). It is purely syntactic,
// longest-match, anchored at the head (§4.2):
//
//   - a full match returns the command and the number of events consumed;
//   - a partial-but-still-completable prefix returns ok=false, need=true so
//     the caller holds back consumption until more events arrive;
//   - an impossible prefix returns ok=false, need=false so the caller falls
//     through to plain CC handling with no events consumed.
func DecodeNRPN(ccs []Event) (cmd NRPNCommand, consumed int, ok bool, need bool) {
	if len(ccs) == 0 {
		return NRPNCommand{}, 0, false, true
	}
	if !isNRPNSelector(ccs[0], ccNRPNMSB) {
		return NRPNCommand{}, 0, false, false
	}
	if len(ccs) < 2 {
		return NRPNCommand{}, 0, false, true
	}
	if !isNRPNSelector(ccs[1], ccNRPNLSB) {
		return NRPNCommand{}, 0, false, false
	}
	msb, lsb := uint8(ccs[0].Value), uint8(ccs[1].Value)
	id := NRPNID{MSB: msb, LSB: lsb}

	for _, pat := range nrpnPatterns {
		tailLen := len(pat.tailControllers)
		have := len(ccs) - 2
		matchable := true
		for i := 0; i < tailLen && i < have; i++ {
			ev := ccs[2+i]
			if uint8(ev.Controller) != pat.tailControllers[i] {
				matchable = false
				break
			}
			if pat.tailValues[i] >= 0 && int(ev.Value) != pat.tailValues[i] {
				matchable = false
				break
			}
		}
		if !matchable {
			continue
		}
		if have < tailLen {
			// This pattern is still completable with more bytes.
			return NRPNCommand{}, 0, false, true
		}
		// Full match against this pattern.
		switch pat.kind {
		case NRPNAbsolute:
			coarse := uint8(ccs[2].Value)
			fine := uint8(ccs[3].Value)
			return NRPNCommand{Kind: NRPNAbsolute, ID: id, Coarse: coarse, Fine: fine}, 4, true, false
		default:
			return NRPNCommand{Kind: pat.kind, ID: id}, 3, true, false
		}
	}

	return NRPNCommand{}, 0, false, false
}

func isNRPNSelector(e Event, controller uint8) bool {
	return e.Kind == ControlChange && e.Channel == nrpnChannel && e.Controller == uint32(controller)
}

// NRPNDecoder recognises the four composite NRPN command patterns within a
// stream of already-decoded Events, emitting OnCommand for each recognised
// command and OnEvent for everything else (including CCs that turn out not
// to be part of an NRPN command). It is stateless between commands in the
// sense described by §4.2 (selectors are re-sent before every command); the
// only state it carries is the buffer of not-yet-resolved ControlChange
// events.
type NRPNDecoder struct {
	pending []Event
}

// NewNRPNDecoder returns an NRPNDecoder with an empty pending buffer.
func NewNRPNDecoder() *NRPNDecoder {
	return &NRPNDecoder{}
}

// Push feeds one Event through the NRPN recognizer. onCommand is called for
// each fully recognised NRPNCommand; onEvent is called, in original stream
// order, for every Event that isn't part of a recognised command (including
// non-ControlChange events and ControlChanges that don't complete a
// pattern).
func (d *NRPNDecoder) Push(e Event, onCommand func(NRPNCommand), onEvent func(Event)) {
	if e.Kind != ControlChange {
		d.flush(onEvent)
		onEvent(e)
		return
	}

	d.pending = append(d.pending, e)
	for {
		cmd, consumed, ok, need := DecodeNRPN(d.pending)
		switch {
		case ok:
			onCommand(cmd)
			d.pending = d.pending[consumed:]
		case need:
			return
		default:
			onEvent(d.pending[0])
			d.pending = d.pending[1:]
			if len(d.pending) == 0 {
				return
			}
		}
	}
}

// flush emits any buffered ControlChange events as plain events, used when
// an intervening non-CC event proves the pending prefix was never going to
// complete.
func (d *NRPNDecoder) flush(onEvent func(Event)) {
	for _, e := range d.pending {
		onEvent(e)
	}
	d.pending = nil
}
