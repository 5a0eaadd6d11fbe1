package sq

import (
	"fmt"

	"github.com/jparoz/gobetween/midi"
)

// ButtonState is the state carried by a Mute or Assign message.
type ButtonState int

const (
	On ButtonState = iota
	Off
	Toggle
	GetButton
)

// ValueStateKind identifies which operation a ValueState performs.
type ValueStateKind int

const (
	Set ValueStateKind = iota
	IncrementValue
	DecrementValue
	GetValue
)

// ValueState is the state carried by a Level or Pan message: either an
// absolute 14-bit value to set, or a relative/query operation.
type ValueState struct {
	Kind ValueStateKind
	Val  uint16 // meaningful only for Set
}

// SetValue constructs a ValueState that sets an absolute 14-bit value.
func SetValue(v uint16) ValueState { return ValueState{Kind: Set, Val: v} }

// Increment is a ValueState that nudges the current value up.
var Increment = ValueState{Kind: IncrementValue}

// Decrement is a ValueState that nudges the current value down.
var Decrement = ValueState{Kind: DecrementValue}

// GetState is a ValueState that requests the current value.
var GetState = ValueState{Kind: GetValue}

// MessageKind identifies which variant of Message is populated.
type MessageKind int

const (
	Level MessageKind = iota
	Mute
	Pan
	Assign
)

// Message is a typed mixing-console command: a Level or Pan change between a
// Source and a Target, a Mute toggle on a Source, or an Assign of a Source
// to a Target. It converts to and from the raw NRPN wire commands in
// package midi via ToNRPN/FromNRPN.
type Message struct {
	Kind MessageKind

	Source Source
	Target Target // unused for Mute

	Value  ValueState // Level, Pan
	Button ButtonState // Mute, Assign
}

// LevelMessage constructs a Level message.
func LevelMessage(source Source, target Target, value ValueState) Message {
	return Message{Kind: Level, Source: source, Target: target, Value: value}
}

// MuteMessage constructs a Mute message. Mute state is shared between
// Targets, so no Target is needed.
func MuteMessage(source Source, button ButtonState) Message {
	return Message{Kind: Mute, Source: source, Button: button}
}

// PanMessage constructs a Pan message.
func PanMessage(source Source, target Target, value ValueState) Message {
	return Message{Kind: Pan, Source: source, Target: target, Value: value}
}

// AssignMessage constructs an Assign message.
func AssignMessage(source Source, target Target, button ButtonState) Message {
	return Message{Kind: Assign, Source: source, Target: target, Button: button}
}

// ToNRPN converts m to its wire-level NRPN command (§4.2 in package midi).
func (m Message) ToNRPN() (midi.NRPNCommand, error) {
	switch m.Kind {
	case Level, Pan:
		p := pageLevel
		if m.Kind == Pan {
			p = pagePan
		}
		id, err := idFor(p, m.Source, m.Target)
		if err != nil {
			return midi.NRPNCommand{}, err
		}
		return valueStateToNRPN(id.toMIDI(), m.Value)

	case Mute:
		id, err := idForMute(m.Source)
		if err != nil {
			return midi.NRPNCommand{}, err
		}
		return buttonStateToNRPN(id.toMIDI(), m.Button)

	case Assign:
		id, err := idFor(pageAssign, m.Source, m.Target)
		if err != nil {
			return midi.NRPNCommand{}, err
		}
		return buttonStateToNRPN(id.toMIDI(), m.Button)

	default:
		return midi.NRPNCommand{}, fmt.Errorf("sq: unknown message kind %d", m.Kind)
	}
}

func valueStateToNRPN(id midi.NRPNID, v ValueState) (midi.NRPNCommand, error) {
	switch v.Kind {
	case Set:
		coarse, fine := bit14(v.Val)
		return midi.Absolute(id, coarse, fine)
	case IncrementValue:
		return midi.Increment(id), nil
	case DecrementValue:
		return midi.Decrement(id), nil
	case GetValue:
		return midi.Get(id), nil
	default:
		return midi.NRPNCommand{}, fmt.Errorf("sq: unknown value state kind %d", v.Kind)
	}
}

func buttonStateToNRPN(id midi.NRPNID, b ButtonState) (midi.NRPNCommand, error) {
	switch b {
	case On:
		return midi.Absolute(id, 0x00, 0x01)
	case Off:
		return midi.Absolute(id, 0x00, 0x00)
	case Toggle:
		return midi.Increment(id), nil
	case GetButton:
		return midi.Get(id), nil
	default:
		return midi.NRPNCommand{}, fmt.Errorf("sq: unknown button state %d", b)
	}
}

// FromNRPN recovers the typed Message that produced cmd, using the page
// encoded in cmd.ID to decide between Level, Mute, Pan, and Assign.
func FromNRPN(cmd midi.NRPNCommand) (Message, error) {
	id := ID{MSB: cmd.ID.MSB, LSB: cmd.ID.LSB}
	p, source, target, isMute, err := id.decode()
	if err != nil {
		return Message{}, err
	}

	if isMute {
		button, err := buttonStateFromNRPN(cmd)
		if err != nil {
			return Message{}, err
		}
		return MuteMessage(source, button), nil
	}

	switch p {
	case pageLevel, pagePan:
		value, err := valueStateFromNRPN(cmd)
		if err != nil {
			return Message{}, err
		}
		if p == pagePan {
			return PanMessage(source, target, value), nil
		}
		return LevelMessage(source, target, value), nil

	case pageAssign:
		button, err := buttonStateFromNRPN(cmd)
		if err != nil {
			return Message{}, err
		}
		return AssignMessage(source, target, button), nil

	default:
		return Message{}, fmt.Errorf("sq: unknown nrpn page %d", p)
	}
}

func valueStateFromNRPN(cmd midi.NRPNCommand) (ValueState, error) {
	switch cmd.Kind {
	case midi.NRPNAbsolute:
		return SetValue(bit14Join(cmd.Fine, cmd.Coarse)), nil
	case midi.NRPNIncrement:
		return Increment, nil
	case midi.NRPNDecrement:
		return Decrement, nil
	case midi.NRPNGet:
		return GetState, nil
	default:
		return ValueState{}, fmt.Errorf("sq: unknown nrpn kind %d", cmd.Kind)
	}
}

func buttonStateFromNRPN(cmd midi.NRPNCommand) (ButtonState, error) {
	switch cmd.Kind {
	case midi.NRPNAbsolute:
		if cmd.Coarse == 0 && cmd.Fine == 0x01 {
			return On, nil
		}
		return Off, nil
	case midi.NRPNIncrement:
		return Toggle, nil
	case midi.NRPNGet:
		return GetButton, nil
	default:
		return 0, fmt.Errorf("sq: unknown nrpn kind %d for button state", cmd.Kind)
	}
}

// toMIDI converts a sq.ID to the shape package midi's NRPN codec expects.
func (id ID) toMIDI() midi.NRPNID { return midi.NRPNID{MSB: id.MSB, LSB: id.LSB} }

// bit14 splits a 14-bit value into its coarse (MSB) and fine (LSB) 7-bit halves.
func bit14(v uint16) (coarse, fine uint8) {
	return uint8((v >> 7) & 0x7F), uint8(v & 0x7F)
}

// bit14Join is the inverse of bit14.
func bit14Join(fine, coarse uint8) uint16 {
	return uint16(coarse&0x7F)<<7 | uint16(fine&0x7F)
}
