// Package midi implements the streaming MIDI 1.0 byte codec, the NRPN
// composite-message codec, value specifiers, and message templates used to
// match and generate MIDI traffic.
package midi

import "fmt"

// Kind identifies which variant of Event is populated.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
	PolyAftertouch
	ControlChange
	ProgramChange
	ChannelAftertouch
	PitchBend
	SysEx
	Realtime
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case PolyAftertouch:
		return "PolyAftertouch"
	case ControlChange:
		return "ControlChange"
	case ProgramChange:
		return "ProgramChange"
	case ChannelAftertouch:
		return "ChannelAftertouch"
	case PitchBend:
		return "PitchBend"
	case SysEx:
		return "SysEx"
	case Realtime:
		return "Realtime"
	default:
		return "Unknown"
	}
}

// Status bytes and masks used throughout the codec.
const (
	statusMask    = 0x80
	channelMask   = 0x0F
	statusNibble  = 0xF0
	noteOffByte   = 0x80
	noteOnByte    = 0x90
	polyATByte    = 0xA0
	ccByte        = 0xB0
	pcByte        = 0xC0
	chanATByte    = 0xD0
	pitchBendByte = 0xE0

	sysExStart = 0xF0
	sysExEnd   = 0xF7
)

// isStatusByte reports whether b has its high bit set.
func isStatusByte(b byte) bool { return b&statusMask != 0 }

// isRealtimeByte reports whether b is a single-byte system realtime message
// (0xF8-0xFF). These never disturb running status or an open SysEx run.
func isRealtimeByte(b byte) bool { return b >= 0xF8 }

// isChannelVoiceStatus reports whether b is a channel-voice status byte
// (0x80-0xEF).
func isChannelVoiceStatus(b byte) bool { return b >= 0x80 && b <= 0xEF }

// dataLength returns the number of data bytes that follow a channel-voice
// status byte, or -1 if status is not a recognised channel-voice status.
//
// Grounded on the teacher's midi/midi.go commandsInfos table, restricted to
// the channel-voice range this codec handles explicitly.
func dataLength(status byte) int {
	switch status & statusNibble {
	case noteOffByte, noteOnByte, polyATByte, ccByte, pitchBendByte:
		return 2
	case pcByte, chanATByte:
		return 1
	default:
		return -1
	}
}

// Event is a single MIDI message. Exactly the fields relevant to Kind are
// meaningful; an Event is immutable and safe to copy after it is produced.
//
// The numeric fields are declared wider than their wire width (§3 says all
// fields but bend14 are 7-bit): a Template.Generate output is a generic
// number until it is serialised, and a Range specifier is free to map onto
// a span wider than 7 bits (§8 Scenario B maps 0-127 onto 0-1023). Encode
// is where §4.1's "out-of-range fields are a programmer error" check
// actually happens.
type Event struct {
	Kind Kind

	Channel  uint32 // 0-15 on the wire, all channel-voice variants
	Key      uint32 // 0-127 on the wire, NoteOn/NoteOff/PolyAftertouch
	Velocity uint32 // 0-127 on the wire, NoteOn/NoteOff

	Controller uint32 // 0-127 on the wire, ControlChange
	Value      uint32 // 0-127 on the wire, ControlChange

	Program uint32 // 0-127 on the wire, ProgramChange

	Pressure uint32 // 0-127 on the wire, PolyAftertouch/ChannelAftertouch

	Bend uint32 // 0-16383 on the wire, PitchBend

	// SysExData holds the body of a System Exclusive run (between but
	// excluding the 0xF0 and 0xF7 framing bytes) for Kind == SysEx.
	SysExData []byte

	// RealtimeStatus is the single status byte (0xF8-0xFF) for Kind == Realtime.
	RealtimeStatus byte
}

func (e Event) String() string {
	switch e.Kind {
	case NoteOn, NoteOff:
		return fmt.Sprintf("%s{ch=%d key=%d vel=%d}", e.Kind, e.Channel, e.Key, e.Velocity)
	case PolyAftertouch:
		return fmt.Sprintf("%s{ch=%d key=%d pressure=%d}", e.Kind, e.Channel, e.Key, e.Pressure)
	case ControlChange:
		return fmt.Sprintf("%s{ch=%d cc=%d val=%d}", e.Kind, e.Channel, e.Controller, e.Value)
	case ProgramChange:
		return fmt.Sprintf("%s{ch=%d program=%d}", e.Kind, e.Channel, e.Program)
	case ChannelAftertouch:
		return fmt.Sprintf("%s{ch=%d pressure=%d}", e.Kind, e.Channel, e.Pressure)
	case PitchBend:
		return fmt.Sprintf("%s{ch=%d bend=%d}", e.Kind, e.Channel, e.Bend)
	case SysEx:
		return fmt.Sprintf("SysEx{%d bytes}", len(e.SysExData))
	case Realtime:
		return fmt.Sprintf("Realtime{0x%02X}", e.RealtimeStatus)
	default:
		return "Event{?}"
	}
}

// IsChannelVoice reports whether the event is one of the seven
// channel-voice variants (as opposed to SysEx or Realtime).
func (e Event) IsChannelVoice() bool {
	switch e.Kind {
	case NoteOn, NoteOff, PolyAftertouch, ControlChange, ProgramChange, ChannelAftertouch, PitchBend:
		return true
	default:
		return false
	}
}

// statusByte returns the canonical status byte for a channel-voice event.
// Out-of-range channels are a programmer error, per §4.1; callers must
// validate before calling this (Encode does so).
func (e Event) statusByte() byte {
	var nibble byte
	switch e.Kind {
	case NoteOn:
		nibble = noteOnByte
	case NoteOff:
		nibble = noteOffByte
	case PolyAftertouch:
		nibble = polyATByte
	case ControlChange:
		nibble = ccByte
	case ProgramChange:
		nibble = pcByte
	case ChannelAftertouch:
		nibble = chanATByte
	case PitchBend:
		nibble = pitchBendByte
	}
	return nibble | byte(e.Channel&channelMask)
}
