package midi

import "fmt"

// Decoder turns a stream of incoming bytes into a sequence of Events. It
// carries exactly three pieces of state between Feed calls: the current
// channel-voice running status, whether a System Exclusive run is open, and
// that run's accumulated body. There are no package-level statics; every
// caller owns its own Decoder.
//
// Grounded on original_source/src/device.rs's parse_midi_from_buf (skip one
// byte and warn on a parse error; stop cleanly on a short buffer or an
// unterminated SysEx) and the teacher's midi/midi.go data-length table.
type Decoder struct {
	runningStatus byte
	sysEx         bool
	sysExBuf      []byte

	// Warn, if non-nil, is called once per corrupt byte skipped during
	// resynchronisation (§7 Parse). It is never called for a short read.
	Warn func(format string, args ...any)
}

// NewDecoder returns a Decoder with no running status and no open SysEx run.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) warn(format string, args ...any) {
	if d.Warn != nil {
		d.Warn(format, args...)
	}
}

// Feed consumes as many complete events as possible from buf, calling emit
// for each in byte order, and returns the number of bytes consumed. The
// caller must retain buf[consumed:] (the incomplete tail, if any) and
// prepend it to the next chunk of bytes fed in; that matches the TCP
// endpoint's "growing buffer cleared after each flush" contract in §4.6.
//
// Feed never aborts: an unexpected data byte with no active status and no
// running status is logged via Warn and skipped one byte at a time (§4.1,
// §7 Parse, property 4 in §8).
func (d *Decoder) Feed(buf []byte, emit func(Event)) (consumed int) {
	i := 0
	for i < len(buf) {
		b := buf[i]

		if d.sysEx {
			switch {
			case b == sysExEnd:
				emit(Event{Kind: SysEx, SysExData: d.sysExBuf})
				d.sysExBuf = nil
				d.sysEx = false
				i++
			case isRealtimeByte(b):
				emit(Event{Kind: Realtime, RealtimeStatus: b})
				i++
			default:
				d.sysExBuf = append(d.sysExBuf, b)
				i++
			}
			continue
		}

		if isRealtimeByte(b) {
			emit(Event{Kind: Realtime, RealtimeStatus: b})
			i++
			continue
		}

		if b == sysExStart {
			d.sysEx = true
			d.sysExBuf = nil
			i++
			continue
		}

		if isStatusByte(b) {
			if isChannelVoiceStatus(b) {
				need := dataLength(b)
				if i+1+need > len(buf) {
					return i // short read: leave the status byte for next time
				}
				emit(decodeChannelVoice(b, buf[i+1:i+1+need]))
				d.runningStatus = b
				i += 1 + need
				continue
			}
			// A status byte outside the ranges this codec understands
			// (e.g. 0xF1-0xF6 system common). Not part of the data
			// model; treat as corruption and resynchronise.
			d.warn("midi: unexpected status byte 0x%02X, skipping", b)
			i++
			continue
		}

		// Data byte. Try running status first (consecutive channel-voice
		// messages may omit the status byte).
		if d.runningStatus != 0 {
			need := dataLength(d.runningStatus)
			if i+need > len(buf) {
				return i // short read
			}
			emit(decodeChannelVoice(d.runningStatus, buf[i:i+need]))
			i += need
			continue
		}

		// Corruption: a data byte with no status and no running status.
		d.warn("midi: unexpected data byte 0x%02X with no active status, skipping", b)
		i++
	}
	return i
}

// decodeChannelVoice builds the Event for a recognised channel-voice status
// byte and its data bytes. status must satisfy isChannelVoiceStatus and data
// must have exactly dataLength(status) bytes; Feed checks both before
// calling it.
func decodeChannelVoice(status byte, data []byte) Event {
	channel := uint32(status & channelMask)
	switch status & statusNibble {
	case noteOffByte:
		return Event{Kind: NoteOff, Channel: channel, Key: uint32(data[0]), Velocity: uint32(data[1])}
	case noteOnByte:
		return Event{Kind: NoteOn, Channel: channel, Key: uint32(data[0]), Velocity: uint32(data[1])}
	case polyATByte:
		return Event{Kind: PolyAftertouch, Channel: channel, Key: uint32(data[0]), Pressure: uint32(data[1])}
	case ccByte:
		return Event{Kind: ControlChange, Channel: channel, Controller: uint32(data[0]), Value: uint32(data[1])}
	case pcByte:
		return Event{Kind: ProgramChange, Channel: channel, Program: uint32(data[0])}
	case chanATByte:
		return Event{Kind: ChannelAftertouch, Channel: channel, Pressure: uint32(data[0])}
	case pitchBendByte:
		bend := uint32(data[0]&0x7F) | uint32(data[1]&0x7F)<<7
		return Event{Kind: PitchBend, Channel: channel, Bend: bend}
	}
	panic(fmt.Sprintf("midi: unreachable status 0x%02X", status))
}

// Encode writes the canonical bytes for e: no running-status compression,
// every channel-voice message carries its own status byte. Out-of-range
// field values are a programmer error (§4.1, §7 Programmer) and are
// rejected rather than silently masked.
func Encode(e Event) ([]byte, error) {
	if e.IsChannelVoice() {
		if e.Channel > 0x0F {
			return nil, fmt.Errorf("midi: channel %d out of range 0-15", e.Channel)
		}
	}

	switch e.Kind {
	case NoteOn, NoteOff:
		if err := require7(e.Key, "key"); err != nil {
			return nil, err
		}
		if err := require7(e.Velocity, "velocity"); err != nil {
			return nil, err
		}
		return []byte{e.statusByte(), byte(e.Key), byte(e.Velocity)}, nil

	case PolyAftertouch:
		if err := require7(e.Key, "key"); err != nil {
			return nil, err
		}
		if err := require7(e.Pressure, "pressure"); err != nil {
			return nil, err
		}
		return []byte{e.statusByte(), byte(e.Key), byte(e.Pressure)}, nil

	case ControlChange:
		if err := require7(e.Controller, "controller"); err != nil {
			return nil, err
		}
		if err := require7(e.Value, "value"); err != nil {
			return nil, err
		}
		return []byte{e.statusByte(), byte(e.Controller), byte(e.Value)}, nil

	case ProgramChange:
		if err := require7(e.Program, "program"); err != nil {
			return nil, err
		}
		return []byte{e.statusByte(), byte(e.Program)}, nil

	case ChannelAftertouch:
		if err := require7(e.Pressure, "pressure"); err != nil {
			return nil, err
		}
		return []byte{e.statusByte(), byte(e.Pressure)}, nil

	case PitchBend:
		if e.Bend > 0x3FFF {
			return nil, fmt.Errorf("midi: bend %d out of range 0-16383", e.Bend)
		}
		lsb := byte(e.Bend & 0x7F)
		msb := byte((e.Bend >> 7) & 0x7F)
		return []byte{e.statusByte(), lsb, msb}, nil

	case SysEx:
		out := make([]byte, 0, len(e.SysExData)+2)
		out = append(out, sysExStart)
		out = append(out, e.SysExData...)
		out = append(out, sysExEnd)
		return out, nil

	case Realtime:
		if !isRealtimeByte(e.RealtimeStatus) {
			return nil, fmt.Errorf("midi: realtime status 0x%02X out of range 0xF8-0xFF", e.RealtimeStatus)
		}
		return []byte{e.RealtimeStatus}, nil

	default:
		return nil, fmt.Errorf("midi: unknown event kind %v", e.Kind)
	}
}

func require7(v uint32, field string) error {
	if v > 0x7F {
		return fmt.Errorf("midi: %s %d out of range 0-127", field, v)
	}
	return nil
}
