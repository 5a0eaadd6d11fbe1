package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func decodeAll(t *testing.T, d *Decoder, buf []byte) []Event {
	t.Helper()
	var got []Event
	consumed := d.Feed(buf, func(e Event) { got = append(got, e) })
	require.Equal(t, len(buf), consumed, "expected full buffer to be consumed")
	return got
}

func TestByteRoundTrip(t *testing.T) {
	cases := []Event{
		{Kind: NoteOn, Channel: 0, Key: 60, Velocity: 64},
		{Kind: NoteOff, Channel: 15, Key: 127, Velocity: 0},
		{Kind: PolyAftertouch, Channel: 3, Key: 1, Pressure: 2},
		{Kind: ControlChange, Channel: 0, Controller: 7, Value: 100},
		{Kind: ProgramChange, Channel: 9, Program: 42},
		{Kind: ChannelAftertouch, Channel: 2, Pressure: 127},
		{Kind: PitchBend, Channel: 0, Bend: 8192},
		{Kind: SysEx, SysExData: []byte{0x41, 0x10, 0x42, 0x12}},
		{Kind: Realtime, RealtimeStatus: 0xF8},
	}

	for _, e := range cases {
		bytes, err := Encode(e)
		require.NoError(t, err)

		d := NewDecoder()
		got := decodeAll(t, d, bytes)
		require.Len(t, got, 1)
		require.Equal(t, e, got[0])
	}
}

func TestRunningStatus(t *testing.T) {
	e1 := Event{Kind: NoteOn, Channel: 0, Key: 60, Velocity: 100}
	e2 := Event{Kind: NoteOn, Channel: 0, Key: 62, Velocity: 101}
	e3 := Event{Kind: NoteOn, Channel: 0, Key: 64, Velocity: 102}

	full, err := Encode(e1)
	require.NoError(t, err)
	buf := append(full, e2.Key, e2.Velocity, e3.Key, e3.Velocity)

	d := NewDecoder()
	got := decodeAll(t, d, buf)
	require.Equal(t, []Event{e1, e2, e3}, got)
}

func TestSysExIntegrity(t *testing.T) {
	body := []byte{0x01, 0x02, 0x7F, 0x00}
	var buf []byte
	buf = append(buf, sysExStart)
	buf = append(buf, body[:2]...)
	buf = append(buf, 0xF8) // realtime clock interleaved mid-SysEx
	buf = append(buf, body[2:]...)
	buf = append(buf, sysExEnd)

	d := NewDecoder()
	got := decodeAll(t, d, buf)
	require.Equal(t, []Event{
		{Kind: Realtime, RealtimeStatus: 0xF8},
		{Kind: SysEx, SysExData: body},
	}, got)
}

func TestLeadingRealtimeByteIsNotCorruption(t *testing.T) {
	var warnings []string
	d := NewDecoder()
	d.Warn = func(format string, args ...any) { warnings = append(warnings, format) }

	buf := []byte{0xFF, 0x90, 0x3C, 0x40} // 0xFF is a valid realtime byte, not corruption
	got := decodeAll(t, d, buf)
	require.Equal(t, []Event{
		{Kind: Realtime, RealtimeStatus: 0xFF},
		{Kind: NoteOn, Channel: 0, Key: 0x3C, Velocity: 0x40},
	}, got)
	require.Empty(t, warnings)
}

func TestResynchronisationAfterGenuineCorruption(t *testing.T) {
	var warnings []string
	d := NewDecoder()
	d.Warn = func(format string, args ...any) { warnings = append(warnings, format) }

	// 0x3C is a lone data byte with no status and no running status: corrupt.
	buf := []byte{0x3C, 0x3C, 0x90, 0x3C, 0x40}
	got := decodeAll(t, d, buf)
	require.Equal(t, []Event{{Kind: NoteOn, Channel: 0, Key: 0x3C, Velocity: 0x40}}, got)
	require.Len(t, warnings, 2)
}

func TestShortReadLeavesIncompleteTail(t *testing.T) {
	d := NewDecoder()
	buf := []byte{0x90, 0x3C} // NoteOn status + 1 of 2 data bytes
	var got []Event
	consumed := d.Feed(buf, func(e Event) { got = append(got, e) })
	require.Equal(t, 0, consumed)
	require.Empty(t, got)

	// Feeding the rest (as the caller would, having kept buf[consumed:])
	rest := append(buf, 0x40)
	got = nil
	consumed = d.Feed(rest, func(e Event) { got = append(got, e) })
	require.Equal(t, 3, consumed)
	require.Equal(t, []Event{{Kind: NoteOn, Channel: 0, Key: 0x3C, Velocity: 0x40}}, got)
}

func TestUnterminatedSysExHoldsState(t *testing.T) {
	d := NewDecoder()
	buf := []byte{sysExStart, 0x01, 0x02}
	var got []Event
	consumed := d.Feed(buf, func(e Event) { got = append(got, e) })
	require.Equal(t, len(buf), consumed)
	require.Empty(t, got)

	consumed = d.Feed([]byte{0x03, sysExEnd}, func(e Event) { got = append(got, e) })
	require.Equal(t, 2, consumed)
	require.Equal(t, []Event{{Kind: SysEx, SysExData: []byte{0x01, 0x02, 0x03}}}, got)
}

// TestResynchronisationProperty is property 4 in §8: for any byte string, a
// prefix of garbage followed by a valid MIDI sequence parses, after zero or
// more warnings, to exactly the events of that valid sequence.
func TestResynchronisationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		garbage := rapid.SliceOfN(rapid.Uint8Range(0x00, 0x7F), 0, 8).Draw(rt, "garbage")

		n := rapid.IntRange(1, 4).Draw(rt, "n")
		var want []Event
		var valid []byte
		for i := 0; i < n; i++ {
			e := Event{
				Kind:     NoteOn,
				Channel:  uint32(rapid.IntRange(0, 15).Draw(rt, "channel")),
				Key:      uint32(rapid.IntRange(0, 127).Draw(rt, "key")),
				Velocity: uint32(rapid.IntRange(0, 127).Draw(rt, "velocity")),
			}
			want = append(want, e)
			b, err := Encode(e)
			require.NoError(rt, err)
			valid = append(valid, b...)
		}

		buf := append(append([]byte{}, garbage...), valid...)
		d := NewDecoder()
		var got []Event
		d.Warn = func(string, ...any) {}
		consumed := d.Feed(buf, func(e Event) { got = append(got, e) })
		require.Equal(rt, len(buf), consumed)
		require.Equal(rt, want, got)
	})
}
