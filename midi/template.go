package midi

import "fmt"

// FieldWitness records which specifier (by index) matched, and with what
// NumberMatch.
type FieldWitness struct {
	Index int
	Match NumberMatch
}

// Witness is the result of a successful Template.Match: a field name to the
// specifier index and NumberMatch that matched it. It is produced by Match
// and consumed by Generate; it does not outlive a single transformation.
type Witness map[string]FieldWitness

// Template is a declarative pattern over one MIDI channel-voice variant.
// Each field holds a non-empty ordered list of value specifiers; a field
// left nil behaves as []Number{Any()} (§4.4 Defaults).
//
// Grounded on original_source/src/midi/message_template.rs (the
// channel-carrying revision, see SPEC_FULL.md §5(b)).
type Template struct {
	Kind Kind

	Channel []Number

	Note     []Number // NoteOn, NoteOff, PolyAftertouch
	Velocity []Number // NoteOn, NoteOff
	Pressure []Number // PolyAftertouch, ChannelAftertouch

	Controller []Number // ControlChange
	Value      []Number // ControlChange

	Program []Number // ProgramChange

	Bend []Number // PitchBend
}

var anyVec = []Number{Any()}

func defaulted(specs []Number) []Number {
	if len(specs) == 0 {
		return anyVec
	}
	return specs
}

// fieldNames returns, in a fixed order, the template-field names that apply
// to kind. Used by both Match and Generate so the two stay in lockstep.
func fieldNames(kind Kind) []string {
	switch kind {
	case NoteOn, NoteOff:
		return []string{"channel", "note", "velocity"}
	case PolyAftertouch:
		return []string{"channel", "note", "pressure"}
	case ControlChange:
		return []string{"channel", "controller", "value"}
	case ProgramChange:
		return []string{"channel", "program"}
	case ChannelAftertouch:
		return []string{"channel", "pressure"}
	case PitchBend:
		return []string{"channel", "bend"}
	default:
		return nil
	}
}

// specifiersFor returns the (possibly defaulted) specifier list for a named
// field of this template.
func (t Template) specifiersFor(field string) []Number {
	switch field {
	case "channel":
		return defaulted(t.Channel)
	case "note":
		return defaulted(t.Note)
	case "velocity":
		return defaulted(t.Velocity)
	case "pressure":
		return defaulted(t.Pressure)
	case "controller":
		return defaulted(t.Controller)
	case "value":
		return defaulted(t.Value)
	case "program":
		return defaulted(t.Program)
	case "bend":
		return defaulted(t.Bend)
	default:
		return anyVec
	}
}

// fieldValue extracts the raw numeric value for a named field out of e.
func fieldValue(e Event, field string) uint32 {
	switch field {
	case "channel":
		return e.Channel
	case "note":
		return e.Key
	case "velocity":
		return e.Velocity
	case "pressure":
		return e.Pressure
	case "controller":
		return e.Controller
	case "value":
		return e.Value
	case "program":
		return e.Program
	case "bend":
		return e.Bend
	default:
		return 0
	}
}

// Match requires the template's variant to equal e's variant, then runs
// MatchMany per field; all fields must match or the whole match fails
// (§4.4).
func (t Template) Match(e Event) (Witness, bool) {
	if t.Kind != e.Kind {
		return nil, false
	}
	fields := fieldNames(t.Kind)
	if fields == nil {
		return nil, false
	}

	w := make(Witness, len(fields))
	for _, field := range fields {
		specs := t.specifiersFor(field)
		idx, m, ok := MatchMany(specs, fieldValue(e, field))
		if !ok {
			return nil, false
		}
		w[field] = FieldWitness{Index: idx, Match: m}
	}
	return w, true
}

// Generate looks up each field's witness, indexes into this template's
// specifier list, and calls Generate; any failure or out-of-range index
// fails the whole generation (§4.4).
func (t Template) Generate(w Witness) (Event, bool) {
	fields := fieldNames(t.Kind)
	if fields == nil {
		return Event{}, false
	}

	values := make(map[string]uint32, len(fields))
	for _, field := range fields {
		fw, ok := w[field]
		if !ok {
			return Event{}, false
		}
		specs := t.specifiersFor(field)
		if fw.Index < 0 || fw.Index >= len(specs) {
			return Event{}, false
		}
		v, ok := specs[fw.Index].Generate(fw.Match)
		if !ok {
			return Event{}, false
		}
		values[field] = v
	}

	e := Event{Kind: t.Kind}
	e.Channel = values["channel"]
	switch t.Kind {
	case NoteOn, NoteOff:
		e.Key = values["note"]
		e.Velocity = values["velocity"]
	case PolyAftertouch:
		e.Key = values["note"]
		e.Pressure = values["pressure"]
	case ControlChange:
		e.Controller = values["controller"]
		e.Value = values["value"]
	case ProgramChange:
		e.Program = values["program"]
	case ChannelAftertouch:
		e.Pressure = values["pressure"]
	case PitchBend:
		e.Bend = values["bend"]
	default:
		return Event{}, false
	}
	return e, true
}

func (t Template) String() string {
	return fmt.Sprintf("Template{%s}", t.Kind)
}
