package midi

import "fmt"

// Transformer matches an input message against Input, relabels the
// resulting witness through Rename (missing entries act as identity), and
// generates an output message from Output (§4.5).
//
// Grounded on original_source/src/transformer.rs.
type Transformer struct {
	Input  Template
	Output Template
	Rename map[string]string
}

// NewTransformer validates that Rename cannot collide two input fields onto
// the same output field name, which §4.5 step 2 calls a configuration error
// surfaced at startup.
func NewTransformer(input, output Template, rename map[string]string) (Transformer, error) {
	t := Transformer{Input: input, Output: output, Rename: rename}

	seen := make(map[string]string, len(rename))
	for _, field := range fieldNames(input.Kind) {
		mapped := field
		if renamed, ok := rename[field]; ok {
			mapped = renamed
		}
		if prior, ok := seen[mapped]; ok {
			return Transformer{}, fmt.Errorf("midi: rename collision: both %q and %q map to output field %q", prior, field, mapped)
		}
		seen[mapped] = field
	}
	return t, nil
}

// Transform matches msg against t.Input; if it matches, renames the witness
// fields and generates the output message from t.Output. Returns false if
// the input didn't match or generation failed.
func (t Transformer) Transform(msg Event) (Event, bool) {
	w, ok := t.Input.Match(msg)
	if !ok {
		return Event{}, false
	}

	renamed := make(Witness, len(w))
	for field, fw := range w {
		mapped := field
		if r, ok := t.Rename[field]; ok {
			mapped = r
		}
		renamed[mapped] = fw
	}

	return t.Output.Generate(renamed)
}
