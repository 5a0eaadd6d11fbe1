// Package config parses the gobetween configuration document (§6) into the
// immutable values the router needs to build endpoints and transformers.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jparoz/gobetween/midi"
)

// Error is returned for every config problem in §7's Config taxonomy:
// duplicate device names, an unknown device referenced by a mapping, a
// malformed range string, or a template/rename-map mismatch. All are fatal
// at startup.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func configErrorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// rawDocument is the literal YAML shape described in §6.
type rawDocument struct {
	Devices  []rawDevice            `yaml:"devices"`
	Mappings map[string][]rawRule   `yaml:"mappings"`

	BroadcastCapacity int `yaml:"broadcast_capacity"`
	EgressCapacity    int `yaml:"egress_capacity"`
}

type rawDevice struct {
	Name string `yaml:"name"`

	MidiAddress string `yaml:"midi_address"`

	MidiIn  string `yaml:"midi_in"`
	MidiOut string `yaml:"midi_out"`

	NRPN bool `yaml:"nrpn"`
}

type rawRule struct {
	From rawTemplate `yaml:"from"`
	To   rawTarget   `yaml:"to"`
}

type rawTarget struct {
	Target  string            `yaml:"target"`
	Mapping map[string]string `yaml:"mapping"`
	rawTemplate `yaml:",inline"`
}

// rawTemplate mirrors §6's template shape: a type tag plus per-variant
// fields, each either omitted, a scalar, or a list of scalars (each scalar
// being a literal integer or an "a-b" range string).
type rawTemplate struct {
	Type string `yaml:"type"`

	Channel yaml.Node `yaml:"channel"`

	Note     yaml.Node `yaml:"note"`
	Velocity yaml.Node `yaml:"velocity"`
	Pressure yaml.Node `yaml:"pressure"`

	Controller yaml.Node `yaml:"controller"`
	Value      yaml.Node `yaml:"value"`

	Program yaml.Node `yaml:"program"`

	Bend yaml.Node `yaml:"bend"`
}

// ConnectionKind distinguishes the two transport shapes a device can name.
type ConnectionKind int

const (
	TCP ConnectionKind = iota
	Native
)

// DeviceInfo is one parsed `devices` entry, ready to hand to endpoint.New.
type DeviceInfo struct {
	Name string
	Kind ConnectionKind

	// TCP
	Address string

	// Native
	MidiIn  string
	MidiOut string

	// NRPN indicates the endpoint's byte stream should additionally be
	// folded/unfolded through the NRPN codec (C2).
	NRPN bool
}

// Mapping is one parsed rule: match Input against From, and on a match
// transform and forward to Target via Transformer.
type Mapping struct {
	From        string // source device name
	Target      string // destination device name
	Transformer *midi.Transformer
}

// Config is the fully parsed, validated configuration: ready-built
// Transformers and DeviceInfo records, with no further parsing needed by the
// router.
type Config struct {
	Devices  []DeviceInfo
	Mappings []Mapping

	BroadcastCapacity int
	EgressCapacity    int
}

const (
	defaultBroadcastCapacity = 128
	defaultEgressCapacity    = 4
)

// Load reads and parses the YAML document at path, validating it per §7's
// Config error taxonomy.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("config: reading %s: %v", path, err)
	}
	return Parse(data)
}

// Parse validates and converts raw YAML bytes into a Config.
func Parse(data []byte) (*Config, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErrorf("config: invalid yaml: %v", err)
	}

	cfg := &Config{
		BroadcastCapacity: defaultBroadcastCapacity,
		EgressCapacity:    defaultEgressCapacity,
	}
	if doc.BroadcastCapacity > 0 {
		cfg.BroadcastCapacity = doc.BroadcastCapacity
	}
	if doc.EgressCapacity > 0 {
		cfg.EgressCapacity = doc.EgressCapacity
	}

	seen := make(map[string]bool, len(doc.Devices))
	for _, d := range doc.Devices {
		if d.Name == "" {
			return nil, configErrorf("config: device entry missing a name")
		}
		if seen[d.Name] {
			return nil, configErrorf("config: duplicate device name %q", d.Name)
		}
		seen[d.Name] = true

		info, err := convertDevice(d)
		if err != nil {
			return nil, err
		}
		cfg.Devices = append(cfg.Devices, info)
	}

	for from, rules := range doc.Mappings {
		if !seen[from] {
			return nil, configErrorf("config: mapping references unknown device %q", from)
		}
		for _, rule := range rules {
			if !seen[rule.To.Target] {
				return nil, configErrorf("config: mapping from %q references unknown target %q", from, rule.To.Target)
			}

			fromTmpl, err := convertTemplate(rule.From)
			if err != nil {
				return nil, err
			}
			toTmpl, err := convertTemplate(rule.To.rawTemplate)
			if err != nil {
				return nil, err
			}

			tr, err := midi.NewTransformer(fromTmpl, toTmpl, rule.To.Mapping)
			if err != nil {
				return nil, configErrorf("config: mapping from %q to %q: %v", from, rule.To.Target, err)
			}

			cfg.Mappings = append(cfg.Mappings, Mapping{
				From:        from,
				Target:      rule.To.Target,
				Transformer: &tr,
			})
		}
	}

	return cfg, nil
}

func convertDevice(d rawDevice) (DeviceInfo, error) {
	hasTCP := d.MidiAddress != ""
	hasNative := d.MidiIn != "" || d.MidiOut != ""

	switch {
	case hasTCP && hasNative:
		return DeviceInfo{}, configErrorf("config: device %q has both a midi_address and midi_in/midi_out", d.Name)
	case hasTCP:
		return DeviceInfo{Name: d.Name, Kind: TCP, Address: d.MidiAddress, NRPN: d.NRPN}, nil
	case hasNative:
		if d.MidiIn == "" || d.MidiOut == "" {
			return DeviceInfo{}, configErrorf("config: device %q needs both midi_in and midi_out", d.Name)
		}
		return DeviceInfo{Name: d.Name, Kind: Native, MidiIn: d.MidiIn, MidiOut: d.MidiOut, NRPN: d.NRPN}, nil
	default:
		return DeviceInfo{}, configErrorf("config: device %q has an unrecognised connection shape", d.Name)
	}
}

var templateKinds = map[string]midi.Kind{
	"NoteOn":            midi.NoteOn,
	"NoteOff":           midi.NoteOff,
	"ControlChange":     midi.ControlChange,
	"ProgramChange":     midi.ProgramChange,
	"PolyPressure":      midi.PolyAftertouch,
	"ChannelPressure":   midi.ChannelAftertouch,
	"PitchBend":         midi.PitchBend,
}

func convertTemplate(raw rawTemplate) (midi.Template, error) {
	kind, ok := templateKinds[raw.Type]
	if !ok {
		return midi.Template{}, configErrorf("config: unknown template type %q", raw.Type)
	}

	tmpl := midi.Template{Kind: kind}

	var err error
	if tmpl.Channel, err = parseSpecifierField(raw.Channel); err != nil {
		return midi.Template{}, err
	}

	switch kind {
	case midi.NoteOn, midi.NoteOff:
		if tmpl.Note, err = parseSpecifierField(raw.Note); err != nil {
			return midi.Template{}, err
		}
		if tmpl.Velocity, err = parseSpecifierField(raw.Velocity); err != nil {
			return midi.Template{}, err
		}
	case midi.PolyAftertouch:
		if tmpl.Note, err = parseSpecifierField(raw.Note); err != nil {
			return midi.Template{}, err
		}
		if tmpl.Pressure, err = parseSpecifierField(raw.Pressure); err != nil {
			return midi.Template{}, err
		}
	case midi.ControlChange:
		if tmpl.Controller, err = parseSpecifierField(raw.Controller); err != nil {
			return midi.Template{}, err
		}
		if tmpl.Value, err = parseSpecifierField(raw.Value); err != nil {
			return midi.Template{}, err
		}
	case midi.ProgramChange:
		if tmpl.Program, err = parseSpecifierField(raw.Program); err != nil {
			return midi.Template{}, err
		}
	case midi.ChannelAftertouch:
		if tmpl.Pressure, err = parseSpecifierField(raw.Pressure); err != nil {
			return midi.Template{}, err
		}
	case midi.PitchBend:
		if tmpl.Bend, err = parseSpecifierField(raw.Bend); err != nil {
			return midi.Template{}, err
		}
	}

	return tmpl, nil
}

// parseSpecifierField decodes a YAML node that is absent, a scalar, or a
// sequence of scalars into a []midi.Number. An absent/null node yields nil
// (the template's Defaults behaviour then applies [Any]).
func parseSpecifierField(node yaml.Node) ([]midi.Number, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}

	var raws []string
	if node.Kind == yaml.SequenceNode {
		for _, item := range node.Content {
			raws = append(raws, item.Value)
		}
	} else {
		raws = []string{node.Value}
	}

	specs := make([]midi.Number, 0, len(raws))
	for _, s := range raws {
		n, err := midi.ParseNumber(s)
		if err != nil {
			return nil, configErrorf("config: %v", err)
		}
		specs = append(specs, n)
	}
	return specs, nil
}
