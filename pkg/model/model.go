// Package model holds device-model definitions: voltage limits, conditions,
// diode topology, and the per-model list of device instances used for fast
// iteration during rule checking.
package model

import (
	"fmt"
	"sort"

	"github.com/casbin/govaluate"
	"github.com/pkg/errors"
)

// Type is the device-model type tag.
type Type int

const (
	Unknown Type = iota
	NMOS
	PMOS
	LDDN
	LDDP
	Diode
	Resistor
	Capacitor
	FuseOn
	FuseOff
	SwitchOn
	SwitchOff
	Subcircuit
)

func (t Type) String() string {
	switch t {
	case NMOS:
		return "NMOS"
	case PMOS:
		return "PMOS"
	case LDDN:
		return "LDDN"
	case LDDP:
		return "LDDP"
	case Diode:
		return "DIODE"
	case Resistor:
		return "RESISTOR"
	case Capacitor:
		return "CAPACITOR"
	case FuseOn:
		return "FUSE_ON"
	case FuseOff:
		return "FUSE_OFF"
	case SwitchOn:
		return "SWITCH_ON"
	case SwitchOff:
		return "SWITCH_OFF"
	case Subcircuit:
		return "SUBCIRCUIT"
	default:
		return "UNKNOWN"
	}
}

// IsMos reports whether t is one of the four channel-device types that the
// propagation engine treats as a gated conductor.
func (t Type) IsMos() bool {
	switch t {
	case NMOS, PMOS, LDDN, LDDP:
		return true
	default:
		return false
	}
}

// IsLDD reports whether t carries the LDD drain-side asymmetry.
func (t Type) IsLDD() bool {
	return t == LDDN || t == LDDP
}

// IsNType reports whether t conducts for a positive gate-to-source bias.
func (t Type) IsNType() bool {
	return t == NMOS || t == LDDN
}

const UnknownVoltage = int32(-1 << 30)

// Limit is a voltage limit carrying both its numeric value and the
// symbolic expression it was defined with, for error-message fidelity.
type Limit struct {
	Definition string
	Voltage    int32 // millivolts; UnknownVoltage if unset
}

func (l Limit) IsSet() bool { return l.Voltage != UnknownVoltage }

// Condition holds the raw text of one condition= field, e.g.
// "length<0.18u". It is stored and quoted by ConditionString; nothing
// evaluates it against a device's parameters.
type Condition struct {
	Raw string
}

// DiodeEndpoint names the (terminal-index, terminal-index) pairs this model
// treats as anode/cathode for forward-bias checking.
type DiodeEndpoint struct {
	Anode, Cathode int
}

// Model's fields are filled by the model-file parser; afterwards only
// DeviceIDs and Type change. DeviceIDs is populated during elaboration
// and replaces the original's singly-linked per-model device list with a
// dense slice; Type may be flipped by a fuse override.
type Model struct {
	Name string
	Type Type

	BaseType string

	MaxVds Limit
	MaxVgs Limit
	MaxVbs Limit
	MaxVbg Limit
	Vth    Limit

	ResistanceDefinition string
	resistanceOhms       float64
	IsLDDFlag            bool

	Conditions []Condition
	Diodes     []DiodeEndpoint

	Definition string

	DeviceIDs []int // populated by the elaborator; dense replacement for firstDevice_p/nextDevice_p
}

// Resistance returns the model's resistance in ohms, evaluating
// ResistanceDefinition against env on every call (0 when it is empty).
func (m *Model) Resistance(env map[string]interface{}) (float64, error) {
	if m.ResistanceDefinition == "" {
		return 0, nil
	}
	expr, err := govaluate.NewEvaluableExpression(m.ResistanceDefinition)
	if err != nil {
		return 0, errors.Wrapf(err, "model %s: invalid resistance expression %q", m.Name, m.ResistanceDefinition)
	}
	result, err := expr.Evaluate(env)
	if err != nil {
		return 0, errors.Wrapf(err, "model %s: could not evaluate resistance expression %q", m.Name, m.ResistanceDefinition)
	}
	value, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("model %s: resistance expression %q did not evaluate to a number", m.Name, m.ResistanceDefinition)
	}
	m.resistanceOhms = value
	return value, nil
}

// ConditionString renders the condition list the way error messages quote
// it, e.g. " condition=length<0.18u".
func (m *Model) ConditionString() string {
	s := ""
	for _, c := range m.Conditions {
		s += " condition=" + c.Raw
	}
	return s
}

// IsShort reports whether this resistor/capacitor model is marked to be
// collapsed into a net union during the resistor-short pass (§4.2).
func (m *Model) IsShort() bool {
	return (m.Type == Resistor || m.Type == Capacitor) && m.BaseType == "short"
}

// Library indexes models by name for lookup from device records, keeping
// the original per-key list-of-variants shape (several model cards can
// share a key; no variant is selected by device parameters).
type Library struct {
	ByKey map[string][]*Model
}

func NewLibrary() *Library {
	return &Library{ByKey: make(map[string][]*Model)}
}

// Add registers m under its key. The same key may hold multiple model
// variants; nothing selects among them by device parameters: Find returns
// the first, and the rule checker iterates every variant unconditionally.
func (l *Library) Add(key string, m *Model) {
	l.ByKey[key] = append(l.ByKey[key], m)
}

// Find returns the first model registered under key, or nil.
func (l *Library) Find(key string) *Model {
	variants := l.ByKey[key]
	if len(variants) == 0 {
		return nil
	}
	return variants[0]
}

// All iterates every model in the library, across every key, in a
// deterministic order (sorted by key) so that checker output is
// reproducible across runs.
func (l *Library) All(fn func(key string, m *Model)) {
	keys := make([]string, 0, len(l.ByKey))
	for k := range l.ByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, m := range l.ByKey[k] {
			fn(k, m)
		}
	}
}
