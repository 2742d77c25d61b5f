// Package modelfile parses the model-file grammar spec.md §6 describes
// into a model.Library: one line per model key, `modelKey: key=value
// key=value ...` fields, case-insensitive field names, "#" comments.
// Grounded in the teacher's pkg/netlist/parser.go tokenizing style,
// reusing pkg/netlist's engineering-unit parser for every voltage field
// instead of a second copy of the same regex.
package modelfile

import (
	"bufio"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/netlist"
)

// Parser accumulates model variants (several lines may share a key; each
// becomes its own variant, and condition= fields are stored but never
// matched against devices) into a shared model.Library.
type Parser struct {
	Lib      *model.Library
	Warnings []string
}

// NewParser returns a Parser that will add models to lib.
func NewParser(lib *model.Library) *Parser {
	return &Parser{Lib: lib}
}

// ParseFile reads path into p.Lib.
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "modelfile: opening %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, m, err := p.parseLine(line)
		if err != nil {
			return errors.Wrapf(err, "modelfile: %s line %d", path, lineNo)
		}
		p.Lib.Add(key, m)
	}
	return scanner.Err()
}

// parseLine parses one "modelKey: field=value field=value ..." line.
func (p *Parser) parseLine(line string) (string, *model.Model, error) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", nil, errors.Errorf("expected 'modelKey: fields...', got %q", line)
	}
	key := strings.TrimSpace(line[:colon])
	if key == "" {
		return "", nil, errors.New("empty model key")
	}
	unset := model.Limit{Voltage: model.UnknownVoltage}
	m := &model.Model{Name: key, Definition: line, MaxVds: unset, MaxVgs: unset, MaxVbs: unset, MaxVbg: unset, Vth: unset}

	fields := strings.Fields(line[colon+1:])
	for _, field := range fields {
		eq := strings.Index(field, "=")
		if eq < 0 {
			p.Warnings = append(p.Warnings, "modelfile: ignoring malformed field "+field+" on model "+key)
			continue
		}
		fieldKey := strings.ToLower(field[:eq])
		value := field[eq+1:]

		switch fieldKey {
		case "type":
			t, ok := parseType(value)
			if !ok {
				return "", nil, errors.Errorf("model %s: unrecognized type %q", key, value)
			}
			m.Type = t
		case "basetype":
			m.BaseType = strings.ToLower(value)
		case "vth":
			lim, err := parseLimit(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "model %s: Vth", key)
			}
			m.Vth = lim
		case "vds":
			lim, err := parseLimit(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "model %s: Vds", key)
			}
			m.MaxVds = lim
		case "vgs":
			lim, err := parseLimit(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "model %s: Vgs", key)
			}
			m.MaxVgs = lim
		case "vbs":
			lim, err := parseLimit(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "model %s: Vbs", key)
			}
			m.MaxVbs = lim
		case "vbg":
			lim, err := parseLimit(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "model %s: Vbg", key)
			}
			m.MaxVbg = lim
		case "condition":
			m.Conditions = append(m.Conditions, model.Condition{Raw: value})
		case "resistance":
			m.ResistanceDefinition = value
		default:
			p.Warnings = append(p.Warnings, "modelfile: ignoring unknown field "+fieldKey+" on model "+key)
		}
	}
	m.IsLDDFlag = m.Type.IsLDD()
	return key, m, nil
}

// parseLimit renders a raw voltage expression into a model.Limit,
// resolving a plain numeric literal to millivolts immediately (the
// common case) and keeping the original text as Definition either way,
// for error-message fidelity per model.Limit's doc comment.
func parseLimit(raw string) (model.Limit, error) {
	text := strings.TrimSuffix(strings.TrimSuffix(raw, "V"), "v")
	volts, err := netlist.ParseValue(text)
	if err != nil {
		return model.Limit{Definition: raw, Voltage: model.UnknownVoltage}, nil
	}
	return model.Limit{Definition: raw, Voltage: int32(math.Round(volts * 1000))}, nil
}

func parseType(s string) (model.Type, bool) {
	switch strings.ToUpper(s) {
	case "NMOS":
		return model.NMOS, true
	case "PMOS":
		return model.PMOS, true
	case "LDDN":
		return model.LDDN, true
	case "LDDP":
		return model.LDDP, true
	case "DIODE":
		return model.Diode, true
	case "RESISTOR":
		return model.Resistor, true
	case "CAPACITOR":
		return model.Capacitor, true
	case "FUSE_ON":
		return model.FuseOn, true
	case "FUSE_OFF":
		return model.FuseOff, true
	case "SWITCH_ON":
		return model.SwitchOn, true
	case "SWITCH_OFF":
		return model.SwitchOff, true
	case "SUBCIRCUIT":
		return model.Subcircuit, true
	default:
		return model.Unknown, false
	}
}
