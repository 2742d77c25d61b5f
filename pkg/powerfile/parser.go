// Package powerfile parses the power-intent grammar spec.md §6 and §9
// describe into a power.Spec: one declaration per non-comment line,
// "#define" macro expansion, and family-tag relation grouping. Grounded
// in the teacher's pkg/netlist/parser.go tokenizing style (bufio.Scanner
// line loop, strings.Fields), reusing pkg/netlist's engineering-unit
// parser for every min@/sim@/max@ voltage token instead of a second
// copy of the same regex.
package powerfile

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/donn/cvc/pkg/netlist"
	"github.com/donn/cvc/pkg/power"
)

// Parser accumulates declarations (after macro expansion) into a shared
// power.Spec.
type Parser struct {
	Spec *power.Spec

	Warnings []string

	macros     map[string]string
	autoFamily int // next automatic family id; decrements for every declaration, and an explicit family= tag overrides it
}

// NewParser returns a Parser that will add declarations to spec.
func NewParser(spec *power.Spec) *Parser {
	return &Parser{Spec: spec, macros: make(map[string]string), autoFamily: -1}
}

// ParseFile reads path into p.Spec.
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "powerfile: opening %s", path)
	}
	defer f.Close()
	return p.parse(f, path)
}

func (p *Parser) parse(f *os.File, path string) error {
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if strings.EqualFold(fields[0], "#define") {
			if len(fields) < 3 {
				p.warnf(path, lineNo, "malformed #define: %s", line)
				continue
			}
			p.macros[fields[1]] = fields[2]
			continue
		}
		if strings.HasPrefix(fields[0], "#") {
			continue // plain comment
		}

		decl, err := p.parseDeclaration(fields)
		if err != nil {
			return errors.Wrapf(err, "powerfile: %s line %d", path, lineNo)
		}
		p.Spec.Add(decl)
	}
	return scanner.Err()
}

func (p *Parser) warnf(path string, lineNo int, format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf("%s: line %d: %s", path, lineNo, fmt.Sprintf(format, args...)))
}

// parseDeclaration builds one Declaration from a netPattern line's
// tokens, per spec.md §6: "netPattern [min@V|sim@V|max@V|open|input|
// power|hiz|reference] [expected min@V sim@V max@V]", plus this
// rework's family=/alias= tags for relation grouping and aliasing.
func (p *Parser) parseDeclaration(fields []string) (*power.Declaration, error) {
	decl := &power.Declaration{Pattern: fields[0], FamilyID: p.autoFamily}
	p.autoFamily--

	i := 1
	for i < len(fields) {
		tok := fields[i]
		lower := strings.ToLower(tok)
		switch {
		case lower == "input":
			decl.Kind |= power.Input
		case lower == "power":
			decl.Kind |= power.Power
		case lower == "hiz":
			decl.Kind |= power.HiZ
		case lower == "reference":
			decl.Kind |= power.Reference
		case lower == "open":
			// no value at all; already the zero-value default.
		case strings.HasPrefix(lower, "min@"):
			v, err := p.parseVoltage(tok[len("min@"):])
			if err != nil {
				return nil, err
			}
			decl.HasMin, decl.Min = true, v
		case strings.HasPrefix(lower, "sim@"):
			v, err := p.parseVoltage(tok[len("sim@"):])
			if err != nil {
				return nil, err
			}
			decl.HasSim, decl.Sim = true, v
		case strings.HasPrefix(lower, "max@"):
			v, err := p.parseVoltage(tok[len("max@"):])
			if err != nil {
				return nil, err
			}
			decl.HasMax, decl.Max = true, v
		case strings.HasPrefix(lower, "family="):
			n, err := strconv.Atoi(tok[len("family="):])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid family tag %q", tok)
			}
			decl.FamilyID = n
		case strings.HasPrefix(lower, "alias="):
			decl.Alias = tok[len("alias="):]
		case lower == "expected":
			i++
			for i < len(fields) {
				etok := fields[i]
				elower := strings.ToLower(etok)
				switch {
				case elower == "open":
				case strings.HasPrefix(elower, "min@"):
					v, err := p.parseVoltage(etok[len("min@"):])
					if err != nil {
						return nil, err
					}
					decl.Expected.HasMin, decl.Expected.Min = true, v
				case strings.HasPrefix(elower, "sim@"):
					v, err := p.parseVoltage(etok[len("sim@"):])
					if err != nil {
						return nil, err
					}
					decl.Expected.HasSim, decl.Expected.Sim = true, v
				case strings.HasPrefix(elower, "max@"):
					v, err := p.parseVoltage(etok[len("max@"):])
					if err != nil {
						return nil, err
					}
					decl.Expected.HasMax, decl.Expected.Max = true, v
				default:
					goto doneExpected
				}
				i++
			}
		doneExpected:
			continue
		default:
			p.Warnings = append(p.Warnings, "unrecognized power-file token: "+tok)
		}
		i++
	}
	return decl, nil
}

// parseVoltage resolves one min@/sim@/max@ value: a macro name is
// substituted once, a trailing V/v unit suffix is stripped, and the
// remainder is parsed as a plain number via netlist.ParseValue (volts,
// not millivolts, per the power file's convention). A token that still
// doesn't parse numerically is kept as a symbolic reference (e.g. an
// aliased net name or an expression like "VDD-300mV") for the caller to
// resolve later — this rework doesn't evaluate symbolic arithmetic
// expressions, only literal and macro-substituted voltages.
func (p *Parser) parseVoltage(tok string) (power.Value, error) {
	if sub, ok := p.macros[tok]; ok {
		tok = sub
	}
	text := strings.TrimSuffix(strings.TrimSuffix(tok, "V"), "v")
	if volts, err := netlist.ParseValue(text); err == nil {
		return power.Value{Literal: true, Millivolts: int32(math.Round(volts * 1000))}, nil
	}
	return power.Value{Symbol: tok}, nil
}
