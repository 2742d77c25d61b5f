// Package netlist parses the structural SPICE subset spec.md §4.8
// describes into a circuit.Library: .subckt/.ends blocks, device cards,
// .include file composition, and "*"/"$" comments. It never resolves a
// device's model (that's pkg/modelfile's job once the model file is
// read) — Device.ModelKey/Param hold the raw text, exactly the way the
// elaborator and checker already expect (see circuit.Device's doc
// comment).
//
// Grounded on the teacher's pkg/netlist/parser.go: the bufio.Scanner
// line loop, the title-line convention, ParseValue's engineering-unit
// regex, and strings.Fields tokenizing are all kept; the teacher's flat
// simulation-element model (R/L/C/V/I/D with analysis directives) is
// replaced with the hierarchical structural model .subckt/.ends/device
// cards/X instances require. ParseValue is exported so pkg/modelfile
// and pkg/powerfile can reuse the same unit-suffix parser instead of
// each reimplementing it.
package netlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/donn/cvc/pkg/circuit"
)

var unitMap = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+)(meg|[TGKkmunpf])?$`)

// ParseValue parses a SPICE-style engineering-unit literal ("1k" -> 1000,
// "0.18u" -> 1.8e-7). It is the structural parser's only numeric-parsing
// surface; device parameter strings themselves are kept raw for
// pkg/modelfile's govaluate expressions to consume later.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] != "" {
		if multiplier, ok := unitMap[matches[2]]; ok {
			num *= multiplier
		}
	}
	return num, nil
}

// Warning records an ignored statement, per spec.md §1's "unknown
// statements are ignored with a warning" rule.
type Warning struct {
	File string
	Line int
	Text string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: ignored unknown statement: %s", w.File, w.Line, w.Text)
}

// Parser reads one or more composed SPICE-subset files into a shared
// circuit.Library. TopName names the implicit top-level definition that
// statements outside any .subckt/.ends block belong to.
type Parser struct {
	Lib         *circuit.Library
	TopName     string
	SearchPaths []string

	Warnings []Warning

	top      *circuit.Def
	visited  map[string]bool
}

// NewParser returns a Parser that will accumulate top-level statements
// into a definition named topName within lib.
func NewParser(lib *circuit.Library, topName string) *Parser {
	return &Parser{Lib: lib, TopName: topName, visited: make(map[string]bool)}
}

// ParseFile reads path (and anything it .includes) into p.Lib. Calling
// ParseFile more than once on the same Parser composes additional
// decks into the same library, matching spec.md §1's "a run may be
// given several netlist fragments" allowance.
func (p *Parser) ParseFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "netlist: resolving %s", path)
	}
	f, err := os.Open(abs)
	if err != nil {
		return errors.Wrapf(err, "netlist: opening %s", path)
	}
	defer f.Close()
	return p.parseReader(f, abs, filepath.Dir(abs), true)
}

func (p *Parser) finish() {
	if p.top == nil {
		p.top = circuit.NewDef(p.TopName)
	}
	p.Lib.Add(p.top)
}

// Finish registers the accumulated top-level definition with the
// library. Call it once after every ParseFile/.include composing the
// full deck has completed.
func (p *Parser) Finish() {
	p.finish()
}

// logicalLines merges "+"-prefixed SPICE continuation lines onto the
// line they continue, returning each merged line paired with the
// 1-based source line number of its first physical line.
func logicalLines(r io.Reader) ([]string, []int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	var lineNos []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimRight(raw, " \t\r")
		if strings.HasPrefix(strings.TrimLeft(trimmed, " \t"), "+") && len(lines) > 0 {
			cont := strings.TrimLeft(trimmed, " \t")
			cont = strings.TrimPrefix(cont, "+")
			lines[len(lines)-1] += " " + strings.TrimSpace(cont)
			continue
		}
		lines = append(lines, raw)
		lineNos = append(lineNos, lineNo)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return lines, lineNos, nil
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "*") || strings.HasPrefix(line, "$")
}

func (p *Parser) parseReader(r io.Reader, sourceName, baseDir string, isTopLevelFile bool) error {
	if p.visited[sourceName] {
		return nil // .include cycle guard: already processed this file
	}
	p.visited[sourceName] = true

	lines, lineNos, err := logicalLines(r)
	if err != nil {
		return errors.Wrapf(err, "netlist: reading %s", sourceName)
	}

	start := 0
	if isTopLevelFile && len(lines) > 0 {
		start = 1 // the deck's first line is a title, not a statement
	}

	var current *circuit.Def // non-nil while inside a .subckt block

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		lineNo := lineNos[i]
		if line == "" || isComment(line) {
			continue
		}

		fields := strings.Fields(line)
		lower := strings.ToLower(fields[0])

		switch {
		case lower == ".include":
			if len(fields) < 2 {
				p.Warnings = append(p.Warnings, Warning{sourceName, lineNo, line})
				continue
			}
			incPath := strings.Trim(fields[1], `"`)
			if err := p.include(incPath, baseDir); err != nil {
				return errors.Wrapf(err, "netlist: %s line %d", sourceName, lineNo)
			}

		case lower == ".subckt":
			if current != nil {
				return fmt.Errorf("netlist: %s line %d: nested .subckt not supported", sourceName, lineNo)
			}
			if len(fields) < 2 {
				return fmt.Errorf("netlist: %s line %d: .subckt needs a name", sourceName, lineNo)
			}
			current = circuit.NewDef(fields[1])
			if err := current.AddPorts(fields[2:]); err != nil {
				return errors.Wrapf(err, "netlist: %s line %d", sourceName, lineNo)
			}

		case lower == ".ends":
			if current == nil {
				return fmt.Errorf("netlist: %s line %d: .ends without matching .subckt", sourceName, lineNo)
			}
			p.Lib.Add(current)
			current = nil

		case strings.HasPrefix(lower, "."):
			// Any other dot-card (.model, .global, .option, ...) belongs
			// to a different grammar (pkg/modelfile) or isn't part of
			// this rework's scope; record it and move on.
			p.Warnings = append(p.Warnings, Warning{sourceName, lineNo, line})

		default:
			def := current
			if def == nil {
				if p.top == nil {
					p.top = circuit.NewDef(p.TopName)
				}
				def = p.top
			}
			if err := parseDeviceLine(def, fields, func(w Warning) { p.Warnings = append(p.Warnings, w) }, sourceName, lineNo); err != nil {
				return errors.Wrapf(err, "netlist: %s line %d", sourceName, lineNo)
			}
		}
	}

	if current != nil {
		return fmt.Errorf("netlist: %s: .subckt %s never closed with .ends", sourceName, current.Name)
	}
	return nil
}

func (p *Parser) include(path, baseDir string) error {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = []string{filepath.Join(baseDir, path)}
		for _, sp := range p.SearchPaths {
			candidates = append(candidates, filepath.Join(sp, path))
		}
	}
	var lastErr error
	for _, c := range candidates {
		f, err := os.Open(c)
		if err != nil {
			lastErr = err
			continue
		}
		defer f.Close()
		abs, _ := filepath.Abs(c)
		return p.parseReader(f, abs, filepath.Dir(abs), false)
	}
	return errors.Wrapf(lastErr, "could not open included file %s", path)
}

// parseDeviceLine dispatches on the device card's first letter, per
// spec.md §4.8: M=MOSFET, Q=BJT (decomposed into its base-collector/
// base-emitter diode pair), D=diode, R=resistor, C=capacitor,
// X=subcircuit instance, F=fuse, S=switch. Unrecognized letters are
// warned about and skipped rather than treated as a parse failure,
// matching spec.md §1's "unknown statements are ignored" rule.
func parseDeviceLine(def *circuit.Def, fields []string, warn func(Warning), source string, lineNo int) error {
	name := fields[0]
	letter := strings.ToUpper(name[:1])

	net := func(s string) circuit.NetID { return def.InternalNetID(s) }
	joinParams := func(from int) string {
		if from >= len(fields) {
			return ""
		}
		return strings.Join(fields[from:], " ")
	}

	switch letter {
	case "M":
		if len(fields) < 6 {
			return fmt.Errorf("MOSFET card %s needs drain gate source bulk model", name)
		}
		return def.AddDevice(circuit.Device{
			Name:     name,
			ModelKey: fields[5],
			Param:    joinParams(6),
			Nets:     []circuit.NetID{net(fields[1]), net(fields[2]), net(fields[3]), net(fields[4])},
		})

	case "D":
		if len(fields) < 4 {
			return fmt.Errorf("diode card %s needs anode cathode model", name)
		}
		return def.AddDevice(circuit.Device{
			Name:     name,
			ModelKey: fields[3],
			Param:    joinParams(4),
			Nets:     []circuit.NetID{net(fields[1]), net(fields[2])},
		})

	case "Q":
		// BJT, decomposed into its two constituent diodes per
		// original_source's diode topology: base-collector and
		// base-emitter. Anode is pinned to the base terminal for both,
		// the NPN reading; PNP decks would need the reverse and aren't
		// distinguished here — a known simplification.
		if len(fields) < 5 {
			return fmt.Errorf("BJT card %s needs collector base emitter model", name)
		}
		c, b, e := net(fields[1]), net(fields[2]), net(fields[3])
		model, param := fields[4], joinParams(5)
		if err := def.AddDevice(circuit.Device{Name: name + "#cb", ModelKey: model, Param: param, Nets: []circuit.NetID{b, c}}); err != nil {
			return err
		}
		return def.AddDevice(circuit.Device{Name: name + "#be", ModelKey: model, Param: param, Nets: []circuit.NetID{b, e}})

	case "R", "C":
		if len(fields) < 4 {
			return fmt.Errorf("%s card %s needs two nets and a model or value", letter, name)
		}
		return def.AddDevice(circuit.Device{
			Name:     name,
			ModelKey: fields[3],
			Param:    joinParams(4),
			Nets:     []circuit.NetID{net(fields[1]), net(fields[2])},
		})

	case "F", "S":
		if len(fields) < 4 {
			return fmt.Errorf("%s card %s needs two nets and a model", letter, name)
		}
		return def.AddDevice(circuit.Device{
			Name:     name,
			ModelKey: fields[3],
			Param:    joinParams(4),
			Nets:     []circuit.NetID{net(fields[1]), net(fields[2])},
		})

	case "X":
		if len(fields) < 3 {
			return fmt.Errorf("subcircuit instance %s needs at least one net and a master name", name)
		}
		nets := make([]circuit.NetID, len(fields)-2)
		for i, n := range fields[1 : len(fields)-1] {
			nets[i] = net(n)
		}
		return def.AddInstance(circuit.Instance{
			Name:       name,
			MasterName: fields[len(fields)-1],
			Nets:       nets,
		})

	default:
		warn(Warning{source, lineNo, strings.Join(fields, " ")})
		return nil
	}
}
