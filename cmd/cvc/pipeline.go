package main

// Package main's pipeline.go wires the batch pipeline spec.md §1
// describes — parse, elaborate, propagate, check — the way the
// teacher's cmd/main.go staged its own parse/setup/analyze/report
// sequence with progress lines written to stdout at each step.

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/donn/cvc/pkg/check"
	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/config"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/fusefile"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/modelfile"
	"github.com/donn/cvc/pkg/netindex"
	"github.com/donn/cvc/pkg/netlist"
	"github.com/donn/cvc/pkg/power"
	"github.com/donn/cvc/pkg/powerfile"
	"github.com/donn/cvc/pkg/propagate"
	"github.com/donn/cvc/pkg/sink"
)

// Pipeline holds every stage's output so cvc run and cvc shell can share
// one build sequence.
type Pipeline struct {
	Lib    *circuit.Library
	Models *model.Library
	Power  *power.Spec
	DB     *elaborate.Database
	Index  *netindex.Index
	Engine *propagate.Engine

	Warnings []string
}

// buildPipeline runs every stage through propagation: parse the four
// input files, resolve device model references, elaborate the
// hierarchy, apply fuse overrides, build the connectivity index, and
// run the five-pass propagator. Checking is left to the caller since
// cvc shell may want to run interactive commands before (or instead of)
// a full check pass.
func buildPipeline(ctx context.Context, cfg *config.Config, s *sink.Sinks, log *logrus.Logger) (*Pipeline, error) {
	p := &Pipeline{Lib: circuit.NewLibrary(), Models: model.NewLibrary(), Power: power.NewSpec()}

	fmt.Fprintf(s.Report, "[1/6] parsing netlist %s\n", cfg.NetlistFile)
	np := netlist.NewParser(p.Lib, cfg.TopCircuit)
	if err := np.ParseFile(cfg.NetlistFile); err != nil {
		return nil, errors.Wrap(err, "parsing netlist")
	}
	np.Finish()
	p.Warnings = append(p.Warnings, warningStrings(np.Warnings)...)
	log.WithField("stage", "netlist").Infof("parsed %d warnings", len(np.Warnings))

	fmt.Fprintf(s.Report, "[2/6] parsing model file %s\n", cfg.ModelFile)
	mp := modelfile.NewParser(p.Models)
	if err := mp.ParseFile(cfg.ModelFile); err != nil {
		return nil, errors.Wrap(err, "parsing model file")
	}
	p.Warnings = append(p.Warnings, mp.Warnings...)

	fmt.Fprintf(s.Report, "[3/6] resolving device models\n")
	resolveModels(p.Lib, p.Models)

	fmt.Fprintf(s.Report, "[4/6] parsing power file %s\n", cfg.PowerFile)
	pp := powerfile.NewParser(p.Power)
	if err := pp.ParseFile(cfg.PowerFile); err != nil {
		return nil, errors.Wrap(err, "parsing power file")
	}
	p.Warnings = append(p.Warnings, pp.Warnings...)

	fmt.Fprintf(s.Report, "[5/6] elaborating %s\n", cfg.TopCircuit)
	db, err := elaborate.Elaborate(p.Lib, cfg.TopCircuit, cfg.PortLimit)
	if err != nil {
		return nil, errors.Wrap(err, "elaborating circuit")
	}
	p.DB = db

	// The elaborator records device ids on each device's own model clone
	// (see resolveModels); later stages read that set of models.
	used := model.NewLibrary()
	p.Lib.Each(func(_ string, def *circuit.Def) {
		for i := range def.Devices {
			if m := def.Devices[i].Model; m != nil && len(m.DeviceIDs) > 0 {
				used.Add(def.Devices[i].ModelKey, m)
			}
		}
	})
	p.Models = used

	if cfg.FuseFile != "" {
		fmt.Fprintf(s.Report, "applying fuse overrides from %s\n", cfg.FuseFile)
		fp := fusefile.NewParser()
		if err := fp.ParseFile(cfg.FuseFile); err != nil {
			return nil, errors.Wrap(err, "parsing fuse-override file")
		}
		applied := fp.Apply(func(name string) (*model.Model, bool) {
			return lookupDeviceModel(db, cfg.HierarchyDelimiter, name)
		})
		log.WithField("stage", "fusefile").Infof("applied %d/%d overrides", applied, len(fp.Overrides))
		p.Warnings = append(p.Warnings, fp.Warnings...)
	}

	p.Index = netindex.Build(db)

	fmt.Fprintf(s.Report, "[6/6] propagating voltages\n")
	p.Engine = propagate.New(db, p.Index, p.Power, cfg.PropagateOptions())
	if err := p.Engine.Run(ctx); err != nil {
		return nil, errors.Wrap(err, "propagating voltages")
	}

	for _, w := range p.Warnings {
		fmt.Fprintln(s.Log, w)
	}
	return p, nil
}

// resolveModels reconciles every circuit.Device's raw ModelKey against
// the parsed model.Library, cloning a fresh *model.Model per Device
// (rather than sharing the library's one *model.Model across every
// device that names it) so later per-device mutation — fuse overrides,
// chiefly — never leaks across devices that merely share a model key.
func resolveModels(lib *circuit.Library, models *model.Library) {
	lib.Each(func(_ string, def *circuit.Def) {
		for i := range def.Devices {
			dev := &def.Devices[i]
			if dev.Model != nil || dev.ModelKey == "" {
				continue
			}
			base := models.Find(dev.ModelKey)
			if base == nil {
				continue
			}
			clone := *base
			clone.DeviceIDs = nil
			dev.Model = &clone
		}
	})
}

// lookupDeviceModel resolves a fully-qualified "X1/X2/deviceName" path
// (top-level devices have no prefix) to its already-resolved model,
// scanning the elaborated device space once. Grounded on the same
// hierarchical-path convention pkg/shell's navigation commands use
// (InstancePath joined with a leaf name).
func lookupDeviceModel(db *elaborate.Database, delimiter, fullName string) (*model.Model, bool) {
	for id := elaborate.DeviceID(0); id < db.DeviceCount; id++ {
		inst, dev := db.DeviceAt(id)
		_ = inst
		path := db.InstancePath(db.DeviceParent[id], delimiter)
		name := dev.Name
		if path != "" {
			name = path + delimiter + dev.Name
		}
		if name == fullName {
			return dev.Model, dev.Model != nil
		}
	}
	return nil, false
}

func warningStrings(ws []netlist.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

// runChecks builds a check.Checker over an already-propagated pipeline
// and returns its findings, writing the structured error-stream blocks
// spec.md §6 describes (one tag line per category, one device snapshot
// per affected device, terminated by "! Finished").
func runChecks(p *Pipeline, opts check.Options, errStream io.Writer) []check.Finding {
	checker := check.New(p.Engine, p.Models, p.Power, opts)
	findings := checker.Run()
	writeFindings(errStream, p.DB, findings, opts.HierarchyDelimiter)
	return findings
}

func writeFindings(w io.Writer, db *elaborate.Database, findings []check.Finding, delimiter string) {
	byCategory := make(map[check.Category][]check.Finding)
	var order []check.Category
	for _, f := range findings {
		if _, ok := byCategory[f.Category]; !ok {
			order = append(order, f.Category)
		}
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}
	for _, cat := range order {
		fmt.Fprintf(w, "* %s\n", cat)
		for _, f := range byCategory[cat] {
			_, dev := db.DeviceAt(f.Device)
			path := db.InstancePath(f.Instance, delimiter)
			name := dev.Name
			if path != "" {
				name = path + delimiter + dev.Name
			}
			suffix := ""
			if f.LogicOK {
				suffix = " (logic ok)"
			}
			fmt.Fprintf(w, "  %s: %s%s\n", name, f.Headline, suffix)
		}
	}
	fmt.Fprintln(w, "! Finished")
}
