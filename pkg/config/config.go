// Package config loads the run configuration cmd/cvc needs: input file
// paths, output destinations, and the checker/shell thresholds and
// options spec.md §4.6's table names. Grounded in intel-PerfSpect's
// internal/common/targets.go (os.ReadFile + yaml.Unmarshal into a
// yaml-tagged struct, flags override file values after loading).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/donn/cvc/pkg/check"
	"github.com/donn/cvc/pkg/propagate"
	"github.com/donn/cvc/pkg/shell"
	"github.com/donn/cvc/pkg/sink"
)

// Config is the full set of knobs a run needs, loadable from a YAML
// file and then overridden by command-line flags (pflag/cobra
// precedence: a flag the user actually set on argv wins over whatever
// the YAML file or these defaults supplied).
type Config struct {
	NetlistFile string `yaml:"netlist"`
	ModelFile   string `yaml:"model"`
	PowerFile   string `yaml:"power"`
	FuseFile    string `yaml:"fuse,omitempty"`
	TopCircuit  string `yaml:"top"`

	OutputDir  string `yaml:"outputDir"`
	ReportFile string `yaml:"reportFile"`
	ErrorFile  string `yaml:"errorFile"`
	LogFile    string `yaml:"logFile,omitempty"`
	DebugFile  string `yaml:"debugFile,omitempty"`

	HierarchyDelimiter string `yaml:"hierarchyDelimiter"`
	PortLimit          int    `yaml:"portLimit"`
	SearchLimit        int    `yaml:"searchLimit"`
	ErrorLimit         int    `yaml:"errorLimit"`

	GateThreshold    int32   `yaml:"gateThreshold"`
	BiasThreshold    int32   `yaml:"biasThreshold"`
	ForwardThreshold int32   `yaml:"forwardThreshold"`
	LeakThreshold    int32   `yaml:"leakThreshold"`
	ExpectedThreshold int32  `yaml:"expectedThreshold"`
	LeakLimit        float64 `yaml:"leakLimit"`

	LeakOvervoltage   bool `yaml:"leakOvervoltage"`
	MinVthGates       bool `yaml:"minVthGates"`
	VthGates          bool `yaml:"vthGates"`
	IgnoreVthFloating bool `yaml:"ignoreVthFloating"`
}

// Default returns the baseline a fresh run starts from before a YAML
// file or flags are applied, matching spec.md §4.6's threshold defaults
// where it names one and otherwise the original's conservative
// production defaults.
func Default() *Config {
	return &Config{
		TopCircuit:         "TOP",
		ReportFile:         "cvc.report.txt",
		ErrorFile:          "cvc.errors.gz",
		HierarchyDelimiter: "/",
		PortLimit:          35,
		SearchLimit:        500,
		ErrorLimit:         50,
		GateThreshold:      100,
		BiasThreshold:      100,
		ForwardThreshold:   100,
		LeakThreshold:      50,
		ExpectedThreshold:  50,
		LeakLimit:          1e-9,
	}
}

// Load reads a YAML file at path into a copy of Default, so any field
// the file omits keeps its default rather than zeroing out.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// CheckOptions renders the checker thresholds into check.Options.
func (c *Config) CheckOptions() check.Options {
	return check.Options{
		HierarchyDelimiter:     c.HierarchyDelimiter,
		GateErrorThreshold:     c.GateThreshold,
		BiasErrorThreshold:     c.BiasThreshold,
		ForwardErrorThreshold:  c.ForwardThreshold,
		LeakErrorThreshold:     c.LeakThreshold,
		ExpectedErrorThreshold: c.ExpectedThreshold,
		LeakLimit:              c.LeakLimit,
		CircuitErrorLimit:      c.ErrorLimit,
		LeakOvervoltage:        c.LeakOvervoltage,
		MinVthGates:            c.MinVthGates,
		VthGates:               c.VthGates,
		IgnoreVthFloating:      c.IgnoreVthFloating,
	}
}

// PropagateOptions renders the propagation engine's options.
func (c *Config) PropagateOptions() propagate.Options {
	return propagate.Options{HierarchyDelimiter: c.HierarchyDelimiter}
}

// ShellOptions renders the interactive shell's options.
func (c *Config) ShellOptions() shell.Options {
	return shell.Options{HierarchyDelimiter: c.HierarchyDelimiter, SearchLimit: c.SearchLimit}
}

// SinkFiles renders the output-file layout for sink.NewFromFiles,
// joining OutputDir onto each relative file name the user or Default
// set.
func (c *Config) SinkFiles() sink.Files {
	join := func(name string) string {
		if name == "" || c.OutputDir == "" {
			return name
		}
		return c.OutputDir + string(os.PathSeparator) + name
	}
	return sink.Files{
		Report: join(c.ReportFile),
		Error:  join(c.ErrorFile),
		Log:    join(c.LogFile),
		Debug:  join(c.DebugFile),
	}
}
