// Command cvc is a static voltage-propagation and rule-checking engine
// for transistor-level IC netlists. Grounded in intel-PerfSpect's
// cmd/root.go command tree (cobra.Command with PersistentFlags, a
// primary command group, Execute() as the sole entrypoint) and in
// pmu-checker's logrus TextFormatter setup for the logging side.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/donn/cvc/pkg/config"
)

var (
	flagConfigFile string
	flagNetlist    string
	flagModel      string
	flagPower      string
	flagFuse       string
	flagTop        string
	flagOutputDir  string

	flagErrorLimit       int
	flagPortLimit        int
	flagLeakOvervoltage  bool
	flagGateThreshold    int32
	flagBiasThreshold    int32
	flagForwardThreshold int32
	flagLeakThreshold    int32
	flagLeakLimit        float64

	flagDebug bool
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:           "cvc",
	Short:         "Static voltage-propagation and rule checking for transistor-level netlists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	rootCmd.AddGroup(&cobra.Group{ID: "primary", Title: "Commands:"})
	rootCmd.AddCommand(runCmd, shellCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigFile, "config", "", "YAML run configuration (overridden by any flag explicitly set)")
	pf.StringVar(&flagNetlist, "netlist", "", "structural netlist file")
	pf.StringVar(&flagModel, "model", "", "device-model file")
	pf.StringVar(&flagPower, "power", "", "power-intent file")
	pf.StringVar(&flagFuse, "fuse", "", "fuse-override file (optional)")
	pf.StringVar(&flagTop, "top", "", "top-level circuit name")
	pf.StringVar(&flagOutputDir, "output-dir", "", "directory for report/error/log/debug output files")

	pf.IntVar(&flagErrorLimit, "error-limit", 0, "per-device error cap before further findings are tallied but not reported (0 disables)")
	pf.IntVar(&flagPortLimit, "port-limit", 0, "actual-net-count ceiling above which instances are never parallel-collapsed")
	pf.BoolVar(&flagLeakOvervoltage, "leak-overvoltage", false, "report the logic-ok leak-path variant of the overvoltage checks")
	pf.Int32Var(&flagGateThreshold, "gate-threshold", 0, "gate-vs-source error threshold, millivolts")
	pf.Int32Var(&flagBiasThreshold, "bias-threshold", 0, "source-vs-bulk error threshold, millivolts")
	pf.Int32Var(&flagForwardThreshold, "forward-threshold", 0, "forward-biased-diode error threshold, millivolts")
	pf.Int32Var(&flagLeakThreshold, "leak-threshold", 0, "possible-leak error threshold, millivolts")
	pf.Float64Var(&flagLeakLimit, "leak-limit", 0, "estimated leak current above which a leak path is reported, amps")

	pf.BoolVar(&flagDebug, "debug", false, "enable debug-level logging")
}

// loadConfig builds a config.Config from --config (if given) and then
// overrides it with every flag the user actually set on argv —
// pflag.Changed is what lets an unset flag fall through to the YAML
// file's (or Default's) value instead of clobbering it with its zero
// value, matching the precedence intel-PerfSpect's flag/config layering
// relies on.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfigFile != "" {
		cfg, err = config.Load(flagConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("netlist") {
		cfg.NetlistFile = flagNetlist
	}
	if flags.Changed("model") {
		cfg.ModelFile = flagModel
	}
	if flags.Changed("power") {
		cfg.PowerFile = flagPower
	}
	if flags.Changed("fuse") {
		cfg.FuseFile = flagFuse
	}
	if flags.Changed("top") {
		cfg.TopCircuit = flagTop
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flagOutputDir
	}
	if flags.Changed("error-limit") {
		cfg.ErrorLimit = flagErrorLimit
	}
	if flags.Changed("port-limit") {
		cfg.PortLimit = flagPortLimit
	}
	if flags.Changed("leak-overvoltage") {
		cfg.LeakOvervoltage = flagLeakOvervoltage
	}
	if flags.Changed("gate-threshold") {
		cfg.GateThreshold = flagGateThreshold
	}
	if flags.Changed("bias-threshold") {
		cfg.BiasThreshold = flagBiasThreshold
	}
	if flags.Changed("forward-threshold") {
		cfg.ForwardThreshold = flagForwardThreshold
	}
	if flags.Changed("leak-threshold") {
		cfg.LeakThreshold = flagLeakThreshold
	}
	if flags.Changed("leak-limit") {
		cfg.LeakLimit = flagLeakLimit
	}

	if cfg.NetlistFile == "" || cfg.ModelFile == "" || cfg.PowerFile == "" {
		return nil, fmt.Errorf("--netlist, --model, and --power are required (directly or via --config)")
	}

	if flagDebug {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
