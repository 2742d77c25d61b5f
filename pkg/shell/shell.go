// Package shell implements the interactive command loop of spec.md §4.7:
// hierarchy navigation, net/device/instance search and inspection, and
// the handful of commands (source, debug, continue, setpower/setmodel/
// setfuse) that interact with the run's stage machinery. It reads the
// same elaborated/propagated state pkg/check reads, and never mutates
// it outside the stage-restricted setter commands.
//
// Grounded on _examples/original_source/src/CCvcDb_interactive.cc: the
// main loop (lines 556-1059), FindHierarchy (196-247), FindInstances/
// FindNets/ShowNets (80-166), PrintNets/PrintDevices/PrintInstances
// (308-441), DumpFuses/DumpAnalogNets/DumpUnknownLogicalNets (1061+),
// and CreateDebugCvcrcFile/PrintInstancePowerFile (1217+).
package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/donn/cvc/pkg/check"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/netindex"
	"github.com/donn/cvc/pkg/power"
	"github.com/donn/cvc/pkg/propagate"
)

// Stage mirrors spec.md §6's seven user-visible run-stage identifiers.
// Certain commands are only accepted from a given stage onward.
type Stage int

const (
	StageStart Stage = iota + 1
	StageLink
	StageFirstMinMax
	StageFirstSim
	StageResistance
	StageSecondSim
	StageComplete
)

func (s Stage) String() string {
	names := [...]string{"", "STAGE_START", "STAGE_LINK", "STAGE_FIRST_MINMAX",
		"STAGE_FIRST_SIM", "STAGE_RESISTANCE", "STAGE_SECOND_SIM", "STAGE_COMPLETE"}
	if int(s) < 0 || int(s) >= len(names) {
		return "STAGE_UNKNOWN"
	}
	return names[s]
}

// ReturnCode is the shell's advisory exit tag, returned to the external
// pipeline driver that embeds the shell between propagation stages.
type ReturnCode int

const (
	Unknown ReturnCode = iota
	OK
	Skip
	Fail
)

// Source supplies one line of input at a time. Prompt returns io.EOF
// when the source is exhausted (^D at an interactive terminal, or the
// end of a sourced file).
type Source interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// Options carries the knobs the original exposes as cvcParameters
// fields the shell itself can change (searchlimit, hierarchydelimiter)
// or read (the rest belong to the run configuration proper).
type Options struct {
	HierarchyDelimiter string
	SearchLimit        int
}

// Shell is one REPL session bound to an already-elaborated, possibly
// already-propagated, Engine.
type Shell struct {
	DB     *elaborate.Database
	Index  *netindex.Index
	Power  *power.Spec
	Models *model.Library
	Eng    *propagate.Engine

	Report io.Writer
	Log    io.Writer

	opts Options

	stage   Stage
	current elaborate.InstanceID

	printSubcircuitName bool
	continueCount       int

	sources  []Source // stack; top (last element) is the active input
	children map[elaborate.InstanceID][]elaborate.InstanceID

	detectErrors bool
}

// New returns a Shell positioned at the top instance, stage, ready to
// read commands from top once Run is called.
func New(db *elaborate.Database, idx *netindex.Index, powerSpec *power.Spec, models *model.Library, eng *propagate.Engine, top Source, opts Options) *Shell {
	if opts.HierarchyDelimiter == "" {
		opts.HierarchyDelimiter = "/"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 1000
	}
	return &Shell{
		DB:                  db,
		Index:               idx,
		Power:               powerSpec,
		Models:              models,
		Eng:                 eng,
		Report:              io.Discard,
		Log:                 io.Discard,
		opts:                opts,
		stage:               StageStart,
		current:             0,
		printSubcircuitName: false,
		detectErrors:        true,
		sources:             []Source{top},
	}
}

// SetStage advances (or sets) the run stage the shell gates commands
// against. The external pipeline driver calls this between passes.
func (sh *Shell) SetStage(s Stage) { sh.stage = s }

func (sh *Shell) report(format string, args ...interface{}) {
	fmt.Fprintf(sh.Report, format, args...)
}

// childrenOf lazily builds and caches the parent->children adjacency
// the flat Database doesn't otherwise expose (InstancePath only walks
// upward via ParentID), needed for goto and the recursive net search.
func (sh *Shell) childrenOf(id elaborate.InstanceID) []elaborate.InstanceID {
	if sh.children == nil {
		sh.children = make(map[elaborate.InstanceID][]elaborate.InstanceID, len(sh.DB.Instances))
		for i, inst := range sh.DB.Instances {
			if inst.ParentID < 0 {
				continue
			}
			sh.children[inst.ParentID] = append(sh.children[inst.ParentID], elaborate.InstanceID(i))
		}
	}
	return sh.children[id]
}

// Run drives the command loop until a command sets a definite return
// code (continue, skip, rerun, quit) or the outermost input source hits
// EOF with no command mode pending. ctx's cancellation is polled once
// per prompt, mirroring spec.md §5's interrupt-flag barrier applied to
// the interactive shell's blocking read.
func (sh *Shell) Run(ctx context.Context) (ReturnCode, int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Unknown, 0, err
		}
		top := sh.sources[len(sh.sources)-1]
		line, err := top.Prompt(sh.prompt())
		if err != nil {
			if err != io.EOF {
				return Unknown, 0, err
			}
			if len(sh.sources) > 1 {
				top.Close()
				sh.sources = sh.sources[:len(sh.sources)-1]
				sh.report("finished source. Depth %d\n", len(sh.sources)-1)
				continue
			}
			return OK, 0, nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		sh.report("\n> %s\n", line)
		code, n, quit := sh.dispatch(fields[0], fields[1:])
		if quit {
			for _, s := range sh.sources {
				s.Close()
			}
			return code, n, nil
		}
	}
}

func (sh *Shell) prompt() string {
	return fmt.Sprintf("** Stage %s: Enter command ?> ", sh.stage)
}

var aliases = map[string]string{
	"fs": "findsubcircuit", "fn": "findnet", "g": "goto", "cd": "goto",
	"ch": "currenthierarchy", "pwd": "currenthierarchy",
	"ph": "printhierarchy", "pd": "printdevice", "pn": "printnet",
	"ln": "listnet", "ld": "listdevice", "li": "listinstance",
	"gn": "getnet", "gd": "getdevice", "gi": "getinstance",
	"en": "expandnet", "df": "dumpfuse", "dan": "dumpanalognets",
	"duln": "dumpunknownlogicalnets", "ti": "traceinverter",
	"pc": "printcdl", "pe": "printenvironment", "n": "togglename",
	"sp": "setpower", "sm": "setmodel", "sf": "setfuse",
	"sl": "searchlimit", "hd": "hierarchydelimiter",
	"pp": "printpower", "pm": "printmodel",
	"c": "continue", "h": "help", "q": "quit",
}

func canonical(cmd string) string {
	if full, ok := aliases[cmd]; ok {
		return full
	}
	return cmd
}

// dispatch executes one command. The bool result reports whether the
// loop must exit (continue/skip/rerun/quit); the ReturnCode and int are
// only meaningful when it does.
func (sh *Shell) dispatch(cmd string, args []string) (ReturnCode, int, bool) {
	switch canonical(cmd) {
	case "findsubcircuit":
		sh.cmdFindSubcircuit(args)
	case "findnet":
		sh.cmdFindNet(args)
	case "goto":
		sh.cmdGoto(args)
	case "currenthierarchy":
		sh.cmdCurrentHierarchy()
	case "printhierarchy":
		sh.cmdPrintHierarchy(args)
	case "printdevice":
		sh.cmdPrintDevice(args)
	case "printnet":
		sh.cmdPrintNet(args)
	case "listnet":
		sh.cmdListNet(args)
	case "listdevice":
		sh.cmdListDevice(args)
	case "listinstance":
		sh.cmdListInstance(args)
	case "getnet":
		sh.cmdGetNet(args)
	case "getdevice":
		sh.cmdGetDevice(args)
	case "getinstance":
		sh.cmdGetInstance(args)
	case "expandnet":
		sh.cmdExpandNet(args)
	case "dumpfuse":
		sh.cmdDumpFuse(args)
	case "dumpanalognets":
		sh.cmdDumpAnalogNets(args)
	case "dumpunknownlogicalnets":
		sh.cmdDumpUnknownLogicalNets(args)
	case "traceinverter":
		sh.cmdTraceInverter(args)
	case "printcdl":
		sh.cmdPrintCdl(args)
	case "printenvironment":
		sh.cmdPrintEnvironment()
	case "togglename":
		sh.printSubcircuitName = !sh.printSubcircuitName
		sh.report("Printing subcircuit name option is now %s\n", onOff(sh.printSubcircuitName))
	case "setpower", "setmodel", "setfuse":
		sh.cmdStageOneSetter(cmd, args)
	case "searchlimit":
		sh.cmdSearchLimit(args)
	case "hierarchydelimiter":
		sh.cmdHierarchyDelimiter(args)
	case "printpower":
		sh.cmdPrintPower()
	case "printmodel":
		sh.cmdPrintModel()
	case "source":
		sh.cmdSource(args)
	case "debug":
		sh.cmdDebug(args)
	case "noerror":
		sh.detectErrors = false
		sh.report("WARNING: Ignoring errors.\n")
	case "skip":
		sh.current = 0
		return Skip, 0, true
	case "rerun":
		sh.current = 0
		return Skip, -1, true
	case "continue":
		return sh.cmdContinue(args)
	case "help":
		sh.cmdHelp()
	case "quit":
		return OK, 0, true
	default:
		sh.report("Unrecognized command '%s'\n", cmd)
	}
	return Unknown, 0, false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (sh *Shell) cmdContinue(args []string) (ReturnCode, int, bool) {
	n := 1
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &n)
	}
	sh.continueCount = n
	sh.report("continuing for %d step(s)\n", n)
	return OK, n, true
}

func (sh *Shell) cmdHelp() {
	lines := []string{
		"<ctrl-d> switch to automatic (i.e. end interactive)",
		"searchlimit|sl [limit]: set search limit",
		"hierarchydelimiter|hd [character]: set interactive hierarchy delimiter",
		"goto|g|cd <hierarchy>: goto hierarchy",
		"currenthierarchy|ch|pwd: print current hierarchy",
		"printhierarchy|ph <id>: print hierarchy name",
		"printdevice|pd <id>: print device name",
		"printnet|pn <id>: print net name",
		"listnet|listdevice|listinstance|ln|ld|li [filter]: list net|device|instances in current subcircuit",
		"getnet|getdevice|getinstance|gn|gd|gi <name>: get net|device|instance number for name",
		"expandnet|en <name>: expand net to top level",
		"dumpfuse|df <file>: dump fuses to file",
		"dumpanalognets|dan <file>: dump analog nets to file",
		"dumpunknownlogicalnets|duln <file>: dump unknown logical nets to file",
		"traceinverter|ti <name>: trace signal as inverter output",
		"findsubcircuit|fs <subcircuit>: list instances, or regex matches",
		"findnet|fn <net>: list matching nets in lower subcircuits",
		"printcdl|pc <subcircuit>: print subcircuit as subcircuit.cdl",
		"printenvironment|pe: print simulation environment",
		"togglename|n: toggle subcircuit names",
		"setpower|sp <file>: use file as power",
		"setmodel|sm <file>: use file as model",
		"setfuse|sf <file>: use file as fuse overrides",
		"printpower|pp: print power settings",
		"printmodel|pm: print model statistics",
		"source <file>: read commands from file",
		"debug <instance> <cell>: write debug configuration for instance",
		"noerror: skip error processing (just propagation)",
		"skip: skip this cvcrc and use next one",
		"rerun: rerun this cvcrc",
		"continue|c [n]: continue n step(s)",
		"help|h: help",
		"quit|q: quit",
	}
	sh.report("Available commands are:\n")
	for _, l := range lines {
		sh.report("%s\n", l)
	}
}

func (sh *Shell) cmdStageOneSetter(cmd string, args []string) {
	if sh.stage != StageStart {
		sh.report("ERROR: Can only change %s file at stage 1.\n", setterKind(cmd))
		return
	}
	if len(args) == 0 {
		sh.report("ERROR: no file name\n")
		return
	}
	sh.report("%s file set to %s (reload deferred to the run driver)\n", setterKind(cmd), args[0])
}

func setterKind(cmd string) string {
	switch canonical(cmd) {
	case "setpower":
		return "power"
	case "setmodel":
		return "model"
	default:
		return "fuse"
	}
}

func (sh *Shell) cmdSearchLimit(args []string) {
	if len(args) == 0 {
		sh.report("Current search limit: %d\n", sh.opts.SearchLimit)
		return
	}
	var n int
	if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
		sh.report("invalid argument\n")
		return
	}
	sh.opts.SearchLimit = n
	sh.report("Search limit set to: %d\n", n)
}

func (sh *Shell) cmdHierarchyDelimiter(args []string) {
	if len(args) == 0 {
		sh.report("Current hierarchy delimiter(s): '%s'\n", sh.opts.HierarchyDelimiter)
		return
	}
	sh.opts.HierarchyDelimiter = args[0]
	sh.report("Hierarchy delimiter(s) set to: '%s'\n", args[0])
}

func (sh *Shell) cmdPrintEnvironment() {
	sh.report("Hierarchy delimiter(s): '%s'\n", sh.opts.HierarchyDelimiter)
	sh.report("Search limit: %d\n", sh.opts.SearchLimit)
	sh.report("Stage: %s\n", sh.stage)
	sh.report("Error detection: %s\n", onOff(sh.detectErrors))
}

func (sh *Shell) cmdPrintPower() {
	for _, d := range sh.Power.Declarations {
		sh.report("%s kind=%#x", d.Pattern, uint32(d.Kind))
		if d.Alias != "" {
			sh.report(" alias=%s", d.Alias)
		}
		sh.report("\n")
	}
}

func (sh *Shell) cmdPrintModel() {
	counts := map[model.Type]int{}
	sh.Models.All(func(_ string, m *model.Model) {
		counts[m.Type] += len(m.DeviceIDs)
	})
	types := make([]model.Type, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		sh.report("%s: %d devices\n", t, counts[t])
	}
}

// NewChecker is a narrow seam letting the shell re-run the rule
// checker on demand (e.g. after a setpower/setmodel reload performed by
// the external driver), without pkg/shell importing pkg/check's full
// Options construction logic.
func (sh *Shell) NewChecker(opts check.Options) *check.Checker {
	return check.New(sh.Eng, sh.Models, sh.Power, opts)
}
