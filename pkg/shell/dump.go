package shell

import (
	"fmt"
	"os"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/power"
)

// cmdDumpFuse implements dumpfuse|df: every FuseOn/FuseOff-modeled
// device, across every elaborated instance, written as "name type".
// Grounded on DumpFuses (_examples/original_source/src/
// CCvcDb_interactive.cc lines 1061-1084).
func (sh *Shell) cmdDumpFuse(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no fuse file name\n")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		sh.report("ERROR: Could not open %s\n", args[0])
		return
	}
	defer f.Close()
	count := 0
	sh.Models.All(func(_ string, m *model.Model) {
		if m.Type != model.FuseOn && m.Type != model.FuseOff {
			return
		}
		for _, id := range m.DeviceIDs {
			fmt.Fprintf(f, "%s %s\n", sh.deviceName(elaborate.DeviceID(id)), m.Type)
			count++
		}
	})
	sh.report("total fuses written: %d\n", count)
}

// cmdDumpAnalogNets implements dumpanalognets|dan: nets with no known
// sim voltage and no power declaration, candidates for analog
// treatment. Grounded on DumpAnalogNets (_examples/original_source/src/
// CCvcDb_interactive.cc lines 1086+), simplified to drop the original's
// device-type-driven "is this net actually analog" heuristic in favor
// of the sim-voltage/power-kind test alone.
func (sh *Shell) cmdDumpAnalogNets(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no analog net file name\n")
		return
	}
	if sh.stage <= StageStart {
		sh.report("ERROR: Can only dump analog nets after second stage\n")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		sh.report("ERROR: Could not open %s\n", args[0])
		return
	}
	defer f.Close()
	count := 0
	for n := elaborate.NetID(0); n < sh.DB.NetCount; n++ {
		if sh.Index.EquivalentNet(n) != n {
			continue
		}
		if sh.Eng.Maps.HasSimVoltage(n) {
			continue
		}
		if decl := sh.Power.FindForNet(sh.DB.NetName(n, sh.opts.HierarchyDelimiter)); decl != nil && decl.Kind.Has(power.Power) {
			continue
		}
		fmt.Fprintln(f, sh.DB.NetName(n, sh.opts.HierarchyDelimiter))
		count++
	}
	sh.report("total analog nets written: %d\n", count)
}

// cmdDumpUnknownLogicalNets implements dumpunknownlogicalnets|duln:
// nets with no sim voltage that also aren't declared an input/power/
// reference, the shell's view of "logic state undetermined." Grounded
// on DumpUnknownLogicalNets (same file, immediately following
// DumpAnalogNets).
func (sh *Shell) cmdDumpUnknownLogicalNets(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no unknown logical net file name\n")
		return
	}
	if sh.stage < StageFirstSim {
		sh.report("ERROR: Can only dump unknown logical nets after first sim stage\n")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		sh.report("ERROR: Could not open %s\n", args[0])
		return
	}
	defer f.Close()
	count := 0
	for n := elaborate.NetID(0); n < sh.DB.NetCount; n++ {
		if sh.Index.EquivalentNet(n) != n {
			continue
		}
		if sh.Eng.Maps.HasSimVoltage(n) {
			continue
		}
		decl := sh.Power.FindForNet(sh.DB.NetName(n, sh.opts.HierarchyDelimiter))
		if decl != nil && (decl.Kind.Has(power.Input) || decl.Kind.Has(power.Power) || decl.Kind.Has(power.Reference)) {
			continue
		}
		fmt.Fprintln(f, sh.DB.NetName(n, sh.opts.HierarchyDelimiter))
		count++
	}
	sh.report("total unknown logical nets written: %d\n", count)
}

// cmdDebug implements debug <instance> <cell>: a self-contained
// configuration triple (config, reduced netlist, power snapshot)
// reproducing the current voltage state restricted to one instance,
// per spec.md §4.7. Grounded on CreateDebugCvcrcFile/
// PrintInstancePowerFile (_examples/original_source/src/
// CCvcDb_interactive.cc lines 1217+), simplified to a flat device/net
// dump rather than re-emitting a re-parseable SPICE subcircuit.
func (sh *Shell) cmdDebug(args []string) {
	if sh.stage < StageSecondSim {
		sh.report("ERROR: Can only debug after final sim.\n")
		return
	}
	if len(args) < 2 {
		sh.report("ERROR: debug requires <instance> <cell>\n")
		return
	}
	instID, unmatched, ok := sh.findHierarchy(sh.current, args[0])
	if !ok || unmatched != "" {
		sh.report("ERROR: Could not find %s\n", args[0])
		return
	}
	cell := args[1]
	base := "debug.cvcrc." + cell

	cfg, err := os.Create(base + ".cfg")
	if err != nil {
		sh.report("ERROR: Could not create cvcrc file %s\n", base)
		return
	}
	defer cfg.Close()
	fmt.Fprintf(cfg, "# debug configuration for %s at stage %s\n", sh.hierarchyName(instID), sh.stage)
	fmt.Fprintf(cfg, "hierarchy_delimiter %s\n", sh.opts.HierarchyDelimiter)
	fmt.Fprintf(cfg, "search_limit %d\n", sh.opts.SearchLimit)

	net, err := os.Create(base + ".net")
	if err != nil {
		sh.report("ERROR: Could not create netlist file %s\n", base)
		return
	}
	defer net.Close()
	inst := sh.DB.Instances[instID]
	fmt.Fprintf(net, "* reduced netlist for %s\n", inst.Master.Name)
	for _, d := range inst.Master.Devices {
		fmt.Fprintf(net, "%s %s\n", d.Name, d.Param)
	}

	pwr, err := os.Create(base + ".power")
	if err != nil {
		sh.report("ERROR: Could not create power file %s\n", base)
		return
	}
	defer pwr.Close()
	for i, leaf := range inst.Master.NetNames {
		global := inst.LocalToGlobalNetID[i]
		eq := sh.Index.EquivalentNet(global)
		if !sh.Eng.Maps.HasSimVoltage(eq) {
			continue
		}
		fmt.Fprintf(pwr, "%s sim@%s\n", leaf, formatMv(sh.Eng.Maps.SimVoltage(eq)))
	}

	sh.report("Wrote debug cvcrc file %s\n", base)
}
