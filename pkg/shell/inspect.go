package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/util"
	"github.com/donn/cvc/pkg/vnet"
)

// formatMv renders a millivolt value as volts, matching pkg/check's
// own millivolt formatting (pkg/util.FormatMillivolts) but with a
// trailing unit suffix, for the shell's standalone report lines.
func formatMv(mv int32) string {
	return util.FormatVoltage(mv)
}

func (sh *Shell) cmdPrintDevice(args []string) {
	id, ok := sh.parseInstanceID(args)
	if !ok {
		sh.report("ERROR: missing device number\n")
		return
	}
	sh.report("Device %d: %s\n", id, sh.deviceName(elaborate.DeviceID(id)))
}

func (sh *Shell) cmdPrintNet(args []string) {
	id, ok := sh.parseInstanceID(args)
	if !ok {
		sh.report("ERROR: missing net number\n")
		return
	}
	sh.report("Net %d: %s\n", id, sh.DB.NetName(elaborate.NetID(id), sh.opts.HierarchyDelimiter))
}

func (sh *Shell) deviceName(id elaborate.DeviceID) string {
	_, dev := sh.DB.DeviceAt(id)
	instID := sh.DB.DeviceParent[id]
	path := sh.hierarchyName(instID)
	if path == "" {
		return dev.Name
	}
	return path + sh.opts.HierarchyDelimiter + dev.Name
}

// splitHierarchicalName separates a dotted/slashed name into an
// instance-path prefix (resolved from sh.current) and a local leaf,
// the way FindNet/FindDevice resolve a name typed at the shell
// (_examples/original_source/src/CCvcDb_interactive.cc line 479+).
func (sh *Shell) splitHierarchicalName(name string) (elaborate.InstanceID, string) {
	delim := sh.opts.HierarchyDelimiter
	idx := strings.LastIndex(name, delim)
	if idx < 0 {
		return sh.current, name
	}
	prefix, leaf := name[:idx], name[idx+len(delim):]
	owner, unmatched, ok := sh.findHierarchy(sh.current, prefix)
	if !ok || unmatched != "" {
		return sh.current, name
	}
	return owner, leaf
}

func (sh *Shell) findLocalNet(owner elaborate.InstanceID, leaf string) (elaborate.NetID, bool) {
	inst := sh.DB.Instances[owner]
	for i, n := range inst.Master.NetNames {
		if n == leaf {
			return inst.LocalToGlobalNetID[i], true
		}
	}
	return 0, false
}

func (sh *Shell) findLocalDevice(owner elaborate.InstanceID, leaf string) (elaborate.DeviceID, bool) {
	inst := sh.DB.Instances[owner]
	for i, d := range inst.Master.Devices {
		if d.Name == leaf {
			return inst.FirstDeviceID + elaborate.DeviceID(i), true
		}
	}
	return 0, false
}

func (sh *Shell) cmdGetNet(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no net name\n")
		return
	}
	owner, leaf := sh.splitHierarchicalName(args[0])
	netID, ok := sh.findLocalNet(owner, leaf)
	if !ok {
		sh.report("Could not find net %s\n", args[0])
		return
	}
	sh.report("Net %s: %d\n", sh.DB.NetName(netID, sh.opts.HierarchyDelimiter), netID)
	eq := sh.Index.EquivalentNet(netID)
	if sh.stage >= StageLink {
		sh.report(" connections: gate %d source %d drain %d bulk %d\n",
			sh.Index.GateCount(eq), sh.Index.SourceCount(eq), sh.Index.DrainCount(eq), sh.Index.BulkCount(eq))
	}
	if sh.Eng.Maps.HasSimVoltage(eq) {
		sh.report(" sim voltage %s\n", formatMv(sh.Eng.Maps.SimVoltage(eq)))
	}
	minV, maxV := sh.Eng.Maps.MinVoltage(eq), sh.Eng.Maps.MaxVoltage(eq)
	if minV != vnet.UnknownVoltage {
		sh.report(" min voltage %s\n", formatMv(minV))
	}
	if maxV != vnet.UnknownVoltage {
		sh.report(" max voltage %s\n", formatMv(maxV))
	}
}

func (sh *Shell) cmdGetDevice(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no device name\n")
		return
	}
	owner, leaf := sh.splitHierarchicalName(args[0])
	id, ok := sh.findLocalDevice(owner, leaf)
	if !ok {
		sh.report("Could not find device %s\n", args[0])
		return
	}
	_, dev := sh.DB.DeviceAt(id)
	sh.report("Device %s: %d\n", sh.deviceName(id), id)
	sh.report(" %s\n", dev.Param)
	if dev.Model != nil {
		sh.report("  Model %s\n", dev.Model.Definition)
		if dev.Model.ResistanceDefinition != "" {
			if r, err := dev.Model.Resistance(nil); err == nil {
				sh.report("  Resistance %s\n", util.FormatOhms(r))
			}
		}
	}
}

func (sh *Shell) cmdGetInstance(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no instance name\n")
		return
	}
	id, unmatched, ok := sh.findHierarchy(sh.current, args[0])
	if !ok || unmatched != "" {
		sh.report("Could not find instance %s\n", args[0])
		return
	}
	inst := sh.DB.Instances[id]
	sh.report("Instance %s: %d\n", sh.hierarchyName(id), id)
	sh.report(" subcircuit %s\n", inst.Master.Name)
	if inst.IsParallel() {
		sh.report(" parallel instance of %s\n", sh.hierarchyName(inst.ParallelInstanceID))
	} else if inst.ParallelInstanceCount > 1 {
		sh.report(" canonical for %d parallel instances\n", inst.ParallelInstanceCount)
	}
}

func (sh *Shell) cmdExpandNet(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no net name\n")
		return
	}
	owner, leaf := sh.splitHierarchicalName(args[0])
	netID, ok := sh.findLocalNet(owner, leaf)
	if !ok {
		sh.report("* Could not expand net %s\n", args[0])
		return
	}
	top := sh.Index.EquivalentNet(netID)
	sh.report("%s\n", sh.DB.NetName(top, sh.opts.HierarchyDelimiter))
}

// cmdTraceInverter is retained for command-table parity with spec.md
// §6, but the propagation engine this shell reads doesn't build the
// original's inverterNet_v provenance chain (it wasn't part of any
// component this rework's propagation engine produces), so it reports
// that no inversion chain is recorded rather than walking one.
func (sh *Shell) cmdTraceInverter(args []string) {
	if sh.stage < StageFirstMinMax {
		sh.report("Inverters have not been processed. Try later stage.\n")
		return
	}
	if len(args) == 0 {
		sh.report("ERROR: no net name\n")
		return
	}
	owner, leaf := sh.splitHierarchicalName(args[0])
	netID, ok := sh.findLocalNet(owner, leaf)
	if !ok {
		sh.report("Could not find net %s\n", args[0])
		return
	}
	sh.report("%s\n", sh.DB.NetName(netID, sh.opts.HierarchyDelimiter))
	sh.report(" not an inverter output.\n")
}

func (sh *Shell) cmdPrintCdl(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no subcircuit name\n")
		return
	}
	def := sh.DB.Lib.Find(args[0])
	if def == nil {
		sh.report("Could not find subcircuit %s\n", args[0])
		return
	}
	fileName := args[0] + ".cdl"
	f, err := os.Create(fileName)
	if err != nil {
		sh.report("Could not open %s\n", fileName)
		return
	}
	defer f.Close()
	sh.writeCdl(f, def, map[string]bool{})
	sh.report("Wrote subcircuit %s to %s\n", args[0], fileName)
}

func (sh *Shell) writeCdl(f *os.File, def *circuit.Def, written map[string]bool) {
	if written[def.Name] {
		return
	}
	written[def.Name] = true
	f.WriteString(".subckt " + def.Name + " " + strings.Join(def.NetNames[:def.PortCount], " ") + "\n")
	for _, d := range def.Devices {
		nets := make([]string, len(d.Nets))
		for i, n := range d.Nets {
			nets[i] = def.NetNames[n]
		}
		f.WriteString(d.Name + " " + strings.Join(nets, " ") + " " + d.ModelKey + " " + d.Param + "\n")
	}
	for _, inst := range def.Instances {
		nets := make([]string, len(inst.Nets))
		for i, n := range inst.Nets {
			nets[i] = def.NetNames[n]
		}
		f.WriteString(inst.Name + " " + strings.Join(nets, " ") + " " + inst.MasterName + "\n")
	}
	f.WriteString(".ends " + def.Name + "\n\n")
	for _, inst := range def.Instances {
		if child := sh.DB.Lib.Find(inst.MasterName); child != nil {
			sh.writeCdl(f, child, written)
		}
	}
}
