package shell

import (
	"sort"

	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/elaborate"
)

// cmdFindSubcircuit implements findsubcircuit|fs: an exact subcircuit
// name lists every elaborated instance of it (with a {parallel} tag for
// collapsed siblings); anything else is treated as a search pattern
// over every subcircuit name. Grounded on FindInstances
// (_examples/original_source/src/CCvcDb_interactive.cc lines 80-127).
func (sh *Shell) cmdFindSubcircuit(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no subcircuit name\n")
		return
	}
	name := args[0]
	if def := sh.DB.Lib.Find(name); def != nil {
		count := 0
		for i, inst := range sh.DB.Instances {
			if inst.Master != def {
				continue
			}
			sh.report("%s", sh.hierarchyName(elaborate.InstanceID(i)))
			if inst.IsParallel() {
				sh.report(" {parallel}")
			} else {
				count += inst.ParallelInstanceCount
			}
			sh.report("\n")
		}
		sh.report("found %d instances\n", count)
		return
	}
	sh.report("Searching for subcircuits matching %s\n", name)
	match := fuzzyFilter(name)
	var hits []string
	matchCount := 0
	sh.forEachCircuitName(func(n string, instanceCount int) {
		if !match(n) {
			return
		}
		if matchCount++; matchCount <= sh.opts.SearchLimit {
			hits = append(hits, n)
		}
	})
	if matchCount == 0 {
		sh.report("Could not find any subcircuits matching %s\n", name)
		return
	}
	sort.Strings(hits)
	for _, h := range hits {
		sh.report("%s\n", h)
	}
	sh.report("Displayed %d/%d matches\n", len(hits), matchCount)
}

func (sh *Shell) cmdFindNet(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no net name\n")
		return
	}
	match := fuzzyFilter(args[0])
	count := 0
	sh.showNets(sh.current, match, &count)
	sh.report("Displayed %d/%d matches.\n", minInt(count, sh.opts.SearchLimit), count)
}

// showNets recurses depth-first through instanceID's subcircuit tree,
// reporting every local net whose leaf name matches, the way ShowNets
// does (_examples/original_source/src/CCvcDb_interactive.cc lines
// 140-166).
func (sh *Shell) showNets(instanceID elaborate.InstanceID, match func(string) bool, count *int) {
	inst := sh.DB.Instances[instanceID]
	if inst.IsParallel() {
		return
	}
	for i, leaf := range inst.Master.NetNames {
		if !match(leaf) {
			continue
		}
		*count++
		if *count > sh.opts.SearchLimit {
			continue
		}
		global := inst.LocalToGlobalNetID[i]
		lower := sh.hierarchyName(instanceID) + sh.opts.HierarchyDelimiter + leaf
		top := sh.DB.NetName(sh.Index.EquivalentNet(global), sh.opts.HierarchyDelimiter)
		if lower != top {
			sh.report("%s -> %s\n", lower, top)
		} else {
			sh.report("%s\n", lower)
		}
	}
	for _, c := range sh.childrenOf(instanceID) {
		sh.showNets(c, match, count)
	}
}

func (sh *Shell) cmdListNet(args []string) {
	filter := ""
	if len(args) > 0 {
		filter = args[0]
	}
	match := fuzzyFilter(filter)
	inst := sh.DB.Instances[sh.current]
	if inst.IsParallel() {
		sh.printParallelInstance(sh.current)
		return
	}
	var ports, internals []string
	matchCount := 0
	for i, leaf := range inst.Master.NetNames {
		if !match(leaf) {
			continue
		}
		matchCount++
		line := leaf
		global := inst.LocalToGlobalNetID[i]
		if sh.printSubcircuitName {
			line += "(" + sh.DB.NetName(global, sh.opts.HierarchyDelimiter) + ")"
		}
		if i < inst.Master.PortCount {
			ports = append(ports, line)
		} else {
			internals = append(internals, line)
		}
	}
	sh.printSearchList("Ports:", ports, matchCount)
	sh.printSearchList("Internal nets:", internals, matchCount)
}

func (sh *Shell) printSearchList(header string, list []string, totalMatches int) {
	sh.report("%s\n", header)
	sort.Strings(list)
	limit := minInt(len(list), sh.opts.SearchLimit)
	for i := 0; i < limit; i++ {
		sh.report("%s\n", list[i])
	}
	sh.report("Displayed %d/%d matches\n", limit, totalMatches)
}

func (sh *Shell) cmdListDevice(args []string) {
	filter := ""
	if len(args) > 0 {
		filter = args[0]
	}
	match := fuzzyFilter(filter)
	inst := sh.DB.Instances[sh.current]
	if inst.IsParallel() {
		sh.printParallelInstance(sh.current)
		return
	}
	var list []string
	matchCount := 0
	for _, d := range inst.Master.Devices {
		if !match(d.Name) {
			continue
		}
		matchCount++
		line := d.Name
		if sh.printSubcircuitName {
			line += "(" + d.Param + ")"
		}
		if d.Model != nil {
			line += " " + d.Model.Definition
		}
		list = append(list, line)
	}
	sort.Strings(list)
	limit := minInt(len(list), sh.opts.SearchLimit)
	for i := 0; i < limit; i++ {
		sh.report("%s\n", list[i])
	}
	sh.report("Displayed %d/%d matches\n", limit, matchCount)
}

func (sh *Shell) cmdListInstance(args []string) {
	filter := ""
	if len(args) > 0 {
		filter = args[0]
	}
	match := fuzzyFilter(filter)
	inst := sh.DB.Instances[sh.current]
	if inst.IsParallel() {
		sh.printParallelInstance(sh.current)
		return
	}
	var list []string
	matchCount := 0
	for _, local := range inst.Master.Instances {
		if !match(local.Name) {
			continue
		}
		matchCount++
		line := local.Name
		if sh.printSubcircuitName {
			line += "(" + local.MasterName + ")"
		}
		list = append(list, line)
	}
	sort.Strings(list)
	limit := minInt(len(list), sh.opts.SearchLimit)
	for i := 0; i < limit; i++ {
		sh.report("%s\n", list[i])
	}
	sh.report("Displayed %d/%d matches\n", limit, matchCount)
}

func (sh *Shell) printParallelInstance(id elaborate.InstanceID) {
	inst := sh.DB.Instances[id]
	sh.report("Parallel Instance: %s\n", sh.hierarchyName(id))
	sh.report("Merged with canonical instance %d\n", inst.ParallelInstanceID)
}

// forEachCircuitName visits every subcircuit name in Lib, elaborated or
// not, along with how many elaborated instances use it, for the
// findsubcircuit regex path (CCvcDb::FindInstances's cvcCircuitList
// search branch).
func (sh *Shell) forEachCircuitName(fn func(name string, instanceCount int)) {
	counts := map[string]int{}
	for _, inst := range sh.DB.Instances {
		if inst.IsParallel() {
			continue
		}
		counts[inst.Master.Name] += inst.ParallelInstanceCount
	}
	sh.DB.Lib.Each(func(n string, _ *circuit.Def) {
		fn(n, counts[n])
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
