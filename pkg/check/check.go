// Package check implements the rule-checker family of spec.md §4.6: each
// checker walks a device or net population and emits a Finding when its
// predicate fires, with per-device reporting capped (but still tallied)
// against CircuitErrorLimit, mirroring the original's
// errorCount[...]++ / IncrementDeviceError gate.
package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/netindex"
	"github.com/donn/cvc/pkg/power"
	"github.com/donn/cvc/pkg/propagate"
	"github.com/donn/cvc/pkg/util"
	"github.com/donn/cvc/pkg/vnet"
)

// Category names one row of spec.md §4.6's checker table.
type Category string

const (
	FusePath        Category = "FUSE_PATH"
	MosDiodeConflict Category = "MOS_DIODE_CONFLICT"
	OvervoltageVBG  Category = "OVERVOLTAGE_VBG"
	OvervoltageVBS  Category = "OVERVOLTAGE_VBS"
	OvervoltageVDS  Category = "OVERVOLTAGE_VDS"
	OvervoltageVGS  Category = "OVERVOLTAGE_VGS"
	NmosGateSource  Category = "NMOS_GATE_SOURCE"
	PmosGateSource  Category = "PMOS_GATE_SOURCE"
	NmosSourceBulk  Category = "NMOS_SOURCE_BULK"
	PmosSourceBulk  Category = "PMOS_SOURCE_BULK"
	ForwardDiode    Category = "FORWARD_DIODE"
	NmosPossibleLeak Category = "NMOS_POSSIBLE_LEAK"
	PmosPossibleLeak Category = "PMOS_POSSIBLE_LEAK"
	HizInput        Category = "HIZ_INPUT"
	ExpectedVoltage Category = "EXPECTED_VOLTAGE"
	LddDirection    Category = "LDD_DIRECTION"
)

// Finding is one reported checker result.
type Finding struct {
	Category   Category
	Device     elaborate.DeviceID
	Instance   elaborate.InstanceID
	Headline   string
	LogicOK    bool // "(logic ok)" leak-only variant: sim voltages are fine, leak-path voltages are not
	Unrelated  bool // device's terminals span unrelated power families
}

// Options carries the rule checker's error thresholds (spec.md §4.6). It
// lives here, not in pkg/config, the same way pkg/propagate.Options keeps
// its own pass-level knobs; pkg/config fills it from flags/YAML through
// Config.CheckOptions rather than duplicating it.
type Options struct {
	HierarchyDelimiter string

	GateErrorThreshold     int32
	BiasErrorThreshold     int32
	ForwardErrorThreshold  int32
	LeakErrorThreshold     int32
	ExpectedErrorThreshold int32
	LeakLimit              float64
	CircuitErrorLimit      int

	LeakOvervoltage bool // report the "(logic ok)" leak-path variant of the four overvoltage checks
	MinVthGates     bool // exempt gate-vs-source differentials below Vth
	VthGates        bool // report (rather than suppress) exact gate-source = Vth differentials
	IgnoreVthFloating bool
}

// Checker runs the rule-checker family over one already-propagated Engine.
type Checker struct {
	eng    *propagate.Engine
	models *model.Library
	power  *power.Spec
	opts   Options

	deviceErrorCount map[elaborate.DeviceID]int
	counts           map[Category]int
	findings         []Finding
}

// New returns a Checker ready to run every category in spec.md §4.6's
// table against eng's (already-propagated) voltage state.
func New(eng *propagate.Engine, models *model.Library, powerSpec *power.Spec, opts Options) *Checker {
	if opts.HierarchyDelimiter == "" {
		opts.HierarchyDelimiter = "/"
	}
	return &Checker{
		eng:              eng,
		models:           models,
		power:            powerSpec,
		opts:             opts,
		deviceErrorCount: make(map[elaborate.DeviceID]int),
		counts:           make(map[Category]int),
	}
}

// Run executes every checker category and returns the accumulated
// findings, in the fixed order spec.md §4.6 lists them.
func (c *Checker) Run() []Finding {
	c.checkFusePath()
	c.checkMosDiodeConflict()
	c.checkOvervoltage(ovVBG, OvervoltageVBG)
	c.checkOvervoltage(ovVBS, OvervoltageVBS)
	c.checkOvervoltage(ovVDS, OvervoltageVDS)
	c.checkOvervoltage(ovVGS, OvervoltageVGS)
	c.checkGateVsSource(true)
	c.checkGateVsSource(false)
	c.checkSourceVsBulk(true)
	c.checkSourceVsBulk(false)
	c.checkForwardBiasedDiodes()
	c.checkPossibleLeak(true)
	c.checkPossibleLeak(false)
	c.checkFloatingInputs()
	c.checkExpectedValues()
	c.checkLDDDirection()
	return c.findings
}

// Counts reports, per category, the total number of times the predicate
// fired — including occurrences suppressed from Findings by
// CircuitErrorLimit, per spec.md §4.6's "total is still counted" rule.
func (c *Checker) Counts() map[Category]int { return c.counts }

// emit records one predicate firing: the per-category total always
// increments, but the device is only appended to Findings while its own
// running count does not exceed CircuitErrorLimit (0 disables the limit).
func (c *Checker) emit(cat Category, id elaborate.DeviceID, instID elaborate.InstanceID, headline string, logicOK bool) {
	c.counts[cat]++
	if c.opts.CircuitErrorLimit > 0 {
		c.deviceErrorCount[id]++
		if c.deviceErrorCount[id] > c.opts.CircuitErrorLimit {
			return
		}
	}
	c.findings = append(c.findings, Finding{Category: cat, Device: id, Instance: instID, Headline: headline, LogicOK: logicOK})
}

func (c *Checker) emitUnrelated(cat Category, id elaborate.DeviceID, instID elaborate.InstanceID) {
	c.counts[cat]++
	if c.opts.CircuitErrorLimit > 0 {
		c.deviceErrorCount[id]++
		if c.deviceErrorCount[id] > c.opts.CircuitErrorLimit {
			return
		}
	}
	c.findings = append(c.findings, Finding{Category: cat, Device: id, Instance: instID, Headline: "Unrelated power error", Unrelated: true})
}

// termInfo names one device terminal's resolved (resistor-short
// equivalent) net, or the absence of that terminal entirely (a
// two-terminal device has no gate/bulk).
type termInfo struct {
	net     elaborate.NetID
	present bool
}

// conn is this package's analogue of the original's CFullConnection: one
// device's four terminal nets (gate/source/drain/bulk for a MOS-shaped
// device, source/drain only — mapped onto the netindex TermA/TermB
// convention — for a two-terminal device), ready for the per-terminal
// voltage queries every checker predicate needs.
type conn struct {
	deviceID elaborate.DeviceID
	instID   elaborate.InstanceID
	model    *model.Model

	gate, source, drain, bulk termInfo
}

func (c *Checker) mapDevice(id elaborate.DeviceID) conn {
	instID := c.eng.DB.DeviceParent[id]
	inst, dev := c.eng.DB.DeviceAt(id)
	term := func(i int) termInfo {
		if i < 0 || i >= len(dev.Nets) {
			return termInfo{}
		}
		return termInfo{net: c.eng.Index.EquivalentNet(inst.LocalToGlobalNetID[dev.Nets[i]]), present: true}
	}
	cn := conn{deviceID: id, instID: instID, model: dev.Model}
	if dev.Model != nil && dev.Model.Type.IsMos() && len(dev.Nets) >= 4 {
		cn.drain = term(netindex.TermDrain)
		cn.gate = term(netindex.TermGate)
		cn.source = term(netindex.TermSource)
		cn.bulk = term(netindex.TermBulk)
	} else if len(dev.Nets) >= 2 {
		cn.source = term(netindex.TermA)
		cn.drain = term(netindex.TermB)
	}
	return cn
}

func (c *Checker) min(t termInfo) (int32, bool) {
	if !t.present {
		return 0, false
	}
	v := c.eng.Maps.MinVoltage(t.net)
	return v, v != vnet.UnknownVoltage
}

func (c *Checker) max(t termInfo) (int32, bool) {
	if !t.present {
		return 0, false
	}
	v := c.eng.Maps.MaxVoltage(t.net)
	return v, v != vnet.UnknownVoltage
}

func (c *Checker) sim(t termInfo) (int32, bool) {
	if !t.present {
		return 0, false
	}
	if !c.eng.Maps.HasSimVoltage(t.net) {
		return 0, false
	}
	return c.eng.Maps.SimVoltage(t.net), true
}

func (c *Checker) minLeak(t termInfo) (int32, bool) {
	if !t.present {
		return 0, false
	}
	v := c.eng.Maps.MinLeakVoltage(t.net)
	return v, v != vnet.UnknownVoltage
}

func (c *Checker) maxLeak(t termInfo) (int32, bool) {
	if !t.present {
		return 0, false
	}
	v := c.eng.Maps.MaxLeakVoltage(t.net)
	return v, v != vnet.UnknownVoltage
}

// declaration resolves t's driving power declaration under kind: the
// declaration attached to the name of the net that kind's virtual-net map
// says ultimately drives t, the same net the original's
// masterMinGateNet.finalNetId (etc.) names.
func (c *Checker) declaration(kind vnet.Kind, t termInfo) *power.Declaration {
	if !t.present {
		return nil
	}
	final := c.eng.Maps.FinalNet(kind, t.net)
	name := c.eng.DB.NetName(final, c.opts.HierarchyDelimiter)
	return c.power.FindForNet(name)
}

// related reports whether a and b are relatives (same power family), the
// "unrelated power" suppression spec.md §4.6 describes for the gate-vs-
// source and source-vs-bulk checkers. An unknown (nil) declaration on
// either side is never treated as unrelated — there is nothing to compare.
func (c *Checker) related(a, b *power.Declaration) bool {
	if a == nil || b == nil {
		return true
	}
	return c.power.AreRelatives(c.power.IndexOf(a), c.power.IndexOf(b))
}

// anyDeclaration resolves whatever power declaration is reachable for t,
// trying the max, then min, then sim virtual-net map in turn — the
// simplified stand-in for the original's full masterMinGateNet/
// masterMaxGateNet/masterSimGateNet bookkeeping, sufficient for the
// "unrelated power family" suppression every checker below uses it for.
func (c *Checker) anyDeclaration(t termInfo) *power.Declaration {
	if d := c.declaration(vnet.Max, t); d != nil {
		return d
	}
	if d := c.declaration(vnet.Min, t); d != nil {
		return d
	}
	return c.declaration(vnet.Sim, t)
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func formatVoltage(mv int32) string {
	return util.FormatMillivolts(mv)
}
