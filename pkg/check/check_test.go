package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/netindex"
	"github.com/donn/cvc/pkg/power"
	"github.com/donn/cvc/pkg/propagate"
)

func netID(t *testing.T, db *elaborate.Database, name string) elaborate.NetID {
	t.Helper()
	for n := elaborate.NetID(0); n < db.NetCount; n++ {
		if db.NetName(n, "/") == name {
			return n
		}
	}
	t.Fatalf("no net named %s", name)
	return 0
}

func findingsIn(findings []Finding, cat Category) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

// buildNmosCircuit builds a single 4-terminal NMOS device M1 with
// Drain=OUT Gate=GATE Source=VSS Bulk=VSS, and nothing else attached, so
// every checker test below can position voltages on exactly the nets it
// cares about without interference.
func buildNmosCircuit(t *testing.T, m *model.Model) (*elaborate.Database, *netindex.Index) {
	t.Helper()
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	gate := top.InternalNetID("GATE")
	out := top.InternalNetID("OUT")
	require.NoError(t, top.AddDevice(circuit.Device{Name: "M1", Model: m, Nets: []circuit.NetID{out, gate, 1, 1}}))
	lib.Add(top)
	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	return db, netindex.Build(db)
}

func newEngine(db *elaborate.Database, idx *netindex.Index, spec *power.Spec) *propagate.Engine {
	if spec == nil {
		spec = power.NewSpec()
	}
	return propagate.New(db, idx, spec, propagate.Options{})
}

func TestCheckOvervoltageVgsFlagsExcessiveGateSourceDifferential(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS, MaxVgs: model.Limit{Definition: "1.5", Voltage: 1500}}
	db, idx := buildNmosCircuit(t, nmos)
	eng := newEngine(db, idx, nil)
	eng.Maps.SetMinVoltage(netID(t, db, "GATE"), -2000)
	eng.Maps.SetMaxVoltage(netID(t, db, "VSS"), 0)

	c := New(eng, modelLibraryOf(nmos), power.NewSpec(), Options{})
	findings := c.Run()

	got := findingsIn(findings, OvervoltageVGS)
	assert.Len(t, got, 1, "expected 1 Vgs overvoltage finding, got %+v", findings)
}

func TestCheckOvervoltageVdsPumpingCapacitorExemption(t *testing.T) {
	coupler := &model.Model{Name: "coupler", Type: model.Capacitor, MaxVds: model.Limit{Definition: "1.0", Voltage: 1000}}
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	a := top.InternalNetID("A")
	b := top.InternalNetID("B")
	require.NoError(t, top.AddDevice(circuit.Device{Name: "C1", Model: coupler, Nets: []circuit.NetID{a, b}}))
	// seed both nets from the supplies so the capacitor's terminal nets
	// actually see a propagation event and register as a pumped pair.
	pullup := &model.Model{Name: "pullup", Type: model.Resistor, ResistanceDefinition: "1000"}
	require.NoError(t, top.AddDevice(circuit.Device{Name: "R1", Model: pullup, Nets: []circuit.NetID{0, a}}))
	pulldown := &model.Model{Name: "pulldown", Type: model.Resistor, ResistanceDefinition: "1000"}
	require.NoError(t, top.AddDevice(circuit.Device{Name: "R2", Model: pulldown, Nets: []circuit.NetID{1, b}}))
	lib.Add(top)
	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	idx := netindex.Build(db)
	spec := power.NewSpec()
	spec.Add(&power.Declaration{Pattern: "VDD", Kind: power.Power, HasMin: true, Min: power.Value{Literal: true, Millivolts: 1800}, HasMax: true, Max: power.Value{Literal: true, Millivolts: 1800}})
	spec.Add(&power.Declaration{Pattern: "VSS", Kind: power.Power, HasMin: true, Min: power.Value{Literal: true, Millivolts: 0}, HasMax: true, Max: power.Value{Literal: true, Millivolts: 0}})

	eng := propagate.New(db, idx, spec, propagate.Options{})
	require.NoError(t, eng.Run(context.Background()))

	aID, bID := netID(t, db, "A"), netID(t, db, "B")
	require.True(t, eng.IsPumped(aID, bID), "expected A/B to be recorded as a pumped pair")

	// Craft the exempted case: cross (min-max) swing exceeds the limit,
	// but both min-min and max-max track within it.
	eng.Maps.SetMinVoltage(aID, 0)
	eng.Maps.SetMaxVoltage(aID, 500)
	eng.Maps.SetMinVoltage(bID, 0)
	eng.Maps.SetMaxVoltage(bID, 500)
	// minA(0) vs maxB(500): within. maxA(500) vs minB(0): within. No cross
	// violation at all in this configuration, so make minA very negative to
	// force a cross violation while keeping min-min/max-max tracking.
	eng.Maps.SetMinVoltage(aID, -2000)
	eng.Maps.SetMinVoltage(bID, -2000)

	lib2 := model.NewLibrary()
	lib2.Add("coupler", coupler)
	c := New(eng, lib2, spec, Options{})
	findings := c.Run()
	assert.Empty(t, findingsIn(findings, OvervoltageVDS), "expected the pumping capacitor exemption to suppress the Vds finding")

	// Now break the exemption: max no longer tracks between the two
	// terminals, so the cross violation must be reported.
	eng.Maps.SetMaxVoltage(bID, 5000)
	findings = c.Run()
	assert.Len(t, findingsIn(findings, OvervoltageVDS), 1, "expected 1 Vds overvoltage finding once min-min/max-max stop tracking")
}

func modelLibraryOf(models ...*model.Model) *model.Library {
	lib := model.NewLibrary()
	for _, m := range models {
		lib.Add(m.Name, m)
	}
	return lib
}

func TestCheckGateVsSourceUnrelatedPowerFlagsUnconditionally(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS}
	db, idx := buildNmosCircuit(t, nmos)
	spec := power.NewSpec()
	spec.Add(&power.Declaration{Pattern: "GATE", FamilyID: 1, Kind: power.Power})
	spec.Add(&power.Declaration{Pattern: "VSS", FamilyID: 2, Kind: power.Power})
	eng := newEngine(db, idx, spec)

	c := New(eng, modelLibraryOf(nmos), spec, Options{})
	findings := c.Run()

	got := findingsIn(findings, NmosGateSource)
	require.Len(t, got, 1, "expected 1 unrelated-power NmosGateSource finding, got %+v", got)
	assert.True(t, got[0].Unrelated)
}

func TestCheckFloatingInputFlagsGateWithNoLeakPath(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS}
	db, idx := buildNmosCircuit(t, nmos)
	eng := newEngine(db, idx, nil)

	c := New(eng, modelLibraryOf(nmos), power.NewSpec(), Options{})
	findings := c.Run()

	got := findingsIn(findings, HizInput)
	assert.Len(t, got, 1, "expected 1 floating-input finding on GATE, got %+v", findings)
}

func TestCheckFloatingInputSkipsDeclaredInput(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS}
	db, idx := buildNmosCircuit(t, nmos)
	spec := power.NewSpec()
	spec.Add(&power.Declaration{Pattern: "GATE", Kind: power.Input})
	eng := newEngine(db, idx, spec)

	c := New(eng, modelLibraryOf(nmos), spec, Options{})
	findings := c.Run()

	assert.Empty(t, findingsIn(findings, HizInput), "expected a declared input net not to be flagged as floating")
}

func TestCheckExpectedValuesFlagsSimMismatch(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS}
	db, idx := buildNmosCircuit(t, nmos)
	spec := power.NewSpec()
	spec.Add(&power.Declaration{
		Pattern: "OUT", Kind: power.Expected,
		Expected: power.ExpectedTriplet{HasSim: true, Sim: power.Value{Literal: true, Millivolts: 900}},
	})
	eng := newEngine(db, idx, spec)
	eng.Maps.SetSimVoltage(netID(t, db, "OUT"), 1200)

	c := New(eng, modelLibraryOf(nmos), spec, Options{ExpectedErrorThreshold: 0})
	findings := c.Run()

	got := findingsIn(findings, ExpectedVoltage)
	assert.Len(t, got, 1, "expected 1 expected-voltage mismatch, got %+v", findings)
}

func TestCheckExpectedValuesAcceptsWithinTolerance(t *testing.T) {
	nmos := &model.Model{Name: "nmos", Type: model.NMOS}
	db, idx := buildNmosCircuit(t, nmos)
	spec := power.NewSpec()
	spec.Add(&power.Declaration{
		Pattern: "OUT", Kind: power.Expected,
		Expected: power.ExpectedTriplet{HasSim: true, Sim: power.Value{Literal: true, Millivolts: 900}},
	})
	eng := newEngine(db, idx, spec)
	eng.Maps.SetSimVoltage(netID(t, db, "OUT"), 950)

	c := New(eng, modelLibraryOf(nmos), spec, Options{ExpectedErrorThreshold: 100})
	findings := c.Run()

	assert.Empty(t, findingsIn(findings, ExpectedVoltage), "expected a within-tolerance sim voltage not to be flagged")
}

func buildLddCircuit(t *testing.T, m *model.Model) (*elaborate.Database, *netindex.Index) {
	t.Helper()
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	gate := top.InternalNetID("GATE")
	source := top.InternalNetID("SRC")
	drain := top.InternalNetID("DRN")
	require.NoError(t, top.AddDevice(circuit.Device{Name: "M1", Model: m, Nets: []circuit.NetID{drain, gate, source, 1}}))
	lib.Add(top)
	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	return db, netindex.Build(db)
}

func TestCheckLDDDirectionFlagsBackwardsWiring(t *testing.T) {
	lddn := &model.Model{Name: "lddn", Type: model.LDDN}
	db, idx := buildLddCircuit(t, lddn)
	eng := newEngine(db, idx, nil)
	eng.Maps.SetMaxVoltage(netID(t, db, "SRC"), 1000)
	eng.Maps.SetMinVoltage(netID(t, db, "DRN"), 200)

	c := New(eng, modelLibraryOf(lddn), power.NewSpec(), Options{})
	findings := c.Run()

	got := findingsIn(findings, LddDirection)
	assert.Len(t, got, 1, "expected 1 LDD direction finding, got %+v", findings)
}

func TestCheckLDDDirectionSkipsWhenGateGuaranteesOff(t *testing.T) {
	lddn := &model.Model{Name: "lddn", Type: model.LDDN}
	db, idx := buildLddCircuit(t, lddn)
	eng := newEngine(db, idx, nil)
	eng.Maps.SetMaxVoltage(netID(t, db, "SRC"), 1000)
	eng.Maps.SetMinVoltage(netID(t, db, "DRN"), 200)
	eng.Maps.SetMinVoltage(netID(t, db, "SRC"), -500)
	eng.Maps.SetSimVoltage(netID(t, db, "GATE"), -500)

	c := New(eng, modelLibraryOf(lddn), power.NewSpec(), Options{})
	findings := c.Run()

	assert.Empty(t, findingsIn(findings, LddDirection), "expected the gate-off guarantee to suppress the LDD finding")
}

func buildTwoTerminalCircuit(t *testing.T, m *model.Model) (*elaborate.Database, *netindex.Index) {
	t.Helper()
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	mid := top.InternalNetID("MID")
	require.NoError(t, top.AddDevice(circuit.Device{Name: "F1", Model: m, Nets: []circuit.NetID{0, mid}}))
	lib.Add(top)
	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	return db, netindex.Build(db)
}

func TestCheckFusePathFlagsBlownFuseStillConnected(t *testing.T) {
	fuseOff := &model.Model{Name: "fuseoff", Type: model.FuseOff}
	db, idx := buildTwoTerminalCircuit(t, fuseOff)
	eng := newEngine(db, idx, nil)
	eng.Maps.SetSimVoltage(netID(t, db, "VDD"), 1800)
	eng.Maps.SetSimVoltage(netID(t, db, "MID"), 1800)

	c := New(eng, modelLibraryOf(fuseOff), power.NewSpec(), Options{})
	findings := c.Run()

	got := findingsIn(findings, FusePath)
	assert.Len(t, got, 1, "expected 1 fuse-path finding for a blown fuse that still reads connected, got %+v", findings)
}

func TestCircuitErrorLimitSuppressesButStillCounts(t *testing.T) {
	eng := &propagate.Engine{}
	c := New(eng, model.NewLibrary(), power.NewSpec(), Options{CircuitErrorLimit: 2})
	for i := 0; i < 5; i++ {
		c.emit(FusePath, elaborate.DeviceID(7), elaborate.InstanceID(0), "synthetic", false)
	}
	assert.Equal(t, 5, c.Counts()[FusePath], "expected the total count to keep incrementing past the limit")
	assert.Len(t, findingsIn(c.findings, FusePath), 2, "expected only 2 findings to survive the CircuitErrorLimit cap")
}
