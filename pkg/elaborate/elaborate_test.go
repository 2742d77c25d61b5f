package elaborate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/circuit"
)

func buildLibrary(t *testing.T) *circuit.Library {
	t.Helper()
	lib := circuit.NewLibrary()

	inv := circuit.NewDef("INV")
	require.NoError(t, inv.AddPorts([]string{"IN", "OUT", "VDD", "VSS"}))
	mid := inv.InternalNetID("MID")
	require.NoError(t, inv.AddDevice(circuit.Device{Name: "MP1", Nets: []circuit.NetID{0, 2, mid, 2}}))
	require.NoError(t, inv.AddDevice(circuit.Device{Name: "MN1", Nets: []circuit.NetID{0, 3, mid, 3}}))
	lib.Add(inv)

	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	a := top.InternalNetID("A")
	b := top.InternalNetID("B")
	c := top.InternalNetID("C")
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X1", MasterName: "INV", Nets: []circuit.NetID{a, b, 0, 1}}))
	// X2 has the exact same actual nets as X1 -> should collapse as parallel.
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X2", MasterName: "INV", Nets: []circuit.NetID{a, b, 0, 1}}))
	// X3 has a different output net -> stays canonical on its own.
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X3", MasterName: "INV", Nets: []circuit.NetID{b, c, 0, 1}}))
	lib.Add(top)

	return lib
}

func TestElaborateFlattensNetsAndDevices(t *testing.T) {
	lib := buildLibrary(t)
	db, err := Elaborate(lib, "TOP", 4)
	require.NoError(t, err)

	// top(2 nets) + X1(2 internal: IN/OUT reused as A/B, MID) ... top owns
	// VDD,VSS,A,B,C (5) plus each canonical INV contributes 1 internal net (MID).
	assert.Equal(t, NetID(5+2), db.NetCount, "expected 5 top + 2 canonical MIDs")

	// 4 instances total: top, X1, X2, X3.
	require.Len(t, db.Instances, 4)

	x1, x2, x3 := db.Instances[1], db.Instances[2], db.Instances[3]
	assert.False(t, x1.IsParallel(), "X1 should be canonical")
	assert.True(t, x2.IsParallel(), "X2 should collapse into X1")
	assert.EqualValues(t, 1, x2.ParallelInstanceID)
	assert.False(t, x3.IsParallel(), "X3 differs from X1/X2 in its actual nets and must stay canonical")
	assert.Equal(t, 2, x1.ParallelInstanceCount)

	// X2 contributes no devices or nets of its own: its net map is the
	// same slice as its canonical twin X1's, borrowed rather than
	// allocated, so descending into X2's own children (if INV had any)
	// would still resolve real net ids instead of indexing a nil map.
	assert.EqualValues(t, 0, x2.FirstDeviceID, "parallel instance should not own devices")
	require.Equal(t, len(x1.LocalToGlobalNetID), len(x2.LocalToGlobalNetID), "parallel instance should borrow its twin's net map")
	assert.Equal(t, x1.LocalToGlobalNetID, x2.LocalToGlobalNetID, "parallel instance's net map should match its twin's")
}

// TestElaborateParallelInstanceWithNestedSubinstances exercises a
// parallel instance whose master itself instantiates a further
// subcircuit (two collapsed copies of a standard-cell-like group, each
// wrapping an INV): elaborateChild must resolve the wrapped INV's
// actual nets through the parallel CELL instance's borrowed net map
// instead of indexing a nil LocalToGlobalNetID.
func TestElaborateParallelInstanceWithNestedSubinstances(t *testing.T) {
	lib := circuit.NewLibrary()

	inv := circuit.NewDef("INV")
	require.NoError(t, inv.AddPorts([]string{"IN", "OUT", "VDD", "VSS"}))
	mid := inv.InternalNetID("MID")
	require.NoError(t, inv.AddDevice(circuit.Device{Name: "MP1", Nets: []circuit.NetID{0, 2, mid, 2}}))
	require.NoError(t, inv.AddDevice(circuit.Device{Name: "MN1", Nets: []circuit.NetID{0, 3, mid, 3}}))
	lib.Add(inv)

	cell := circuit.NewDef("CELL")
	require.NoError(t, cell.AddPorts([]string{"A", "B", "VDD", "VSS"}))
	require.NoError(t, cell.AddInstance(circuit.Instance{Name: "U1", MasterName: "INV", Nets: []circuit.NetID{0, 1, 2, 3}}))
	lib.Add(cell)

	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	a := top.InternalNetID("A")
	b := top.InternalNetID("B")
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X1", MasterName: "CELL", Nets: []circuit.NetID{a, b, 0, 1}}))
	// X2 is an exact duplicate of X1 -> collapses as parallel, cascading
	// the collapse down into its own U1 child.
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X2", MasterName: "CELL", Nets: []circuit.NetID{a, b, 0, 1}}))
	lib.Add(top)

	db, err := Elaborate(lib, "TOP", 4)
	require.NoError(t, err)

	var x1, x2 *Instance
	for _, inst := range db.Instances {
		switch inst.Name {
		case "X1":
			x1 = inst
		case "X2":
			x2 = inst
		}
	}
	require.NotNil(t, x1)
	require.NotNil(t, x2)
	assert.True(t, x2.IsParallel(), "X2 should collapse into X1")

	var x1U1, x2U1 *Instance
	for _, inst := range db.Instances {
		if inst.Name != "U1" {
			continue
		}
		if inst.ParentID == 1 {
			x1U1 = inst
		}
		if canonicalOf(db, inst.ParentID) == InstanceID(1) && inst.ParentID != 1 {
			x2U1 = inst
		}
	}
	require.NotNil(t, x1U1, "expected a U1 child under X1")
	require.NotNil(t, x2U1, "expected a U1 child under X2")
	assert.True(t, x2U1.IsParallel(), "X2's U1 should also collapse, cascaded from X2's own collapse")
	require.Equal(t, len(x1U1.LocalToGlobalNetID), len(x2U1.LocalToGlobalNetID), "X2's U1 should borrow X1's U1 net map")
	assert.Equal(t, x1U1.LocalToGlobalNetID, x2U1.LocalToGlobalNetID)
}

func TestElaborateUnresolvedSubcircuit(t *testing.T) {
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X1", MasterName: "MISSING", Nets: []circuit.NetID{0, 1}}))
	lib.Add(top)

	_, err := Elaborate(lib, "TOP", 4)
	require.Error(t, err)
	assert.IsType(t, &UnresolvedSubcircuitError{}, err)
}

func TestElaboratePortCountMismatch(t *testing.T) {
	lib := circuit.NewLibrary()
	inv := circuit.NewDef("INV")
	require.NoError(t, inv.AddPorts([]string{"IN", "OUT", "VDD", "VSS"}))
	lib.Add(inv)

	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X1", MasterName: "INV", Nets: []circuit.NetID{0, 1}}))
	lib.Add(top)

	_, err := Elaborate(lib, "TOP", 4)
	require.Error(t, err)
	assert.IsType(t, &PortCountMismatchError{}, err)
}

func TestGlobalNetRejectsParallelInstance(t *testing.T) {
	lib := buildLibrary(t)
	db, err := Elaborate(lib, "TOP", 4)
	require.NoError(t, err)

	_, err = db.GlobalNet(2, 0)
	assert.ErrorIs(t, err, ErrParallelInstanceMutation)

	_, err = db.GlobalNet(1, 0)
	assert.NoError(t, err, "canonical instance should resolve fine")
}

func TestDeviceAtResolvesOwningInstance(t *testing.T) {
	lib := buildLibrary(t)
	db, err := Elaborate(lib, "TOP", 4)
	require.NoError(t, err)

	inst, dev := db.DeviceAt(0)
	assert.Equal(t, "INV", inst.Master.Name, "expected device 0 to be X1's")
	assert.Equal(t, "MP1", dev.Name)
}

func TestNetNameAndInstancePath(t *testing.T) {
	lib := buildLibrary(t)
	db, err := Elaborate(lib, "TOP", 4)
	require.NoError(t, err)

	assert.Equal(t, "VDD", db.NetName(0, "/"), "expected top-level port to be named VDD")
	assert.Equal(t, "X1", db.InstancePath(1, "/"))
	// Net id 5 is X1's internal MID net (top owns 0..4: VDD,VSS,A,B,C).
	assert.Equal(t, "X1/MID", db.NetName(5, "/"))
}
