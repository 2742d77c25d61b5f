package netindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

func buildDB(t *testing.T) *elaborate.Database {
	t.Helper()
	lib := circuit.NewLibrary()
	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	out := top.InternalNetID("OUT")
	mid := top.InternalNetID("MID") // shorted to OUT via a resistor

	nmos := &model.Model{Name: "nmos", Type: model.NMOS, BaseType: "res"}
	shortRes := &model.Model{Name: "short_res", Type: model.Resistor, BaseType: "short"}

	// M1: D=OUT G=VDD S=VSS B=VSS (drain, gate, source, bulk order)
	require.NoError(t, top.AddDevice(circuit.Device{Name: "M1", Model: nmos, Nets: []circuit.NetID{out, 0, 1, 1}}))
	// R1 shorts OUT and MID.
	require.NoError(t, top.AddDevice(circuit.Device{Name: "R1", Model: shortRes, Nets: []circuit.NetID{out, mid}}))
	lib.Add(top)

	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	return db
}

func TestShortUnionMakesNetsEquivalent(t *testing.T) {
	db := buildDB(t)
	idx := Build(db)

	out := elaborate.NetID(2) // VDD=0, VSS=1, OUT=2, MID=3
	mid := elaborate.NetID(3)
	assert.Equal(t, idx.EquivalentNet(out), idx.EquivalentNet(mid), "OUT and MID should be equivalent after the resistor short")

	// Idempotence (spec.md §8).
	rep := idx.EquivalentNet(out)
	assert.Equal(t, rep, idx.EquivalentNet(rep), "EquivalentNet should be idempotent")
}

func TestFanOutCountsAttachToRepresentative(t *testing.T) {
	db := buildDB(t)
	idx := Build(db)

	vdd := elaborate.NetID(0)
	vss := elaborate.NetID(1)
	mid := elaborate.NetID(3) // equivalent to OUT, which is M1's drain

	assert.Equal(t, 1, idx.GateCount(vdd))
	assert.Equal(t, 1, idx.SourceCount(vss))
	// MID is the short partner of OUT (M1's drain); counts must be visible
	// from either member of the equivalence class since only the
	// representative is indexed.
	assert.Equal(t, 1, idx.DrainCount(mid), "MID (==OUT) should drain 1 device")
}
