package netlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/circuit"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileBuildsSubcircuitAndTopInstance(t *testing.T) {
	dir := t.TempDir()
	deck := `* inverter test deck
.subckt INV IN OUT VDD VSS
MP1 OUT IN VDD VDD pmos l=0.18u w=1u
MN1 OUT IN VSS VSS nmos l=0.18u w=0.5u
.ends INV

X1 A Z VDD VSS INV
`
	path := writeTemp(t, dir, "inv.cdl", deck)

	lib := circuit.NewLibrary()
	p := NewParser(lib, "TOP")
	require.NoError(t, p.ParseFile(path))
	p.Finish()

	inv := lib.Find("INV")
	require.NotNil(t, inv, "expected INV to be parsed")
	assert.Equal(t, 4, inv.PortCount)
	require.Len(t, inv.Devices, 2)
	assert.Equal(t, "pmos", inv.Devices[0].ModelKey)
	assert.Equal(t, "nmos", inv.Devices[1].ModelKey)

	top := lib.Find("TOP")
	require.NotNil(t, top, "expected TOP to be parsed")
	require.Len(t, top.Instances, 1)
	assert.Equal(t, "INV", top.Instances[0].MasterName)
}

func TestParseFileHandlesIncludeAndContinuationLines(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "leaf.cdl", `.subckt LEAF A B
R1 A B
+ rpoly
.ends LEAF
`)
	top := `* top deck
.include leaf.cdl
X1 P Q LEAF
`
	path := writeTemp(t, dir, "top.cdl", top)

	lib := circuit.NewLibrary()
	p := NewParser(lib, "TOP")
	require.NoError(t, p.ParseFile(path))
	p.Finish()

	leaf := lib.Find("LEAF")
	require.NotNil(t, leaf, "expected LEAF to be parsed via .include")
	require.Len(t, leaf.Devices, 1)
	assert.Equal(t, "rpoly", leaf.Devices[0].ModelKey, "expected the continuation line to merge into R1's model field")
}

func TestParseFileDecomposesBjtIntoDiodePair(t *testing.T) {
	dir := t.TempDir()
	deck := `* bjt test
Q1 COL BASE EMIT npn_model
`
	path := writeTemp(t, dir, "bjt.cdl", deck)

	lib := circuit.NewLibrary()
	p := NewParser(lib, "TOP")
	require.NoError(t, p.ParseFile(path))
	p.Finish()

	top := lib.Find("TOP")
	require.NotNil(t, top)
	require.Len(t, top.Devices, 2, "expected Q1 to decompose into 2 diode devices")
	for _, d := range top.Devices {
		assert.Equal(t, "npn_model", d.ModelKey, "expected both halves to keep the BJT's model key")
	}
}

func TestParseFileWarnsOnUnknownStatement(t *testing.T) {
	dir := t.TempDir()
	deck := `* deck with a stray directive
.option relv=1e-3
X1 A B LEAF
`
	path := writeTemp(t, dir, "warn.cdl", deck)

	lib := circuit.NewLibrary()
	p := NewParser(lib, "TOP")
	require.NoError(t, p.ParseFile(path))
	p.Finish()

	assert.Len(t, p.Warnings, 1, "expected exactly one warning for the .option card")
}

func TestParseValueParsesEngineeringUnits(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"kilo", "1k", 1000},
		{"micro", "0.18u", 1.8e-7},
		{"bare", "5", 5},
		{"mega", "2.5meg", 2.5e6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseValue(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
