package modelfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/model"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.cvcrc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileBuildsMosModelWithLimits(t *testing.T) {
	path := writeTemp(t, `# core logic devices
nmos: type=NMOS Vth=0.4 Vds=1.98 Vgs=1.98 Vbs=1.98 Vbg=1.98
pmos: type=PMOS Vth=-0.4 Vds=1.98 Vgs=1.98
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	require.NoError(t, p.ParseFile(path))

	n := lib.Find("nmos")
	require.NotNil(t, n)
	assert.Equal(t, model.NMOS, n.Type)
	require.True(t, n.Vth.IsSet())
	assert.EqualValues(t, 400, n.Vth.Voltage)
	require.True(t, n.MaxVds.IsSet())
	assert.EqualValues(t, 1980, n.MaxVds.Voltage)

	p2 := lib.Find("pmos")
	require.NotNil(t, p2)
	assert.Equal(t, model.PMOS, p2.Type)
	assert.EqualValues(t, -400, p2.Vth.Voltage)
}

func TestParseFileAccumulatesConditionsAndResistance(t *testing.T) {
	path := writeTemp(t, `rpoly: type=RESISTOR resistance=length/width*210 condition=layer=poly condition=length<10u
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	require.NoError(t, p.ParseFile(path))

	m := lib.Find("rpoly")
	require.NotNil(t, m)
	assert.Equal(t, "length/width*210", m.ResistanceDefinition)
	assert.Len(t, m.Conditions, 2)
}

func TestParseFileSetsBaseTypeForShortedResistor(t *testing.T) {
	path := writeTemp(t, `rshort: type=RESISTOR basetype=short
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	require.NoError(t, p.ParseFile(path))

	m := lib.Find("rshort")
	require.NotNil(t, m)
	assert.True(t, m.IsShort())
}

func TestParseFileSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeTemp(t, `# leading comment

nmos: type=NMOS Vth=0.4
# trailing comment
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	require.NoError(t, p.ParseFile(path))

	count := 0
	lib.All(func(string, *model.Model) { count++ })
	assert.Equal(t, 1, count)
}

func TestParseFileRejectsUnrecognizedType(t *testing.T) {
	path := writeTemp(t, `weird: type=FROBNICATOR
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	assert.Error(t, p.ParseFile(path), "expected an error for an unrecognized type token")
}

func TestParseFileWarnsOnUnknownField(t *testing.T) {
	path := writeTemp(t, `nmos: type=NMOS bogus=1
`)
	lib := model.NewLibrary()
	p := NewParser(lib)
	require.NoError(t, p.ParseFile(path))
	assert.Len(t, p.Warnings, 1)
}
