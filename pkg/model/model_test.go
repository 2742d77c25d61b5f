package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeIsMos(t *testing.T) {
	for _, typ := range []Type{NMOS, PMOS, LDDN, LDDP} {
		assert.True(t, typ.IsMos(), "%v should be a MOS type", typ)
	}
	assert.False(t, Diode.IsMos(), "diode should not be a MOS type")
}

func TestIsNType(t *testing.T) {
	assert.True(t, NMOS.IsNType())
	assert.True(t, LDDN.IsNType())
	assert.False(t, PMOS.IsNType())
	assert.False(t, LDDP.IsNType())
}

func TestResistanceExpression(t *testing.T) {
	m := &Model{Name: "short_res", ResistanceDefinition: "1.0"}
	r, err := m.Resistance(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)
}

func TestResistanceExpressionWithEnv(t *testing.T) {
	m := &Model{Name: "r_over_square", ResistanceDefinition: "squares * sheet"}
	env := map[string]interface{}{"squares": 4.0, "sheet": 125.0}
	r, err := m.Resistance(env)
	require.NoError(t, err)
	assert.Equal(t, 500.0, r)
}

func TestLibraryAllIsSorted(t *testing.T) {
	lib := NewLibrary()
	lib.Add("nmos_hv", &Model{Name: "nmos_hv", Type: NMOS})
	lib.Add("nmos_lv", &Model{Name: "nmos_lv", Type: NMOS})
	var order []string
	lib.All(func(key string, m *Model) {
		order = append(order, key)
	})
	assert.Equal(t, []string{"nmos_hv", "nmos_lv"}, order)
}

func TestIsShort(t *testing.T) {
	m := &Model{Type: Resistor, BaseType: "short"}
	assert.True(t, m.IsShort(), "expected resistor marked short to report IsShort")
	m2 := &Model{Type: Resistor, BaseType: "res"}
	assert.False(t, m2.IsShort(), "unmarked resistor should not be short")
}
