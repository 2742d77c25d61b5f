package fusefile

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
	path := filepath.Join(t.TempDir(), "fuses.cvcrc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileCollectsOverrides(t *testing.T) {
	path := writeTemp(t, `# trim config
X1/F1 fuse_off
X1/F2 fuse_on
`)
	p := NewParser()
	require.NoError(t, p.ParseFile(path))
	require.Len(t, p.Overrides, 2)
	assert.False(t, p.Overrides[0].FuseOn, "expected F1 override to be fuse_off")
	assert.True(t, p.Overrides[1].FuseOn, "expected F2 override to be fuse_on")
}

func TestParseFileWarnsOnMalformedLine(t *testing.T) {
	path := writeTemp(t, `X1/F1 fuse_maybe
X1/F2
`)
	p := NewParser()
	require.NoError(t, p.ParseFile(path))
	assert.Empty(t, p.Overrides)
	assert.Len(t, p.Warnings, 2)
}

func TestApplyFlipsFuseModelType(t *testing.T) {
	m := &model.Model{Name: "F1", Type: model.FuseOn}
	p := &Parser{Overrides: []Override{{DeviceName: "X1/F1", FuseOn: false}}}

	applied := p.Apply(func(name string) (*model.Model, bool) {
		if name == "X1/F1" {
			return m, true
		}
		return nil, false
	})
	assert.Equal(t, 1, applied)
	assert.Equal(t, model.FuseOff, m.Type, "expected model type flipped to FuseOff")
}

func TestApplyWarnsOnNonFuseDeviceAndLeavesTypeUnchanged(t *testing.T) {
	m := &model.Model{Name: "MN1", Type: model.NMOS}
	p := &Parser{Overrides: []Override{{DeviceName: "X1/MN1", FuseOn: true}}}

	applied := p.Apply(func(name string) (*model.Model, bool) {
		return m, true
	})
	assert.Equal(t, 0, applied)
	assert.Equal(t, model.NMOS, m.Type, "expected model type to stay NMOS")
	assert.Len(t, p.Warnings, 1)
}

func TestApplyWarnsWhenDeviceNotFound(t *testing.T) {
	p := &Parser{Overrides: []Override{{DeviceName: "X1/MISSING", FuseOn: true}}}
	applied := p.Apply(func(name string) (*model.Model, bool) { return nil, false })
	assert.Equal(t, 0, applied)
	assert.Len(t, p.Warnings, 1)
}
