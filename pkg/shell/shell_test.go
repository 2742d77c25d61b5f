package shell

import (
	"bytes"
	"context"
	"io"
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

// scriptSource replays a fixed list of lines, then reports io.EOF —
// the test double standing in for an interactive terminal or a
// sourced file.
type scriptSource struct {
	lines  []string
	pos    int
	closed bool
}

func (s *scriptSource) Prompt(string) (string, error) {
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

func (s *scriptSource) Close() error { s.closed = true; return nil }

// buildHierarchy builds TOP containing one instance X1 of LEAF (an
// inverter-shaped pair of NMOS/PMOS devices), so navigation, search,
// and listing commands all have something nontrivial to walk.
func buildHierarchy(t *testing.T) (*elaborate.Database, *netindex.Index) {
	t.Helper()
	lib := circuit.NewLibrary()

	leaf := circuit.NewDef("LEAF")
	require.NoError(t, leaf.AddPorts([]string{"IN", "OUT", "VDD", "VSS"}))
	nmos := &model.Model{Name: "nmos", Type: model.NMOS, Definition: "nmos"}
	pmos := &model.Model{Name: "pmos", Type: model.PMOS, Definition: "pmos"}
	require.NoError(t, leaf.AddDevice(circuit.Device{Name: "MN", Model: nmos, Nets: []circuit.NetID{1, 0, 3, 3}}))
	require.NoError(t, leaf.AddDevice(circuit.Device{Name: "MP", Model: pmos, Nets: []circuit.NetID{1, 0, 2, 2}}))
	lib.Add(leaf)

	top := circuit.NewDef("TOP")
	require.NoError(t, top.AddPorts([]string{"VDD", "VSS"}))
	in := top.InternalNetID("A")
	out := top.InternalNetID("Z")
	require.NoError(t, top.AddInstance(circuit.Instance{Name: "X1", MasterName: "LEAF", Nets: []circuit.NetID{in, out, 0, 1}}))
	lib.Add(top)

	db, err := elaborate.Elaborate(lib, "TOP", 4)
	require.NoError(t, err)
	return db, netindex.Build(db)
}

func newTestShell(t *testing.T, lines []string) (*Shell, *bytes.Buffer) {
	t.Helper()
	db, idx := buildHierarchy(t)
	spec := power.NewSpec()
	eng := propagate.New(db, idx, spec, propagate.Options{})
	models := model.NewLibrary()
	var out bytes.Buffer
	sh := New(db, idx, spec, models, eng, &scriptSource{lines: lines}, Options{})
	sh.Report = &out
	return sh, &out
}

func TestGotoNavigatesIntoAndOutOfSubcircuit(t *testing.T) {
	sh, out := newTestShell(t, []string{"goto X1", "pwd", "goto ..", "pwd", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Current hierarchy(1): X1", "expected to have navigated into X1")
	assert.Contains(t, report, "Current hierarchy(0): ", "expected goto .. to return to the top instance")
}

func TestGotoUnknownHierarchyReportsError(t *testing.T) {
	sh, out := newTestShell(t, []string{"goto NOPE", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Could not find instance NOPE")
}

func TestListDeviceFiltersByRegex(t *testing.T) {
	sh, out := newTestShell(t, []string{"goto X1", "listdevice MN", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "MN nmos", "expected MN to be listed")
	assert.NotContains(t, report, "MP pmos", "expected MP to be filtered out")
	assert.Contains(t, report, "Displayed 1/1 matches")
}

func TestFindSubcircuitCountsInstances(t *testing.T) {
	sh, out := newTestShell(t, []string{"findsubcircuit LEAF", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "found 1 instances", "expected exactly one elaborated LEAF instance")
}

func TestGetNetReportsConnectionCountsFromLinkStageOnward(t *testing.T) {
	sh, out := newTestShell(t, []string{"goto X1", "getnet OUT", "quit"})
	sh.SetStage(StageLink)
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "connections: gate 0 source 0 drain 2 bulk 0", "expected OUT to report 2 drain connections (MN+MP)")
}

func TestGetInstanceReportsSubcircuitAndParallelStatus(t *testing.T) {
	sh, out := newTestShell(t, []string{"getinstance X1", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Instance X1: 1")
	assert.Contains(t, report, "subcircuit LEAF")
}

func TestGetInstanceUnknownHierarchyReportsError(t *testing.T) {
	sh, out := newTestShell(t, []string{"getinstance NOPE", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Could not find instance NOPE")
}

func TestStageRestrictedSetterRejectedAfterStart(t *testing.T) {
	sh, out := newTestShell(t, []string{"setmodel foo.models", "quit"})
	sh.SetStage(StageLink)
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ERROR: Can only change model file at stage 1.")
}

func TestDumpAnalogNetsRejectedAtStageStart(t *testing.T) {
	sh, out := newTestShell(t, []string{"dumpanalognets /tmp/cvc-shell-test-analog.net", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ERROR: Can only dump analog nets after second stage")
}

func TestContinueReturnsStepCountAndExits(t *testing.T) {
	sh, _ := newTestShell(t, []string{"continue 3"})
	code, n, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OK, code)
	assert.Equal(t, 3, n)
}

func TestContinueDefaultsToOneStep(t *testing.T) {
	sh, _ := newTestShell(t, []string{"c"})
	code, n, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OK, code)
	assert.Equal(t, 1, n)
}

func TestSkipResetsHierarchyAndReturnsSkip(t *testing.T) {
	sh, _ := newTestShell(t, []string{"goto X1", "skip"})
	code, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Skip, code)
	assert.EqualValues(t, 0, sh.current, "expected skip to reset the current instance to top")
}

func TestEOFWithoutPendingSourceEndsTheShellCleanly(t *testing.T) {
	sh, _ := newTestShell(t, nil)
	code, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OK, code, "expected bare EOF to return OK")
}

func TestCancelledContextUnwindsImmediately(t *testing.T) {
	sh, _ := newTestShell(t, []string{"pwd", "quit"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := sh.Run(ctx)
	assert.Error(t, err, "expected a cancelled context to return an error")
}

func TestUnrecognizedCommandIsReportedNotFatal(t *testing.T) {
	sh, out := newTestShell(t, []string{"boguscommand", "quit"})
	_, _, err := sh.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Unrecognized command 'boguscommand'")
}
