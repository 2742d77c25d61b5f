package sink

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscardWritesGoNowhere(t *testing.T) {
	s := NewDiscard()
	n, err := s.Report.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestNewWiresGivenWriters(t *testing.T) {
	var report, errBuf bytes.Buffer
	s := New(&report, &errBuf, io.Discard, io.Discard)
	s.Report.Write([]byte("stage 1 complete"))
	s.Error.Write([]byte("! Finished"))
	assert.Equal(t, "stage 1 complete", report.String())
	assert.Equal(t, "! Finished", errBuf.String())
}

func TestNewFromFilesGzipsTheErrorStream(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(Files{
		Report: filepath.Join(dir, "report.log"),
		Error:  filepath.Join(dir, "errors.gz"),
	})
	require.NoError(t, err)

	s.Report.Write([]byte("parsing netlist\n"))
	s.Error.Write([]byte("* Forward Bias Diode Error\n! Finished\n"))
	require.NoError(t, s.Close())

	reportBytes, err := os.ReadFile(filepath.Join(dir, "report.log"))
	require.NoError(t, err)
	assert.Equal(t, "parsing netlist\n", string(reportBytes))

	gzFile, err := os.Open(filepath.Join(dir, "errors.gz"))
	require.NoError(t, err)
	defer gzFile.Close()
	gzr, err := gzip.NewReader(gzFile)
	require.NoError(t, err, "expected a valid gzip stream")
	defer gzr.Close()
	decompressed, err := io.ReadAll(gzr)
	require.NoError(t, err)
	assert.Equal(t, "* Forward Bias Diode Error\n! Finished\n", string(decompressed))
}

func TestNewFromFilesDiscardsEmptyPaths(t *testing.T) {
	s, err := NewFromFiles(Files{})
	require.NoError(t, err)
	assert.Equal(t, io.Discard, s.Report)
	assert.Equal(t, io.Discard, s.Error)
	assert.Equal(t, io.Discard, s.Log)
	assert.Equal(t, io.Discard, s.Debug)
	assert.NoError(t, s.Close(), "Close on a no-op Sinks should be a no-op")
}
