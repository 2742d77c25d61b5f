package shell

import (
	"bufio"
	"io"
	"os"
)

// fileSource reads commands from a sourced file, one line per Prompt
// call, ignoring the prompt text the way the original's batch-input
// branch reads raw lines off the redirected cin buffer
// (_examples/original_source/src/CCvcDb_interactive.cc lines 608-617).
type fileSource struct {
	f       *os.File
	scanner *bufio.Scanner
}

func newFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileSource{f: f, scanner: bufio.NewScanner(f)}, nil
}

func (s *fileSource) Prompt(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *fileSource) Close() error { return s.f.Close() }

// cmdSource implements source <file>: pushes file onto the input
// stack so subsequent prompts read from it until EOF pops it back to
// whatever was sourcing before, per spec.md §4.7.
func (sh *Shell) cmdSource(args []string) {
	if len(args) == 0 {
		sh.report("ERROR: no file name\n")
		return
	}
	src, err := newFileSource(args[0])
	if err != nil {
		sh.report("Could not open %s\n", args[0])
		return
	}
	sh.sources = append(sh.sources, src)
	sh.report("sourcing from %s. Depth %d\n", args[0], len(sh.sources)-1)
}
