package shell

import (
	"io"

	"github.com/chzyer/readline"
)

// ReadlineSource is the interactive terminal implementation of Source,
// backed by github.com/chzyer/readline for line editing and history —
// the Go-ecosystem analogue of the original's GNU readline/rl_gets
// (_examples/original_source/src/CCvcDb_interactive.cc lines 59-78).
type ReadlineSource struct {
	rl *readline.Instance
}

// NewReadlineSource opens a readline instance with historyFile for
// persisted command history across sessions ("" disables history).
func NewReadlineSource(historyFile string) (*ReadlineSource, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:            historyFile,
		DisableAutoSaveHistory: false,
	})
	if err != nil {
		return nil, err
	}
	return &ReadlineSource{rl: rl}, nil
}

func (s *ReadlineSource) Prompt(prompt string) (string, error) {
	s.rl.SetPrompt(prompt)
	line, err := s.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", io.EOF
	}
	if err == io.EOF {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

func (s *ReadlineSource) Close() error { return s.rl.Close() }
