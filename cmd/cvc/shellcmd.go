package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donn/cvc/pkg/shell"
	"github.com/donn/cvc/pkg/sink"
)

var flagHistoryFile string

var shellCmd = &cobra.Command{
	Use:     "shell",
	Short:   "Run the batch pipeline, then drop into an interactive session",
	GroupID: "primary",
	Args:    cobra.NoArgs,
	RunE:    runShell,
}

func init() {
	shellCmd.Flags().StringVar(&flagHistoryFile, "history-file", "", "readline history file (defaults to no persistent history)")
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	lockPath, err := acquireLock(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer releaseLock(lockPath)

	ctx, cancel := interruptContext()
	defer cancel()

	s, err := sink.NewFromFiles(cfg.SinkFiles())
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := buildPipeline(ctx, cfg, s, log)
	if err != nil {
		return err
	}

	src, err := shell.NewReadlineSource(flagHistoryFile)
	if err != nil {
		return err
	}

	sh := shell.New(p.DB, p.Index, p.Power, p.Models, p.Engine, src, cfg.ShellOptions())
	sh.Report = s.Report
	sh.Log = s.Log
	sh.SetStage(shell.StageComplete)

	code, _, err := sh.Run(ctx)
	if err != nil {
		return err
	}
	if code == shell.Fail {
		return fmt.Errorf("shell session exited with an error")
	}
	return nil
}
