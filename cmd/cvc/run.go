package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donn/cvc/pkg/sink"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run the full batch pipeline (parse, elaborate, propagate, check) and exit",
	GroupID: "primary",
	Args:    cobra.NoArgs,
	RunE:    runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
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

	fmt.Fprintln(s.Report, "running rule checks")
	findings := runChecks(p, cfg.CheckOptions(), s.Error)

	counts := map[string]int{}
	for _, f := range findings {
		counts[string(f.Category)]++
	}
	fmt.Fprintf(s.Report, "run complete: %d findings across %d categories\n", len(findings), len(counts))
	log.WithField("findings", len(findings)).Info("run complete")
	return nil
}
