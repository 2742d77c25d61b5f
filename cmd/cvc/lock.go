package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
)

// acquireLock creates a process-wide run lock in outputDir, matching
// spec.md §5's "scoped resources" paragraph: a run never starts if
// another run already holds the lock, and the lock is removed on every
// exit path — including an interrupt — by the caller's deferred cleanup.
func acquireLock(outputDir string) (string, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return "", errors.Wrapf(err, "creating output directory %s", outputDir)
		}
	}
	path := filepath.Join(outputDir, "cvc.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", errors.Errorf("another cvc run holds the lock at %s", path)
		}
		return "", errors.Wrapf(err, "creating lock file %s", path)
	}
	f.Close()
	return path, nil
}

func releaseLock(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// interruptContext returns a context canceled on os.Interrupt, the
// idiomatic Go rendering of spec.md §5's process-wide interrupted flag;
// pkg/propagate and pkg/shell both poll ctx.Err() at the points spec.md
// names.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
