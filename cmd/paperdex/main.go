// Command paperdex drives the arXiv ingestion pipeline: fetch, filter,
// embed, load, verify, and snapshot management.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paperdex/paperdex/internal/domain"
)

// Exit codes: 0 success, 2 usage/config/missing artifact, 1 any other
// fatal error.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// cliError carries the exit code alongside the cause.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// classify maps an error to its exit code. Config problems and missing
// artifacts are usage errors with printed remediation.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, domain.ErrConfig) {
		return &cliError{code: exitUsage, err: err}
	}
	return &cliError{code: exitFatal, err: err}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		var ce *cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, "Error:", ce.err)
			return ce.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFatal
	}
	return exitOK
}
