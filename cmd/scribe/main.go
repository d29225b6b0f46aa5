package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/scribe/pkg/core"
)

// Exit codes of the scribe binary.
const (
	exitFailure  = 1
	exitNotFound = 2
	exitInvalid  = 3
)

func main() {
	Execute()
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "scribe: %s: %v\n", msg, err)
	os.Exit(exitCode(err))
}

// exitCode lets scripts tell a missing note or subject and a rejected input
// apart from other failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrSubjectNotFound):
		return exitNotFound
	case errors.Is(err, core.ErrInvalidNote), errors.Is(err, core.ErrSubjectMismatch):
		return exitInvalid
	default:
		return exitFailure
	}
}
