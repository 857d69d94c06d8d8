package cli

import (
	"errors"

	"github.com/picklr-io/sitedeploy/internal/engine"
	"github.com/picklr-io/sitedeploy/internal/retry"
)

// ErrUsage marks invalid arguments or flags.
var ErrUsage = errors.New("usage error")

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitUsage          = 2
	ExitZoneUnresolved = 3
	ExitUpload         = 4
	ExitTimeout        = 5
	ExitDegraded       = 6
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, engine.ErrZoneUnresolved):
		return ExitZoneUnresolved
	case errors.Is(err, engine.ErrUpload):
		return ExitUpload
	case errors.Is(err, retry.ErrTimeout):
		return ExitTimeout
	case errors.Is(err, engine.ErrDegraded):
		return ExitDegraded
	default:
		return ExitFailure
	}
}
