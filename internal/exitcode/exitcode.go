// Package exitcode maps errors and run outcomes to process exit codes.
package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// RunFailed indicates a run finished with failed work items
	RunFailed = 3

	// RunBlocked indicates a run stopped with items awaiting a gate decision
	RunBlocked = 4

	// DriftDetected indicates the plan changed since its checkpoint was written
	DriftDetected = 5

	// InvalidPlan indicates a plan that could not be loaded or ordered
	InvalidPlan = 6

	// NothingToResume indicates no resumable checkpoint owned by this agent
	NothingToResume = 7

	// StoreError indicates the checkpoint store could not be read or written
	StoreError = 8

	// Interrupted indicates the run was aborted by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode classifies err by its error code, falling back to the
// messages cobra uses for usage errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code, ok := errors.CodeOf(err); ok {
		switch code {
		case errors.ErrCodeRunFailed:
			return RunFailed
		case errors.ErrCodeRunBlocked:
			return RunBlocked
		case errors.ErrCodeRunAborted:
			return Interrupted
		case errors.ErrCodePlanDrift:
			return DriftDetected
		case errors.ErrCodePlanNotFound, errors.ErrCodePlanInvalid,
			errors.ErrCodeGraphCycle, errors.ErrCodeGraphMissingDependency, errors.ErrCodeGraphDuplicateItem:
			return InvalidPlan
		case errors.ErrCodeNothingToResume:
			return NothingToResume
		case errors.ErrCodeRepository:
			return StoreError
		case errors.ErrCodeConfigInvalid, errors.ErrCodeGateInvalid:
			return UsageError
		}
	}

	errMsg := strings.ToLower(err.Error())
	for _, usage := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "required flag", "accepts "} {
		if strings.Contains(errMsg, usage) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case RunFailed:
		return "Run finished with failed work items"
	case RunBlocked:
		return "Run blocked on approval gates"
	case DriftDetected:
		return "Plan changed since the checkpoint was written"
	case InvalidPlan:
		return "Invalid plan"
	case NothingToResume:
		return "Nothing to resume"
	case StoreError:
		return "Checkpoint store error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
