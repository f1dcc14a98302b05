package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// QueueInvariant indicates a queue operation violated an invariant
	QueueInvariant = 3

	// ValidationSkipped indicates validation skipped at least one subtask
	ValidationSkipped = 4

	// Aborted indicates a human rejected a gate or the cascade stopped on a failing level
	Aborted = 5

	// ApprovalRequired indicates the process stopped at a checkpoint-and-exit gate
	ApprovalRequired = 10

	// Interrupted indicates the process received SIGINT/SIGTERM
	Interrupted = 130
)

// SilentError ends the process with Code after the command has already told
// the user what happened. Nothing more is printed.
type SilentError struct {
	Code int
}

func (e *SilentError) Error() string {
	return GetExitCodeDescription(e.Code)
}

// NewSilentError creates a SilentError for code
func NewSilentError(code int) error {
	return &SilentError{Code: code}
}

// IsSilent reports whether err is a SilentError
func IsSilent(err error) bool {
	var silent *SilentError
	return stderrors.As(err, &silent)
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code, preferring error codes
// over message inspection.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var silent *SilentError
	if stderrors.As(err, &silent) {
		return silent.Code
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	if code, ok := errors.CodeOf(err); ok {
		switch {
		case code == errors.ErrCodeCascadeApproval:
			return ApprovalRequired
		case code == errors.ErrCodeCascadeRejected, code == errors.ErrCodeCascadeExecutor:
			return Aborted
		case strings.HasPrefix(string(code), "QUEUE-"):
			return QueueInvariant
		case code == errors.ErrCodeCascadeLevelUnknown, code == errors.ErrCodeCascadeRange,
			code == errors.ErrCodeConfigInvalid, code == errors.ErrCodeGatePolicyInvalid:
			return UsageError
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "unknown flag") {
		return UsageError
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
		return "Usage error (invalid flags or arguments)"
	case QueueInvariant:
		return "Queue invariant violation"
	case ValidationSkipped:
		return "Validation skipped one or more subtasks"
	case Aborted:
		return "Cascade aborted"
	case ApprovalRequired:
		return "Approval required before the cascade can continue"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
