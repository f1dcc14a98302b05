package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Queue invariant violations (QUEUE-001 to QUEUE-099)
	ErrCodeQueueNotFound      ErrorCode = "QUEUE-001"
	ErrCodeQueueCompleted     ErrorCode = "QUEUE-002"
	ErrCodeQueueIndexRange    ErrorCode = "QUEUE-003"
	ErrCodeQueueInvalidDraft  ErrorCode = "QUEUE-004"
	ErrCodeQueueInvalidOp     ErrorCode = "QUEUE-005"
	ErrCodeQueueDuplicateID   ErrorCode = "QUEUE-006"
	ErrCodeQueueInvalidChange ErrorCode = "QUEUE-007"

	// Proposal errors (PROPOSAL-001 to PROPOSAL-099)
	ErrCodeProposalNotFound ErrorCode = "PROPOSAL-001"
	ErrCodeProposalInvalid  ErrorCode = "PROPOSAL-002"
	ErrCodeProposalStale    ErrorCode = "PROPOSAL-003"

	// Gate errors (GATE-001 to GATE-099)
	ErrCodeGateUnknown       ErrorCode = "GATE-001"
	ErrCodeGatePolicyInvalid ErrorCode = "GATE-002"

	// Cascade errors (CASCADE-001 to CASCADE-099)
	ErrCodeCascadeLevelUnknown  ErrorCode = "CASCADE-001"
	ErrCodeCascadeRange         ErrorCode = "CASCADE-002"
	ErrCodeCascadeExecutor      ErrorCode = "CASCADE-003"
	ErrCodeCascadeRejected      ErrorCode = "CASCADE-004"
	ErrCodeCascadeApproval      ErrorCode = "CASCADE-005"
	ErrCodeCascadeCheckpoint    ErrorCode = "CASCADE-006"
	ErrCodeCascadeNoPausedState ErrorCode = "CASCADE-007"

	// Reviewer errors (REVIEW-001 to REVIEW-099)
	ErrCodeReviewFailed    ErrorCode = "REVIEW-001"
	ErrCodeReviewTimeout   ErrorCode = "REVIEW-002"
	ErrCodeReviewConfig    ErrorCode = "REVIEW-003"
	ErrCodeReviewMalformed ErrorCode = "REVIEW-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// CadenceError is an error with a stable code, optional suggestions and a cause
type CadenceError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *CadenceError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CadenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CadenceError carrying the same code.
// A bare code sentinel (New(code, "")) therefore matches any error with that code.
func (e *CadenceError) Is(target error) bool {
	t, ok := target.(*CadenceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new CadenceError
func New(code ErrorCode, message string) *CadenceError {
	return &CadenceError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CadenceError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *CadenceError {
	return &CadenceError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *CadenceError) WithSuggestion(suggestion string) *CadenceError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *CadenceError) WithSuggestions(suggestions ...string) *CadenceError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first CadenceError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ce *CadenceError
	if stderrors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &CadenceError{Code: code})
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *CadenceError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *CadenceError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}

// NewStaleProposalError describes a proposal whose fingerprint no longer matches the queue.
// The apply path itself treats staleness as a no-op; this is for callers that ask first.
func NewStaleProposalError(proposalHash, currentHash string) *CadenceError {
	return New(ErrCodeProposalStale, "proposal was generated against a different queue snapshot").
		WithSuggestion("Regenerate the proposal against the current queue").
		WithSuggestion(fmt.Sprintf("Proposal fingerprint: %s, queue fingerprint: %s", short(proposalHash), short(currentHash)))
}

// NewLevelUnknownError creates an unknown pipeline level error
func NewLevelUnknownError(level string) *CadenceError {
	return New(ErrCodeCascadeLevelUnknown, fmt.Sprintf("unknown pipeline level: %s", level)).
		WithSuggestion("Use one of: roadmap, stories, tasks, subtasks, build, calibrate")
}

// NewReviewerConfigError creates a reviewer configuration error
func NewReviewerConfigError(details string) *CadenceError {
	return New(ErrCodeReviewConfig, fmt.Sprintf("reviewer misconfigured: %s", details)).
		WithSuggestion("Check the reviewer section of .cadence/config.yaml")
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
