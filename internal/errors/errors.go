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
	// Graph errors (GRAPH-001 to GRAPH-099)
	ErrCodeGraphCycle             ErrorCode = "GRAPH-001"
	ErrCodeGraphMissingDependency ErrorCode = "GRAPH-002"
	ErrCodeGraphDuplicateItem     ErrorCode = "GRAPH-003"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanNotFound ErrorCode = "PLAN-001"
	ErrCodePlanInvalid  ErrorCode = "PLAN-002"
	ErrCodePlanDrift    ErrorCode = "PLAN-003"

	// Checkpoint store errors (STORE-001 to STORE-099)
	ErrCodeRepository      ErrorCode = "STORE-001"
	ErrCodeNothingToResume ErrorCode = "STORE-002"

	// Gate errors (GATE-001 to GATE-099)
	ErrCodeGateNoRun   ErrorCode = "GATE-001"
	ErrCodeGateInvalid ErrorCode = "GATE-002"

	// Run errors (RUN-001 to RUN-099)
	ErrCodeRunFailed  ErrorCode = "RUN-001"
	ErrCodeRunBlocked ErrorCode = "RUN-002"
	ErrCodeRunAborted ErrorCode = "RUN-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
)

// Error represents an enhanced error with code, suggestions, and documentation
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
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
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error's code
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Coded is implemented by every error that carries an ErrorCode, including the
// typed errors of the graph, checkpoint and gate packages.
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.ErrorCode(), true
	}
	return "", false
}

// HasCode reports whether err's chain contains an error with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if coded, ok := err.(Coded); ok && coded.ErrorCode() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors for frequently used errors

// NewPlanNotFoundError creates a plan file not found error
func NewPlanNotFoundError(path string) *Error {
	return New(ErrCodePlanNotFound, fmt.Sprintf("plan file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Pass the plan with --plan <file>")
}

// NewPlanDriftError creates a plan drift error raised when a resumed run's plan
// no longer matches the plan recorded in its checkpoint.
func NewPlanDriftError(featureID, expectedHash, actualHash string) *Error {
	return New(ErrCodePlanDrift, fmt.Sprintf("plan changed since checkpoint for feature: %s", featureID)).
		WithSuggestion("Restore the original plan file, or delete the checkpoint and start a new run").
		WithSuggestion(fmt.Sprintf("Expected fingerprint: %s, got: %s", expectedHash, actualHash))
}

// NewNothingToResumeError creates an error for a resume with no owned, active checkpoint
func NewNothingToResumeError(featureID, agentID string) *Error {
	return New(ErrCodeNothingToResume, fmt.Sprintf("no resumable checkpoint for feature %s owned by agent %s", featureID, agentID)).
		WithSuggestion("Run 'orchestra recover' to list active checkpoints and their owners").
		WithSuggestion("Use --agent-id to resume as the owning agent")
}

// NewRunBlockedError creates an error reporting gates awaiting a decision
func NewRunBlockedError(featureID string, gates []string) *Error {
	e := New(ErrCodeRunBlocked, fmt.Sprintf("feature %s is awaiting gate decisions: %s", featureID, strings.Join(gates, ", ")))
	for _, g := range gates {
		e.WithSuggestion(fmt.Sprintf("Run 'orchestra gate approve %s %s --approver <name>' then 'orchestra resume'", featureID, g))
	}
	return e
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check .orchestra/config.yaml")
}
