package queue

import (
	"fmt"

	"github.com/felixgeelhaar/cadence/internal/domain"
	"github.com/felixgeelhaar/cadence/internal/errors"
)

// Sentinels for errors.Is. Matching is by error code, so any invariant
// violation with the same code matches regardless of message.
var (
	ErrNotFound        = errors.New(errors.ErrCodeQueueNotFound, "subtask not found")
	ErrCompleted       = errors.New(errors.ErrCodeQueueCompleted, "subtask is completed and immutable")
	ErrIndexOutOfRange = errors.New(errors.ErrCodeQueueIndexRange, "index out of range")
	ErrInvalidDraft    = errors.New(errors.ErrCodeQueueInvalidDraft, "invalid subtask draft")
	ErrInvalidOp       = errors.New(errors.ErrCodeQueueInvalidOp, "invalid queue operation")
	ErrDuplicateID     = errors.New(errors.ErrCodeQueueDuplicateID, "duplicate subtask id")
)

// OpError reports an invariant violation by a single operation in a batch.
// It names the operation, the target id and the operation's position.
type OpError struct {
	Op       OpType
	ID       domain.SubtaskID
	Position int
	Err      error
}

func (e *OpError) Error() string {
	target := string(e.ID)
	if target == "" {
		target = "<new>"
	}
	return fmt.Sprintf("%s %s (operation %d): %v", e.Op, target, e.Position, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func errInvalidDraft(format string, args ...any) error {
	return errors.New(errors.ErrCodeQueueInvalidDraft, fmt.Sprintf(format, args...))
}

func errNotFound(id domain.SubtaskID) error {
	return errors.New(errors.ErrCodeQueueNotFound, fmt.Sprintf("subtask %s does not exist in the queue", id)).
		WithSuggestion("Regenerate the proposal against the current queue")
}

func errCompleted(id domain.SubtaskID, op OpType) error {
	return errors.New(errors.ErrCodeQueueCompleted, fmt.Sprintf("subtask %s is completed; %s is not allowed", id, op))
}

func errIndexRange(index, length int) error {
	return errors.New(errors.ErrCodeQueueIndexRange, fmt.Sprintf("index %d outside [0, %d]", index, length))
}

func errInvalidOp(format string, args ...any) error {
	return errors.New(errors.ErrCodeQueueInvalidOp, fmt.Sprintf(format, args...))
}
