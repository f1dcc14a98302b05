package queue

import (
	"github.com/felixgeelhaar/cadence/internal/domain"
)

// OpType names a queue operation variant
type OpType string

const (
	OpCreate  OpType = "create"
	OpUpdate  OpType = "update"
	OpRemove  OpType = "remove"
	OpReorder OpType = "reorder"
	OpSplit   OpType = "split"
)

// Operation is one typed mutation. Which fields are set depends on Type:
//
//	create:  Index, Subtask
//	update:  ID, Changes
//	remove:  ID
//	reorder: ID, Index
//	split:   ID, Subtasks
type Operation struct {
	Type     OpType           `json:"type"`
	ID       domain.SubtaskID `json:"id,omitempty"`
	Index    *int             `json:"index,omitempty"`
	Subtask  *Draft           `json:"subtask,omitempty"`
	Changes  *Changes         `json:"changes,omitempty"`
	Subtasks []Draft          `json:"subtasks,omitempty"`
}

// Create inserts a new subtask at a 0-based index in [0, len]
func Create(index int, draft Draft) Operation {
	return Operation{Type: OpCreate, Index: &index, Subtask: &draft}
}

// Update merges changes into a pending subtask
func Update(id domain.SubtaskID, changes Changes) Operation {
	return Operation{Type: OpUpdate, ID: id, Changes: &changes}
}

// Remove deletes a pending subtask
func Remove(id domain.SubtaskID) Operation {
	return Operation{Type: OpRemove, ID: id}
}

// Reorder moves a subtask to a new position
func Reorder(id domain.SubtaskID, toIndex int) Operation {
	return Operation{Type: OpReorder, ID: id, Index: &toIndex}
}

// Split replaces a pending subtask, in place, with newly allocated children
func Split(id domain.SubtaskID, children ...Draft) Operation {
	return Operation{Type: OpSplit, ID: id, Subtasks: children}
}

// Validate checks that the fields required by the operation's type are present
func (op Operation) Validate() error {
	switch op.Type {
	case OpCreate:
		if op.Index == nil {
			return errInvalidOp("create requires an index")
		}
		if op.Subtask == nil {
			return errInvalidOp("create requires a subtask draft")
		}
		return op.Subtask.Validate()
	case OpUpdate:
		if op.ID == "" {
			return errInvalidOp("update requires an id")
		}
		if op.Changes == nil || op.Changes.IsEmpty() {
			return errInvalidOp("update of %s carries no changes", op.ID)
		}
	case OpRemove:
		if op.ID == "" {
			return errInvalidOp("remove requires an id")
		}
	case OpReorder:
		if op.ID == "" {
			return errInvalidOp("reorder requires an id")
		}
		if op.Index == nil {
			return errInvalidOp("reorder of %s requires a target index", op.ID)
		}
	case OpSplit:
		if op.ID == "" {
			return errInvalidOp("split requires an id")
		}
		if len(op.Subtasks) == 0 {
			return errInvalidOp("split of %s requires at least one child", op.ID)
		}
		for i, child := range op.Subtasks {
			if err := child.Validate(); err != nil {
				return errInvalidOp("split of %s: child %d: %v", op.ID, i, err)
			}
		}
	default:
		return errInvalidOp("unknown operation type %q", op.Type)
	}
	return nil
}

// Summarize counts operations by type, for audit records
func Summarize(ops []Operation) map[OpType]int {
	counts := make(map[OpType]int)
	for _, op := range ops {
		counts[op.Type]++
	}
	return counts
}
