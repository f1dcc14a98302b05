package queue

import (
	"github.com/felixgeelhaar/cadence/internal/domain"
)

// ApplyOperations applies ops in order to a copy of q and returns the copy.
// It does not look at fingerprints; ApplyProposal is the gated entry point.
//
// New ids continue from the highest numeric suffix in q, done subtasks
// included, and increase by one per allocation across the whole batch.
// A create at index 0 goes to the batch's prepend cursor, so several
// index-0 creates read front-to-back in the order they were proposed.
// The cursor marks the end of the front block and follows every operation
// that grows or shrinks that block, so a later index-0 create still lands
// directly behind it.
//
// The first invariant violation aborts the batch. q is never modified.
func ApplyOperations(q *Queue, ops []Operation) (*Queue, error) {
	b := &batch{
		work: q.Clone(),
		next: q.MaxNumber(),
	}
	for pos, op := range ops {
		if err := b.apply(op); err != nil {
			return nil, &OpError{Op: op.Type, ID: op.ID, Position: pos, Err: err}
		}
	}
	return b.work, nil
}

type batch struct {
	work    *Queue
	next    int
	prepend int
}

func (b *batch) allocate() domain.SubtaskID {
	b.next++
	return domain.FormatSubtaskID(b.next)
}

func (b *batch) apply(op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	switch op.Type {
	case OpCreate:
		return b.create(*op.Index, *op.Subtask)
	case OpUpdate:
		i, err := b.pending(op.ID, op.Type)
		if err != nil {
			return err
		}
		b.work.Subtasks[i].merge(*op.Changes)
	case OpRemove:
		i, err := b.pending(op.ID, op.Type)
		if err != nil {
			return err
		}
		b.remove(i)
	case OpReorder:
		i := b.work.IndexOf(op.ID)
		if i < 0 {
			return errNotFound(op.ID)
		}
		b.reorder(i, *op.Index)
	case OpSplit:
		i, err := b.pending(op.ID, op.Type)
		if err != nil {
			return err
		}
		b.split(i, op.Subtasks)
	}
	return nil
}

// pending returns the index of id, failing when it is absent or done.
func (b *batch) pending(id domain.SubtaskID, op OpType) (int, error) {
	i := b.work.IndexOf(id)
	if i < 0 {
		return -1, errNotFound(id)
	}
	if b.work.Subtasks[i].Done {
		return -1, errCompleted(id, op)
	}
	return i, nil
}

func (b *batch) create(index int, draft Draft) error {
	n := len(b.work.Subtasks)
	if index < 0 || index > n {
		return errIndexRange(index, n)
	}
	if index == 0 {
		b.insert(b.prepend, draft.toSubtask(b.allocate()))
		b.prepend++
		return nil
	}
	b.insert(index, draft.toSubtask(b.allocate()))
	return nil
}

func (b *batch) reorder(from, to int) {
	s := b.work.Subtasks[from]
	b.remove(from)
	to = max(0, min(to, len(b.work.Subtasks)))
	b.insert(to, s)
}

func (b *batch) remove(i int) {
	b.work.Subtasks = append(b.work.Subtasks[:i], b.work.Subtasks[i+1:]...)
	if i < b.prepend {
		b.prepend--
	}
}

func (b *batch) split(i int, drafts []Draft) {
	parent := b.work.Subtasks[i]
	children := make([]Subtask, 0, len(drafts))
	for _, d := range drafts {
		if d.TaskRef == "" {
			d.TaskRef = parent.TaskRef
		}
		if d.StoryRef == "" {
			d.StoryRef = parent.StoryRef
		}
		children = append(children, d.toSubtask(b.allocate()))
	}

	rest := append([]Subtask{}, b.work.Subtasks[i+1:]...)
	b.work.Subtasks = append(append(b.work.Subtasks[:i], children...), rest...)
	if i < b.prepend {
		b.prepend += len(children) - 1
	}
}

// insert places s at i. Landing inside the front block extends it.
func (b *batch) insert(i int, s Subtask) {
	b.work.Subtasks = append(b.work.Subtasks, Subtask{})
	copy(b.work.Subtasks[i+1:], b.work.Subtasks[i:])
	b.work.Subtasks[i] = s
	if i < b.prepend {
		b.prepend++
	}
}
