// Package queue holds the subtask work queue: its data model, the fingerprint
// used as an optimistic-concurrency token, and the operation engine that
// applies proposals to a queue snapshot.
package queue

import (
	"strings"

	"github.com/felixgeelhaar/cadence/internal/domain"
)

// Subtask is an atomic unit of planned work
type Subtask struct {
	ID                 domain.SubtaskID `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	AcceptanceCriteria []string         `json:"acceptanceCriteria"`
	FilesToRead        []string         `json:"filesToRead"`
	TaskRef            string           `json:"taskRef"`
	StoryRef           string           `json:"storyRef,omitempty"`
	Done               bool             `json:"done"`

	// Execution carries provider-specific metadata written by the build loop.
	Execution map[string]any `json:"execution,omitempty"`
}

// Draft is a subtask that has not been allocated an ID yet
type Draft struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	FilesToRead        []string `json:"filesToRead,omitempty"`
	TaskRef            string   `json:"taskRef,omitempty"`
	StoryRef           string   `json:"storyRef,omitempty"`
}

// Changes is a partial field set merged into a pending subtask by an update
// operation. Nil fields are left untouched.
type Changes struct {
	Title              *string  `json:"title,omitempty"`
	Description        *string  `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	FilesToRead        []string `json:"filesToRead,omitempty"`
	TaskRef            *string  `json:"taskRef,omitempty"`
	StoryRef           *string  `json:"storyRef,omitempty"`
}

// IsEmpty reports whether the change set touches no field
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.AcceptanceCriteria == nil &&
		c.FilesToRead == nil && c.TaskRef == nil && c.StoryRef == nil
}

// Validate checks the draft carries what every subtask needs
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errInvalidDraft("title cannot be empty")
	}
	if len(d.AcceptanceCriteria) == 0 {
		return errInvalidDraft("acceptance criteria cannot be empty")
	}
	for i, c := range d.AcceptanceCriteria {
		if strings.TrimSpace(c) == "" {
			return errInvalidDraft("acceptance criterion %d is blank", i)
		}
	}
	return nil
}

func (d Draft) toSubtask(id domain.SubtaskID) Subtask {
	return Subtask{
		ID:                 id,
		Title:              d.Title,
		Description:        d.Description,
		AcceptanceCriteria: cloneStrings(d.AcceptanceCriteria),
		FilesToRead:        cloneStrings(d.FilesToRead),
		TaskRef:            d.TaskRef,
		StoryRef:           d.StoryRef,
	}
}

// DraftOf strips identity and completion from a subtask
func DraftOf(s Subtask) Draft {
	return Draft{
		Title:              s.Title,
		Description:        s.Description,
		AcceptanceCriteria: cloneStrings(s.AcceptanceCriteria),
		FilesToRead:        cloneStrings(s.FilesToRead),
		TaskRef:            s.TaskRef,
		StoryRef:           s.StoryRef,
	}
}

func (s Subtask) clone() Subtask {
	out := s
	out.AcceptanceCriteria = cloneStrings(s.AcceptanceCriteria)
	out.FilesToRead = cloneStrings(s.FilesToRead)
	if s.Execution != nil {
		out.Execution = make(map[string]any, len(s.Execution))
		for k, v := range s.Execution {
			out.Execution[k] = v
		}
	}
	return out
}

func (s *Subtask) merge(c Changes) {
	if c.Title != nil {
		s.Title = *c.Title
	}
	if c.Description != nil {
		s.Description = *c.Description
	}
	if c.AcceptanceCriteria != nil {
		s.AcceptanceCriteria = cloneStrings(c.AcceptanceCriteria)
	}
	if c.FilesToRead != nil {
		s.FilesToRead = cloneStrings(c.FilesToRead)
	}
	if c.TaskRef != nil {
		s.TaskRef = *c.TaskRef
	}
	if c.StoryRef != nil {
		s.StoryRef = *c.StoryRef
	}
}

// Queue is the ordered list of subtasks. Order determines execution order.
// The fingerprint is always derived, never stored.
type Queue struct {
	Subtasks []Subtask
}

// New builds a queue from subtasks, copying them
func New(subtasks ...Subtask) *Queue {
	q := &Queue{Subtasks: make([]Subtask, 0, len(subtasks))}
	for _, s := range subtasks {
		q.Subtasks = append(q.Subtasks, s.clone())
	}
	return q
}

// Len returns the number of subtasks
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Subtasks)
}

// Clone returns a deep copy
func (q *Queue) Clone() *Queue {
	if q == nil {
		return &Queue{}
	}
	return New(q.Subtasks...)
}

// Fingerprint computes the queue's current fingerprint
func (q *Queue) Fingerprint() Fingerprint {
	return ComputeFingerprint(q)
}

// IndexOf returns the position of id, or -1
func (q *Queue) IndexOf(id domain.SubtaskID) int {
	if q == nil {
		return -1
	}
	for i := range q.Subtasks {
		if q.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a copy of the subtask with the given id
func (q *Queue) Find(id domain.SubtaskID) (Subtask, bool) {
	i := q.IndexOf(id)
	if i < 0 {
		return Subtask{}, false
	}
	return q.Subtasks[i].clone(), true
}

// Pending returns copies of all subtasks that are not done, in queue order
func (q *Queue) Pending() []Subtask {
	if q == nil {
		return nil
	}
	var out []Subtask
	for _, s := range q.Subtasks {
		if !s.Done {
			out = append(out, s.clone())
		}
	}
	return out
}

// Completed returns copies of all done subtasks, in queue order
func (q *Queue) Completed() []Subtask {
	if q == nil {
		return nil
	}
	var out []Subtask
	for _, s := range q.Subtasks {
		if s.Done {
			out = append(out, s.clone())
		}
	}
	return out
}

// Runnable returns pending subtasks minus the skipped ids. The build loop
// consumes this instead of Pending so validation skips take effect before
// the removal proposal is applied.
func (q *Queue) Runnable(skipped map[domain.SubtaskID]bool) []Subtask {
	var out []Subtask
	for _, s := range q.Pending() {
		if skipped[s.ID] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// MaxNumber returns the highest numeric ID suffix present, done items included
func (q *Queue) MaxNumber() int {
	max := 0
	if q == nil {
		return max
	}
	for _, s := range q.Subtasks {
		if n, ok := s.ID.Number(); ok && n > max {
			max = n
		}
	}
	return max
}

// NextID returns the ID the next create or split would allocate
func (q *Queue) NextID() domain.SubtaskID {
	return domain.FormatSubtaskID(q.MaxNumber() + 1)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
