package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// SubtaskID identifies a subtask in the queue, e.g. "SUB-007".
// This is a value object that enforces the SUB-<n> format.
type SubtaskID string

// SubtaskIDPrefix is the fixed prefix of every subtask identifier
const SubtaskIDPrefix = "SUB-"

var subtaskIDPattern = regexp.MustCompile(`^SUB-(\d+)$`)

// NewSubtaskID creates a new SubtaskID value object with validation
func NewSubtaskID(value string) (SubtaskID, error) {
	id := SubtaskID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// FormatSubtaskID renders the identifier for the n-th subtask, zero-padded to three digits
func FormatSubtaskID(n int) SubtaskID {
	return SubtaskID(fmt.Sprintf("%s%03d", SubtaskIDPrefix, n))
}

// Validate checks if the subtask ID is valid
func (s SubtaskID) Validate() error {
	if s == "" {
		return fmt.Errorf("subtask ID cannot be empty")
	}
	if !subtaskIDPattern.MatchString(string(s)) {
		return fmt.Errorf("subtask ID %q must look like SUB-<number>", string(s))
	}
	return nil
}

// Number returns the numeric suffix, or false if the ID is malformed
func (s SubtaskID) Number() (int, bool) {
	m := subtaskIDPattern.FindStringSubmatch(string(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the string representation
func (s SubtaskID) String() string {
	return string(s)
}
