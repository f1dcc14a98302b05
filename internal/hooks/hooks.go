// Package hooks delivers workflow notifications to user-configured scripts
// and webhooks. Hook failures are reported, never fatal to the caller.
package hooks

import (
	"context"
	"time"
)

// EventType names a notification
type EventType string

const (
	// EventValidationFailed fires once per subtask skipped by validation
	EventValidationFailed EventType = "on_validation_failed"

	// EventApprovalRequired fires when a cascade stops at a checkpoint-and-exit gate
	EventApprovalRequired EventType = "on_approval_required"

	// EventGateNotify fires for gates whose policy is notify
	EventGateNotify EventType = "on_gate_notify"

	EventCascadeComplete EventType = "on_cascade_complete"
	EventCascadeFailed   EventType = "on_cascade_failed"

	// EventCalibrationDrift fires when calibration proposes corrective subtasks
	EventCalibrationDrift EventType = "on_calibration_drift"

	// EventProposalApplied fires after a proposal changed the queue
	EventProposalApplied EventType = "on_proposal_applied"
)

// EventTypes lists every event a hook may subscribe to
var EventTypes = []EventType{
	EventValidationFailed,
	EventApprovalRequired,
	EventGateNotify,
	EventCascadeComplete,
	EventCascadeFailed,
	EventCalibrationDrift,
	EventProposalApplied,
}

// Event is the payload handed to hooks
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Workflow  string         `json:"workflow"`
	Data      map[string]any `json:"data"`
}

// Hook handles events it subscribed to
type Hook interface {
	Name() string
	EventTypes() []EventType
	Execute(ctx context.Context, event *Event) error
	Enabled() bool
}

// HookConfig is one entry of the hooks section in .cadence/config.yaml
type HookConfig struct {
	Name string `yaml:"name" json:"name"`

	// Type selects the factory: script or webhook
	Type string `yaml:"type" json:"type"`

	Events  []EventType    `yaml:"events" json:"events"`
	Enabled bool           `yaml:"enabled" json:"enabled"`
	Config  map[string]any `yaml:"config" json:"config"`

	// Timeout bounds a single execution; zero means DefaultTimeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ExecutionResult reports how one hook handled one event
type ExecutionResult struct {
	HookName  string        `json:"hookName"`
	EventType EventType     `json:"eventType"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// HookFactory creates hooks from configuration
type HookFactory func(config *HookConfig) (Hook, error)

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// IsKnownEvent reports whether t is a defined event type
func IsKnownEvent(t EventType) bool {
	for _, known := range EventTypes {
		if known == t {
			return true
		}
	}
	return false
}

// NewEvent creates a new event
func NewEvent(eventType EventType, workflow string, data map[string]any) *Event {
	if data == nil {
		data = map[string]any{}
	}
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Workflow:  workflow,
		Data:      data,
	}
}

// GetString gets a string value from event data
func (e *Event) GetString(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}
