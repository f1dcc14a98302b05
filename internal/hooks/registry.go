package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/cadence/internal/log"
)

// Registry maps event types to hooks and dispatches events to them
type Registry struct {
	mu        sync.RWMutex
	hooks     map[EventType][]Hook
	factories map[string]HookFactory
	executor  *Executor
	logger    *log.Logger
}

// NewRegistry creates a registry with the script and webhook factories installed
func NewRegistry(logger *log.Logger) *Registry {
	r := &Registry{
		hooks:     make(map[EventType][]Hook),
		factories: make(map[string]HookFactory),
		executor:  NewExecutor(),
		logger:    log.OrDefault(logger).Component("hooks"),
	}
	r.RegisterFactory("script", NewScriptHook)
	r.RegisterFactory("webhook", NewWebhookHook)
	return r
}

// FromConfig builds a registry from the configured hook list
func FromConfig(configs []HookConfig, logger *log.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for i := range configs {
		if err := r.RegisterFromConfig(&configs[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterFactory registers a hook factory
func (r *Registry) RegisterFactory(hookType string, factory HookFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hookType] = factory
}

// Register adds a hook for each event it subscribes to. Disabled hooks are ignored.
func (r *Registry) Register(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if !hook.Enabled() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, eventType := range hook.EventTypes() {
		r.hooks[eventType] = append(r.hooks[eventType], hook)
	}
	return nil
}

// RegisterFromConfig creates and registers a hook from configuration
func (r *Registry) RegisterFromConfig(config *HookConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if !config.Enabled {
		return nil
	}
	for _, ev := range config.Events {
		if !IsKnownEvent(ev) {
			return fmt.Errorf("hook %s: unknown event %q", config.Name, ev)
		}
	}

	r.mu.RLock()
	factory, ok := r.factories[config.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown hook type: %s", config.Type)
	}

	hook, err := factory(config)
	if err != nil {
		return fmt.Errorf("failed to create hook %s: %w", config.Name, err)
	}
	return r.Register(hook)
}

// Trigger runs all hooks registered for the event and returns their results
func (r *Registry) Trigger(ctx context.Context, event *Event) []ExecutionResult {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks[event.Type]...)
	r.mu.RUnlock()

	return r.executor.ExecuteAll(ctx, hooks, event)
}

// Notify builds an event, triggers it and logs failed hooks at WARN.
// It never returns an error: notification problems must not stop a workflow.
func (r *Registry) Notify(ctx context.Context, eventType EventType, workflow string, data map[string]any) {
	if r == nil {
		return
	}
	results := r.Trigger(ctx, NewEvent(eventType, workflow, data))
	for _, res := range results {
		if res.Success {
			r.logger.Debug("hook delivered", "hook", res.HookName, "event", string(res.EventType), "duration", res.Duration)
			continue
		}
		r.logger.Warn("hook failed", "hook", res.HookName, "event", string(res.EventType), "error", res.Error)
	}
}

// HasHooksFor checks if there are any hooks registered for an event type
func (r *Registry) HasHooksFor(eventType EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[eventType]) > 0
}

// Count returns the number of distinct registered hooks
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, hooks := range r.hooks {
		for _, h := range hooks {
			seen[h.Name()] = true
		}
	}
	return len(seen)
}
