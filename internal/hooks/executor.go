package hooks

import (
	"context"
	"sync"
	"time"
)

// timeoutHook is implemented by hooks that carry their own timeout
type timeoutHook interface {
	Timeout() time.Duration
}

// Executor runs hooks concurrently, each bounded by a timeout
type Executor struct {
	maxConcurrency int
	defaultTimeout time.Duration
}

// NewExecutor creates a new hook executor
func NewExecutor() *Executor {
	return &Executor{
		maxConcurrency: 4,
		defaultTimeout: DefaultTimeout,
	}
}

// ExecuteAll runs every hook for an event and returns results in hook order
func (e *Executor) ExecuteAll(ctx context.Context, hooks []Hook, event *Event) []ExecutionResult {
	if len(hooks) == 0 {
		return nil
	}

	results := make([]ExecutionResult, len(hooks))
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup

	for i, hook := range hooks {
		wg.Add(1)
		go func(index int, h Hook) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[index] = e.Execute(ctx, h, event)
		}(i, hook)
	}

	wg.Wait()
	return results
}

// Execute runs a single hook
func (e *Executor) Execute(ctx context.Context, hook Hook, event *Event) ExecutionResult {
	result := ExecutionResult{
		HookName:  hook.Name(),
		EventType: event.Type,
		Timestamp: time.Now(),
	}

	timeout := e.defaultTimeout
	if th, ok := hook.(timeoutHook); ok && th.Timeout() > 0 {
		timeout = th.Timeout()
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := hook.Execute(hookCtx, event)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}
	return result
}

// SetMaxConcurrency sets the maximum number of concurrent hook executions
func (e *Executor) SetMaxConcurrency(max int) {
	if max < 1 {
		max = 1
	}
	e.maxConcurrency = max
}

// SetDefaultTimeout sets the timeout for hooks without their own
func (e *Executor) SetDefaultTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e.defaultTimeout = timeout
}
