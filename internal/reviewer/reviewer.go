// Package reviewer calls the external model that judges subtasks and
// detects drift. Callers see an opaque text reply plus cost and duration.
package reviewer

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/config"
	"github.com/felixgeelhaar/cadence/internal/errors"
)

// Reviewer answers a prompt with free text
type Reviewer interface {
	Review(ctx context.Context, prompt string) (*Reply, error)
}

// Reply is what came back from one reviewer call
type Reply struct {
	Text         string        `json:"text"`
	CostUSD      float64       `json:"costUsd"`
	Duration     time.Duration `json:"duration"`
	Model        string        `json:"model,omitempty"`
	InputTokens  int64         `json:"inputTokens,omitempty"`
	OutputTokens int64         `json:"outputTokens,omitempty"`
}

// Func adapts a function to the Reviewer interface
type Func func(ctx context.Context, prompt string) (*Reply, error)

func (f Func) Review(ctx context.Context, prompt string) (*Reply, error) {
	return f(ctx, prompt)
}

// Invoke calls r with a deadline. A missed deadline is reported as
// ErrCodeReviewTimeout, any other failure as ErrCodeReviewFailed.
func Invoke(ctx context.Context, r Reviewer, prompt string, timeout time.Duration) (*Reply, error) {
	if r == nil {
		return nil, errors.NewReviewerConfigError("no reviewer configured")
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := r.Review(callCtx, prompt)
	elapsed := time.Since(start)

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrCodeReviewTimeout, fmt.Sprintf("reviewer did not answer within %s", timeout), err)
		}
		if _, coded := errors.CodeOf(err); coded {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeReviewFailed, "reviewer call failed", err)
	}
	if reply == nil {
		return nil, errors.New(errors.ErrCodeReviewMalformed, "reviewer returned no reply")
	}
	if reply.Duration == 0 {
		reply.Duration = elapsed
	}
	return reply, nil
}

// New builds the reviewer selected in configuration
func New(cfg config.ReviewerConfig) (Reviewer, error) {
	switch cfg.Kind {
	case config.ReviewerExecutable, "":
		r, err := NewExecutableReviewer(cfg.Command, cfg.Model)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.ReviewerAnthropic:
		r, err := NewAnthropicReviewer("", cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, errors.NewReviewerConfigError(fmt.Sprintf("unknown reviewer kind %q", cfg.Kind))
	}
}
