package reviewer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// DefaultAnthropicModel is used when reviewer.model is empty
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicReviewer sends the prompt as a single user message
type AnthropicReviewer struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicReviewer creates a Messages API reviewer. ANTHROPIC_API_KEY
// takes precedence over apiKey.
func NewAnthropicReviewer(apiKey, model string, maxTokens int, opts ...option.RequestOption) (*AnthropicReviewer, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, errors.NewReviewerConfigError("ANTHROPIC_API_KEY is not set")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicReviewer{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}, nil
}

// Review implements Reviewer
func (a *AnthropicReviewer) Review(ctx context.Context, prompt string) (*Reply, error) {
	start := time.Now()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New(errors.ErrCodeReviewMalformed, fmt.Sprintf("no text content in reply (%d blocks)", len(message.Content)))
	}

	return &Reply{
		Text:         text.String(),
		Duration:     time.Since(start),
		Model:        string(message.Model),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
