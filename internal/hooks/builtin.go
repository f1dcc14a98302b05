package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// ScriptHook runs a script with the event exposed as HOOK_* environment variables
type ScriptHook struct {
	name       string
	eventTypes []EventType
	enabled    bool
	timeout    time.Duration
	scriptPath string
	args       []string
	shell      string
}

// NewScriptHook creates a script hook. config.script is required; args and
// shell are optional.
func NewScriptHook(config *HookConfig) (Hook, error) {
	scriptPath, ok := config.Config["script"].(string)
	if !ok || scriptPath == "" {
		return nil, fmt.Errorf("script path required")
	}

	hook := &ScriptHook{
		name:       config.Name,
		eventTypes: config.Events,
		enabled:    config.Enabled,
		timeout:    config.Timeout,
		scriptPath: scriptPath,
		shell:      "/bin/sh",
	}

	if list, ok := config.Config["args"].([]any); ok {
		for _, arg := range list {
			if s, ok := arg.(string); ok {
				hook.args = append(hook.args, s)
			}
		}
	}
	if shell, ok := config.Config["shell"].(string); ok && shell != "" {
		hook.shell = shell
	}

	return hook, nil
}

func (h *ScriptHook) Name() string            { return h.name }
func (h *ScriptHook) EventTypes() []EventType { return h.eventTypes }
func (h *ScriptHook) Enabled() bool           { return h.enabled }
func (h *ScriptHook) Timeout() time.Duration  { return h.timeout }

func (h *ScriptHook) Execute(ctx context.Context, event *Event) error {
	args := append([]string{h.scriptPath}, h.args...)
	cmd := exec.CommandContext(ctx, h.shell, args...)
	cmd.Env = append(os.Environ(), eventEnv(event)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// eventEnv renders HOOK_EVENT_TYPE, HOOK_WORKFLOW and one HOOK_<KEY> per
// scalar data value, sorted by key.
func eventEnv(event *Event) []string {
	env := []string{
		"HOOK_EVENT_TYPE=" + string(event.Type),
		"HOOK_WORKFLOW=" + event.Workflow,
	}

	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var value string
		switch v := event.Data[k].(type) {
		case string:
			value = v
		case fmt.Stringer:
			value = v.String()
		case bool, int, int64, float64:
			value = fmt.Sprint(v)
		default:
			continue
		}
		env = append(env, fmt.Sprintf("HOOK_%s=%s", envKey(k), value))
	}
	return env
}

func envKey(k string) string {
	var b strings.Builder
	for i, r := range k {
		switch {
		case r >= 'A' && r <= 'Z' && i > 0:
			b.WriteByte('_')
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// WebhookHook POSTs the event as JSON
type WebhookHook struct {
	name       string
	eventTypes []EventType
	enabled    bool
	timeout    time.Duration
	url        string
	headers    map[string]string
	client     *http.Client
}

// NewWebhookHook creates a webhook hook. config.url is required; headers is optional.
func NewWebhookHook(config *HookConfig) (Hook, error) {
	url, ok := config.Config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}

	hook := &WebhookHook{
		name:       config.Name,
		eventTypes: config.Events,
		enabled:    config.Enabled,
		timeout:    config.Timeout,
		url:        url,
		headers:    make(map[string]string),
		client:     &http.Client{},
	}

	if headers, ok := config.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				hook.headers[k] = os.ExpandEnv(s)
			}
		}
	}

	return hook, nil
}

func (h *WebhookHook) Name() string            { return h.name }
func (h *WebhookHook) EventTypes() []EventType { return h.eventTypes }
func (h *WebhookHook) Enabled() bool           { return h.enabled }
func (h *WebhookHook) Timeout() time.Duration  { return h.timeout }

func (h *WebhookHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
