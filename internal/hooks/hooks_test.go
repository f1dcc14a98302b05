package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/log"
)

type fakeHook struct {
	name    string
	events  []EventType
	err     error
	delay   time.Duration
	timeout time.Duration
	calls   atomic.Int32
}

func (h *fakeHook) Name() string            { return h.name }
func (h *fakeHook) EventTypes() []EventType { return h.events }
func (h *fakeHook) Enabled() bool           { return true }
func (h *fakeHook) Timeout() time.Duration  { return h.timeout }

func (h *fakeHook) Execute(ctx context.Context, _ *Event) error {
	h.calls.Add(1)
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.err
}

func TestRegistryTriggersSubscribedHooks(t *testing.T) {
	r := NewRegistry(log.Discard())
	ok := &fakeHook{name: "ok", events: []EventType{EventValidationFailed}}
	other := &fakeHook{name: "other", events: []EventType{EventCascadeComplete}}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(other))

	results := r.Trigger(context.Background(), NewEvent(EventValidationFailed, "wf", nil))

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(0), other.calls.Load())
	assert.Equal(t, 2, r.Count())
}

func TestNotifySwallowsFailures(t *testing.T) {
	r := NewRegistry(log.Discard())
	failing := &fakeHook{name: "bad", events: []EventType{EventGateNotify}, err: errors.New("boom")}
	require.NoError(t, r.Register(failing))

	r.Notify(context.Background(), EventGateNotify, "wf", map[string]any{"gate": "createTasks"})
	assert.Equal(t, int32(1), failing.calls.Load())

	var nilRegistry *Registry
	nilRegistry.Notify(context.Background(), EventGateNotify, "wf", nil)
}

func TestExecutorHonorsHookTimeout(t *testing.T) {
	e := NewExecutor()
	slow := &fakeHook{name: "slow", delay: time.Second, timeout: 10 * time.Millisecond}

	res := e.Execute(context.Background(), slow, NewEvent(EventCascadeFailed, "wf", nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "deadline")
}

func TestRegisterFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  HookConfig
		wantErr string
	}{
		{
			name:   "disabled hook is skipped",
			config: HookConfig{Name: "x", Type: "nope", Enabled: false},
		},
		{
			name:    "unknown type",
			config:  HookConfig{Name: "x", Type: "carrier-pigeon", Enabled: true},
			wantErr: "unknown hook type",
		},
		{
			name:    "unknown event",
			config:  HookConfig{Name: "x", Type: "script", Enabled: true, Events: []EventType{"on_lunch"}},
			wantErr: "unknown event",
		},
		{
			name:    "script without path",
			config:  HookConfig{Name: "x", Type: "script", Enabled: true, Config: map[string]any{}},
			wantErr: "script path required",
		},
		{
			name: "webhook",
			config: HookConfig{
				Name: "x", Type: "webhook", Enabled: true,
				Events: []EventType{EventApprovalRequired},
				Config: map[string]any{"url": "http://localhost:1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(log.Discard())
			err := r.RegisterFromConfig(&tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWebhookHookPostsEvent(t *testing.T) {
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Setenv("CADENCE_TEST_TOKEN", "secret")
	hook, err := NewWebhookHook(&HookConfig{
		Name:    "hook",
		Enabled: true,
		Config: map[string]any{
			"url":     srv.URL,
			"headers": map[string]any{"Authorization": "Bearer ${CADENCE_TEST_TOKEN}"},
		},
	})
	require.NoError(t, err)

	err = hook.Execute(context.Background(), NewEvent(EventProposalApplied, "wf", map[string]any{"source": "validation"}))
	require.NoError(t, err)
	assert.Equal(t, EventProposalApplied, got.Type)
	assert.Equal(t, "validation", got.Data["source"])
	assert.Equal(t, "Bearer secret", auth)
}

func TestWebhookHookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook, err := NewWebhookHook(&HookConfig{Name: "hook", Config: map[string]any{"url": srv.URL}})
	require.NoError(t, err)

	err = hook.Execute(context.Background(), NewEvent(EventCascadeFailed, "wf", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestScriptHookReceivesEnv(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	script := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo \"$HOOK_EVENT_TYPE $HOOK_SUBTASK_ID $HOOK_ISSUE_TYPE\" > "+out+"\n"), 0700))

	hook, err := NewScriptHook(&HookConfig{Name: "s", Enabled: true, Config: map[string]any{"script": script}})
	require.NoError(t, err)

	event := NewEvent(EventValidationFailed, "wf", map[string]any{"subtaskId": "SUB-010", "issue_type": "scope_creep"})
	require.NoError(t, hook.Execute(context.Background(), event))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "on_validation_failed SUB-010 scope_creep", strings.TrimSpace(string(data)))
}

func TestEventEnvKeys(t *testing.T) {
	env := eventEnv(NewEvent(EventGateNotify, "wf", map[string]any{
		"gate":     "createTasks",
		"count":    3,
		"feedback": map[string]any{"ignored": true},
	}))

	assert.Contains(t, env, "HOOK_GATE=createTasks")
	assert.Contains(t, env, "HOOK_COUNT=3")
	assert.Contains(t, env, "HOOK_WORKFLOW=wf")
	for _, kv := range env {
		assert.NotContains(t, kv, "FEEDBACK")
	}
}
