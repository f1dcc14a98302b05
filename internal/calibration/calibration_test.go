package calibration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/audit"
	"github.com/felixgeelhaar/cadence/internal/cascade"
	"github.com/felixgeelhaar/cadence/internal/domain"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/proposal"
	"github.com/felixgeelhaar/cadence/internal/queue"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
)

const driftReply = "```json\n" + `{
  "drift_detected": true,
  "summary": "Login shipped without session expiry.",
  "insert": "prepend",
  "corrective_subtasks": [
    {"title": "Expire sessions", "acceptanceCriteria": ["sessions expire after 30m"]},
    {"title": "Test expiry", "acceptanceCriteria": ["expiry test passes"]},
    {"title": "", "acceptanceCriteria": ["dropped"]}
  ]
}` + "\n```"

type recordingNotifier struct {
	events []hooks.EventType
}

func (n *recordingNotifier) Notify(_ context.Context, t hooks.EventType, _ string, _ map[string]any) {
	n.events = append(n.events, t)
}

type fakePrompter struct {
	interactive bool
	confirm     bool
}

func (p *fakePrompter) Interactive() bool { return p.interactive }

func (p *fakePrompter) Confirm(context.Context, string, bool) (bool, error) {
	return p.confirm, nil
}

func subtask(n int, done bool) queue.Subtask {
	return queue.Subtask{
		ID:                 domain.FormatSubtaskID(n),
		Title:              fmt.Sprintf("Subtask %d", n),
		AcceptanceCriteria: []string{"ok"},
		Done:               done,
	}
}

type fixture struct {
	store    *proposal.Store
	audit    *audit.Logger
	notifier *recordingNotifier
	path     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	require.NoError(t, queue.Save(path, queue.New(subtask(1, true), subtask(2, false), subtask(3, false))))

	auditLog := audit.NewLogger("wf", filepath.Join(dir, "logs"))
	notifier := &recordingNotifier{}
	return &fixture{
		store:    proposal.NewStore(path, filepath.Join(dir, "proposals"), auditLog, log.Discard()).WithNotifier(notifier),
		audit:    auditLog,
		notifier: notifier,
		path:     path,
	}
}

func (f *fixture) calibrator(text string, mutate func(*Options)) *Calibrator {
	opts := Options{
		Workflow: "wf",
		Reviewer: reviewer.Func(func(context.Context, string) (*reviewer.Reply, error) {
			return &reviewer.Reply{Text: text, CostUSD: 0.02}, nil
		}),
		Timeout:  time.Second,
		Store:    f.store,
		Notifier: f.notifier,
		Audit:    f.audit,
		Logger:   log.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func ids(t *testing.T, path string) []string {
	t.Helper()
	q, err := queue.Load(path)
	require.NoError(t, err)
	var out []string
	for _, s := range q.Subtasks {
		out = append(out, string(s.ID))
	}
	return out
}

func TestCreateOperations(t *testing.T) {
	drafts := []queue.Draft{{Title: "a"}, {Title: "b"}}

	prepend := CreateOperations(drafts, Prepend, 5)
	assert.Equal(t, 0, *prepend[0].Index)
	assert.Equal(t, 1, *prepend[1].Index)

	appended := CreateOperations(drafts, Append, 5)
	assert.Equal(t, 5, *appended[0].Index)
	assert.Equal(t, 6, *appended[1].Index)
}

func TestParseReport(t *testing.T) {
	r, err := ParseReport(driftReply)
	require.NoError(t, err)
	assert.True(t, r.DriftDetected)
	assert.Equal(t, Prepend, r.Insert)
	assert.Len(t, r.Corrective, 3)

	r, err = ParseReport(`{"drift_detected": false, "summary": " fine "}`)
	require.NoError(t, err)
	assert.False(t, r.DriftDetected)
	assert.Equal(t, "fine", r.Summary)
	assert.Equal(t, Insert(""), r.Insert)

	_, err = ParseReport(`{"drift_detected": true, "insert": "middle"}`)
	assert.Error(t, err)

	_, err = ParseReport("no idea")
	assert.Error(t, err)
}

func TestDriftPrependsCorrections(t *testing.T) {
	f := newFixture(t)

	res, err := f.calibrator(driftReply, nil).Calibrate(context.Background())
	require.NoError(t, err)

	assert.True(t, res.DriftDetected)
	assert.Equal(t, Prepend, res.Insert)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, gate.AutoContinue, res.Action)
	require.NotNil(t, res.Apply)
	assert.True(t, res.Apply.Applied)
	assert.Equal(t, queue.SourceCalibration, res.Proposal.Source)

	assert.Equal(t, []string{"SUB-004", "SUB-005", "SUB-001", "SUB-002", "SUB-003"}, ids(t, f.path))
	assert.Equal(t, []hooks.EventType{hooks.EventCalibrationDrift, hooks.EventProposalApplied}, f.notifier.events)

	records, err := f.audit.Read(time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, audit.TypeQueueProposal, records[0].Type)
	assert.Equal(t, audit.TypeQueueApply, records[1].Type)
	assert.Equal(t, audit.TypeCalibration, records[2].Type)
	summary, _ := records[2].Get("summary")
	assert.Equal(t, "Login shipped without session expiry.", summary)
	artifact, _ := records[2].Get("artifact")
	assert.Equal(t, res.ArtifactPath, artifact)
	assert.FileExists(t, res.ArtifactPath)
	assert.Empty(t, res.ApplyCommand)
}

func TestEveryGatePathPersistsProposal(t *testing.T) {
	tests := []struct {
		name     string
		policy   gate.Policy
		prompter *fakePrompter
		action   gate.Action
		applied  bool
	}{
		{name: "auto", policy: gate.Always, action: gate.AutoContinue, applied: true},
		{name: "notify", policy: gate.Notify, action: gate.NotifyAndContinue, applied: true},
		{name: "prompt approved", policy: gate.Manual, prompter: &fakePrompter{interactive: true, confirm: true}, action: gate.Prompt, applied: true},
		{name: "prompt rejected", policy: gate.Manual, prompter: &fakePrompter{interactive: true}, action: gate.Prompt},
		{name: "staged", policy: gate.Manual, action: gate.CheckpointAndExit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			policies := gate.DefaultPolicies()
			policies[gate.CorrectionTasks] = tt.policy

			res, err := f.calibrator(driftReply, func(o *Options) {
				o.Policies = policies
				if tt.prompter != nil {
					o.Prompter = tt.prompter
				}
			}).Calibrate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.applied, res.Apply != nil)

			artifacts, err := filepath.Glob(filepath.Join(filepath.Dir(f.path), "proposals", "*.json"))
			require.NoError(t, err)
			require.Len(t, artifacts, 1)
			assert.Equal(t, artifacts[0], res.ArtifactPath)

			records, err := f.audit.Read(time.Now().UTC())
			require.NoError(t, err)
			require.NotEmpty(t, records)
			assert.Equal(t, audit.TypeQueueProposal, records[0].Type)
		})
	}
}

func TestDefaultInsertAppends(t *testing.T) {
	f := newFixture(t)
	reply := `{"drift_detected": true, "summary": "gap", "corrective_subtasks": [{"title": "Fill gap", "acceptanceCriteria": ["done"]}]}`

	res, err := f.calibrator(reply, func(o *Options) { o.Insert = Append }).Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Append, res.Insert)
	assert.Equal(t, []string{"SUB-001", "SUB-002", "SUB-003", "SUB-004"}, ids(t, f.path))
}

func TestNoDrift(t *testing.T) {
	f := newFixture(t)

	res, err := f.calibrator(`{"drift_detected": false, "summary": "on track"}`, nil).Calibrate(context.Background())
	require.NoError(t, err)
	assert.False(t, res.DriftDetected)
	assert.Nil(t, res.Proposal)
	assert.Len(t, ids(t, f.path), 3)
	assert.Empty(t, f.notifier.events)
}

func TestReviewerTroubleMeansNoDrift(t *testing.T) {
	f := newFixture(t)

	res, err := f.calibrator("garbage", nil).Calibrate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FailOpen)
	assert.False(t, res.DriftDetected)

	failing := f.calibrator("", func(o *Options) {
		o.Reviewer = reviewer.Func(func(context.Context, string) (*reviewer.Reply, error) {
			return nil, fmt.Errorf("boom")
		})
	})
	res, err = failing.Calibrate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FailOpen)
	assert.Len(t, ids(t, f.path), 3)
}

func TestManualCorrectionGateStages(t *testing.T) {
	f := newFixture(t)
	policies := gate.DefaultPolicies()
	policies[gate.CorrectionTasks] = gate.Manual

	res, err := f.calibrator(driftReply, func(o *Options) { o.Policies = policies }).Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.CheckpointAndExit, res.Action)
	assert.Nil(t, res.Apply)
	assert.True(t, strings.HasPrefix(res.ApplyCommand, "cadence queue apply "))
	assert.FileExists(t, res.ArtifactPath)
	assert.Len(t, ids(t, f.path), 3)
	assert.Contains(t, f.notifier.events, hooks.EventApprovalRequired)
}

func TestPromptedCorrectionsRejected(t *testing.T) {
	f := newFixture(t)
	policies := gate.DefaultPolicies()
	policies[gate.CorrectionTasks] = gate.Manual

	res, err := f.calibrator(driftReply, func(o *Options) {
		o.Policies = policies
		o.Prompter = &fakePrompter{interactive: true, confirm: false}
	}).Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.Prompt, res.Action)
	assert.Nil(t, res.Apply)
	assert.Len(t, ids(t, f.path), 3)
}

func TestCalibratorIsCascadeExecutor(t *testing.T) {
	f := newFixture(t)
	var e cascade.Executor = f.calibrator(driftReply, nil)

	require.NoError(t, e.Execute(context.Background(), cascade.Calibrate, cascade.ExecContext{Workflow: "wf"}))
	assert.Len(t, ids(t, f.path), 5)
}

func TestStagedCorrectionsAwaitApprovalInCascade(t *testing.T) {
	f := newFixture(t)
	policies := gate.DefaultPolicies()
	policies[gate.CorrectionTasks] = gate.Manual
	var e cascade.Executor = f.calibrator(driftReply, func(o *Options) { o.Policies = policies })

	err := e.Execute(context.Background(), cascade.Calibrate, cascade.ExecContext{Workflow: "wf"})
	var pending *cascade.AwaitingApproval
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, gate.CorrectionTasks, pending.Gate)
	assert.FileExists(t, pending.FeedbackPath)
	assert.Equal(t, "cadence queue apply "+pending.FeedbackPath, pending.ResumeCommand)
	assert.Len(t, ids(t, f.path), 3)
}

func TestHistorySource(t *testing.T) {
	q := queue.New(subtask(1, true), subtask(2, true), subtask(3, true), subtask(4, false))

	h := NewHistorySource(t.TempDir(), 2, log.Discard())
	h.run = func(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "git", name)
		assert.Equal(t, []string{"log", "--oneline", "-n", "2"}, args)
		return []byte("abc123 add login\ndef456 add logout\n"), nil
	}

	got := h.Collect(context.Background(), q)
	require.Len(t, got.Completed, 2)
	assert.Equal(t, domain.SubtaskID("SUB-002"), got.Completed[0].ID)
	assert.Equal(t, []string{"abc123 add login", "def456 add logout"}, got.Commits)
	assert.Len(t, got.Pending, 1)

	prompt := BuildPrompt(got)
	assert.Contains(t, prompt, "abc123 add login")
	assert.Contains(t, prompt, `"id": "SUB-004"`)

	h.run = func(context.Context, string, string, ...string) ([]byte, error) {
		return nil, fmt.Errorf("not a git repository")
	}
	assert.Empty(t, h.Collect(context.Background(), q).Commits)
}
