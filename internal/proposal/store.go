// Package proposal persists queue proposals as artifacts and applies them to
// the live queue file: load, fingerprint-gated apply, save, audit.
package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/audit"
	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/queue"
)

// Notifier receives a notification after a proposal changed the queue
type Notifier interface {
	Notify(ctx context.Context, eventType hooks.EventType, workflow string, data map[string]any)
}

// Store binds the proposal protocol to one workflow's queue file
type Store struct {
	queuePath string
	dir       string
	audit     *audit.Logger
	notifier  Notifier
	logger    *log.Logger
}

// NewStore creates a store. Artifacts go to dir; records go to auditLog.
func NewStore(queuePath, dir string, auditLog *audit.Logger, logger *log.Logger) *Store {
	return &Store{
		queuePath: queuePath,
		dir:       dir,
		audit:     auditLog,
		logger:    log.OrDefault(logger).Component("proposal"),
	}
}

// WithNotifier sets the notifier fired after a successful apply
func (s *Store) WithNotifier(n Notifier) *Store {
	s.notifier = n
	return s
}

// QueuePath returns the queue file the store applies to
func (s *Store) QueuePath() string {
	return s.queuePath
}

// LoadQueue reads the live queue
func (s *Store) LoadQueue() (*queue.Queue, error) {
	return queue.Load(s.queuePath)
}

// ApplyResult summarizes one apply attempt
type ApplyResult struct {
	ProposalID        string `json:"proposalId"`
	Applied           bool   `json:"applied"`
	Stale             bool   `json:"stale"`
	CountBefore       int    `json:"countBefore"`
	CountAfter        int    `json:"countAfter"`
	FingerprintBefore string `json:"fingerprintBefore"`
	FingerprintAfter  string `json:"fingerprintAfter"`
}

// Apply loads the queue, applies p if the queue still has p's fingerprint,
// saves the result and records a queue-apply audit event. A stale proposal
// is a no-op: the file is left alone and the result says Stale.
// An invariant violation aborts with the error and leaves the file alone.
func (s *Store) Apply(ctx context.Context, p *queue.Proposal) (*ApplyResult, error) {
	if p == nil {
		return nil, errors.New(errors.ErrCodeProposalInvalid, "proposal is nil")
	}

	q, err := s.LoadQueue()
	if err != nil {
		return nil, err
	}

	before := q.Fingerprint()
	result := &ApplyResult{
		ProposalID:        p.ID,
		CountBefore:       q.Len(),
		CountAfter:        q.Len(),
		FingerprintBefore: before.Hash,
		FingerprintAfter:  before.Hash,
	}

	mismatch := queue.DetectMismatch(p, q)
	if mismatch.Mismatched {
		result.Stale = true
		s.logger.Warn("proposal is stale, skipping",
			"proposal", p.ID,
			"source", string(p.Source),
			"proposal_fingerprint", mismatch.Proposal.Short(),
			"queue_fingerprint", mismatch.Current.Short())
		s.record(audit.TypeQueueApply, p, result, nil)
		return result, nil
	}

	next, err := queue.ApplyProposal(q, p)
	if err != nil {
		s.record(audit.TypeQueueApply, p, result, err)
		return nil, err
	}

	if err := queue.Save(s.queuePath, next); err != nil {
		return nil, err
	}

	after := next.Fingerprint()
	result.Applied = true
	result.CountAfter = next.Len()
	result.FingerprintAfter = after.Hash

	s.logger.Info("proposal applied",
		"proposal", p.ID,
		"source", string(p.Source),
		"operations", len(p.Operations),
		"count_before", result.CountBefore,
		"count_after", result.CountAfter)
	s.record(audit.TypeQueueApply, p, result, nil)

	if s.notifier != nil {
		s.notifier.Notify(ctx, hooks.EventProposalApplied, s.workflow(), map[string]any{
			"proposal_id": p.ID,
			"source":      string(p.Source),
			"operations":  len(p.Operations),
			"count_after": result.CountAfter,
		})
	}
	return result, nil
}

// Propose persists p as an artifact without applying it and records a
// queue-proposal audit event. It returns the artifact path.
func (s *Store) Propose(_ context.Context, p *queue.Proposal) (string, error) {
	path, err := s.Save(p)
	if err != nil {
		return "", err
	}
	s.record(audit.TypeQueueProposal, p, nil, nil, "artifact", path)
	return path, nil
}

// Save writes p to <dir>/<timestamp>-<source>-<id8>.json
func (s *Store) Save(p *queue.Proposal) (string, error) {
	if p == nil {
		return "", errors.New(errors.ErrCodeProposalInvalid, "proposal is nil")
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "create proposals directory", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileMarshal, "marshal proposal", err)
	}

	path := filepath.Join(s.dir, ArtifactName(p))
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "write proposal artifact", err)
	}
	return path, nil
}

// ArtifactName is the file name a proposal is saved under
func ArtifactName(p *queue.Proposal) string {
	id := strings.ReplaceAll(p.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.json", p.Timestamp.UTC().Format("20060102T150405Z"), p.Source, id)
}

// LoadArtifact reads and validates a proposal artifact
func LoadArtifact(path string) (*queue.Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeProposalNotFound, fmt.Sprintf("proposal artifact not found: %s", path))
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read proposal artifact", err)
	}

	var p queue.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "JSON", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks an externally supplied proposal before it is applied
func Validate(p *queue.Proposal) error {
	if p.Fingerprint.Hash == "" {
		return errors.New(errors.ErrCodeProposalInvalid, "proposal has no fingerprint").
			WithSuggestion("Generate proposals with `cadence queue propose` so they carry the queue fingerprint")
	}
	switch p.Source {
	case queue.SourceValidation, queue.SourceCalibration, queue.SourceManual:
	default:
		return errors.New(errors.ErrCodeProposalInvalid, fmt.Sprintf("unknown proposal source %q", p.Source))
	}
	for i, op := range p.Operations {
		if err := op.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeProposalInvalid, fmt.Sprintf("operation %d", i), err)
		}
	}
	return nil
}

// List returns artifact paths, oldest first
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Store) workflow() string {
	if s.audit == nil {
		return ""
	}
	return s.audit.Workflow()
}

// record writes an audit record. Audit failures are logged, not returned:
// the queue file is the source of truth and has already been written.
func (s *Store) record(t audit.RecordType, p *queue.Proposal, res *ApplyResult, applyErr error, extra ...any) {
	if s.audit == nil {
		return
	}

	fields := map[string]any{
		"proposalId":  p.ID,
		"source":      string(p.Source),
		"fingerprint": p.Fingerprint.Hash,
		"operations":  len(p.Operations),
		"byType":      queue.Summarize(p.Operations),
	}
	if res != nil {
		fields["applied"] = res.Applied
		fields["stale"] = res.Stale
		fields["countBefore"] = res.CountBefore
		fields["countAfter"] = res.CountAfter
		fields["fingerprintBefore"] = res.FingerprintBefore
		fields["fingerprintAfter"] = res.FingerprintAfter
	}
	if applyErr != nil {
		fields["error"] = applyErr.Error()
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			fields[k] = extra[i+1]
		}
	}

	if _, err := s.audit.Record(t, fields); err != nil {
		s.logger.WithError(err).Warn("failed to write audit record", "type", string(t))
	}
}
