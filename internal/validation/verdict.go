package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/reviewer"
)

// IssueType classifies a misalignment
type IssueType string

const (
	IssueScopeCreep IssueType = "scope_creep"
	IssueTooBroad   IssueType = "too_broad"
	IssueTooNarrow  IssueType = "too_narrow"
	IssueUnfaithful IssueType = "unfaithful"
)

// Known reports whether t is one of the four documented classifications
func (t IssueType) Known() bool {
	switch t {
	case IssueScopeCreep, IssueTooBroad, IssueTooNarrow, IssueUnfaithful:
		return true
	}
	return false
}

// Verdict is the reviewer's judgement of one subtask. It is one of
// Aligned, Misaligned or ParseFailure.
type Verdict interface {
	isVerdict()
}

// Aligned means the subtask may run as written
type Aligned struct{}

// Misaligned means the reviewer found a problem
type Misaligned struct {
	IssueType  IssueType
	Reason     string
	Suggestion string
}

// ParseFailure is a reply that could not be read as a verdict
type ParseFailure struct {
	Raw string
	Err error
}

func (Aligned) isVerdict()      {}
func (Misaligned) isVerdict()   {}
func (ParseFailure) isVerdict() {}

type verdictReply struct {
	Aligned    *bool     `json:"aligned"`
	IssueType  IssueType `json:"issue_type"`
	Reason     string    `json:"reason"`
	Suggestion string    `json:"suggestion"`
}

// ParseVerdict reads a reviewer reply. It never fails: anything it cannot
// understand, including a missing "aligned" field, is a ParseFailure.
func ParseVerdict(text string) Verdict {
	raw := reviewer.ExtractJSON(text)
	if raw == "" {
		return ParseFailure{Raw: text, Err: fmt.Errorf("no JSON object in reply")}
	}

	var r verdictReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return ParseFailure{Raw: text, Err: err}
	}
	if r.Aligned == nil {
		return ParseFailure{Raw: text, Err: fmt.Errorf(`reply has no "aligned" field`)}
	}
	if *r.Aligned {
		return Aligned{}
	}

	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		reason = "no reason given"
	}
	return Misaligned{
		IssueType:  IssueType(strings.TrimSpace(string(r.IssueType))),
		Reason:     reason,
		Suggestion: strings.TrimSpace(r.Suggestion),
	}
}

// Resolve collapses a verdict to Aligned or Misaligned. A ParseFailure
// resolves to Aligned; failed reports whether that happened.
func Resolve(v Verdict) (resolved Verdict, failed bool) {
	switch v := v.(type) {
	case Misaligned:
		return v, false
	case ParseFailure:
		return Aligned{}, true
	default:
		return Aligned{}, false
	}
}
