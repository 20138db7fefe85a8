// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"context"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Generator abstracts the text-generation collaborator so tests can supply
// a mock. Implementations classify their own failures; they never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) Result
}

// Outcome classifies a generation attempt.
type Outcome int

const (
	// OutcomeSuccess carries generated text.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable is a transient failure (rate limit, overload,
	// timeout) worth retrying with backoff.
	OutcomeRetryable
	// OutcomeFatal is a validation or permission failure; retrying cannot
	// help.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Result is the explicit outcome of one generation attempt.
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Success returns a successful result.
func Success(text string) Result { return Result{Outcome: OutcomeSuccess, Text: text} }

// Retryable returns a transient failure.
func Retryable(err error) Result { return Result{Outcome: OutcomeRetryable, Err: err} }

// Fatal returns a failure that must not be retried.
func Fatal(err error) Result { return Result{Outcome: OutcomeFatal, Err: err} }

// UpstreamText is the locked text of a section the target depends on.
type UpstreamText struct {
	Kind types.SectionKind
	Text string
}

// Request is everything one generation call may see. It is packaged per
// section: only the facts relevant to that section, only locked upstream
// text, and references only on the body pass.
type Request struct {
	Section types.SectionKind
	Phase   types.Phase

	JournalName  string
	ArticleType  string
	WordRange    types.WordRange
	Abstract     types.AbstractSpec
	InTextFormat types.InTextFormat

	Facts    []types.Fact
	Upstream []UpstreamText

	// References is the confirmed set; empty on the outline pass.
	References []types.ReferenceCandidate

	// Outline is the section's current outline, sent on the body pass.
	Outline string

	// Revision is the section revision the request was built against.
	Revision int
}
