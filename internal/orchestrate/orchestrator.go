// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate drives the text-generation collaborator through the
// two-pass protocol: an outline pass built from facts only, then a body
// pass that may cite the confirmed references with {cite:PMID:<id>}
// placeholders. Sections are generated one at a time in dependency order.
// A failed or cancelled call leaves the section unchanged.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Orchestrator sequences generation calls against one manuscript.
type Orchestrator struct {
	m      *manuscript.Manuscript
	gen    Generator
	cfg    types.GenerationConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New creates an Orchestrator. Zero config fields fall back to the
// defaults; a negative MaxRetries means no retries.
func New(m *manuscript.Manuscript, gen Generator, cfg types.GenerationConfig, opts ...Option) *Orchestrator {
	def := types.DefaultGenerationConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	o := &Orchestrator{m: m, gen: gen, cfg: cfg, logger: zap.NewNop(), sleep: sleepCtx}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BuildRequest packages the context for one call. It fails with the
// manuscript's readiness error when the pass may not run yet.
func (o *Orchestrator) BuildRequest(kind types.SectionKind, phase types.Phase) (Request, error) {
	if err := o.m.CheckReady(kind, phase); err != nil {
		return Request{}, err
	}
	s, err := o.m.Section(kind)
	if err != nil {
		return Request{}, err
	}

	j := o.m.Journal
	req := Request{
		Section:      kind,
		Phase:        phase,
		JournalName:  j.Name,
		ArticleType:  j.ArticleType,
		WordRange:    j.WordLimits[kind],
		Abstract:     j.Abstract,
		InTextFormat: j.InTextFormat,
		Facts:        o.m.Registry.FactsFor(kind),
		Revision:     s.Revision,
	}
	for _, up := range o.m.Graph().Upstream(kind) {
		if text, ok := o.m.LockedText(up); ok {
			req.Upstream = append(req.Upstream, UpstreamText{Kind: up, Text: text})
		}
	}
	if phase == types.PhaseBody {
		req.References = o.m.Registry.ConfirmedReferences()
		req.Outline = s.Text
	}
	return req, nil
}

// Generate runs one pass for kind and applies the draft. The draft is
// rejected with a ConcurrentModificationError if the section changed
// while the call was in flight.
func (o *Orchestrator) Generate(ctx context.Context, kind types.SectionKind, phase types.Phase) (manuscript.Section, error) {
	req, err := o.BuildRequest(kind, phase)
	if err != nil {
		return manuscript.Section{}, err
	}

	text, err := o.call(ctx, req)
	if err != nil {
		return manuscript.Section{}, err
	}
	return o.m.ApplyDraft(kind, phase, text, req.Revision)
}

// call invokes the generator with a per-call timeout and exponential
// backoff on retryable outcomes.
func (o *Orchestrator) call(ctx context.Context, req Request) (string, error) {
	genErr := &GenerationError{Section: req.Section, Phase: req.Phase}
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.BackoffBase << (attempt - 1)
			o.logger.Debug("retrying generation",
				zap.String("section", string(req.Section)),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := o.sleep(ctx, backoff); err != nil {
				genErr.Err = err
				return "", genErr
			}
		}
		genErr.Attempts = attempt + 1

		res := o.attempt(ctx, req)
		if ctx.Err() != nil {
			genErr.Err = ctx.Err()
			return "", genErr
		}
		switch res.Outcome {
		case OutcomeSuccess:
			if strings.TrimSpace(res.Text) == "" {
				genErr.Err = errors.New("generator returned empty text")
				continue
			}
			return strings.TrimSpace(res.Text), nil
		case OutcomeFatal:
			genErr.Err = res.Err
			return "", genErr
		default:
			genErr.Err = res.Err
			o.logger.Warn("generation attempt failed",
				zap.String("section", string(req.Section)),
				zap.String("phase", string(req.Phase)),
				zap.Int("attempt", attempt+1),
				zap.Error(res.Err),
			)
		}
	}
	genErr.Exhausted = true
	return "", genErr
}

func (o *Orchestrator) attempt(ctx context.Context, req Request) Result {
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}
	res := o.gen.Generate(ctx, req)
	if res.Outcome != OutcomeSuccess && res.Err == nil {
		res.Err = fmt.Errorf("generator reported %s without an error", res.Outcome)
	}
	if res.Outcome == OutcomeFatal && errors.Is(res.Err, context.DeadlineExceeded) {
		res.Outcome = OutcomeRetryable
	}
	return res
}

// RunOptions controls Run.
type RunOptions struct {
	// Force regenerates sections that already hold the requested pass.
	Force bool
}

// RunSummary counts what Run did.
type RunSummary struct {
	Generated []types.SectionKind
	Skipped   []types.SectionKind
}

// Run walks the dependency graph in topological order and runs phase for
// every section that is not locked. Without Force, sections already at
// phase are skipped. Run stops at the first error, which includes a
// section whose dependencies are not ready; sections generated before it
// keep their drafts. Progress lines go to w.
func (o *Orchestrator) Run(ctx context.Context, phase types.Phase, opts RunOptions, w io.Writer) (RunSummary, error) {
	var summary RunSummary
	for _, kind := range o.m.Graph().Order() {
		s, err := o.m.Section(kind)
		if err != nil {
			return summary, err
		}
		if s.State == types.StateLocked || (!opts.Force && reached(s, phase)) {
			fmt.Fprintf(w, "skipped    %s (%s)\n", kind, s.Label())
			summary.Skipped = append(summary.Skipped, kind)
			continue
		}

		fmt.Fprintf(w, "generating %s (%s)\n", kind, phase)
		out, err := o.Generate(ctx, kind, phase)
		if err != nil {
			fmt.Fprintf(w, "failed     %s: %v\n", kind, err)
			return summary, fmt.Errorf("run %s pass: %w", phase, err)
		}
		fmt.Fprintf(w, "drafted    %s (revision %d)\n", kind, out.Revision)
		summary.Generated = append(summary.Generated, kind)
	}
	return summary, nil
}

// reached reports whether s already holds text from phase or later.
func reached(s manuscript.Section, phase types.Phase) bool {
	if s.State != types.StateDrafted {
		return false
	}
	return phase == types.PhaseOutline || s.Phase == types.PhaseBody
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
