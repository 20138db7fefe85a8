// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// mockGenerator replays scripted results and records every request.
type mockGenerator struct {
	mu       sync.Mutex
	results  []Result
	fallback Result
	requests []Request
	hook     func(ctx context.Context, req Request) *Result
}

func (g *mockGenerator) Generate(ctx context.Context, req Request) Result {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	var next *Result
	if len(g.results) > 0 {
		r := g.results[0]
		g.results = g.results[1:]
		next = &r
	}
	hook := g.hook
	g.mu.Unlock()

	if hook != nil {
		if r := hook(ctx, req); r != nil {
			return *r
		}
	}
	if next != nil {
		return *next
	}
	return g.fallback
}

func (g *mockGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func fptr(v float64) *float64 { return &v }

func newManuscript(t *testing.T) *manuscript.Manuscript {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterFacts([]types.Fact{
		{Key: "n.total", Kind: types.FactNumeric, Number: fptr(120), Provenance: "T1"},
		{Key: "los.median", Kind: types.FactNumeric, Number: fptr(4), Provenance: "T2", Sections: []types.SectionKind{types.SectionResults}},
		{Key: "design", Kind: types.FactCategorical, Text: "randomized, single-center"},
		{Key: "irb", Kind: types.FactUnknown},
	}))
	require.NoError(t, reg.ConfirmFacts())
	require.NoError(t, reg.AddCandidates(
		types.ReferenceCandidate{ID: "111", Title: "Early feeding", Year: 2020},
		types.ReferenceCandidate{ID: "222", Title: "ERAS review", Year: 2021},
	))
	require.NoError(t, reg.ConfirmReferences([]string{"111", "222"}))
	return manuscript.New(types.JournalSpec{Name: "Test Journal"}, reg)
}

// newOrchestrator returns an orchestrator whose backoff sleeps are recorded
// instead of waited.
func newOrchestrator(m *manuscript.Manuscript, gen Generator, cfg types.GenerationConfig) (*Orchestrator, *[]time.Duration) {
	o := New(m, gen, cfg)
	var waits []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return o, &waits
}

func testConfig() types.GenerationConfig {
	return types.GenerationConfig{
		AIConfig:    types.AIConfig{MaxRetries: 3},
		BackoffBase: 10 * time.Millisecond,
	}
}

func TestGenerateOutline(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{fallback: Success("  - design (T1)\n")}
	o, _ := newOrchestrator(m, gen, testConfig())

	s, err := o.Generate(context.Background(), types.SectionMethods, types.PhaseOutline)
	require.NoError(t, err)
	assert.Equal(t, "drafted(outline)", s.Label())
	assert.Equal(t, "- design (T1)", s.Text)
	assert.Equal(t, 1, s.Revision)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Empty(t, req.References, "outline pass carries no references")
	assert.Empty(t, req.Outline)
	var keys []string
	for _, f := range req.Facts {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"n.total", "design"}, keys, "only known facts relevant to methods")
}

func TestBodyRequestContext(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{fallback: Success("text")}
	o, _ := newOrchestrator(m, gen, testConfig())
	ctx := context.Background()

	// Methods locked, Results drafted but unlocked.
	_, err := o.Generate(ctx, types.SectionMethods, types.PhaseOutline)
	require.NoError(t, err)
	s, err := o.Generate(ctx, types.SectionMethods, types.PhaseBody)
	require.NoError(t, err)
	_, err = m.Lock(types.SectionMethods, s.Revision)
	require.NoError(t, err)
	_, err = o.Generate(ctx, types.SectionResults, types.PhaseOutline)
	require.NoError(t, err)
	_, err = o.Generate(ctx, types.SectionIntroduction, types.PhaseOutline)
	require.NoError(t, err)

	gen.fallback = Success("introduction body {cite:PMID:111}")
	s, err = o.Generate(ctx, types.SectionIntroduction, types.PhaseBody)
	require.NoError(t, err)
	assert.Equal(t, "drafted(body)", s.Label())

	req := gen.requests[len(gen.requests)-1]
	assert.Equal(t, types.PhaseBody, req.Phase)
	assert.Equal(t, "text", req.Outline)
	assert.Len(t, req.References, 2)
	assert.Equal(t, []UpstreamText{{Kind: types.SectionMethods, Text: "text"}}, req.Upstream,
		"unlocked results is not sent")
	assert.Equal(t, 1, req.Revision, "built against the introduction outline")
}

func TestGenerateRetriesWithBackoff(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{
		results: []Result{
			Retryable(errors.New("429")),
			Retryable(errors.New("529")),
			Success("outline"),
		},
	}
	o, waits := newOrchestrator(m, gen, testConfig())

	_, err := o.Generate(context.Background(), types.SectionMethods, types.PhaseOutline)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestGenerateFailureLeavesSectionUnchanged(t *testing.T) {
	tests := []struct {
		name          string
		results       []Result
		fallback      Result
		wantCalls     int
		wantExhausted bool
	}{
		{
			name:      "fatal is not retried",
			results:   []Result{Fatal(errors.New("401 unauthorized"))},
			wantCalls: 1,
		},
		{
			name:          "retries are bounded",
			fallback:      Retryable(errors.New("503")),
			wantCalls:     4,
			wantExhausted: true,
		},
		{
			name:          "empty text counts as a failed attempt",
			fallback:      Success("   "),
			wantCalls:     4,
			wantExhausted: true,
		},
		{
			name:      "failure without error is still reported",
			results:   []Result{{Outcome: OutcomeFatal}},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManuscript(t)
			gen := &mockGenerator{results: tt.results, fallback: tt.fallback}
			o, _ := newOrchestrator(m, gen, testConfig())

			_, err := o.Generate(context.Background(), types.SectionMethods, types.PhaseOutline)
			var genErr *GenerationError
			require.True(t, errors.As(err, &genErr), "got %v", err)
			assert.Equal(t, tt.wantExhausted, genErr.Exhausted)
			assert.Equal(t, tt.wantCalls, genErr.Attempts)
			assert.Equal(t, types.SectionMethods, genErr.Section)
			assert.Equal(t, tt.wantCalls, gen.calls())

			s, _ := m.Section(types.SectionMethods)
			assert.Equal(t, types.StateEmpty, s.State)
			assert.Equal(t, 0, s.Revision)
		})
	}
}

func TestGenerateCallTimeoutIsRetryable(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{hook: func(ctx context.Context, _ Request) *Result {
		<-ctx.Done()
		r := Fatal(ctx.Err())
		return &r
	}}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.CallTimeout = 5 * time.Millisecond
	o, _ := newOrchestrator(m, gen, cfg)

	_, err := o.Generate(context.Background(), types.SectionMethods, types.PhaseOutline)
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.True(t, genErr.Exhausted)
	assert.Equal(t, 2, gen.calls())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateCancelled(t *testing.T) {
	m := newManuscript(t)
	ctx, cancel := context.WithCancel(context.Background())
	gen := &mockGenerator{hook: func(context.Context, Request) *Result {
		cancel()
		r := Success("too late")
		return &r
	}}
	o, _ := newOrchestrator(m, gen, testConfig())

	_, err := o.Generate(ctx, types.SectionMethods, types.PhaseOutline)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls())
	s, _ := m.Section(types.SectionMethods)
	assert.Equal(t, types.StateEmpty, s.State)
}

func TestGenerateRejectsUnready(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{fallback: Success("x")}
	o, _ := newOrchestrator(m, gen, testConfig())

	_, err := o.Generate(context.Background(), types.SectionResults, types.PhaseOutline)
	var notReady *manuscript.DependencyNotReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Zero(t, gen.calls(), "no call is made for an unready section")
}

func TestGenerateNeverTouchesLockedSection(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{fallback: Success("original")}
	o, _ := newOrchestrator(m, gen, testConfig())
	ctx := context.Background()

	_, err := o.Generate(ctx, types.SectionMethods, types.PhaseOutline)
	require.NoError(t, err)
	s, err := o.Generate(ctx, types.SectionMethods, types.PhaseBody)
	require.NoError(t, err)
	_, err = m.Lock(types.SectionMethods, s.Revision)
	require.NoError(t, err)

	gen.fallback = Success("rewritten")
	_, err = o.Generate(ctx, types.SectionMethods, types.PhaseBody)
	var locked *manuscript.SectionLockedError
	require.True(t, errors.As(err, &locked))

	text, ok := m.LockedText(types.SectionMethods)
	require.True(t, ok)
	assert.Equal(t, "original", text)
	assert.Equal(t, 2, gen.calls())
}

func TestGenerateDetectsConcurrentDraft(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{hook: func(context.Context, Request) *Result {
		// Another writer applies a draft while this call is in flight.
		_, err := m.ApplyDraft(types.SectionMethods, types.PhaseOutline, "theirs", 0)
		require.NoError(t, err)
		r := Success("ours")
		return &r
	}}
	o, _ := newOrchestrator(m, gen, testConfig())

	_, err := o.Generate(context.Background(), types.SectionMethods, types.PhaseOutline)
	var conflict *manuscript.ConcurrentModificationError
	require.True(t, errors.As(err, &conflict))
	s, _ := m.Section(types.SectionMethods)
	assert.Equal(t, "theirs", s.Text)
}

func TestRunOutlinePass(t *testing.T) {
	m := newManuscript(t)
	gen := &mockGenerator{fallback: Success("outline")}
	o, _ := newOrchestrator(m, gen, testConfig())
	var out bytes.Buffer

	summary, err := o.Run(context.Background(), types.PhaseOutline, RunOptions{}, &out)

	var notReady *manuscript.DependencyNotReadyError
	require.True(t, errors.As(err, &notReady), "abstract needs locked body sections")
	assert.Equal(t, types.SectionAbstract, notReady.Section)
	assert.Equal(t, types.BodySections, summary.Generated)
	assert.Contains(t, out.String(), "generating methods (outline)")
	assert.Contains(t, out.String(), "failed     abstract")

	// A second run skips what is already outlined.
	summary, _ = o.Run(context.Background(), types.PhaseOutline, RunOptions{}, &out)
	assert.Empty(t, summary.Generated)
	assert.Equal(t, types.BodySections, summary.Skipped)

	summary, _ = o.Run(context.Background(), types.PhaseOutline, RunOptions{Force: true}, &out)
	assert.Equal(t, types.BodySections, summary.Generated)
	s, _ := m.Section(types.SectionMethods)
	assert.Equal(t, 2, s.Revision)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "retryable", OutcomeRetryable.String())
	assert.Equal(t, "fatal", OutcomeFatal.String())
}
