// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity detects textual duplication with k-token shingles and
// Jaccard overlap. Three axes are checked independently: each section
// against the ingested plan text, each section against the journal
// guideline text, and every pair of sections. Matches above an axis
// threshold become warnings; duplication is never blocking.
package similarity

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Axis names a comparison axis.
type Axis string

const (
	AxisPlan      Axis = "plan"
	AxisGuideline Axis = "guideline"
	AxisSection   Axis = "section"
)

// Source names used for the non-section side of a comparison.
const (
	PlanSource      = "plan_text"
	GuidelineSource = "guideline_text"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokens lowercases text and returns its alphanumeric runs; punctuation
// and whitespace are separators.
func Tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// ShingleSet is the distinct shingles of a text, remembering the order of
// first appearance.
type ShingleSet struct {
	order []string
	set   map[string]struct{}
}

// Shingles builds the set of overlapping k-token shingles of tokens.
// Texts shorter than k tokens have no shingles.
func Shingles(tokens []string, k int) ShingleSet {
	s := ShingleSet{set: make(map[string]struct{})}
	if k <= 0 {
		return s
	}
	for i := 0; i+k <= len(tokens); i++ {
		sh := strings.Join(tokens[i:i+k], " ")
		if _, ok := s.set[sh]; ok {
			continue
		}
		s.set[sh] = struct{}{}
		s.order = append(s.order, sh)
	}
	return s
}

// Len returns the number of distinct shingles.
func (s ShingleSet) Len() int { return len(s.order) }

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both are empty.
func Jaccard(a, b ShingleSet) float64 {
	if a.Len() == 0 && b.Len() == 0 {
		return 0
	}
	inter := len(intersection(a, b))
	union := a.Len() + b.Len() - inter
	return float64(inter) / float64(union)
}

// intersection returns the shared shingles in a's order.
func intersection(a, b ShingleSet) []string {
	var out []string
	for _, sh := range a.order {
		if _, ok := b.set[sh]; ok {
			out = append(out, sh)
		}
	}
	return out
}

// Match is one scored comparison.
type Match struct {
	Axis      Axis    `json:"axis"`
	A         string  `json:"a"`
	B         string  `json:"b"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	// Samples quotes overlapping shingles in order of appearance in A.
	Samples []string `json:"samples,omitempty"`
}

// Flagged reports whether the score reached the axis threshold.
func (m Match) Flagged() bool {
	return m.Score > 0 && m.Score >= m.Threshold
}

// Checker compares texts under a SimilarityConfig.
type Checker struct {
	cfg    types.SimilarityConfig
	logger *zap.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Checker) { c.logger = l } }

// New creates a Checker. A non-positive shingle size uses the default.
func New(cfg types.SimilarityConfig, opts ...Option) *Checker {
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = types.DefaultSimilarityConfig().ShingleSize
	}
	c := &Checker{cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compare scores every section against plan and guideline text and every
// pair of sections. Placeholders are removed first, and empty texts are
// skipped. Matches are returned in comparison order: plan, guideline,
// then section pairs in the order given.
func (c *Checker) Compare(sections []citation.SectionText, plan, guideline string) []Match {
	type doc struct {
		name string
		set  ShingleSet
	}
	var docs []doc
	for _, s := range sections {
		set := Shingles(Tokens(citation.Strip(s.Text)), c.cfg.ShingleSize)
		if set.Len() == 0 {
			continue
		}
		docs = append(docs, doc{name: string(s.Kind), set: set})
	}
	planSet := Shingles(Tokens(plan), c.cfg.ShingleSize)
	guideSet := Shingles(Tokens(guideline), c.cfg.ShingleSize)

	var matches []Match
	if planSet.Len() > 0 {
		for _, d := range docs {
			matches = append(matches, c.match(AxisPlan, d.name, PlanSource, d.set, planSet, c.cfg.PlanThreshold))
		}
	}
	if guideSet.Len() > 0 {
		for _, d := range docs {
			matches = append(matches, c.match(AxisGuideline, d.name, GuidelineSource, d.set, guideSet, c.cfg.GuidelineThreshold))
		}
	}
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			matches = append(matches, c.match(AxisSection, docs[i].name, docs[j].name, docs[i].set, docs[j].set, c.cfg.SectionThreshold))
		}
	}
	return matches
}

func (c *Checker) match(axis Axis, a, b string, sa, sb ShingleSet, threshold float64) Match {
	m := Match{Axis: axis, A: a, B: b, Score: Jaccard(sa, sb), Threshold: threshold}
	if c.cfg.Samples > 0 {
		shared := intersection(sa, sb)
		if len(shared) > c.cfg.Samples {
			shared = shared[:c.cfg.Samples]
		}
		m.Samples = shared
	}
	c.logger.Debug("similarity scored",
		zap.String("axis", string(axis)),
		zap.String("a", a),
		zap.String("b", b),
		zap.Float64("score", m.Score),
	)
	return m
}

// Check compares the manuscript's drafted sections (document order)
// against the registry's plan text and the journal guideline text.
func (c *Checker) Check(m *manuscript.Manuscript) []Match {
	var sections []citation.SectionText
	for _, s := range m.Sections() {
		if s.Text != "" {
			sections = append(sections, citation.SectionText{Kind: s.Kind, Text: s.Text})
		}
	}
	return c.Compare(sections, m.Registry.PlanText(), m.Journal.GuidelineText)
}

// CheckLocked is Check restricted to locked sections.
func (c *Checker) CheckLocked(m *manuscript.Manuscript) []Match {
	var sections []citation.SectionText
	for _, kind := range types.DocumentOrder {
		if text, ok := m.LockedText(kind); ok && text != "" {
			sections = append(sections, citation.SectionText{Kind: kind, Text: text})
		}
	}
	return c.Compare(sections, m.Registry.PlanText(), m.Journal.GuidelineText)
}

// Findings turns flagged matches into duplication warnings, highest score
// first. Ties keep comparison order.
func Findings(matches []Match) []types.Finding {
	var flagged []Match
	for _, m := range matches {
		if m.Flagged() {
			flagged = append(flagged, m)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool { return flagged[i].Score > flagged[j].Score })

	out := make([]types.Finding, 0, len(flagged))
	for _, m := range flagged {
		msg := fmt.Sprintf("%s overlaps %s: jaccard %.3f (threshold %.2f)", m.A, m.B, m.Score, m.Threshold)
		if len(m.Samples) > 0 {
			quoted := make([]string, len(m.Samples))
			for i, sh := range m.Samples {
				quoted[i] = strconv.Quote(sh)
			}
			msg += "; e.g. " + strings.Join(quoted, ", ")
		}
		out = append(out, types.Finding{
			Severity: types.SeverityWarning,
			Kind:     types.FindingDuplication,
			Section:  types.SectionKind(m.A),
			Message:  msg,
		})
	}
	return out
}
