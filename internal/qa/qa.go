// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package qa validates an assembly-ready manuscript against the journal's
// structural and quantitative rules. Each check yields independent
// findings; QA never mutates the manuscript. Only blocking findings
// prevent export; warnings need explicit human acknowledgment.
package qa

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

// claimPatterns flag sentences that state something attributable to the
// literature and therefore need a citation.
var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhas been (?:shown|reported|demonstrated)\b`),
	regexp.MustCompile(`(?i)\bprevious (?:studies|reports)\b`),
	regexp.MustCompile(`(?i)\baccording to\b`),
	regexp.MustCompile(`(?i)\bguidelines?\b`),
	regexp.MustCompile(`(?i)\bmeta-?analys[ie]s\b`),
	regexp.MustCompile(`(?i)\bsystematic reviews?\b`),
	regexp.MustCompile(`(?i)\brandomi[sz]ed\b`),
}

// Input is everything the checks read. Sections hold placeholder text
// (before citation resolution) in document order.
type Input struct {
	Journal             types.JournalSpec
	Sections            []citation.SectionText
	FactValues          []float64
	ConfirmedReferences int
	Lookup              citation.Lookup
}

// Validator runs the QA checks.
type Validator struct {
	cfg    types.QAConfig
	exempt []float64
	logger *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(v *Validator) { v.logger = l } }

// New creates a Validator. Exempt numbers that do not parse are ignored.
func New(cfg types.QAConfig, opts ...Option) *Validator {
	v := &Validator{cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(v)
	}
	for _, s := range cfg.ExemptNumbers {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			v.logger.Warn("ignoring exempt number", zap.String("value", s))
			continue
		}
		v.exempt = append(v.exempt, f)
	}
	return v
}

// Validate checks an assembly-ready manuscript. It returns the
// manuscript's NotAssemblyReadyError if any required section is not
// locked.
func (v *Validator) Validate(m *manuscript.Manuscript) (*Report, error) {
	if err := m.AssemblyReady(); err != nil {
		return nil, err
	}
	return v.Check(LockedInputFrom(m)), nil
}

// InputFrom collects the checks' input from a manuscript: every section
// that is required or holds text, locked or not, in document order. It is
// the draft preview; assembly checks LockedInputFrom.
func InputFrom(m *manuscript.Manuscript) Input {
	in := inputHeader(m)
	for _, s := range m.Sections() {
		if s.Text == "" && !m.Journal.Requires(s.Kind) {
			continue
		}
		in.Sections = append(in.Sections, citation.SectionText{Kind: s.Kind, Text: s.Text})
	}
	return in
}

// LockedInputFrom collects the text assembly would export: the locked
// sections, plus required sections that are not locked as empty text so
// they are reported missing.
func LockedInputFrom(m *manuscript.Manuscript) Input {
	in := inputHeader(m)
	for _, s := range m.Sections() {
		text, locked := m.LockedText(s.Kind)
		if !locked && !m.Journal.Requires(s.Kind) {
			continue
		}
		in.Sections = append(in.Sections, citation.SectionText{Kind: s.Kind, Text: text})
	}
	return in
}

func inputHeader(m *manuscript.Manuscript) Input {
	return Input{
		Journal:             m.Journal,
		FactValues:          m.Registry.NumericValues(),
		ConfirmedReferences: len(m.Registry.ConfirmedReferences()),
		Lookup:              m.Registry.Reference,
	}
}

// Check runs every check over in and returns the findings.
func (v *Validator) Check(in Input) *Report {
	journal := in.Journal.WithDefaults()
	r := &Report{}

	for _, s := range in.Sections {
		if strings.TrimSpace(s.Text) == "" {
			if journal.Requires(s.Kind) {
				r.add(types.SeverityBlocking, types.FindingMissingSection, s.Kind, "required section has no text")
			}
			continue
		}
		v.checkWordCount(r, journal, s)
		if s.Kind == types.SectionAbstract {
			v.checkAbstract(r, journal, s)
		}
		v.checkPlaceholders(r, in.Lookup, s)
		v.checkNumbers(r, in.FactValues, s)
		if v.claimSection(s.Kind) {
			v.checkClaims(r, s)
		}
	}
	v.checkMainText(r, journal, in.Sections)

	if in.ConfirmedReferences > journal.MaxReferences {
		r.add(types.SeverityBlocking, types.FindingReferenceCount, "",
			fmt.Sprintf("%d confirmed references exceed the maximum of %d", in.ConfirmedReferences, journal.MaxReferences))
	}

	v.logger.Debug("qa complete",
		zap.Int("findings", len(r.Findings)),
		zap.Int("blocking", len(r.Blocking())),
	)
	return r
}

func (v *Validator) checkWordCount(r *Report, journal types.JournalSpec, s citation.SectionText) {
	limits, ok := journal.WordLimits[s.Kind]
	if !ok {
		return
	}
	wc := WordCount(citation.Strip(s.Text))
	switch {
	case limits.Min > 0 && wc < limits.Min:
		r.add(types.SeverityWarning, types.FindingWordCount, s.Kind,
			fmt.Sprintf("%d words is below the minimum of %d", wc, limits.Min))
	case limits.Max > 0 && wc > limits.Max:
		r.add(types.SeverityWarning, types.FindingWordCount, s.Kind,
			fmt.Sprintf("%d words exceeds the maximum of %d", wc, limits.Max))
	}
}

func (v *Validator) checkAbstract(r *Report, journal types.JournalSpec, s citation.SectionText) {
	if !journal.Abstract.Structured {
		return
	}
	for _, h := range journal.Abstract.Headings {
		re := regexp.MustCompile(`(?mi)^[ \t]*[*_#]*[ \t]*` + regexp.QuoteMeta(h) + `[*_]*[ \t]*:`)
		if !re.MatchString(s.Text) {
			r.add(types.SeverityWarning, types.FindingStructure, s.Kind,
				fmt.Sprintf("structured abstract is missing the %q heading", h))
		}
	}
}

func (v *Validator) checkPlaceholders(r *Report, lookup citation.Lookup, s citation.SectionText) {
	seen := make(map[string]bool)
	for _, id := range citation.IDs(s.Text) {
		if seen[id] {
			continue
		}
		seen[id] = true
		if lookup == nil || !lookup(id).Known() {
			r.add(types.SeverityBlocking, types.FindingUnresolvedCitation, s.Kind,
				fmt.Sprintf("placeholder cites PMID %s, which is not in the confirmed reference set", id))
		}
	}
	for _, m := range citation.Malformed(s.Text) {
		r.add(types.SeverityBlocking, types.FindingUnresolvedCitation, s.Kind,
			fmt.Sprintf("malformed citation placeholder %q", m))
	}
}

func (v *Validator) checkNumbers(r *Report, facts []float64, s citation.SectionText) {
	seen := make(map[string]bool)
	for _, tok := range numericTokens(citation.Strip(s.Text)) {
		if seen[tok.raw] {
			continue
		}
		seen[tok.raw] = true
		if tok.matchesAny(v.exempt) || tok.matchesAny(facts) {
			continue
		}
		r.add(types.SeverityWarning, types.FindingUnverifiedFigure, s.Kind,
			fmt.Sprintf("%q does not match any fact sheet value; confirm before export", tok.raw))
	}
}

func (v *Validator) checkClaims(r *Report, s citation.SectionText) {
	for _, sent := range sentences(s.Text) {
		if len(citation.IDs(sent)) > 0 {
			continue
		}
		for _, p := range claimPatterns {
			if p.MatchString(sent) {
				r.add(types.SeverityWarning, types.FindingUncitedClaim, s.Kind,
					fmt.Sprintf("sentence likely needs a citation: %s", truncate(sent, 180)))
				break
			}
		}
	}
}

func (v *Validator) checkMainText(r *Report, journal types.JournalSpec, sections []citation.SectionText) {
	if journal.MainTextWordLimit <= 0 {
		return
	}
	total := 0
	for _, s := range sections {
		for _, b := range types.BodySections {
			if s.Kind == b {
				total += WordCount(citation.Strip(s.Text))
			}
		}
	}
	if total > journal.MainTextWordLimit {
		r.add(types.SeverityWarning, types.FindingMainTextLength, "",
			fmt.Sprintf("main text has %d words, limit is %d", total, journal.MainTextWordLimit))
	}
}

func (v *Validator) claimSection(kind types.SectionKind) bool {
	for _, k := range v.cfg.ClaimSections {
		if k == kind {
			return true
		}
	}
	return false
}

// Report is the ordered list of findings from one QA run.
type Report struct {
	Findings []types.Finding `json:"findings"`
}

func (r *Report) add(sev types.Severity, kind types.FindingKind, section types.SectionKind, msg string) {
	r.Findings = append(r.Findings, types.Finding{Severity: sev, Kind: kind, Section: section, Message: msg})
}

// Append adds findings from another checker, such as duplication.
func (r *Report) Append(findings ...types.Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Blocking returns the findings that prevent export.
func (r *Report) Blocking() []types.Finding {
	return r.filter(types.SeverityBlocking)
}

// Warnings returns the findings that need acknowledgment.
func (r *Report) Warnings() []types.Finding {
	return r.filter(types.SeverityWarning)
}

func (r *Report) filter(sev types.Severity) []types.Finding {
	if r == nil {
		return nil
	}
	var out []types.Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// Count returns the number of findings per kind, sorted by kind for
// stable listings.
func (r *Report) Count() []KindCount {
	counts := make(map[types.FindingKind]int)
	for _, f := range r.Findings {
		counts[f.Kind]++
	}
	out := make([]KindCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// KindCount is one row of Report.Count.
type KindCount struct {
	Kind  types.FindingKind `json:"kind"`
	Count int               `json:"count"`
}
