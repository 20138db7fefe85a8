// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/qa"
	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/internal/similarity"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var testRefs = []types.ReferenceCandidate{
	{ID: "111", Title: "Early feeding after surgery", Authors: []string{"Smith JA", "Lee K"}, Year: 2020, Venue: "Ann Surg", Volume: "271", Issue: "2", Pages: "10-18", DOI: "10.1/a"},
	{ID: "222", Title: "ERAS {review}", Authors: []string{"WHO Working Group"}, Year: 2021, Venue: "BMJ"},
}

var testTexts = map[types.SectionKind]string{
	types.SectionMethods:      "Patients were enrolled.",
	types.SectionResults:      "Stay was shorter.",
	types.SectionIntroduction: "Feeding matters {cite:PMID:111}. Reviews agree {cite:PMID:222}.",
	types.SectionDiscussion:   "As before {cite:PMID:111}.",
	types.SectionConclusion:   "Feed early.",
	types.SectionAbstract:     "Background: ERAS {cite:PMID:222}.",
	types.SectionCoverLetter:  "Dear Editor.",
}

// lockedManuscript drives every section to locked with the given texts.
func lockedManuscript(t *testing.T, texts map[types.SectionKind]string) *manuscript.Manuscript {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.AddCandidates(testRefs...))
	require.NoError(t, reg.ConfirmReferences([]string{"111", "222"}))
	m := manuscript.New(types.JournalSpec{Name: "Annals"}, reg)
	for _, kind := range types.GenerationOrder {
		s, err := m.ApplyDraft(kind, types.PhaseOutline, "outline", 0)
		require.NoError(t, err)
		s, err = m.ApplyDraft(kind, types.PhaseBody, texts[kind], s.Revision)
		require.NoError(t, err)
		_, err = m.Lock(kind, s.Revision)
		require.NoError(t, err)
	}
	return m
}

func TestAssembleDocument(t *testing.T) {
	m := lockedManuscript(t, testTexts)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	doc, err := Assemble(m, &qa.Report{}, Options{Now: now})
	require.NoError(t, err)

	assert.Equal(t, m.ID, doc.ManuscriptID)
	assert.Equal(t, "Annals", doc.Journal)
	assert.Equal(t, types.StyleVancouver, doc.Style)
	assert.Equal(t, now, doc.AssembledAt)

	var order []types.SectionKind
	for _, s := range doc.Sections {
		order = append(order, s.Kind)
	}
	assert.Equal(t, []types.SectionKind{
		types.SectionAbstract, types.SectionIntroduction, types.SectionMethods,
		types.SectionResults, types.SectionDiscussion, types.SectionConclusion,
	}, order)

	// The abstract is read first, so 222 takes number 1.
	assert.Equal(t, "Background: ERAS [1].", doc.Sections[0].Text)
	assert.Equal(t, "Feeding matters [2]. Reviews agree [1].", doc.Sections[1].Text)
	assert.Equal(t, "As before [2].", doc.Sections[4].Text)

	require.NotNil(t, doc.CoverLetter)
	assert.Equal(t, "Cover Letter", doc.CoverLetter.Title)

	require.Len(t, doc.References, 2)
	assert.Equal(t, "222", doc.References[0].Reference.ID)
	assert.Equal(t, "111", doc.References[1].Reference.ID)
}

func TestAssembleGates(t *testing.T) {
	warning := types.Finding{Severity: types.SeverityWarning, Kind: types.FindingUnverifiedFigure, Section: types.SectionResults, Message: "37.5%"}
	blocking := types.Finding{Severity: types.SeverityBlocking, Kind: types.FindingMissingSection, Section: types.SectionMethods, Message: "empty"}

	t.Run("not assembly ready", func(t *testing.T) {
		m := manuscript.New(types.JournalSpec{Name: "J"}, registry.New())
		_, err := Assemble(m, &qa.Report{}, Options{})
		var notReady *manuscript.NotAssemblyReadyError
		assert.True(t, errors.As(err, &notReady))
	})

	t.Run("report required", func(t *testing.T) {
		_, err := Assemble(lockedManuscript(t, testTexts), nil, Options{})
		assert.ErrorContains(t, err, "QA report")
	})

	t.Run("blocking findings", func(t *testing.T) {
		m := lockedManuscript(t, testTexts)
		report := &qa.Report{Findings: []types.Finding{blocking}}

		_, err := Assemble(m, report, Options{AcknowledgeWarnings: true})
		var blocked *BlockedError
		require.True(t, errors.As(err, &blocked))
		assert.Equal(t, []types.Finding{blocking}, blocked.Findings)

		doc, err := Assemble(m, report, Options{Override: true})
		require.NoError(t, err)
		assert.Equal(t, []types.Finding{blocking}, doc.Acknowledged)
	})

	t.Run("warnings need acknowledgment", func(t *testing.T) {
		m := lockedManuscript(t, testTexts)
		report := &qa.Report{Findings: []types.Finding{warning}}

		_, err := Assemble(m, report, Options{})
		var unack *UnacknowledgedWarningsError
		require.True(t, errors.As(err, &unack))
		assert.Contains(t, err.Error(), "37.5%")

		doc, err := Assemble(m, report, Options{AcknowledgeWarnings: true})
		require.NoError(t, err)
		assert.Equal(t, []types.Finding{warning}, doc.Acknowledged)
	})

	t.Run("unresolved citation fails even when overridden", func(t *testing.T) {
		texts := make(map[types.SectionKind]string, len(testTexts))
		for k, v := range testTexts {
			texts[k] = v
		}
		texts[types.SectionResults] = "Unknown source {cite:PMID:999}."
		m := lockedManuscript(t, texts)

		_, err := Assemble(m, &qa.Report{}, Options{Override: true, AcknowledgeWarnings: true})
		var unresolved *citation.UnresolvedCitationError
		require.True(t, errors.As(err, &unresolved))
		assert.Equal(t, []citation.Unresolved{{Section: types.SectionResults, ID: "999"}}, unresolved.Missing)
	})
}

func newReviewers() (*qa.Validator, *similarity.Checker) {
	return qa.New(types.DefaultQAConfig()), similarity.New(types.DefaultSimilarityConfig())
}

func TestReviewReadsLockedTextOnly(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddCandidates(testRefs...))
	require.NoError(t, reg.ConfirmReferences([]string{"111", "222"}))
	journal := types.JournalSpec{
		Name: "Annals",
		RequiredSections: []types.SectionKind{
			types.SectionMethods, types.SectionResults, types.SectionIntroduction,
			types.SectionDiscussion, types.SectionConclusion, types.SectionAbstract,
		},
	}
	m := manuscript.New(journal, reg)
	for _, kind := range journal.RequiredSections {
		s, err := m.ApplyDraft(kind, types.PhaseOutline, "outline", 0)
		require.NoError(t, err)
		s, err = m.ApplyDraft(kind, types.PhaseBody, testTexts[kind], s.Revision)
		require.NoError(t, err)
		_, err = m.Lock(kind, s.Revision)
		require.NoError(t, err)
	}
	// The optional cover letter is an unlocked outline citing an unknown id.
	_, err := m.ApplyDraft(types.SectionCoverLetter, types.PhaseOutline, "Dear Editor, see {cite:PMID:999}.", 0)
	require.NoError(t, err)

	v, c := newReviewers()
	preview := v.Check(qa.InputFrom(m))
	require.Len(t, preview.Blocking(), 1)
	assert.Equal(t, types.SectionCoverLetter, preview.Blocking()[0].Section)

	report, err := Review(m, v, c)
	require.NoError(t, err)
	assert.Empty(t, report.Blocking())
	for _, f := range report.Findings {
		assert.NotEqual(t, types.SectionCoverLetter, f.Section, "unexpected finding %s", f)
	}

	doc, err := Assemble(m, report, Options{AcknowledgeWarnings: true})
	require.NoError(t, err)
	assert.Nil(t, doc.CoverLetter)
	assert.Len(t, doc.Sections, 6)
}

func TestReviewRequiresAssemblyReady(t *testing.T) {
	m := manuscript.New(types.JournalSpec{Name: "J"}, registry.New())
	v, c := newReviewers()
	_, err := Review(m, v, c)
	var notReady *manuscript.NotAssemblyReadyError
	assert.True(t, errors.As(err, &notReady), "got %v", err)
}

func TestSummarizeTruncates(t *testing.T) {
	f := types.Finding{Severity: types.SeverityWarning, Kind: types.FindingDuplication, Message: "x"}
	err := &UnacknowledgedWarningsError{Findings: []types.Finding{f, f, f, f, f}}
	assert.Contains(t, err.Error(), "5 warning(s)")
	assert.Contains(t, err.Error(), "and 2 more")
}

func assembled(t *testing.T) *Document {
	t.Helper()
	doc, err := Assemble(lockedManuscript(t, testTexts), &qa.Report{}, Options{})
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, format string, doc *Document) string {
	t.Helper()
	r, err := RendererFor(format)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(doc, &buf))
	return buf.String()
}

func TestMarkdownRenderer(t *testing.T) {
	out := render(t, "markdown", assembled(t))

	assert.True(t, strings.HasPrefix(out, "## Abstract\n\nBackground: ERAS [1].\n\n## Introduction\n"))
	assert.Contains(t, out, "## References\n\n1. WHO Working Group. ERAS {review}. BMJ. 2021.\n"+
		"2. Smith JA, Lee K. Early feeding after surgery. Ann Surg. 2020;271(2):10-18. doi:10.1/a.\n")
	assert.Contains(t, out, "---\n\n# Cover Letter\n\nDear Editor.\n")
	assert.Less(t, strings.Index(out, "## Conclusion"), strings.Index(out, "## References"))
}

func TestJSONRenderer(t *testing.T) {
	doc := assembled(t)
	var got Document
	require.NoError(t, json.Unmarshal([]byte(render(t, "json", doc)), &got))
	assert.Equal(t, doc.ManuscriptID, got.ManuscriptID)
	assert.Len(t, got.Sections, 6)
	assert.Equal(t, 2, got.References[1].Number)
}

func TestCSLRenderer(t *testing.T) {
	var items []CSLItem
	require.NoError(t, yaml.Unmarshal([]byte(render(t, "csl", assembled(t))), &items))
	require.Len(t, items, 2)

	assert.Equal(t, "pmid222", items[0].ID)
	assert.Equal(t, 1, items[0].CitationNumber)
	assert.Equal(t, []CSLName{{Literal: "WHO Working Group"}}, items[0].Author)

	assert.Equal(t, "pmid111", items[1].ID)
	assert.Equal(t, "article-journal", items[1].Type)
	assert.Equal(t, "Ann Surg", items[1].ContainerTitle)
	assert.Equal(t, []CSLName{{Family: "Smith", Given: "JA"}, {Family: "Lee", Given: "K"}}, items[1].Author)
	require.NotNil(t, items[1].Issued)
	assert.Equal(t, [][]int{{2020}}, items[1].Issued.DateParts)
	assert.Equal(t, "10.1/a", items[1].DOI)
}

func TestBibTeXRenderer(t *testing.T) {
	out := render(t, "bibtex", assembled(t))
	want := "@article{pmid222,\n" +
		"  title = {ERAS review},\n" +
		"  author = {WHO Working Group},\n" +
		"  year = {2021},\n" +
		"  journal = {BMJ},\n" +
		"  pmid = {222},\n" +
		"}\n\n"
	assert.True(t, strings.HasPrefix(out, want), out)
	assert.Contains(t, out, "  author = {Smith JA and Lee K},\n")
	assert.Contains(t, out, "  number = {2},\n")
}

func TestRendererForUnknown(t *testing.T) {
	_, err := RendererFor("docx")
	assert.ErrorContains(t, err, "unknown format")
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Smith JA", CSLName{Family: "Smith", Given: "JA"}},
		{"van der Berg H", CSLName{Family: "van der Berg", Given: "H"}},
		{"Consortium", CSLName{Literal: "Consortium"}},
		{"Jane Smith", CSLName{Literal: "Jane Smith"}},
		{"  ", CSLName{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAuthorName(tt.in))
		})
	}
}
