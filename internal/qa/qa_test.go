// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

func knownIDs(ids ...string) citation.Lookup {
	set := make(map[string]bool)
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) types.ReferenceCandidate {
		if set[id] {
			return types.ReferenceCandidate{ID: id}
		}
		return types.ReferenceCandidate{}
	}
}

func section(kind types.SectionKind, text string) []citation.SectionText {
	return []citation.SectionText{{Kind: kind, Text: text}}
}

func kinds(findings []types.Finding) []types.FindingKind {
	var out []types.FindingKind
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestUnverifiedFigureSingleWarning(t *testing.T) {
	v := New(types.DefaultQAConfig())
	report := v.Check(Input{
		Journal:  types.JournalSpec{Name: "J"},
		Sections: section(types.SectionResults, "Mortality was 37.5% in the treated group."),
		Lookup:   knownIDs(),
	})

	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	assert.Equal(t, types.SeverityWarning, f.Severity)
	assert.Equal(t, types.FindingUnverifiedFigure, f.Kind)
	assert.Equal(t, types.SectionResults, f.Section)
	assert.Contains(t, f.Message, "37.5%")
	assert.Empty(t, report.Blocking())
}

func TestNumericProvenance(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		facts []float64
		want  int
	}{
		{name: "matching fact", text: "We enrolled 120 patients.", facts: []float64{120}},
		{name: "percentage of fraction fact", text: "Response was 37.5%.", facts: []float64{0.375}},
		{name: "thousands separator", text: "A total of 1,204 visits.", facts: []float64{1204}},
		{name: "negative fact", text: "Weight decreased by 3.2 kg.", facts: []float64{-3.2}},
		{name: "repeated token reported once", text: "Rates were 12 and 12 again.", want: 1},
		{name: "distinct tokens each reported", text: "Rates were 12 and 13.", want: 2},
		{name: "significance threshold exempt", text: "Significance was set at p < 0.05."},
		{name: "exempt convention token", text: "Values below 0.001 were rounded."},
		{name: "confidence level exempt, bounds checked", text: "OR 1.8 (95% CI 1.2-2.7).", facts: []float64{1.8, 1.2, 2.7}},
		{name: "confidence bounds unverified", text: "OR 1.8 (95% CI 1.2-2.7).", facts: []float64{1.8}, want: 2},
		{name: "table and figure labels", text: "See Table 2 and Fig. 3b and Supplementary Table S4."},
		{name: "placeholder ids ignored", text: "As reported {cite:PMID:31415926}."},
		{name: "identifiers with letters ignored", text: "Provenance T1 and CD4 cells."},
	}
	v := New(types.DefaultQAConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Check(Input{
				Journal:    types.JournalSpec{Name: "J"},
				Sections:   section(types.SectionResults, tt.text),
				FactValues: tt.facts,
				Lookup:     knownIDs("31415926"),
			})
			var figures []types.Finding
			for _, f := range report.Findings {
				if f.Kind == types.FindingUnverifiedFigure {
					figures = append(figures, f)
				}
			}
			assert.Len(t, figures, tt.want, "%v", figures)
		})
	}
}

func TestWordCountFindings(t *testing.T) {
	journal := types.JournalSpec{
		Name: "J",
		WordLimits: map[types.SectionKind]types.WordRange{
			types.SectionMethods: {Min: 5, Max: 8},
		},
	}
	v := New(types.QAConfig{})
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "too short", text: "one two three", want: 1},
		{name: "in range", text: "one two three four five six"},
		{name: "too long", text: "a b c d e f g h i j", want: 1},
		{name: "placeholders not counted", text: "one two three four five {cite:PMID:1} {cite:PMID:2} {cite:PMID:3} {cite:PMID:4}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Check(Input{Journal: journal, Sections: section(types.SectionMethods, tt.text), Lookup: knownIDs("1", "2", "3", "4")})
			assert.Len(t, report.Findings, tt.want, "%v", report.Findings)
		})
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 6, WordCount("It's a well-known fact, isn't it?"))
}

func TestStructuredAbstract(t *testing.T) {
	journal := types.JournalSpec{Name: "J", Abstract: types.AbstractSpec{Structured: true}}
	v := New(types.QAConfig{})

	complete := "Background: x.\n**Methods:** y.\nResults : z.\nconclusion: w."
	report := v.Check(Input{Journal: journal, Sections: section(types.SectionAbstract, complete)})
	assert.Empty(t, report.Findings)

	partial := "Background: x.\nWe did things. Results: z."
	report = v.Check(Input{Journal: journal, Sections: section(types.SectionAbstract, partial)})
	require.Len(t, report.Findings, 3)
	for _, f := range report.Findings {
		assert.Equal(t, types.FindingStructure, f.Kind)
		assert.Equal(t, types.SeverityWarning, f.Severity)
	}
	assert.Contains(t, report.Findings[0].Message, `"Methods"`)
}

func TestPlaceholderChecks(t *testing.T) {
	v := New(types.QAConfig{})
	text := "Known {cite:PMID:1}. Unknown {cite:PMID:9} and again {cite:PMID:9}. Bad {cite:DOI:10.1/x}."
	report := v.Check(Input{
		Journal:  types.JournalSpec{Name: "J"},
		Sections: section(types.SectionMethods, text),
		Lookup:   knownIDs("1"),
	})
	blocking := report.Blocking()
	require.Len(t, blocking, 2)
	assert.Equal(t, []types.FindingKind{types.FindingUnresolvedCitation, types.FindingUnresolvedCitation}, kinds(blocking))
	assert.Contains(t, blocking[0].Message, "PMID 9")
	assert.Contains(t, blocking[1].Message, "malformed")
}

func TestUncitedClaims(t *testing.T) {
	v := New(types.DefaultQAConfig())
	text := "Previous studies found benefit. A meta-analysis agreed {cite:PMID:1}. We measured outcomes."

	report := v.Check(Input{
		Journal:  types.JournalSpec{Name: "J"},
		Sections: section(types.SectionIntroduction, text),
		Lookup:   knownIDs("1"),
	})
	require.Len(t, report.Findings, 1)
	assert.Equal(t, types.FindingUncitedClaim, report.Findings[0].Kind)
	assert.Contains(t, report.Findings[0].Message, "Previous studies found benefit.")

	// Methods is not scanned for claims by default.
	report = v.Check(Input{
		Journal:  types.JournalSpec{Name: "J"},
		Sections: section(types.SectionMethods, "This randomized trial followed guidelines."),
	})
	assert.Empty(t, report.Findings)
}

func TestManuscriptWideChecks(t *testing.T) {
	v := New(types.QAConfig{})
	report := v.Check(Input{
		Journal: types.JournalSpec{
			Name:              "J",
			MaxReferences:     2,
			MainTextWordLimit: 4,
			RequiredSections:  []types.SectionKind{types.SectionIntroduction, types.SectionResults},
		},
		Sections: []citation.SectionText{
			{Kind: types.SectionIntroduction, Text: "one two three"},
			{Kind: types.SectionResults, Text: "  "},
			{Kind: types.SectionDiscussion, Text: "four five"},
		},
		ConfirmedReferences: 3,
	})
	assert.ElementsMatch(t, []types.FindingKind{
		types.FindingMissingSection,
		types.FindingMainTextLength,
		types.FindingReferenceCount,
	}, kinds(report.Findings))
	assert.Len(t, report.Blocking(), 2)
	assert.Len(t, report.Warnings(), 1)
}

func TestValidateRequiresAssemblyReady(t *testing.T) {
	m := manuscript.New(types.JournalSpec{Name: "J"}, registry.New())
	report, err := New(types.DefaultQAConfig()).Validate(m)
	assert.Nil(t, report)
	var notReady *manuscript.NotAssemblyReadyError
	assert.True(t, errors.As(err, &notReady))
}

func TestValidateLockedManuscript(t *testing.T) {
	reg := registry.New()
	n := 42.0
	require.NoError(t, reg.RegisterFacts([]types.Fact{{Key: "n", Kind: types.FactNumeric, Number: &n}}))
	require.NoError(t, reg.ConfirmFacts())
	require.NoError(t, reg.AddCandidates(types.ReferenceCandidate{ID: "7"}))
	require.NoError(t, reg.ConfirmReferences([]string{"7"}))

	m := manuscript.New(types.JournalSpec{
		Name:             "J",
		RequiredSections: []types.SectionKind{types.SectionMethods},
	}, reg)
	s, err := m.ApplyDraft(types.SectionMethods, types.PhaseOutline, "outline", 0)
	require.NoError(t, err)
	s, err = m.ApplyDraft(types.SectionMethods, types.PhaseBody, "We enrolled 42 adults {cite:PMID:7}.", s.Revision)
	require.NoError(t, err)
	_, err = m.Lock(types.SectionMethods, s.Revision)
	require.NoError(t, err)

	report, err := New(types.DefaultQAConfig()).Validate(m)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)

	t.Run("unlocked optional draft is not validated", func(t *testing.T) {
		_, err := m.ApplyDraft(types.SectionResults, types.PhaseOutline, "Mortality fell to 37.5% {cite:PMID:999}.", 0)
		require.NoError(t, err)

		report, err := New(types.DefaultQAConfig()).Validate(m)
		require.NoError(t, err)
		assert.Empty(t, report.Findings)

		preview := New(types.DefaultQAConfig()).Check(InputFrom(m))
		assert.Equal(t, []types.FindingKind{types.FindingUnresolvedCitation, types.FindingUnverifiedFigure}, kinds(preview.Findings))
	})
}

func TestReportCount(t *testing.T) {
	r := &Report{}
	r.Append(
		types.Finding{Kind: types.FindingWordCount},
		types.Finding{Kind: types.FindingDuplication},
		types.Finding{Kind: types.FindingDuplication},
	)
	assert.Equal(t, []KindCount{
		{Kind: types.FindingDuplication, Count: 2},
		{Kind: types.FindingWordCount, Count: 1},
	}, r.Count())
}
