// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

func lookupOf(refs ...types.ReferenceCandidate) Lookup {
	m := make(map[string]types.ReferenceCandidate, len(refs))
	for _, r := range refs {
		m[r.ID] = r
	}
	return func(id string) types.ReferenceCandidate { return m[id] }
}

var (
	ref111 = types.ReferenceCandidate{ID: "111", Title: "First", Authors: []string{"Smith J"}, Year: 2020, Venue: "Lancet"}
	ref222 = types.ReferenceCandidate{ID: "222", Title: "Second", Authors: []string{"Lee K"}, Year: 2021, Venue: "BMJ"}
	ref333 = types.ReferenceCandidate{ID: "333", Title: "Third", Year: 2019}
)

func TestResolveFirstAppearanceNumbering(t *testing.T) {
	sections := []SectionText{
		{Kind: types.SectionIntroduction, Text: "effect observed {cite:PMID:111} as shown {cite:PMID:222}."},
		{Kind: types.SectionDiscussion, Text: "confirmed by {cite:PMID:111}."},
	}

	res, err := Resolve(sections, lookupOf(ref111, ref222, ref333), types.InTextBracket)
	require.NoError(t, err)

	want := []SectionText{
		{Kind: types.SectionIntroduction, Text: "effect observed [1] as shown [2]."},
		{Kind: types.SectionDiscussion, Text: "confirmed by [1]."},
	}
	if diff := cmp.Diff(want, res.Sections); diff != "" {
		t.Errorf("resolved sections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"111", "222"}, res.CitedIDs())
	require.Len(t, res.References, 2, "uncited confirmed references are not listed")
	assert.Equal(t, 1, res.References[0].Number)
	assert.Equal(t, "111", res.References[0].Reference.ID)
	assert.Equal(t, 2, res.References[1].Number)
	assert.Equal(t, "222", res.References[1].Reference.ID)
}

func TestResolveOrderFollowsSectionOrder(t *testing.T) {
	// The caller's section order decides numbering, not the id values.
	sections := []SectionText{
		{Kind: types.SectionAbstract, Text: "{cite:PMID:333}"},
		{Kind: types.SectionIntroduction, Text: "{cite:PMID:222} and {cite:PMID:111} and {cite:PMID:333}"},
	}
	res, err := Resolve(sections, lookupOf(ref111, ref222, ref333), types.InTextBracket)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"333": 1, "222": 2, "111": 3}, res.Numbers)

	text, ok := res.Section(types.SectionIntroduction)
	require.True(t, ok)
	assert.Equal(t, "[2] and [3] and [1]", text)
}

func TestResolveIsIdempotent(t *testing.T) {
	sections := []SectionText{
		{Kind: types.SectionIntroduction, Text: "a {cite:PMID:222} b {cite:PMID:111}"},
		{Kind: types.SectionMethods, Text: "no citations"},
		{Kind: types.SectionDiscussion, Text: "{cite:PMID:111}{cite:PMID:333}"},
	}
	lookup := lookupOf(ref111, ref222, ref333)

	first, err := Resolve(sections, lookup, types.InTextSuperscript)
	require.NoError(t, err)
	second, err := Resolve(sections, lookup, types.InTextSuperscript)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second resolution differs (-first +second):\n%s", diff)
	}
	text, _ := second.Section(types.SectionDiscussion)
	assert.Equal(t, "^2^^3^", text)
}

func TestResolveUnresolved(t *testing.T) {
	sections := []SectionText{
		{Kind: types.SectionIntroduction, Text: "{cite:PMID:111} {cite:PMID:999} {cite:PMID:999}"},
		{Kind: types.SectionDiscussion, Text: "{cite:PMID:999} {cite:PMID:888}"},
	}
	res, err := Resolve(sections, lookupOf(ref111), types.InTextBracket)
	assert.Nil(t, res)

	var unresolved *UnresolvedCitationError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []Unresolved{
		{Section: types.SectionIntroduction, ID: "999"},
		{Section: types.SectionDiscussion, ID: "999"},
		{Section: types.SectionDiscussion, ID: "888"},
	}, unresolved.Missing)
	assert.Contains(t, err.Error(), "discussion: PMID 888")
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		format types.InTextFormat
		want   string
	}{
		{types.InTextBracket, "[7]"},
		{types.InTextParen, "(7)"},
		{types.InTextSuperscript, "^7^"},
		{"", "[7]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(7, tt.format))
		})
	}
}

func TestIDsAndMalformed(t *testing.T) {
	text := "a {cite:PMID:1} b {cite:DOI:10.1/x} c {cite:PMID:2} d {cite:PMID: 3} e {cite:PMID:1} f {cite:"
	assert.Equal(t, []string{"1", "2", "1"}, IDs(text))
	assert.Equal(t, []string{"{cite:DOI:10.1/x}", "{cite:PMID: 3}", "{cite:"}, Malformed(text))
	assert.Empty(t, Malformed("plain {cite:PMID:42} text"))
	assert.Equal(t, "x  y", Strip("x {cite:PMID:9} y"))
	assert.Equal(t, "{cite:PMID:12345}", Placeholder("12345"))
}

func TestFormatVancouver(t *testing.T) {
	tests := []struct {
		name string
		ref  types.ReferenceCandidate
		want string
	}{
		{
			name: "full record",
			ref: types.ReferenceCandidate{
				Authors: []string{"Smith J", "Lee K"},
				Title:   "A trial.",
				Venue:   "N Engl J Med",
				Year:    2020,
				Volume:  "382",
				Issue:   "4",
				Pages:   "301-10",
				DOI:     "10.1056/x",
			},
			want: "Smith J, Lee K. A trial. N Engl J Med. 2020;382(4):301-10. doi:10.1056/x.",
		},
		{
			name: "seven authors truncated",
			ref: types.ReferenceCandidate{
				Authors: []string{"A", "B", "C", "D", "E", "F", "G"},
				Title:   "Big team",
				Year:    2019,
			},
			want: "A, B, C, D, E, F, et al. Big team. 2019.",
		},
		{
			name: "url without doi",
			ref: types.ReferenceCandidate{
				Title: "Web only",
				Venue: "Site",
				URL:   "https://example.org/x",
			},
			want: "Web only. Site. https://example.org/x",
		},
		{
			name: "volume without issue",
			ref:  types.ReferenceCandidate{Title: "T", Year: 2001, Volume: "5"},
			want: "T. 2001;5.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVancouver(tt.ref))
		})
	}
}

func TestReferenceList(t *testing.T) {
	res, err := Resolve([]SectionText{{Kind: types.SectionResults, Text: "{cite:PMID:222}"}}, lookupOf(ref222), types.InTextBracket)
	require.NoError(t, err)
	assert.Equal(t, []string{"1. Lee K. Second. BMJ. 2021."}, ReferenceList(res.References))
}
