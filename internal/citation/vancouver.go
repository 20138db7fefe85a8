// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// maxListedAuthors is how many authors Vancouver lists before "et al.".
const maxListedAuthors = 6

// FormatVancouver renders a reference in simplified Vancouver (NLM) style:
//
//	Authors. Title. Journal. Year;Volume(Issue):Pages. doi:DOI.
//
// Missing parts are omitted. A URL is used when there is no DOI.
func FormatVancouver(r types.ReferenceCandidate) string {
	var parts []string

	if a := formatAuthors(r.Authors); a != "" {
		parts = append(parts, a)
	}
	if t := strings.TrimRight(strings.TrimSpace(r.Title), "."); t != "" {
		parts = append(parts, t+".")
	}
	if v := strings.TrimSpace(r.Venue); v != "" {
		parts = append(parts, strings.TrimRight(v, ".")+".")
	}
	if r.Year > 0 {
		volIssue := r.Volume
		if r.Issue != "" {
			volIssue += "(" + r.Issue + ")"
		}
		date := strconv.Itoa(r.Year)
		switch {
		case volIssue != "" && r.Pages != "":
			date += ";" + volIssue + ":" + r.Pages
		case volIssue != "":
			date += ";" + volIssue
		case r.Pages != "":
			date += ":" + r.Pages
		}
		parts = append(parts, date+".")
	}
	switch {
	case r.DOI != "":
		parts = append(parts, "doi:"+r.DOI+".")
	case r.URL != "":
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, " ")
}

func formatAuthors(authors []string) string {
	var names []string
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return ""
	}
	if len(names) <= maxListedAuthors {
		return strings.Join(names, ", ") + "."
	}
	return strings.Join(names[:maxListedAuthors], ", ") + ", et al."
}

// ReferenceList renders the numbered reference list, one entry per line.
func ReferenceList(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%d. %s", e.Number, e.Formatted)
	}
	return out
}
