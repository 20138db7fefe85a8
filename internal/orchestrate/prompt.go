// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// outlineSystem and bodySystem are the system prompts for the two passes.
const (
	outlineSystem = `You are a senior medical writer. Create an evidence-grounded outline before any prose is drafted.
STRICT RULES:
1) Do NOT invent any numeric values. Use only the facts provided.
2) If something is unknown, write "not specified".
3) For every number, append its source in parentheses, e.g. (T1) or (F2).
4) No citations in the outline.
Output must be English.`

	bodySystem = `You are a senior medical writer for clinical manuscripts. Write clear, concise academic English.
STRICT RULES:
1) Do NOT introduce numeric values (N, p-values, HR, CI, means, SD, percentages) not present in the facts or the outline.
2) Do NOT invent references. Cite ONLY from the allowed list, using placeholders of the exact form {cite:PMID:<id>}.
3) Never write numbered citations such as [1]; numbering happens later.
4) Do NOT include a References section.
5) Do not copy the protocol or journal guidelines verbatim.
6) Results report facts only; interpretation belongs in the Discussion.`
)

// sectionGuidance is the per-section structure the model should follow.
var sectionGuidance = map[types.SectionKind]string{
	types.SectionMethods:      "Reproducible Methods: design and setting, study period, ethics approval, population (inclusion/exclusion), interventions, outcome definitions, statistical analysis.",
	types.SectionResults:      "Results in 4-6 paragraphs, facts only: baseline characteristics, primary outcome, secondary outcomes, subgroup or sensitivity analyses if present. Refer to tables and figures by their ids.",
	types.SectionIntroduction: "Three-paragraph funnel: what is known, the gap, the aim of this study. Do not repeat Results.",
	types.SectionDiscussion:   "Inverted funnel: summary of main findings, comparison with prior literature, implications, limitations and strengths, closing take-home message.",
	types.SectionConclusion:   "One paragraph that directly answers the aim without overclaiming.",
	types.SectionAbstract:     "Abstract summarizing the locked sections.",
	types.SectionCoverLetter:  "Cover letter to the Editor-in-Chief: submission intent and fit, novelty and significance, declarations (approval by all authors, not under consideration elsewhere, conflicts of interest). No reference list.",
}

var userTmpl = template.Must(template.New("user").Funcs(template.FuncMap{
	"title":   func(k types.SectionKind) string { return k.Title() },
	"cite":    citation.Placeholder,
	"join":    strings.Join,
	"refLine": refLine,
}).Parse(`{{if eq .Phase "outline"}}Create a bulleted outline (not prose) for the {{title .Section}} section.{{else}}Write the {{title .Section}} section as final prose.{{end}}
Journal: {{.JournalName}}{{if .ArticleType}} ({{.ArticleType}}){{end}}
Guidance: {{.Guidance}}
{{- if or .WordRange.Min .WordRange.Max}}
Word range: {{if .WordRange.Min}}at least {{.WordRange.Min}}{{end}}{{if and .WordRange.Min .WordRange.Max}}, {{end}}{{if .WordRange.Max}}at most {{.WordRange.Max}}{{end}} words.
{{- end}}
{{- if and (eq .Section "abstract") .Abstract.Structured}}
Structured abstract: use exactly these headings, each at the start of a line followed by a colon: {{join .Abstract.Headings ", "}}.
{{- end}}

FACTS (the only permitted source of numbers):
{{- range .Facts}}
- {{.Key}} = {{.String}}{{if .Provenance}} ({{.Provenance}}){{end}}
{{- else}}
- (none)
{{- end}}
{{range .Upstream}}
=== LOCKED {{title .Kind}} ===
{{.Text}}
{{end}}
{{- if eq .Phase "body"}}
ALLOWED CITATIONS (placeholders only, e.g. {{cite "12345678"}}):
{{- range .References}}
- {{refLine .}}
{{- else}}
- (none; write without citations)
{{- end}}

=== OUTLINE (must follow; add no new numbers) ===
{{.Outline}}

Now expand this outline into the final {{title .Section}}.
{{- end}}
`))

// refLine renders one allowed citation compactly for the prompt.
func refLine(r types.ReferenceCandidate) string {
	parts := []string{citation.Placeholder(r.ID)}
	if r.Year > 0 {
		parts = append(parts, fmt.Sprint(r.Year))
	}
	if r.Venue != "" {
		parts = append(parts, r.Venue)
	}
	parts = append(parts, r.Title)
	if len(r.PublicationTypes) > 0 {
		n := len(r.PublicationTypes)
		if n > 3 {
			n = 3
		}
		parts = append(parts, "types: "+strings.Join(r.PublicationTypes[:n], ", "))
	}
	return strings.Join(parts, " | ")
}

// renderPrompt returns the system and user messages for req.
func renderPrompt(req Request) (system, user string, err error) {
	system = outlineSystem
	if req.Phase == types.PhaseBody {
		system = bodySystem
	}
	var buf bytes.Buffer
	data := struct {
		Request
		Guidance string
	}{Request: req, Guidance: sectionGuidance[req.Section]}
	if err := userTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return system, buf.String(), nil
}
