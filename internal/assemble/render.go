// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Renderer writes a Document in one output format for the rendering
// collaborator (Pandoc, a reference manager, a word processor import).
type Renderer interface {
	Render(doc *Document, w io.Writer) error
}

// Formats lists the accepted format names.
var Formats = []string{"markdown", "json", "csl", "bibtex"}

// RendererFor returns the renderer for a format name.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return MarkdownRenderer{}, nil
	case "json":
		return JSONRenderer{}, nil
	case "csl", "csl-yaml":
		return CSLRenderer{}, nil
	case "bibtex", "bib":
		return BibTeXRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// MarkdownRenderer writes the body, the Vancouver reference list, and the
// cover letter after a thematic break.
type MarkdownRenderer struct{}

func (MarkdownRenderer) Render(doc *Document, w io.Writer) error {
	var b strings.Builder
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Text))
	}
	if len(doc.References) > 0 {
		b.WriteString("## References\n\n")
		for _, line := range citation.ReferenceList(doc.References) {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if doc.CoverLetter != nil {
		fmt.Fprintf(&b, "---\n\n# %s\n\n%s\n", doc.CoverLetter.Title, strings.TrimSpace(doc.CoverLetter.Text))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// JSONRenderer writes the whole document as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	CitationNumber int       `yaml:"citation-number"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// CSLRenderer writes the cited references as a CSL-YAML list in citation
// number order.
type CSLRenderer struct{}

func (CSLRenderer) Render(doc *Document, w io.Writer) error {
	items := make([]CSLItem, len(doc.References))
	for i, e := range doc.References {
		items[i] = toCSLItem(e)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a numbered reference to a CSLItem.
func toCSLItem(e citation.Entry) CSLItem {
	r := e.Reference
	item := CSLItem{
		ID:             citationKey(r),
		Type:           "article-journal",
		Title:          r.Title,
		ContainerTitle: r.Venue,
		Volume:         r.Volume,
		Issue:          r.Issue,
		Page:           r.Pages,
		DOI:            r.DOI,
		PMID:           r.ID,
		URL:            r.URL,
		CitationNumber: e.Number,
	}
	for _, a := range r.Authors {
		if name := parseAuthorName(a); name != (CSLName{}) {
			item.Author = append(item.Author, name)
		}
	}
	if r.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{r.Year}}}
	}
	return item
}

// parseAuthorName splits a MEDLINE-style name ("Smith JA") into CSL
// family/given parts: the last token is the initials when it is all
// upper case, everything before it the family name. Other names use the
// literal field (collective authors such as "WHO Working Group").
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	initials := name[idx+1:]
	if initials != strings.ToUpper(initials) || len(initials) > 3 {
		return CSLName{Literal: name}
	}
	return CSLName{Family: name[:idx], Given: initials}
}

// citationKey is the stable key used by CSL and BibTeX output.
func citationKey(r types.ReferenceCandidate) string {
	return "pmid" + r.ID
}

// BibTeXRenderer writes the cited references as BibTeX in citation number
// order.
type BibTeXRenderer struct{}

func (BibTeXRenderer) Render(doc *Document, w io.Writer) error {
	var b strings.Builder
	for _, e := range doc.References {
		r := e.Reference
		fmt.Fprintf(&b, "@article{%s,\n", citationKey(r))
		fmt.Fprintf(&b, "  title = {%s},\n", bibEscape(r.Title))
		if len(r.Authors) > 0 {
			fmt.Fprintf(&b, "  author = {%s},\n", bibEscape(strings.Join(r.Authors, " and ")))
		}
		if r.Year > 0 {
			fmt.Fprintf(&b, "  year = {%d},\n", r.Year)
		}
		for _, f := range []struct{ name, value string }{
			{"journal", r.Venue},
			{"volume", r.Volume},
			{"number", r.Issue},
			{"pages", r.Pages},
			{"doi", r.DOI},
			{"url", r.URL},
		} {
			if f.value != "" {
				fmt.Fprintf(&b, "  %s = {%s},\n", f.name, bibEscape(f.value))
			}
		}
		fmt.Fprintf(&b, "  pmid = {%s},\n", r.ID)
		fmt.Fprintf(&b, "}\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// bibEscape drops braces that would unbalance a BibTeX field.
func bibEscape(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}
