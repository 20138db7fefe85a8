// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble produces the final ordered document from a locked
// manuscript: resolved section texts and the numbered reference list,
// ready for a renderer. Assembly refuses to run while a required section
// is unlocked, while QA reports blocking findings (unless overridden), or
// while warnings are unacknowledged.
package assemble

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/manuscript-engine/internal/citation"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/qa"
	"github.com/pdiddy/manuscript-engine/internal/similarity"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Options are the operator's explicit decisions for this export.
type Options struct {
	// Override exports despite blocking QA findings. Unresolved citations
	// still fail assembly.
	Override bool
	// AcknowledgeWarnings confirms the operator reviewed every warning.
	AcknowledgeWarnings bool
	// Now stamps the document; zero means time.Now.
	Now time.Time
}

// Section is one resolved section of the document.
type Section struct {
	Kind  types.SectionKind `json:"kind" yaml:"kind"`
	Title string            `json:"title" yaml:"title"`
	Text  string            `json:"text" yaml:"text"`
}

// Document is the assembler's output, consumed by renderers.
type Document struct {
	ManuscriptID uuid.UUID           `json:"manuscript_id"`
	Journal      string              `json:"journal"`
	Style        types.CitationStyle `json:"style"`
	AssembledAt  time.Time           `json:"assembled_at"`

	// Sections are the manuscript body in reading order.
	Sections []Section `json:"sections"`
	// CoverLetter ships separately from the body; nil when not written.
	CoverLetter *Section `json:"cover_letter,omitempty"`

	References []citation.Entry `json:"references"`

	// Acknowledged lists the warnings (and overridden blocking findings)
	// the operator accepted for this export.
	Acknowledged []types.Finding `json:"acknowledged,omitempty"`
}

// BlockedError reports blocking QA findings that prevent export.
type BlockedError struct {
	Findings []types.Finding
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("export blocked by %d finding(s): %s", len(e.Findings), summarize(e.Findings))
}

// UnacknowledgedWarningsError reports warnings the operator has not
// acknowledged.
type UnacknowledgedWarningsError struct {
	Findings []types.Finding
}

func (e *UnacknowledgedWarningsError) Error() string {
	return fmt.Sprintf("%d warning(s) require acknowledgment: %s", len(e.Findings), summarize(e.Findings))
}

func summarize(findings []types.Finding) string {
	const maxListed = 3
	var parts []string
	for i, f := range findings {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(findings)-maxListed))
			break
		}
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

// Review runs QA and the duplication checks over the text Assemble would
// export: locked sections only. Drafts of unlocked optional sections are
// not reviewed. It fails with NotAssemblyReadyError like Assemble.
func Review(m *manuscript.Manuscript, v *qa.Validator, c *similarity.Checker) (*qa.Report, error) {
	report, err := v.Validate(m)
	if err != nil {
		return nil, err
	}
	report.Append(similarity.Findings(c.CheckLocked(m))...)
	return report, nil
}

// Assemble builds the document. The report is the QA (and duplication)
// result for the manuscript's current state.
func Assemble(m *manuscript.Manuscript, report *qa.Report, opts Options) (*Document, error) {
	if err := m.AssemblyReady(); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.New("assemble: a QA report is required")
	}

	var accepted []types.Finding
	if blocking := report.Blocking(); len(blocking) > 0 {
		if !opts.Override {
			return nil, &BlockedError{Findings: blocking}
		}
		accepted = append(accepted, blocking...)
	}
	if warnings := report.Warnings(); len(warnings) > 0 {
		if !opts.AcknowledgeWarnings {
			return nil, &UnacknowledgedWarningsError{Findings: warnings}
		}
		accepted = append(accepted, warnings...)
	}

	var inputs []citation.SectionText
	for _, kind := range types.DocumentOrder {
		if text, ok := m.LockedText(kind); ok {
			inputs = append(inputs, citation.SectionText{Kind: kind, Text: text})
		}
	}
	res, err := citation.Resolve(inputs, m.Registry.Reference, m.Journal.InTextFormat)
	if err != nil {
		return nil, fmt.Errorf("resolving citations: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	doc := &Document{
		ManuscriptID: m.ID,
		Journal:      m.Journal.Name,
		Style:        m.Journal.Style,
		AssembledAt:  now.UTC(),
		References:   res.References,
		Acknowledged: accepted,
	}
	for _, s := range res.Sections {
		sec := Section{Kind: s.Kind, Title: s.Kind.Title(), Text: s.Text}
		if s.Kind == types.SectionCoverLetter {
			doc.CoverLetter = &sec
			continue
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc, nil
}
