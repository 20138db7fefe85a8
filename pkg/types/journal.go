// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MaxConfirmedReferences is the hard cap on the confirmed reference set.
const MaxConfirmedReferences = 30

// CitationStyle identifies the reference list style.
type CitationStyle string

const StyleVancouver CitationStyle = "vancouver"

// InTextFormat selects how a resolved citation number appears in the text.
type InTextFormat string

const (
	InTextBracket     InTextFormat = "bracket"     // [1]
	InTextParen       InTextFormat = "paren"       // (1)
	InTextSuperscript InTextFormat = "superscript" // ^1^ (Pandoc Markdown)
)

// WordRange bounds the word count of a section. A zero bound is unchecked.
type WordRange struct {
	Min int `json:"min,omitempty" yaml:"min,omitempty" validate:"gte=0"`
	Max int `json:"max,omitempty" yaml:"max,omitempty" validate:"gte=0"`
}

// AbstractSpec describes the journal's abstract requirements.
type AbstractSpec struct {
	// Structured requires the abstract to carry the headings below, each
	// at the start of a line and followed by a colon.
	Structured bool     `json:"structured" yaml:"structured"`
	Headings   []string `json:"headings,omitempty" yaml:"headings,omitempty"`
}

// JournalSpec holds the target venue's structural rules. It is extracted
// once (by the ingestion collaborator or by hand) and never mutated.
type JournalSpec struct {
	// Name is the journal title, used in the cover letter prompt.
	Name string `json:"name" yaml:"name" validate:"required"`

	// ArticleType is e.g. "Original Article".
	ArticleType string `json:"article_type,omitempty" yaml:"article_type,omitempty"`

	// Style is the citation style identifier; only vancouver is supported.
	Style CitationStyle `json:"style" yaml:"style" validate:"omitempty,oneof=vancouver"`

	// InTextFormat selects bracket, paren, or superscript citation numbers.
	InTextFormat InTextFormat `json:"in_text_format" yaml:"in_text_format" validate:"omitempty,oneof=bracket paren superscript"`

	// MaxReferences caps the reference list. Values above 30 are rejected.
	MaxReferences int `json:"max_references" yaml:"max_references" validate:"gte=0,lte=30"`

	// RequiredSections must all be locked before assembly.
	RequiredSections []SectionKind `json:"required_sections" yaml:"required_sections"`

	// WordLimits maps a section to its allowed word range.
	WordLimits map[SectionKind]WordRange `json:"word_limits,omitempty" yaml:"word_limits,omitempty" validate:"dive"`

	// MainTextWordLimit caps Introduction through Conclusion combined (0 = none).
	MainTextWordLimit int `json:"main_text_word_limit,omitempty" yaml:"main_text_word_limit,omitempty" validate:"gte=0"`

	Abstract AbstractSpec `json:"abstract" yaml:"abstract"`

	// GuidelineText is the raw author-guideline text, kept for the
	// boilerplate similarity check.
	GuidelineText string `json:"guideline_text,omitempty" yaml:"guideline_text,omitempty"`
}

// DefaultAbstractHeadings are used when a structured abstract declares none.
var DefaultAbstractHeadings = []string{"Background", "Methods", "Results", "Conclusion"}

// WithDefaults returns a copy of the spec with unset fields filled in.
func (j JournalSpec) WithDefaults() JournalSpec {
	if j.Style == "" {
		j.Style = StyleVancouver
	}
	if j.InTextFormat == "" {
		j.InTextFormat = InTextBracket
	}
	if j.MaxReferences == 0 {
		j.MaxReferences = MaxConfirmedReferences
	}
	if len(j.RequiredSections) == 0 {
		j.RequiredSections = append([]SectionKind(nil), GenerationOrder...)
	}
	if j.Abstract.Structured && len(j.Abstract.Headings) == 0 {
		j.Abstract.Headings = append([]string(nil), DefaultAbstractHeadings...)
	}
	return j
}

// Requires reports whether the spec lists kind as a required section.
func (j JournalSpec) Requires(kind SectionKind) bool {
	for _, k := range j.RequiredSections {
		if k == kind {
			return true
		}
	}
	return false
}
