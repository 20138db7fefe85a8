// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the manuscript-engine core:
// journal constraints, the fact sheet, reference candidates, section kinds and
// lifecycle values, QA findings, and stage configuration.
package types

import (
	"fmt"
	"strings"
)

// SectionKind identifies one section of the manuscript.
type SectionKind string

const (
	SectionMethods      SectionKind = "methods"
	SectionResults      SectionKind = "results"
	SectionIntroduction SectionKind = "introduction"
	SectionDiscussion   SectionKind = "discussion"
	SectionConclusion   SectionKind = "conclusion"
	SectionAbstract     SectionKind = "abstract"
	SectionCoverLetter  SectionKind = "cover_letter"
)

// GenerationOrder lists every section in the fixed order generation walks them.
var GenerationOrder = []SectionKind{
	SectionMethods,
	SectionResults,
	SectionIntroduction,
	SectionDiscussion,
	SectionConclusion,
	SectionAbstract,
	SectionCoverLetter,
}

// DocumentOrder lists every section in reading order. Citation numbering
// scans sections in this order; the cover letter comes last because it is
// shipped separately from the manuscript body.
var DocumentOrder = []SectionKind{
	SectionAbstract,
	SectionIntroduction,
	SectionMethods,
	SectionResults,
	SectionDiscussion,
	SectionConclusion,
	SectionCoverLetter,
}

// BodySections are the IMRaD sections that must be locked before the
// abstract and cover letter can be generated.
var BodySections = []SectionKind{
	SectionMethods,
	SectionResults,
	SectionIntroduction,
	SectionDiscussion,
	SectionConclusion,
}

var sectionTitles = map[SectionKind]string{
	SectionMethods:      "Methods",
	SectionResults:      "Results",
	SectionIntroduction: "Introduction",
	SectionDiscussion:   "Discussion",
	SectionConclusion:   "Conclusion",
	SectionAbstract:     "Abstract",
	SectionCoverLetter:  "Cover Letter",
}

// Title returns the display heading for the section.
func (k SectionKind) Title() string {
	if t, ok := sectionTitles[k]; ok {
		return t
	}
	return string(k)
}

// Valid reports whether k is one of the known section kinds.
func (k SectionKind) Valid() bool {
	_, ok := sectionTitles[k]
	return ok
}

// ParseSectionKind accepts either the identifier ("cover_letter") or the
// display title ("Cover Letter", "coverletter") of a section.
func ParseSectionKind(s string) (SectionKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(norm)
	for k := range sectionTitles {
		if strings.ReplaceAll(string(k), "_", "") == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// Phase is the generation pass a draft was produced by.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseOutline Phase = "outline"
	PhaseBody    Phase = "body"
)

// ParsePhase converts a flag value into a Phase.
func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToLower(strings.TrimSpace(s))) {
	case PhaseOutline:
		return PhaseOutline, nil
	case PhaseBody:
		return PhaseBody, nil
	}
	return PhaseNone, fmt.Errorf("unknown phase %q: use outline or body", s)
}

// SectionState is the lifecycle state of a section. A Drafted section also
// carries the Phase that produced its current text.
type SectionState string

const (
	StateEmpty   SectionState = "empty"
	StateDrafted SectionState = "drafted"
	StateLocked  SectionState = "locked"
)
