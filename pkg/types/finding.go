// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Severity grades a QA or similarity finding.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking_error"
)

// FindingKind classifies a finding.
type FindingKind string

const (
	FindingWordCount          FindingKind = "word_count"
	FindingStructure          FindingKind = "structure"
	FindingReferenceCount     FindingKind = "reference_count"
	FindingUnresolvedCitation FindingKind = "unresolved_citation"
	FindingUnverifiedFigure   FindingKind = "unverified_figure"
	FindingUncitedClaim       FindingKind = "uncited_claim"
	FindingMainTextLength     FindingKind = "main_text_length"
	FindingMissingSection     FindingKind = "missing_section"
	FindingDuplication        FindingKind = "duplication"
)

// Finding is one independent result of a check. Section is empty for
// manuscript-wide findings.
type Finding struct {
	Severity Severity    `json:"severity" yaml:"severity"`
	Kind     FindingKind `json:"kind" yaml:"kind"`
	Section  SectionKind `json:"section,omitempty" yaml:"section,omitempty"`
	Message  string      `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	where := string(f.Section)
	if where == "" {
		where = "manuscript"
	}
	return fmt.Sprintf("%s %s [%s]: %s", f.Severity, f.Kind, where, f.Message)
}
