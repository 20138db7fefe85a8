// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strconv"
)

// FactKind describes the type of a fact's value.
type FactKind string

const (
	FactNumeric     FactKind = "numeric"
	FactCategorical FactKind = "categorical"
	// FactUnknown marks a fact whose value was not recoverable from the
	// source, and is also what a registry lookup returns for a missing key.
	FactUnknown FactKind = "unknown"
)

// Fact is one named observation or result extracted from the study's
// tables and figures.
type Fact struct {
	// Key names the observation (e.g. "robotic.n", "t2.los_median").
	Key string `json:"key" yaml:"key" validate:"required"`

	Kind FactKind `json:"kind" yaml:"kind" validate:"omitempty,oneof=numeric categorical unknown"`

	// Number holds the value of a numeric fact.
	Number *float64 `json:"number,omitempty" yaml:"number,omitempty"`

	// Text holds the value of a categorical fact (e.g. "5% vs 10%").
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Provenance identifies the source table or figure (e.g. "T1", "F2").
	Provenance string `json:"provenance" yaml:"provenance"`

	// Sections limits which sections receive this fact in their generation
	// context. Empty means every section.
	Sections []SectionKind `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Known reports whether the fact carries a value.
func (f Fact) Known() bool {
	switch f.Kind {
	case FactNumeric:
		return f.Number != nil
	case FactCategorical:
		return f.Text != ""
	}
	return false
}

// RelevantTo reports whether the fact should be packaged for kind.
func (f Fact) RelevantTo(kind SectionKind) bool {
	if len(f.Sections) == 0 {
		return true
	}
	for _, s := range f.Sections {
		if s == kind {
			return true
		}
	}
	return false
}

// String renders the value for prompts and listings.
func (f Fact) String() string {
	switch {
	case f.Kind == FactNumeric && f.Number != nil:
		return strconv.FormatFloat(*f.Number, 'f', -1, 64)
	case f.Kind == FactCategorical:
		return f.Text
	}
	return "not specified"
}

// IngestResult is the output of the ingestion collaborator: a draft fact
// sheet plus the raw source texts used for duplication checks.
type IngestResult struct {
	Facts         []Fact `json:"facts" yaml:"facts" validate:"dive"`
	PlanText      string `json:"plan_text,omitempty" yaml:"plan_text,omitempty"`
	GuidelineText string `json:"guideline_text,omitempty" yaml:"guideline_text,omitempty"`
}
