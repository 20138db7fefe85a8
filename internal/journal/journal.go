// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal loads and validates the YAML inputs of a manuscript
// workspace: the journal specification, the ingestion output and
// reference candidate files. It also validates the engine configuration.
package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists every problem found in one input file.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d problem(s): %s", e.Source, len(e.Problems), strings.Join(e.Problems, "; "))
}

// LoadSpec reads and validates a journal specification. The returned spec
// has defaults applied.
func LoadSpec(path string) (types.JournalSpec, error) {
	var spec types.JournalSpec
	if err := decodeFile(path, &spec); err != nil {
		return types.JournalSpec{}, err
	}
	if err := ValidateSpec(path, spec); err != nil {
		return types.JournalSpec{}, err
	}
	return spec.WithDefaults(), nil
}

// ValidateSpec checks struct tags plus the cross-field rules tags cannot
// express: known section kinds and ordered word ranges.
func ValidateSpec(source string, spec types.JournalSpec) error {
	problems := structProblems(spec)
	for _, k := range spec.RequiredSections {
		if !k.Valid() {
			problems = append(problems, fmt.Sprintf("required_sections: unknown section %q", k))
		}
	}
	for k, r := range spec.WordLimits {
		if !k.Valid() {
			problems = append(problems, fmt.Sprintf("word_limits: unknown section %q", k))
		}
		if r.Max > 0 && r.Min > r.Max {
			problems = append(problems, fmt.Sprintf("word_limits.%s: min %d exceeds max %d", k, r.Min, r.Max))
		}
	}
	for _, h := range spec.Abstract.Headings {
		if strings.TrimSpace(h) == "" {
			problems = append(problems, "abstract.headings: empty heading")
		}
	}
	return asError(source, problems)
}

// LoadIngest reads and validates the ingestion collaborator's output.
func LoadIngest(path string) (types.IngestResult, error) {
	var in types.IngestResult
	if err := decodeFile(path, &in); err != nil {
		return types.IngestResult{}, err
	}
	if err := ValidateIngest(path, in); err != nil {
		return types.IngestResult{}, err
	}
	return in, nil
}

// ValidateIngest checks that every fact has a unique key and that its
// value matches its kind.
func ValidateIngest(source string, in types.IngestResult) error {
	problems := structProblems(in)
	seen := make(map[string]bool, len(in.Facts))
	for i, f := range in.Facts {
		name := f.Key
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if f.Key != "" && seen[f.Key] {
			problems = append(problems, fmt.Sprintf("fact %s: duplicate key", name))
		}
		seen[f.Key] = true

		switch f.Kind {
		case types.FactNumeric:
			if f.Number == nil {
				problems = append(problems, fmt.Sprintf("fact %s: numeric fact without number", name))
			}
		case types.FactCategorical:
			if f.Text == "" {
				problems = append(problems, fmt.Sprintf("fact %s: categorical fact without text", name))
			}
		}
		for _, k := range f.Sections {
			if !k.Valid() {
				problems = append(problems, fmt.Sprintf("fact %s: unknown section %q", name, k))
			}
		}
	}
	return asError(source, problems)
}

// LoadCandidates reads a reference candidate file.
func LoadCandidates(path string) ([]types.ReferenceCandidate, error) {
	var cf types.CandidatesFile
	if err := decodeFile(path, &cf); err != nil {
		return nil, err
	}
	if err := asError(path, structProblems(cf)); err != nil {
		return nil, err
	}
	return cf.References, nil
}

// WriteCandidates saves candidates so a researcher can prune them by hand
// and add the rest with LoadCandidates.
func WriteCandidates(path string, cands []types.ReferenceCandidate) error {
	data, err := yaml.Marshal(&types.CandidatesFile{References: cands})
	if err != nil {
		return fmt.Errorf("marshaling candidates: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing candidates file %s: %w", path, err)
	}
	return nil
}

// ValidateConfig checks the engine configuration against its struct tags.
func ValidateConfig(cfg types.EngineConfig) error {
	return asError("config", structProblems(cfg))
}

// decodeFile parses YAML strictly: unknown fields are errors so a typo in
// a limit does not silently disable it.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func structProblems(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of [%s]", field, fe.Value(), fe.Param())
	case "lte", "gte":
		return fmt.Sprintf("%s: %v must be %s %s", field, fe.Value(), fe.Tag(), fe.Param())
	case "email":
		return fmt.Sprintf("%s: %q is not an email address", field, fe.Value())
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func asError(source string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Source: source, Problems: problems}
}
