// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation resolves {cite:PMID:<id>} placeholders into sequential
// in-text citation numbers and builds the matching reference list.
//
// Numbering follows first appearance: sections are scanned in the order the
// caller passes them, each left to right. The first occurrence of an id
// takes the next number starting at 1; later occurrences reuse it. Resolve
// is a pure function of its inputs.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// placeholderOpen starts every citation marker, well-formed or not.
const placeholderOpen = "{cite:"

// placeholderPattern matches a well-formed placeholder and captures the id.
var placeholderPattern = regexp.MustCompile(`\{cite:PMID:([^{}\s]+)\}`)

// Placeholder builds the marker the generation collaborator emits for id.
func Placeholder(id string) string {
	return "{cite:PMID:" + id + "}"
}

// IDs returns the ids of every well-formed placeholder in text, in order
// of appearance and including repeats.
func IDs(text string) []string {
	var ids []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// Malformed returns every "{cite:" marker in text that is not a
// well-formed PMID placeholder, e.g. "{cite:DOI:x}" or an unclosed brace.
// Each is reported up to the next closing brace or 40 bytes.
func Malformed(text string) []string {
	valid := make(map[int]bool)
	for _, loc := range placeholderPattern.FindAllStringIndex(text, -1) {
		valid[loc[0]] = true
	}
	var out []string
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], placeholderOpen)
		if j < 0 {
			break
		}
		start := i + j
		if !valid[start] {
			end := start + 40
			if end > len(text) {
				end = len(text)
			}
			if k := strings.IndexByte(text[start:end], '}'); k >= 0 {
				end = start + k + 1
			}
			out = append(out, text[start:end])
		}
		i = start + len(placeholderOpen)
	}
	return out
}

// Strip removes every placeholder from text.
func Strip(text string) string {
	return placeholderPattern.ReplaceAllString(text, "")
}

// SectionText is one section's text as input to, or output of, Resolve.
type SectionText struct {
	Kind types.SectionKind `json:"kind"`
	Text string            `json:"text"`
}

// Entry is one numbered line of the reference list.
type Entry struct {
	Number    int                      `json:"number"`
	Reference types.ReferenceCandidate `json:"reference"`
	// Formatted is the Vancouver rendering without the number.
	Formatted string `json:"formatted"`
}

// Resolution is the output of Resolve.
type Resolution struct {
	// Sections are the input sections, same order, placeholders replaced.
	Sections []SectionText `json:"sections"`
	// References are ordered by citation number; Number = index + 1.
	References []Entry `json:"references"`
	// Numbers maps each cited id to its citation number.
	Numbers map[string]int `json:"numbers"`
}

// Lookup returns the confirmed reference for id. A reference whose Known
// reports false is treated as absent. registry.Registry.Reference fits.
type Lookup func(id string) types.ReferenceCandidate

// Resolve numbers every placeholder across sections. Any placeholder whose
// id the lookup does not know fails the whole resolution with an
// UnresolvedCitationError listing each offending (section, id) once; no
// partial output is returned.
func Resolve(sections []SectionText, lookup Lookup, format types.InTextFormat) (*Resolution, error) {
	numbers := make(map[string]int)
	var order []string
	var missing []Unresolved
	reported := make(map[Unresolved]bool)

	for _, s := range sections {
		for _, id := range IDs(s.Text) {
			if _, ok := numbers[id]; ok {
				continue
			}
			ref := lookup(id)
			if !ref.Known() {
				u := Unresolved{Section: s.Kind, ID: id}
				if !reported[u] {
					reported[u] = true
					missing = append(missing, u)
				}
				continue
			}
			order = append(order, id)
			numbers[id] = len(order)
		}
	}
	if len(missing) > 0 {
		return nil, &UnresolvedCitationError{Missing: missing}
	}

	res := &Resolution{
		Sections: make([]SectionText, len(sections)),
		Numbers:  numbers,
	}
	for i, s := range sections {
		text := placeholderPattern.ReplaceAllStringFunc(s.Text, func(m string) string {
			id := placeholderPattern.FindStringSubmatch(m)[1]
			return FormatNumber(numbers[id], format)
		})
		res.Sections[i] = SectionText{Kind: s.Kind, Text: text}
	}
	for i, id := range order {
		ref := lookup(id)
		res.References = append(res.References, Entry{
			Number:    i + 1,
			Reference: ref,
			Formatted: FormatVancouver(ref),
		})
	}
	return res, nil
}

// Section returns the resolved text of kind.
func (r *Resolution) Section(kind types.SectionKind) (string, bool) {
	for _, s := range r.Sections {
		if s.Kind == kind {
			return s.Text, true
		}
	}
	return "", false
}

// CitedIDs returns the cited ids in number order.
func (r *Resolution) CitedIDs() []string {
	ids := make([]string, 0, len(r.Numbers))
	for id := range r.Numbers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.Numbers[ids[i]] < r.Numbers[ids[j]] })
	return ids
}

// FormatNumber renders a citation number in the given in-text format.
// Unknown formats fall back to brackets.
func FormatNumber(n int, format types.InTextFormat) string {
	s := strconv.Itoa(n)
	switch format {
	case types.InTextParen:
		return "(" + s + ")"
	case types.InTextSuperscript:
		return "^" + s + "^"
	default:
		return "[" + s + "]"
	}
}

// Unresolved is one placeholder id with no confirmed reference.
type Unresolved struct {
	Section types.SectionKind `json:"section"`
	ID      string            `json:"id"`
}

// UnresolvedCitationError reports placeholders that cite ids outside the
// confirmed reference set. Assembly cannot proceed past it.
type UnresolvedCitationError struct {
	Missing []Unresolved
}

func (e *UnresolvedCitationError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, u := range e.Missing {
		parts[i] = fmt.Sprintf("%s: PMID %s", u.Section, u.ID)
	}
	return fmt.Sprintf("unresolved citations (not in confirmed reference set): %s", strings.Join(parts, "; "))
}
