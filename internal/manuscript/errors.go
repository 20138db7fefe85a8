// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"fmt"
	"strings"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// DependencyNotReadyError reports an attempt to generate a section whose
// prerequisites are not met. It is never skipped silently.
type DependencyNotReadyError struct {
	Section types.SectionKind
	Phase   types.Phase
	Missing []Requirement
	// Reason explains a non-graph precondition, e.g. an unconfirmed
	// reference set or a missing outline.
	Reason string
}

func (e *DependencyNotReadyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		reqs := make([]string, len(e.Missing))
		for i, r := range e.Missing {
			reqs[i] = r.String()
		}
		parts = append(parts, "waiting on "+strings.Join(reqs, ", "))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return fmt.Sprintf("%s %s pass not ready: %s", e.Section, e.Phase, strings.Join(parts, "; "))
}

// ConcurrentModificationError reports a write that lost a race: the
// section changed, or was locked, after the caller last read it.
type ConcurrentModificationError struct {
	Section  types.SectionKind
	Op       string
	Expected int
	Actual   int
	State    types.SectionState
}

func (e *ConcurrentModificationError) Error() string {
	if e.State == types.StateLocked {
		return fmt.Sprintf("concurrent modification: cannot %s %s, section is already locked", e.Op, e.Section)
	}
	return fmt.Sprintf("concurrent modification: cannot %s %s, expected revision %d but section is at revision %d",
		e.Op, e.Section, e.Expected, e.Actual)
}

// SectionLockedError reports an attempt to overwrite a locked section.
type SectionLockedError struct {
	Section types.SectionKind
}

func (e *SectionLockedError) Error() string {
	return fmt.Sprintf("section %s is locked; unlock it before regenerating", e.Section)
}

// InvalidTransitionError reports a lifecycle transition the state machine
// does not allow from the section's current state.
type InvalidTransitionError struct {
	Section types.SectionKind
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("section %s: cannot move from %s to %s", e.Section, e.From, e.To)
}

// NotAssemblyReadyError lists the required sections that block assembly.
type NotAssemblyReadyError struct {
	Pending []PendingSection
}

// PendingSection is a required section that is not yet assembly-ready.
type PendingSection struct {
	Section types.SectionKind
	State   string
}

func (e *NotAssemblyReadyError) Error() string {
	parts := make([]string, len(e.Pending))
	for i, p := range e.Pending {
		parts[i] = fmt.Sprintf("%s (%s)", p.Section, p.State)
	}
	return "manuscript not assembly-ready: " + strings.Join(parts, ", ")
}
