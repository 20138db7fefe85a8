// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"time"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Section is one section's draft and lifecycle. Values returned by the
// Manuscript are copies.
type Section struct {
	Kind     types.SectionKind  `json:"kind" yaml:"kind"`
	Text     string             `json:"text" yaml:"text"`
	Phase    types.Phase        `json:"phase,omitempty" yaml:"phase,omitempty"`
	State    types.SectionState `json:"state" yaml:"state"`
	Revision int                `json:"revision" yaml:"revision"`

	// Stale marks a section whose upstream was unlocked after it was
	// drafted. It must be revalidated (or regenerated) before assembly.
	Stale bool `json:"stale,omitempty" yaml:"stale,omitempty"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Label renders the state the way the lifecycle is described:
// empty, drafted(outline), drafted(body), locked.
func (s Section) Label() string {
	label := string(s.State)
	if s.State == types.StateDrafted {
		label += "(" + string(s.Phase) + ")"
	}
	if s.Stale {
		label += ", stale"
	}
	return label
}

// satisfies reports whether the section meets an upstream requirement level.
func (s Section) satisfies(level Level) bool {
	switch level {
	case LevelOutline:
		return s.State == types.StateDrafted || s.State == types.StateLocked
	case LevelLocked:
		return s.State == types.StateLocked && !s.Stale
	}
	return false
}

// hasBody reports whether the section holds body-phase text.
func (s Section) hasBody() bool {
	return s.State == types.StateLocked || (s.State == types.StateDrafted && s.Phase == types.PhaseBody)
}
