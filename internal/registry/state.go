// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// State is a serializable snapshot of a registry, used by the workspace
// store to persist and reload it.
type State struct {
	Facts       []types.Fact               `json:"facts" yaml:"facts"`
	FactsFrozen bool                       `json:"facts_frozen" yaml:"facts_frozen"`
	PlanText    string                     `json:"plan_text,omitempty" yaml:"plan_text,omitempty"`
	Candidates  []types.ReferenceCandidate `json:"candidates" yaml:"candidates"`
	Confirmed   []string                   `json:"confirmed,omitempty" yaml:"confirmed,omitempty"`
	RefsFrozen  bool                       `json:"refs_frozen" yaml:"refs_frozen"`
}

// Snapshot copies the registry's current contents.
func (r *Registry) Snapshot() State {
	facts := r.Facts()
	cands := r.Candidates()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{
		Facts:       facts,
		FactsFrozen: r.factsFrozen,
		PlanText:    r.planText,
		Candidates:  cands,
		Confirmed:   append([]string(nil), r.confirmed...),
		RefsFrozen:  r.refsFrozen,
	}
}

// FromState rebuilds a registry from a snapshot. Freezes are replayed
// through the same checks a live registry applies.
func FromState(s State) (*Registry, error) {
	r := New()
	if err := r.RegisterIngest(types.IngestResult{Facts: s.Facts, PlanText: s.PlanText}); err != nil {
		return nil, fmt.Errorf("restoring facts: %w", err)
	}
	if s.FactsFrozen {
		if err := r.ConfirmFacts(); err != nil {
			return nil, err
		}
	}
	if err := r.AddCandidates(s.Candidates...); err != nil {
		return nil, fmt.Errorf("restoring candidates: %w", err)
	}
	if s.RefsFrozen {
		if err := r.ConfirmReferences(s.Confirmed); err != nil {
			return nil, fmt.Errorf("restoring confirmed references: %w", err)
		}
	}
	return r, nil
}
