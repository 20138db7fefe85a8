// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the frozen fact sheet and the confirmed reference
// set. Both structures accept writes until they are confirmed and are
// read-only afterwards. Lookups never fail: a missing key returns a value
// whose Known method reports false, so downstream code cannot fabricate a
// value by accident.
package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// numberRe matches integers and decimals embedded in categorical values.
var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Registry is safe for concurrent use. Freezes are the only guarded
// transitions; a freeze that fails leaves the registry unchanged.
type Registry struct {
	mu sync.RWMutex

	facts       map[string]types.Fact
	factOrder   []string
	factsFrozen bool
	planText    string

	candidates     map[string]types.ReferenceCandidate
	candidateOrder []string
	confirmed      []string
	refsFrozen     bool
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{
		facts:      make(map[string]types.Fact),
		candidates: make(map[string]types.ReferenceCandidate),
	}
}

// RegisterFacts replaces the draft fact sheet. Keys must be non-empty and
// unique. Facts without a kind are stored as unknown.
func (r *Registry) RegisterFacts(facts []types.Fact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerFactsLocked(facts, "register facts")
}

// RegisterIngest stores the ingestion collaborator's fact sheet and plan
// text in one step.
func (r *Registry) RegisterIngest(in types.IngestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.registerFactsLocked(in.Facts, "register ingest"); err != nil {
		return err
	}
	r.planText = in.PlanText
	return nil
}

func (r *Registry) registerFactsLocked(facts []types.Fact, op string) error {
	if r.factsFrozen {
		return &RegistryLockedError{Structure: StructureFacts, Op: op}
	}

	next := make(map[string]types.Fact, len(facts))
	order := make([]string, 0, len(facts))
	for i, f := range facts {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return fmt.Errorf("fact %d: empty key", i)
		}
		if _, dup := next[key]; dup {
			return fmt.Errorf("fact %q: duplicate key", key)
		}
		f.Key = key
		if f.Kind == "" {
			f.Kind = types.FactUnknown
		}
		next[key] = f
		order = append(order, key)
	}

	r.facts = next
	r.factOrder = order
	return nil
}

// ConfirmFacts freezes the fact sheet.
func (r *Registry) ConfirmFacts() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factsFrozen {
		return &RegistryLockedError{Structure: StructureFacts, Op: "confirm facts"}
	}
	r.factsFrozen = true
	return nil
}

// FactsConfirmed reports whether the fact sheet is frozen.
func (r *Registry) FactsConfirmed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factsFrozen
}

// Fact returns the fact stored under key, or an unknown fact carrying only
// the key when none exists.
func (r *Registry) Fact(key string) types.Fact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.facts[key]; ok {
		return f
	}
	return types.Fact{Key: key, Kind: types.FactUnknown}
}

// Facts returns every fact in registration order.
func (r *Registry) Facts() []types.Fact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Fact, 0, len(r.factOrder))
	for _, k := range r.factOrder {
		out = append(out, r.facts[k])
	}
	return out
}

// FactsFor returns the known facts relevant to a section, in registration order.
func (r *Registry) FactsFor(kind types.SectionKind) []types.Fact {
	var out []types.Fact
	for _, f := range r.Facts() {
		if f.Known() && f.RelevantTo(kind) {
			out = append(out, f)
		}
	}
	return out
}

// PlanText returns the ingested study plan or protocol text.
func (r *Registry) PlanText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.planText
}

// NumericValues returns every number traceable to the fact sheet: the
// values of numeric facts and the numbers embedded in categorical values.
func (r *Registry) NumericValues() []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []float64
	for _, k := range r.factOrder {
		f := r.facts[k]
		switch f.Kind {
		case types.FactNumeric:
			if f.Number != nil {
				out = append(out, *f.Number)
			}
		case types.FactCategorical:
			for _, m := range numberRe.FindAllString(f.Text, -1) {
				if v, err := strconv.ParseFloat(m, 64); err == nil {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// AddCandidates adds records to the candidate pool. A candidate with an
// identifier already in the pool replaces the earlier record.
func (r *Registry) AddCandidates(cands ...types.ReferenceCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refsFrozen {
		return &RegistryLockedError{Structure: StructureReferences, Op: "add candidates"}
	}
	for _, c := range cands {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("candidate %q: empty identifier", c.Title)
		}
		c.ID = id
		if _, exists := r.candidates[id]; !exists {
			r.candidateOrder = append(r.candidateOrder, id)
		}
		r.candidates[id] = c
	}
	return nil
}

// RemoveCandidate drops a record from the pool. Removing an absent id is a no-op.
func (r *Registry) RemoveCandidate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refsFrozen {
		return &RegistryLockedError{Structure: StructureReferences, Op: "remove candidate"}
	}
	if _, ok := r.candidates[id]; !ok {
		return nil
	}
	delete(r.candidates, id)
	for i, k := range r.candidateOrder {
		if k == id {
			r.candidateOrder = append(r.candidateOrder[:i], r.candidateOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Candidates returns the candidate pool in insertion order.
func (r *Registry) Candidates() []types.ReferenceCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ReferenceCandidate, 0, len(r.candidateOrder))
	for _, id := range r.candidateOrder {
		out = append(out, r.candidates[id])
	}
	return out
}

// ConfirmReferences freezes the confirmed subset of the candidate pool.
// The cap applies to the identifiers as given, repeats included; repeats
// within the cap are collapsed to their first position. On any error the
// registry is left unfrozen.
func (r *Registry) ConfirmReferences(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refsFrozen {
		return &RegistryLockedError{Structure: StructureReferences, Op: "confirm references"}
	}

	given := 0
	seen := make(map[string]bool, len(ids))
	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		given++
		if seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}

	if given > types.MaxConfirmedReferences {
		return &TooManyReferencesError{Count: given, Max: types.MaxConfirmedReferences}
	}

	var unknown []string
	for _, id := range distinct {
		if _, ok := r.candidates[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &UnknownReferenceError{IDs: unknown}
	}

	r.confirmed = distinct
	r.refsFrozen = true
	return nil
}

// ReferencesConfirmed reports whether the reference set is frozen.
func (r *Registry) ReferencesConfirmed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refsFrozen
}

// Reference returns the confirmed record for id, or the zero candidate if
// id is not in the confirmed set.
func (r *Registry) Reference(id string) types.ReferenceCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.refsFrozen {
		return types.ReferenceCandidate{}
	}
	for _, c := range r.confirmed {
		if c == id {
			return r.candidates[id]
		}
	}
	return types.ReferenceCandidate{}
}

// ConfirmedReferences returns the confirmed set in confirmation order, or
// nil before confirmation.
func (r *Registry) ConfirmedReferences() []types.ReferenceCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.refsFrozen {
		return nil
	}
	out := make([]types.ReferenceCandidate, 0, len(r.confirmed))
	for _, id := range r.confirmed {
		out = append(out, r.candidates[id])
	}
	return out
}
