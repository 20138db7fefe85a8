// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"fmt"
	"sort"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Level is how far an upstream section must have progressed.
type Level string

const (
	// LevelOutline is satisfied by any drafted or locked section.
	LevelOutline Level = "outline"
	// LevelLocked is satisfied only by a locked section that is not stale.
	LevelLocked Level = "locked"
)

// Requirement is one edge of the dependency graph: the dependent section
// needs On to have reached Level.
type Requirement struct {
	On    types.SectionKind `json:"on"`
	Level Level             `json:"level"`
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s (%s)", r.On, r.Level)
}

// Graph is a directed acyclic graph of section kinds.
type Graph struct {
	deps  map[types.SectionKind][]Requirement
	order []types.SectionKind
}

// NewGraph builds a graph over the given sections. It rejects edges to
// unknown sections and cycles.
func NewGraph(sections []types.SectionKind, deps map[types.SectionKind][]Requirement) (*Graph, error) {
	known := make(map[types.SectionKind]bool, len(sections))
	for _, s := range sections {
		known[s] = true
	}
	g := &Graph{deps: make(map[types.SectionKind][]Requirement, len(deps))}
	for k, reqs := range deps {
		if !known[k] {
			return nil, fmt.Errorf("dependency graph: unknown section %q", k)
		}
		for _, r := range reqs {
			if !known[r.On] {
				return nil, fmt.Errorf("dependency graph: %s depends on unknown section %q", k, r.On)
			}
		}
		g.deps[k] = append([]Requirement(nil), reqs...)
	}

	order, err := topoSort(sections, g.deps)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// DefaultGraph is the fixed chain Methods → Results → Introduction →
// Discussion → Conclusion → Abstract → Cover letter, where the abstract
// and cover letter also need every body section locked.
func DefaultGraph() *Graph {
	deps := make(map[types.SectionKind][]Requirement)
	for i := 1; i < len(types.GenerationOrder); i++ {
		k := types.GenerationOrder[i]
		deps[k] = append(deps[k], Requirement{On: types.GenerationOrder[i-1], Level: LevelOutline})
	}
	for _, k := range []types.SectionKind{types.SectionAbstract, types.SectionCoverLetter} {
		for _, body := range types.BodySections {
			deps[k] = append(deps[k], Requirement{On: body, Level: LevelLocked})
		}
	}
	g, err := NewGraph(types.GenerationOrder, deps)
	if err != nil {
		panic(err)
	}
	return g
}

// Requirements returns the direct requirements of kind.
func (g *Graph) Requirements(kind types.SectionKind) []Requirement {
	return append([]Requirement(nil), g.deps[kind]...)
}

// Order returns every section in a topological order; ties keep the order
// the sections were declared in.
func (g *Graph) Order() []types.SectionKind {
	return append([]types.SectionKind(nil), g.order...)
}

// Upstream returns every section kind transitively depends on, in
// topological order.
func (g *Graph) Upstream(kind types.SectionKind) []types.SectionKind {
	seen := make(map[types.SectionKind]bool)
	var walk func(types.SectionKind)
	walk = func(k types.SectionKind) {
		for _, r := range g.deps[k] {
			if !seen[r.On] {
				seen[r.On] = true
				walk(r.On)
			}
		}
	}
	walk(kind)
	return g.filterOrder(seen)
}

// Downstream returns every section that transitively depends on kind, in
// topological order.
func (g *Graph) Downstream(kind types.SectionKind) []types.SectionKind {
	seen := make(map[types.SectionKind]bool)
	changed := true
	for changed {
		changed = false
		for k, reqs := range g.deps {
			if seen[k] {
				continue
			}
			for _, r := range reqs {
				if r.On == kind || seen[r.On] {
					seen[k] = true
					changed = true
					break
				}
			}
		}
	}
	return g.filterOrder(seen)
}

func (g *Graph) filterOrder(set map[types.SectionKind]bool) []types.SectionKind {
	var out []types.SectionKind
	for _, k := range g.order {
		if set[k] {
			out = append(out, k)
		}
	}
	return out
}

// topoSort runs Kahn's algorithm, always emitting the earliest-declared
// ready section so the result is deterministic.
func topoSort(sections []types.SectionKind, deps map[types.SectionKind][]Requirement) ([]types.SectionKind, error) {
	index := make(map[types.SectionKind]int, len(sections))
	for i, s := range sections {
		index[s] = i
	}
	indegree := make(map[types.SectionKind]int, len(sections))
	dependents := make(map[types.SectionKind][]types.SectionKind)
	for k, reqs := range deps {
		onSet := make(map[types.SectionKind]bool)
		for _, r := range reqs {
			if onSet[r.On] {
				continue
			}
			onSet[r.On] = true
			indegree[k]++
			dependents[r.On] = append(dependents[r.On], k)
		}
	}

	var ready []types.SectionKind
	for _, s := range sections {
		if indegree[s] == 0 {
			ready = append(ready, s)
		}
	}

	var order []types.SectionKind
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, d := range dependents[next] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(sections) {
		return nil, fmt.Errorf("dependency graph: cycle detected")
	}
	return order, nil
}
