// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// newTestManuscript returns a manuscript whose reference set is confirmed
// when confirmRefs is true.
func newTestManuscript(t *testing.T, confirmRefs bool) *Manuscript {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.AddCandidates(types.ReferenceCandidate{ID: "111", Title: "A"}))
	if confirmRefs {
		require.NoError(t, reg.ConfirmReferences([]string{"111"}))
	}
	return New(types.JournalSpec{Name: "Test Journal"}, reg)
}

// draft applies a pass to kind at its current revision.
func draft(t *testing.T, m *Manuscript, kind types.SectionKind, phase types.Phase, text string) Section {
	t.Helper()
	s, err := m.Section(kind)
	require.NoError(t, err)
	out, err := m.ApplyDraft(kind, phase, text, s.Revision)
	require.NoError(t, err)
	return out
}

// lockBody drives kind from its current state to locked.
func lockBody(t *testing.T, m *Manuscript, kind types.SectionKind) {
	t.Helper()
	s, err := m.Section(kind)
	require.NoError(t, err)
	if s.State == types.StateEmpty {
		draft(t, m, kind, types.PhaseOutline, "outline of "+string(kind))
	}
	s = draft(t, m, kind, types.PhaseBody, "body of "+string(kind))
	_, err = m.Lock(kind, s.Revision)
	require.NoError(t, err)
}

func TestDefaultGraphOrder(t *testing.T) {
	g := DefaultGraph()
	assert.Equal(t, types.GenerationOrder, g.Order())
	assert.Equal(t,
		[]types.SectionKind{types.SectionMethods, types.SectionResults},
		g.Upstream(types.SectionIntroduction))
	assert.Equal(t,
		[]types.SectionKind{types.SectionDiscussion, types.SectionConclusion, types.SectionAbstract, types.SectionCoverLetter},
		g.Downstream(types.SectionIntroduction))
}

func TestNewGraphRejectsCycle(t *testing.T) {
	_, err := NewGraph(
		[]types.SectionKind{types.SectionMethods, types.SectionResults},
		map[types.SectionKind][]Requirement{
			types.SectionMethods: {{On: types.SectionResults, Level: LevelOutline}},
			types.SectionResults: {{On: types.SectionMethods, Level: LevelOutline}},
		},
	)
	assert.ErrorContains(t, err, "cycle")
}

func TestNewGraphParallelSections(t *testing.T) {
	// Two independent sections both depend on Methods only.
	g, err := NewGraph(
		[]types.SectionKind{types.SectionMethods, types.SectionResults, types.SectionIntroduction},
		map[types.SectionKind][]Requirement{
			types.SectionResults:      {{On: types.SectionMethods, Level: LevelOutline}},
			types.SectionIntroduction: {{On: types.SectionMethods, Level: LevelOutline}},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []types.SectionKind{types.SectionMethods, types.SectionResults, types.SectionIntroduction}, g.Order())
	assert.Empty(t, g.Upstream(types.SectionMethods))
}

func TestOutlineRequiresUpstreamOutline(t *testing.T) {
	m := newTestManuscript(t, true)

	err := m.CheckReady(types.SectionResults, types.PhaseOutline)
	var notReady *DependencyNotReadyError
	require.True(t, errors.As(err, &notReady), "got %v", err)
	assert.Equal(t, types.SectionResults, notReady.Section)
	assert.Equal(t, []Requirement{{On: types.SectionMethods, Level: LevelOutline}}, notReady.Missing)

	// Out-of-order apply is rejected too and leaves the section empty.
	_, err = m.ApplyDraft(types.SectionDiscussion, types.PhaseOutline, "x", 0)
	require.True(t, errors.As(err, &notReady))
	s, _ := m.Section(types.SectionDiscussion)
	assert.Equal(t, types.StateEmpty, s.State)

	draft(t, m, types.SectionMethods, types.PhaseOutline, "m")
	assert.NoError(t, m.CheckReady(types.SectionResults, types.PhaseOutline))
}

func TestBodyPreconditions(t *testing.T) {
	t.Run("needs outline", func(t *testing.T) {
		m := newTestManuscript(t, true)
		err := m.CheckReady(types.SectionMethods, types.PhaseBody)
		var notReady *DependencyNotReadyError
		require.True(t, errors.As(err, &notReady))
		assert.Contains(t, notReady.Reason, "outline")
	})

	t.Run("needs confirmed references", func(t *testing.T) {
		m := newTestManuscript(t, false)
		draft(t, m, types.SectionMethods, types.PhaseOutline, "m")
		err := m.CheckReady(types.SectionMethods, types.PhaseBody)
		var notReady *DependencyNotReadyError
		require.True(t, errors.As(err, &notReady))
		assert.Contains(t, notReady.Reason, "reference set")
	})

	t.Run("ready", func(t *testing.T) {
		m := newTestManuscript(t, true)
		draft(t, m, types.SectionMethods, types.PhaseOutline, "m")
		assert.NoError(t, m.CheckReady(types.SectionMethods, types.PhaseBody))
	})
}

func TestRevisionCountsEveryDraft(t *testing.T) {
	m := newTestManuscript(t, true)
	s := draft(t, m, types.SectionMethods, types.PhaseOutline, "v1")
	assert.Equal(t, 1, s.Revision)
	s = draft(t, m, types.SectionMethods, types.PhaseOutline, "v2")
	assert.Equal(t, 2, s.Revision)
	s = draft(t, m, types.SectionMethods, types.PhaseBody, "v3")
	assert.Equal(t, 3, s.Revision)
	assert.Equal(t, "drafted(body)", s.Label())
	// Going back to an outline is a revision as well.
	s = draft(t, m, types.SectionMethods, types.PhaseOutline, "v4")
	assert.Equal(t, "drafted(outline)", s.Label())
}

func TestApplyDraftStaleRevision(t *testing.T) {
	m := newTestManuscript(t, true)
	draft(t, m, types.SectionMethods, types.PhaseOutline, "v1")

	_, err := m.ApplyDraft(types.SectionMethods, types.PhaseOutline, "late", 0)
	var conflict *ConcurrentModificationError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 0, conflict.Expected)
	assert.Equal(t, 1, conflict.Actual)

	s, _ := m.Section(types.SectionMethods)
	assert.Equal(t, "v1", s.Text)
}

func TestLockTransitions(t *testing.T) {
	m := newTestManuscript(t, true)

	_, err := m.Lock(types.SectionMethods, 0)
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid), "cannot lock an empty section")

	s := draft(t, m, types.SectionMethods, types.PhaseOutline, "outline")
	_, err = m.Lock(types.SectionMethods, s.Revision)
	require.True(t, errors.As(err, &invalid), "cannot lock an outline")

	s = draft(t, m, types.SectionMethods, types.PhaseBody, "body")

	_, err = m.Lock(types.SectionMethods, s.Revision-1)
	var conflict *ConcurrentModificationError
	require.True(t, errors.As(err, &conflict), "stale revision loses")

	locked, err := m.Lock(types.SectionMethods, s.Revision)
	require.NoError(t, err)
	assert.Equal(t, types.StateLocked, locked.State)

	_, err = m.Lock(types.SectionMethods, s.Revision)
	require.True(t, errors.As(err, &conflict), "second lock loses")
	assert.Equal(t, types.StateLocked, conflict.State)
}

func TestLockedTextNeverAltered(t *testing.T) {
	m := newTestManuscript(t, true)
	lockBody(t, m, types.SectionMethods)
	s, _ := m.Section(types.SectionMethods)

	_, err := m.ApplyDraft(types.SectionMethods, types.PhaseBody, "overwrite", s.Revision)
	var locked *SectionLockedError
	require.True(t, errors.As(err, &locked))

	err = m.CheckReady(types.SectionMethods, types.PhaseOutline)
	require.True(t, errors.As(err, &locked))

	after, _ := m.Section(types.SectionMethods)
	assert.Equal(t, s, after)
}

func TestAbstractNeedsBodySectionsLocked(t *testing.T) {
	m := newTestManuscript(t, true)
	for _, k := range types.BodySections {
		draft(t, m, k, types.PhaseOutline, "outline")
	}

	err := m.CheckReady(types.SectionAbstract, types.PhaseOutline)
	var notReady *DependencyNotReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Len(t, notReady.Missing, len(types.BodySections))
	for _, r := range notReady.Missing {
		assert.Equal(t, LevelLocked, r.Level)
	}

	for _, k := range types.BodySections {
		lockBody(t, m, k)
	}
	assert.NoError(t, m.CheckReady(types.SectionAbstract, types.PhaseOutline))

	// The cover letter also needs the abstract outline.
	err = m.CheckReady(types.SectionCoverLetter, types.PhaseOutline)
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, []Requirement{{On: types.SectionAbstract, Level: LevelOutline}}, notReady.Missing)
}

func TestUnlockMarksDownstreamStale(t *testing.T) {
	m := newTestManuscript(t, true)
	for _, k := range types.BodySections {
		lockBody(t, m, k)
	}
	draft(t, m, types.SectionAbstract, types.PhaseOutline, "abstract outline")
	var notAssembly *NotAssemblyReadyError
	require.True(t, errors.As(m.AssemblyReady(), &notAssembly), "abstract and cover letter are not locked yet")

	_, err := m.Unlock(types.SectionResults, "  ")
	assert.ErrorContains(t, err, "reason")

	affected, err := m.Unlock(types.SectionResults, "table 2 corrected")
	require.NoError(t, err)
	assert.Equal(t, []types.SectionKind{
		types.SectionIntroduction, types.SectionDiscussion, types.SectionConclusion, types.SectionAbstract,
	}, affected, "empty cover letter is not marked")

	s, _ := m.Section(types.SectionResults)
	assert.Equal(t, "drafted(body)", s.Label())
	d, _ := m.Section(types.SectionDiscussion)
	assert.Equal(t, types.StateLocked, d.State, "dependents keep their text and lock")
	assert.True(t, d.Stale)

	trail := m.AuditTrail()
	last := trail[len(trail)-1]
	assert.Equal(t, ActionUnlock, last.Action)
	assert.Equal(t, "table 2 corrected", last.Reason)
	assert.Equal(t, affected, last.Affected)

	// Stale locked sections no longer satisfy lock requirements.
	err = m.CheckReady(types.SectionAbstract, types.PhaseBody)
	var notReady *DependencyNotReadyError
	require.True(t, errors.As(err, &notReady))

	require.NoError(t, m.Revalidate(types.SectionDiscussion))
	d, _ = m.Section(types.SectionDiscussion)
	assert.False(t, d.Stale)

	_, err = m.Unlock(types.SectionResults, "again")
	var invalid *InvalidTransitionError
	assert.True(t, errors.As(err, &invalid), "only locked sections can be unlocked")
}

func TestAssemblyReady(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.ConfirmReferences(nil))
	m := New(types.JournalSpec{
		Name:             "J",
		RequiredSections: []types.SectionKind{types.SectionMethods, types.SectionResults},
	}, reg)

	err := m.AssemblyReady()
	var notReady *NotAssemblyReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, []PendingSection{
		{Section: types.SectionMethods, State: "empty"},
		{Section: types.SectionResults, State: "empty"},
	}, notReady.Pending)

	lockBody(t, m, types.SectionMethods)
	lockBody(t, m, types.SectionResults)
	assert.NoError(t, m.AssemblyReady())

	_, err = m.Unlock(types.SectionMethods, "fix")
	require.NoError(t, err)
	require.True(t, errors.As(m.AssemblyReady(), &notReady))
	assert.Equal(t, types.SectionMethods, notReady.Pending[0].Section)
	assert.Equal(t, "drafted(body)", notReady.Pending[0].State)
	assert.Equal(t, PendingSection{Section: types.SectionResults, State: "locked, stale"}, notReady.Pending[1],
		"results stays locked but stale")
}

func TestConcurrentLockSingleWinner(t *testing.T) {
	m := newTestManuscript(t, true)
	draft(t, m, types.SectionMethods, types.PhaseOutline, "o")
	s := draft(t, m, types.SectionMethods, types.PhaseBody, "b")

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Lock(types.SectionMethods, s.Revision)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		var conflict *ConcurrentModificationError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &conflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, rejected)
}
