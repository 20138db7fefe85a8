// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manuscript holds the per-section lifecycle of a manuscript and the
// dependency graph that orders generation. Every operation names its target
// section explicitly; there is no notion of a current section.
//
// Lifecycle: empty → drafted(outline) → drafted(body) → locked. Drafts may
// be regenerated any number of times until the section is locked. Locking
// is a human action; unlocking is an audited administrative action that
// marks every dependent section stale.
package manuscript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// Manuscript is the unit QA, citation resolution, and assembly operate
// over. It is owned by one operator session at a time; the mutex
// serializes the lock transition and draft application against concurrent
// writers within a process.
type Manuscript struct {
	ID       uuid.UUID
	Journal  types.JournalSpec
	Registry *registry.Registry

	graph  *Graph
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sections map[types.SectionKind]*Section
	audit    []AuditEvent
}

// Option configures a Manuscript.
type Option func(*Manuscript)

// WithGraph replaces the default dependency graph.
func WithGraph(g *Graph) Option { return func(m *Manuscript) { m.graph = g } }

// WithLogger sets the logger used for audited actions.
func WithLogger(l *zap.Logger) Option { return func(m *Manuscript) { m.logger = l } }

// WithID sets the manuscript identifier (used when reloading).
func WithID(id uuid.UUID) Option { return func(m *Manuscript) { m.ID = id } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(m *Manuscript) { m.now = now } }

// New creates a manuscript with every section of the graph empty.
func New(journal types.JournalSpec, reg *registry.Registry, opts ...Option) *Manuscript {
	m := &Manuscript{
		ID:       uuid.New(),
		Journal:  journal.WithDefaults(),
		Registry: reg,
		graph:    DefaultGraph(),
		logger:   zap.NewNop(),
		now:      time.Now,
		sections: make(map[types.SectionKind]*Section),
	}
	for _, o := range opts {
		o(m)
	}
	if m.Registry == nil {
		m.Registry = registry.New()
	}
	for _, k := range m.graph.Order() {
		m.sections[k] = &Section{Kind: k, State: types.StateEmpty}
	}
	return m
}

// Graph returns the dependency graph.
func (m *Manuscript) Graph() *Graph { return m.graph }

// Section returns a copy of the section's current state.
func (m *Manuscript) Section(kind types.SectionKind) (Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[kind]
	if !ok {
		return Section{}, fmt.Errorf("unknown section %q", kind)
	}
	return *s, nil
}

// Sections returns copies of every section in document order.
func (m *Manuscript) Sections() []Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Section
	for _, k := range types.DocumentOrder {
		if s, ok := m.sections[k]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// AuditTrail returns the audited actions in the order they happened.
func (m *Manuscript) AuditTrail() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEvent(nil), m.audit...)
}

// CheckReady reports whether a generation pass may run for kind now.
func (m *Manuscript) CheckReady(kind types.SectionKind, phase types.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkReadyLocked(kind, phase)
}

func (m *Manuscript) checkReadyLocked(kind types.SectionKind, phase types.Phase) error {
	s, ok := m.sections[kind]
	if !ok {
		return fmt.Errorf("unknown section %q", kind)
	}
	if s.State == types.StateLocked {
		return &SectionLockedError{Section: kind}
	}

	notReady := &DependencyNotReadyError{Section: kind, Phase: phase}

	// Direct requirements carry the level; the transitive upstream must at
	// least hold an outline.
	required := make(map[types.SectionKind]Level)
	for _, up := range m.graph.Upstream(kind) {
		required[up] = LevelOutline
	}
	for _, r := range m.graph.Requirements(kind) {
		if r.Level == LevelLocked {
			required[r.On] = LevelLocked
		}
	}
	for _, up := range m.graph.Order() {
		level, ok := required[up]
		if !ok {
			continue
		}
		if !m.sections[up].satisfies(level) {
			notReady.Missing = append(notReady.Missing, Requirement{On: up, Level: level})
		}
	}

	switch phase {
	case types.PhaseOutline:
	case types.PhaseBody:
		var reasons []string
		if s.State == types.StateEmpty {
			reasons = append(reasons, "outline pass has not run")
		}
		if !m.Registry.ReferencesConfirmed() {
			reasons = append(reasons, "reference set is not confirmed")
		}
		notReady.Reason = strings.Join(reasons, "; ")
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}

	if len(notReady.Missing) > 0 || notReady.Reason != "" {
		return notReady
	}
	return nil
}

// ApplyDraft stores generated text for kind. expectedRevision is the
// revision the caller read before generating; if the section moved on
// meanwhile the draft is rejected. Readiness is re-checked under the lock.
func (m *Manuscript) ApplyDraft(kind types.SectionKind, phase types.Phase, text string, expectedRevision int) (Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sections[kind]
	if !ok {
		return Section{}, fmt.Errorf("unknown section %q", kind)
	}
	if s.State == types.StateLocked {
		return Section{}, &SectionLockedError{Section: kind}
	}
	if s.Revision != expectedRevision {
		return Section{}, &ConcurrentModificationError{
			Section: kind, Op: "apply draft to", Expected: expectedRevision, Actual: s.Revision, State: s.State,
		}
	}
	if err := m.checkReadyLocked(kind, phase); err != nil {
		return Section{}, err
	}

	s.Text = text
	s.Phase = phase
	s.State = types.StateDrafted
	s.Revision++
	s.Stale = false
	s.UpdatedAt = m.now()

	m.logger.Debug("draft applied",
		zap.String("section", string(kind)),
		zap.String("phase", string(phase)),
		zap.Int("revision", s.Revision),
	)
	return *s, nil
}

// Lock freezes a body draft. The caller passes the revision it reviewed;
// a lock against a newer revision, or on an already locked section, loses
// the race and is rejected.
func (m *Manuscript) Lock(kind types.SectionKind, expectedRevision int) (Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sections[kind]
	if !ok {
		return Section{}, fmt.Errorf("unknown section %q", kind)
	}
	if s.State == types.StateLocked {
		return Section{}, &ConcurrentModificationError{
			Section: kind, Op: "lock", Expected: expectedRevision, Actual: s.Revision, State: s.State,
		}
	}
	if !s.hasBody() {
		return Section{}, &InvalidTransitionError{Section: kind, From: s.Label(), To: string(types.StateLocked)}
	}
	if s.Revision != expectedRevision {
		return Section{}, &ConcurrentModificationError{
			Section: kind, Op: "lock", Expected: expectedRevision, Actual: s.Revision, State: s.State,
		}
	}

	s.State = types.StateLocked
	s.Stale = false
	s.UpdatedAt = m.now()
	m.record(AuditEvent{Section: kind, Action: ActionLock, Revision: s.Revision})
	m.logger.Info("section locked", zap.String("section", string(kind)), zap.Int("revision", s.Revision))
	return *s, nil
}

// Unlock returns a locked section to drafted(body). The reason is
// mandatory and recorded. Every section that transitively depends on kind
// and holds a draft is marked stale; none is regenerated. It returns the
// sections marked stale.
func (m *Manuscript) Unlock(kind types.SectionKind, reason string) ([]types.SectionKind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sections[kind]
	if !ok {
		return nil, fmt.Errorf("unknown section %q", kind)
	}
	if s.State != types.StateLocked {
		return nil, &InvalidTransitionError{Section: kind, From: s.Label(), To: "drafted(body)"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("unlock %s: a reason is required", kind)
	}

	s.State = types.StateDrafted
	s.Phase = types.PhaseBody
	s.UpdatedAt = m.now()

	var affected []types.SectionKind
	for _, d := range m.graph.Downstream(kind) {
		ds := m.sections[d]
		if ds.State == types.StateEmpty {
			continue
		}
		ds.Stale = true
		affected = append(affected, d)
	}

	m.record(AuditEvent{Section: kind, Action: ActionUnlock, Reason: reason, Revision: s.Revision, Affected: affected})
	m.logger.Warn("section unlocked",
		zap.String("section", string(kind)),
		zap.String("reason", reason),
		zap.Int("revision", s.Revision),
		zap.Strings("stale", sectionStrings(affected)),
	)
	return affected, nil
}

// Revalidate clears the stale flag after a human has re-checked the
// section against its changed upstream.
func (m *Manuscript) Revalidate(kind types.SectionKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sections[kind]
	if !ok {
		return fmt.Errorf("unknown section %q", kind)
	}
	if !s.Stale {
		return nil
	}
	s.Stale = false
	s.UpdatedAt = m.now()
	m.record(AuditEvent{Section: kind, Action: ActionRevalidate, Revision: s.Revision})
	m.logger.Info("section revalidated", zap.String("section", string(kind)))
	return nil
}

// AssemblyReady returns nil when every required section is locked and
// not stale, and a NotAssemblyReadyError naming the others otherwise.
func (m *Manuscript) AssemblyReady() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []PendingSection
	for _, k := range m.graph.Order() {
		if !m.Journal.Requires(k) {
			continue
		}
		s := m.sections[k]
		if !s.satisfies(LevelLocked) {
			pending = append(pending, PendingSection{Section: k, State: s.Label()})
		}
	}
	if len(pending) > 0 {
		return &NotAssemblyReadyError{Pending: pending}
	}
	return nil
}

// LockedText returns the text of kind if it is locked.
func (m *Manuscript) LockedText(kind types.SectionKind) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[kind]
	if !ok || s.State != types.StateLocked {
		return "", false
	}
	return s.Text, true
}

// Restore replaces section state and audit trail with persisted values.
// Sections not in the graph are rejected.
func (m *Manuscript) Restore(sections []Section, audit []AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sections {
		if _, ok := m.sections[s.Kind]; !ok {
			return fmt.Errorf("restoring: unknown section %q", s.Kind)
		}
		cp := s
		m.sections[s.Kind] = &cp
	}
	m.audit = append([]AuditEvent(nil), audit...)
	return nil
}

func (m *Manuscript) record(ev AuditEvent) {
	ev.ID = uuid.New()
	ev.Time = m.now()
	m.audit = append(m.audit, ev)
}

func sectionStrings(kinds []types.SectionKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
