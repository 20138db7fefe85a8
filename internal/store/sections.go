// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// SaveDraft writes a generated draft. It succeeds only if the stored
// section is still at expectedRevision and not locked.
func (s *Store) SaveDraft(ctx context.Context, sec manuscript.Section, expectedRevision int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sections SET text = ?, phase = ?, state = ?, revision = ?, stale = 0, updated_at = ?
		 WHERE kind = ? AND revision = ? AND state != ?`,
		sec.Text, string(sec.Phase), string(sec.State), sec.Revision, formatTime(sec.UpdatedAt),
		string(sec.Kind), expectedRevision, string(types.StateLocked),
	)
	if err != nil {
		return fmt.Errorf("saving draft for %s: %w", sec.Kind, err)
	}
	if err := s.expectOneRow(ctx, s.db, res, sec.Kind, "apply draft to", expectedRevision); err != nil {
		return err
	}
	s.logger.Debug("draft saved", zap.String("section", string(sec.Kind)), zap.Int("revision", sec.Revision))
	return nil
}

// SaveLock records a lock. The update only applies while the stored
// section is drafted at the reviewed revision, so of two processes locking
// the same section one receives a ConcurrentModificationError.
func (s *Store) SaveLock(ctx context.Context, sec manuscript.Section, ev manuscript.AuditEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sections SET state = ?, stale = 0, updated_at = ?
			 WHERE kind = ? AND revision = ? AND state = ?`,
			string(types.StateLocked), formatTime(sec.UpdatedAt),
			string(sec.Kind), sec.Revision, string(types.StateDrafted),
		)
		if err != nil {
			return fmt.Errorf("locking %s: %w", sec.Kind, err)
		}
		if err := s.expectOneRow(ctx, tx, res, sec.Kind, "lock", sec.Revision); err != nil {
			return err
		}
		return insertAudit(ctx, tx, ev)
	})
}

// SaveUnlock records an unlock and marks the affected sections stale.
func (s *Store) SaveUnlock(ctx context.Context, sec manuscript.Section, affected []types.SectionKind, ev manuscript.AuditEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sections SET state = ?, phase = ?, updated_at = ?
			 WHERE kind = ? AND state = ?`,
			string(sec.State), string(sec.Phase), formatTime(sec.UpdatedAt),
			string(sec.Kind), string(types.StateLocked),
		)
		if err != nil {
			return fmt.Errorf("unlocking %s: %w", sec.Kind, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return &manuscript.InvalidTransitionError{Section: sec.Kind, From: "not locked", To: "drafted(body)"}
		}
		for _, k := range affected {
			if _, err := tx.ExecContext(ctx, `UPDATE sections SET stale = 1 WHERE kind = ?`, string(k)); err != nil {
				return fmt.Errorf("marking %s stale: %w", k, err)
			}
		}
		return insertAudit(ctx, tx, ev)
	})
}

// SaveRevalidate clears the stale flag and records the revalidation.
func (s *Store) SaveRevalidate(ctx context.Context, kind types.SectionKind, ev manuscript.AuditEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sections SET stale = 0, updated_at = ? WHERE kind = ?`,
			formatTime(ev.Time), string(kind),
		); err != nil {
			return fmt.Errorf("revalidating %s: %w", kind, err)
		}
		return insertAudit(ctx, tx, ev)
	})
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// expectOneRow turns a conditional update that matched nothing into a
// ConcurrentModificationError describing the row as it is now.
func (s *Store) expectOneRow(ctx context.Context, q querier, res sql.Result, kind types.SectionKind, op string, expected int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of %s: %w", kind, err)
	}
	if n == 1 {
		return nil
	}

	var (
		revision int
		state    string
	)
	err = q.QueryRowContext(ctx, `SELECT revision, state FROM sections WHERE kind = ?`, string(kind)).Scan(&revision, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unknown section %q", kind)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", kind, err)
	}
	s.logger.Warn("conditional update rejected",
		zap.String("section", string(kind)),
		zap.String("op", op),
		zap.Int("expected_revision", expected),
		zap.Int("revision", revision),
		zap.String("state", state),
	)
	return &manuscript.ConcurrentModificationError{
		Section: kind, Op: op, Expected: expected, Actual: revision, State: types.SectionState(state),
	}
}

func insertAudit(ctx context.Context, tx *sql.Tx, ev manuscript.AuditEvent) error {
	affected, err := json.Marshal(ev.Affected)
	if err != nil {
		return fmt.Errorf("encoding affected sections: %w", err)
	}
	if ev.Affected == nil {
		affected = []byte("[]")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit (id, time, section, action, reason, revision, affected)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), formatTime(ev.Time), string(ev.Section), string(ev.Action),
		ev.Reason, ev.Revision, string(affected),
	)
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
