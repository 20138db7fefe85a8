// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// AuditAction names an administrative action recorded in the audit trail.
type AuditAction string

const (
	ActionLock       AuditAction = "lock"
	ActionUnlock     AuditAction = "unlock"
	ActionRevalidate AuditAction = "revalidate"
)

// AuditEvent records a lock-discipline action and its downstream effect.
type AuditEvent struct {
	ID       uuid.UUID           `json:"id" yaml:"id"`
	Time     time.Time           `json:"time" yaml:"time"`
	Section  types.SectionKind   `json:"section" yaml:"section"`
	Action   AuditAction         `json:"action" yaml:"action"`
	Reason   string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	Revision int                 `json:"revision" yaml:"revision"`
	Affected []types.SectionKind `json:"affected,omitempty" yaml:"affected,omitempty"`
}
