// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"fmt"

	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// GenerationError reports a generation call that failed fatally or ran out
// of retries. The section is left unchanged.
type GenerationError struct {
	Section  types.SectionKind
	Phase    types.Phase
	Attempts int
	// Exhausted is true when every attempt was retryable.
	Exhausted bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("generating %s (%s): giving up after %d attempts: %v", e.Section, e.Phase, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generating %s (%s): %v", e.Section, e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
