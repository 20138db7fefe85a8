// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"strings"
)

// Structure names the registry structure an error refers to.
type Structure string

const (
	StructureFacts      Structure = "fact sheet"
	StructureReferences Structure = "reference set"
)

// RegistryLockedError reports an attempted mutation after a freeze.
type RegistryLockedError struct {
	Structure Structure
	Op        string
}

func (e *RegistryLockedError) Error() string {
	return fmt.Sprintf("registry locked: cannot %s, %s is confirmed", e.Op, e.Structure)
}

// TooManyReferencesError reports a confirmation above the reference cap.
// Count is the number of identifiers given, repeats included. The registry
// stays unfrozen.
type TooManyReferencesError struct {
	Count int
	Max   int
}

func (e *TooManyReferencesError) Error() string {
	return fmt.Sprintf("too many references: %d identifiers given, maximum is %d", e.Count, e.Max)
}

// UnknownReferenceError reports confirmation of identifiers that are not in
// the candidate pool.
type UnknownReferenceError struct {
	IDs []string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference candidates: %s", strings.Join(e.IDs, ", "))
}

// ConcurrentModificationError reports a registry write that lost a race:
// another writer saved the registry after this one read it.
type ConcurrentModificationError struct {
	Op       string
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification: cannot %s, expected registry version %d but it is at version %d",
		e.Op, e.Expected, e.Actual)
}
