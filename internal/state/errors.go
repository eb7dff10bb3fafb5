package state

import "errors"

// Kernel errors. All of these signal programmer error in a collaborator:
// they are synchronous, fail-fast, and never expected in correct operation.
// A failed allocation or access leaves the State unchanged.
var (
	// ErrIndexOutOfRange indicates a bad subsystem or resource index.
	ErrIndexOutOfRange = errors.New("state: index out of range")

	// ErrStageViolation indicates an operation illegal at the current
	// stage: allocating after the structure is locked, reading a value
	// before it is realized, or advancing stages out of order.
	ErrStageViolation = errors.New("state: stage violation")

	// ErrNotAutoUpdate indicates an auto-update accessor was called on a
	// plain discrete variable.
	ErrNotAutoUpdate = errors.New("state: not an auto-update discrete variable")

	// ErrTypeMismatch indicates the wrong value type was requested from a
	// type-erased variable or cache slot.
	ErrTypeMismatch = errors.New("state: value type mismatch")
)
