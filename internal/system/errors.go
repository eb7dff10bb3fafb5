package system

import "errors"

var (
	// ErrStateMismatch is returned when a State was not created by the
	// System it is being realized against.
	ErrStateMismatch = errors.New("system: state does not belong to this system")

	// ErrRealize wraps a subsystem failure during realization.
	ErrRealize = errors.New("system: realization failed")
)
