package state

import "fmt"

// Value is a type-erased payload for discrete variables and cache entries.
// The State owns the Values it is given; collaborators read and write the
// payload through the generic ValueAs / SetValueAs helpers, which fail with
// ErrTypeMismatch if the requested type does not match the stored one.
//
// Payloads should be value types (or treat shared references as immutable):
// Clone is a shallow copy of the payload.
type Value interface {
	Clone() Value
	String() string
}

type typedValue[T any] struct {
	v T
}

// NewValue wraps v in a type-erased Value.
func NewValue[T any](v T) Value {
	return &typedValue[T]{v: v}
}

func (tv *typedValue[T]) Clone() Value {
	c := *tv
	return &c
}

func (tv *typedValue[T]) String() string {
	return fmt.Sprint(tv.v)
}

// ValueAs extracts a payload of type T from val.
func ValueAs[T any](val Value) (T, error) {
	tv, ok := val.(*typedValue[T])
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: want %T, have %T", ErrTypeMismatch, zero, val)
	}
	return tv.v, nil
}

// SetValueAs stores a payload of type T into val, which must already hold
// type T.
func SetValueAs[T any](val Value, v T) error {
	tv, ok := val.(*typedValue[T])
	if !ok {
		return fmt.Errorf("%w: want %T, have %T", ErrTypeMismatch, v, val)
	}
	tv.v = v
	return nil
}
