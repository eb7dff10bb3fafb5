// Package integrators advances a staged state through time. Every
// method writes y and t, realizes the state to Acceleration to obtain
// ydot, and leaves the state realized at the stage the last derivative
// evaluation required.
package integrators

import (
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

type Integrator interface {
	Name() string
	Step(sys *system.System, s *state.State, dt float64) error
}

// derivative realizes s to Acceleration and copies ydot into dst,
// allocating it when needed.
func derivative(sys *system.System, s *state.State, dst []float64) ([]float64, error) {
	if err := sys.Realize(s, state.StageAcceleration); err != nil {
		return nil, err
	}
	ydot, err := s.YDot()
	if err != nil {
		return nil, err
	}
	if len(dst) != len(ydot) {
		dst = make([]float64, len(ydot))
	}
	copy(dst, ydot)
	return dst, nil
}
