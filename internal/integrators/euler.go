package integrators

import (
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

type Euler struct {
	k []float64
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(sys *system.System, s *state.State, dt float64) error {
	t, err := s.Time()
	if err != nil {
		return err
	}
	e.k, err = derivative(sys, s, e.k)
	if err != nil {
		return err
	}

	y, err := s.UpdY()
	if err != nil {
		return err
	}
	for i := range y {
		y[i] += dt * e.k[i]
	}
	return s.SetTime(t + dt)
}
