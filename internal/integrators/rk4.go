package integrators

import (
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

type RK4 struct {
	k1, k2, k3, k4 []float64
	y0             []float64
	scratch        []float64
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(sys *system.System, s *state.State, dt float64) error {
	t0, err := s.Time()
	if err != nil {
		return err
	}
	if r.k1, err = derivative(sys, s, r.k1); err != nil {
		return err
	}

	y, err := s.Y()
	if err != nil {
		return err
	}
	n := len(y)
	if len(r.y0) != n {
		r.y0 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
	copy(r.y0, y)

	eval := func(k []float64, t float64, h float64, slope []float64) ([]float64, error) {
		for i := 0; i < n; i++ {
			r.scratch[i] = r.y0[i] + h*slope[i]
		}
		if err := s.SetY(r.scratch); err != nil {
			return nil, err
		}
		if err := s.SetTime(t); err != nil {
			return nil, err
		}
		return derivative(sys, s, k)
	}

	if r.k2, err = eval(r.k2, t0+dt/2, dt/2, r.k1); err != nil {
		return err
	}
	if r.k3, err = eval(r.k3, t0+dt/2, dt/2, r.k2); err != nil {
		return err
	}
	if r.k4, err = eval(r.k4, t0+dt, dt, r.k3); err != nil {
		return err
	}

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		r.scratch[i] = r.y0[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	if err := s.SetY(r.scratch); err != nil {
		return err
	}
	return s.SetTime(t0 + dt)
}
