package multibody

import (
	"math"

	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// ForceField applies uniform gravity plus a slowly varying wind to every
// point of a PointMatter. Gravity lives in the state as a discrete
// variable invalidating Dynamics; wind is an auto-update discrete
// variable whose next value is computed during Velocity realization and
// swapped in between steps. The accumulated work done by the wind is
// tracked as an auxiliary z variable.
type ForceField struct {
	matter   *PointMatter
	gravity0 []float64
	wind0    []float64

	// WindModel maps time to the wind force for the next step. The
	// default is a gentle gust around the initial wind.
	WindModel func(t float64) (wx, wy float64)

	sx         state.SubsystemIndex
	gravityVar state.DiscreteVarIndex
	windVar    state.DiscreteVarIndex
	forces     state.CacheEntryIndex
}

func NewForceField(matter *PointMatter) *ForceField {
	f := &ForceField{
		matter:   matter,
		gravity0: []float64{0, -9.81},
		wind0:    []float64{0, 0},
	}
	f.WindModel = func(t float64) (float64, float64) {
		return f.wind0[0] + 0.1*math.Sin(t), f.wind0[1]
	}
	matter.SetForceProvider(f)
	return f
}

func (f *ForceField) Name() string    { return "forces" }
func (f *ForceField) Version() string { return "1.0" }

func (f *ForceField) Install(sys *system.System) state.SubsystemIndex {
	f.sx = sys.AddSubsystem(f)
	return f.sx
}

// SetDefaultGravity changes the allocation-time gravity vector used by
// states realized afterwards.
func (f *ForceField) SetDefaultGravity(gx, gy float64) {
	f.gravity0 = []float64{gx, gy}
}

func (f *ForceField) SetDefaultWind(wx, wy float64) {
	f.wind0 = []float64{wx, wy}
}

func (f *ForceField) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	switch g {
	case state.StageTopology:
		var err error
		f.gravityVar, err = s.AllocateDiscreteVariable(sx, state.StageDynamics,
			state.NewValue(append([]float64(nil), f.gravity0...)))
		if err != nil {
			return err
		}
		f.windVar, err = s.AllocateAutoUpdateDiscreteVariable(sx, state.StageDynamics,
			state.NewValue(append([]float64(nil), f.wind0...)), state.StageVelocity)
		if err != nil {
			return err
		}

	case state.StageModel:
		if _, err := s.AllocateZ(sx, []float64{0}); err != nil {
			return err
		}
		var err error
		f.forces, err = s.AllocateCacheEntry(sx, state.StageDynamics, state.StageDynamics,
			state.NewValue(make([]float64, 2*f.matter.NumPoints())))
		if err != nil {
			return err
		}

	case state.StageVelocity:
		// Propose the next wind value; it becomes current only when the
		// stepper swaps auto-update variables.
		t, err := s.Time()
		if err != nil {
			return err
		}
		wx, wy := f.WindModel(t)
		uv, err := s.UpdDiscreteVarUpdateValue(sx, f.windVar)
		if err != nil {
			return err
		}
		if err := state.SetValueAs(uv, []float64{wx, wy}); err != nil {
			return err
		}
		if err := s.MarkDiscreteVarUpdateValueRealized(sx, f.windVar); err != nil {
			return err
		}

	case state.StageDynamics:
		grav, err := f.Gravity(s)
		if err != nil {
			return err
		}
		wind, err := f.activeWind(s)
		if err != nil {
			return err
		}
		n := f.matter.NumPoints()
		forces := make([]float64, 2*n)
		for i := 0; i < n; i++ {
			m := f.matter.Mass(i)
			forces[2*i] = m*grav[0] + wind[0]
			forces[2*i+1] = m*grav[1] + wind[1]
		}
		v, err := s.UpdCacheEntry(sx, f.forces)
		if err != nil {
			return err
		}
		if err := state.SetValueAs(v, forces); err != nil {
			return err
		}
		if err := s.MarkCacheValueRealized(sx, f.forces); err != nil {
			return err
		}

		// zdot = power delivered by the wind.
		u, err := s.SubsystemU(f.matter.SubsystemIndex())
		if err != nil {
			return err
		}
		var power float64
		for i := 0; i < n; i++ {
			power += wind[0]*u[2*i] + wind[1]*u[2*i+1]
		}
		zdot, err := s.UpdSubsystemZDot(sx)
		if err != nil {
			return err
		}
		zdot[0] = power
	}
	return nil
}

// PointForces serves the matter subsystem during Acceleration
// realization; valid once Dynamics has been realized.
func (f *ForceField) PointForces(s *state.State) ([]float64, error) {
	v, err := s.CacheEntry(f.sx, f.forces)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// Gravity reads the current gravity vector.
func (f *ForceField) Gravity(s *state.State) ([]float64, error) {
	v, err := s.DiscreteVariable(f.sx, f.gravityVar)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// SetGravity rewrites gravity in s, invalidating Dynamics and above.
func (f *ForceField) SetGravity(s *state.State, gx, gy float64) error {
	return s.SetDiscreteVariable(f.sx, f.gravityVar, state.NewValue([]float64{gx, gy}))
}

// activeWind is the wind as seen by realization computations: the
// realized pending update value when there is one, the current value
// otherwise. Computing from the update value keeps the forces continuous
// across the swap at the next step boundary.
func (f *ForceField) activeWind(s *state.State) ([]float64, error) {
	ok, err := s.IsDiscreteVarUpdateValueRealized(f.sx, f.windVar)
	if err != nil {
		return nil, err
	}
	if !ok {
		return f.Wind(s)
	}
	v, err := s.DiscreteVarUpdateValue(f.sx, f.windVar)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// Wind reads the currently applied wind force.
func (f *ForceField) Wind(s *state.State) ([]float64, error) {
	v, err := s.DiscreteVariable(f.sx, f.windVar)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// WindWork returns the work integrated into the z variable so far.
func (f *ForceField) WindWork(s *state.State) (float64, error) {
	z, err := s.SubsystemZ(f.sx)
	if err != nil {
		return 0, err
	}
	return z[0], nil
}
