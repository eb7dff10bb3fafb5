// Package multibody provides concrete subsystems for planar point-mass
// mechanics: a matter subsystem owning the coordinates, a force field
// supplying per-point forces, a rod constraint, and an event witness.
// Together they exercise every allocator the state kernel offers.
package multibody

import (
	"fmt"

	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// ForceProvider yields one planar force per point, packed {fx0,fy0,...}.
// The result is valid once the state is realized to Dynamics.
type ForceProvider interface {
	PointForces(s *state.State) ([]float64, error)
}

// PointMatter models n point masses in the plane. Each point contributes
// two q's (x, y) and two u's (vx, vy); qdot = u. The center of mass is
// cached at Position/Velocity and the kinetic energy is a lazy cache
// entry computed on demand.
type PointMatter struct {
	masses   []float64
	q0       []float64
	u0       []float64
	provider ForceProvider

	sx      state.SubsystemIndex
	comPos  state.CacheEntryIndex
	comVel  state.CacheEntryIndex
	kinetic state.CacheEntryIndex
}

func NewPointMatter(masses []float64) *PointMatter {
	n := len(masses)
	return &PointMatter{
		masses: masses,
		q0:     make([]float64, 2*n),
		u0:     make([]float64, 2*n),
	}
}

func (m *PointMatter) Name() string    { return "matter" }
func (m *PointMatter) Version() string { return "1.0" }
func (m *PointMatter) NumPoints() int  { return len(m.masses) }

func (m *PointMatter) Mass(i int) float64 { return m.masses[i] }

// SetInitialPosition fixes the allocation-time position of point i. It
// takes effect the next time a state is realized through Model.
func (m *PointMatter) SetInitialPosition(i int, x, y float64) {
	m.q0[2*i], m.q0[2*i+1] = x, y
}

// SetInitialVelocity fixes the allocation-time velocity of point i.
func (m *PointMatter) SetInitialVelocity(i int, vx, vy float64) {
	m.u0[2*i], m.u0[2*i+1] = vx, vy
}

// SetForceProvider wires the source of per-point forces used during
// Acceleration realization. Without one the points move force-free.
func (m *PointMatter) SetForceProvider(fp ForceProvider) { m.provider = fp }

// Install registers the subsystem with sys and remembers its index.
func (m *PointMatter) Install(sys *system.System) state.SubsystemIndex {
	m.sx = sys.AddSubsystem(m)
	return m.sx
}

func (m *PointMatter) SubsystemIndex() state.SubsystemIndex { return m.sx }

func (m *PointMatter) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	switch g {
	case state.StageModel:
		if _, err := s.AllocateQ(sx, m.q0); err != nil {
			return err
		}
		if _, err := s.AllocateU(sx, m.u0); err != nil {
			return err
		}
		var err error
		m.comPos, err = s.AllocateCacheEntry(sx, state.StagePosition, state.StagePosition,
			state.NewValue([]float64{0, 0}))
		if err != nil {
			return err
		}
		m.comVel, err = s.AllocateCacheEntry(sx, state.StageVelocity, state.StageVelocity,
			state.NewValue([]float64{0, 0}))
		if err != nil {
			return err
		}
		m.kinetic, err = s.AllocateLazyCacheEntry(sx, state.StageVelocity, state.NewValue(0.0))
		if err != nil {
			return err
		}

	case state.StagePosition:
		q, err := s.SubsystemQ(sx)
		if err != nil {
			return err
		}
		if err := m.setCOM(s, m.comPos, q); err != nil {
			return err
		}

	case state.StageVelocity:
		u, err := s.SubsystemU(sx)
		if err != nil {
			return err
		}
		if err := m.setCOM(s, m.comVel, u); err != nil {
			return err
		}
		// qdot = u for point coordinates.
		qdot, err := s.UpdSubsystemQDot(sx)
		if err != nil {
			return err
		}
		copy(qdot, u)

	case state.StageAcceleration:
		f, err := m.forces(s)
		if err != nil {
			return err
		}
		udot, err := s.UpdSubsystemUDot(sx)
		if err != nil {
			return err
		}
		for i := range m.masses {
			udot[2*i] = f[2*i] / m.masses[i]
			udot[2*i+1] = f[2*i+1] / m.masses[i]
		}
		qdotdot, err := s.UpdSubsystemQDotDot(sx)
		if err != nil {
			return err
		}
		copy(qdotdot, udot)
	}
	return nil
}

func (m *PointMatter) forces(s *state.State) ([]float64, error) {
	if m.provider == nil {
		return make([]float64, 2*len(m.masses)), nil
	}
	f, err := m.provider.PointForces(s)
	if err != nil {
		return nil, err
	}
	if len(f) != 2*len(m.masses) {
		return nil, fmt.Errorf("multibody: force provider returned %d components for %d points",
			len(f), len(m.masses))
	}
	return f, nil
}

// setCOM computes the mass-weighted average of per-point pairs and
// stores it in the cache entry cx.
func (m *PointMatter) setCOM(s *state.State, cx state.CacheEntryIndex, pairs []float64) error {
	var total, cx0, cy0 float64
	for i, mass := range m.masses {
		total += mass
		cx0 += mass * pairs[2*i]
		cy0 += mass * pairs[2*i+1]
	}
	if total > 0 {
		cx0 /= total
		cy0 /= total
	}
	v, err := s.UpdCacheEntry(m.sx, cx)
	if err != nil {
		return err
	}
	if err := state.SetValueAs(v, []float64{cx0, cy0}); err != nil {
		return err
	}
	return s.MarkCacheValueRealized(m.sx, cx)
}

// Position returns point i's current coordinates.
func (m *PointMatter) Position(s *state.State, i int) (x, y float64, err error) {
	q, err := s.SubsystemQ(m.sx)
	if err != nil {
		return 0, 0, err
	}
	return q[2*i], q[2*i+1], nil
}

// Velocity returns point i's current velocity components.
func (m *PointMatter) Velocity(s *state.State, i int) (vx, vy float64, err error) {
	u, err := s.SubsystemU(m.sx)
	if err != nil {
		return 0, 0, err
	}
	return u[2*i], u[2*i+1], nil
}

// CenterOfMass is valid once the state is realized to Position.
func (m *PointMatter) CenterOfMass(s *state.State) ([]float64, error) {
	v, err := s.CacheEntry(m.sx, m.comPos)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// CenterOfMassVelocity is valid once the state is realized to Velocity.
func (m *PointMatter) CenterOfMassVelocity(s *state.State) ([]float64, error) {
	v, err := s.CacheEntry(m.sx, m.comVel)
	if err != nil {
		return nil, err
	}
	return state.ValueAs[[]float64](v)
}

// KineticEnergy follows the lazy cache protocol: computed at most once
// per realization of Velocity, then served from the cache.
func (m *PointMatter) KineticEnergy(s *state.State) (float64, error) {
	ok, err := s.IsCacheValueRealized(m.sx, m.kinetic)
	if err != nil {
		return 0, err
	}
	if !ok {
		u, err := s.SubsystemU(m.sx)
		if err != nil {
			return 0, err
		}
		var ke float64
		for i, mass := range m.masses {
			vx, vy := u[2*i], u[2*i+1]
			ke += 0.5 * mass * (vx*vx + vy*vy)
		}
		v, err := s.UpdCacheEntry(m.sx, m.kinetic)
		if err != nil {
			return 0, err
		}
		if err := state.SetValueAs(v, ke); err != nil {
			return 0, err
		}
		if err := s.MarkCacheValueRealized(m.sx, m.kinetic); err != nil {
			return 0, err
		}
	}
	v, err := s.CacheEntry(m.sx, m.kinetic)
	if err != nil {
		return 0, err
	}
	return state.ValueAs[float64](v)
}
