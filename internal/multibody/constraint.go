package multibody

import (
	"math"

	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// RodConstraint keeps two points of a PointMatter at a fixed distance.
// It contributes one slot to each constraint-error pool: a position
// error (distance residual), a velocity error (separation rate) and an
// acceleration error, which also reserves one Lagrange multiplier.
type RodConstraint struct {
	matter *PointMatter
	a, b   int
	length float64

	sx state.SubsystemIndex
}

func NewRodConstraint(matter *PointMatter, a, b int, length float64) *RodConstraint {
	return &RodConstraint{matter: matter, a: a, b: b, length: length}
}

func (r *RodConstraint) Name() string    { return "rod" }
func (r *RodConstraint) Version() string { return "1.0" }

func (r *RodConstraint) Install(sys *system.System) state.SubsystemIndex {
	r.sx = sys.AddSubsystem(r)
	return r.sx
}

func (r *RodConstraint) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	switch g {
	case state.StageInstance:
		if _, err := s.AllocateQErr(sx, 1); err != nil {
			return err
		}
		if _, err := s.AllocateUErr(sx, 1); err != nil {
			return err
		}
		if _, err := s.AllocateUDotErr(sx, 1); err != nil {
			return err
		}

	case state.StagePosition:
		dx, dy, err := r.separation(s)
		if err != nil {
			return err
		}
		qerr, err := s.UpdSubsystemQErr(sx)
		if err != nil {
			return err
		}
		qerr[0] = math.Hypot(dx, dy) - r.length

	case state.StageVelocity:
		dx, dy, err := r.separation(s)
		if err != nil {
			return err
		}
		dvx, dvy, err := r.relativeVelocity(s)
		if err != nil {
			return err
		}
		uerr, err := s.UpdSubsystemUErr(sx)
		if err != nil {
			return err
		}
		// d/dt |d| = (d . dv) / |d|
		dist := math.Hypot(dx, dy)
		if dist > 0 {
			uerr[0] = (dx*dvx + dy*dvy) / dist
		} else {
			uerr[0] = 0
		}

	case state.StageAcceleration:
		dx, dy, err := r.separation(s)
		if err != nil {
			return err
		}
		dvx, dvy, err := r.relativeVelocity(s)
		if err != nil {
			return err
		}
		udot, err := s.UpdSubsystemUDot(r.matter.SubsystemIndex())
		if err != nil {
			return err
		}
		dax := udot[2*r.a] - udot[2*r.b]
		day := udot[2*r.a+1] - udot[2*r.b+1]
		udoterr, err := s.UpdSubsystemUDotErr(sx)
		if err != nil {
			return err
		}
		// d2/dt2 (|d|^2)/2 = d . da + dv . dv
		udoterr[0] = dx*dax + dy*day + dvx*dvx + dvy*dvy
		mult, err := s.UpdSubsystemMultipliers(sx)
		if err != nil {
			return err
		}
		mult[0] = 0
	}
	return nil
}

func (r *RodConstraint) separation(s *state.State) (dx, dy float64, err error) {
	q, err := s.SubsystemQ(r.matter.SubsystemIndex())
	if err != nil {
		return 0, 0, err
	}
	return q[2*r.a] - q[2*r.b], q[2*r.a+1] - q[2*r.b+1], nil
}

func (r *RodConstraint) relativeVelocity(s *state.State) (dvx, dvy float64, err error) {
	u, err := s.SubsystemU(r.matter.SubsystemIndex())
	if err != nil {
		return 0, 0, err
	}
	return u[2*r.a] - u[2*r.b], u[2*r.a+1] - u[2*r.b+1], nil
}

// PositionError is valid once the state is realized to Position.
func (r *RodConstraint) PositionError(s *state.State) (float64, error) {
	qerr, err := s.SubsystemQErr(r.sx)
	if err != nil {
		return 0, err
	}
	return qerr[0], nil
}

// VelocityError is valid once the state is realized to Velocity.
func (r *RodConstraint) VelocityError(s *state.State) (float64, error) {
	uerr, err := s.SubsystemUErr(r.sx)
	if err != nil {
		return 0, err
	}
	return uerr[0], nil
}

// AccelerationError is valid once the state is realized to Acceleration.
func (r *RodConstraint) AccelerationError(s *state.State) (float64, error) {
	udoterr, err := s.SubsystemUDotErr(r.sx)
	if err != nil {
		return 0, err
	}
	return udoterr[0], nil
}
