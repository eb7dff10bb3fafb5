// Package system provides the realize framework that drives a staged
// state. A System owns an ordered set of Subsystems; each Subsystem
// performs its allocations and computations one stage at a time through
// Realize callbacks, and the System keeps the global stage consistent.
package system

import (
	"fmt"

	"github.com/san-kum/simstate/internal/state"
)

// Subsystem is one coherent piece of a simulated system: a body model, a
// force field, a constraint. Its Realize callback is invoked once per
// stage in strict ladder order; during the callback for stage g the
// subsystem is still at g-1, which is where allocations for g happen
// (continuous variables during Model realization, constraint slots and
// triggers during Instance realization) and where cache values for g are
// computed.
type Subsystem interface {
	Name() string
	Version() string
	Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error
}

// System is the collaborator boundary above the state kernel. It never
// stores continuous or discrete values itself; everything lives in the
// States it creates.
type System struct {
	subsystems []Subsystem

	// Bumped whenever the subsystem set changes, so stale States can be
	// rejected instead of silently misinterpreted.
	topologyVersion state.StageVersion
}

func New() *System {
	return &System{topologyVersion: 1}
}

// AddSubsystem registers sub and returns the index it will occupy in
// every State created afterwards.
func (sys *System) AddSubsystem(sub Subsystem) state.SubsystemIndex {
	sys.subsystems = append(sys.subsystems, sub)
	sys.topologyVersion++
	return state.SubsystemIndex(len(sys.subsystems) - 1)
}

func (sys *System) NumSubsystems() int { return len(sys.subsystems) }

// CreateState builds a fresh State with one slot per subsystem and
// realizes it through Topology, so the caller receives a state whose
// topology-stage allocations are already in place.
func (sys *System) CreateState() (*state.State, error) {
	s := state.New()
	for _, sub := range sys.subsystems {
		if _, err := s.AddSubsystem(sub.Name(), sub.Version()); err != nil {
			return nil, err
		}
	}
	if err := sys.Realize(s, state.StageTopology); err != nil {
		return nil, err
	}
	return s, nil
}

// Realize advances s to stage g, one stage at a time. For each pending
// stage every subsystem's Realize callback runs first, then the
// subsystem advances, and the system stage advances only after all
// subsystems have. Already-realized stages are skipped, so Realize is
// also how a state is repaired after invalidation.
func (sys *System) Realize(s *state.State, g Stage) error {
	if err := sys.checkState(s); err != nil {
		return err
	}
	if g > state.StageReport {
		g = state.StageReport
	}
	for next := s.SystemStage().Next(); next <= g; next = next.Next() {
		for i, sub := range sys.subsystems {
			sx := state.SubsystemIndex(i)
			st, err := s.SubsystemStage(sx)
			if err != nil {
				return err
			}
			if st >= next {
				continue
			}
			if err := sub.Realize(s, sx, next); err != nil {
				return fmt.Errorf("%w: subsystem %q at %s: %v", ErrRealize, sub.Name(), next, err)
			}
			if err := s.AdvanceSubsystemToStage(sx, next); err != nil {
				return err
			}
		}
		if err := s.AdvanceSystemToStage(next); err != nil {
			return err
		}
		// Stamp states with the current topology so Realize can reject
		// states built before a subsystem was added.
		if next == state.StageTopology {
			s.SetSystemTopologyStageVersion(sys.topologyVersion)
		}
	}
	return nil
}

// Stage is re-exported so callers driving a System do not need to import
// the state package for the ladder alone.
type Stage = state.Stage

func (sys *System) checkState(s *state.State) error {
	if s.NumSubsystems() != len(sys.subsystems) {
		return fmt.Errorf("%w: %d subsystems, system has %d",
			ErrStateMismatch, s.NumSubsystems(), len(sys.subsystems))
	}
	if s.SystemStage() >= state.StageTopology &&
		s.SystemTopologyStageVersion() != sys.topologyVersion {
		return fmt.Errorf("%w: topology version %d, system at %d",
			ErrStateMismatch, s.SystemTopologyStageVersion(), sys.topologyVersion)
	}
	return nil
}
