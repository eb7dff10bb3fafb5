package state

import "fmt"

// AllocateQ reserves generalized coordinates for a subsystem, initialized
// from qInit, and returns the subsystem-local index of the first one. The
// matching qdot and qdotdot cache slots are reserved alongside. Legal
// only while the subsystem is below Model; the global q pool comes into
// existence when the system advances to Model.
func (s *State) AllocateQ(sx SubsystemIndex, qInit []float64) (QIndex, error) {
	ss, err := s.allocForContinuous(sx, "q")
	if err != nil {
		return InvalidIndex, err
	}
	ix := QIndex(len(ss.qInit))
	ss.qInit = append(ss.qInit, qInit...)
	return ix, nil
}

// AllocateU reserves generalized speeds, with the matching udot cache
// slots. Same gating as AllocateQ.
func (s *State) AllocateU(sx SubsystemIndex, uInit []float64) (UIndex, error) {
	ss, err := s.allocForContinuous(sx, "u")
	if err != nil {
		return InvalidIndex, err
	}
	ix := UIndex(len(ss.uInit))
	ss.uInit = append(ss.uInit, uInit...)
	return ix, nil
}

// AllocateZ reserves auxiliary state variables, with the matching zdot
// cache slots. Same gating as AllocateQ.
func (s *State) AllocateZ(sx SubsystemIndex, zInit []float64) (ZIndex, error) {
	ss, err := s.allocForContinuous(sx, "z")
	if err != nil {
		return InvalidIndex, err
	}
	ix := ZIndex(len(ss.zInit))
	ss.zInit = append(ss.zInit, zInit...)
	return ix, nil
}

func (s *State) allocForContinuous(sx SubsystemIndex, kind string) (*subsystemInfo, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if ss.currentStage >= StageModel {
		return nil, fmt.Errorf("%w: cannot allocate %s for subsystem %q at stage %s (must be below %s)",
			ErrStageViolation, kind, ss.name, ss.currentStage, StageModel)
	}
	return ss, nil
}

// buildContinuousPools assigns global contiguous offsets per subsystem
// for q, then u, then z, and materializes y={q,u,z} from the allocation-
// time initial values. Called exactly when the system advances to Model.
func (s *State) buildContinuousPools() {
	s.nq, s.nu, s.nz = 0, 0, 0
	for _, ss := range s.subsystems {
		ss.qStart = s.nq
		ss.uStart = s.nu
		ss.zStart = s.nz
		s.nq += ss.nq()
		s.nu += ss.nu()
		s.nz += ss.nz()
	}
	s.y = make([]float64, s.nq+s.nu+s.nz)
	for _, ss := range s.subsystems {
		copy(s.y[ss.qStart:], ss.qInit)
		copy(s.y[s.nq+ss.uStart:], ss.uInit)
		copy(s.y[s.nq+s.nu+ss.zStart:], ss.zInit)
	}
	s.ydot = make([]float64, len(s.y))
	s.qdotdot = make([]float64, s.nq)
}

func (s *State) dropContinuousPools() {
	s.y, s.ydot, s.qdotdot = nil, nil, nil
	s.nq, s.nu, s.nz = 0, 0, 0
}

func (s *State) checkRealized(g Stage, what string) error {
	if s.systemStage < g {
		return fmt.Errorf("%w: %s requires system stage >= %s, currently %s",
			ErrStageViolation, what, g, s.systemStage)
	}
	return nil
}

// Global dimensions, callable at Model stage.

// NY returns ny = nq+nu+nz, the length of y and of ydot.
func (s *State) NY() (int, error) {
	if err := s.checkRealized(StageModel, "NY"); err != nil {
		return 0, err
	}
	return len(s.y), nil
}

// NQ returns the total number of generalized coordinates.
func (s *State) NQ() (int, error) {
	if err := s.checkRealized(StageModel, "NQ"); err != nil {
		return 0, err
	}
	return s.nq, nil
}

// NU returns the total number of generalized speeds.
func (s *State) NU() (int, error) {
	if err := s.checkRealized(StageModel, "NU"); err != nil {
		return 0, err
	}
	return s.nu, nil
}

// NZ returns the total number of auxiliary variables.
func (s *State) NZ() (int, error) {
	if err := s.checkRealized(StageModel, "NZ"); err != nil {
		return 0, err
	}
	return s.nz, nil
}

// QStart returns the index within y at which the q partition begins.
func (s *State) QStart() (int, error) {
	if err := s.checkRealized(StageModel, "QStart"); err != nil {
		return 0, err
	}
	return 0, nil
}

// UStart returns the index within y at which the u partition begins.
func (s *State) UStart() (int, error) {
	if err := s.checkRealized(StageModel, "UStart"); err != nil {
		return 0, err
	}
	return s.nq, nil
}

// ZStart returns the index within y at which the z partition begins.
func (s *State) ZStart() (int, error) {
	if err := s.checkRealized(StageModel, "ZStart"); err != nil {
		return 0, err
	}
	return s.nq + s.nu, nil
}

// Per-subsystem dimensions and offsets within the global partitions.

func (s *State) modeledSubsystem(sx SubsystemIndex) (*subsystemInfo, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageModel, "per-subsystem continuous access"); err != nil {
		return nil, err
	}
	return ss, nil
}

// SubsystemQStart returns the offset of a subsystem's q block within the
// global q partition.
func (s *State) SubsystemQStart(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.qStart, nil
}

// SubsystemNQ returns the number of q's a subsystem allocated.
func (s *State) SubsystemNQ(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nq(), nil
}

// SubsystemUStart returns the offset of a subsystem's u block within the
// global u partition.
func (s *State) SubsystemUStart(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.uStart, nil
}

// SubsystemNU returns the number of u's a subsystem allocated.
func (s *State) SubsystemNU(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nu(), nil
}

// SubsystemZStart returns the offset of a subsystem's z block within the
// global z partition.
func (s *State) SubsystemZStart(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.zStart, nil
}

// SubsystemNZ returns the number of z's a subsystem allocated.
func (s *State) SubsystemNZ(sx SubsystemIndex) (int, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nz(), nil
}

// Global-to-subsystem maps, callable at Model stage.

// MapQToSubsystem returns the subsystem that allocated global q index gi
// and the subsystem-local index it is known by.
func (s *State) MapQToSubsystem(gi int) (SubsystemIndex, QIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageModel, s.nq, func(ss *subsystemInfo) (int, int) {
		return ss.qStart, ss.nq()
	})
	return sx, QIndex(local), err
}

// MapUToSubsystem returns the owner and local index of global u index gi.
func (s *State) MapUToSubsystem(gi int) (SubsystemIndex, UIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageModel, s.nu, func(ss *subsystemInfo) (int, int) {
		return ss.uStart, ss.nu()
	})
	return sx, UIndex(local), err
}

// MapZToSubsystem returns the owner and local index of global z index gi.
func (s *State) MapZToSubsystem(gi int) (SubsystemIndex, ZIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageModel, s.nz, func(ss *subsystemInfo) (int, int) {
		return ss.zStart, ss.nz()
	})
	return sx, ZIndex(local), err
}

func (s *State) mapToSubsystem(gi int, need Stage, total int,
	block func(*subsystemInfo) (start, n int)) (SubsystemIndex, int, error) {
	if err := s.checkRealized(need, "global-to-subsystem map"); err != nil {
		return InvalidIndex, InvalidIndex, err
	}
	if gi < 0 || gi >= total {
		return InvalidIndex, InvalidIndex,
			fmt.Errorf("%w: global index %d of %d", ErrIndexOutOfRange, gi, total)
	}
	for i, ss := range s.subsystems {
		start, n := block(ss)
		if gi >= start && gi < start+n {
			return SubsystemIndex(i), gi - start, nil
		}
	}
	return InvalidIndex, InvalidIndex,
		fmt.Errorf("%w: global index %d not owned by any subsystem", ErrIndexOutOfRange, gi)
}

// Time and continuous vector access.

// Time returns the current value of the independent variable t.
func (s *State) Time() (float64, error) {
	if err := s.checkRealized(StageModel, "Time"); err != nil {
		return 0, err
	}
	return s.t, nil
}

// SetTime writes t, invalidating Time stage and above.
func (s *State) SetTime(t float64) error {
	if err := s.checkRealized(StageModel, "SetTime"); err != nil {
		return err
	}
	s.invalidateBelow(StageTime)
	s.t = t
	return nil
}

// Y returns a read-only view of the packed continuous state {q,u,z}.
// The slice aliases State-owned memory; treat it as const.
func (s *State) Y() ([]float64, error) {
	if err := s.checkRealized(StageModel, "Y"); err != nil {
		return nil, err
	}
	return s.y, nil
}

// Q returns the q partition of y.
func (s *State) Q() ([]float64, error) {
	if err := s.checkRealized(StageModel, "Q"); err != nil {
		return nil, err
	}
	return s.y[:s.nq], nil
}

// U returns the u partition of y.
func (s *State) U() ([]float64, error) {
	if err := s.checkRealized(StageModel, "U"); err != nil {
		return nil, err
	}
	return s.y[s.nq : s.nq+s.nu], nil
}

// Z returns the z partition of y.
func (s *State) Z() ([]float64, error) {
	if err := s.checkRealized(StageModel, "Z"); err != nil {
		return nil, err
	}
	return s.y[s.nq+s.nu:], nil
}

// UpdY invalidates Position stage and above (the most conservative level,
// since y contains q) and returns a writable view of y.
func (s *State) UpdY() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdY"); err != nil {
		return nil, err
	}
	s.invalidateBelow(StagePosition)
	return s.y, nil
}

// UpdQ invalidates Position stage and above and returns a writable view
// of the q partition.
func (s *State) UpdQ() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdQ"); err != nil {
		return nil, err
	}
	s.invalidateBelow(StagePosition)
	return s.y[:s.nq], nil
}

// UpdU invalidates Velocity stage and above and returns a writable view
// of the u partition.
func (s *State) UpdU() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdU"); err != nil {
		return nil, err
	}
	s.invalidateBelow(StageVelocity)
	return s.y[s.nq : s.nq+s.nu], nil
}

// UpdZ invalidates Dynamics stage and above and returns a writable view
// of the z partition.
func (s *State) UpdZ() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdZ"); err != nil {
		return nil, err
	}
	s.invalidateBelow(StageDynamics)
	return s.y[s.nq+s.nu:], nil
}

// SetY overwrites the whole continuous state.
func (s *State) SetY(y []float64) error {
	dst, err := s.UpdY()
	if err != nil {
		return err
	}
	if len(y) != len(dst) {
		return fmt.Errorf("%w: SetY with %d values, want %d", ErrIndexOutOfRange, len(y), len(dst))
	}
	copy(dst, y)
	return nil
}

// SetQ overwrites the q partition.
func (s *State) SetQ(q []float64) error {
	dst, err := s.UpdQ()
	if err != nil {
		return err
	}
	if len(q) != len(dst) {
		return fmt.Errorf("%w: SetQ with %d values, want %d", ErrIndexOutOfRange, len(q), len(dst))
	}
	copy(dst, q)
	return nil
}

// SetU overwrites the u partition.
func (s *State) SetU(u []float64) error {
	dst, err := s.UpdU()
	if err != nil {
		return err
	}
	if len(u) != len(dst) {
		return fmt.Errorf("%w: SetU with %d values, want %d", ErrIndexOutOfRange, len(u), len(dst))
	}
	copy(dst, u)
	return nil
}

// SetZ overwrites the z partition.
func (s *State) SetZ(z []float64) error {
	dst, err := s.UpdZ()
	if err != nil {
		return err
	}
	if len(z) != len(dst) {
		return fmt.Errorf("%w: SetZ with %d values, want %d", ErrIndexOutOfRange, len(z), len(dst))
	}
	copy(dst, z)
	return nil
}

// Per-subsystem continuous views. Each subsystem's q's are contiguous, as
// are its u's and z's, but the three blocks are not adjacent.

// SubsystemQ returns a read-only view of one subsystem's q block.
func (s *State) SubsystemQ(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.y[ss.qStart : ss.qStart+ss.nq()], nil
}

// SubsystemU returns a read-only view of one subsystem's u block.
func (s *State) SubsystemU(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	start := s.nq + ss.uStart
	return s.y[start : start+ss.nu()], nil
}

// SubsystemZ returns a read-only view of one subsystem's z block.
func (s *State) SubsystemZ(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	start := s.nq + s.nu + ss.zStart
	return s.y[start : start+ss.nz()], nil
}

// UpdSubsystemQ invalidates Position and returns a writable view of one
// subsystem's q block. Invalidation is whole-stage: writing any q backs
// every subsystem below Position.
func (s *State) UpdSubsystemQ(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	s.invalidateBelow(StagePosition)
	return s.y[ss.qStart : ss.qStart+ss.nq()], nil
}

// UpdSubsystemU invalidates Velocity and returns a writable view of one
// subsystem's u block.
func (s *State) UpdSubsystemU(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	s.invalidateBelow(StageVelocity)
	start := s.nq + ss.uStart
	return s.y[start : start+ss.nu()], nil
}

// UpdSubsystemZ invalidates Dynamics and returns a writable view of one
// subsystem's z block.
func (s *State) UpdSubsystemZ(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	s.invalidateBelow(StageDynamics)
	start := s.nq + s.nu + ss.zStart
	return s.y[start : start+ss.nz()], nil
}

// Derivative cache views. These are cache entries: reading is gated on
// the stage that computes them, writing is open to realize callbacks at
// any time after Model and neither invalidates nor validates anything.

// YDot returns the packed {qdot,udot,zdot}, readable at Acceleration.
func (s *State) YDot() ([]float64, error) {
	if err := s.checkRealized(StageAcceleration, "YDot"); err != nil {
		return nil, err
	}
	return s.ydot, nil
}

// QDot is readable at Velocity stage.
func (s *State) QDot() ([]float64, error) {
	if err := s.checkRealized(StageVelocity, "QDot"); err != nil {
		return nil, err
	}
	return s.ydot[:s.nq], nil
}

// UDot is readable at Acceleration stage.
func (s *State) UDot() ([]float64, error) {
	if err := s.checkRealized(StageAcceleration, "UDot"); err != nil {
		return nil, err
	}
	return s.ydot[s.nq : s.nq+s.nu], nil
}

// ZDot is readable at Dynamics stage.
func (s *State) ZDot() ([]float64, error) {
	if err := s.checkRealized(StageDynamics, "ZDot"); err != nil {
		return nil, err
	}
	return s.ydot[s.nq+s.nu:], nil
}

// QDotDot has its own space (not a view into ydot) and is readable at
// Acceleration stage.
func (s *State) QDotDot() ([]float64, error) {
	if err := s.checkRealized(StageAcceleration, "QDotDot"); err != nil {
		return nil, err
	}
	return s.qdotdot, nil
}

// UpdYDot returns the writable derivative cache.
func (s *State) UpdYDot() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdYDot"); err != nil {
		return nil, err
	}
	return s.ydot, nil
}

// UpdQDot returns the writable qdot view.
func (s *State) UpdQDot() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdQDot"); err != nil {
		return nil, err
	}
	return s.ydot[:s.nq], nil
}

// UpdUDot returns the writable udot view.
func (s *State) UpdUDot() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdUDot"); err != nil {
		return nil, err
	}
	return s.ydot[s.nq : s.nq+s.nu], nil
}

// UpdZDot returns the writable zdot view.
func (s *State) UpdZDot() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdZDot"); err != nil {
		return nil, err
	}
	return s.ydot[s.nq+s.nu:], nil
}

// UpdQDotDot returns the writable qdotdot cache.
func (s *State) UpdQDotDot() ([]float64, error) {
	if err := s.checkRealized(StageModel, "UpdQDotDot"); err != nil {
		return nil, err
	}
	return s.qdotdot, nil
}

// Per-subsystem derivative views.

// SubsystemQDot returns one subsystem's qdot block, readable at Velocity.
func (s *State) SubsystemQDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageVelocity, "SubsystemQDot"); err != nil {
		return nil, err
	}
	return s.ydot[ss.qStart : ss.qStart+ss.nq()], nil
}

// UpdSubsystemQDot returns one subsystem's writable qdot block.
func (s *State) UpdSubsystemQDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.ydot[ss.qStart : ss.qStart+ss.nq()], nil
}

// SubsystemUDot returns one subsystem's udot block, readable at
// Acceleration.
func (s *State) SubsystemUDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageAcceleration, "SubsystemUDot"); err != nil {
		return nil, err
	}
	start := s.nq + ss.uStart
	return s.ydot[start : start+ss.nu()], nil
}

// UpdSubsystemUDot returns one subsystem's writable udot block.
func (s *State) UpdSubsystemUDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	start := s.nq + ss.uStart
	return s.ydot[start : start+ss.nu()], nil
}

// SubsystemZDot returns one subsystem's zdot block, readable at Dynamics.
func (s *State) SubsystemZDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageDynamics, "SubsystemZDot"); err != nil {
		return nil, err
	}
	start := s.nq + s.nu + ss.zStart
	return s.ydot[start : start+ss.nz()], nil
}

// UpdSubsystemZDot returns one subsystem's writable zdot block.
func (s *State) UpdSubsystemZDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	start := s.nq + s.nu + ss.zStart
	return s.ydot[start : start+ss.nz()], nil
}

// SubsystemQDotDot returns one subsystem's qdotdot block, readable at
// Acceleration.
func (s *State) SubsystemQDotDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageAcceleration, "SubsystemQDotDot"); err != nil {
		return nil, err
	}
	return s.qdotdot[ss.qStart : ss.qStart+ss.nq()], nil
}

// UpdSubsystemQDotDot returns one subsystem's writable qdotdot block.
func (s *State) UpdSubsystemQDotDot(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.modeledSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.qdotdot[ss.qStart : ss.qStart+ss.nq()], nil
}
