package state

import "fmt"

// AllocateQErr reserves n position-level constraint error slots for a
// subsystem and returns the local index of the first one. Legal only
// while the subsystem is below Instance; the global yErr pool comes into
// existence when the system advances to Instance.
func (s *State) AllocateQErr(sx SubsystemIndex, n int) (QErrIndex, error) {
	ss, err := s.allocForConstraints(sx, n, "qerr")
	if err != nil {
		return InvalidIndex, err
	}
	ix := QErrIndex(ss.nqerr)
	ss.nqerr += n
	return ix, nil
}

// AllocateUErr reserves n velocity-level constraint error slots.
func (s *State) AllocateUErr(sx SubsystemIndex, n int) (UErrIndex, error) {
	ss, err := s.allocForConstraints(sx, n, "uerr")
	if err != nil {
		return InvalidIndex, err
	}
	ix := UErrIndex(ss.nuerr)
	ss.nuerr += n
	return ix, nil
}

// AllocateUDotErr reserves n acceleration-level constraint error slots.
// Each uDotErr slot also reserves a Lagrange multiplier slot; the
// multiplier pool is partitioned identically to uDotErr.
func (s *State) AllocateUDotErr(sx SubsystemIndex, n int) (UDotErrIndex, error) {
	ss, err := s.allocForConstraints(sx, n, "udoterr")
	if err != nil {
		return InvalidIndex, err
	}
	ix := UDotErrIndex(ss.nudoterr)
	ss.nudoterr += n
	return ix, nil
}

// AllocateEventTrigger reserves n event witness slots examined at stage g
// and returns the index local to the (subsystem, stage) pair. At Instance
// the global trigger vector groups all slots by stage, then by subsystem
// within each stage.
func (s *State) AllocateEventTrigger(sx SubsystemIndex, g Stage, n int) (EventTriggerIndex, error) {
	if !g.IsRealizable() {
		return InvalidIndex, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	ss, err := s.allocForConstraints(sx, n, "event trigger")
	if err != nil {
		return InvalidIndex, err
	}
	ix := EventTriggerIndex(ss.ntriggers[g])
	ss.ntriggers[g] += n
	return ix, nil
}

func (s *State) allocForConstraints(sx SubsystemIndex, n int, kind string) (*subsystemInfo, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative %s count %d", ErrIndexOutOfRange, kind, n)
	}
	if ss.currentStage >= StageInstance {
		return nil, fmt.Errorf("%w: cannot allocate %s for subsystem %q at stage %s (must be below %s)",
			ErrStageViolation, kind, ss.name, ss.currentStage, StageInstance)
	}
	return ss, nil
}

// buildConstraintPools assigns global offsets for qErr, uErr, uDotErr and
// multipliers, materializes yErr={qErr,uErr}, and packs the event trigger
// vector by stage then subsystem. Called exactly when the system advances
// to Instance.
func (s *State) buildConstraintPools() {
	s.nqerr, s.nuerr = 0, 0
	nudoterr := 0
	for _, ss := range s.subsystems {
		ss.qerrStart = s.nqerr
		ss.uerrStart = s.nuerr
		ss.udoterrStart = nudoterr
		s.nqerr += ss.nqerr
		s.nuerr += ss.nuerr
		nudoterr += ss.nudoterr
	}
	s.yerr = make([]float64, s.nqerr+s.nuerr)
	s.udoterr = make([]float64, nudoterr)
	s.multipliers = make([]float64, nudoterr)

	total := 0
	for g := 0; g < numRealizableStages; g++ {
		s.triggerStageStart[g] = total
		count := 0
		for _, ss := range s.subsystems {
			ss.triggerStart[g] = total + count
			count += ss.ntriggers[g]
		}
		s.triggerStageCount[g] = count
		total += count
	}
	s.triggers = make([]float64, total)
}

func (s *State) dropConstraintPools() {
	s.yerr, s.udoterr, s.multipliers, s.triggers = nil, nil, nil, nil
	s.nqerr, s.nuerr = 0, 0
	s.triggerStageStart = [numRealizableStages]int{}
	s.triggerStageCount = [numRealizableStages]int{}
}

// Global dimensions, callable at Instance stage.

// NYErr returns nyerr = nqerr+nuerr.
func (s *State) NYErr() (int, error) {
	if err := s.checkRealized(StageInstance, "NYErr"); err != nil {
		return 0, err
	}
	return len(s.yerr), nil
}

// NQErr returns the total number of position-level constraint errors.
func (s *State) NQErr() (int, error) {
	if err := s.checkRealized(StageInstance, "NQErr"); err != nil {
		return 0, err
	}
	return s.nqerr, nil
}

// NUErr returns the total number of velocity-level constraint errors.
func (s *State) NUErr() (int, error) {
	if err := s.checkRealized(StageInstance, "NUErr"); err != nil {
		return 0, err
	}
	return s.nuerr, nil
}

// QErrStart returns the index within yErr at which qErr begins.
func (s *State) QErrStart() (int, error) {
	if err := s.checkRealized(StageInstance, "QErrStart"); err != nil {
		return 0, err
	}
	return 0, nil
}

// UErrStart returns the index within yErr at which uErr begins.
func (s *State) UErrStart() (int, error) {
	if err := s.checkRealized(StageInstance, "UErrStart"); err != nil {
		return 0, err
	}
	return s.nqerr, nil
}

// NUDotErr returns the total number of acceleration-level constraint
// errors.
func (s *State) NUDotErr() (int, error) {
	if err := s.checkRealized(StageInstance, "NUDotErr"); err != nil {
		return 0, err
	}
	return len(s.udoterr), nil
}

// NMultipliers is necessarily the same as NUDotErr.
func (s *State) NMultipliers() (int, error) {
	if err := s.checkRealized(StageInstance, "NMultipliers"); err != nil {
		return 0, err
	}
	return len(s.multipliers), nil
}

// NEventTriggers returns the total number of event witness slots.
func (s *State) NEventTriggers() (int, error) {
	if err := s.checkRealized(StageInstance, "NEventTriggers"); err != nil {
		return 0, err
	}
	return len(s.triggers), nil
}

// NEventTriggersByStage returns the size of one stage's trigger block.
func (s *State) NEventTriggersByStage(g Stage) (int, error) {
	if err := s.checkRealized(StageInstance, "NEventTriggersByStage"); err != nil {
		return 0, err
	}
	if !g.IsRealizable() {
		return 0, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	return s.triggerStageCount[g], nil
}

// EventTriggerStartByStage returns the global index at which one stage's
// trigger block begins.
func (s *State) EventTriggerStartByStage(g Stage) (int, error) {
	if err := s.checkRealized(StageInstance, "EventTriggerStartByStage"); err != nil {
		return 0, err
	}
	if !g.IsRealizable() {
		return 0, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	return s.triggerStageStart[g], nil
}

// Per-subsystem dimensions and offsets, callable at Instance stage.

func (s *State) instancedSubsystem(sx SubsystemIndex) (*subsystemInfo, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageInstance, "per-subsystem constraint access"); err != nil {
		return nil, err
	}
	return ss, nil
}

// SubsystemQErrStart returns the offset of a subsystem's qErr block.
func (s *State) SubsystemQErrStart(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.qerrStart, nil
}

// SubsystemNQErr returns a subsystem's qErr count.
func (s *State) SubsystemNQErr(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nqerr, nil
}

// SubsystemUErrStart returns the offset of a subsystem's uErr block.
func (s *State) SubsystemUErrStart(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.uerrStart, nil
}

// SubsystemNUErr returns a subsystem's uErr count.
func (s *State) SubsystemNUErr(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nuerr, nil
}

// SubsystemUDotErrStart returns the offset of a subsystem's uDotErr
// block; the multiplier partition uses the same offsets.
func (s *State) SubsystemUDotErrStart(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.udoterrStart, nil
}

// SubsystemNUDotErr returns a subsystem's uDotErr (and multiplier) count.
func (s *State) SubsystemNUDotErr(sx SubsystemIndex) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	return ss.nudoterr, nil
}

// SubsystemMultipliersStart equals SubsystemUDotErrStart.
func (s *State) SubsystemMultipliersStart(sx SubsystemIndex) (int, error) {
	return s.SubsystemUDotErrStart(sx)
}

// SubsystemNMultipliers equals SubsystemNUDotErr.
func (s *State) SubsystemNMultipliers(sx SubsystemIndex) (int, error) {
	return s.SubsystemNUDotErr(sx)
}

// SubsystemEventTriggerStartByStage returns the global index of a
// subsystem's trigger block within one stage.
func (s *State) SubsystemEventTriggerStartByStage(sx SubsystemIndex, g Stage) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	if !g.IsRealizable() {
		return 0, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	return ss.triggerStart[g], nil
}

// SubsystemNEventTriggersByStage returns a subsystem's trigger count at
// one stage.
func (s *State) SubsystemNEventTriggersByStage(sx SubsystemIndex, g Stage) (int, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return 0, err
	}
	if !g.IsRealizable() {
		return 0, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	return ss.ntriggers[g], nil
}

// Global-to-subsystem maps, callable at Instance stage.

// MapQErrToSubsystem returns the owner and local index of global qErr gi.
func (s *State) MapQErrToSubsystem(gi int) (SubsystemIndex, QErrIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageInstance, s.nqerr, func(ss *subsystemInfo) (int, int) {
		return ss.qerrStart, ss.nqerr
	})
	return sx, QErrIndex(local), err
}

// MapUErrToSubsystem returns the owner and local index of global uErr gi.
func (s *State) MapUErrToSubsystem(gi int) (SubsystemIndex, UErrIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageInstance, s.nuerr, func(ss *subsystemInfo) (int, int) {
		return ss.uerrStart, ss.nuerr
	})
	return sx, UErrIndex(local), err
}

// MapUDotErrToSubsystem returns the owner and local index of global
// uDotErr gi.
func (s *State) MapUDotErrToSubsystem(gi int) (SubsystemIndex, UDotErrIndex, error) {
	sx, local, err := s.mapToSubsystem(gi, StageInstance, len(s.udoterr), func(ss *subsystemInfo) (int, int) {
		return ss.udoterrStart, ss.nudoterr
	})
	return sx, UDotErrIndex(local), err
}

// MapMultiplierToSubsystem returns the owner and local index of global
// multiplier gi; necessarily the same answer as for the corresponding
// uDotErr.
func (s *State) MapMultiplierToSubsystem(gi int) (SubsystemIndex, MultiplierIndex, error) {
	sx, local, err := s.MapUDotErrToSubsystem(gi)
	return sx, MultiplierIndex(local), err
}

// MapEventTriggerToStage returns the stage at which global trigger gi is
// examined and its index within that stage's block.
func (s *State) MapEventTriggerToStage(gi int) (Stage, int, error) {
	if err := s.checkRealized(StageInstance, "MapEventTriggerToStage"); err != nil {
		return StageEmpty, InvalidIndex, err
	}
	if gi < 0 || gi >= len(s.triggers) {
		return StageEmpty, InvalidIndex,
			fmt.Errorf("%w: global trigger index %d of %d", ErrIndexOutOfRange, gi, len(s.triggers))
	}
	for g := 0; g < numRealizableStages; g++ {
		start, n := s.triggerStageStart[g], s.triggerStageCount[g]
		if gi >= start && gi < start+n {
			return Stage(g), gi - start, nil
		}
	}
	return StageEmpty, InvalidIndex,
		fmt.Errorf("%w: global trigger index %d not in any stage block", ErrIndexOutOfRange, gi)
}

// Constraint error and multiplier vector access. All of these are cache:
// reads are gated on the stage that computes them, writes are open to
// realize callbacks once the pools exist.

// YErr returns the packed {qErr,uErr}, readable at Velocity.
func (s *State) YErr() ([]float64, error) {
	if err := s.checkRealized(StageVelocity, "YErr"); err != nil {
		return nil, err
	}
	return s.yerr, nil
}

// QErr is readable at Position stage.
func (s *State) QErr() ([]float64, error) {
	if err := s.checkRealized(StagePosition, "QErr"); err != nil {
		return nil, err
	}
	return s.yerr[:s.nqerr], nil
}

// UErr is readable at Velocity stage.
func (s *State) UErr() ([]float64, error) {
	if err := s.checkRealized(StageVelocity, "UErr"); err != nil {
		return nil, err
	}
	return s.yerr[s.nqerr:], nil
}

// UDotErr is readable at Acceleration stage.
func (s *State) UDotErr() ([]float64, error) {
	if err := s.checkRealized(StageAcceleration, "UDotErr"); err != nil {
		return nil, err
	}
	return s.udoterr, nil
}

// Multipliers is readable at Acceleration stage.
func (s *State) Multipliers() ([]float64, error) {
	if err := s.checkRealized(StageAcceleration, "Multipliers"); err != nil {
		return nil, err
	}
	return s.multipliers, nil
}

// UpdYErr returns the writable constraint error cache.
func (s *State) UpdYErr() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "UpdYErr"); err != nil {
		return nil, err
	}
	return s.yerr, nil
}

// UpdQErr returns the writable qErr view.
func (s *State) UpdQErr() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "UpdQErr"); err != nil {
		return nil, err
	}
	return s.yerr[:s.nqerr], nil
}

// UpdUErr returns the writable uErr view.
func (s *State) UpdUErr() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "UpdUErr"); err != nil {
		return nil, err
	}
	return s.yerr[s.nqerr:], nil
}

// UpdUDotErr returns the writable uDotErr cache.
func (s *State) UpdUDotErr() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "UpdUDotErr"); err != nil {
		return nil, err
	}
	return s.udoterr, nil
}

// UpdMultipliers returns the writable multiplier cache.
func (s *State) UpdMultipliers() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "UpdMultipliers"); err != nil {
		return nil, err
	}
	return s.multipliers, nil
}

// Per-subsystem constraint views.

// SubsystemQErr returns one subsystem's qErr block, readable at Position.
func (s *State) SubsystemQErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StagePosition, "SubsystemQErr"); err != nil {
		return nil, err
	}
	return s.yerr[ss.qerrStart : ss.qerrStart+ss.nqerr], nil
}

// UpdSubsystemQErr returns one subsystem's writable qErr block.
func (s *State) UpdSubsystemQErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.yerr[ss.qerrStart : ss.qerrStart+ss.nqerr], nil
}

// SubsystemUErr returns one subsystem's uErr block, readable at Velocity.
func (s *State) SubsystemUErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageVelocity, "SubsystemUErr"); err != nil {
		return nil, err
	}
	start := s.nqerr + ss.uerrStart
	return s.yerr[start : start+ss.nuerr], nil
}

// UpdSubsystemUErr returns one subsystem's writable uErr block.
func (s *State) UpdSubsystemUErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return nil, err
	}
	start := s.nqerr + ss.uerrStart
	return s.yerr[start : start+ss.nuerr], nil
}

// SubsystemUDotErr returns one subsystem's uDotErr block, readable at
// Acceleration.
func (s *State) SubsystemUDotErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageAcceleration, "SubsystemUDotErr"); err != nil {
		return nil, err
	}
	return s.udoterr[ss.udoterrStart : ss.udoterrStart+ss.nudoterr], nil
}

// UpdSubsystemUDotErr returns one subsystem's writable uDotErr block.
func (s *State) UpdSubsystemUDotErr(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.udoterr[ss.udoterrStart : ss.udoterrStart+ss.nudoterr], nil
}

// SubsystemMultipliers returns one subsystem's multiplier block, readable
// at Acceleration.
func (s *State) SubsystemMultipliers(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRealized(StageAcceleration, "SubsystemMultipliers"); err != nil {
		return nil, err
	}
	return s.multipliers[ss.udoterrStart : ss.udoterrStart+ss.nudoterr], nil
}

// UpdSubsystemMultipliers returns one subsystem's writable multiplier
// block.
func (s *State) UpdSubsystemMultipliers(sx SubsystemIndex) ([]float64, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return nil, err
	}
	return s.multipliers[ss.udoterrStart : ss.udoterrStart+ss.nudoterr], nil
}

// Event trigger vector access.

// EventTriggers returns the whole trigger vector.
func (s *State) EventTriggers() ([]float64, error) {
	if err := s.checkRealized(StageInstance, "EventTriggers"); err != nil {
		return nil, err
	}
	return s.triggers, nil
}

// EventTriggersByStage returns one stage's trigger block.
func (s *State) EventTriggersByStage(g Stage) ([]float64, error) {
	if err := s.checkRealized(StageInstance, "EventTriggersByStage"); err != nil {
		return nil, err
	}
	if !g.IsRealizable() {
		return nil, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	start, n := s.triggerStageStart[g], s.triggerStageCount[g]
	return s.triggers[start : start+n], nil
}

// SubsystemEventTriggersByStage returns one subsystem's trigger block
// within one stage.
func (s *State) SubsystemEventTriggersByStage(sx SubsystemIndex, g Stage) ([]float64, error) {
	ss, err := s.instancedSubsystem(sx)
	if err != nil {
		return nil, err
	}
	if !g.IsRealizable() {
		return nil, fmt.Errorf("%w: event trigger stage %s", ErrStageViolation, g)
	}
	start := ss.triggerStart[g]
	return s.triggers[start : start+ss.ntriggers[g]], nil
}

// UpdEventTriggers returns the writable trigger cache.
func (s *State) UpdEventTriggers() ([]float64, error) {
	return s.EventTriggers()
}

// UpdEventTriggersByStage returns one stage's writable trigger block.
func (s *State) UpdEventTriggersByStage(g Stage) ([]float64, error) {
	return s.EventTriggersByStage(g)
}

// UpdSubsystemEventTriggersByStage returns one subsystem's writable
// trigger block within one stage.
func (s *State) UpdSubsystemEventTriggersByStage(sx SubsystemIndex, g Stage) ([]float64, error) {
	return s.SubsystemEventTriggersByStage(sx, g)
}
