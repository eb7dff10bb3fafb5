package state

import "fmt"

// AllocateDiscreteVariable creates a discrete state variable private to
// one subsystem. The subsystem must still be at Empty or Topology stage;
// the stage at allocation is remembered so the variable can be forgotten
// if the State is later backed up to it. Writing the variable invalidates
// the given stage and everything above it.
//
// The State takes ownership of v.
func (s *State) AllocateDiscreteVariable(sx SubsystemIndex, invalidates Stage, v Value) (DiscreteVarIndex, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return InvalidIndex, err
	}
	if ss.currentStage >= StageModel {
		return InvalidIndex, fmt.Errorf("%w: cannot allocate discrete variable for subsystem %q at stage %s",
			ErrStageViolation, ss.name, ss.currentStage)
	}
	if !invalidates.IsRealizable() || invalidates == StageEmpty {
		return InvalidIndex, fmt.Errorf("%w: discrete variable invalidates stage %s",
			ErrStageViolation, invalidates)
	}
	dx := DiscreteVarIndex(len(ss.discrete))
	ss.discrete = append(ss.discrete, &discreteVar{
		allocStage:  ss.currentStage,
		invalidates: invalidates,
		value:       v,
		updateEntry: InvalidIndex,
	})
	return dx, nil
}

// AllocateAutoUpdateDiscreteVariable creates a discrete variable whose
// next value is computed into an associated lazy cache entry (the
// "update value") and swapped in by AutoUpdateDiscreteVariables at step
// boundaries. The invalidates stage must be above Time; the update value
// becomes computable at updateDependsOn stage. The cache entry holds a
// clone of v, so the two payloads swap back and forth at run time.
func (s *State) AllocateAutoUpdateDiscreteVariable(sx SubsystemIndex, invalidates Stage,
	v Value, updateDependsOn Stage) (DiscreteVarIndex, error) {
	if invalidates <= StageTime {
		return InvalidIndex, fmt.Errorf("%w: auto-update variable must invalidate above %s, got %s",
			ErrStageViolation, StageTime, invalidates)
	}
	if !updateDependsOn.IsRealizable() {
		return InvalidIndex, fmt.Errorf("%w: auto-update value cannot depend on stage %s",
			ErrStageViolation, updateDependsOn)
	}
	dx, err := s.AllocateDiscreteVariable(sx, invalidates, v)
	if err != nil {
		return InvalidIndex, err
	}
	cx, err := s.AllocateLazyCacheEntry(sx, updateDependsOn, v.Clone())
	if err != nil {
		// Roll the variable back so the failed allocation leaves no trace.
		ss := s.subsystems[sx]
		ss.discrete = ss.discrete[:dx]
		return InvalidIndex, err
	}
	s.subsystems[sx].discrete[dx].updateEntry = cx
	return dx, nil
}

func (s *State) discreteVarAt(sx SubsystemIndex, dx DiscreteVarIndex) (*subsystemInfo, *discreteVar, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, nil, err
	}
	if dx < 0 || int(dx) >= len(ss.discrete) {
		return nil, nil, fmt.Errorf("%w: discrete variable %d of %d in subsystem %q",
			ErrIndexOutOfRange, dx, len(ss.discrete), ss.name)
	}
	return ss, ss.discrete[dx], nil
}

// DiscreteVarUpdateIndex returns the cache entry index of an auto-update
// variable's update value.
func (s *State) DiscreteVarUpdateIndex(sx SubsystemIndex, dx DiscreteVarIndex) (CacheEntryIndex, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return InvalidIndex, err
	}
	if dv.updateEntry == InvalidIndex {
		return InvalidIndex, fmt.Errorf("%w: discrete variable %d", ErrNotAutoUpdate, dx)
	}
	return dv.updateEntry, nil
}

// DiscreteVarAllocationStage returns the stage the State was at when the
// variable was allocated: Empty or Topology.
func (s *State) DiscreteVarAllocationStage(sx SubsystemIndex, dx DiscreteVarIndex) (Stage, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return StageEmpty, err
	}
	return dv.allocStage, nil
}

// DiscreteVarInvalidatesStage returns the lowest stage invalidated when
// the variable is written.
func (s *State) DiscreteVarInvalidatesStage(sx SubsystemIndex, dx DiscreteVarIndex) (Stage, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return StageEmpty, err
	}
	return dv.invalidates, nil
}

// DiscreteVariable returns the current value with no side effects.
func (s *State) DiscreteVariable(sx SubsystemIndex, dx DiscreteVarIndex) (Value, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return nil, err
	}
	return dv.value, nil
}

// DiscreteVarLastUpdateTime returns the time at which the variable was
// last written or swapped.
func (s *State) DiscreteVarLastUpdateTime(sx SubsystemIndex, dx DiscreteVarIndex) (float64, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return 0, err
	}
	return dv.lastUpdated, nil
}

// UpdDiscreteVariable returns the value for writing. As a side effect the
// variable's invalidates stage and everything above it are backed up
// (across all subsystems) and the current time is recorded as the last
// update time.
func (s *State) UpdDiscreteVariable(sx SubsystemIndex, dx DiscreteVarIndex) (Value, error) {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return nil, err
	}
	s.invalidateBelow(dv.invalidates)
	dv.lastUpdated = s.t
	return dv.value, nil
}

// SetDiscreteVariable overwrites the value, with the same side effects as
// UpdDiscreteVariable. The State takes ownership of v, which must hold
// the same payload type as the existing value.
func (s *State) SetDiscreteVariable(sx SubsystemIndex, dx DiscreteVarIndex, v Value) error {
	_, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return err
	}
	s.invalidateBelow(dv.invalidates)
	dv.lastUpdated = s.t
	dv.value = v
	return nil
}

// DiscreteVarUpdateValue returns the value the variable will have after
// the next auto-update swap. Fails unless the update value has been
// realized.
func (s *State) DiscreteVarUpdateValue(sx SubsystemIndex, dx DiscreteVarIndex) (Value, error) {
	ss, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return nil, err
	}
	if dv.updateEntry == InvalidIndex {
		return nil, fmt.Errorf("%w: discrete variable %d", ErrNotAutoUpdate, dx)
	}
	ce := ss.cache[dv.updateEntry]
	if !ss.cacheValueRealized(ce) {
		return nil, fmt.Errorf("%w: update value for discrete variable %d not realized",
			ErrStageViolation, dx)
	}
	return ce.value, nil
}

// UpdDiscreteVarUpdateValue returns the update value for writing, without
// touching validity or stage. Mark it realized when done.
func (s *State) UpdDiscreteVarUpdateValue(sx SubsystemIndex, dx DiscreteVarIndex) (Value, error) {
	ss, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return nil, err
	}
	if dv.updateEntry == InvalidIndex {
		return nil, fmt.Errorf("%w: discrete variable %d", ErrNotAutoUpdate, dx)
	}
	return ss.cache[dv.updateEntry].value, nil
}

// IsDiscreteVarUpdateValueRealized reports whether the update value has
// been computed since the last change to whatever it depends on.
func (s *State) IsDiscreteVarUpdateValueRealized(sx SubsystemIndex, dx DiscreteVarIndex) (bool, error) {
	ss, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return false, err
	}
	if dv.updateEntry == InvalidIndex {
		return false, fmt.Errorf("%w: discrete variable %d", ErrNotAutoUpdate, dx)
	}
	return ss.cacheValueRealized(ss.cache[dv.updateEntry]), nil
}

// MarkDiscreteVarUpdateValueRealized marks the update value computed.
func (s *State) MarkDiscreteVarUpdateValueRealized(sx SubsystemIndex, dx DiscreteVarIndex) error {
	ss, dv, err := s.discreteVarAt(sx, dx)
	if err != nil {
		return err
	}
	if dv.updateEntry == InvalidIndex {
		return fmt.Errorf("%w: discrete variable %d", ErrNotAutoUpdate, dx)
	}
	ss.cache[dv.updateEntry].valid = true
	return nil
}

// AutoUpdateDiscreteVariables swaps every auto-update variable whose
// update value is currently realized with that value, marking the cache
// entry invalid again, all in one pass. No stage is invalidated by the
// swap: collaborators that honor the protocol compute from the update
// value during realization, so results are continuous across the swap.
// An unrealized update value leaves its variable untouched.
func (s *State) AutoUpdateDiscreteVariables() {
	for _, ss := range s.subsystems {
		for _, dv := range ss.discrete {
			if dv.updateEntry == InvalidIndex {
				continue
			}
			ce := ss.cache[dv.updateEntry]
			if !ce.valid {
				continue
			}
			dv.value, ce.value = ce.value, dv.value
			ce.valid = false
			dv.lastUpdated = s.t
		}
	}
}
