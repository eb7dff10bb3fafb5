package state

import "fmt"

// AllocateCacheEntry creates a derived-value slot private to one
// subsystem, legal while the subsystem is below Instance. The entry is
// provably invalid below the earliest stage and presumed valid at or
// above the latest stage; in between, an explicit validity flag set by
// MarkCacheValueRealized is authoritative. The flag is cleared whenever
// the owning subsystem's stage drops below earliest.
//
// The canonical lazy protocol for a slot: check IsCacheValueRealized; if
// false, compute from realized inputs, write through UpdCacheEntry, and
// MarkCacheValueRealized; then read. Keep the check-compute-mark sequence
// in exactly one call site per entry.
//
// The State takes ownership of v.
func (s *State) AllocateCacheEntry(sx SubsystemIndex, earliest, latest Stage, v Value) (CacheEntryIndex, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return InvalidIndex, err
	}
	if ss.currentStage >= StageInstance {
		return InvalidIndex, fmt.Errorf("%w: cannot allocate cache entry for subsystem %q at stage %s",
			ErrStageViolation, ss.name, ss.currentStage)
	}
	if !earliest.IsRealizable() {
		return InvalidIndex, fmt.Errorf("%w: cache entry earliest stage %s", ErrStageViolation, earliest)
	}
	if latest != StageInfinity && (!latest.IsRealizable() || latest < earliest) {
		return InvalidIndex, fmt.Errorf("%w: cache entry latest stage %s (earliest %s)",
			ErrStageViolation, latest, earliest)
	}
	cx := CacheEntryIndex(len(ss.cache))
	ss.cache = append(ss.cache, &cacheEntry{
		allocStage: ss.currentStage,
		earliest:   earliest,
		latest:     latest,
		value:      v,
	})
	return cx, nil
}

// AllocateLazyCacheEntry is the latest=Infinity special case: the entry
// is only ever valid after an explicit MarkCacheValueRealized.
func (s *State) AllocateLazyCacheEntry(sx SubsystemIndex, earliest Stage, v Value) (CacheEntryIndex, error) {
	return s.AllocateCacheEntry(sx, earliest, StageInfinity, v)
}

func (s *State) cacheEntryAt(sx SubsystemIndex, cx CacheEntryIndex) (*subsystemInfo, *cacheEntry, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return nil, nil, err
	}
	if cx < 0 || int(cx) >= len(ss.cache) {
		return nil, nil, fmt.Errorf("%w: cache entry %d of %d in subsystem %q",
			ErrIndexOutOfRange, cx, len(ss.cache), ss.name)
	}
	return ss, ss.cache[cx], nil
}

// cacheValueRealized applies the validity rule: presumption at or above a
// finite latest stage, the explicit flag otherwise.
func (ss *subsystemInfo) cacheValueRealized(ce *cacheEntry) bool {
	if ce.latest != StageInfinity && ss.currentStage >= ce.latest {
		return true
	}
	return ce.valid
}

// CacheEntryAllocationStage returns the stage the State was at when the
// entry was allocated: Empty, Topology, or Model.
func (s *State) CacheEntryAllocationStage(sx SubsystemIndex, cx CacheEntryIndex) (Stage, error) {
	_, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return StageEmpty, err
	}
	return ce.allocStage, nil
}

// CacheEntry returns the value, which must be up to date with respect to
// the variables it depends on; no calculation is performed here.
func (s *State) CacheEntry(sx SubsystemIndex, cx CacheEntryIndex) (Value, error) {
	ss, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return nil, err
	}
	if !ss.cacheValueRealized(ce) {
		return nil, fmt.Errorf("%w: cache entry %d in subsystem %q not realized (earliest %s, stage %s)",
			ErrStageViolation, cx, ss.name, ce.earliest, ss.currentStage)
	}
	return ce.value, nil
}

// UpdCacheEntry returns the value for writing, available from one stage
// below earliest (so realize callbacks can fill it). Neither validity nor
// the current stage changes; mark the entry realized after computing a
// correct value. Cache is logically const, so this needs no write access
// to the State handle in the interior-mutability sense.
func (s *State) UpdCacheEntry(sx SubsystemIndex, cx CacheEntryIndex) (Value, error) {
	ss, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return nil, err
	}
	if ss.currentStage < ce.earliest.Prev() {
		return nil, fmt.Errorf("%w: cache entry %d in subsystem %q writable from stage %s, currently %s",
			ErrStageViolation, cx, ss.name, ce.earliest.Prev(), ss.currentStage)
	}
	return ce.value, nil
}

// IsCacheValueRealized reports whether the value can be read: either the
// explicit flag is set, or the owning subsystem has reached the entry's
// finite latest stage.
func (s *State) IsCacheValueRealized(sx SubsystemIndex, cx CacheEntryIndex) (bool, error) {
	ss, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return false, err
	}
	return ss.cacheValueRealized(ce), nil
}

// MarkCacheValueRealized sets the explicit validity flag after the value
// has been recalculated. The owning subsystem must be at least one stage
// below the entry's earliest stage.
func (s *State) MarkCacheValueRealized(sx SubsystemIndex, cx CacheEntryIndex) error {
	ss, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return err
	}
	if ss.currentStage < ce.earliest.Prev() {
		return fmt.Errorf("%w: cache entry %d in subsystem %q cannot be marked realized before stage %s, currently %s",
			ErrStageViolation, cx, ss.name, ce.earliest.Prev(), ss.currentStage)
	}
	ce.valid = true
	return nil
}

// MarkCacheValueNotRealized clears the flag, forcing recomputation.
// Normally invalidation is automatic; this is the manual override.
func (s *State) MarkCacheValueNotRealized(sx SubsystemIndex, cx CacheEntryIndex) error {
	_, ce, err := s.cacheEntryAt(sx, cx)
	if err != nil {
		return err
	}
	ce.valid = false
	return nil
}
