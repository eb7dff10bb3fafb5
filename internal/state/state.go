package state

import "fmt"

// State holds all time-varying information for a simulated system: the
// continuous variables y={q,u,z} and time, discrete variables, constraint
// errors and multipliers, event trigger slots, and every derived cache
// entry, partitioned by subsystem and gated by realization stage.
//
// There is a global stage for the State as a whole and an individual stage
// per subsystem; the global stage never exceeds the lowest subsystem
// stage. Global continuous pools are built when the system advances to
// Model and torn down if Model is invalidated; constraint, multiplier and
// trigger pools follow the same pattern one stage later at Instance.
//
// A State must appear atomic to a single logical caller; it has no
// internal locking. Cache entries may be filled through read-only views as
// long as concurrent callers own disjoint slots.
type State struct {
	subsystems  []*subsystemInfo
	systemStage Stage

	// stageVersions[g] counts successful system advances to and
	// invalidations of stage g.
	stageVersions [numRealizableStages]StageVersion

	t float64

	// Continuous pools, present at or above Model. y is {q,u,z} packed in
	// subsystem order within each partition; ydot is partitioned
	// identically; qdotdot has its own space.
	y       []float64
	ydot    []float64
	qdotdot []float64
	nq      int
	nu      int
	nz      int

	// Constraint pools, present at or above Instance. yerr is
	// {qerr,uerr}; udoterr and multipliers are partitioned identically
	// to each other.
	yerr        []float64
	udoterr     []float64
	multipliers []float64
	nqerr       int
	nuerr       int

	// Event trigger pool, present at or above Instance, grouped by stage
	// and then by subsystem within each stage.
	triggers          []float64
	triggerStageStart [numRealizableStages]int
	triggerStageCount [numRealizableStages]int
}

// New creates an empty State at Stage Empty with no subsystems.
func New() *State {
	s := &State{}
	s.initVersions()
	return s
}

func (s *State) initVersions() {
	// Versions start at 1; 0 is reserved so a stale snapshot can never
	// match a live version.
	for i := range s.stageVersions {
		s.stageVersions[i] = 1
	}
}

// Clear restores the State to its default-constructed condition.
func (s *State) Clear() {
	*s = State{}
	s.initVersions()
}

// SetNumSubsystems wipes the State and creates n uninitialized subsystem
// slots. Used by a System during State construction.
func (s *State) SetNumSubsystems(n int) {
	s.Clear()
	s.subsystems = make([]*subsystemInfo, n)
	for i := range s.subsystems {
		s.subsystems[i] = newSubsystemInfo("", "")
	}
}

// InitializeSubsystem sets the name and version of an existing slot.
func (s *State) InitializeSubsystem(sx SubsystemIndex, name, version string) error {
	ss, err := s.subsystem(sx)
	if err != nil {
		return err
	}
	ss.name = name
	ss.version = version
	return nil
}

// AddSubsystem registers a new subsystem and returns its index. The name
// and version strings are stored but not interpreted; they exist so a
// deserialized State can be sanity-checked against a live system.
// Structural registration is only legal while the State is still Empty.
func (s *State) AddSubsystem(name, version string) (SubsystemIndex, error) {
	if s.systemStage > StageEmpty {
		return InvalidIndex, fmt.Errorf("%w: cannot add subsystem %q at system stage %s",
			ErrStageViolation, name, s.systemStage)
	}
	s.subsystems = append(s.subsystems, newSubsystemInfo(name, version))
	return SubsystemIndex(len(s.subsystems) - 1), nil
}

// NumSubsystems returns the number of registered subsystems.
func (s *State) NumSubsystems() int { return len(s.subsystems) }

func (s *State) subsystem(sx SubsystemIndex) (*subsystemInfo, error) {
	if sx < 0 || int(sx) >= len(s.subsystems) {
		return nil, fmt.Errorf("%w: subsystem %d of %d", ErrIndexOutOfRange, sx, len(s.subsystems))
	}
	return s.subsystems[sx], nil
}

// SubsystemName returns the name given at registration.
func (s *State) SubsystemName(sx SubsystemIndex) (string, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return "", err
	}
	return ss.name, nil
}

// SubsystemVersion returns the version string given at registration.
func (s *State) SubsystemVersion(sx SubsystemIndex) (string, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return "", err
	}
	return ss.version, nil
}

// SubsystemStage returns the current stage of one subsystem.
func (s *State) SubsystemStage(sx SubsystemIndex) (Stage, error) {
	ss, err := s.subsystem(sx)
	if err != nil {
		return StageEmpty, err
	}
	return ss.currentStage, nil
}

// SystemStage returns the global stage, which is never above the lowest
// subsystem stage.
func (s *State) SystemStage() Stage { return s.systemStage }

// AdvanceSubsystemToStage advances one subsystem by exactly one stage.
// The target is passed in so the caller's expectation can be checked.
func (s *State) AdvanceSubsystemToStage(sx SubsystemIndex, g Stage) error {
	ss, err := s.subsystem(sx)
	if err != nil {
		return err
	}
	if !g.IsRealizable() || g != ss.currentStage.Next() {
		return fmt.Errorf("%w: subsystem %q at %s cannot advance to %s (one stage at a time)",
			ErrStageViolation, ss.name, ss.currentStage, g)
	}
	ss.currentStage = g
	return nil
}

// AdvanceSystemToStage advances the global stage by exactly one stage,
// which requires every subsystem to already be at or above the target.
// Advancing to Model builds the global continuous pools; advancing to
// Instance builds the constraint, multiplier, and event-trigger pools.
func (s *State) AdvanceSystemToStage(g Stage) error {
	if !g.IsRealizable() || g != s.systemStage.Next() {
		return fmt.Errorf("%w: system at %s cannot advance to %s (one stage at a time)",
			ErrStageViolation, s.systemStage, g)
	}
	for _, ss := range s.subsystems {
		if ss.currentStage < g {
			return fmt.Errorf("%w: subsystem %q still at %s, cannot advance system to %s",
				ErrStageViolation, ss.name, ss.currentStage, g)
		}
	}
	switch g {
	case StageModel:
		s.buildContinuousPools()
	case StageInstance:
		s.buildConstraintPools()
	}
	s.systemStage = g
	s.stageVersions[g]++
	return nil
}

// InvalidateAll backs every subsystem currently at or above g down to the
// stage just below g, a no-op for subsystems already below it. Backing up
// below Model or Instance destroys the corresponding global pools, and
// resources are forgotten at or below their allocation stage.
func (s *State) InvalidateAll(g Stage) {
	s.invalidateBelow(g)
}

// InvalidateAllCacheAtOrAbove is the restricted form usable through a
// read-only view: it may only invalidate Instance or above, because
// invalidating Model or Topology can destroy state variables, not just
// cache.
func (s *State) InvalidateAllCacheAtOrAbove(g Stage) error {
	if g < StageInstance {
		return fmt.Errorf("%w: cache-only invalidation requires stage >= %s, got %s",
			ErrStageViolation, StageInstance, g)
	}
	s.invalidateBelow(g)
	return nil
}

func (s *State) invalidateBelow(g Stage) {
	if !g.IsRealizable() || g == StageEmpty {
		// Empty is the floor; there is nothing below it to back up to.
		return
	}
	target := g.Prev()
	for _, ss := range s.subsystems {
		ss.restoreToStage(target)
	}
	s.recomputeSystemStage(g)
}

// recomputeSystemStage lowers the global stage to the minimum subsystem
// stage, tearing down global pools crossed on the way down and bumping
// the version of every invalidated stage. invalidated is the lowest stage
// being invalidated (for version bookkeeping).
func (s *State) recomputeSystemStage(invalidated Stage) {
	lowest := StageReport
	if len(s.subsystems) == 0 {
		lowest = StageEmpty
	}
	for _, ss := range s.subsystems {
		if ss.currentStage < lowest {
			lowest = ss.currentStage
		}
	}
	if lowest >= s.systemStage {
		return
	}
	for g := invalidated; g <= s.systemStage; g++ {
		s.stageVersions[g]++
	}
	if lowest < StageInstance && s.systemStage >= StageInstance {
		s.dropConstraintPools()
	}
	if lowest < StageModel && s.systemStage >= StageModel {
		s.dropContinuousPools()
	}
	s.systemStage = lowest
}

// SystemStageVersions returns the version counters of every stage
// realized so far, Empty first. A caller can snapshot these, let opaque
// code run, and then ask for the lowest stage that changed.
func (s *State) SystemStageVersions() []StageVersion {
	out := make([]StageVersion, int(s.systemStage)+1)
	for i := range out {
		out[i] = s.stageVersions[i]
	}
	return out
}

// LowestSystemStageDifference compares a previous SystemStageVersions
// snapshot against the current counters and returns the lowest stage
// whose version differs, even if it was helpfully re-realized in the
// interim. If everything the snapshot covered is unchanged and still
// realized, it returns StageInfinity; if the State is no longer realized
// as far as the snapshot, the first unrealized stage is returned.
func (s *State) LowestSystemStageDifference(prev []StageVersion) Stage {
	realized := int(s.systemStage) + 1
	n := len(prev)
	if realized < n {
		n = realized
	}
	for i := 0; i < n; i++ {
		if prev[i] != s.stageVersions[i] {
			return Stage(i)
		}
	}
	if len(prev) > realized {
		return Stage(realized) // first unrealized stage
	}
	return StageInfinity
}

// SystemTopologyStageVersion returns the Topology version counter, used
// to check that a State still matches the system that built it.
func (s *State) SystemTopologyStageVersion() StageVersion {
	return s.stageVersions[StageTopology]
}

// SetSystemTopologyStageVersion overwrites the Topology version counter
// to force compatibility with a system whose topology has been rebuilt.
// It has no effect on the realization level.
func (s *State) SetSystemTopologyStageVersion(v StageVersion) {
	s.stageVersions[StageTopology] = v
}

// Clone duplicates the State's variables, never its cache. If the source
// has been realized to Model, continuous variables and time come along;
// below Model only the structure and Topology-stage variables are copied.
// The clone's stages are capped at Model since cache above Model must be
// re-realized.
func (s *State) Clone() *State {
	c := &State{}
	c.stageVersions = s.stageVersions
	c.t = s.t
	c.subsystems = make([]*subsystemInfo, len(s.subsystems))
	for i, ss := range s.subsystems {
		c.subsystems[i] = ss.clone()
	}
	c.systemStage = s.systemStage
	if c.systemStage > StageModel {
		// Capping through restoreToStage also forgets Instance-level
		// allocation requests, which the clone's re-realization will remake.
		c.systemStage = StageModel
		for _, ss := range c.subsystems {
			ss.restoreToStage(StageModel)
		}
	}
	if s.systemStage >= StageModel {
		c.nq, c.nu, c.nz = s.nq, s.nu, s.nz
		c.y = append([]float64(nil), s.y...)
		c.ydot = make([]float64, len(s.ydot))
		c.qdotdot = make([]float64, len(s.qdotdot))
	}
	return c
}

func (s *State) String() string {
	out := fmt.Sprintf("State{stage=%s t=%g ny=%d subsystems=%d}",
		s.systemStage, s.t, len(s.y), len(s.subsystems))
	return out
}
