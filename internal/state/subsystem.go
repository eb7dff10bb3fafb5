package state

// SubsystemIndex identifies a subsystem within a State.
type SubsystemIndex int

// Subsystem-local resource indices. Each counts from zero within its
// owning subsystem; global positions are recovered through the per-
// subsystem start offsets once the corresponding pool has been built.
type (
	QIndex            int
	UIndex            int
	ZIndex            int
	QErrIndex         int
	UErrIndex         int
	UDotErrIndex      int
	MultiplierIndex   int
	EventTriggerIndex int
	DiscreteVarIndex  int
	CacheEntryIndex   int
)

// InvalidIndex marks an index slot with no allocation behind it.
const InvalidIndex = -1

type discreteVar struct {
	allocStage  Stage // stage the subsystem was at when allocated (Empty or Topology)
	invalidates Stage // lowest stage invalidated by an explicit write
	value       Value
	lastUpdated float64

	// updateEntry is the associated auto-update cache entry, or
	// InvalidIndex for a plain discrete variable.
	updateEntry CacheEntryIndex
}

type cacheEntry struct {
	allocStage Stage // Empty, Topology, or Model
	earliest   Stage // provably invalid below this stage
	latest     Stage // presumed valid at or above this stage; Infinity for lazy
	value      Value

	// valid is the explicit realization flag, authoritative for stages in
	// [earliest, latest) and at all stages for lazy entries.
	valid bool
}

// subsystemInfo is the per-subsystem partition table: its identity, its
// current stage, its allocation requests, and its share of the global
// resource pools.
type subsystemInfo struct {
	name    string
	version string

	currentStage Stage

	// Continuous-variable allocation requests, appended while the
	// subsystem is below Model. These double as the initial values the
	// global y pool is (re)built from at every advance to Model.
	qInit []float64
	uInit []float64
	zInit []float64

	// Constraint-error and multiplier slot requests, made while the
	// subsystem is below Instance. Multipliers are sized by nudoterr.
	nqerr    int
	nuerr    int
	nudoterr int

	// Event-trigger request counts by the stage at which the trigger is
	// examined.
	ntriggers [numRealizableStages]int

	// Offsets of this subsystem's blocks within the global partitions.
	// q/u/z offsets are valid once the system reaches Model; the rest
	// once it reaches Instance.
	qStart       int
	uStart       int
	zStart       int
	qerrStart    int
	uerrStart    int
	udoterrStart int
	triggerStart [numRealizableStages]int

	discrete []*discreteVar
	cache    []*cacheEntry
}

func newSubsystemInfo(name, version string) *subsystemInfo {
	return &subsystemInfo{
		name:         name,
		version:      version,
		currentStage: StageEmpty,
	}
}

// restoreToStage backs the subsystem up to stage g, forgetting every
// resource allocated at or above g and clearing the validity of cache
// entries that can no longer be trusted. A no-op if already at or below g.
func (ss *subsystemInfo) restoreToStage(g Stage) {
	if ss.currentStage <= g {
		return
	}
	ss.currentStage = g

	// Continuous allocation requests are made at Topology, constraint and
	// trigger requests at Model. Backing up to or below those stages means
	// the realize callback that made them will run again, so the requests
	// must be forgotten or they would be allocated twice.
	if g <= StageTopology {
		ss.qInit, ss.uInit, ss.zInit = nil, nil, nil
	}
	if g <= StageModel {
		ss.nqerr, ss.nuerr, ss.nudoterr = 0, 0, 0
		ss.ntriggers = [numRealizableStages]int{}
	}

	// Discrete variables and cache entries are forgotten when the stage
	// backs up to or below their allocation stage. Allocation is strictly
	// append-order by stage, so truncation suffices.
	nd := len(ss.discrete)
	for nd > 0 && ss.discrete[nd-1].allocStage >= g {
		nd--
	}
	ss.discrete = ss.discrete[:nd]

	nc := len(ss.cache)
	for nc > 0 && ss.cache[nc-1].allocStage >= g {
		nc--
	}
	ss.cache = ss.cache[:nc]

	for _, ce := range ss.cache {
		if g < ce.earliest {
			ce.valid = false
		}
	}
}

// clone duplicates the partition table, variables, and allocation
// requests. Cache entry slots are recreated around cloned payloads but
// marked not realized: cache never survives a copy.
func (ss *subsystemInfo) clone() *subsystemInfo {
	c := &subsystemInfo{}
	*c = *ss
	c.qInit = append([]float64(nil), ss.qInit...)
	c.uInit = append([]float64(nil), ss.uInit...)
	c.zInit = append([]float64(nil), ss.zInit...)
	c.discrete = make([]*discreteVar, len(ss.discrete))
	for i, dv := range ss.discrete {
		d := *dv
		d.value = dv.value.Clone()
		c.discrete[i] = &d
	}
	c.cache = make([]*cacheEntry, len(ss.cache))
	for i, ce := range ss.cache {
		e := *ce
		e.value = ce.value.Clone()
		e.valid = false
		c.cache[i] = &e
	}
	return c
}

func (ss *subsystemInfo) nq() int { return len(ss.qInit) }
func (ss *subsystemInfo) nu() int { return len(ss.uInit) }
func (ss *subsystemInfo) nz() int { return len(ss.zInit) }
