package state

import "fmt"

// Stage is a realization level. Variables and cache entries are gated by
// stages: a value belonging to a stage may not be trusted until every
// subsystem has been realized to that stage, and is invalidated whenever
// the stage is backed up below it.
type Stage int

const (
	StageEmpty Stage = iota
	StageTopology
	StageModel
	StageInstance
	StageTime
	StagePosition
	StageVelocity
	StageDynamics
	StageAcceleration
	StageReport
)

// StageInfinity sits above every real stage. It is used only as the
// "latest" bound of lazy cache entries, never as a current stage.
const StageInfinity Stage = 1 << 10

// numRealizableStages counts Empty through Report.
const numRealizableStages = int(StageReport) + 1

var stageNames = [numRealizableStages]string{
	"Empty", "Topology", "Model", "Instance", "Time",
	"Position", "Velocity", "Dynamics", "Acceleration", "Report",
}

func (g Stage) String() string {
	if g == StageInfinity {
		return "Infinity"
	}
	if g < StageEmpty || g > StageReport {
		return fmt.Sprintf("Stage(%d)", int(g))
	}
	return stageNames[g]
}

// IsRealizable reports whether g is an actual realization level, as
// opposed to the Infinity sentinel or garbage.
func (g Stage) IsRealizable() bool {
	return g >= StageEmpty && g <= StageReport
}

// Next returns the stage one above g.
func (g Stage) Next() Stage { return g + 1 }

// Prev returns the stage one below g. Empty has no predecessor; callers
// must not go below the floor.
func (g Stage) Prev() Stage {
	if g <= StageEmpty {
		return StageEmpty
	}
	if g == StageInfinity {
		return StageReport
	}
	return g - 1
}

// StageVersion is a per-stage monotonically increasing counter.
// A version of -1 means "never initialized". 0 is reserved: it is never
// issued as a real version, so a remembered 0 can never look valid.
type StageVersion int64

const StageVersionUninitialized StageVersion = -1
