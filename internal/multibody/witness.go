package multibody

import (
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// CrossingWitness contributes one Position-stage event trigger whose
// value is a point's height above a threshold. A sign change between
// steps means the point crossed the plane; the stepper watches for it.
type CrossingWitness struct {
	matter *PointMatter
	point  int
	height float64

	sx state.SubsystemIndex
	tx state.EventTriggerIndex
}

func NewCrossingWitness(matter *PointMatter, point int, height float64) *CrossingWitness {
	return &CrossingWitness{matter: matter, point: point, height: height}
}

func (w *CrossingWitness) Name() string    { return "crossing-witness" }
func (w *CrossingWitness) Version() string { return "1.0" }

func (w *CrossingWitness) Install(sys *system.System) state.SubsystemIndex {
	w.sx = sys.AddSubsystem(w)
	return w.sx
}

func (w *CrossingWitness) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	switch g {
	case state.StageInstance:
		tx, err := s.AllocateEventTrigger(sx, state.StagePosition, 1)
		if err != nil {
			return err
		}
		w.tx = tx

	case state.StagePosition:
		_, y, err := w.matter.Position(s, w.point)
		if err != nil {
			return err
		}
		view, err := s.UpdSubsystemEventTriggersByStage(sx, state.StagePosition)
		if err != nil {
			return err
		}
		view[int(w.tx)] = y - w.height
	}
	return nil
}

// Value returns the current witness function value, valid at Position.
func (w *CrossingWitness) Value(s *state.State) (float64, error) {
	view, err := s.SubsystemEventTriggersByStage(w.sx, state.StagePosition)
	if err != nil {
		return 0, err
	}
	return view[int(w.tx)], nil
}
