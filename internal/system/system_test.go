package system

import (
	"errors"
	"testing"

	"github.com/san-kum/simstate/internal/state"
)

// recordingSubsystem allocates one q during Model realization and logs
// every Realize call so tests can check ordering.
type recordingSubsystem struct {
	name  string
	calls []state.Stage
	qx    state.QIndex
}

func (r *recordingSubsystem) Name() string    { return r.name }
func (r *recordingSubsystem) Version() string { return "1.0" }

func (r *recordingSubsystem) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	r.calls = append(r.calls, g)
	if g == state.StageModel {
		qx, err := s.AllocateQ(sx, []float64{1.0})
		if err != nil {
			return err
		}
		r.qx = qx
	}
	return nil
}

type failingSubsystem struct{ failAt state.Stage }

func (f *failingSubsystem) Name() string    { return "failing" }
func (f *failingSubsystem) Version() string { return "1.0" }

func (f *failingSubsystem) Realize(s *state.State, sx state.SubsystemIndex, g state.Stage) error {
	if g == f.failAt {
		return errors.New("boom")
	}
	return nil
}

func TestCreateState(t *testing.T) {
	sys := New()
	sub := &recordingSubsystem{name: "matter"}
	sx := sys.AddSubsystem(sub)

	s, err := sys.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	if s.SystemStage() != state.StageTopology {
		t.Errorf("fresh state at %s, want Topology", s.SystemStage())
	}
	name, _ := s.SubsystemName(sx)
	if name != "matter" {
		t.Errorf("subsystem name = %q", name)
	}
	if len(sub.calls) != 1 || sub.calls[0] != state.StageTopology {
		t.Errorf("realize calls = %v, want [Topology]", sub.calls)
	}
}

func TestRealizeCallsInStageOrder(t *testing.T) {
	sys := New()
	a := &recordingSubsystem{name: "a"}
	b := &recordingSubsystem{name: "b"}
	sys.AddSubsystem(a)
	sys.AddSubsystem(b)

	s, err := sys.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	if err := sys.Realize(s, state.StagePosition); err != nil {
		t.Fatalf("Realize: %v", err)
	}
	if s.SystemStage() != state.StagePosition {
		t.Errorf("system stage = %s, want Position", s.SystemStage())
	}

	want := []state.Stage{
		state.StageTopology, state.StageModel, state.StageInstance,
		state.StageTime, state.StagePosition,
	}
	for _, sub := range []*recordingSubsystem{a, b} {
		if len(sub.calls) != len(want) {
			t.Fatalf("%s realized %v, want %v", sub.name, sub.calls, want)
		}
		for i := range want {
			if sub.calls[i] != want[i] {
				t.Errorf("%s call %d = %s, want %s", sub.name, i, sub.calls[i], want[i])
			}
		}
	}

	// The Model callbacks allocated one q each; the pool reflects both.
	nq, err := s.NQ()
	if err != nil {
		t.Fatalf("NQ: %v", err)
	}
	if nq != 2 {
		t.Errorf("NQ = %d, want 2", nq)
	}
}

func TestRealizeIsIdempotent(t *testing.T) {
	sys := New()
	sub := &recordingSubsystem{name: "a"}
	sys.AddSubsystem(sub)
	s, _ := sys.CreateState()

	if err := sys.Realize(s, state.StageVelocity); err != nil {
		t.Fatalf("Realize: %v", err)
	}
	n := len(sub.calls)
	if err := sys.Realize(s, state.StageVelocity); err != nil {
		t.Fatalf("re-Realize: %v", err)
	}
	if len(sub.calls) != n {
		t.Errorf("redundant Realize made %d extra calls", len(sub.calls)-n)
	}
}

func TestRealizeRepairsInvalidatedState(t *testing.T) {
	sys := New()
	sub := &recordingSubsystem{name: "a"}
	sys.AddSubsystem(sub)
	s, _ := sys.CreateState()
	if err := sys.Realize(s, state.StageAcceleration); err != nil {
		t.Fatalf("Realize: %v", err)
	}

	s.InvalidateAll(state.StagePosition)
	n := len(sub.calls)
	if err := sys.Realize(s, state.StageAcceleration); err != nil {
		t.Fatalf("Realize after invalidation: %v", err)
	}
	// Only Position..Acceleration get redone.
	redone := sub.calls[n:]
	want := []state.Stage{
		state.StagePosition, state.StageVelocity,
		state.StageDynamics, state.StageAcceleration,
	}
	if len(redone) != len(want) {
		t.Fatalf("redone stages = %v, want %v", redone, want)
	}
	for i := range want {
		if redone[i] != want[i] {
			t.Errorf("redone[%d] = %s, want %s", i, redone[i], want[i])
		}
	}
}

func TestRealizeRejectsForeignState(t *testing.T) {
	sys := New()
	sys.AddSubsystem(&recordingSubsystem{name: "a"})

	other := state.New()
	if err := sys.Realize(other, state.StageModel); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("expected ErrStateMismatch, got %v", err)
	}
}

func TestRealizeWrapsSubsystemFailure(t *testing.T) {
	sys := New()
	sys.AddSubsystem(&failingSubsystem{failAt: state.StageInstance})
	s, err := sys.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}

	err = sys.Realize(s, state.StageTime)
	if !errors.Is(err, ErrRealize) {
		t.Fatalf("expected ErrRealize, got %v", err)
	}
	// The state stops short of the failed stage.
	if s.SystemStage() != state.StageModel {
		t.Errorf("system stage = %s after failure, want Model", s.SystemStage())
	}
}
