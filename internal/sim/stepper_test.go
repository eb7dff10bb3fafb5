package sim

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/simstate/internal/integrators"
	"github.com/san-kum/simstate/internal/multibody"
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// fallingRig is one unit point mass dropped from y=1 under gravity with
// a witness plane at y=0.5.
func fallingRig(t *testing.T) (*system.System, *multibody.PointMatter, *multibody.ForceField, *multibody.CrossingWitness) {
	t.Helper()
	matter := multibody.NewPointMatter([]float64{1.0})
	matter.SetInitialPosition(0, 0, 1)
	forces := multibody.NewForceField(matter)
	witness := multibody.NewCrossingWitness(matter, 0, 0.5)

	sys := system.New()
	matter.Install(sys)
	forces.Install(sys)
	witness.Install(sys)
	return sys, matter, forces, witness
}

func TestRunCapturesTrajectory(t *testing.T) {
	sys, matter, _, _ := fallingRig(t)
	s, err := sys.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}

	stepper := New(sys, integrators.NewRK4())
	result, err := stepper.Run(context.Background(), s, Config{Dt: 0.01, Duration: 0.5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.StepsTaken != 50 {
		t.Errorf("StepsTaken = %d, want 50", result.StepsTaken)
	}
	if len(result.Frames) != 51 {
		t.Errorf("frames = %d, want 51", len(result.Frames))
	}
	if result.Frames[0].Time != 0 {
		t.Errorf("first frame at t=%v, want 0", result.Frames[0].Time)
	}

	// Free fall: y(0.5) = 1 - g/2 * 0.25.
	_, y, err := matter.Position(s, 0)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	want := 1 - 9.81/2*0.25
	if math.Abs(y-want) > 1e-6 {
		t.Errorf("y(0.5) = %v, want %v", y, want)
	}
}

func TestRunDetectsCrossing(t *testing.T) {
	sys, _, _, _ := fallingRig(t)
	s, _ := sys.CreateState()

	stepper := New(sys, integrators.NewRK4())
	result, err := stepper.Run(context.Background(), s, Config{Dt: 0.01, Duration: 0.5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("events = %d, want 1 (%+v)", len(result.Events), result.Events)
	}
	ev := result.Events[0]
	if ev.Stage != state.StagePosition {
		t.Errorf("event stage = %s, want Position", ev.Stage)
	}
	if ev.Before <= 0 || ev.After >= 0 {
		t.Errorf("event signs = %v -> %v, want + -> -", ev.Before, ev.After)
	}
	// The plane is reached at sqrt(2*0.5/9.81) ~ 0.319.
	if math.Abs(ev.Time-0.319) > 0.02 {
		t.Errorf("event time = %v, want ~0.319", ev.Time)
	}
}

func TestCrossingDetectedOnExactZero(t *testing.T) {
	sys, _, _, _ := fallingRig(t)
	s, _ := sys.CreateState()
	if err := sys.Realize(s, state.StageReport); err != nil {
		t.Fatalf("Realize: %v", err)
	}
	stepper := New(sys, integrators.NewEuler())

	// A witness landing exactly on its threshold is a crossing.
	result := &Result{}
	stepper.watchTriggers(s, 3, []float64{0.5}, []float64{0}, result)
	if len(result.Events) != 1 {
		t.Fatalf("events = %d, want 1 for exact zero landing", len(result.Events))
	}
	if result.Events[0].After != 0 {
		t.Errorf("event After = %v, want 0", result.Events[0].After)
	}

	// Leaving zero afterwards is not a second crossing.
	stepper.watchTriggers(s, 4, []float64{0}, []float64{-0.5}, result)
	if len(result.Events) != 1 {
		t.Errorf("events = %d after leaving zero, want still 1", len(result.Events))
	}
}

type gravityTuner struct {
	forces *multibody.ForceField
}

func (g *gravityTuner) OnStep(s *state.State, step int) error {
	return g.forces.SetGravity(s, 0, -1)
}

func TestObserverDamageIsRepaired(t *testing.T) {
	sys, _, forces, _ := fallingRig(t)
	s, _ := sys.CreateState()

	stepper := New(sys, integrators.NewEuler())
	stepper.AddObserver(&gravityTuner{forces: forces})
	result, err := stepper.Run(context.Background(), s, Config{Dt: 0.01, Duration: 0.1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Every step's gravity write invalidates Dynamics; the stepper must
	// notice through the stage versions and re-realize each time.
	if result.ObserverRepairs != result.StepsTaken {
		t.Errorf("repairs = %d, want %d", result.ObserverRepairs, result.StepsTaken)
	}
	if s.SystemStage() != state.StageReport {
		t.Errorf("final stage = %s, want Report", s.SystemStage())
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	sys, _, _, _ := fallingRig(t)
	s, _ := sys.CreateState()
	stepper := New(sys, integrators.NewEuler())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1}},
		{"negative duration", Config{Dt: 0.01, Duration: -1}},
		{"negative capture", Config{Dt: 0.01, Duration: 1, CaptureEvery: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := stepper.Run(context.Background(), s, tt.cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

func TestRunHonorsContext(t *testing.T) {
	sys, _, _, _ := fallingRig(t)
	s, _ := sys.CreateState()
	stepper := New(sys, integrators.NewEuler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := stepper.Run(ctx, s, Config{Dt: 0.01, Duration: 1})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("StepsTaken = %d after immediate cancel", result.StepsTaken)
	}
}

func TestEnsembleRuns(t *testing.T) {
	sys, matter, _, _ := fallingRig(t)
	base, _ := sys.CreateState()

	ens := NewEnsemble(sys, func() integrators.Integrator { return integrators.NewRK4() }, 3)
	results, err := ens.Run(context.Background(), base, Config{Dt: 0.01, Duration: 0.2},
		func(run int, s *state.State) error {
			q, err := s.UpdSubsystemQ(matter.SubsystemIndex())
			if err != nil {
				return err
			}
			q[1] = 1 + 0.1*float64(run)
			return nil
		})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// Different initial heights end at different heights, in order.
	heights := make([]float64, 3)
	for i, r := range results {
		last := r.Frames[len(r.Frames)-1]
		heights[i] = last.Y[1]
	}
	if !(heights[0] < heights[1] && heights[1] < heights[2]) {
		t.Errorf("final heights not ordered: %v", heights)
	}
}

func TestEnsembleRunsShareSubsystemsSafely(t *testing.T) {
	// Unperturbed runs are identical; with the witness's trigger slot
	// captured before the fan-out, every concurrent run must detect the
	// same single crossing. Meant to run under the race detector.
	sys, _, _, _ := fallingRig(t)
	base, _ := sys.CreateState()

	ens := NewEnsemble(sys, func() integrators.Integrator { return integrators.NewRK4() }, 8)
	results, err := ens.Run(context.Background(), base, Config{Dt: 0.01, Duration: 0.5}, nil)
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	for i, r := range results {
		if len(r.Events) != 1 {
			t.Errorf("run %d recorded %d events, want 1", i, len(r.Events))
		}
	}
}
