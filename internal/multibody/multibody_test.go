package multibody

import (
	"math"
	"testing"

	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// buildSystem wires the standard test rig: two point masses under
// gravity with a rod between them and a witness on point 0.
func buildSystem(t *testing.T) (*system.System, *PointMatter, *ForceField, *RodConstraint, *CrossingWitness) {
	t.Helper()
	matter := NewPointMatter([]float64{1.0, 2.0})
	matter.SetInitialPosition(0, 0, 1)
	matter.SetInitialPosition(1, 0, 0)
	matter.SetInitialVelocity(0, 1, 0)

	forces := NewForceField(matter)
	rod := NewRodConstraint(matter, 0, 1, 1.0)
	witness := NewCrossingWitness(matter, 0, 0.5)

	sys := system.New()
	matter.Install(sys)
	forces.Install(sys)
	rod.Install(sys)
	witness.Install(sys)
	return sys, matter, forces, rod, witness
}

func realize(t *testing.T, sys *system.System, s *state.State, g state.Stage) {
	t.Helper()
	if err := sys.Realize(s, g); err != nil {
		t.Fatalf("realize to %s: %v", g, err)
	}
}

func TestPointMatterPartitioning(t *testing.T) {
	sys, matter, _, _, _ := buildSystem(t)
	s, err := sys.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	realize(t, sys, s, state.StageModel)

	nq, _ := s.NQ()
	nu, _ := s.NU()
	nz, _ := s.NZ()
	if nq != 4 || nu != 4 || nz != 1 {
		t.Errorf("nq/nu/nz = %d/%d/%d, want 4/4/1", nq, nu, nz)
	}

	x, y, err := matter.Position(s, 0)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if x != 0 || y != 1 {
		t.Errorf("point 0 at (%v, %v), want (0, 1)", x, y)
	}
	vx, _, err := matter.Velocity(s, 0)
	if err != nil {
		t.Fatalf("Velocity: %v", err)
	}
	if vx != 1 {
		t.Errorf("point 0 vx = %v, want 1", vx)
	}
}

func TestKinematicsCache(t *testing.T) {
	sys, matter, _, _, _ := buildSystem(t)
	s, _ := sys.CreateState()

	realize(t, sys, s, state.StageTime)
	if _, err := matter.CenterOfMass(s); err == nil {
		t.Error("center of mass must not be readable before Position")
	}

	realize(t, sys, s, state.StageVelocity)
	com, err := matter.CenterOfMass(s)
	if err != nil {
		t.Fatalf("CenterOfMass: %v", err)
	}
	// Masses 1 and 2 at y=1 and y=0: COM y = 1/3.
	if math.Abs(com[1]-1.0/3) > 1e-12 {
		t.Errorf("COM y = %v, want 1/3", com[1])
	}

	// qdot mirrors u for point coordinates.
	qdot, err := s.QDot()
	if err != nil {
		t.Fatalf("QDot: %v", err)
	}
	if qdot[0] != 1 {
		t.Errorf("qdot[0] = %v, want 1", qdot[0])
	}
}

func TestKineticEnergyLazy(t *testing.T) {
	sys, matter, _, _, _ := buildSystem(t)
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageVelocity)

	ke, err := matter.KineticEnergy(s)
	if err != nil {
		t.Fatalf("KineticEnergy: %v", err)
	}
	if ke != 0.5 {
		t.Errorf("KE = %v, want 0.5 (mass 1 at speed 1)", ke)
	}

	// A velocity write invalidates the cached value; the next call
	// recomputes it.
	u, err := s.UpdU()
	if err != nil {
		t.Fatalf("UpdU: %v", err)
	}
	u[0] = 2
	realize(t, sys, s, state.StageVelocity)
	ke, err = matter.KineticEnergy(s)
	if err != nil {
		t.Fatalf("KineticEnergy after write: %v", err)
	}
	if ke != 2.0 {
		t.Errorf("KE = %v, want 2", ke)
	}
}

func TestForceFieldAcceleration(t *testing.T) {
	sys, matter, forces, _, _ := buildSystem(t)
	forces.WindModel = func(t float64) (float64, float64) { return 0, 0 }
	forces.SetDefaultWind(0, 0)
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageAcceleration)

	f, err := forces.PointForces(s)
	if err != nil {
		t.Fatalf("PointForces: %v", err)
	}
	if f[1] != -9.81 || f[3] != 2*-9.81 {
		t.Errorf("gravity forces = %v, %v; want -9.81, -19.62", f[1], f[3])
	}

	udot, err := s.SubsystemUDot(matter.SubsystemIndex())
	if err != nil {
		t.Fatalf("SubsystemUDot: %v", err)
	}
	// Both points accelerate at g regardless of mass.
	if math.Abs(udot[1]+9.81) > 1e-12 || math.Abs(udot[3]+9.81) > 1e-12 {
		t.Errorf("udot = %v, want -9.81 on both y components", udot)
	}
}

func TestSetGravityInvalidatesDynamics(t *testing.T) {
	sys, _, forces, _, _ := buildSystem(t)
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageAcceleration)

	if err := forces.SetGravity(s, 0, -1); err != nil {
		t.Fatalf("SetGravity: %v", err)
	}
	if s.SystemStage() != state.StageVelocity {
		t.Errorf("system stage = %s after gravity write, want Velocity", s.SystemStage())
	}

	realize(t, sys, s, state.StageAcceleration)
	f, err := forces.PointForces(s)
	if err != nil {
		t.Fatalf("PointForces: %v", err)
	}
	if f[1] != -1 {
		t.Errorf("force y = %v after gravity change, want -1", f[1])
	}
}

func TestWindAutoUpdateSwap(t *testing.T) {
	sys, _, forces, _, _ := buildSystem(t)
	forces.WindModel = func(t float64) (float64, float64) { return 3, 0 }
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageAcceleration)

	// The pending value was proposed during Velocity realization but is
	// not current yet.
	wind, err := forces.Wind(s)
	if err != nil {
		t.Fatalf("Wind: %v", err)
	}
	if wind[0] != 0 {
		t.Errorf("wind before swap = %v, want 0", wind[0])
	}

	before := s.SystemStage()
	s.AutoUpdateDiscreteVariables()
	wind, _ = forces.Wind(s)
	if wind[0] != 3 {
		t.Errorf("wind after swap = %v, want 3", wind[0])
	}
	if s.SystemStage() != before {
		t.Errorf("swap moved system stage from %s to %s", before, s.SystemStage())
	}
}

func TestDynamicsComputesFromPendingWind(t *testing.T) {
	sys, _, forces, _, _ := buildSystem(t)
	forces.WindModel = func(t float64) (float64, float64) { return 3, 0 }
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageAcceleration)

	// The force computation sees the realized pending value, so the swap
	// at the next step boundary cannot change the answer.
	f, err := forces.PointForces(s)
	if err != nil {
		t.Fatalf("PointForces: %v", err)
	}
	if f[0] != 3 || f[2] != 3 {
		t.Errorf("wind forces = %v, %v; want 3, 3", f[0], f[2])
	}

	// The current variable itself stays untouched until the swap.
	wind, err := forces.Wind(s)
	if err != nil {
		t.Fatalf("Wind: %v", err)
	}
	if wind[0] != 0 {
		t.Errorf("current wind = %v before swap, want 0", wind[0])
	}
}

func TestRodConstraintErrors(t *testing.T) {
	sys, _, _, rod, _ := buildSystem(t)
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StageInstance)

	nqerr, _ := s.NQErr()
	nmult, _ := s.NMultipliers()
	if nqerr != 1 || nmult != 1 {
		t.Errorf("nqerr/nmult = %d/%d, want 1/1", nqerr, nmult)
	}

	realize(t, sys, s, state.StageVelocity)
	perr, err := rod.PositionError(s)
	if err != nil {
		t.Fatalf("PositionError: %v", err)
	}
	// Points start exactly one rod length apart.
	if math.Abs(perr) > 1e-12 {
		t.Errorf("position error = %v, want 0", perr)
	}
	verr, err := rod.VelocityError(s)
	if err != nil {
		t.Fatalf("VelocityError: %v", err)
	}
	// Point 0 moves horizontally, perpendicular to the vertical rod.
	if math.Abs(verr) > 1e-12 {
		t.Errorf("velocity error = %v, want 0", verr)
	}

	// Stretch the rod and re-realize.
	q, _ := s.UpdQ()
	q[1] = 2 // point 0 now two lengths away
	realize(t, sys, s, state.StagePosition)
	perr, _ = rod.PositionError(s)
	if math.Abs(perr-1) > 1e-12 {
		t.Errorf("position error = %v after stretch, want 1", perr)
	}
}

func TestCrossingWitness(t *testing.T) {
	sys, _, _, _, witness := buildSystem(t)
	s, _ := sys.CreateState()
	realize(t, sys, s, state.StagePosition)

	v, err := witness.Value(s)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	// Point 0 at y=1, threshold 0.5.
	if math.Abs(v-0.5) > 1e-12 {
		t.Errorf("witness = %v, want 0.5", v)
	}

	q, _ := s.UpdQ()
	q[1] = 0 // drop point 0 below the plane
	realize(t, sys, s, state.StagePosition)
	v, _ = witness.Value(s)
	if math.Abs(v+0.5) > 1e-12 {
		t.Errorf("witness = %v after drop, want -0.5", v)
	}
}
