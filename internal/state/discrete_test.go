package state

import (
	"errors"
	"testing"
)

func TestDiscreteVariableWriteInvalidates(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	dx, err := s.AllocateDiscreteVariable(a, StageVelocity, NewValue(1.0))
	if err != nil {
		t.Fatalf("AllocateDiscreteVariable: %v", err)
	}
	realizeTo(t, s, StageAcceleration)

	// Reading has no side effects.
	if _, err := s.DiscreteVariable(a, dx); err != nil {
		t.Fatalf("DiscreteVariable: %v", err)
	}
	if s.SystemStage() != StageAcceleration {
		t.Errorf("read moved stage to %s", s.SystemStage())
	}

	// Writing backs the subsystem and system to Velocity-1 = Position.
	v, err := s.UpdDiscreteVariable(a, dx)
	if err != nil {
		t.Fatalf("UpdDiscreteVariable: %v", err)
	}
	if err := SetValueAs(v, 2.0); err != nil {
		t.Fatalf("SetValueAs: %v", err)
	}
	st, _ := s.SubsystemStage(a)
	if st != StagePosition {
		t.Errorf("subsystem stage = %s, want Position", st)
	}
	if s.SystemStage() > StagePosition {
		t.Errorf("system stage = %s, want <= Position", s.SystemStage())
	}
	checkStageInvariant(t, s)

	got, _ := s.DiscreteVariable(a, dx)
	if f, _ := ValueAs[float64](got); f != 2.0 {
		t.Errorf("value = %v, want 2", f)
	}
}

func TestDiscreteVariableAllocationRules(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")

	// Allocation stage is remembered: Empty here.
	dx, err := s.AllocateDiscreteVariable(a, StageDynamics, NewValue(0))
	if err != nil {
		t.Fatalf("AllocateDiscreteVariable: %v", err)
	}
	g, _ := s.DiscreteVarAllocationStage(a, dx)
	if g != StageEmpty {
		t.Errorf("allocation stage = %s, want Empty", g)
	}
	inv, _ := s.DiscreteVarInvalidatesStage(a, dx)
	if inv != StageDynamics {
		t.Errorf("invalidates stage = %s, want Dynamics", inv)
	}

	realizeTo(t, s, StageModel)
	if _, err := s.AllocateDiscreteVariable(a, StageDynamics, NewValue(0)); !errors.Is(err, ErrStageViolation) {
		t.Errorf("expected ErrStageViolation allocating at Model, got %v", err)
	}

	// Backing up to the allocation stage forgets the variable.
	s.InvalidateAll(StageTopology)
	if _, err := s.DiscreteVariable(a, dx); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange after rollback, got %v", err)
	}
}

func TestDiscreteVarLastUpdateTime(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	dx, _ := s.AllocateDiscreteVariable(a, StageDynamics, NewValue(0.0))
	realizeTo(t, s, StageReport)

	if err := s.SetTime(4.0); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	realizeTo(t, s, StageReport)
	if err := s.SetDiscreteVariable(a, dx, NewValue(1.0)); err != nil {
		t.Fatalf("SetDiscreteVariable: %v", err)
	}
	lu, _ := s.DiscreteVarLastUpdateTime(a, dx)
	if lu != 4.0 {
		t.Errorf("last update time = %v, want 4", lu)
	}
}

func TestAutoUpdateRequiresStageAboveTime(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	if _, err := s.AllocateAutoUpdateDiscreteVariable(a, StageTime, NewValue(0.0), StageDynamics); !errors.Is(err, ErrStageViolation) {
		t.Errorf("expected ErrStageViolation for invalidates <= Time, got %v", err)
	}
}

func TestAutoUpdateAllocationFailureLeavesStateUnchanged(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")

	_, err := s.AllocateAutoUpdateDiscreteVariable(a, StageDynamics, NewValue(0.0), StageInfinity)
	if !errors.Is(err, ErrStageViolation) {
		t.Fatalf("expected ErrStageViolation for Infinity update stage, got %v", err)
	}
	// The rejected allocation must not leave a half-built variable behind.
	if _, err := s.DiscreteVariable(a, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange after failed allocation, got %v", err)
	}
}

func TestAutoUpdateAccessorsRejectPlainVariable(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	dx, _ := s.AllocateDiscreteVariable(a, StageDynamics, NewValue(0.0))
	realizeTo(t, s, StageModel)

	if _, err := s.DiscreteVarUpdateIndex(a, dx); !errors.Is(err, ErrNotAutoUpdate) {
		t.Errorf("expected ErrNotAutoUpdate, got %v", err)
	}
	if _, err := s.UpdDiscreteVarUpdateValue(a, dx); !errors.Is(err, ErrNotAutoUpdate) {
		t.Errorf("expected ErrNotAutoUpdate, got %v", err)
	}
	if err := s.MarkDiscreteVarUpdateValueRealized(a, dx); !errors.Is(err, ErrNotAutoUpdate) {
		t.Errorf("expected ErrNotAutoUpdate, got %v", err)
	}
}

func TestAutoUpdateSwap(t *testing.T) {
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	dx, err := s.AllocateAutoUpdateDiscreteVariable(a, StageDynamics, NewValue(10.0), StageVelocity)
	if err != nil {
		t.Fatalf("AllocateAutoUpdateDiscreteVariable: %v", err)
	}
	realizeTo(t, s, StageVelocity)

	// Idempotent while the update value is unrealized.
	s.AutoUpdateDiscreteVariables()
	v, _ := s.DiscreteVariable(a, dx)
	if f, _ := ValueAs[float64](v); f != 10.0 {
		t.Errorf("unrealized swap changed value to %v", f)
	}

	// Compute the pending update, mark it, swap.
	uv, err := s.UpdDiscreteVarUpdateValue(a, dx)
	if err != nil {
		t.Fatalf("UpdDiscreteVarUpdateValue: %v", err)
	}
	if err := SetValueAs(uv, 20.0); err != nil {
		t.Fatalf("SetValueAs: %v", err)
	}
	if err := s.MarkDiscreteVarUpdateValueRealized(a, dx); err != nil {
		t.Fatalf("MarkDiscreteVarUpdateValueRealized: %v", err)
	}
	peek, err := s.DiscreteVarUpdateValue(a, dx)
	if err != nil {
		t.Fatalf("DiscreteVarUpdateValue: %v", err)
	}
	if f, _ := ValueAs[float64](peek); f != 20.0 {
		t.Errorf("update value = %v, want 20", f)
	}

	before := s.SystemStage()
	s.AutoUpdateDiscreteVariables()

	// The swap installs the update value without touching any stage.
	v, _ = s.DiscreteVariable(a, dx)
	if f, _ := ValueAs[float64](v); f != 20.0 {
		t.Errorf("value after swap = %v, want 20", f)
	}
	if s.SystemStage() != before {
		t.Errorf("swap moved system stage from %s to %s", before, s.SystemStage())
	}
	if ok, _ := s.IsDiscreteVarUpdateValueRealized(a, dx); ok {
		t.Error("update value should be invalid after the swap")
	}

	// The old value is now the cache payload, ready to be overwritten;
	// a second swap without re-marking does nothing.
	s.AutoUpdateDiscreteVariables()
	v, _ = s.DiscreteVariable(a, dx)
	if f, _ := ValueAs[float64](v); f != 20.0 {
		t.Errorf("second swap changed value to %v", f)
	}
}

func TestAutoUpdateSwapIsOnePass(t *testing.T) {
	// Two auto-update variables both realized: each swaps with its own
	// pending value; neither sees the other's new value mid-pass.
	s := New()
	a, _ := s.AddSubsystem("a", "1")
	d1, _ := s.AllocateAutoUpdateDiscreteVariable(a, StageDynamics, NewValue(1.0), StagePosition)
	d2, _ := s.AllocateAutoUpdateDiscreteVariable(a, StageDynamics, NewValue(2.0), StagePosition)
	realizeTo(t, s, StagePosition)

	for _, d := range []DiscreteVarIndex{d1, d2} {
		uv, err := s.UpdDiscreteVarUpdateValue(a, d)
		if err != nil {
			t.Fatalf("UpdDiscreteVarUpdateValue: %v", err)
		}
		cur, _ := s.DiscreteVariable(a, d)
		f, _ := ValueAs[float64](cur)
		if err := SetValueAs(uv, f*10); err != nil {
			t.Fatalf("SetValueAs: %v", err)
		}
		if err := s.MarkDiscreteVarUpdateValueRealized(a, d); err != nil {
			t.Fatalf("MarkDiscreteVarUpdateValueRealized: %v", err)
		}
	}
	s.AutoUpdateDiscreteVariables()

	v1, _ := s.DiscreteVariable(a, d1)
	v2, _ := s.DiscreteVariable(a, d2)
	f1, _ := ValueAs[float64](v1)
	f2, _ := ValueAs[float64](v2)
	if f1 != 10.0 || f2 != 20.0 {
		t.Errorf("swapped values = %v, %v; want 10, 20", f1, f2)
	}
}
