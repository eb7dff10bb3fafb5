// Package sim runs a realized system through time: integrator steps,
// auto-update swaps between steps, event-trigger watching and
// trajectory capture.
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/simstate/internal/integrators"
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

type Config struct {
	Dt       float64
	Duration float64

	// CaptureEvery keeps one frame per n steps; 0 keeps every frame.
	CaptureEvery int
}

func (cfg Config) validate() error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.CaptureEvery < 0 {
		return fmt.Errorf("capture interval must be >= 0, got %d", cfg.CaptureEvery)
	}
	return nil
}

// Frame is one captured trajectory sample.
type Frame struct {
	Time float64
	Y    []float64
}

// Event records a crossing of one event trigger between consecutive
// steps: a sign change, or an exact landing on zero.
type Event struct {
	Step    int
	Time    float64
	Trigger int
	Stage   state.Stage
	Before  float64
	After   float64
}

// Observer runs after every step on the fully realized state. It may
// write state variables; any resulting stage damage is detected through
// the stage versions and repaired before stepping continues.
type Observer interface {
	OnStep(s *state.State, step int) error
}

type Result struct {
	Frames     []Frame
	Events     []Event
	StepsTaken int

	// ObserverRepairs counts steps on which an observer invalidated the
	// state and a re-realization was needed.
	ObserverRepairs int
}

type Stepper struct {
	sys       *system.System
	ig        integrators.Integrator
	observers []Observer
}

func New(sys *system.System, ig integrators.Integrator) *Stepper {
	return &Stepper{sys: sys, ig: ig}
}

func (st *Stepper) AddObserver(o Observer) { st.observers = append(st.observers, o) }

func (st *Stepper) Run(ctx context.Context, s *state.State, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := st.sys.Realize(s, state.StageReport); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{Frames: make([]Frame, 0, steps+1)}
	st.capture(result, s)

	triggers, err := s.EventTriggers()
	if err != nil {
		return nil, err
	}
	prev := append([]float64(nil), triggers...)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Pending auto-update values computed during the previous
		// realization become current before the step reads the state.
		s.AutoUpdateDiscreteVariables()

		if err := st.ig.Step(st.sys, s, cfg.Dt); err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}
		if err := st.sys.Realize(s, state.StageReport); err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}
		result.StepsTaken++

		if err := st.runObservers(s, i, result); err != nil {
			return result, err
		}

		cur, err := s.EventTriggers()
		if err != nil {
			return result, err
		}
		st.watchTriggers(s, i, prev, cur, result)
		prev = append(prev[:0], cur...)

		if cfg.CaptureEvery <= 1 || (i+1)%cfg.CaptureEvery == 0 {
			st.capture(result, s)
		}
	}
	return result, nil
}

func (st *Stepper) runObservers(s *state.State, step int, result *Result) error {
	if len(st.observers) == 0 {
		return nil
	}
	snap := s.SystemStageVersions()
	for _, obs := range st.observers {
		if err := obs.OnStep(s, step); err != nil {
			return fmt.Errorf("observer at step %d: %w", step, err)
		}
	}
	if s.LowestSystemStageDifference(snap) != state.StageInfinity {
		result.ObserverRepairs++
		return st.sys.Realize(s, state.StageReport)
	}
	return nil
}

func (st *Stepper) watchTriggers(s *state.State, step int, prev, cur []float64, result *Result) {
	t, err := s.Time()
	if err != nil {
		return
	}
	for j := range cur {
		// A sign change is a crossing; so is landing exactly on zero,
		// reported once (a zero prev means the landing was already seen).
		if prev[j]*cur[j] < 0 || (cur[j] == 0 && prev[j] != 0) {
			g, _, err := s.MapEventTriggerToStage(j)
			if err != nil {
				continue
			}
			result.Events = append(result.Events, Event{
				Step:    step,
				Time:    t,
				Trigger: j,
				Stage:   g,
				Before:  prev[j],
				After:   cur[j],
			})
		}
	}
}

func (st *Stepper) capture(result *Result, s *state.State) {
	t, err := s.Time()
	if err != nil {
		return
	}
	y, err := s.Y()
	if err != nil {
		return
	}
	result.Frames = append(result.Frames, Frame{
		Time: t,
		Y:    append([]float64(nil), y...),
	})
}
