package sim

import (
	"context"
	"sync"

	"github.com/san-kum/simstate/internal/integrators"
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

// Perturb adjusts one run's cloned state before it is stepped, e.g. by
// nudging initial coordinates.
type Perturb func(run int, s *state.State) error

// Ensemble fans a base state out to parallel runs. States are cloned
// (variables only, so each clone re-realizes its own cache) and every
// run gets a fresh integrator since integrators carry scratch buffers.
type Ensemble struct {
	sys           *system.System
	newIntegrator func() integrators.Integrator
	numRuns       int
}

func NewEnsemble(sys *system.System, newIntegrator func() integrators.Integrator, numRuns int) *Ensemble {
	return &Ensemble{sys: sys, newIntegrator: newIntegrator, numRuns: numRuns}
}

func (e *Ensemble) Run(ctx context.Context, base *state.State, cfg Config, perturb Perturb) ([]*Result, error) {
	// Clone, perturb and realize through Instance serially. Realization up
	// to Instance captures resource indices on the shared subsystem
	// structs, so it must finish before the runs overlap; from Time up the
	// callbacks only touch the per-run state.
	if err := e.sys.Realize(base, state.StageModel); err != nil {
		return nil, err
	}
	states := make([]*state.State, e.numRuns)
	for i := range states {
		s := base.Clone()
		if perturb != nil {
			if err := perturb(i, s); err != nil {
				return nil, err
			}
		}
		if err := e.sys.Realize(s, state.StageInstance); err != nil {
			return nil, err
		}
		states[i] = s
	}

	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			stepper := New(e.sys, e.newIntegrator())
			results[idx], errs[idx] = stepper.Run(ctx, states[idx], cfg)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
