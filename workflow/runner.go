package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/navigator-ai/careerflow/log"
)

// StepObserver is notified after each step execution. Used for metrics.
type StepObserver func(step string, duration time.Duration, err error)

// Runner executes a compiled workflow graph. Steps run strictly
// sequentially in DAG order: later steps consume fields set by earlier
// ones, so steps within one turn are never reordered or parallelized.
type Runner struct {
	graph    *Graph
	logger   log.Logger
	observer StepObserver
}

// SetLogger overrides the package-level logger for this runner.
func (r *Runner) SetLogger(logger log.Logger) {
	r.logger = logger
}

// SetObserver installs a per-step observer.
func (r *Runner) SetObserver(observer StepObserver) {
	r.observer = observer
}

func (r *Runner) log() log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return log.Default()
}

// Run executes the graph against the given state, starting at the entry
// step and stopping at the first terminal step reached. A non-critical step
// failure is recorded in the state's error list and treated as empty
// output; a critical failure routes directly to the error terminal. Run
// returns an error only for graph-wiring defects (unknown step, revisited
// step, cross-step field interference), never for step-level failures.
func (r *Runner) Run(ctx context.Context, state *State) error {
	executed := make(map[string]bool, len(r.graph.steps))
	current := r.graph.entryPoint

	for {
		step, ok := r.graph.steps[current]
		if !ok {
			return fmt.Errorf("%w: %s", ErrStepNotFound, current)
		}
		if executed[current] {
			return fmt.Errorf("%w: %s", ErrStepRevisited, current)
		}
		for _, pred := range step.Predecessors {
			if !executed[pred] {
				return fmt.Errorf("step %s ran before its predecessor %s", current, pred)
			}
		}

		updates, duration, err := r.executeStep(ctx, step, state)
		state.appendLog(StepLog{Step: current, Duration: duration, Err: errString(err)})
		if r.observer != nil {
			r.observer(current, duration, err)
		}
		executed[current] = true

		if err != nil {
			state.AddError(fmt.Sprintf("%s: %v", current, err))
			if step.Critical {
				r.log().Errorf("critical step %s failed: %v", current, err)
				if ferr := state.Fail(StatusFailed); ferr != nil {
					r.log().Warnf("status transition rejected: %v", ferr)
				}
				return r.runErrorTerminal(ctx, state, executed)
			}
			// Soft failure: the step contributes nothing and the
			// turn continues.
			r.log().Warnf("step %s soft-failed: %v", current, err)
			updates = nil
		}

		for key, value := range updates {
			if serr := state.Set(current, key, value); serr != nil {
				return serr
			}
		}

		if step.Terminal {
			return nil
		}

		next, err := r.nextStep(step, state)
		if err != nil {
			return err
		}
		current = next
	}
}

func (r *Runner) nextStep(step *Step, state *State) (string, error) {
	if step.Branch != nil {
		next := step.Branch(state)
		if next == "" {
			return "", fmt.Errorf("branch selector of %s returned empty step name", step.Name)
		}
		return next, nil
	}
	next, ok := r.graph.edges[step.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, step.Name)
	}
	return next, nil
}

// runErrorTerminal finishes the run at the configured error terminal after
// a critical failure.
func (r *Runner) runErrorTerminal(ctx context.Context, state *State, executed map[string]bool) error {
	if r.graph.errorTerminal == "" {
		return nil
	}
	term := r.graph.steps[r.graph.errorTerminal]
	if executed[term.Name] {
		return nil
	}
	updates, duration, err := r.executeStep(ctx, term, state)
	state.appendLog(StepLog{Step: term.Name, Duration: duration, Err: errString(err)})
	if err != nil {
		state.AddError(fmt.Sprintf("%s: %v", term.Name, err))
		return nil
	}
	for key, value := range updates {
		if serr := state.Set(term.Name, key, value); serr != nil {
			return serr
		}
	}
	return nil
}

// executeStep runs a step body with panic recovery, so a panicking step
// degrades like any other failing step instead of tearing down the turn.
func (r *Runner) executeStep(ctx context.Context, step *Step, state *State) (updates map[string]any, duration time.Duration, err error) {
	if step.Fn == nil {
		return nil, 0, nil
	}
	start := time.Now()
	defer func() {
		duration = time.Since(start)
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in step %s: %v", step.Name, p)
		}
	}()
	updates, err = step.Fn(ctx, state)
	return updates, time.Since(start), err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
