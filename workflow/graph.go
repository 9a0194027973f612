// Package workflow implements the turn-processing graph: a directed set of
// named steps executed strictly in order against one shared per-turn State.
// Step failures are soft by default; a critical failure routes the run to
// the error terminal instead of unwinding the turn.
package workflow

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEntryPointNotSet is returned when the graph has no entry step.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrStepNotFound is returned when a referenced step does not exist.
	ErrStepNotFound = errors.New("step not found")

	// ErrNoOutgoingEdge is returned when a non-terminal step has no
	// successor and no branch selector.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for step")

	// ErrStepRevisited is returned when branch selection routes execution
	// back to a step that already ran in this turn.
	ErrStepRevisited = errors.New("step already executed in this turn")
)

// StepFunc executes one step against the accumulated turn state and returns
// the fields it produced. Returned fields are merged into the state under
// the step's ownership.
type StepFunc func(ctx context.Context, state *State) (map[string]any, error)

// BranchFunc selects the next step from the state produced so far. It must
// be a pure function so branch decisions are testable in isolation.
type BranchFunc func(state *State) string

// Step is one named node of the workflow graph.
type Step struct {
	Name string

	// Fn is the step body. Terminal steps may have none.
	Fn StepFunc

	// Predecessors are step names that must have completed before this
	// step runs. Violations indicate a mis-wired graph.
	Predecessors []string

	// Branch, when set, selects the successor instead of the static edge.
	Branch BranchFunc

	// Critical marks a step whose failure aborts the run and routes to
	// the error terminal. Non-critical failures degrade to empty output.
	Critical bool

	// Terminal marks a step that ends the run.
	Terminal bool
}

// StepOption configures a step at registration time.
type StepOption func(*Step)

// WithPredecessors declares the steps that must complete first.
func WithPredecessors(names ...string) StepOption {
	return func(s *Step) { s.Predecessors = names }
}

// WithBranch sets the successor selector for conditional edges.
func WithBranch(branch BranchFunc) StepOption {
	return func(s *Step) { s.Branch = branch }
}

// WithCritical marks the step's failure as fatal for the turn.
func WithCritical() StepOption {
	return func(s *Step) { s.Critical = true }
}

// WithTerminal marks the step as a run terminal.
func WithTerminal() StepOption {
	return func(s *Step) { s.Terminal = true }
}

// Graph is a builder for the workflow DAG.
type Graph struct {
	steps         map[string]*Step
	edges         map[string]string
	entryPoint    string
	errorTerminal string
}

// NewGraph creates an empty workflow graph.
func NewGraph() *Graph {
	return &Graph{
		steps: make(map[string]*Step),
		edges: make(map[string]string),
	}
}

// AddStep registers a step. Registering the same name twice replaces the
// earlier definition.
func (g *Graph) AddStep(name string, fn StepFunc, opts ...StepOption) {
	step := &Step{Name: name, Fn: fn}
	for _, opt := range opts {
		opt(step)
	}
	g.steps[name] = step
}

// AddEdge declares the static successor of a step. A step has at most one
// static successor; steps that need conditional routing use WithBranch.
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = to
}

// SetEntryPoint sets the entry step name.
func (g *Graph) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetErrorTerminal sets the terminal a critical failure routes to.
func (g *Graph) SetErrorTerminal(name string) {
	g.errorTerminal = name
}

// Compile validates the graph shape and returns a Runner.
func (g *Graph) Compile() (*Runner, error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.steps[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrStepNotFound, g.entryPoint)
	}
	if g.errorTerminal != "" {
		term, ok := g.steps[g.errorTerminal]
		if !ok {
			return nil, fmt.Errorf("%w: error terminal %s", ErrStepNotFound, g.errorTerminal)
		}
		if !term.Terminal {
			return nil, fmt.Errorf("error terminal %s is not marked terminal", g.errorTerminal)
		}
	}

	hasTerminal := false
	for name, step := range g.steps {
		if step.Terminal {
			hasTerminal = true
			continue
		}
		if _, ok := g.edges[name]; !ok && step.Branch == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}
	if !hasTerminal {
		return nil, errors.New("graph has no terminal step")
	}

	for from, to := range g.edges {
		if _, ok := g.steps[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrStepNotFound, from)
		}
		if _, ok := g.steps[to]; !ok {
			return nil, fmt.Errorf("%w: edge target %s", ErrStepNotFound, to)
		}
	}
	for _, step := range g.steps {
		for _, pred := range step.Predecessors {
			if _, ok := g.steps[pred]; !ok {
				return nil, fmt.Errorf("%w: predecessor %s of %s", ErrStepNotFound, pred, step.Name)
			}
		}
	}

	return &Runner{graph: g}, nil
}
