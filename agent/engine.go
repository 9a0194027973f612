package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/navigator-ai/careerflow/config"
	"github.com/navigator-ai/careerflow/log"
	"github.com/navigator-ai/careerflow/metrics"
	"github.com/navigator-ai/careerflow/session"
	"github.com/navigator-ai/careerflow/workflow"
)

// ErrEmptySessionID is returned for a turn without a session id.
var ErrEmptySessionID = errors.New("session id must not be empty")

// Engine processes conversation turns. It is safe for concurrent use:
// turns for distinct sessions run in parallel, turns for the same session
// queue behind each other.
type Engine struct {
	store   session.Store
	locks   *session.Locks
	runner  *workflow.Runner
	steps   *steps
	cfg     config.Config
	logger  log.Logger
	metrics *metrics.Metrics
}

// NewEngine assembles the engine. The completer may be nil; synthesis
// steps then degrade to retrieval-grounded fallbacks.
func NewEngine(cfg config.Config, store session.Store, retriever Retriever, completer Completer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validator, err := NewValidator(cfg.Validation)
	if err != nil {
		return nil, err
	}

	s := &steps{
		validator: validator,
		retriever: retriever,
		completer: completer,
		cfg:       cfg,
		logger:    log.Default(),
	}

	runner, err := buildGraph(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow graph: %w", err)
	}

	return &Engine{
		store:  store,
		locks:  session.NewLocks(),
		runner: runner,
		steps:  s,
		cfg:    cfg,
		logger: log.Default(),
	}, nil
}

// SetLogger overrides the engine's logger.
func (e *Engine) SetLogger(logger log.Logger) {
	e.logger = logger
	e.steps.logger = logger
	e.runner.SetLogger(logger)
}

// SetMetrics installs the Prometheus collectors.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
	e.runner.SetObserver(m.ObserveStep)
}

// ProcessTurn runs one conversation turn end to end: restore the session,
// run the workflow graph, persist the outcome, return the envelope. Turns
// for the same session id are strictly serialized; a second turn arriving
// while the first is in flight queues behind it. An error return means the
// graph itself misbehaved; step-level failures surface in the envelope.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, text string, profile Profile) (*Envelope, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	release := e.locks.Acquire(sessionID)
	defer release()

	state := workflow.NewState()
	if err := e.seedState(ctx, state, sessionID, text, profile); err != nil {
		return nil, err
	}

	if err := e.runner.Run(ctx, state); err != nil {
		return nil, fmt.Errorf("turn aborted by workflow defect: %w", err)
	}

	env := envelopeFrom(state)

	// A rejected turn is never persisted: the history holds accepted
	// turns only.
	if env.WorkflowStatus != workflow.StatusValidationFailed {
		if err := e.persist(ctx, sessionID, text, env.AnswerText, state); err != nil {
			e.logger.Errorf("session %s: append failed after retries: %v", sessionID, err)
			env.PersistenceDegraded = true
			env.ErrorMessages = append(env.ErrorMessages, fmt.Sprintf("persistence degraded: %v", err))
			if e.metrics != nil {
				e.metrics.PersistDegrad.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveTurn(string(env.WorkflowStatus))
	}
	return env, nil
}

// seedState loads the session and plants the engine-owned input fields.
// A store failure on load degrades to an empty session rather than
// rejecting the turn.
func (e *Engine) seedState(ctx context.Context, state *workflow.State, sessionID, text string, profile Profile) error {
	const owner = "engine"

	sess, err := e.store.Load(ctx, sessionID)
	if err != nil {
		e.logger.Warnf("session %s: load failed, starting empty: %v", sessionID, err)
		state.AddError(fmt.Sprintf("session restore degraded: %v", err))
		sess = &session.Session{ID: sessionID}
	}

	if err := state.Set(owner, FieldUserMessage, text); err != nil {
		return err
	}
	if err := state.Set(owner, FieldProfile, profile); err != nil {
		return err
	}
	return state.Set(owner, FieldSessionTurns, sess.Turns)
}

// persist appends the turn with bounded retries and fixed backoff.
func (e *Engine) persist(ctx context.Context, sessionID, userText, answerText string, state *workflow.State) error {
	now := time.Now()
	turns := []session.Turn{
		{Role: session.RoleUser, Text: userText, Timestamp: now},
		{Role: session.RoleAssistant, Text: answerText, Timestamp: now},
	}
	snapshot := state.Fields()

	attempts := 1 + e.cfg.Session.AppendRetries
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if e.metrics != nil {
				e.metrics.PersistRetry.Inc()
			}
			select {
			case <-time.After(e.cfg.Session.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = e.store.Append(ctx, sessionID, turns, snapshot); err == nil {
			return nil
		}
		e.logger.Warnf("session %s: append attempt %d/%d failed: %v", sessionID, attempt+1, attempts, err)
	}
	return err
}
