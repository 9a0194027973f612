package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigator-ai/careerflow/config"
	"github.com/navigator-ai/careerflow/retrieval"
	"github.com/navigator-ai/careerflow/session"
	"github.com/navigator-ai/careerflow/workflow"
)

type stubRetriever struct {
	calls      atomic.Int32
	candidates []retrieval.Candidate
	soft       []retrieval.SoftError
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, _ []string, _ int) ([]retrieval.Candidate, []retrieval.SoftError) {
	r.calls.Add(1)
	return r.candidates, r.soft
}

// stubCompleter routes by the system prompt: classification prompts get
// the scripted intent JSON, everything else gets the scripted answer.
type stubCompleter struct {
	calls      atomic.Int32
	intentJSON string
	answer     string
	err        error
}

func (c *stubCompleter) Complete(_ context.Context, prompt Prompt) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	if strings.Contains(prompt.System, "classify") {
		return c.intentJSON, nil
	}
	return c.answer, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Session.RetryBackoff = time.Millisecond
	return cfg
}

func testCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		{ID: "case-1", Collection: "career_cases", CombinedScore: 0.9, Payload: "Backend to platform engineer in two years."},
		{ID: "course-1", Collection: "education_courses", CombinedScore: 0.4, Payload: "Distributed systems fundamentals."},
	}
}

func stepNames(logs []workflow.StepLog) []string {
	names := make([]string, len(logs))
	for i, l := range logs {
		names[i] = l.Step
	}
	return names
}

func TestProcessTurnHappyPath(t *testing.T) {
	store := session.NewMemoryStore(0)
	ret := &stubRetriever{candidates: testCandidates()}
	comp := &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "Start with distributed systems fundamentals.",
	}

	engine, err := NewEngine(testConfig(), store, ret, comp)
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "what should I learn next?", Profile{Name: "Dana", Role: "backend engineer"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
	assert.Equal(t, "Start with distributed systems fundamentals.", env.AnswerText)
	assert.Empty(t, env.ErrorMessages)
	assert.False(t, env.PersistenceDegraded)
	assert.Equal(t, []string{
		StepValidate, StepChatHistory, StepIntentAnalysis,
		StepRetrieveData, StepFormatResponse, StepCompleted,
	}, stepNames(env.ProcessingLog))

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, session.RoleUser, sess.Turns[0].Role)
	assert.Equal(t, "what should I learn next?", sess.Turns[0].Text)
	assert.Equal(t, session.RoleAssistant, sess.Turns[1].Role)
}

func TestProcessTurnValidationFailedInvokesNothing(t *testing.T) {
	store := session.NewMemoryStore(0)
	ret := &stubRetriever{}
	comp := &stubCompleter{answer: "unused"}

	engine, err := NewEngine(testConfig(), store, ret, comp)
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "   ", Profile{})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusValidationFailed, env.WorkflowStatus)
	assert.Contains(t, env.AnswerText, "empty")
	assert.Equal(t, []string{StepValidate, StepValidationFailed}, stepNames(env.ProcessingLog))
	assert.Zero(t, ret.calls.Load(), "retrieval must not run for a rejected turn")
	assert.Zero(t, comp.calls.Load(), "synthesis must not run for a rejected turn")

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Turns, "rejected turns are not persisted")
}

func TestProcessTurnLengthBoundary(t *testing.T) {
	store := session.NewMemoryStore(0)
	engine, err := NewEngine(testConfig(), store, &stubRetriever{}, &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "ok",
	})
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", strings.Repeat("a", 1001), Profile{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusValidationFailed, env.WorkflowStatus)
	require.NotEmpty(t, env.ErrorMessages)
	assert.Contains(t, env.ErrorMessages[0], "too_long")

	env, err = engine.ProcessTurn(context.Background(), "s1", strings.Repeat("a", 999), Profile{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
}

func TestProcessTurnCriticalSynthesisFailure(t *testing.T) {
	store := session.NewMemoryStore(0)
	comp := &stubCompleter{err: errors.New("model unavailable")}

	engine, err := NewEngine(testConfig(), store, &stubRetriever{candidates: testCandidates()}, comp)
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "what should I learn?", Profile{})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusFailed, env.WorkflowStatus)
	assert.NotEmpty(t, env.AnswerText, "failure terminal supplies user-facing text")
	found := false
	for _, msg := range env.ErrorMessages {
		if strings.Contains(msg, "answer synthesis failed") {
			found = true
		}
	}
	assert.True(t, found, "critical failure must be surfaced: %v", env.ErrorMessages)
	assert.Equal(t, StepFailed, env.ProcessingLog[len(env.ProcessingLog)-1].Step)
}

func TestProcessTurnRetrievalDegradation(t *testing.T) {
	store := session.NewMemoryStore(0)
	ret := &stubRetriever{
		soft: []retrieval.SoftError{{
			Collection: "career_cases",
			Strategy:   retrieval.StrategySemantic,
			Err:        context.DeadlineExceeded,
		}},
	}

	engine, err := NewEngine(testConfig(), store, ret, &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "here is what I can say without references",
	})
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "any advice?", Profile{})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus, "a degraded strategy never fails the turn")
	assert.NotEmpty(t, env.AnswerText)
	require.NotEmpty(t, env.ErrorMessages)
	assert.Contains(t, env.ErrorMessages[0], "semantic search on career_cases failed")
}

func TestProcessTurnDiagramAndReportBranches(t *testing.T) {
	store := session.NewMemoryStore(0)
	comp := &stubCompleter{
		intentJSON: `{"category":"career_growth","wants_diagram":true,"wants_report":true}`,
		answer:     "```mermaid\nflowchart TD\n    A[Engineer] --> B[Staff]\n```",
	}

	engine, err := NewEngine(testConfig(), store, &stubRetriever{candidates: testCandidates()}, comp)
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "map out my growth path", Profile{Role: "engineer"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
	assert.True(t, strings.HasPrefix(env.DiagramSource, "flowchart TD"), "got %q", env.DiagramSource)
	assert.True(t, strings.HasPrefix(env.ReportRef, "report-"))
	assert.Equal(t, []string{
		StepValidate, StepChatHistory, StepIntentAnalysis, StepRetrieveData,
		StepFormatResponse, StepGenerateDiagram, StepGenerateReport, StepCompleted,
	}, stepNames(env.ProcessingLog))
}

func TestProcessTurnNoCompleterFallbacks(t *testing.T) {
	store := session.NewMemoryStore(0)

	engine, err := NewEngine(testConfig(), store, &stubRetriever{candidates: testCandidates()}, nil)
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "show me a roadmap for my career", Profile{Role: "engineer"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
	assert.Contains(t, env.AnswerText, "Backend to platform engineer")
	assert.True(t, strings.HasPrefix(env.DiagramSource, "flowchart TD"))
}

func TestProcessTurnHistorySeedsNextTurn(t *testing.T) {
	store := session.NewMemoryStore(0)

	var sawHistory atomic.Bool
	comp := &completerFunc{fn: func(prompt Prompt) (string, error) {
		if strings.Contains(prompt.System, "classify") {
			return `{"category":"general"}`, nil
		}
		if strings.Contains(prompt.User, "Conversation so far:") &&
			strings.Contains(prompt.User, "first question") {
			sawHistory.Store(true)
		}
		return "answer", nil
	}}

	engine, err := NewEngine(testConfig(), store, &stubRetriever{}, comp)
	require.NoError(t, err)

	_, err = engine.ProcessTurn(context.Background(), "s1", "first question", Profile{})
	require.NoError(t, err)
	_, err = engine.ProcessTurn(context.Background(), "s1", "follow-up question", Profile{})
	require.NoError(t, err)

	assert.True(t, sawHistory.Load(), "second turn's prompt must carry the first turn")
}

type completerFunc struct {
	fn func(Prompt) (string, error)
}

func (c *completerFunc) Complete(_ context.Context, prompt Prompt) (string, error) {
	return c.fn(prompt)
}

func TestProcessTurnConcurrentSameSession(t *testing.T) {
	store := session.NewMemoryStore(0)

	engine, err := NewEngine(testConfig(), store, &stubRetriever{}, &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "ok",
	})
	require.NoError(t, err)

	const turns = 100
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env, perr := engine.ProcessTurn(context.Background(), "shared", fmt.Sprintf("question %d", i), Profile{})
			assert.NoError(t, perr)
			assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
		}(i)
	}
	wg.Wait()

	sess, err := store.Load(context.Background(), "shared")
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 2*turns, "every accepted turn persists exactly one user/assistant pair")
	for i := 0; i < len(sess.Turns); i += 2 {
		assert.Equal(t, session.RoleUser, sess.Turns[i].Role)
		assert.Equal(t, session.RoleAssistant, sess.Turns[i+1].Role)
	}
}

func TestProcessTurnDistinctSessionsDoNotBlock(t *testing.T) {
	store := session.NewMemoryStore(0)

	engine, err := NewEngine(testConfig(), store, &stubRetriever{}, &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "ok",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			_, perr := engine.ProcessTurn(context.Background(), id, "question", Profile{})
			assert.NoError(t, perr)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		sess, lerr := store.Load(context.Background(), fmt.Sprintf("session-%d", i))
		require.NoError(t, lerr)
		assert.Len(t, sess.Turns, 2)
	}
}

// failingStore always rejects appends so persistence degradation is
// observable.
type failingStore struct {
	appends atomic.Int32
}

func (s *failingStore) Load(_ context.Context, id string) (*session.Session, error) {
	return &session.Session{ID: id}, nil
}

func (s *failingStore) Append(context.Context, string, []session.Turn, map[string]any) error {
	s.appends.Add(1)
	return errors.New("store unavailable")
}

func TestProcessTurnPersistenceDegraded(t *testing.T) {
	store := &failingStore{}
	cfg := testConfig()
	cfg.Session.AppendRetries = 2

	engine, err := NewEngine(cfg, store, &stubRetriever{}, &stubCompleter{
		intentJSON: `{"category":"general"}`,
		answer:     "ok",
	})
	require.NoError(t, err)

	env, err := engine.ProcessTurn(context.Background(), "s1", "question", Profile{})
	require.NoError(t, err, "a persistence failure never fails the turn")

	assert.Equal(t, workflow.StatusNormal, env.WorkflowStatus)
	assert.Equal(t, "ok", env.AnswerText)
	assert.True(t, env.PersistenceDegraded)
	assert.Equal(t, int32(3), store.appends.Load(), "one attempt plus two retries")
}

func TestProcessTurnEmptySessionID(t *testing.T) {
	engine, err := NewEngine(testConfig(), session.NewMemoryStore(0), &stubRetriever{}, nil)
	require.NoError(t, err)

	_, err = engine.ProcessTurn(context.Background(), "", "question", Profile{})
	assert.ErrorIs(t, err, ErrEmptySessionID)
}
