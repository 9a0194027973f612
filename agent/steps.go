package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/navigator-ai/careerflow/config"
	"github.com/navigator-ai/careerflow/log"
	"github.com/navigator-ai/careerflow/retrieval"
	"github.com/navigator-ai/careerflow/session"
	"github.com/navigator-ai/careerflow/workflow"
)

// historyWindow caps how many prior turns feed the prompts.
const historyWindow = 20

// steps holds the collaborators the workflow steps close over. Step
// methods are registered on the graph by buildGraph.
type steps struct {
	validator *Validator
	retriever Retriever
	completer Completer
	cfg       config.Config
	logger    log.Logger
}

func profileOf(state *workflow.State) Profile {
	v, ok := state.Get(FieldProfile)
	if !ok {
		return Profile{}
	}
	p, _ := v.(Profile)
	return p
}

func intentOf(state *workflow.State) Intent {
	v, ok := state.Get(FieldIntent)
	if !ok {
		return Intent{Category: CategoryGeneral}
	}
	intent, _ := v.(Intent)
	return intent
}

func candidatesOf(state *workflow.State) []retrieval.Candidate {
	v, ok := state.Get(FieldCandidates)
	if !ok {
		return nil
	}
	candidates, _ := v.([]retrieval.Candidate)
	return candidates
}

// validate is the entry step. On rejection it marks the turn
// validation_failed; the branch selector then routes to the rejection
// terminal before any retrieval or synthesis step runs.
func (s *steps) validate(_ context.Context, state *workflow.State) (map[string]any, error) {
	text := state.GetString(FieldUserMessage)

	err := s.validator.Validate(text, profileOf(state))
	if err == nil {
		return nil, nil
	}

	verr, ok := err.(*ValidationError)
	if !ok {
		return nil, err
	}
	if ferr := state.Fail(workflow.StatusValidationFailed); ferr != nil {
		return nil, ferr
	}
	state.AddError(verr.Error())
	return map[string]any{FieldValidationReason: string(verr.Reason)}, nil
}

// validateBranch routes rejected turns to the rejection terminal.
func validateBranch(state *workflow.State) string {
	if state.Status() == workflow.StatusValidationFailed {
		return StepValidationFailed
	}
	return StepChatHistory
}

// chatHistory folds the restored session turns into a transcript the
// synthesis prompts can quote.
func (s *steps) chatHistory(_ context.Context, state *workflow.State) (map[string]any, error) {
	v, ok := state.Get(FieldSessionTurns)
	if !ok {
		return map[string]any{FieldChatHistory: ""}, nil
	}
	turns, _ := v.([]session.Turn)
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
	}
	return map[string]any{FieldChatHistory: b.String()}, nil
}

// intentAnalysis classifies the question. The model is asked for a small
// JSON envelope; anything unparseable degrades to the keyword heuristic.
func (s *steps) intentAnalysis(ctx context.Context, state *workflow.State) (map[string]any, error) {
	text := state.GetString(FieldUserMessage)

	if s.completer == nil {
		return map[string]any{FieldIntent: classifyHeuristic(text)}, nil
	}

	raw, err := s.completer.Complete(ctx, Prompt{
		System: intentSystemPrompt,
		User:   text,
	})
	if err != nil {
		state.AddError(fmt.Sprintf("intent classification degraded: %v", err))
		s.logger.Warnf("intent classification failed, using heuristic: %v", err)
		return map[string]any{FieldIntent: classifyHeuristic(text)}, nil
	}

	intent, ok := parseIntent(raw)
	if !ok {
		state.AddError("intent classification degraded: unparseable model output")
		s.logger.Warnf("unparseable intent envelope, using heuristic: %q", raw)
		intent = classifyHeuristic(text)
	}
	return map[string]any{FieldIntent: intent}, nil
}

const intentSystemPrompt = `You classify career-guidance questions.
Respond with JSON only, no prose:
{"category":"career_growth"|"learning"|"general","wants_diagram":bool,"wants_report":bool}`

// retrieveData queries every configured collection through the hybrid
// retriever. Strategy failures are already soft inside the retriever; here
// they are surfaced on the turn's error list and the step still succeeds.
func (s *steps) retrieveData(ctx context.Context, state *workflow.State) (map[string]any, error) {
	query := state.GetString(FieldUserMessage)

	collections := make([]string, 0, len(s.cfg.Retrieval.Collections))
	for _, c := range s.cfg.Retrieval.Collections {
		collections = append(collections, c.Name)
	}

	candidates, soft := s.retriever.Retrieve(ctx, query, collections, s.cfg.Retrieval.TopK)
	for _, se := range soft {
		state.AddError(se.Error())
	}
	return map[string]any{FieldCandidates: candidates}, nil
}

// formatResponse synthesizes the user-facing answer. This is the one
// critical step: without an answer the turn has nothing to return, so a
// synthesis failure here aborts to the failure terminal.
func (s *steps) formatResponse(ctx context.Context, state *workflow.State) (map[string]any, error) {
	candidates := candidatesOf(state)

	if s.completer == nil {
		return map[string]any{FieldAnswer: fallbackAnswer(candidates)}, nil
	}

	answer, err := s.completer.Complete(ctx, Prompt{
		System: answerSystemPrompt,
		User:   buildAnswerPrompt(state, candidates),
	})
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}
	return map[string]any{FieldAnswer: answer}, nil
}

const answerSystemPrompt = `You are a career-guidance mentor. Answer the
user's question grounded in the reference material provided. Be concrete
and cite which reference you drew on. Answer in the user's language.`

func buildAnswerPrompt(state *workflow.State, candidates []retrieval.Candidate) string {
	var b strings.Builder

	profile := profileOf(state)
	if profile.Name != "" || profile.Role != "" {
		fmt.Fprintf(&b, "User: %s, %s, %d years of experience.\n", profile.Name, profile.Role, profile.Experience)
		if len(profile.Skills) > 0 {
			fmt.Fprintf(&b, "Skills: %s.\n", strings.Join(profile.Skills, ", "))
		}
	}
	if history := state.GetString(FieldChatHistory); history != "" {
		fmt.Fprintf(&b, "\nConversation so far:\n%s", history)
	}
	if len(candidates) > 0 {
		b.WriteString("\nReference material:\n")
		for i, c := range candidates {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, c.Collection, c.Payload)
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", state.GetString(FieldUserMessage))
	return b.String()
}

// fallbackAnswer is returned when no synthesis collaborator is configured.
// The retrieved material is surfaced verbatim so the turn still carries
// value.
func fallbackAnswer(candidates []retrieval.Candidate) string {
	if len(candidates) == 0 {
		return "I could not generate a tailored answer right now. Please try again shortly."
	}
	var b strings.Builder
	b.WriteString("Here is the most relevant material I found:\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Payload)
	}
	return b.String()
}

// formatBranch selects the post-answer path from the classified intent
// and the step toggles.
func (s *steps) formatBranch(state *workflow.State) string {
	intent := intentOf(state)
	if intent.WantsDiagram && s.cfg.Steps.Diagram {
		return StepGenerateDiagram
	}
	if intent.WantsReport && s.cfg.Steps.Report {
		return StepGenerateReport
	}
	return StepCompleted
}

// diagramBranch runs after diagram generation.
func (s *steps) diagramBranch(state *workflow.State) string {
	if intentOf(state).WantsReport && s.cfg.Steps.Report {
		return StepGenerateReport
	}
	return StepCompleted
}

// generateDiagram produces Mermaid source for a growth-path visual. A
// failure here is soft: the turn keeps its answer and simply ships no
// diagram.
func (s *steps) generateDiagram(ctx context.Context, state *workflow.State) (map[string]any, error) {
	if s.completer == nil {
		return map[string]any{FieldDiagram: fallbackDiagram(profileOf(state), candidatesOf(state))}, nil
	}

	raw, err := s.completer.Complete(ctx, Prompt{
		System: diagramSystemPrompt,
		User:   state.GetString(FieldAnswer),
	})
	if err != nil {
		return nil, fmt.Errorf("diagram synthesis failed: %w", err)
	}

	source := extractMermaid(raw)
	if source == "" {
		return nil, fmt.Errorf("diagram synthesis produced no mermaid block")
	}
	return map[string]any{FieldDiagram: source}, nil
}

const diagramSystemPrompt = `Turn the career advice below into a Mermaid
flowchart of concrete growth stages. Respond with the mermaid source only,
inside a fenced mermaid code block.`

// extractMermaid pulls the mermaid source out of a fenced block, or
// accepts bare flowchart/graph source.
func extractMermaid(raw string) string {
	if idx := strings.Index(raw, "```mermaid"); idx >= 0 {
		rest := raw[idx+len("```mermaid"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "flowchart") || strings.HasPrefix(trimmed, "graph") {
		return trimmed
	}
	return ""
}

// fallbackDiagram builds a minimal roadmap when no model is available.
func fallbackDiagram(profile Profile, candidates []retrieval.Candidate) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	current := profile.Role
	if current == "" {
		current = "Current role"
	}
	fmt.Fprintf(&b, "    A[%s]\n", current)

	prev := "A"
	for i, c := range candidates {
		if i >= 3 {
			break
		}
		node := string(rune('B' + i))
		title := c.Payload
		if len(title) > 40 {
			title = title[:40]
		}
		fmt.Fprintf(&b, "    %s --> %s[%s]\n", prev, node, title)
		prev = node
	}
	return b.String()
}

// generateReport renders the answer into a sanitized HTML report and
// returns an artifact reference the transport layer can serve.
func (s *steps) generateReport(_ context.Context, state *workflow.State) (map[string]any, error) {
	answer := state.GetString(FieldAnswer)
	if answer == "" {
		return nil, fmt.Errorf("no answer to render")
	}
	return map[string]any{
		FieldReportRef:  "report-" + uuid.NewString(),
		FieldReportHTML: renderReport(answer),
	}, nil
}

// rejectionTerminal produces the user-facing envelope text for a turn the
// gate rejected.
func (s *steps) rejectionTerminal(_ context.Context, state *workflow.State) (map[string]any, error) {
	var msg string
	switch Reason(state.GetString(FieldValidationReason)) {
	case ReasonEmpty:
		msg = "Your message was empty. Please tell me what you would like to ask."
	case ReasonTooLong:
		msg = fmt.Sprintf("Your message is too long. Please keep it under %d characters.", s.cfg.Validation.MaxLength)
	case ReasonDisallowedContent:
		msg = "Your message contains content I cannot help with."
	default:
		msg = "Your message could not be processed."
	}
	return map[string]any{FieldAnswer: msg}, nil
}

// failureTerminal produces the apology text after a critical failure.
func (s *steps) failureTerminal(_ context.Context, state *workflow.State) (map[string]any, error) {
	if state.GetString(FieldAnswer) != "" {
		return nil, nil
	}
	return map[string]any{
		FieldAnswer: "Something went wrong while preparing your answer. Please try again.",
	}, nil
}

// buildGraph wires the step set into the turn-processing graph.
func buildGraph(s *steps) (*workflow.Runner, error) {
	g := workflow.NewGraph()

	g.AddStep(StepValidate, s.validate, workflow.WithBranch(validateBranch))
	g.AddStep(StepChatHistory, s.chatHistory,
		workflow.WithPredecessors(StepValidate))
	g.AddStep(StepIntentAnalysis, s.intentAnalysis,
		workflow.WithPredecessors(StepChatHistory))
	g.AddStep(StepRetrieveData, s.retrieveData,
		workflow.WithPredecessors(StepIntentAnalysis))
	g.AddStep(StepFormatResponse, s.formatResponse,
		workflow.WithPredecessors(StepRetrieveData),
		workflow.WithCritical(),
		workflow.WithBranch(s.formatBranch))
	g.AddStep(StepGenerateDiagram, s.generateDiagram,
		workflow.WithPredecessors(StepFormatResponse),
		workflow.WithBranch(s.diagramBranch))
	g.AddStep(StepGenerateReport, s.generateReport,
		workflow.WithPredecessors(StepFormatResponse))

	g.AddStep(StepCompleted, nil, workflow.WithTerminal())
	g.AddStep(StepValidationFailed, s.rejectionTerminal, workflow.WithTerminal())
	g.AddStep(StepFailed, s.failureTerminal, workflow.WithTerminal())

	g.AddEdge(StepChatHistory, StepIntentAnalysis)
	g.AddEdge(StepIntentAnalysis, StepRetrieveData)
	g.AddEdge(StepRetrieveData, StepFormatResponse)
	g.AddEdge(StepGenerateReport, StepCompleted)

	g.SetEntryPoint(StepValidate)
	g.SetErrorTerminal(StepFailed)

	return g.Compile()
}
