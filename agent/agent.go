// Package agent assembles the turn-processing engine for the career
// guidance assistant: the validation gate, the named workflow steps, the
// hybrid-retrieval wiring and the session lifecycle around each turn.
package agent

import (
	"context"

	"github.com/navigator-ai/careerflow/retrieval"
)

// Profile describes the user asking the question. It flows into the
// synthesis prompts and, unlike the message text, is never validated here;
// the transport layer owns its schema.
type Profile struct {
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Experience int      `json:"experience_years"`
	Skills     []string `json:"skills"`
}

// Retriever is the engine's view of the hybrid retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query string, collections []string, k int) ([]retrieval.Candidate, []retrieval.SoftError)
}

// Step names. The graph topology over these names is fixed at engine
// construction; branch selectors pick among them at run time.
const (
	StepValidate         = "validate"
	StepChatHistory      = "chat_history"
	StepIntentAnalysis   = "intent_analysis"
	StepRetrieveData     = "retrieve_data"
	StepFormatResponse   = "format_response"
	StepGenerateDiagram  = "generate_diagram"
	StepGenerateReport   = "generate_report"
	StepCompleted        = "completed"
	StepValidationFailed = "validation_failed"
	StepFailed           = "failed"
)

// Turn-state field keys. Each field is written by exactly one step per
// turn; the engine seeds the input fields before the run starts.
const (
	FieldUserMessage      = "user_message"
	FieldProfile          = "profile"
	FieldSessionTurns     = "session_turns"
	FieldValidationReason = "validation_reason"
	FieldChatHistory      = "chat_history"
	FieldIntent           = "intent"
	FieldCandidates       = "candidates"
	FieldAnswer           = "answer_text"
	FieldDiagram          = "diagram_source"
	FieldReportRef        = "report_ref"
	FieldReportHTML       = "report_html"
)
