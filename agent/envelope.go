package agent

import (
	"github.com/navigator-ai/careerflow/workflow"
)

// Envelope is the per-turn result returned to the transport layer. It is
// always produced, even for rejected or failed turns; the caller inspects
// WorkflowStatus rather than an error.
type Envelope struct {
	WorkflowStatus workflow.Status    `json:"workflow_status"`
	AnswerText     string             `json:"answer_text"`
	DiagramSource  string             `json:"diagram_source,omitempty"`
	ReportRef      string             `json:"report_ref,omitempty"`
	ProcessingLog  []workflow.StepLog `json:"processing_log"`
	ErrorMessages  []string           `json:"error_messages,omitempty"`

	// PersistenceDegraded warns that the session append failed after all
	// retries: the answer is valid but continuity into the next turn is
	// at risk.
	PersistenceDegraded bool `json:"persistence_degraded,omitempty"`
}

// envelopeFrom folds the final turn state into the result envelope.
func envelopeFrom(state *workflow.State) *Envelope {
	return &Envelope{
		WorkflowStatus: state.Status(),
		AnswerText:     state.GetString(FieldAnswer),
		DiagramSource:  state.GetString(FieldDiagram),
		ReportRef:      state.GetString(FieldReportRef),
		ProcessingLog:  state.Log(),
		ErrorMessages:  state.Errors(),
	}
}
