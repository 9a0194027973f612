package agent

import (
	"encoding/json"
	"strings"
)

// Intent is the classified shape of a user question. It drives the branch
// topology after answer synthesis: diagrams for growth-path questions,
// reports for deep consultations.
type Intent struct {
	Category     string `json:"category"`
	WantsDiagram bool   `json:"wants_diagram"`
	WantsReport  bool   `json:"wants_report"`
}

// Intent categories.
const (
	CategoryCareerGrowth = "career_growth"
	CategoryLearning     = "learning"
	CategoryGeneral      = "general"
)

// parseIntent extracts the intent envelope from a model response. The
// model is asked for bare JSON but often wraps it in a code fence or
// prose, so the parser scans for the outermost object.
func parseIntent(raw string) (Intent, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Intent{}, false
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw[start:end+1]), &intent); err != nil {
		return Intent{}, false
	}
	if intent.Category == "" {
		return Intent{}, false
	}
	return intent, true
}

var (
	growthKeywords   = []string{"career", "promotion", "grow", "path", "transition", "switch", "role", "진로", "성장", "커리어"}
	learningKeywords = []string{"learn", "course", "study", "skill", "certification", "교육", "학습", "강의"}
	reportKeywords   = []string{"report", "detailed", "in depth", "in-depth", "analysis", "보고서", "분석"}
	diagramKeywords  = []string{"diagram", "roadmap", "visual", "chart", "로드맵"}
)

// classifyHeuristic is the keyword fallback used when the model's intent
// envelope cannot be obtained or parsed.
func classifyHeuristic(text string) Intent {
	lower := strings.ToLower(text)

	intent := Intent{Category: CategoryGeneral}
	if containsAny(lower, learningKeywords) {
		intent.Category = CategoryLearning
	}
	if containsAny(lower, growthKeywords) {
		intent.Category = CategoryCareerGrowth
		intent.WantsDiagram = true
	}
	if containsAny(lower, diagramKeywords) {
		intent.WantsDiagram = true
	}
	if containsAny(lower, reportKeywords) {
		intent.WantsReport = true
	}
	return intent
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
