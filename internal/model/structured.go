package model

import "encoding/json"

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// StructuredResponse is the strategic-analysis object the model is asked to
// return for every chat turn and document analysis.
type StructuredResponse struct {
	Summary        string    `json:"summary"`
	Analysis       string    `json:"analysis"`
	Recommendation string    `json:"recommendation"`
	Execution      Execution `json:"execution"`
	Risks          []Risk    `json:"risks"`
	NextStep       string    `json:"next_step"`
}

type Execution struct {
	Immediate string `json:"immediate"`
	ShortTerm string `json:"short_term"`
}

type Risk struct {
	Risk     string   `json:"risk"`
	Severity Severity `json:"severity"`
}

// JSON serializes the response the way it is stored in assistant message content.
func (r StructuredResponse) JSON() string {
	if r.Risks == nil {
		r.Risks = []Risk{}
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(raw)
}

// AnalysisFailed is returned when a document analysis reply cannot be parsed,
// so the panel always has something to render.
func AnalysisFailed() StructuredResponse {
	return StructuredResponse{
		Summary:        "Analysis failed",
		Analysis:       "Could not parse the document intelligence output.",
		Recommendation: "Review document manually",
		Execution: Execution{
			Immediate: "Check file format",
			ShortTerm: "Retry analysis",
		},
		Risks:    []Risk{{Risk: "Parsing error", Severity: SeverityMedium}},
		NextStep: "Try another document?",
	}
}

// EmptyReply stands in for a chat reply that came back with no text.
func EmptyReply() StructuredResponse {
	return StructuredResponse{
		Summary:        "Error generating response",
		Analysis:       "The system failed to generate a structured analysis.",
		Recommendation: "Please try again.",
		Execution: Execution{
			Immediate: "Retry request",
			ShortTerm: "Contact support if issue persists",
		},
		Risks:    []Risk{{Risk: "System failure", Severity: SeverityHigh}},
		NextStep: "Would you like to try rephrasing your request?",
	}
}
