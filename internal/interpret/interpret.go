// Package interpret decides how a raw model reply should be displayed.
//
// The model is told to always answer with a StructuredResponse object but is
// not trusted to: greetings, truncated output and refusals come back as free
// text. Interpret therefore produces a tagged Reply that is either Structured
// (the JSON decoded and every required field was present with the right type)
// or PlainText (everything else, rendered as markdown).
package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"stratagem-ai/internal/model"
)

var ErrNotStructured = errors.New("reply is not a structured response")

type Kind int

const (
	PlainText Kind = iota
	Structured
)

func (k Kind) String() string {
	if k == Structured {
		return "structured"
	}
	return "plain_text"
}

type Reply struct {
	Kind       Kind
	Structured model.StructuredResponse
	Text       string
}

var validate = validator.New()

// Interpret never fails: anything that is not a complete structured object
// comes back as PlainText carrying the original string.
func Interpret(raw string) Reply {
	resp, err := Parse(raw)
	if err != nil {
		return Reply{Kind: PlainText, Text: raw}
	}
	return Reply{Kind: Structured, Structured: resp}
}

// Parse decodes raw into a StructuredResponse and checks that every required
// field is present. A surrounding markdown code fence is tolerated.
func Parse(raw string) (model.StructuredResponse, error) {
	body := stripFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") {
		return model.StructuredResponse{}, ErrNotStructured
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return model.StructuredResponse{}, fmt.Errorf("%w: %v", ErrNotStructured, err)
	}
	if err := validate.Struct(wire); err != nil {
		return model.StructuredResponse{}, fmt.Errorf("%w: %v", ErrNotStructured, err)
	}
	return wire.toModel(), nil
}

type wireResponse struct {
	Summary        *string        `json:"summary" validate:"required"`
	Analysis       *string        `json:"analysis" validate:"required"`
	Recommendation *string        `json:"recommendation" validate:"required"`
	Execution      *wireExecution `json:"execution" validate:"required"`
	Risks          []wireRisk     `json:"risks" validate:"required,dive"`
	NextStep       *string        `json:"next_step" validate:"required"`
}

type wireExecution struct {
	Immediate *string `json:"immediate" validate:"required"`
	ShortTerm *string `json:"short_term" validate:"required"`
}

type wireRisk struct {
	Risk     *string `json:"risk" validate:"required"`
	Severity *string `json:"severity" validate:"required"`
}

func (w wireResponse) toModel() model.StructuredResponse {
	risks := make([]model.Risk, 0, len(w.Risks))
	for _, r := range w.Risks {
		risks = append(risks, model.Risk{
			Risk:     *r.Risk,
			Severity: model.Severity(strings.TrimSpace(*r.Severity)),
		})
	}
	return model.StructuredResponse{
		Summary:        *w.Summary,
		Analysis:       *w.Analysis,
		Recommendation: *w.Recommendation,
		Execution: model.Execution{
			Immediate: *w.Execution.Immediate,
			ShortTerm: *w.Execution.ShortTerm,
		},
		Risks:    risks,
		NextStep: *w.NextStep,
	}
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// language tag, e.g. ```json, with or without a line break after it
	s = strings.TrimLeftFunc(s, unicode.IsLetter)
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
