package ai

import "google.golang.org/genai"

// ResponseSchema constrains generation to the StructuredResponse shape.
func ResponseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":        str(),
			"analysis":       str(),
			"recommendation": str(),
			"execution": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"immediate":  str(),
					"short_term": str(),
				},
				Required: []string{"immediate", "short_term"},
			},
			"risks": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"risk": str(),
						"severity": {
							Type: genai.TypeString,
							Enum: []string{"Low", "Medium", "High"},
						},
					},
					Required: []string{"risk", "severity"},
				},
			},
			"next_step": str(),
		},
		Required:         []string{"summary", "analysis", "recommendation", "execution", "risks", "next_step"},
		PropertyOrdering: []string{"summary", "analysis", "recommendation", "execution", "risks", "next_step"},
	}
}
