package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/model"
)

type GeminiClient struct {
	client *genai.Client
	cfg    ChatConfig
}

func NewGeminiClient(ctx context.Context, cfg ChatConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, transcript []model.Message) (string, error) {
	contents, err := BuildContents(transcript)
	if err != nil {
		return "", err
	}
	return c.generate(ctx, contents)
}

func (c *GeminiClient) AnalyzeDocument(ctx context.Context, doc model.Attachment) (string, error) {
	blob, err := inlineBlob(doc)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{InlineData: blob},
			{Text: DocumentPrompt(doc.Name)},
		},
	}}
	return c.generate(ctx, contents)
}

func (c *GeminiClient) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, c.generateConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	return resp.Text(), nil
}

func (c *GeminiClient) generateConfig() *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.cfg.instruction(), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ResponseSchema(),
	}
	if c.cfg.Temperature > 0 {
		gc.Temperature = genai.Ptr(c.cfg.Temperature)
	}
	return gc
}

// BuildContents maps the transcript to Gemini turns: assistant messages become
// model turns, everything else is sent as the user. Attachments go first as
// inline blobs, followed by the text part.
func BuildContents(transcript []model.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(transcript))
	for _, msg := range transcript {
		role := genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(msg.Attachments)+1)
		for _, att := range msg.Attachments {
			blob, err := inlineBlob(att)
			if err != nil {
				return nil, err
			}
			parts = append(parts, &genai.Part{InlineData: blob})
		}
		parts = append(parts, &genai.Part{Text: turnText(msg.Content, len(msg.Attachments))})
		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return contents, nil
}

func inlineBlob(att model.Attachment) (*genai.Blob, error) {
	raw, err := attachment.Decode(att.Data)
	if err != nil {
		return nil, fmt.Errorf("attachment %q: %w", att.Name, err)
	}
	return &genai.Blob{MIMEType: att.Type, Data: raw}, nil
}
