package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/model"
	"stratagem-ai/internal/pkg/pdfextract"
)

const maxAttachmentTextRunes = 60000

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatibleClient speaks the /chat/completions dialect. Those endpoints
// take text only, so attachments are flattened to their extracted text.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        ChatConfig
}

func NewOpenAICompatibleClient(cfg ChatConfig) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		cfg:        cfg,
	}
}

func (c *OpenAICompatibleClient) Chat(ctx context.Context, transcript []model.Message) (string, error) {
	messages := make([]ChatMessage, 0, len(transcript)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: c.cfg.instruction()})
	for _, msg := range transcript {
		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "assistant"
		}
		var sb strings.Builder
		for _, att := range msg.Attachments {
			sb.WriteString(attachmentText(att))
			sb.WriteString("\n\n")
		}
		sb.WriteString(turnText(msg.Content, len(msg.Attachments)))
		messages = append(messages, ChatMessage{Role: role, Content: sb.String()})
	}
	return c.Complete(ctx, messages)
}

func (c *OpenAICompatibleClient) AnalyzeDocument(ctx context.Context, doc model.Attachment) (string, error) {
	return c.Complete(ctx, []ChatMessage{
		{Role: "system", Content: c.cfg.instruction()},
		{Role: "user", Content: attachmentText(doc) + "\n\n" + DocumentPrompt(doc.Name)},
	})
}

// Complete sends one non-streaming request in JSON mode.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":           c.cfg.Model,
		"messages":        messages,
		"stream":          false,
		"response_format": map[string]string{"type": "json_object"},
	}
	if c.cfg.Temperature > 0 {
		reqBody["temperature"] = c.cfg.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// attachmentText renders a file as prompt text. Binary formats other than PDF
// are only named.
func attachmentText(att model.Attachment) string {
	header := fmt.Sprintf("[Attachment: %s (%s)]", att.Name, att.Type)
	raw, err := attachment.Decode(att.Data)
	if err != nil {
		return header + "\n(unreadable)"
	}

	var text string
	switch {
	case strings.Contains(att.Type, "pdf"):
		text, err = pdfextract.ExtractBytes(raw)
		if err != nil {
			return header + "\n(text extraction failed)"
		}
	case strings.HasPrefix(att.Type, "text/") || strings.HasSuffix(att.Name, ".txt") || att.Type == "application/json":
		text = string(raw)
	default:
		return header + "\n(binary content omitted)"
	}

	if runes := []rune(text); len(runes) > maxAttachmentTextRunes {
		text = string(runes[:maxAttachmentTextRunes]) + "\n[truncated]"
	}
	return header + "\n" + strings.TrimSpace(text)
}
