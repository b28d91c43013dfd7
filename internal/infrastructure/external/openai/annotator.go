package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Annotator implements port.AIAnnotator using an OpenAI chat model
type Annotator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewAnnotator creates a new OpenAI annotator
func NewAnnotator(apiKey, model string, temperature float32, logger *zap.Logger) *Annotator {
	return &Annotator{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

const systemPrompt = "You are a document annotation assistant. Extract the requested " +
	"fields from the document text. Always respond with a single valid JSON object " +
	"whose keys are exactly the requested field names. Use null for fields you " +
	"cannot find. Add a \"_confidence\" key with a number between 0 and 1."

// Annotate extracts the given fields from the document text
func (a *Annotator) Annotate(ctx context.Context, documentText string, fields []string) (*port.AIAnnotationResult, error) {
	prompt := buildPrompt(documentText, fields)

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &values); err != nil {
		// Fallback: try to extract JSON from markdown code blocks
		if jsonStr := extractJSON(content); jsonStr != "" {
			err = json.Unmarshal([]byte(jsonStr), &values)
		}
		if err != nil {
			a.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	confidence := 0.5
	if raw, ok := values["_confidence"]; ok {
		var c float64
		if json.Unmarshal(raw, &c) == nil && c >= 0 && c <= 1 {
			confidence = c
		}
		delete(values, "_confidence")
	}

	// Keep only the requested fields so the payload matches the form config
	result := make(map[string]json.RawMessage, len(fields))
	for _, name := range fields {
		if v, ok := values[name]; ok {
			result[name] = v
		} else {
			result[name] = json.RawMessage("null")
		}
	}

	a.logger.Info("AI annotation extracted",
		zap.Int("fields", len(result)),
		zap.Float64("confidence", confidence))

	return &port.AIAnnotationResult{
		Fields:     result,
		Confidence: confidence,
		Model:      a.model,
	}, nil
}

func buildPrompt(documentText string, fields []string) string {
	var b strings.Builder
	b.WriteString("Extract the following fields:\n")
	for _, f := range fields {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(documentText)
	return b.String()
}

// extractJSON pulls the first JSON object out of a markdown-fenced response
func extractJSON(content string) string {
	start := strings.Index(content, "```json")
	if start >= 0 {
		start += len("```json")
		if end := strings.Index(content[start:], "```"); end >= 0 {
			return strings.TrimSpace(content[start : start+end])
		}
	}
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return ""
}

// Verify interface compliance
var _ port.AIAnnotator = (*Annotator)(nil)
