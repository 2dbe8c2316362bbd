// Package llm asks an OpenAI-compatible endpoint for feedback on incorrect
// quiz answers. It is only used on the instructor review pages; grading never
// depends on it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/fuerzas/internal/llm/prompts"
	"github.com/pavelanni/fuerzas/internal/model"
)

// Feedback is the LLM's hint for one incorrect answer.
type Feedback struct {
	Hint string `json:"hint"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client and loads the prompt templates.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Ping checks that the endpoint answers and serves the configured model.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by endpoint", c.model)
}

// Feedback asks for a hint on an incorrect answer. Correct answers and
// answers without an expected value get no feedback and a nil result.
func (c *Client) Feedback(ctx context.Context, ga model.GradedAnswer, lang string) (*Feedback, error) {
	if ga.Correct || ga.Expected == nil {
		return nil, nil
	}

	prompt, err := prompts.BuildFeedbackPrompt(c.variant, ga, lang)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var fb Feedback
	if err := json.Unmarshal([]byte(extractJSON(raw)), &fb); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	fb.Hint = strings.TrimSpace(fb.Hint)
	if fb.Hint == "" {
		return nil, fmt.Errorf("LLM response has no hint (raw: %s)", raw)
	}
	return &fb, nil
}

// ReportFeedback collects hints for every incorrect answer of a report,
// keyed by detail index. Failures are logged and skipped.
func (c *Client) ReportFeedback(ctx context.Context, r model.GradeReport, lang string) map[int]string {
	hints := make(map[int]string)
	for i, ga := range r.Details {
		fb, err := c.Feedback(ctx, ga, lang)
		if err != nil {
			slog.Error("LLM feedback failed", "question", i+1, "error", err)
			continue
		}
		if fb != nil {
			hints[i] = fb.Hint
		}
	}
	return hints
}

// extractJSON strips a Markdown code fence some models wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
