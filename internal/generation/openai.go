package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

var ErrEmptyResponse = errors.New("generation: empty response")

const promptSystemRole = `You write reusable prompts for large language models.
Reply with a JSON object {"title": string, "prompt": string, "tags": [string]}.
The title is at most 8 words. Give 3 to 5 lowercase tags.`

const exampleSystemRole = "You are a helpful assistant. Answer the prompt as if a user had sent it."

// OpenAI is a Generator over the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	log    logging.Logger
}

// NewOpenAI builds the adapter. baseURL may be empty for the public API.
func NewOpenAI(apiKey, model, baseURL string, log logging.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log.With("module", "generation"),
	}
}

func (o *OpenAI) GeneratePrompt(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	user := fmt.Sprintf("Goal: %s\nTone: %s\nCategory: %s", strings.TrimSpace(req.Goal), req.Tone, req.Category)
	content, err := o.complete(ctx, promptSystemRole, user, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return Result{}, err
	}

	var res Result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return Result{}, fmt.Errorf("generation: decode reply: %w", err)
	}
	if res.Title == "" || res.Prompt == "" {
		return Result{}, ErrEmptyResponse
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return res, nil
}

func (o *OpenAI) GenerateExample(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("generation: prompt is required")
	}
	return o.complete(ctx, exampleSystemRole, prompt, nil)
}

func (o *OpenAI) complete(ctx context.Context, system, user string, format *openai.ChatCompletionResponseFormat) (string, error) {
	o.log.Debug(ctx, "chat completion", "model", o.model)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	})
	if err != nil {
		o.log.Error(ctx, "openai call failed", "error", err)
		return "", fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
