package generation

import (
	"context"
	"fmt"
	"strings"
)

// Offline answers from templates. The app uses it when no API key is set.
type Offline struct{}

func (Offline) GeneratePrompt(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	goal := strings.TrimSpace(req.Goal)
	return Result{
		Title:  titleOf(goal),
		Prompt: fmt.Sprintf("Act as an expert in %s. In a %s tone, help me with the following: %s", req.Category, req.Tone, goal),
		Tags:   []string{string(req.Category), string(req.Tone)},
	}, nil
}

func (Offline) GenerateExample(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Example output for: " + strings.TrimSpace(prompt), nil
}

func titleOf(goal string) string {
	words := strings.Fields(goal)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}
