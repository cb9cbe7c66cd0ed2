// Package generation talks to the generative text service.
package generation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/promptmarket/internal/common"
)

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneCreative     Tone = "creative"
	ToneTechnical    Tone = "technical"
	ToneFriendly     Tone = "friendly"
)

var Tones = []Tone{ToneProfessional, ToneCasual, ToneCreative, ToneTechnical, ToneFriendly}

type Category string

const (
	CategoryWriting   Category = "writing"
	CategoryCoding    Category = "coding"
	CategoryMarketing Category = "marketing"
	CategoryBusiness  Category = "business"
	CategoryEducation Category = "education"
	CategoryArt       Category = "art"
	CategoryOther     Category = "other"
)

var Categories = []Category{
	CategoryWriting, CategoryCoding, CategoryMarketing, CategoryBusiness,
	CategoryEducation, CategoryArt, CategoryOther,
}

// Request describes the prompt the user wants written.
type Request struct {
	Goal     string
	Tone     Tone
	Category Category
}

// Validate rejects empty goals and unknown enum values.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return fmt.Errorf("%w: goal is required", common.ErrorInvalidArgument)
	}
	if !slices.Contains(Tones, r.Tone) {
		return fmt.Errorf("%w: unknown tone %q", common.ErrorInvalidArgument, r.Tone)
	}
	if !slices.Contains(Categories, r.Category) {
		return fmt.Errorf("%w: unknown category %q", common.ErrorInvalidArgument, r.Category)
	}
	return nil
}

// Result is the structured reply to a Request.
type Result struct {
	Title  string   `json:"title"`
	Prompt string   `json:"prompt"`
	Tags   []string `json:"tags"`
}

// Generator may be slow and may fail. Callers do not retry.
type Generator interface {
	GeneratePrompt(ctx context.Context, req Request) (Result, error)
	GenerateExample(ctx context.Context, prompt string) (string, error)
}
