package models

import (
	"slices"
	"time"
)

type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

func (s ModerationStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Prompt is a community or collection prompt at prompts/{id}.
type Prompt struct {
	ID            string           `json:"id"`
	Title         string           `json:"title" validate:"required,max=120"`
	Text          string           `json:"prompt" validate:"required"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category,omitempty"`
	Model         string           `json:"model,omitempty"`
	Tags          []string         `json:"tags,omitempty" validate:"max=10"`
	ExampleOutput string           `json:"exampleOutput,omitempty"`
	Author        UserSnapshot     `json:"author"`
	Upvotes       int              `json:"upvotes"`
	Downvotes     int              `json:"downvotes"`
	Comments      []Comment        `json:"comments,omitempty"`
	Status        ModerationStatus `json:"status"`
	IsPublic      bool             `json:"isPublic"`
	CreatedAt     time.Time        `json:"createdAt"`
}

func (p Prompt) Key() string { return p.ID }

func (p Prompt) WithKey(id string) Prompt {
	p.ID = id
	return p
}

func (p Prompt) Clone() Prompt {
	p.Tags = slices.Clone(p.Tags)
	p.Comments = slices.Clone(p.Comments)
	return p
}

// Visible reports whether the prompt is listed in the public community feed.
func (p Prompt) Visible() bool {
	return p.IsPublic && p.Status == StatusApproved
}

// Comment lives inside Prompt.Comments, newest first.
type Comment struct {
	ID        string       `json:"id"`
	Author    UserSnapshot `json:"author"`
	Text      string       `json:"text" validate:"required,max=2000"`
	CreatedAt time.Time    `json:"createdAt"`
}
