package models

import (
	"slices"
	"time"
)

// Collection is a curated, purchasable set of prompts at collections/{id}.
type Collection struct {
	ID          string           `json:"id"`
	Name        string           `json:"name" validate:"required,max=120"`
	Description string           `json:"description,omitempty"`
	PriceCents  int64            `json:"priceCents" validate:"gte=0"`
	CoverImage  string           `json:"coverImage,omitempty"`
	Creator     UserSnapshot     `json:"creator"`
	PromptIDs   []string         `json:"promptIds,omitempty"`
	PromptCount int              `json:"promptCount"`
	Status      ModerationStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func (c Collection) Key() string { return c.ID }

func (c Collection) WithKey(id string) Collection {
	c.ID = id
	return c
}

func (c Collection) Clone() Collection {
	c.PromptIDs = slices.Clone(c.PromptIDs)
	return c
}
