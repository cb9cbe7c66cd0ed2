package models

import "time"

type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackReviewed FeedbackStatus = "reviewed"
)

// FeedbackItem is a user report at feedback/{id}.
type FeedbackItem struct {
	ID        string         `json:"id"`
	User      UserSnapshot   `json:"user"`
	Type      string         `json:"type" validate:"required,oneof=bug feature general"`
	Message   string         `json:"message" validate:"required,max=4000"`
	Status    FeedbackStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (f FeedbackItem) Key() string { return f.ID }

func (f FeedbackItem) WithKey(id string) FeedbackItem {
	f.ID = id
	return f
}

func (f FeedbackItem) Clone() FeedbackItem { return f }
