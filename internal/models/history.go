package models

import (
	"slices"
	"time"
)

// HistoryItem is one past generation at history/{userID}/{id}.
type HistoryItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HistoryItem) Key() string { return h.ID }

func (h HistoryItem) WithKey(id string) HistoryItem {
	h.ID = id
	return h
}

func (h HistoryItem) Clone() HistoryItem {
	h.Tags = slices.Clone(h.Tags)
	return h
}
