// Package models holds the marketplace entities as they are stored in the
// document tree. Every place a user appears inside another entity it is a
// UserSnapshot copy, never a reference.
package models

import (
	"maps"
	"slices"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type UserStatus string

const (
	UserActive UserStatus = "active"
	UserBanned UserStatus = "banned"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// User is the canonical user record at users/{id}.
type User struct {
	ID     string     `json:"id"`
	Email  string     `json:"email" validate:"required,email"`
	Name   string     `json:"name" validate:"required,max=80"`
	Avatar string     `json:"avatar,omitempty"`
	Bio    string     `json:"bio,omitempty" validate:"max=500"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
	Tier   Tier       `json:"subscriptionTier"`

	GenerationCount     int    `json:"generationCount"`
	LastGenerationReset string `json:"lastGenerationReset,omitempty"`
	SubmissionCount     int    `json:"submissionCount"`
	LastSubmissionReset string `json:"lastSubmissionReset,omitempty"`

	Votes                map[string]VoteDirection `json:"votes,omitempty"`
	SavedPrompts         []string                 `json:"savedPrompts,omitempty"`
	SubmittedPrompts     []string                 `json:"submittedPrompts,omitempty"`
	PurchasedCollections []string                 `json:"purchasedCollections,omitempty"`
	CreatedCollections   []string                 `json:"createdCollections,omitempty"`

	TutorialCompleted bool      `json:"tutorialCompleted"`
	Theme             Theme     `json:"theme,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (u User) Key() string { return u.ID }

func (u User) WithKey(id string) User {
	u.ID = id
	return u
}

func (u User) Clone() User {
	u.Votes = maps.Clone(u.Votes)
	u.SavedPrompts = slices.Clone(u.SavedPrompts)
	u.SubmittedPrompts = slices.Clone(u.SubmittedPrompts)
	u.PurchasedCollections = slices.Clone(u.PurchasedCollections)
	u.CreatedCollections = slices.Clone(u.CreatedCollections)
	return u
}

func (u User) IsAdmin() bool  { return u.Role == RoleAdmin }
func (u User) IsBanned() bool { return u.Status == UserBanned }
func (u User) IsPro() bool    { return u.Tier == TierPro }

// Vote returns the user's stored vote on a prompt.
func (u User) Vote(promptID string) VoteDirection {
	return u.Votes[promptID]
}

// Owns reports whether the user bought or created the collection.
func (u User) Owns(collectionID string) bool {
	return slices.Contains(u.PurchasedCollections, collectionID) ||
		slices.Contains(u.CreatedCollections, collectionID)
}

// Snapshot is the public projection embedded into other entities. Quota
// counters, votes and id lists are private and never embedded.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Avatar: u.Avatar,
		Bio:    u.Bio,
		Role:   u.Role,
		Status: u.Status,
		Tier:   u.Tier,
	}
}

// UserSnapshot is a denormalized copy of a user's public fields.
type UserSnapshot struct {
	ID     string     `json:"id"`
	Email  string     `json:"email,omitempty"`
	Name   string     `json:"name"`
	Avatar string     `json:"avatar,omitempty"`
	Bio    string     `json:"bio,omitempty"`
	Role   Role       `json:"role,omitempty"`
	Status UserStatus `json:"status,omitempty"`
	Tier   Tier       `json:"subscriptionTier,omitempty"`
}

// ProfileUpdate carries the user-editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name   *string `validate:"omitempty,max=80"`
	Avatar *string
	Bio    *string `validate:"omitempty,max=500"`
}
