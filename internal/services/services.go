// Package services holds the commands behind the user-facing views. Each
// service checks the caller, then drives the repositories.
package services

import (
	"fmt"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/collections"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/feedback"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/promocodes"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/prompts"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/users"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Repositories bundles the process-wide repositories.
type Repositories struct {
	Users       *users.Repository
	Prompts     *prompts.Repository
	Collections *collections.Repository
	Feedback    *feedback.Repository
	PromoCodes  *promocodes.Repository
}

func (r Repositories) user(id string) (models.User, error) {
	u, ok := r.Users.Get(id)
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, common.ErrorNotFound)
	}
	return u, nil
}

// active returns the user unless banned.
func (r Repositories) active(id string) (models.User, error) {
	u, err := r.user(id)
	if err != nil {
		return models.User{}, err
	}
	if u.IsBanned() {
		return models.User{}, fmt.Errorf("user %s: %w", id, common.ErrorBanned)
	}
	return u, nil
}

func (r Repositories) admin(id string) (models.User, error) {
	u, err := r.active(id)
	if err != nil {
		return models.User{}, err
	}
	if !u.IsAdmin() {
		return models.User{}, fmt.Errorf("user %s: %w", id, common.ErrorForbidden)
	}
	return u, nil
}

func (r Repositories) prompt(id string) (models.Prompt, error) {
	p, ok := r.Prompts.Get(id)
	if !ok {
		return models.Prompt{}, fmt.Errorf("prompt %s: %w", id, common.ErrorNotFound)
	}
	return p, nil
}

func (r Repositories) collection(id string) (models.Collection, error) {
	c, ok := r.Collections.Get(id)
	if !ok {
		return models.Collection{}, fmt.Errorf("collection %s: %w", id, common.ErrorNotFound)
	}
	return c, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
}
