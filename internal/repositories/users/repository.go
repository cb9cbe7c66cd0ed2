// Package users holds the canonical user records. Changes to fields that
// are embedded elsewhere are followed by a propagation pass.
package users

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/propagation"
	"github.com/dmitrijs2005/promptmarket/internal/quota"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/go-playground/validator/v10"
)

const (
	Root       = "users"
	BannedRoot = "bannedEmails"
)

var validate = validator.New()

// Propagator rewrites embedded copies of a user.
type Propagator interface {
	Propagate(ctx context.Context, snap models.UserSnapshot) (propagation.Result, error)
}

type Repository struct {
	*cache.Repository[models.User]
	mirror     *cache.Mirror
	propagator Propagator
	quota      *quota.Tracker
	log        logging.Logger
	now        func() time.Time

	mu     sync.RWMutex
	banned map[string]struct{}
}

func New(mirror *cache.Mirror, p Propagator, q *quota.Tracker, log logging.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		Repository: cache.New[models.User](mirror, cache.Options[models.User]{
			Entity:  "users",
			Root:    Root,
			Log:     log,
			Metrics: m,
		}),
		mirror:     mirror,
		propagator: p,
		quota:      q,
		log:        log.With("module", "users"),
		now:        time.Now,
		banned:     make(map[string]struct{}),
	}
}

// Create stores the profile of a newly verified account.
func (r *Repository) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		return models.User{}, fmt.Errorf("user id: %w", common.ErrorInvalidArgument)
	}
	if _, ok := r.Get(u.ID); ok {
		return models.User{}, fmt.Errorf("user %s: %w", u.ID, common.ErrorAlreadyExists)
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = models.UserActive
	}
	if u.Tier == "" {
		u.Tier = models.TierFree
	}
	if u.Theme == "" {
		u.Theme = models.ThemeLight
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	if err := validate.Struct(u); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}
	return r.Add(ctx, u), nil
}

// propagate runs after a change to an embedded field. Its failure is logged.
func (r *Repository) propagate(ctx context.Context, u models.User) {
	if r.propagator == nil {
		return
	}
	if _, err := r.propagator.Propagate(ctx, u.Snapshot()); err != nil {
		r.log.Error(ctx, "propagation failed", "user", u.ID, "error", err)
	}
}

// visible updates u under op and propagates the result.
func (r *Repository) visible(ctx context.Context, op cache.Operation, id string, fn func(models.User) (models.User, error)) (models.User, error) {
	var (
		u   models.User
		err error
	)
	if op == cache.OpStatus {
		u, err = r.UpdateStatus(ctx, id, fn)
	} else {
		u, err = r.Update(ctx, id, fn)
	}
	if err != nil {
		return models.User{}, err
	}
	r.propagate(ctx, u)
	return u, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	if err := validate.Struct(upd); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return models.User{}, fmt.Errorf("empty name: %w", common.ErrorInvalidArgument)
	}
	return r.visible(ctx, cache.OpUpdate, id, func(u models.User) (models.User, error) {
		if upd.Name != nil {
			u.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Avatar != nil {
			u.Avatar = *upd.Avatar
		}
		if upd.Bio != nil {
			u.Bio = *upd.Bio
		}
		return u, nil
	})
}

func (r *Repository) SetStatus(ctx context.Context, id string, status models.UserStatus) (models.User, error) {
	if status != models.UserActive && status != models.UserBanned {
		return models.User{}, fmt.Errorf("status %q: %w", status, common.ErrorInvalidArgument)
	}
	return r.visible(ctx, cache.OpStatus, id, func(u models.User) (models.User, error) {
		u.Status = status
		return u, nil
	})
}

func (r *Repository) SetRole(ctx context.Context, id string, role models.Role) (models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.User{}, fmt.Errorf("role %q: %w", role, common.ErrorInvalidArgument)
	}
	return r.visible(ctx, cache.OpUpdate, id, func(u models.User) (models.User, error) {
		u.Role = role
		return u, nil
	})
}

// UpgradeToPro switches the tier and clears the generation counter.
func (r *Repository) UpgradeToPro(ctx context.Context, id string) (models.User, error) {
	return r.visible(ctx, cache.OpUpdate, id, func(u models.User) (models.User, error) {
		u.Tier = models.TierPro
		u.GenerationCount = 0
		return u, nil
	})
}

// fields mutates private fields and writes only the listed children.
func (r *Repository) fields(ctx context.Context, id string, fn func(models.User) (models.User, error), write func(models.User) map[string]any) (models.User, error) {
	return r.Mutate(ctx, cache.OpUpdate, id, fn, func(u models.User) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), write(u))
		}
	})
}

// RecordGeneration counts one completed generation in the current period.
func (r *Repository) RecordGeneration(ctx context.Context, id string) (models.User, error) {
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		u.GenerationCount, u.LastGenerationReset = r.quota.NextGeneration(u)
		return u, nil
	}, func(u models.User) map[string]any {
		return map[string]any{
			"generationCount":     u.GenerationCount,
			"lastGenerationReset": u.LastGenerationReset,
		}
	})
}

// RecordSubmission counts one recorded submission in the current day.
func (r *Repository) RecordSubmission(ctx context.Context, id string) (models.User, error) {
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		u.SubmissionCount, u.LastSubmissionReset = r.quota.NextSubmission(u)
		return u, nil
	}, func(u models.User) map[string]any {
		return map[string]any{
			"submissionCount":     u.SubmissionCount,
			"lastSubmissionReset": u.LastSubmissionReset,
		}
	})
}

// SetVote stores the user's vote on a prompt. VoteNone clears it.
func (r *Repository) SetVote(ctx context.Context, id, promptID string, dir models.VoteDirection) (models.User, error) {
	if !dir.Valid() {
		return models.User{}, fmt.Errorf("vote %q: %w", dir, common.ErrorInvalidArgument)
	}
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		if u.Votes == nil {
			u.Votes = map[string]models.VoteDirection{}
		}
		if dir == models.VoteNone {
			delete(u.Votes, promptID)
		} else {
			u.Votes[promptID] = dir
		}
		return u, nil
	}, func(u models.User) map[string]any {
		var v any
		if d, ok := u.Votes[promptID]; ok {
			v = d
		}
		return map[string]any{docstore.Join("votes", promptID): v}
	})
}

// ToggleSaved adds or removes promptID from the saved list.
func (r *Repository) ToggleSaved(ctx context.Context, id, promptID string) (models.User, error) {
	return r.list(ctx, id, "savedPrompts", func(u *models.User) *[]string { return &u.SavedPrompts }, func(ids []string) []string {
		if slices.Contains(ids, promptID) {
			return slices.DeleteFunc(ids, func(s string) bool { return s == promptID })
		}
		return append(ids, promptID)
	})
}

func (r *Repository) AddSubmitted(ctx context.Context, id, promptID string) (models.User, error) {
	return r.list(ctx, id, "submittedPrompts", func(u *models.User) *[]string { return &u.SubmittedPrompts }, appendUnique(promptID))
}

func (r *Repository) AddPurchased(ctx context.Context, id, collectionID string) (models.User, error) {
	return r.list(ctx, id, "purchasedCollections", func(u *models.User) *[]string { return &u.PurchasedCollections }, appendUnique(collectionID))
}

func (r *Repository) AddCreated(ctx context.Context, id, collectionID string) (models.User, error) {
	return r.list(ctx, id, "createdCollections", func(u *models.User) *[]string { return &u.CreatedCollections }, appendUnique(collectionID))
}

func appendUnique(v string) func([]string) []string {
	return func(ids []string) []string {
		if slices.Contains(ids, v) {
			return ids
		}
		return append(ids, v)
	}
}

func (r *Repository) list(ctx context.Context, id, field string, sel func(*models.User) *[]string, fn func([]string) []string) (models.User, error) {
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		p := sel(&u)
		*p = fn(*p)
		return u, nil
	}, func(u models.User) map[string]any {
		var v any
		if ids := *sel(&u); len(ids) > 0 {
			v = ids
		}
		return map[string]any{field: v}
	})
}

func (r *Repository) CompleteTutorial(ctx context.Context, id string) (models.User, error) {
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		u.TutorialCompleted = true
		return u, nil
	}, func(u models.User) map[string]any {
		return map[string]any{"tutorialCompleted": true}
	})
}

func (r *Repository) SetTheme(ctx context.Context, id string, theme models.Theme) (models.User, error) {
	if theme != models.ThemeLight && theme != models.ThemeDark {
		return models.User{}, fmt.Errorf("theme %q: %w", theme, common.ErrorInvalidArgument)
	}
	return r.fields(ctx, id, func(u models.User) (models.User, error) {
		u.Theme = theme
		return u, nil
	}, func(u models.User) map[string]any {
		return map[string]any{"theme": u.Theme}
	})
}

// BanKey maps an email to its ban-list key: the base64url form of the
// normalized address. The prefix keeps keys from parsing as array indices.
func BanKey(email string) string {
	return "e" + base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(strings.TrimSpace(email))))
}

// Delete removes the user record. With banEmail the address is added to
// the ban list so it cannot register again. Neither write is reverted on
// failure.
func (r *Repository) Delete(ctx context.Context, id string, banEmail bool) error {
	u, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("user %s: %w", id, common.ErrorNotFound)
	}
	if err := r.Remove(ctx, id); err != nil {
		return err
	}
	if banEmail && u.Email != "" {
		r.BanEmail(ctx, u.Email)
	}
	return nil
}

// BanEmail adds email to the ban list.
func (r *Repository) BanEmail(ctx context.Context, email string) {
	key := BanKey(email)
	r.mu.Lock()
	r.banned[key] = struct{}{}
	r.mu.Unlock()

	entry := map[string]any{"email": strings.ToLower(email), "bannedAt": r.now().UTC()}
	r.mirror.Go(ctx, "bannedEmails", cache.OpDelete, key, func(ctx context.Context, s docstore.Store) error {
		return s.Set(ctx, docstore.Join(BannedRoot, key), entry)
	}, nil)
}

// IsEmailBanned checks the local ban list, then the store.
func (r *Repository) IsEmailBanned(ctx context.Context, email string) (bool, error) {
	key := BanKey(email)
	r.mu.RLock()
	_, ok := r.banned[key]
	r.mu.RUnlock()
	if ok {
		return true, nil
	}
	v, err := r.mirror.Store().Get(ctx, docstore.Join(BannedRoot, key))
	if err != nil {
		return false, fmt.Errorf("ban list: %w", err)
	}
	return v != nil, nil
}

// FindByEmail returns the user with the given address.
func (r *Repository) FindByEmail(email string) (models.User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	found := r.Find(func(u models.User) bool { return strings.ToLower(u.Email) == email })
	if len(found) == 0 {
		return models.User{}, false
	}
	return found[0], true
}

// Watch follows the remote record of one user. Every pushed value replaces
// the local copy, so the last write observed wins over pending local
// changes. A removed record is dropped locally.
func (r *Repository) Watch(ctx context.Context, id string) (docstore.Unsubscribe, error) {
	seen := false
	return r.mirror.Store().Subscribe(ctx, r.Path(id), func(v any) {
		if v == nil {
			// absent before the first remote value means the create is in flight
			if seen {
				r.RemoveLocal(id)
			}
			return
		}
		seen = true
		var u models.User
		if err := docstore.Decode(v, &u); err != nil {
			r.log.Warn(ctx, "undecodable user update", "user", id, "error", err)
			return
		}
		r.InsertLocal(u.WithKey(id))
	})
}
