package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/promptmarket/internal/auth"
	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/history"
)

// Session is a signed-in user with their history opened and, unless
// disabled, a live subscription on their profile record.
type Session struct {
	Identity auth.Identity
	User     models.User
	History  *history.Repository

	unwatch docstore.Unsubscribe
}

func (s *Session) UserID() string { return s.Identity.UserID }

// Watching reports whether the profile subscription is active.
func (s *Session) Watching() bool { return s.unwatch != nil }

func (s *Session) close() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	if s.History != nil {
		s.History.Close()
	}
}

// AccountService drives sign-up, sign-in and account changes.
type AccountService struct {
	repos    Repositories
	provider auth.Provider
	mirror   *cache.Mirror
	log      logging.Logger
	metrics  *metrics.Metrics
	watch    bool

	mu      sync.Mutex
	pending map[string]string // user id -> display name chosen at sign-up
}

func NewAccountService(repos Repositories, p auth.Provider, mirror *cache.Mirror, log logging.Logger, m *metrics.Metrics) *AccountService {
	return &AccountService{
		repos:    repos,
		provider: p,
		mirror:   mirror,
		log:      log.With("module", "accounts"),
		metrics:  m,
		watch:    true,
		pending:  map[string]string{},
	}
}

// SetProfileWatch turns the realtime profile subscription of new sessions
// on or off. It is on by default.
func (s *AccountService) SetProfileWatch(on bool) {
	s.watch = on
}

// SignUp registers an account. The profile is created on the first verified
// sign-in.
func (s *AccountService) SignUp(ctx context.Context, email, password, name string) (auth.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return auth.Identity{}, fmt.Errorf("empty name: %w", common.ErrorInvalidArgument)
	}
	banned, err := s.repos.Users.IsEmailBanned(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	if banned {
		return auth.Identity{}, fmt.Errorf("sign up: %w", common.ErrorBanned)
	}

	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return auth.Identity{}, err
	}
	s.mu.Lock()
	s.pending[id.UserID] = name
	s.mu.Unlock()
	return id, nil
}

// SignIn authenticates, creates the profile if this is the first verified
// sign-in, opens the user's history and subscribes to the profile record.
// Remote values replace the local copy as they arrive, racing with pending
// local writes.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	u, err := s.profile(ctx, id)
	if err != nil {
		_ = s.provider.SignOut(ctx)
		return nil, err
	}
	if u.IsBanned() {
		_ = s.provider.SignOut(ctx)
		return nil, fmt.Errorf("sign in: %w", common.ErrorBanned)
	}

	sess := &Session{
		Identity: id,
		User:     u,
		History:  history.Open(ctx, s.mirror, id.UserID, s.log, s.metrics),
	}
	if s.watch {
		// the session outlives the sign-in call
		unwatch, err := s.repos.Users.Watch(context.WithoutCancel(ctx), id.UserID)
		if err != nil {
			s.log.Warn(ctx, "profile watch failed", "user", id.UserID, "error", err)
		} else {
			sess.unwatch = unwatch
		}
	}
	return sess, nil
}

func (s *AccountService) profile(ctx context.Context, id auth.Identity) (models.User, error) {
	if u, ok := s.repos.Users.Get(id.UserID); ok {
		return u, nil
	}

	banned, err := s.repos.Users.IsEmailBanned(ctx, id.Email)
	if err != nil {
		return models.User{}, err
	}
	if banned {
		return models.User{}, fmt.Errorf("sign in: %w", common.ErrorBanned)
	}

	s.mu.Lock()
	name, ok := s.pending[id.UserID]
	delete(s.pending, id.UserID)
	s.mu.Unlock()
	if !ok {
		name, _, _ = strings.Cut(id.Email, "@")
	}

	u, err := s.repos.Users.Create(ctx, models.User{ID: id.UserID, Email: id.Email, Name: name})
	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		u, _ = s.repos.Users.Get(id.UserID)
	case err != nil:
		return models.User{}, fmt.Errorf("create profile: %w", err)
	default:
		s.log.Info(ctx, "profile created", "user", id.UserID)
	}
	return u, nil
}

// SignOut ends the profile subscription and closes the session's history.
func (s *AccountService) SignOut(ctx context.Context, sess *Session) error {
	sess.close()
	return s.provider.SignOut(ctx)
}

func (s *AccountService) UpdateProfile(ctx context.Context, sess *Session, upd models.ProfileUpdate) (models.User, error) {
	u, err := s.repos.Users.UpdateProfile(ctx, sess.UserID(), upd)
	if err != nil {
		return models.User{}, err
	}
	sess.User = u
	return u, nil
}

// ChangePassword re-checks the current password first, then sets the new one.
func (s *AccountService) ChangePassword(ctx context.Context, sess *Session, current, next string) error {
	fresh, err := s.provider.Reauthenticate(ctx, sess.Identity.Token, current)
	if err != nil {
		return err
	}
	sess.Identity = fresh
	return s.provider.ChangePassword(ctx, fresh.Token, next)
}

// DeleteAccount re-checks the password, deletes the identity, clears the
// history and removes the profile. With banEmail the address cannot sign up
// again.
func (s *AccountService) DeleteAccount(ctx context.Context, sess *Session, password string, banEmail bool) error {
	fresh, err := s.provider.Reauthenticate(ctx, sess.Identity.Token, password)
	if err != nil {
		return err
	}
	if err := s.provider.DeleteAccount(ctx, fresh.Token); err != nil {
		return err
	}

	uid := sess.UserID()
	if sess.History != nil {
		if err := sess.History.Clear(ctx); err != nil {
			s.log.Warn(ctx, "history not cleared", "user", uid, "error", err)
		}
	}
	sess.close()
	if err := s.repos.Users.Delete(ctx, uid, banEmail); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}
