package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/auth"
	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/memory"
	"github.com/dmitrijs2005/promptmarket/internal/generation"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/promo"
	"github.com/dmitrijs2005/promptmarket/internal/propagation"
	"github.com/dmitrijs2005/promptmarket/internal/quota"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/collections"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/feedback"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/promocodes"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/prompts"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/users"
	"github.com/stretchr/testify/require"
)

var june10 = time.Date(2023, time.June, 10, 12, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) GeneratePrompt(ctx context.Context, req generation.Request) (generation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return generation.Result{}, g.err
	}
	return generation.Result{Title: "Title", Prompt: "Prompt for " + req.Goal, Tags: []string{"t"}}, nil
}

func (g *fakeGenerator) GenerateExample(ctx context.Context, prompt string) (string, error) {
	return "example", g.err
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeProcessor struct {
	mu      sync.Mutex
	amounts []int64
	err     error
}

func (p *fakeProcessor) Charge(ctx context.Context, userID string, amountCents int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.amounts = append(p.amounts, amountCents)
	return nil
}

func (p *fakeProcessor) charged() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.amounts...)
}

var errDeclined = errors.Join(common.ErrPaymentFailed, errors.New("declined"))

type fixture struct {
	store    *memory.Store
	mirror   *cache.Mirror
	repos    Repositories
	tracker  *quota.Tracker
	provider *auth.MemoryProvider
	gen      *fakeGenerator
	payments *fakeProcessor

	generation *GenerationService
	submission *SubmissionService
	voting     *VotingService
	checkout   *CheckoutService
	moderation *ModerationService
	accounts   *AccountService
}

// newFixture wires every repository over one memory store. seed runs before
// the repositories load.
func newFixture(t *testing.T, seed func(s *memory.Store)) *fixture {
	t.Helper()
	log := logging.NewNop()
	store := memory.New()
	if seed != nil {
		seed(store)
	}

	mirror := cache.NewMirror(store, nil, log, nil)
	tracker := quota.New(quota.Limits{FreeGenerations: 5, FreeSubmissions: 2, ProSubmissions: 10}, time.UTC)
	tracker.Now = func() time.Time { return june10 }

	repos := Repositories{
		Prompts:     prompts.New(mirror, log, nil),
		Collections: collections.New(mirror, log, nil),
		Feedback:    feedback.New(mirror, log, nil),
		PromoCodes:  promocodes.New(mirror, log, nil),
	}
	prop := propagation.New(mirror, repos.Prompts, repos.Collections, repos.Feedback, log, nil)
	repos.Users = users.New(mirror, prop, tracker, log, nil)

	ctx := context.Background()
	repos.Users.Load(ctx)
	repos.Prompts.Load(ctx)
	repos.Collections.Load(ctx)
	repos.Feedback.Load(ctx)
	repos.PromoCodes.Load(ctx)

	f := &fixture{
		store:    store,
		mirror:   mirror,
		repos:    repos,
		tracker:  tracker,
		provider: auth.NewMemoryProvider(auth.NewTokens([]byte("k"), time.Hour, 5*time.Minute)),
		gen:      &fakeGenerator{},
		payments: &fakeProcessor{},
	}
	f.generation = NewGenerationService(repos, tracker, f.gen, log, nil)
	f.submission = NewSubmissionService(repos, tracker, log, nil)
	f.voting = NewVotingService(repos)
	f.checkout = NewCheckoutService(repos, promo.NewValidator(repos.PromoCodes, nil), f.payments, 1000, log)
	f.moderation = NewModerationService(repos, log)
	f.accounts = NewAccountService(repos, f.provider, mirror, log, nil)
	// remote echoes would race the local reads these tests make after a
	// mirror wait; the accounts tests turn it back on
	f.accounts.SetProfileWatch(false)
	t.Cleanup(mirror.Wait)
	return f
}

func seedUser(t *testing.T, s *memory.Store, u models.User) {
	t.Helper()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = models.UserActive
	}
	if u.Tier == "" {
		u.Tier = models.TierFree
	}
	if u.Email == "" {
		u.Email = u.ID + "@example.com"
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	require.NoError(t, s.Seed("users/"+u.ID, u))
}

func (f *fixture) user(t *testing.T, id string) models.User {
	t.Helper()
	u, ok := f.repos.Users.Get(id)
	require.True(t, ok, "user %s", id)
	return u
}

func (f *fixture) remote(t *testing.T, path string) any {
	t.Helper()
	f.mirror.Wait()
	v, err := f.store.Get(context.Background(), path)
	require.NoError(t, err)
	return v
}
