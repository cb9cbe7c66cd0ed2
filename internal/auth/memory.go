package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxFailedAttempts = 5
	identityBuffer    = 32
)

var validate = validator.New()

type account struct {
	id       string
	email    string
	hash     []byte
	verified bool
	disabled bool
	failures int
}

// MemoryProvider is an in-process Provider backed by bcrypt hashes.
type MemoryProvider struct {
	mu         sync.Mutex
	tokens     *Tokens
	accounts   map[string]*account // by normalized email
	byID       map[string]*account
	codes      map[string]string // verification code -> email
	events     chan *Identity
	subscribed bool
	cost       int
	now        func() time.Time
}

func NewMemoryProvider(tokens *Tokens) *MemoryProvider {
	return &MemoryProvider{
		tokens:   tokens,
		accounts: map[string]*account{},
		byID:     map[string]*account{},
		codes:    map[string]string{},
		events:   make(chan *Identity, identityBuffer),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *MemoryProvider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return Identity{}, newError(CodeInvalidEmail)
	}
	if len(password) < minPasswordLength {
		return Identity{}, newError(CodeWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[email]; ok {
		return Identity{}, newError(CodeEmailInUse)
	}
	a := &account{id: uuid.NewString(), email: email, hash: hash}
	p.accounts[email] = a
	p.byID[a.id] = a
	p.issueCode(email)

	return Identity{UserID: a.id, Email: email}, nil
}

func (p *MemoryProvider) issueCode(email string) string {
	for c, e := range p.codes {
		if e == email {
			delete(p.codes, c)
		}
	}
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	code := hex.EncodeToString(b)
	p.codes[code] = email
	return code
}

// SendVerification replaces any outstanding code for email.
func (p *MemoryProvider) SendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[email]; !ok {
		return newError(CodeUserNotFound)
	}
	p.issueCode(email)
	return nil
}

// VerificationCode returns the outstanding code for email. It stands in for
// the verification mail.
func (p *MemoryProvider) VerificationCode(email string) (string, bool) {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	for c, e := range p.codes {
		if e == email {
			return c, true
		}
	}
	return "", false
}

func (p *MemoryProvider) Verify(ctx context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.codes[code]
	if !ok {
		return newError(CodeExpiredActionCode)
	}
	delete(p.codes, code)
	if a, ok := p.accounts[email]; ok {
		a.verified = true
	}
	return nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.accounts[email]
	if !ok {
		return Identity{}, newError(CodeUserNotFound)
	}
	if a.disabled {
		return Identity{}, newError(CodeUserDisabled)
	}
	if a.failures >= maxFailedAttempts {
		return Identity{}, newError(CodeTooManyRequests)
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		a.failures++
		return Identity{}, newError(CodeWrongPassword)
	}
	a.failures = 0
	if !a.verified {
		return Identity{}, newError(CodeEmailNotVerified)
	}

	id, err := p.identity(a)
	if err != nil {
		return Identity{}, err
	}
	p.emit(&id)
	return id, nil
}

func (p *MemoryProvider) identity(a *account) (Identity, error) {
	token, err := p.tokens.Issue(a.id, p.now())
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: a.id, Email: a.email, Verified: a.verified, Token: token}, nil
}

func (p *MemoryProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(nil)
	return nil
}

// Reauthenticate checks the password again and returns a token with a fresh
// auth time.
func (p *MemoryProvider) Reauthenticate(ctx context.Context, token, password string) (Identity, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byID[claims.UserID]
	if !ok {
		return Identity{}, newError(CodeUserNotFound)
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return Identity{}, newError(CodeInvalidCredential)
	}
	return p.identity(a)
}

func (p *MemoryProvider) ChangePassword(ctx context.Context, token, newPassword string) error {
	claims, err := p.tokens.RequireRecent(token)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return newError(CodeWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.byID[claims.UserID]
	if !ok {
		return newError(CodeUserNotFound)
	}
	a.hash = hash
	return nil
}

func (p *MemoryProvider) DeleteAccount(ctx context.Context, token string) error {
	claims, err := p.tokens.RequireRecent(token)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.byID[claims.UserID]
	if !ok {
		return newError(CodeUserNotFound)
	}
	delete(p.byID, a.id)
	delete(p.accounts, a.email)
	p.emit(nil)
	return nil
}

// Disable blocks further sign-ins for email.
func (p *MemoryProvider) Disable(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.accounts[normalizeEmail(email)]; ok {
		a.disabled = true
	}
}

func (p *MemoryProvider) Identities() (<-chan *Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscribed {
		return nil, ErrIdentitiesSubscribed
	}
	p.subscribed = true
	return p.events, nil
}

// emit drops the event when nobody listens or the buffer is full.
// Caller holds p.mu.
func (p *MemoryProvider) emit(id *Identity) {
	if !p.subscribed {
		return
	}
	select {
	case p.events <- id:
	default:
	}
}
