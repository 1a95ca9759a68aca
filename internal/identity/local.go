package identity

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"orderdesk/internal/logger"
	"orderdesk/internal/store"
)

const (
	maxFailedAttempts  = 5
	failedAttemptsSpan = 15 * time.Minute
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// credential is the document stored at credentials/{uid}.
type credential struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type attemptWindow struct {
	count int
	since time.Time
}

// LocalProvider verifies email/password credentials kept in the store. Failed
// attempts per email are throttled; a forced SignOut revokes the session until
// the next successful SignIn.
type LocalProvider struct {
	store store.Store

	mu        sync.Mutex
	revoked   map[string]bool
	attempts  map[string]attemptWindow
	listeners map[int]func(AuthChange)
	nextID    int
}

// NewLocalProvider returns a provider backed by the given store.
func NewLocalProvider(s store.Store) *LocalProvider {
	return &LocalProvider{
		store:     s,
		revoked:   make(map[string]bool),
		attempts:  make(map[string]attemptWindow),
		listeners: make(map[int]func(AuthChange)),
	}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if p.isThrottled(email) {
		return nil, ErrRateLimited
	}

	uid, cred, err := p.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		p.recordFailure(email)
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		p.recordFailure(email)
		return nil, ErrWrongPassword
	}

	session := &Session{UserID: uid, Email: cred.Email}

	p.mu.Lock()
	delete(p.revoked, uid)
	delete(p.attempts, strings.ToLower(email))
	p.mu.Unlock()

	p.notify(AuthChange{UserID: uid, Session: session})
	return session, nil
}

func (p *LocalProvider) SignOut(userID string) {
	p.mu.Lock()
	p.revoked[userID] = true
	p.mu.Unlock()

	log := logger.WithComponent("identity")
	log.Info().Str("user_id", userID).Msg("session revoked")
	p.notify(AuthChange{UserID: userID, Session: nil})
}

func (p *LocalProvider) IsSignedIn(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.revoked[userID]
}

func (p *LocalProvider) OnAuthChange(fn func(AuthChange)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Register stores a bcrypt credential for the user. Profiles are provisioned
// separately; a credential alone never grants access.
func (p *LocalProvider) Register(ctx context.Context, userID, email, password string) error {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, store.CredentialPath(userID), credential{
		Email:        email,
		PasswordHash: string(hash),
	})
}

func (p *LocalProvider) lookupByEmail(ctx context.Context, email string) (string, credential, error) {
	raw, err := p.store.Get(ctx, store.CredentialsRoot)
	if err != nil {
		return "", credential{}, err
	}
	if raw == nil {
		return "", credential{}, nil
	}
	var all map[string]credential
	if err := json.Unmarshal(raw, &all); err != nil {
		return "", credential{}, err
	}
	for uid, cred := range all {
		if strings.EqualFold(cred.Email, email) {
			return uid, cred, nil
		}
	}
	return "", credential{}, nil
}

func (p *LocalProvider) isThrottled(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	window, ok := p.attempts[strings.ToLower(email)]
	if !ok || time.Since(window.since) > failedAttemptsSpan {
		return false
	}
	return window.count >= maxFailedAttempts
}

func (p *LocalProvider) recordFailure(email string) {
	key := strings.ToLower(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	window := p.attempts[key]
	if window.count == 0 || time.Since(window.since) > failedAttemptsSpan {
		window = attemptWindow{since: time.Now()}
	}
	window.count++
	p.attempts[key] = window
}

func (p *LocalProvider) notify(change AuthChange) {
	p.mu.Lock()
	fns := make([]func(AuthChange), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}
