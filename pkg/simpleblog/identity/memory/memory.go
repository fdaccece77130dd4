package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/identity"
)

type account struct {
	identity     simpleblog.Identity
	passwordHash string
}

// Service is an in-memory implementation of simpleblog.IdentityService
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*account // by user ID
	byEmail  map[string]string   // normalized email to user ID
	sessions map[string]simpleblog.Session

	ttl  time.Duration
	cost int
	now  func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithSessionTTL sets how long sessions stay valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new in-memory identity service
func New(opts ...Option) *Service {
	s := &Service{
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]simpleblog.Session),
		ttl:      identity.DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateAccount(ctx context.Context, userID, email, password, name string) (*simpleblog.Identity, error) {
	email = identity.NormalizeEmail(email)
	if err := identity.ValidateSignup(email, password); err != nil {
		return nil, err
	}
	hash, err := identity.HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = identity.NewUserID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, simpleblog.ErrAccountExists
	}
	if _, exists := s.accounts[userID]; exists {
		return nil, simpleblog.ErrAccountExists
	}

	acc := &account{
		identity: simpleblog.Identity{
			ID:        userID,
			Email:     email,
			Name:      name,
			CreatedAt: s.now().UTC(),
		},
		passwordHash: hash,
	}
	s.accounts[userID] = acc
	s.byEmail[email] = userID

	out := acc.identity
	return &out, nil
}

func (s *Service) CreateEmailPasswordSession(ctx context.Context, email, password string) (*simpleblog.Session, error) {
	s.mu.RLock()
	acc, ok := s.accounts[s.byEmail[identity.NormalizeEmail(email)]]
	s.mu.RUnlock()
	if !ok || !identity.CheckPassword(acc.passwordHash, password) {
		return nil, simpleblog.ErrInvalidCredentials
	}

	id, err := identity.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	session := simpleblog.Session{
		ID:        id,
		UserID:    acc.identity.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return &session, nil
}

func (s *Service) GetAccount(ctx context.Context, sessionID string) (*simpleblog.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || !s.now().Before(session.ExpiresAt) {
		return nil, simpleblog.ErrSessionNotFound
	}
	acc, ok := s.accounts[session.UserID]
	if !ok {
		return nil, simpleblog.ErrSessionNotFound
	}
	out := acc.identity
	return &out, nil
}

func (s *Service) DeleteSessions(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return simpleblog.ErrSessionNotFound
	}
	for id, other := range s.sessions {
		if other.UserID == session.UserID {
			delete(s.sessions, id)
		}
	}
	return nil
}

var _ simpleblog.IdentityService = (*Service)(nil)
