package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/identity"
)

// Schema creates the accounts and sessions tables.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_account_idx ON sessions (account_id);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Service implements simpleblog.IdentityService using PostgreSQL
type Service struct {
	db   DBTX
	ttl  time.Duration
	cost int
	now  func() time.Time
}

// New creates a new PostgreSQL identity service. A zero ttl uses
// identity.DefaultSessionTTL and a zero cost uses the bcrypt default.
func New(db DBTX, ttl time.Duration, cost int) *Service {
	if ttl == 0 {
		ttl = identity.DefaultSessionTTL
	}
	return &Service{db: db, ttl: ttl, cost: cost, now: time.Now}
}

// NewWithPool creates a new PostgreSQL identity service with connection pool
func NewWithPool(pool *pgxpool.Pool) *Service {
	return New(pool, 0, 0)
}

// Migrate creates the identity tables if they do not exist
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate identity schema: %w", err)
	}
	return nil
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

	acc := &simpleblog.Identity{ID: userID, Email: email, Name: name, CreatedAt: s.now().UTC()}
	_, err = s.db.Exec(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Email, acc.Name, hash, acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, simpleblog.ErrAccountExists
		}
		return nil, fmt.Errorf("database error in create account: %w", err)
	}
	return acc, nil
}

func (s *Service) CreateEmailPasswordSession(ctx context.Context, email, password string) (*simpleblog.Session, error) {
	var accountID, hash string
	err := s.db.QueryRow(ctx,
		`SELECT id, password_hash FROM accounts WHERE email = $1`,
		identity.NormalizeEmail(email)).Scan(&accountID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpleblog.ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("database error in create session: %w", err)
	}
	if !identity.CheckPassword(hash, password) {
		return nil, simpleblog.ErrInvalidCredentials
	}

	id, err := identity.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	session := &simpleblog.Session{ID: id, UserID: accountID, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	_, err = s.db.Exec(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("database error in create session: %w", err)
	}
	return session, nil
}

func (s *Service) GetAccount(ctx context.Context, sessionID string) (*simpleblog.Identity, error) {
	var acc simpleblog.Identity
	err := s.db.QueryRow(ctx, `
		SELECT a.id, a.email, a.name, a.created_at
		FROM sessions s JOIN accounts a ON a.id = s.account_id
		WHERE s.id = $1 AND s.expires_at > $2`,
		sessionID, s.now().UTC()).Scan(&acc.ID, &acc.Email, &acc.Name, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpleblog.ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error in get account: %w", err)
	}
	return &acc, nil
}

func (s *Service) DeleteSessions(ctx context.Context, sessionID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sessions
		WHERE account_id = (SELECT account_id FROM sessions WHERE id = $1)`,
		sessionID)
	if err != nil {
		return fmt.Errorf("database error in delete sessions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrSessionNotFound
	}
	return nil
}

var _ simpleblog.IdentityService = (*Service)(nil)
