// Package session issues and revokes sign-in sessions and derives the admin
// verdict of the signed-in principal.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"koydenal/internal/cache"
	"koydenal/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	Issuer   = "koydenal-api"
	Audience = "koydenal-client"
)

var (
	// ErrBadCredentials covers unknown emails and wrong passwords alike.
	ErrBadCredentials = errors.New("E-posta veya şifre hatalı")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrRevoked        = errors.New("token has been revoked")
)

// Session is one signed-in principal holding a bearer token.
type Session struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	JTI       string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EventKind names an authentication state change.
type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
	Restored  EventKind = "restored"
)

// Event is delivered to subscribers on every authentication state change.
type Event struct {
	Kind    EventKind
	Session *Session
}

// UserLookup is the slice of the user store sessions need.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Config holds token signing settings.
type Config struct {
	Secret string
	TTL    time.Duration
}

// Manager signs principals in and out. Revoked token ids live in Redis
// until the token would have expired anyway.
type Manager struct {
	users  UserLookup
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(context.Context, Event)
}

func NewManager(users UserLookup, rdb *redis.Client, cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		users:  users,
		rdb:    rdb,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
		subs:   make(map[int]func(context.Context, Event)),
	}
}

// Subscribe registers fn for every future event and returns its cancel func.
// Events are delivered synchronously in the caller's goroutine.
func (m *Manager) Subscribe(fn func(context.Context, Event)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	m.mu.RLock()
	subs := make([]func(context.Context, Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, ev)
	}
}

// SignIn checks the credential pair and issues a session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return m.Issue(ctx, user.ID)
}

// Issue creates a session for an already authenticated user, e.g. right after registration.
func (m *Manager) Issue(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}
	now := m.now()
	sess := &Session{
		UserID:    userID,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        sess.JTI,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	sess.Token = token
	m.emit(ctx, Event{Kind: SignedIn, Session: sess})
	return sess, nil
}

// Restore turns a bearer token back into a session, rejecting revoked tokens.
func (m *Manager) Restore(ctx context.Context, token string) (*Session, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if m.rdb != nil {
		n, err := m.rdb.Exists(ctx, cache.BlacklistKey(claims.ID)).Result()
		if err != nil {
			slog.WarnContext(ctx, "token blacklist check failed", "error", err)
		} else if n > 0 {
			return nil, ErrRevoked
		}
	}

	sess := &Session{
		Token:     token,
		UserID:    userID,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	m.emit(ctx, Event{Kind: Restored, Session: sess})
	return sess, nil
}

// SignOut revokes the session's token id until its expiry.
func (m *Manager) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if m.rdb != nil {
		ttl := sess.ExpiresAt.Sub(m.now())
		if ttl > 0 {
			if err := m.rdb.Set(ctx, cache.BlacklistKey(sess.JTI), "1", ttl).Err(); err != nil {
				return fmt.Errorf("revoke token: %w", err)
			}
		}
	} else {
		slog.WarnContext(ctx, "redis unavailable, token stays valid until expiry", "user_id", sess.UserID.String())
	}
	m.emit(ctx, Event{Kind: SignedOut, Session: sess})
	return nil
}
