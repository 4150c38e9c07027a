package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"koydenal/internal/models"
	"koydenal/internal/observability"

	"github.com/google/uuid"
)

var (
	ErrProfileLookup    = errors.New("Profil bilgileri alınamadı")
	ErrNotAdmin         = errors.New("Bu hesap yönetici hesabı değil")
	ErrAdminNotApproved = errors.New("Yönetici hesabınız henüz onaylanmadı")
)

// Verdict is the admin gate's answer for one principal.
type Verdict int

const (
	VerdictNotAdmin Verdict = iota
	VerdictPendingAdmin
	VerdictAdmin
)

func (v Verdict) String() string {
	switch v {
	case VerdictAdmin:
		return "admin"
	case VerdictPendingAdmin:
		return "pending_admin"
	default:
		return "not_admin"
	}
}

// IsAdmin reports whether the verdict grants admin capability.
func (v Verdict) IsAdmin() bool { return v == VerdictAdmin }

// VerdictFor derives the verdict from a profile. Only an approved admin is an admin.
func VerdictFor(u *models.User) Verdict {
	switch {
	case u.IsApprovedAdmin():
		return VerdictAdmin
	case u.Role == models.RoleAdmin:
		return VerdictPendingAdmin
	default:
		return VerdictNotAdmin
	}
}

// AdminState holds the last known verdict of every signed-in admin or
// pending admin. Principals without an admin role have no entry.
type AdminState struct {
	mu       sync.RWMutex
	verdicts map[uuid.UUID]Verdict
	nextID   int
	subs     map[int]func(uuid.UUID, Verdict)
}

func NewAdminState() *AdminState {
	return &AdminState{
		verdicts: make(map[uuid.UUID]Verdict),
		subs:     make(map[int]func(uuid.UUID, Verdict)),
	}
}

func (s *AdminState) Get(userID uuid.UUID) (Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[userID]
	return v, ok
}

// Set stores a verdict and notifies subscribers when it changed.
func (s *AdminState) Set(userID uuid.UUID, v Verdict) {
	s.mu.Lock()
	prev, had := s.verdicts[userID]
	s.verdicts[userID] = v
	subs := s.snapshotLocked()
	s.mu.Unlock()
	if had && prev == v {
		return
	}
	for _, fn := range subs {
		fn(userID, v)
	}
}

// Clear forgets the principal. Subscribers see VerdictNotAdmin.
func (s *AdminState) Clear(userID uuid.UUID) {
	s.mu.Lock()
	_, had := s.verdicts[userID]
	delete(s.verdicts, userID)
	subs := s.snapshotLocked()
	s.mu.Unlock()
	if !had {
		return
	}
	for _, fn := range subs {
		fn(userID, VerdictNotAdmin)
	}
}

// Subscribe registers fn for verdict changes and returns its cancel func.
func (s *AdminState) Subscribe(fn func(uuid.UUID, Verdict)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *AdminState) snapshotLocked() []func(uuid.UUID, Verdict) {
	out := make([]func(uuid.UUID, Verdict), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// ProfileLookup loads a user profile by id.
type ProfileLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AdminGate reads the principal's profile to decide admin capability.
type AdminGate struct {
	profiles ProfileLookup
	state    *AdminState
}

func NewAdminGate(profiles ProfileLookup, state *AdminState) *AdminGate {
	if state == nil {
		state = NewAdminState()
	}
	return &AdminGate{profiles: profiles, state: state}
}

func (g *AdminGate) State() *AdminState { return g.state }

// Current returns the stored verdict. A principal with no entry is not an admin.
func (g *AdminGate) Current(userID uuid.UUID) Verdict {
	v, ok := g.state.Get(userID)
	if !ok {
		return VerdictNotAdmin
	}
	return v
}

// Check loads the profile and records the fresh verdict. Lookup failures
// return ErrProfileLookup and leave the principal without admin capability.
func (g *AdminGate) Check(ctx context.Context, userID uuid.UUID) (Verdict, error) {
	user, err := g.profiles.GetByID(ctx, userID)
	if err != nil {
		g.state.Clear(userID)
		return VerdictNotAdmin, fmt.Errorf("%w: %w", ErrProfileLookup, err)
	}
	v := VerdictFor(user)
	if v == VerdictNotAdmin {
		g.state.Clear(userID)
	} else {
		g.state.Set(userID, v)
	}
	return v, nil
}

// Attach recomputes the verdict on every sign-in and restore, and drops it
// on sign-out. It returns the unsubscribe func.
func (g *AdminGate) Attach(m *Manager) func() {
	return m.Subscribe(func(ctx context.Context, ev Event) {
		userID := ev.Session.UserID
		if ev.Kind == SignedOut {
			g.state.Clear(userID)
			return
		}
		if _, err := g.Check(ctx, userID); err != nil {
			slog.WarnContext(ctx, "admin gate recompute failed", "user_id", userID.String(), "error", err)
		}
	})
}

// AdminLogin signs in and requires an approved admin. Any other outcome signs
// the fresh session out again and returns one of ErrBadCredentials,
// ErrProfileLookup, ErrNotAdmin or ErrAdminNotApproved.
func AdminLogin(ctx context.Context, m *Manager, gate *AdminGate, email, password string) (*Session, error) {
	sess, err := m.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			observability.AdminLogins.WithLabelValues("bad_credentials").Inc()
			return nil, ErrBadCredentials
		}
		observability.AdminLogins.WithLabelValues("error").Inc()
		return nil, err
	}

	verdict, err := gate.Check(ctx, sess.UserID)
	var denial error
	switch {
	case err != nil:
		denial = ErrProfileLookup
		observability.AdminLogins.WithLabelValues("profile_lookup").Inc()
	case verdict == VerdictPendingAdmin:
		denial = ErrAdminNotApproved
	case verdict != VerdictAdmin:
		denial = ErrNotAdmin
	}
	if err == nil {
		observability.AdminLogins.WithLabelValues(verdict.String()).Inc()
	}
	if denial == nil {
		return sess, nil
	}

	if signOutErr := m.SignOut(ctx, sess); signOutErr != nil {
		slog.ErrorContext(ctx, "failed to sign out rejected admin session",
			"user_id", sess.UserID.String(), "error", signOutErr)
	}
	return nil, denial
}
