package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/session"
	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
	"github.com/sirupsen/logrus"
)

const defaultSessionTTL = 24 * time.Hour

// fallbackPlaceholderHash is a well-formed bcrypt digest (cost 10). Its
// plaintext does not matter: the comparison result is discarded.
const fallbackPlaceholderHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// SessionStore persists sessions. Get must report expired or missing
// sessions as store.ErrNotFound; Delete must tolerate missing IDs.
type SessionStore interface {
	Create(ctx context.Context, s types.Session) error
	Get(ctx context.Context, id string) (types.Session, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher receives audit events. Implementations must not block
// the request on broker failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.AuthEvent)
}

// Identity is what a live session resolves to: the session itself and
// the user record as it is right now.
type Identity struct {
	Session types.Session
	User    types.User
}

// AuthService owns the credential lifecycle and answers the two guard
// questions: is this session authenticated, and is it an admin.
//
// Roles are never cached. IsAdmin and Identify read the user record on
// every call, so a promotion or demotion applies on the next request.
type AuthService struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	events   EventPublisher
	log      logrus.FieldLogger
	ttl      time.Duration
	now      func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL sets how long new sessions stay valid.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithEvents sets the audit event sink.
func WithEvents(events EventPublisher) AuthOption {
	return func(s *AuthService) {
		if events != nil {
			s.events = events
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(log logrus.FieldLogger) AuthOption {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

func NewAuthService(users UserRepository, sessions SessionStore, hasher PasswordHasher, opts ...AuthOption) *AuthService {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		events:   noopPublisher{},
		log:      discard,
		ttl:      defaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with the default role. The caller is expected
// to Authenticate the new identity right away.
func (s *AuthService) Register(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if err := validate.Struct(credentialsInput{Username: username, Password: password}); err != nil {
		return types.User{}, validationError(err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return types.User{}, err
		}
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     username,
		Role:         types.RoleUser,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, s.storeFailure("register", username, err)
	}

	s.publish(ctx, types.EventUserRegistered, user.Username, user.Role)
	return user, nil
}

// Authenticate checks the password and opens a new session. Unknown
// usernames still pay for one hash comparison so both failure paths take
// about the same time.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Identity{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Identity{}, s.storeFailure("authenticate", username, err)
		}
		_ = s.hasher.Compare(s.placeholderHash(), password)
		s.publish(ctx, types.EventLoginFailed, username, "")
		return Identity{}, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.publish(ctx, types.EventLoginFailed, username, "")
		return Identity{}, ErrInvalidCredentials
	}

	now := s.now()
	sess := types.Session{
		ID:        session.NewID(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return Identity{}, s.storeFailure("create session", username, err)
	}

	s.publish(ctx, types.EventLoginSucceeded, user.Username, user.Role)
	return Identity{Session: sess, User: user}, nil
}

// ChangePassword replaces the credential material of the session's user.
// The session stays valid afterwards.
func (s *AuthService) ChangePassword(ctx context.Context, sessionID, newPassword string) error {
	sess, err := s.liveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := validate.Struct(passwordInput{Password: newPassword}); err != nil {
		return validationError(err)
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.storeFailure("change password", sess.Username, err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return err
		}
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.Username, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.storeFailure("change password", user.Username, err)
	}

	s.publish(ctx, types.EventPasswordChanged, user.Username, "")
	return nil
}

// Identify resolves a session ID to the session and a fresh copy of its user.
// The user is looked up by ID, so a session never follows a username that
// was deleted and registered again.
func (s *AuthService) Identify(ctx context.Context, sessionID string) (Identity, error) {
	sess, err := s.liveSession(ctx, sessionID)
	if err != nil {
		return Identity{}, err
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, s.storeFailure("identify", sess.Username, err)
	}
	return Identity{Session: sess, User: user}, nil
}

// IsAuthenticated reports whether sessionID names a live session whose
// user still exists.
func (s *AuthService) IsAuthenticated(ctx context.Context, sessionID string) bool {
	_, err := s.Identify(ctx, sessionID)
	return err == nil
}

// IsAdmin reports whether the session is authenticated and its user
// currently holds the admin role.
func (s *AuthService) IsAdmin(ctx context.Context, sessionID string) bool {
	identity, err := s.Identify(ctx, sessionID)
	return err == nil && identity.User.IsAdmin()
}

// Logout destroys the session. Logging out an unknown or already
// destroyed session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	sess, getErr := s.sessions.Get(ctx, sessionID)
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return s.storeFailure("logout", sess.Username, err)
	}
	if getErr == nil {
		s.publish(ctx, types.EventLoggedOut, sess.Username, "")
	}
	return nil
}

func (s *AuthService) liveSession(ctx context.Context, sessionID string) (types.Session, error) {
	if sessionID == "" {
		return types.Session{}, ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, ErrUnauthenticated
		}
		return types.Session{}, s.storeFailure("load session", "", err)
	}
	if sess.Expired(s.now()) {
		return types.Session{}, ErrUnauthenticated
	}
	return sess, nil
}

// placeholderHash returns a digest at the configured cost for comparing
// against when the username is unknown. A failed derivation is retried on
// the next call; meanwhile a fixed digest keeps the comparison expensive.
func (s *AuthService) placeholderHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}
	hashed, err := s.hasher.Hash(session.NewID())
	if err != nil {
		s.log.WithError(err).Warn("failed to derive placeholder hash")
		return fallbackPlaceholderHash
	}
	s.dummyHash = hashed
	return hashed
}

func (s *AuthService) storeFailure(op, username string, err error) error {
	s.log.WithError(err).WithFields(logrus.Fields{
		"op":       op,
		"username": username,
	}).Error("credential store failure")
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (s *AuthService) publish(ctx context.Context, kind types.AuthEventType, username string, role types.Role) {
	s.events.Publish(ctx, types.AuthEvent{
		Type:     kind,
		Username: username,
		Role:     role,
		At:       s.now().UTC(),
	})
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, types.AuthEvent) {}
