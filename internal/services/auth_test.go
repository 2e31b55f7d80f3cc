package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rolegate/rolegate/internal/session"
	"github.com/rolegate/rolegate/internal/store/storetest"
	"github.com/rolegate/rolegate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Compare(hash, password string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.PasswordHasher.Compare(hash, password)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e types.AuthEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) kinds() []types.AuthEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.AuthEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *AuthService
	users    *storetest.UserRepository
	sessions *session.MemoryStore
	hasher   *countingHasher
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    storetest.NewUserRepository(),
		sessions: session.NewMemoryStore(),
		hasher:   &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)},
		events:   &recordingPublisher{},
	}
	f.svc = NewAuthService(f.users, f.sessions, f.hasher,
		WithSessionTTL(time.Hour),
		WithEvents(f.events),
	)
	return f
}

func TestRegisterThenAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.NotEqual(t, "pw123", user.PasswordHash)

	identity, err := f.svc.Authenticate(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.User.Username)
	assert.Equal(t, types.RoleUser, identity.User.Role)
	assert.NotEmpty(t, identity.Session.ID)
	assert.True(t, f.svc.IsAuthenticated(ctx, identity.Session.ID))
	assert.False(t, f.svc.IsAdmin(ctx, identity.Session.ID))

	assert.Equal(t, []types.AuthEventType{types.EventUserRegistered, types.EventLoginSucceeded}, f.events.kinds())
}

func TestRegister_DuplicateKeepsOriginalCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "first")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice", "second")
	require.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = f.svc.Authenticate(ctx, "alice", "first")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, "alice", "second")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "bob", ""},
		{"space in username", "bob smith", "pw"},
		{"long username", strings.Repeat("u", 65), "pw"},
		{"long password", "bob", strings.Repeat("p", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.username, tt.password)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_AssignsUserRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "mallory", "pw")
	require.NoError(t, err)

	stored, err := f.users.GetByUsername(ctx, "mallory")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, stored.Role)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw123")
	require.NoError(t, err)

	before := f.hasher.compares
	_, wrongPw := f.svc.Authenticate(ctx, "alice", "nope")
	_, noUser := f.svc.Authenticate(ctx, "nobody", "nope")

	require.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	require.ErrorIs(t, noUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), noUser.Error())
	assert.Equal(t, 2, f.hasher.compares-before, "both paths must run one hash comparison")
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthenticate_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.users.Err = errors.New("connection refused")

	_, err := f.svc.Authenticate(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "p1")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "p1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, identity.Session.ID, "p2"))

	assert.True(t, f.svc.IsAuthenticated(ctx, identity.Session.ID), "session must survive a password change")
	_, err = f.svc.Authenticate(ctx, "alice", "p1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "alice", "p2")
	require.NoError(t, err)
}

func TestChangePassword_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.ChangePassword(ctx, "", "x"), ErrUnauthenticated)
	require.ErrorIs(t, f.svc.ChangePassword(ctx, "missing", "x"), ErrUnauthenticated)

	_, err := f.svc.Register(ctx, "alice", "p1")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "p1")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.ChangePassword(ctx, identity.Session.ID, ""), ErrValidation)

	f.users.Remove("alice")
	require.ErrorIs(t, f.svc.ChangePassword(ctx, identity.Session.ID, "p2"), ErrUserNotFound)
}

func TestIsAdmin_FreshRoleLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "root", "pw")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "root", "pw")
	require.NoError(t, err)
	require.False(t, f.svc.IsAdmin(ctx, identity.Session.ID))

	require.NoError(t, f.users.SetRole(ctx, "root", types.RoleAdmin))
	assert.True(t, f.svc.IsAdmin(ctx, identity.Session.ID), "promotion applies to existing sessions")

	require.NoError(t, f.users.SetRole(ctx, "root", types.RoleUser))
	assert.False(t, f.svc.IsAdmin(ctx, identity.Session.ID), "demotion applies to existing sessions")
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, identity.Session.ID))
	require.NoError(t, f.svc.Logout(ctx, identity.Session.ID))
	require.NoError(t, f.svc.Logout(ctx, ""))

	assert.False(t, f.svc.IsAuthenticated(ctx, identity.Session.ID))
	require.ErrorIs(t, f.svc.ChangePassword(ctx, identity.Session.ID, "x"), ErrUnauthenticated)

	logouts := 0
	for _, kind := range f.events.kinds() {
		if kind == types.EventLoggedOut {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts)
}

func TestIdentify_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Identify(ctx, identity.Session.ID)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentify_UserRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	f.users.Remove("alice")
	_, err = f.svc.Identify(ctx, identity.Session.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.False(t, f.svc.IsAuthenticated(ctx, identity.Session.ID))
}

func TestIdentify_DoesNotFollowReusedUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	identity, err := f.svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	f.users.Remove("alice")
	_, err = f.svc.Register(ctx, "alice", "other")
	require.NoError(t, err)

	_, err = f.svc.Identify(ctx, identity.Session.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, f.svc.ChangePassword(ctx, identity.Session.ID, "hijack"), ErrUserNotFound)

	_, err = f.svc.Authenticate(ctx, "alice", "other")
	require.NoError(t, err, "the new account keeps its own password")
}

// flakyHasher fails its first Hash calls and records every digest it is
// asked to compare against.
type flakyHasher struct {
	PasswordHasher
	mu       sync.Mutex
	failures int
	compared []string
}

func (h *flakyHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	if h.failures > 0 {
		h.failures--
		h.mu.Unlock()
		return "", errors.New("entropy unavailable")
	}
	h.mu.Unlock()
	return h.PasswordHasher.Hash(password)
}

func (h *flakyHasher) Compare(hash, password string) error {
	h.mu.Lock()
	h.compared = append(h.compared, hash)
	h.mu.Unlock()
	return h.PasswordHasher.Compare(hash, password)
}

func TestAuthenticate_UnknownUserAlwaysComparesAgainstRealDigest(t *testing.T) {
	hasher := &flakyHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost), failures: 1}
	svc := NewAuthService(storetest.NewUserRepository(), session.NewMemoryStore(), hasher)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(ctx, "nobody", "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	require.Len(t, hasher.compared, 2)
	assert.Equal(t, fallbackPlaceholderHash, hasher.compared[0], "failed derivation falls back to a fixed digest")
	assert.NotEqual(t, fallbackPlaceholderHash, hasher.compared[1], "derivation is retried")
	for _, digest := range hasher.compared {
		_, err := bcrypt.Cost([]byte(digest))
		assert.NoError(t, err, "digest %q must be a valid bcrypt hash", digest)
	}
}
