// Package storetest provides in-memory repositories for tests that need a
// working credential store without Postgres.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
)

// UserRepository is an in-memory stand-in for store.UserRepository.
type UserRepository struct {
	mu     sync.RWMutex
	nextID int
	byName map[string]types.User

	// Err, when set, is returned by every call.
	Err error
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byName: make(map[string]types.User)}
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	for _, u := range r.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	u, ok := r.byName[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	if _, exists := r.byName[user.Username]; exists {
		return types.User{}, store.ErrConflict
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	r.byName[user.Username] = user
	return user, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, username, passwordHash string) error {
	return r.update(username, func(u *types.User) { u.PasswordHash = passwordHash })
}

func (r *UserRepository) SetRole(_ context.Context, username string, role types.Role) error {
	return r.update(username, func(u *types.User) { u.Role = role })
}

// Remove deletes a user out of band, as an operator might.
func (r *UserRepository) Remove(username string) {
	r.mu.Lock()
	delete(r.byName, username)
	r.mu.Unlock()
}

func (r *UserRepository) update(username string, mutate func(*types.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	u, ok := r.byName[username]
	if !ok {
		return store.ErrNotFound
	}
	mutate(&u)
	u.UpdatedAt = time.Now()
	r.byName[username] = u
	return nil
}
