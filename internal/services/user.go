package services

import (
	"context"
	"errors"
	"time"

	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	SetRole(ctx context.Context, username string, role types.Role) error
}

// UserService covers operator-only account provisioning. Nothing here is
// reachable from the HTTP surface.
type UserService struct {
	repo   UserRepository
	events EventPublisher
}

func NewUserService(repo UserRepository, events EventPublisher) *UserService {
	if events == nil {
		events = noopPublisher{}
	}
	return &UserService{repo: repo, events: events}
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

// SetRole grants or revokes admin rights.
func (s *UserService) SetRole(ctx context.Context, username string, role types.Role) error {
	if !role.Valid() {
		return ErrValidation
	}
	if err := s.repo.SetRole(ctx, username, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.events.Publish(ctx, types.AuthEvent{
		Type:     types.EventRoleChanged,
		Username: username,
		Role:     role,
		At:       time.Now().UTC(),
	})
	return nil
}

func (s *UserService) Promote(ctx context.Context, username string) error {
	return s.SetRole(ctx, username, types.RoleAdmin)
}

func (s *UserService) Demote(ctx context.Context, username string) error {
	return s.SetRole(ctx, username, types.RoleUser)
}
