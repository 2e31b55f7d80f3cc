package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rolegate/rolegate/internal/services"
	"github.com/rolegate/rolegate/internal/views"
	"github.com/rolegate/rolegate/types"
)

type contextKey string

const (
	contextIdentityKey     contextKey = "identity"
	contextSessionErrorKey contextKey = "session_error"
)

const genericRetryMessage = "Something went wrong, please try again."

func withIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// identityFromContext returns the identity LoadSession attached, if any.
func identityFromContext(ctx context.Context) (services.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(services.Identity)
	return identity, ok
}

func currentUser(r *http.Request) *types.User {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		return nil
	}
	user := identity.User
	return &user
}

func withSessionError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, contextSessionErrorKey, err)
}

func sessionErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(contextSessionErrorKey).(error)
	return err
}

// errorResponse maps a service error to a status code and a message safe
// to show on a form.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
		return http.StatusBadRequest, capitalize(msg)
	case errors.Is(err, services.ErrDuplicateUsername):
		return http.StatusConflict, "That username is already taken."
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password."
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "Your account could not be found, please log in again."
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized, "Please log in again."
	default:
		return http.StatusServiceUnavailable, genericRetryMessage
	}
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, services.ErrValidation):
		return "validation_error"
	case errors.Is(err, services.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, services.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, services.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, services.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "store_unavailable"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data views.Data) {
	if data.User == nil {
		data.User = currentUser(r)
	}
	if err := h.views.Render(w, status, page, data); err != nil {
		h.log.WithError(err).WithField("page", page).Error("render failed")
		http.Error(w, genericRetryMessage, http.StatusInternalServerError)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, target, status)
}
