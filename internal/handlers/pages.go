package handlers

import (
	"net/http"

	"github.com/rolegate/rolegate/internal/views"
)

func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.Home, views.Data{})
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.Register, views.Data{})
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.Login, views.Data{})
}

func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.Account, views.Data{})
}

// Secret shows admins the admin view in place of the regular one.
func (h *AuthHandler) Secret(w http.ResponseWriter, r *http.Request) {
	page := views.Secret
	if identity, ok := identityFromContext(r.Context()); ok && identity.User.IsAdmin() {
		page = views.SecretAdmin
	}
	h.render(w, r, http.StatusOK, page, views.Data{})
}

func (h *AuthHandler) SecretAdmin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.SecretAdmin, views.Data{})
}
