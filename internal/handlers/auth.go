package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rolegate/rolegate/internal/metrics"
	"github.com/rolegate/rolegate/internal/services"
	"github.com/rolegate/rolegate/internal/session"
	"github.com/rolegate/rolegate/internal/views"
	"github.com/sirupsen/logrus"
)

// AppContext carries the collaborators shared by every handler.
type AppContext struct {
	Auth    *services.AuthService
	Cookies *session.Cookies
	Views   *views.Renderer
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
	// Throttle guards the credential-accepting POST routes. Nil disables it.
	Throttle *LoginLimiter
}

// AuthHandler serves the pages and forms of the auth gate.
type AuthHandler struct {
	auth     *services.AuthService
	cookies  *session.Cookies
	views    *views.Renderer
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	throttle *LoginLimiter
}

// NewAuthHandler constructs an AuthHandler from the application context.
func NewAuthHandler(app AppContext) *AuthHandler {
	return &AuthHandler{
		auth:     app.Auth,
		cookies:  app.Cookies,
		views:    app.Views,
		metrics:  app.Metrics,
		log:      app.Log,
		throttle: app.Throttle,
	}
}

// AuthRouter registers the public, authenticated and admin routes.
func AuthRouter(r chi.Router, app AppContext) {
	h := NewAuthHandler(app)

	r.Group(func(r chi.Router) {
		r.Use(h.LoadSession)

		r.Get("/", h.Home)
		r.Get("/register", h.RegisterForm)
		r.Get("/login", h.LoginForm)
		r.Get("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.throttled(views.Register))
			r.Post("/register", h.Register)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.throttled(views.Login))
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/account", h.Account)
			r.Post("/changepassword", h.ChangePassword)
			r.Get("/secret", h.Secret)
			r.With(h.RequireAdmin).Get("/secret_admin", h.SecretAdmin)
		})
	})
}

// LoadSession resolves the session cookie, if any, into an identity on the
// request context. A cookie that no longer names a live session is cleared.
func (h *AuthHandler) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := h.cookies.Read(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoCookie) {
				h.cookies.Clear(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		identity, err := h.auth.Identify(r.Context(), sessionID)
		switch {
		case err == nil:
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		case errors.Is(err, services.ErrStoreUnavailable), errors.Is(err, services.ErrUserNotFound):
			next.ServeHTTP(w, r.WithContext(withSessionError(r.Context(), err)))
		default:
			h.cookies.Clear(w)
			next.ServeHTTP(w, r)
		}
	})
}

// RequireAuth redirects anonymous requests to the login page. A session
// whose account is gone gets the account page with an error instead.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if err := sessionErrorFromContext(r.Context()); err != nil {
			status, msg := errorResponse(err)
			page := views.Home
			if errors.Is(err, services.ErrUserNotFound) {
				page = views.Account
			}
			h.render(w, r, status, page, views.Data{Error: msg})
			return
		}
		redirect(w, r, "/login")
	})
}

// RequireAdmin lets through only sessions whose user currently holds the
// admin role. Everyone else is sent to the non-admin secret page.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFromContext(r.Context())
		if !ok || !identity.User.IsAdmin() {
			redirect(w, r, "/secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates the account and logs the new user straight in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, views.Register, views.Data{Error: "Invalid form submission."})
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	_, err := h.auth.Register(r.Context(), username, password)
	h.metrics.AuthOutcome("register", outcome(err))
	if err != nil {
		status, msg := errorResponse(err)
		h.render(w, r, status, views.Register, views.Data{Error: msg, Username: username})
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), username, password)
	h.metrics.AuthOutcome("login", outcome(err))
	if err != nil {
		status, msg := errorResponse(err)
		h.render(w, r, status, views.Register, views.Data{Error: msg, Username: username})
		return
	}
	if !h.startSession(w, r, identity) {
		return
	}
	redirect(w, r, "/secret")
}

// Login authenticates the form credentials. Any credential failure goes
// back to /login without saying which part was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/login")
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	h.metrics.AuthOutcome("login", outcome(err))
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			h.render(w, r, http.StatusServiceUnavailable, views.Login, views.Data{Error: genericRetryMessage})
			return
		}
		redirect(w, r, "/login")
		return
	}
	if !h.startSession(w, r, identity) {
		return
	}
	redirect(w, r, "/secret")
}

// Logout destroys the session and returns to the landing page. It always
// succeeds from the visitor's point of view.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.cookies.Read(r)
	if err == nil {
		err = h.auth.Logout(r.Context(), sessionID)
		h.metrics.AuthOutcome("logout", outcome(err))
		if err != nil {
			h.log.WithError(err).Warn("logout failed, clearing cookie anyway")
		}
	}
	h.cookies.Clear(w)
	redirect(w, r, "/")
}

// ChangePassword replaces the current user's password and keeps the
// session alive.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, views.Account, views.Data{Error: "Invalid form submission."})
		return
	}

	err := h.auth.ChangePassword(r.Context(), identity.Session.ID, r.PostFormValue("newpassword"))
	h.metrics.AuthOutcome("change_password", outcome(err))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			h.cookies.Clear(w)
			redirect(w, r, "/login")
			return
		}
		status, msg := errorResponse(err)
		h.render(w, r, status, views.Account, views.Data{Error: msg})
		return
	}
	h.render(w, r, http.StatusOK, views.PasswordChanged, views.Data{Message: "Your password has been changed."})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, identity services.Identity) bool {
	if err := h.cookies.Set(w, identity.Session.ID, identity.Session.ExpiresAt); err != nil {
		h.log.WithError(err).Error("failed to sign session cookie")
		_ = h.auth.Logout(r.Context(), identity.Session.ID)
		h.render(w, r, http.StatusInternalServerError, views.Login, views.Data{Error: genericRetryMessage})
		return false
	}
	return true
}
