package types

import "time"

// AuthEventType names an authentication lifecycle event.
type AuthEventType string

const (
	EventUserRegistered  AuthEventType = "user.registered"
	EventLoginSucceeded  AuthEventType = "user.login_succeeded"
	EventLoginFailed     AuthEventType = "user.login_failed"
	EventPasswordChanged AuthEventType = "user.password_changed"
	EventLoggedOut       AuthEventType = "user.logged_out"
	EventRoleChanged     AuthEventType = "user.role_changed"
)

// AuthEvent is the audit record published for each lifecycle event.
// It never carries credential material.
type AuthEvent struct {
	Type     AuthEventType `json:"type"`
	Username string        `json:"username"`
	Role     Role          `json:"role,omitempty"`
	At       time.Time     `json:"at"`
}
