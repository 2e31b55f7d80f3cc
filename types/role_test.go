package types

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"admin", RoleAdmin, false},
		{" Admin ", RoleAdmin, false},
		{"adimn", "", true},
		{"", "", true},
		{"root", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleScan(t *testing.T) {
	var r Role
	if err := r.Scan([]byte("admin")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if r != RoleAdmin {
		t.Fatalf("unexpected role %q", r)
	}
	if err := r.Scan("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if err := r.Scan(42); err == nil {
		t.Fatalf("expected error for non-string source")
	}
}

func TestRoleValueRejectsInvalid(t *testing.T) {
	if _, err := Role("").Value(); err == nil {
		t.Fatalf("expected error for empty role")
	}
	v, err := RoleUser.Value()
	if err != nil || v != "user" {
		t.Fatalf("unexpected value %v, %v", v, err)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Fatalf("session should be live")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Fatalf("session should be expired at its deadline")
	}
}
