package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rolegate/rolegate/internal/storage"
	"github.com/sirupsen/logrus"
)

func newAssetRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	local, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := chi.NewRouter()
	AssetRouter(r, local, log)
	return r
}

func TestAssets_ServesFile(t *testing.T) {
	router := newAssetRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "body{}" {
		t.Fatalf("unexpected body %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/css; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAssets_MissingAndTraversal(t *testing.T) {
	router := newAssetRouter(t)

	for _, path := range []string{"/static/missing.js", "/static/", "/static/..%2F..%2Fetc%2Fpasswd"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
	}{
		{"no database", nil, http.StatusOK},
		{"healthy", fakePinger{}, http.StatusOK},
		{"down", fakePinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			HealthRouter(r, tt.db)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestLoginLimiter_PrunesIdleClients(t *testing.T) {
	l := NewLoginLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	if !l.Allow("1.2.3.4") {
		t.Fatal("first attempt must be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("second immediate attempt must be throttled")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Hour)
	if removed := l.Prune(time.Minute); removed != 2 {
		t.Fatalf("expected 2 pruned clients, got %d", removed)
	}
}
