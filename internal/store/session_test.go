package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rolegate/rolegate/types"
)

func newSessionRepoWithMock(t *testing.T, now time.Time) (*SessionRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	repo := NewSessionRepository(db)
	repo.now = func() time.Time { return now }
	return repo, mock, db
}

func TestSessionCreate(t *testing.T) {
	now := time.Now()
	repo, mock, db := newSessionRepoWithMock(t, now)
	defer db.Close()

	s := types.Session{ID: "sid", UserID: 4, Username: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	mock.ExpectExec(`INSERT\s+INTO\s+sessions`).
		WithArgs("sid", 4, "alice", s.CreatedAt, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestSessionGet_FiltersExpired(t *testing.T) {
	now := time.Now()
	repo, mock, db := newSessionRepoWithMock(t, now)
	defer db.Close()

	mock.ExpectQuery(`FROM sessions\s+WHERE id = \$1 AND expires_at > \$2`).
		WithArgs("old", now).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionGet(t *testing.T) {
	now := time.Now()
	repo, mock, db := newSessionRepoWithMock(t, now)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user_id", "username", "created_at", "expires_at"}).
		AddRow("sid", 4, "alice", now, now.Add(time.Hour))
	mock.ExpectQuery(`FROM sessions`).WithArgs("sid", now).WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "sid")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Username != "alice" || got.UserID != 4 {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionDelete_MissingIsNotAnError(t *testing.T) {
	repo, mock, db := newSessionRepoWithMock(t, time.Now())
	defer db.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	now := time.Now()
	repo, mock, db := newSessionRepoWithMock(t, now)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 purged sessions, got %d", n)
	}
}
