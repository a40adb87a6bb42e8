package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmanankin/authvault/internal/common"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db), mock, db
}

const (
	insertQ     = `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\).*RETURNING\s+issued_at\s*$`
	findQ       = `(?s)^SELECT\s+id,\s*user_id,\s*issued_at,\s*expires_at,\s*is_revoked\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	revokeByIDQ = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+is_revoked\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s*$`
	revokeableQ = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+is_revoked\s*=\s*TRUE\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+is_revoked\s*=\s*FALSE\s*$`
)

func TestCreate_Success(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"issued_at"}).AddRow(time.Now()))

	got, err := store.Create(context.Background(), "u1", 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token == "" {
		t.Fatalf("expected raw token value on created record")
	}
	if got.ID == "" || got.UserID != "u1" || got.Revoked {
		t.Fatalf("unexpected record: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	expires := time.Now().Add(10 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "issued_at", "expires_at", "is_revoked"}).
		AddRow("t1", "u1", time.Now(), expires, false)

	mock.ExpectQuery(findQ).
		WithArgs(hashToken("tok123")).
		WillReturnRows(rows)

	got, err := store.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t1" || got.UserID != "u1" || !got.ExpiresAt.Equal(expires) || got.Revoked {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Token != "" {
		t.Fatalf("raw token value must not be returned on reads")
	}
}

func TestFind_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).
		WithArgs(hashToken("missing")).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected common.ErrorNotFound, got %v", err)
	}
}

func TestRevoke_IdempotentOnZeroRows(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	// already revoked or missing: zero affected rows, still no error
	mock.ExpectExec(revokeByIDQ).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Revoke(context.Background(), "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_Success(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(revokeableQ).
		WithArgs(hashToken("old-token")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"issued_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	got, err := store.Rotate(context.Background(), "old-token", "u1", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token == "" || got.Token == "old-token" {
		t.Fatalf("expected a fresh raw token value, got %q", got.Token)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_ReusedRollsBack(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(revokeableQ).
		WithArgs(hashToken("old-token")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.Rotate(context.Background(), "old-token", "u1", time.Hour)
	if !errors.Is(err, common.ErrTokenReused) {
		t.Fatalf("expected common.ErrTokenReused, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_InsertErrorRollsBack(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(revokeableQ).
		WithArgs(hashToken("old-token")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := store.Rotate(context.Background(), "old-token", "u1", time.Hour)
	if err == nil || errors.Is(err, common.ErrTokenReused) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
