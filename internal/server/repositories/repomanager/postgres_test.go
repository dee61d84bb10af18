package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var m RepositoryManager = NewPostgresRepositoryManager(db)
	if m.Users() == nil {
		t.Fatal("Users() nil")
	}
	if _, ok := m.Users().(*users.PostgresRepository); !ok {
		t.Fatalf("unexpected users repo type %T", m.Users())
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if got != db {
			return errors.New("unexpected db")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestClose(t *testing.T) {
	db, mock := newDB(t)
	mock.ExpectClose()

	if err := NewPostgresRepositoryManager(db).Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenPostgres(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := sqlOpen
	defer func() { sqlOpen = orig }()

	var gotDriver, gotDSN string
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	}

	m, err := OpenPostgres("postgres://u:p@h/db")
	if err != nil {
		t.Fatalf("OpenPostgres error: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != "postgres://u:p@h/db" {
		t.Fatalf("unexpected open args %q %q", gotDriver, gotDSN)
	}
	if m.db != db {
		t.Fatal("manager not bound to opened db")
	}

	sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("bad dsn") }
	if _, err := OpenPostgres("x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsMongoDSN(t *testing.T) {
	cases := map[string]bool{
		"mongodb://localhost:27017":        true,
		"mongodb+srv://cluster.example.io": true,
		"postgres://localhost/accounts":    false,
		"":                                 false,
	}
	for dsn, want := range cases {
		if got := isMongoDSN(dsn); got != want {
			t.Errorf("isMongoDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestNew_SelectsPostgres(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := sqlOpen
	defer func() { sqlOpen = orig }()
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }

	m, err := New(context.Background(), "postgres://localhost/accounts", "accounts")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := m.(*PostgresRepositoryManager); !ok {
		t.Fatalf("expected postgres manager, got %T", m)
	}
}

func TestNew_SelectsMemory(t *testing.T) {
	m, err := New(context.Background(), "memory://", "")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := m.(*InMemoryRepositoryManager); !ok {
		t.Fatalf("expected memory manager, got %T", m)
	}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if m.Users() == nil {
		t.Fatal("Users() nil")
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
