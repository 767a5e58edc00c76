// Package sqlite is the embedded backend: one SQLite file holding account
// data and local logins, migrated with PRAGMA user_version.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/sqlgen"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var tracer = otel.Tracer("sqlite")

const currentVersion = 1

var (
	_ port.RemoteStore  = (*Store)(nil)
	_ port.Transactor   = (*Store)(nil)
	_ port.AccountStore = (*Store)(nil)
)

// Store is the SQLite backend.
type Store struct {
	*sqlgen.Loader
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	s.Loader = sqlgen.NewLoader(sqlgen.SQLite, s.queryJSON)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for tests.
func NewMemory(logger *zap.Logger) (*Store, error) {
	return New(":memory:", logger)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Version reports the applied schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func (s *Store) queryJSON(ctx context.Context, st sqlgen.Statement) ([]byte, error) {
	var raw []byte
	if err := s.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) apply(ctx context.Context, db execer, m port.Mutation) error {
	stmts, err := sqlgen.Mutation(sqlgen.SQLite, m)
	if err != nil {
		return err
	}
	for _, st := range stmts {
		if st.Expect > 0 {
			var n int64
			if err := db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
				return fmt.Errorf("%s %s guard: %w", m.Op, m.Table, err)
			}
			if err := sqlgen.CheckGuard(st, n); err != nil {
				return err
			}
			continue
		}
		if _, err := db.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			if isUniqueViolation(err) {
				return &domain.ErrDuplicate{Key: m.Table}
			}
			return fmt.Errorf("%s %s: %w", m.Op, m.Table, err)
		}
	}
	return nil
}

// Execute applies one mutation.
func (s *Store) Execute(ctx context.Context, m port.Mutation) error {
	ctx, span := tracer.Start(ctx, "SQLite.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", m.Table),
		attribute.String("op", string(m.Op)),
	)

	if err := s.apply(ctx, s.db, m); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ExecuteAtomic applies ms in one transaction.
func (s *Store) ExecuteAtomic(ctx context.Context, ms []port.Mutation) error {
	ctx, span := tracer.Start(ctx, "SQLite.ExecuteAtomic")
	defer span.End()
	span.SetAttributes(attribute.Int("mutations", len(ms)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range ms {
		if err := s.apply(ctx, tx, m); err != nil {
			span.RecordError(err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ============================================================
// AccountStore
// ============================================================

// CreateAccount stores the login and an empty profile in one transaction.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateAccount")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		a.UserID, strings.ToLower(a.Email), a.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "email already registered"}
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (id, business_email) VALUES (?, ?)`,
		a.UserID, a.Email)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindAccount looks a login up by email, case-insensitively.
func (s *Store) FindAccount(ctx context.Context, email string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindAccount")
	defer span.End()

	var a domain.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&a.UserID, &a.Email, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
