package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/sqlgen"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

var (
	_ port.RemoteStore  = (*Store)(nil)
	_ port.Transactor   = (*Store)(nil)
	_ port.AccountStore = (*Store)(nil)
)

// Store is the PostgreSQL backend.
type Store struct {
	*sqlgen.Loader
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	s := &Store{pool: pool, logger: logger}
	s.Loader = sqlgen.NewLoader(sqlgen.Postgres, s.queryJSON)
	return s
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) queryJSON(ctx context.Context, st sqlgen.Statement) ([]byte, error) {
	var raw []byte
	if err := s.pool.QueryRow(ctx, st.SQL, args(st.Args)...).Scan(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// args binds money as exact NUMERIC.
func args(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		if f, ok := v.(float64); ok {
			out[i] = decimal.NewFromFloat(f)
			continue
		}
		out[i] = v
	}
	return out
}

func (s *Store) apply(ctx context.Context, db execer, m port.Mutation) error {
	stmts, err := sqlgen.Mutation(sqlgen.Postgres, m)
	if err != nil {
		return err
	}
	for _, st := range stmts {
		if st.Expect > 0 {
			var n int64
			if err := db.QueryRow(ctx, st.SQL, args(st.Args)...).Scan(&n); err != nil {
				return fmt.Errorf("%s %s guard: %w", m.Op, m.Table, err)
			}
			if err := sqlgen.CheckGuard(st, n); err != nil {
				return err
			}
			continue
		}
		if _, err := db.Exec(ctx, st.SQL, args(st.Args)...); err != nil {
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
	ctx, span := tracer.Start(ctx, "Postgres.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", m.Table),
		attribute.String("op", string(m.Op)),
	)

	if err := s.apply(ctx, s.pool, m); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ExecuteAtomic applies ms in one transaction.
func (s *Store) ExecuteAtomic(ctx context.Context, ms []port.Mutation) error {
	ctx, span := tracer.Start(ctx, "Postgres.ExecuteAtomic")
	defer span.End()
	span.SetAttributes(attribute.Int("mutations", len(ms)))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range ms {
		if err := s.apply(ctx, tx, m); err != nil {
			span.RecordError(err)
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ============================================================
// AccountStore
// ============================================================

// CreateAccount stores the login and an empty profile in one transaction.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	ctx, span := tracer.Start(ctx, "Postgres.CreateAccount")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1::text::uuid, $2, $3)`,
		a.UserID, strings.ToLower(a.Email), a.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "email already registered"}
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, business_email) VALUES ($1::text::uuid, $2) ON CONFLICT (id) DO NOTHING`,
		a.UserID, a.Email)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindAccount looks a login up by email, case-insensitively.
func (s *Store) FindAccount(ctx context.Context, email string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindAccount")
	defer span.End()

	var a domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, email, password_hash FROM users WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&a.UserID, &a.Email, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &a, nil
}

// isUniqueViolation reports a unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
