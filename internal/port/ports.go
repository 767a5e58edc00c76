// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete backends (Supabase, Postgres, SQLite).
package port

import (
	"context"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
)

// ============================================================
// Remote persistence
// ============================================================

// Loader bulk-reads everything an account owns, in transport naming.
// FetchProfile returns nil, nil when the account has no profile row.
type Loader interface {
	FetchProfile(ctx context.Context, userID string) (*mapping.ProfileRecord, error)
	FetchClients(ctx context.Context, userID string) ([]mapping.ClientRecord, error)
	FetchInvoices(ctx context.Context, userID string) ([]mapping.InvoiceRecord, error)
	FetchQuotations(ctx context.Context, userID string) ([]mapping.QuotationRecord, error)
	FetchExpenses(ctx context.Context, userID string) ([]mapping.ExpenseRecord, error)
	FetchTimeEntries(ctx context.Context, userID string) ([]mapping.TimeEntryRecord, error)
	FetchBankAccounts(ctx context.Context, userID string) ([]mapping.BankAccountRecord, error)
}

// Op is the kind of a remote mutation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Filter selects rows by equality on one column.
type Filter struct {
	Column string
	Value  string
}

// Mutation is one remote write. Inserts carry one or more Rows; updates carry
// exactly one Row of columns to set; deletes carry none.
//
// Owner is the account the write acts for. Writers only touch rows that
// account owns: owned tables match on user_id, line items on a parent
// document the account owns, and profiles on their id.
type Mutation struct {
	Op     Op
	Table  string
	Owner  string
	Filter Filter
	Rows   []mapping.Row
}

// CheckOwner rejects writes without an account, inserts of rows owned by
// another account, owner changes, and profile writes for anyone but the
// owner. Scoping the rows a write touches remains the writer's job.
func (m Mutation) CheckOwner(t mapping.Table) error {
	if m.Owner == "" {
		return &domain.ErrValidation{Field: "owner", Message: "writes must act for an account"}
	}
	switch {
	case t.Owner != "":
		if m.Op == OpDelete {
			return nil
		}
		for _, r := range m.Rows {
			v, set := r[t.Owner]
			if (m.Op == OpInsert || set) && v != m.Owner {
				return &domain.ErrUnauthorized{Message: "rows must belong to the writing account"}
			}
		}
	case t.Parent == "":
		if m.Op == OpInsert {
			return &domain.ErrValidation{Field: "op", Message: "profiles are created with the account"}
		}
		if m.Filter.Column != "id" || m.Filter.Value != m.Owner {
			return &domain.ErrUnauthorized{Message: "profiles are written by their own account only"}
		}
	}
	return nil
}

// Writer applies single mutations.
type Writer interface {
	Execute(ctx context.Context, m Mutation) error
}

// Transactor is implemented by writers that can apply several mutations atomically.
type Transactor interface {
	ExecuteAtomic(ctx context.Context, ms []Mutation) error
}

// RemoteStore is a full persistence backend.
type RemoteStore interface {
	Loader
	Writer
}

// ============================================================
// Auth
// ============================================================

// AuthEventType is the kind of an auth state change.
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent notifies subscribers of a session change. Session is nil after sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *domain.Session
}

// AuthProvider resolves and manages the current session.
type AuthProvider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for auth changes and returns its unsubscribe func.
	Subscribe(fn func(AuthEvent)) (unsubscribe func())
	// UserFromToken validates an access token and returns its user.
	UserFromToken(ctx context.Context, token string) (*domain.User, error)
}

// AccountStore persists logins for the built-in auth provider.
type AccountStore interface {
	// CreateAccount stores the login and the account's empty profile row.
	// A taken email yields *domain.ErrConflict.
	CreateAccount(ctx context.Context, a domain.Account) error
	// FindAccount returns nil, nil when no login has the email.
	FindAccount(ctx context.Context, email string) (*domain.Account, error)
}

// ============================================================
// Blob storage & caching
// ============================================================

// BlobStorage stores uploaded files such as the business logo.
type BlobStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
