package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	userID  = "7f9c2c1e-0000-4000-8000-000000000001"
	otherID = "7f9c2c1e-0000-4000-8000-000000000002"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_SetsVersion(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentVersion, v)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "invoicing.db")
	ctx := context.Background()

	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpInsert, Table: "clients", Owner: userID,
		Rows: []mapping.Row{{"id": "c1", "user_id": userID, "name": "Acme"}},
	}))
	require.NoError(t, s.Close())

	s, err = New(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	clients, err := s.FetchClients(ctx, userID)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme", clients[0].Name)
}

func TestStore_InvoiceWithItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ExecuteAtomic(ctx, []port.Mutation{
		{Op: port.OpInsert, Table: "invoices", Owner: userID, Rows: []mapping.Row{{
			"id": "inv1", "user_id": userID, "invoice_number": "INV-1001",
			"status": "sent", "total": 194.4, "enable_tax": true, "issue_date": "2026-01-15",
		}}},
		{Op: port.OpInsert, Table: "invoice_items", Owner: userID, Rows: []mapping.Row{
			{"invoice_id": "inv1", "position": 0, "description": "design", "quantity": 2.0, "rate": 50.0},
			{"invoice_id": "inv1", "position": 1, "description": "build", "quantity": 1.0, "rate": 100.0},
		}},
	})
	require.NoError(t, err)

	invoices, err := s.FetchInvoices(ctx, userID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	inv := invoices[0]
	assert.Equal(t, "INV-1001", inv.InvoiceNumber)
	assert.Equal(t, 194.4, inv.Total)
	assert.True(t, inv.EnableTax)
	assert.False(t, inv.EnableDiscount)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "design", inv.Items[0].Description)
	assert.Equal(t, "build", inv.Items[1].Description)
	assert.NotEmpty(t, inv.Items[0].ID, "store generates item ids")
	assert.NotEmpty(t, inv.CreatedAt)
}

func TestStore_UpdateAndCascadeDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ExecuteAtomic(ctx, []port.Mutation{
		{Op: port.OpInsert, Table: "quotations", Owner: userID, Rows: []mapping.Row{{"id": "q1", "user_id": userID, "status": "draft"}}},
		{Op: port.OpInsert, Table: "quotation_items", Owner: userID, Rows: []mapping.Row{{"quotation_id": "q1", "position": 0, "description": "x"}}},
	}))

	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpUpdate, Table: "quotations", Owner: userID,
		Rows:   []mapping.Row{{"status": "accepted"}},
		Filter: port.Filter{Column: "id", Value: "q1"},
	}))

	quotes, err := s.FetchQuotations(ctx, userID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "accepted", quotes[0].Status)

	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpDelete, Table: "quotations", Owner: userID, Filter: port.Filter{Column: "id", Value: "q1"},
	}))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM quotation_items").Scan(&n))
	assert.Zero(t, n, "items removed with their quotation")
}

func TestStore_AtomicBatchRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ExecuteAtomic(ctx, []port.Mutation{
		{Op: port.OpInsert, Table: "invoices", Owner: userID, Rows: []mapping.Row{{"id": "inv1", "user_id": userID}}},
		{Op: port.OpInsert, Table: "invoice_items", Owner: userID, Rows: []mapping.Row{{"invoice_id": "missing", "position": 0}}},
	})
	require.Error(t, err)

	invoices, err := s.FetchInvoices(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestStore_WritesStayInsideTheAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, domain.Account{UserID: otherID, Email: "b@example.com", PasswordHash: "h"}))
	require.NoError(t, s.ExecuteAtomic(ctx, []port.Mutation{
		{Op: port.OpInsert, Table: "clients", Owner: otherID, Rows: []mapping.Row{{"id": "b-client", "user_id": otherID, "name": "Beta"}}},
		{Op: port.OpInsert, Table: "invoices", Owner: otherID, Rows: []mapping.Row{{"id": "b-inv", "user_id": otherID}}},
		{Op: port.OpInsert, Table: "invoice_items", Owner: otherID, Rows: []mapping.Row{{"invoice_id": "b-inv", "position": 0, "description": "kept"}}},
	}))

	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpUpdate, Table: "clients", Owner: userID,
		Rows:   []mapping.Row{{"name": "changed"}},
		Filter: port.Filter{Column: "id", Value: "b-client"},
	}))
	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpDelete, Table: "clients", Owner: userID, Filter: port.Filter{Column: "id", Value: "b-client"},
	}))
	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpDelete, Table: "invoice_items", Owner: userID, Filter: port.Filter{Column: "invoice_id", Value: "b-inv"},
	}))

	err := s.Execute(ctx, port.Mutation{
		Op: port.OpInsert, Table: "invoice_items", Owner: userID,
		Rows: []mapping.Row{{"invoice_id": "b-inv", "position": 1, "description": "planted"}},
	})
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)

	err = s.Execute(ctx, port.Mutation{
		Op: port.OpUpdate, Table: "profiles", Owner: userID,
		Rows:   []mapping.Row{{"business_name": "taken"}},
		Filter: port.Filter{Column: "id", Value: otherID},
	})
	assert.ErrorAs(t, err, &unauthorized)

	clients, err := s.FetchClients(ctx, otherID)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Beta", clients[0].Name)

	invoices, err := s.FetchInvoices(ctx, otherID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Len(t, invoices[0].Items, 1)
	assert.Equal(t, "kept", invoices[0].Items[0].Description)

	profile, err := s.FetchProfile(ctx, otherID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.NotEqual(t, "taken", profile.BusinessName)
}

func TestStore_WritesNeedAnOwner(t *testing.T) {
	s := newTestStore(t)

	err := s.Execute(context.Background(), port.Mutation{
		Op: port.OpDelete, Table: "clients", Filter: port.Filter{Column: "id", Value: "c1"},
	})
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestStore_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := port.Mutation{Op: port.OpInsert, Table: "expenses", Owner: userID, Rows: []mapping.Row{{"id": "e1", "user_id": userID, "amount": 12.5}}}

	require.NoError(t, s.Execute(ctx, m))
	err := s.Execute(ctx, m)

	var dup *domain.ErrDuplicate
	assert.ErrorAs(t, err, &dup)
}

func TestStore_ProfileSettingsBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, domain.Account{UserID: userID, Email: "Owner@Example.com", PasswordHash: "h"}))
	require.NoError(t, s.Execute(ctx, port.Mutation{
		Op: port.OpUpdate, Table: "profiles", Owner: userID,
		Rows:   []mapping.Row{{"business_name": "Studio", "settings": map[string]any{"currency": "EUR"}}},
		Filter: port.Filter{Column: "id", Value: userID},
	}))

	profile, err := s.FetchProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Studio", profile.BusinessName)
	assert.Equal(t, "Owner@Example.com", profile.BusinessEmail)
	assert.JSONEq(t, `{"currency":"EUR"}`, string(profile.Settings))
}

func TestStore_FetchProfileAbsent(t *testing.T) {
	s := newTestStore(t)

	profile, err := s.FetchProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestStore_Accounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, domain.Account{UserID: userID, Email: "a@example.com", PasswordHash: "h"}))

	err := s.CreateAccount(ctx, domain.Account{UserID: "other", Email: "A@example.com", PasswordHash: "h"})
	var conflict *domain.ErrConflict
	assert.ErrorAs(t, err, &conflict)

	a, err := s.FindAccount(ctx, "A@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, userID, a.UserID)

	missing, err := s.FindAccount(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
