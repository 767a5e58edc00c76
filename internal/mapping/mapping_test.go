package mapping_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonTags(t *testing.T, v any) map[string]bool {
	t.Helper()
	tags := map[string]bool{}
	typ := reflect.TypeOf(v)
	for i := 0; i < typ.NumField(); i++ {
		name := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			tags[name] = true
		}
	}
	return tags
}

func TestTables_AreExhaustive(t *testing.T) {
	cases := []struct {
		table   mapping.Table
		entity  any
		record  any
		derived []string
	}{
		{mapping.Clients, domain.Client{}, mapping.ClientRecord{}, nil},
		{mapping.Invoices, domain.Invoice{}, mapping.InvoiceRecord{}, []string{"items"}},
		{mapping.Quotations, domain.Quotation{}, mapping.QuotationRecord{}, []string{"items"}},
		{mapping.Expenses, domain.Expense{}, mapping.ExpenseRecord{}, nil},
		{mapping.TimeEntries, domain.TimeEntry{}, mapping.TimeEntryRecord{}, nil},
		{mapping.BankAccounts, domain.BankAccount{}, mapping.BankAccountRecord{}, nil},
		{mapping.InvoiceItems, domain.LineItem{}, mapping.ItemRecord{}, []string{"amount"}},
	}

	for _, tc := range cases {
		t.Run(tc.table.Name, func(t *testing.T) {
			appFields := jsonTags(t, tc.entity)
			for _, d := range tc.derived {
				delete(appFields, d)
			}
			for field := range appFields {
				_, ok := tc.table.ByApp(field)
				assert.True(t, ok, "field %q has no column", field)
			}

			recordFields := jsonTags(t, tc.record)
			for _, c := range tc.table.Columns {
				if c.App != "" {
					assert.True(t, appFields[c.App], "column %q maps to unknown field %q", c.Transport, c.App)
				}
				if c.Transport == tc.table.Parent {
					continue
				}
				assert.True(t, recordFields[c.Transport], "column %q missing from record", c.Transport)
			}
		})
	}
}

func TestProfiles_CoverNamedSettings(t *testing.T) {
	for _, field := range []string{"businessName", "businessEmail", "businessPhone", "businessAddress", "businessLogo"} {
		_, ok := mapping.Profiles.ByApp(field)
		assert.True(t, ok, field)
	}
	c, ok := mapping.Profiles.ByApp("businessLogo")
	require.True(t, ok)
	assert.Equal(t, "logo_url", c.Transport)
}

func roundTrip(t *testing.T, row mapping.Row, out any) {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestInvoice_RoundTrip(t *testing.T) {
	paid := "2024-02-01"
	inv := domain.Invoice{
		ID:             "inv-1",
		ClientID:       "cli-1",
		BankAccountID:  "",
		InvoiceNumber:  "INV-1001",
		Status:         domain.InvoicePaid,
		IssueDate:      "2024-01-15",
		DueDate:        "2024-02-14",
		PaidDate:       &paid,
		Items:          []domain.LineItem{{ID: "it-1", Description: "Design", Quantity: 2, Rate: 50}, {ID: "it-2", Description: "Build", Quantity: 1, Rate: 100}},
		TaxRate:        8,
		Discount:       10,
		Currency:       "EUR",
		EnableTax:      true,
		EnableDiscount: true,
		BillingType:    domain.BillingHourly,
		Notes:          "thanks",
		Terms:          "net 30",
		CreatedAt:      "2024-01-15T10:00:00Z",
	}
	inv.Recalculate()

	row, err := mapping.EntityRow(mapping.Invoices, inv, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", row["user_id"])
	assert.Nil(t, row["bank_account_id"])
	assert.NotContains(t, row, "items")

	row["items"] = mapping.ItemRows(mapping.InvoiceItems, inv.ID, inv.Items)

	var rec mapping.InvoiceRecord
	roundTrip(t, row, &rec)

	assert.Equal(t, inv, mapping.InvoiceFromRecord(rec))
}

func TestQuotation_RoundTrip(t *testing.T) {
	q := domain.Quotation{
		ID:              "quo-1",
		QuotationNumber: "QUO-1001",
		Status:          domain.QuotationSent,
		IssueDate:       "2024-03-01",
		ValidUntil:      "2024-03-31",
		Items:           []domain.LineItem{{ID: "a", Description: "Audit", Quantity: 3, Rate: 120}},
		Currency:        "USD",
		BillingType:     domain.BillingQuantity,
		CreatedAt:       "2024-03-01T09:00:00Z",
	}
	q.Recalculate()

	row, err := mapping.EntityRow(mapping.Quotations, q, "user-1")
	require.NoError(t, err)
	row["items"] = mapping.ItemRows(mapping.QuotationItems, q.ID, q.Items)

	var rec mapping.QuotationRecord
	roundTrip(t, row, &rec)
	assert.Equal(t, q, mapping.QuotationFromRecord(rec))
}

func TestSimpleEntities_RoundTrip(t *testing.T) {
	client := domain.Client{ID: "c", Name: "Acme", Email: "a@acme.test", Phone: "1", Address: "Main St", Notes: "vip", CreatedAt: "2024-01-01T00:00:00Z"}
	row, err := mapping.EntityRow(mapping.Clients, client, "u")
	require.NoError(t, err)
	var cr mapping.ClientRecord
	roundTrip(t, row, &cr)
	assert.Equal(t, client, mapping.ClientFromRecord(cr))

	expense := domain.Expense{ID: "e", Description: "Laptop", Amount: 1299.99, Category: "equipment", Date: "2024-01-03", CreatedAt: "2024-01-03T00:00:00Z"}
	row, err = mapping.EntityRow(mapping.Expenses, expense, "u")
	require.NoError(t, err)
	var er mapping.ExpenseRecord
	roundTrip(t, row, &er)
	assert.Equal(t, expense, mapping.ExpenseFromRecord(er))

	entry := domain.TimeEntry{ID: "t", ClientID: "c", Project: "Site", Description: "copy", Billable: true, Rate: 100, Duration: 5400, Date: "2024-01-04", CreatedAt: "2024-01-04T00:00:00Z"}
	row, err = mapping.EntityRow(mapping.TimeEntries, entry, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(5400), row["duration"])
	var tr mapping.TimeEntryRecord
	roundTrip(t, row, &tr)
	assert.Equal(t, entry, mapping.TimeEntryFromRecord(tr))

	account := domain.BankAccount{ID: "b", BankName: "Bank", AccountName: "Me", AccountNumber: "123", RoutingNumber: "021", SwiftCode: "BANKUS33", IBAN: "DE00", Currency: "EUR", CreatedAt: "2024-01-05T00:00:00Z"}
	row, err = mapping.EntityRow(mapping.BankAccounts, account, "u")
	require.NoError(t, err)
	assert.Equal(t, "BANKUS33", row["swift_code"])
	var br mapping.BankAccountRecord
	roundTrip(t, row, &br)
	assert.Equal(t, account, mapping.BankAccountFromRecord(br))
}

func TestPatchRow_OnlyPatchedColumns(t *testing.T) {
	row := mapping.PatchRow(mapping.Invoices, domain.Patch{
		"id":        "inv-1",
		"status":    "sent",
		"clientId":  "",
		"items":     []any{},
		"createdAt": "",
		"unknown":   true,
	})

	assert.Equal(t, mapping.Row{"id": "inv-1", "status": "sent", "client_id": nil}, row)
}

func TestEntityRow_OmitsEmptyCreatedAt(t *testing.T) {
	row, err := mapping.EntityRow(mapping.Clients, domain.Client{ID: "c", Name: "Acme"}, "u")
	require.NoError(t, err)
	assert.NotContains(t, row, "created_at")
}

func TestItemRows_PreservesOrder(t *testing.T) {
	rows := mapping.ItemRows(mapping.InvoiceItems, "inv-1", []domain.LineItem{
		{Description: "first", Quantity: 1, Rate: 1},
		{ID: "x", Description: "second", Quantity: 2, Rate: 2},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0]["position"])
	assert.Equal(t, "inv-1", rows[0]["invoice_id"])
	assert.NotContains(t, rows[0], "id")
	assert.Equal(t, "x", rows[1]["id"])
}

func TestMergeSettings_Precedence(t *testing.T) {
	logo := "https://cdn.test/logo.png"
	profile := &mapping.ProfileRecord{
		ID:           "u",
		BusinessName: "Column Name",
		LogoURL:      &logo,
		Settings:     json.RawMessage(`{"businessName":"Blob Name","businessEmail":"blob@test","defaultCurrency":"EUR","invoiceNextNumber":1042}`),
	}

	s := mapping.MergeSettings(profile)

	assert.Equal(t, "Column Name", s.BusinessName, "named column wins over blob")
	assert.Equal(t, "blob@test", s.BusinessEmail, "blob wins over empty column")
	assert.Equal(t, "EUR", s.DefaultCurrency, "blob wins over defaults")
	assert.Equal(t, 1042, s.InvoiceNextNumber)
	assert.Equal(t, "QUO", s.QuotationPrefix, "defaults fill the rest")
	require.NotNil(t, s.BusinessLogo)
	assert.Equal(t, logo, *s.BusinessLogo)
}

func TestMergeSettings_NilProfile(t *testing.T) {
	assert.Equal(t, domain.DefaultSettings(), mapping.MergeSettings(nil))
	assert.Equal(t, domain.DefaultSettings(), mapping.MergeSettings(&mapping.ProfileRecord{Settings: json.RawMessage("null")}))
}

func TestSettingsRow(t *testing.T) {
	merged := domain.DefaultSettings()
	merged.BusinessName = "Acme"
	merged.DefaultTaxRate = 20

	row, err := mapping.SettingsRow(domain.Patch{"businessName": "Acme", "defaultTaxRate": 20.0}, merged)
	require.NoError(t, err)

	assert.Equal(t, "Acme", row["business_name"])
	assert.NotContains(t, row, "business_email")
	blob, ok := row[mapping.SettingsColumn].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", blob["businessName"])
	assert.Equal(t, json.Number("20"), blob["defaultTaxRate"])
}
