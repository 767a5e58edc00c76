package report_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/report"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func sampleState() state.State {
	s := state.Initial()
	s.Loading = false
	s.Clients = []domain.Client{
		{ID: "c1", Name: "Acme"},
		{ID: "c2", Name: "Globex"},
	}
	s.Invoices = []domain.Invoice{
		{ID: "i1", ClientID: "c1", InvoiceNumber: "INV-1001", Status: domain.InvoicePaid, IssueDate: "2026-03-01",
			PaidDate: strptr("2026-03-05"), Total: 110, TaxAmount: 10, CreatedAt: "2026-03-01T10:00:00Z"},
		{ID: "i2", ClientID: "c2", InvoiceNumber: "INV-1002", Status: domain.InvoicePaid, IssueDate: "2026-02-01",
			Total: 50.1, TaxAmount: 0, CreatedAt: "2026-02-01T10:00:00Z"},
		{ID: "i3", ClientID: "gone", InvoiceNumber: "INV-1003", Status: domain.InvoicePaid, IssueDate: "2026-03-02",
			PaidDate: strptr("2026-03-03"), Total: 20.2, CreatedAt: "2026-03-02T10:00:00Z"},
		{ID: "i4", ClientID: "c1", InvoiceNumber: "INV-1004", Status: domain.InvoiceSent, IssueDate: "2026-03-04",
			Total: 30, CreatedAt: "2026-03-04T10:00:00Z"},
		{ID: "i5", ClientID: "c1", InvoiceNumber: "INV-1005", Status: domain.InvoicePending, IssueDate: "2026-03-05",
			Total: 5, CreatedAt: "2026-03-05T10:00:00Z"},
		{ID: "i6", ClientID: "c2", InvoiceNumber: "INV-1006", Status: domain.InvoiceOverdue, IssueDate: "2026-01-05",
			Total: 70, CreatedAt: "2026-01-05T10:00:00Z"},
		{ID: "i7", ClientID: "c2", InvoiceNumber: "INV-1007", Status: domain.InvoiceDraft, IssueDate: "2026-03-08",
			Total: 999, CreatedAt: "2026-03-08T10:00:00Z"},
	}
	s.Expenses = []domain.Expense{
		{ID: "e1", Description: "Hosting", Amount: 20.1, Category: "software", Date: "2026-03-01"},
		{ID: "e2", Description: "Train", Amount: 15, Category: "travel", Date: "2026-03-02"},
		{ID: "e3", Description: "Editor", Amount: 9.9, Category: "software", Date: "2026-03-03"},
	}
	s.TimeEntries = []domain.TimeEntry{
		{ID: "t1", Billable: true, Rate: 100, Duration: 1800, Date: "2026-03-09"},
		{ID: "t2", Billable: false, Rate: 100, Duration: 600, Date: "2026-03-09"},
		{ID: "t3", Billable: true, Rate: 100, Duration: 3600, Date: "2026-03-08"},
	}
	return s
}

var now = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestBuild_Totals(t *testing.T) {
	sum := report.Build(sampleState(), now, 6)

	assert.InDelta(t, 180.3, sum.TotalRevenue, 1e-9)
	assert.InDelta(t, 35.0, sum.PendingAmount, 1e-9)
	assert.InDelta(t, 70.0, sum.OverdueAmount, 1e-9)
	assert.Equal(t, 1, sum.OverdueCount)
	assert.InDelta(t, 45.0, sum.TotalExpenses, 1e-9)
	assert.InDelta(t, 135.3, sum.Profit, 1e-9)
	assert.Equal(t, 2, sum.TotalClients)
	assert.InDelta(t, 10.0, sum.TaxCollected, 1e-9)
}

func TestBuild_MonthlyRevenue(t *testing.T) {
	sum := report.Build(sampleState(), now, 3)

	require.Len(t, sum.MonthlyRevenue, 3)
	assert.Equal(t, "Jan 2026", sum.MonthlyRevenue[0].Label)
	assert.Equal(t, "2026-03", sum.MonthlyRevenue[2].Month)
	assert.InDelta(t, 0.0, sum.MonthlyRevenue[0].Revenue, 1e-9)
	// no paid date: bucketed by creation
	assert.InDelta(t, 50.1, sum.MonthlyRevenue[1].Revenue, 1e-9)
	assert.InDelta(t, 130.2, sum.MonthlyRevenue[2].Revenue, 1e-9)
}

func TestBuild_MonthlyRevenueCrossesYear(t *testing.T) {
	got := report.MonthlyRevenue(nil, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), 2)

	require.Len(t, got, 2)
	assert.Equal(t, "Dec 2025", got[0].Label)
	assert.Equal(t, "Jan 2026", got[1].Label)
}

func TestBuild_ExpensesByCategory(t *testing.T) {
	got := report.ExpensesByCategory(sampleState().Expenses)

	require.Len(t, got, 2)
	assert.Equal(t, "software", got[0].Name)
	assert.InDelta(t, 30.0, got[0].Value, 1e-9)
	assert.Equal(t, "travel", got[1].Name)
}

func TestBuild_TopClientsUsesUnknownForOrphans(t *testing.T) {
	sum := report.Build(sampleState(), now, 6)

	require.Len(t, sum.TopClients, 3)
	assert.Equal(t, "Acme", sum.TopClients[0].Name)
	assert.Equal(t, "Globex", sum.TopClients[1].Name)
	assert.Equal(t, report.UnknownClient, sum.TopClients[2].Name)
}

func TestBuild_RecentInvoices(t *testing.T) {
	sum := report.Build(sampleState(), now, 6)

	require.Len(t, sum.RecentInvoices, 5)
	assert.Equal(t, "i7", sum.RecentInvoices[0].ID)
	assert.Equal(t, "Globex", sum.RecentInvoices[0].ClientName)
	assert.Equal(t, "i1", sum.RecentInvoices[4].ID)
}

func TestBuild_RecentInvoicesNameOrphansUnknownClient(t *testing.T) {
	s := state.Initial()
	s.Clients = []domain.Client{{ID: "c1", Name: "Acme"}}
	s.Invoices = []domain.Invoice{
		{ID: "a", ClientID: "c1", CreatedAt: "2026-03-02T10:00:00Z"},
		{ID: "b", ClientID: "gone", CreatedAt: "2026-03-01T10:00:00Z"},
	}

	sum := report.Build(s, now, 1)

	require.Len(t, sum.RecentInvoices, 2)
	assert.Equal(t, "Acme", sum.RecentInvoices[0].ClientName)
	assert.Equal(t, "Unknown Client", sum.RecentInvoices[1].ClientName)
}

func TestBuild_TodayTime(t *testing.T) {
	sum := report.Build(sampleState(), now, 6)

	assert.Equal(t, int64(2400), sum.TodayTracked)
	assert.InDelta(t, 50.0, sum.TodayBillable, 1e-9)
}

func TestBuild_EmptyState(t *testing.T) {
	sum := report.Build(state.Initial(), now, 0)

	assert.Zero(t, sum.TotalRevenue)
	assert.Len(t, sum.MonthlyRevenue, 6)
	assert.Empty(t, sum.TopClients)
	assert.NotNil(t, sum.RecentInvoices)
}

func TestWriteCSV(t *testing.T) {
	s := sampleState()
	s.Invoices = s.Invoices[2:3]
	s.Expenses = s.Expenses[:1]

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, s))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Type", "Date", "Description", "Amount", "Status"},
		{"Invoice", "2026-03-02", "INV-1003 - Unknown", "20.2", "paid"},
		{"Expense", "2026-03-01", "Hosting", "20.1", "Paid"},
	}, rows)
}
