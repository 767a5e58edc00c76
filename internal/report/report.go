// Package report computes the dashboard and reports figures over an
// account snapshot and exports them as CSV.
package report

import (
	"sort"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"github.com/shopspring/decimal"
)

const (
	// UnknownClient names invoices whose client no longer exists in the
	// top clients chart and the CSV export.
	UnknownClient = "Unknown"
	// UnknownRecentClient is the same fallback in the recent invoices list.
	UnknownRecentClient = "Unknown Client"

	topClients  = 5
	recentCount = 5
)

// MonthRevenue is the paid revenue of one calendar month.
type MonthRevenue struct {
	Month   string  `json:"month"`
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
}

// NamedAmount is a labelled money figure (category or client).
type NamedAmount struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RecentInvoice is a compact invoice row for the dashboard.
type RecentInvoice struct {
	ID            string               `json:"id"`
	InvoiceNumber string               `json:"invoiceNumber"`
	ClientName    string               `json:"clientName"`
	Status        domain.InvoiceStatus `json:"status"`
	Total         float64              `json:"total"`
	Currency      string               `json:"currency"`
	CreatedAt     string               `json:"createdAt"`
}

// Summary gathers every figure shown on the dashboard and reports pages.
type Summary struct {
	TotalRevenue       float64         `json:"totalRevenue"`
	PendingAmount      float64         `json:"pendingAmount"`
	OverdueAmount      float64         `json:"overdueAmount"`
	OverdueCount       int             `json:"overdueCount"`
	TotalExpenses      float64         `json:"totalExpenses"`
	Profit             float64         `json:"profit"`
	TotalClients       int             `json:"totalClients"`
	TaxCollected       float64         `json:"taxCollected"`
	MonthlyRevenue     []MonthRevenue  `json:"monthlyRevenue"`
	ExpensesByCategory []NamedAmount   `json:"expensesByCategory"`
	TopClients         []NamedAmount   `json:"topClients"`
	RecentInvoices     []RecentInvoice `json:"recentInvoices"`
	TodayTracked       int64           `json:"todayTrackedSeconds"`
	TodayBillable      float64         `json:"todayBillable"`
}

// Build computes the summary of s as of now, with months of revenue history.
func Build(s state.State, now time.Time, months int) Summary {
	if months <= 0 {
		months = 6
	}

	var revenue, pending, overdue, tax, expenses decimal.Decimal
	overdueCount := 0
	byClient := map[string]decimal.Decimal{}

	for _, inv := range s.Invoices {
		total := decimal.NewFromFloat(inv.Total)
		switch inv.Status {
		case domain.InvoicePaid:
			revenue = revenue.Add(total)
			tax = tax.Add(decimal.NewFromFloat(inv.TaxAmount))
			byClient[inv.ClientID] = byClient[inv.ClientID].Add(total)
		case domain.InvoicePending, domain.InvoiceSent:
			pending = pending.Add(total)
		case domain.InvoiceOverdue:
			overdue = overdue.Add(total)
			overdueCount++
		}
	}
	for _, e := range s.Expenses {
		expenses = expenses.Add(decimal.NewFromFloat(e.Amount))
	}

	trackedToday, billableToday := todayTime(s.TimeEntries, domain.Today(now))

	return Summary{
		TotalRevenue:       revenue.InexactFloat64(),
		PendingAmount:      pending.InexactFloat64(),
		OverdueAmount:      overdue.InexactFloat64(),
		OverdueCount:       overdueCount,
		TotalExpenses:      expenses.InexactFloat64(),
		Profit:             revenue.Sub(expenses).InexactFloat64(),
		TotalClients:       len(s.Clients),
		TaxCollected:       tax.InexactFloat64(),
		MonthlyRevenue:     MonthlyRevenue(s.Invoices, now, months),
		ExpensesByCategory: ExpensesByCategory(s.Expenses),
		TopClients:         rankClients(s, byClient),
		RecentInvoices:     recentInvoices(s),
		TodayTracked:       trackedToday,
		TodayBillable:      billableToday,
	}
}

// ClientName resolves id against the snapshot.
func ClientName(s state.State, id string) string {
	if c, ok := s.FindClient(id); ok && c.Name != "" {
		return c.Name
	}
	return UnknownClient
}

// MonthlyRevenue buckets paid invoices into the last months calendar months
// (oldest first) by paid date, falling back to the creation date.
func MonthlyRevenue(invoices []domain.Invoice, now time.Time, months int) []MonthRevenue {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	out := make([]MonthRevenue, months)
	sums := make([]decimal.Decimal, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		m := first.AddDate(0, i-months+1, 0)
		key := m.Format("2006-01")
		out[i] = MonthRevenue{Month: key, Label: m.Format("Jan 2006")}
		index[key] = i
	}

	for _, inv := range invoices {
		if inv.Status != domain.InvoicePaid {
			continue
		}
		when := inv.CreatedAt
		if inv.PaidDate != nil && *inv.PaidDate != "" {
			when = *inv.PaidDate
		}
		if len(when) < 7 {
			continue
		}
		if i, ok := index[when[:7]]; ok {
			sums[i] = sums[i].Add(decimal.NewFromFloat(inv.Total))
		}
	}

	for i := range out {
		out[i].Revenue = sums[i].InexactFloat64()
	}
	return out
}

// ExpensesByCategory totals expenses per category in order of first appearance.
func ExpensesByCategory(expenses []domain.Expense) []NamedAmount {
	var order []string
	sums := map[string]decimal.Decimal{}
	for _, e := range expenses {
		c := string(e.Category)
		if _, seen := sums[c]; !seen {
			order = append(order, c)
		}
		sums[c] = sums[c].Add(decimal.NewFromFloat(e.Amount))
	}

	out := make([]NamedAmount, 0, len(order))
	for _, c := range order {
		out = append(out, NamedAmount{Name: c, Value: sums[c].InexactFloat64()})
	}
	return out
}

func rankClients(s state.State, byClient map[string]decimal.Decimal) []NamedAmount {
	out := make([]NamedAmount, 0, len(byClient))
	for id, total := range byClient {
		out = append(out, NamedAmount{Name: ClientName(s, id), Value: total.InexactFloat64()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topClients {
		out = out[:topClients]
	}
	return out
}

func recentInvoices(s state.State) []RecentInvoice {
	sorted := append([]domain.Invoice(nil), s.Invoices...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })
	if len(sorted) > recentCount {
		sorted = sorted[:recentCount]
	}

	out := make([]RecentInvoice, 0, len(sorted))
	for _, inv := range sorted {
		name := UnknownRecentClient
		if c, ok := s.FindClient(inv.ClientID); ok && c.Name != "" {
			name = c.Name
		}
		out = append(out, RecentInvoice{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			ClientName:    name,
			Status:        inv.Status,
			Total:         inv.Total,
			Currency:      inv.Currency,
			CreatedAt:     inv.CreatedAt,
		})
	}
	return out
}

func todayTime(entries []domain.TimeEntry, today string) (int64, float64) {
	var seconds int64
	billable := decimal.Zero
	for _, e := range entries {
		if e.Date != today {
			continue
		}
		seconds += e.Duration
		billable = billable.Add(decimal.NewFromFloat(e.BillableAmount()))
	}
	return seconds, billable.InexactFloat64()
}
