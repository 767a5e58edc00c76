package state

import (
	"encoding/json"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
)

// State is an immutable snapshot of the signed-in account. Reduce never
// mutates a published State; collections are replaced, not edited in place.
type State struct {
	User         *domain.User         `json:"user"`
	Loading      bool                 `json:"loading"`
	Theme        string               `json:"theme"`
	SidebarOpen  bool                 `json:"sidebarOpen"`
	Clients      []domain.Client      `json:"clients"`
	Invoices     []domain.Invoice     `json:"invoices"`
	Quotations   []domain.Quotation   `json:"quotations"`
	Expenses     []domain.Expense     `json:"expenses"`
	TimeEntries  []domain.TimeEntry   `json:"timeEntries"`
	BankAccounts []domain.BankAccount `json:"bankAccounts"`
	Settings     domain.Settings      `json:"settings"`
	Currencies   []domain.Currency    `json:"currencies"`
}

// Initial is the state before authentication has been resolved.
func Initial() State {
	return State{
		Loading:      true,
		Theme:        "light",
		SidebarOpen:  true,
		Clients:      []domain.Client{},
		Invoices:     []domain.Invoice{},
		Quotations:   []domain.Quotation{},
		Expenses:     []domain.Expense{},
		TimeEntries:  []domain.TimeEntry{},
		BankAccounts: []domain.BankAccount{},
		Settings:     domain.DefaultSettings(),
		Currencies:   domain.Currencies(),
	}
}

// FindInvoice returns the invoice with id.
func (s State) FindInvoice(id string) (domain.Invoice, bool) {
	return find(s.Invoices, id, invoiceID)
}

// FindQuotation returns the quotation with id.
func (s State) FindQuotation(id string) (domain.Quotation, bool) {
	return find(s.Quotations, id, quotationID)
}

// FindClient returns the client with id.
func (s State) FindClient(id string) (domain.Client, bool) {
	return find(s.Clients, id, clientID)
}

func clientID(c domain.Client) string           { return c.ID }
func invoiceID(i domain.Invoice) string         { return i.ID }
func quotationID(q domain.Quotation) string     { return q.ID }
func expenseID(e domain.Expense) string         { return e.ID }
func timeEntryID(t domain.TimeEntry) string     { return t.ID }
func bankAccountID(b domain.BankAccount) string { return b.ID }

// Document totals are always recomputed, so a patch naming a derived field
// cannot break them.
func recalcInvoice(inv *domain.Invoice, _ domain.Patch) { inv.Recalculate() }

func recalcQuotation(q *domain.Quotation, _ domain.Patch) { q.Recalculate() }

// Reduce applies a to s and returns the next state. It is pure and total:
// unknown action types and malformed payloads leave the state unchanged.
func Reduce(s State, a Action) State {
	next, _ := Apply(s, a)
	return next
}

// Apply is Reduce that also reports whether the action took effect. Updates
// and deletes of unknown ids, payloads of the wrong type and patches that do
// not fit the entity are not applied.
func Apply(s State, a Action) (State, bool) {
	applied := true
	switch a.Type {
	case SetUser:
		u, _ := a.Payload.(*domain.User)
		s.User = u
	case SetLoading:
		v, ok := a.Payload.(bool)
		if ok {
			s.Loading = v
		}
		applied = ok
	case SetTheme:
		v, ok := a.Payload.(string)
		if ok {
			s.Theme = v
		}
		applied = ok
	case ToggleSidebar:
		s.SidebarOpen = !s.SidebarOpen
	case LoadData:
		d, ok := a.Payload.(LoadedData)
		if ok {
			s = load(s, d)
		}
		applied = ok

	case AddClient:
		c, ok := a.Payload.(domain.Client)
		if ok {
			s.Clients = prepend(s.Clients, c)
		}
		applied = ok
	case UpdateClient:
		s.Clients, applied = update(s.Clients, a.Payload, clientID, nil)
	case DeleteClient:
		s.Clients, applied = remove(s.Clients, a.Payload, clientID)

	case AddInvoice:
		inv, ok := a.Payload.(domain.Invoice)
		if ok {
			recalcInvoice(&inv, nil)
			s.Invoices = prepend(s.Invoices, inv)
			s.Settings.InvoiceNextNumber++
		}
		applied = ok
	case UpdateInvoice:
		s.Invoices, applied = update(s.Invoices, a.Payload, invoiceID, recalcInvoice)
	case DeleteInvoice:
		s.Invoices, applied = remove(s.Invoices, a.Payload, invoiceID)

	case AddQuotation:
		q, ok := a.Payload.(domain.Quotation)
		if ok {
			recalcQuotation(&q, nil)
			s.Quotations = prepend(s.Quotations, q)
			s.Settings.QuotationNextNumber++
		}
		applied = ok
	case UpdateQuotation:
		s.Quotations, applied = update(s.Quotations, a.Payload, quotationID, recalcQuotation)
	case DeleteQuotation:
		s.Quotations, applied = remove(s.Quotations, a.Payload, quotationID)

	case AddExpense:
		e, ok := a.Payload.(domain.Expense)
		if ok {
			s.Expenses = prepend(s.Expenses, e)
		}
		applied = ok
	case UpdateExpense:
		s.Expenses, applied = update(s.Expenses, a.Payload, expenseID, nil)
	case DeleteExpense:
		s.Expenses, applied = remove(s.Expenses, a.Payload, expenseID)

	case AddTimeEntry:
		t, ok := a.Payload.(domain.TimeEntry)
		if ok {
			s.TimeEntries = prepend(s.TimeEntries, t)
		}
		applied = ok
	case UpdateTimeEntry:
		s.TimeEntries, applied = update(s.TimeEntries, a.Payload, timeEntryID, nil)
	case DeleteTimeEntry:
		s.TimeEntries, applied = remove(s.TimeEntries, a.Payload, timeEntryID)

	case AddBankAccount:
		b, ok := a.Payload.(domain.BankAccount)
		if ok {
			s.BankAccounts = prepend(s.BankAccounts, b)
		}
		applied = ok
	case UpdateBankAccount:
		s.BankAccounts, applied = update(s.BankAccounts, a.Payload, bankAccountID, nil)
	case DeleteBankAccount:
		s.BankAccounts, applied = remove(s.BankAccounts, a.Payload, bankAccountID)

	case UpdateSettings:
		applied = false
		if p, ok := a.Payload.(domain.Patch); ok {
			if merged, err := merge(s.Settings, p); err == nil {
				s.Settings = merged
				applied = true
			}
		}
	default:
		applied = false
	}
	return s, applied
}

func load(s State, d LoadedData) State {
	if d.Clients != nil {
		s.Clients = d.Clients
	}
	if d.Invoices != nil {
		s.Invoices = d.Invoices
	}
	if d.Quotations != nil {
		s.Quotations = d.Quotations
	}
	if d.Expenses != nil {
		s.Expenses = d.Expenses
	}
	if d.TimeEntries != nil {
		s.TimeEntries = d.TimeEntries
	}
	if d.BankAccounts != nil {
		s.BankAccounts = d.BankAccounts
	}
	if d.Settings != nil {
		s.Settings = *d.Settings
	}
	s.Loading = false
	return s
}

func find[T any](list []T, id string, idOf func(T) string) (T, bool) {
	for _, v := range list {
		if idOf(v) == id {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func prepend[T any](list []T, v T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, v)
	return append(out, list...)
}

func remove[T any](list []T, payload any, idOf func(T) string) ([]T, bool) {
	id, ok := payload.(string)
	if !ok {
		return list, false
	}
	out := make([]T, 0, len(list))
	for _, v := range list {
		if idOf(v) != id {
			out = append(out, v)
		}
	}
	if len(out) == len(list) {
		return list, false
	}
	return out, true
}

// update shallow-merges a patch into the entity with the patch's id.
// fix runs after the merge to refresh derived fields.
func update[T any](list []T, payload any, idOf func(T) string, fix func(*T, domain.Patch)) ([]T, bool) {
	p, ok := payload.(domain.Patch)
	if !ok || p.ID() == "" {
		return list, false
	}
	for i, v := range list {
		if idOf(v) != p.ID() {
			continue
		}
		merged, err := merge(v, p)
		if err != nil {
			return list, false
		}
		if fix != nil {
			fix(&merged, p)
		}
		out := make([]T, len(list))
		copy(out, list)
		out[i] = merged
		return out, true
	}
	return list, false
}

// merge overlays the application-named keys of p onto v.
func merge[T any](v T, p domain.Patch) (T, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return v, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return v, err
	}
	for k, val := range p {
		raw, err := json.Marshal(val)
		if err != nil {
			return v, err
		}
		fields[k] = raw
	}
	combined, err := json.Marshal(fields)
	if err != nil {
		return v, err
	}
	var out T
	if err := json.Unmarshal(combined, &out); err != nil {
		return v, err
	}
	return out, nil
}
