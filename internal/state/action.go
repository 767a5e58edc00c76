// Package state holds the in-memory account snapshot and the pure reducer
// that applies actions to it.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
)

// ActionType names one of the fixed set of state transitions.
type ActionType string

const (
	AddClient    ActionType = "ADD_CLIENT"
	UpdateClient ActionType = "UPDATE_CLIENT"
	DeleteClient ActionType = "DELETE_CLIENT"

	AddInvoice    ActionType = "ADD_INVOICE"
	UpdateInvoice ActionType = "UPDATE_INVOICE"
	DeleteInvoice ActionType = "DELETE_INVOICE"

	AddQuotation    ActionType = "ADD_QUOTATION"
	UpdateQuotation ActionType = "UPDATE_QUOTATION"
	DeleteQuotation ActionType = "DELETE_QUOTATION"

	AddExpense    ActionType = "ADD_EXPENSE"
	UpdateExpense ActionType = "UPDATE_EXPENSE"
	DeleteExpense ActionType = "DELETE_EXPENSE"

	AddTimeEntry    ActionType = "ADD_TIME_ENTRY"
	UpdateTimeEntry ActionType = "UPDATE_TIME_ENTRY"
	DeleteTimeEntry ActionType = "DELETE_TIME_ENTRY"

	AddBankAccount    ActionType = "ADD_BANK_ACCOUNT"
	UpdateBankAccount ActionType = "UPDATE_BANK_ACCOUNT"
	DeleteBankAccount ActionType = "DELETE_BANK_ACCOUNT"

	UpdateSettings ActionType = "UPDATE_SETTINGS"
	SetTheme       ActionType = "SET_THEME"
	ToggleSidebar  ActionType = "TOGGLE_SIDEBAR"
	SetUser        ActionType = "SET_USER"
	SetLoading     ActionType = "SET_LOADING"
	LoadData       ActionType = "LOAD_DATA"
)

// Action is a typed state transition. Payload types by kind:
//
//	ADD_*            the full entity value (domain.Client, domain.Invoice, ...)
//	UPDATE_*         domain.Patch with "id"
//	DELETE_*         the entity id (string)
//	UPDATE_SETTINGS  domain.Patch
//	SET_THEME        string
//	SET_USER         *domain.User (nil when signed out)
//	SET_LOADING      bool
//	LOAD_DATA        LoadedData
type Action struct {
	Type    ActionType `json:"type"`
	Payload any        `json:"payload,omitempty"`
}

// LoadedData replaces collections wholesale. Nil fields are left untouched.
type LoadedData struct {
	Clients      []domain.Client      `json:"clients,omitempty"`
	Invoices     []domain.Invoice     `json:"invoices,omitempty"`
	Quotations   []domain.Quotation   `json:"quotations,omitempty"`
	Expenses     []domain.Expense     `json:"expenses,omitempty"`
	TimeEntries  []domain.TimeEntry   `json:"timeEntries,omitempty"`
	BankAccounts []domain.BankAccount `json:"bankAccounts,omitempty"`
	Settings     *domain.Settings     `json:"settings,omitempty"`
}

// EmptyData resets every collection and the settings to their defaults.
func EmptyData() LoadedData {
	settings := domain.DefaultSettings()
	return LoadedData{
		Clients:      []domain.Client{},
		Invoices:     []domain.Invoice{},
		Quotations:   []domain.Quotation{},
		Expenses:     []domain.Expense{},
		TimeEntries:  []domain.TimeEntry{},
		BankAccounts: []domain.BankAccount{},
		Settings:     &settings,
	}
}

// --- constructors ---

func NewAddClient(c domain.Client) Action           { return Action{Type: AddClient, Payload: c} }
func NewAddInvoice(inv domain.Invoice) Action       { return Action{Type: AddInvoice, Payload: inv} }
func NewAddQuotation(q domain.Quotation) Action     { return Action{Type: AddQuotation, Payload: q} }
func NewAddExpense(e domain.Expense) Action         { return Action{Type: AddExpense, Payload: e} }
func NewAddTimeEntry(t domain.TimeEntry) Action     { return Action{Type: AddTimeEntry, Payload: t} }
func NewAddBankAccount(b domain.BankAccount) Action { return Action{Type: AddBankAccount, Payload: b} }

// NewUpdate builds an UPDATE_* action of the given type.
func NewUpdate(t ActionType, p domain.Patch) Action { return Action{Type: t, Payload: p} }

// NewDelete builds a DELETE_* action of the given type.
func NewDelete(t ActionType, id string) Action { return Action{Type: t, Payload: id} }

func NewUpdateSettings(p domain.Patch) Action { return Action{Type: UpdateSettings, Payload: p} }
func NewSetTheme(theme string) Action         { return Action{Type: SetTheme, Payload: theme} }
func NewToggleSidebar() Action                { return Action{Type: ToggleSidebar} }
func NewSetUser(u *domain.User) Action        { return Action{Type: SetUser, Payload: u} }
func NewSetLoading(v bool) Action             { return Action{Type: SetLoading, Payload: v} }
func NewLoadData(d LoadedData) Action         { return Action{Type: LoadData, Payload: d} }

// Entity returns the entity kind an action targets ("client", "invoice", ...),
// or "" for actions that do not target a collection.
func (a Action) Entity() string {
	switch a.Type {
	case AddClient, UpdateClient, DeleteClient:
		return "client"
	case AddInvoice, UpdateInvoice, DeleteInvoice:
		return "invoice"
	case AddQuotation, UpdateQuotation, DeleteQuotation:
		return "quotation"
	case AddExpense, UpdateExpense, DeleteExpense:
		return "expense"
	case AddTimeEntry, UpdateTimeEntry, DeleteTimeEntry:
		return "time_entry"
	case AddBankAccount, UpdateBankAccount, DeleteBankAccount:
		return "bank_account"
	}
	return ""
}

// DecodeAction parses a JSON action {"type": ..., "payload": ...} into its typed payload.
func DecodeAction(raw []byte) (Action, error) {
	var wire struct {
		Type    ActionType      `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Action{}, &domain.ErrValidation{Field: "action", Message: err.Error()}
	}
	if wire.Type == "" {
		return Action{}, &domain.ErrValidation{Field: "type", Message: "action type is required"}
	}

	var (
		payload any
		err     error
	)
	switch wire.Type {
	case AddClient:
		payload, err = decodeAs[domain.Client](wire.Payload)
	case AddInvoice:
		payload, err = decodeAs[domain.Invoice](wire.Payload)
	case AddQuotation:
		payload, err = decodeAs[domain.Quotation](wire.Payload)
	case AddExpense:
		payload, err = decodeAs[domain.Expense](wire.Payload)
	case AddTimeEntry:
		payload, err = decodeAs[domain.TimeEntry](wire.Payload)
	case AddBankAccount:
		payload, err = decodeAs[domain.BankAccount](wire.Payload)
	case UpdateClient, UpdateInvoice, UpdateQuotation, UpdateExpense, UpdateTimeEntry, UpdateBankAccount:
		var p domain.Patch
		p, err = decodeAs[domain.Patch](wire.Payload)
		if err == nil && p.ID() == "" {
			err = fmt.Errorf("update payload requires an id")
		}
		payload = p
	case UpdateSettings:
		payload, err = decodeAs[domain.Patch](wire.Payload)
	case DeleteClient, DeleteInvoice, DeleteQuotation, DeleteExpense, DeleteTimeEntry, DeleteBankAccount, SetTheme:
		payload, err = decodeAs[string](wire.Payload)
	case SetUser:
		payload, err = decodeAs[*domain.User](wire.Payload)
	case SetLoading:
		payload, err = decodeAs[bool](wire.Payload)
	case LoadData:
		payload, err = decodeAs[LoadedData](wire.Payload)
	case ToggleSidebar:
	default:
		// Unknown types are carried through and ignored by the reducer.
	}
	if err != nil {
		return Action{}, &domain.ErrValidation{Field: "payload", Message: fmt.Sprintf("%s: %v", wire.Type, err)}
	}
	return Action{Type: wire.Type, Payload: payload}, nil
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
