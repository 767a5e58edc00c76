package mapping

import (
	"encoding/json"
	"sort"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
)

// ============================================================
// Transport records as returned by the remote store
// ============================================================

// ClientRecord is a clients row.
type ClientRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"created_at"`
}

// ItemRecord is an invoice_items or quotation_items row.
type ItemRecord struct {
	ID          string  `json:"id"`
	Position    int     `json:"position"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// InvoiceRecord is an invoices row with its embedded items.
type InvoiceRecord struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	ClientID       *string      `json:"client_id"`
	BankAccountID  *string      `json:"bank_account_id"`
	InvoiceNumber  string       `json:"invoice_number"`
	Status         string       `json:"status"`
	IssueDate      *string      `json:"issue_date"`
	DueDate        *string      `json:"due_date"`
	PaidDate       *string      `json:"paid_date"`
	Subtotal       float64      `json:"subtotal"`
	TaxRate        float64      `json:"tax_rate"`
	TaxAmount      float64      `json:"tax_amount"`
	Discount       float64      `json:"discount"`
	DiscountAmount float64      `json:"discount_amount"`
	Total          float64      `json:"total"`
	Currency       string       `json:"currency"`
	EnableTax      bool         `json:"enable_tax"`
	EnableDiscount bool         `json:"enable_discount"`
	BillingType    string       `json:"billing_type"`
	Notes          string       `json:"notes"`
	Terms          string       `json:"terms"`
	CreatedAt      string       `json:"created_at"`
	Items          []ItemRecord `json:"items"`
}

// QuotationRecord is a quotations row with its embedded items.
type QuotationRecord struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	ClientID        *string      `json:"client_id"`
	BankAccountID   *string      `json:"bank_account_id"`
	QuotationNumber string       `json:"quotation_number"`
	Status          string       `json:"status"`
	IssueDate       *string      `json:"issue_date"`
	ValidUntil      *string      `json:"valid_until"`
	Subtotal        float64      `json:"subtotal"`
	TaxRate         float64      `json:"tax_rate"`
	TaxAmount       float64      `json:"tax_amount"`
	Discount        float64      `json:"discount"`
	DiscountAmount  float64      `json:"discount_amount"`
	Total           float64      `json:"total"`
	Currency        string       `json:"currency"`
	EnableTax       bool         `json:"enable_tax"`
	EnableDiscount  bool         `json:"enable_discount"`
	BillingType     string       `json:"billing_type"`
	Notes           string       `json:"notes"`
	Terms           string       `json:"terms"`
	CreatedAt       string       `json:"created_at"`
	Items           []ItemRecord `json:"items"`
}

// ExpenseRecord is an expenses row.
type ExpenseRecord struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        *string `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

// TimeEntryRecord is a time_entries row.
type TimeEntryRecord struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	ClientID    *string `json:"client_id"`
	Project     string  `json:"project"`
	Description string  `json:"description"`
	Billable    bool    `json:"billable"`
	Rate        float64 `json:"rate"`
	Duration    int64   `json:"duration"`
	Date        *string `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

// BankAccountRecord is a bank_accounts row.
type BankAccountRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	SwiftCode     string `json:"swift_code"`
	IBAN          string `json:"iban"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
}

// ProfileRecord is a profiles row. Settings is the raw JSON blob.
type ProfileRecord struct {
	ID              string          `json:"id"`
	BusinessName    string          `json:"business_name"`
	BusinessEmail   string          `json:"business_email"`
	BusinessPhone   string          `json:"business_phone"`
	BusinessAddress string          `json:"business_address"`
	LogoURL         *string         `json:"logo_url"`
	Settings        json.RawMessage `json:"settings"`
}

// ============================================================
// Record -> entity
// ============================================================

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func items(records []ItemRecord) []domain.LineItem {
	sorted := append([]ItemRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	out := make([]domain.LineItem, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, domain.LineItem{
			ID:          r.ID,
			Description: r.Description,
			Quantity:    r.Quantity,
			Rate:        r.Rate,
			Amount:      domain.ItemAmount(r.Quantity, r.Rate),
		})
	}
	return out
}

func billingType(s string) domain.BillingType {
	if s == "" {
		return domain.BillingQuantity
	}
	return domain.BillingType(s)
}

// ClientFromRecord maps a clients row.
func ClientFromRecord(r ClientRecord) domain.Client {
	return domain.Client{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Address:   r.Address,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}
}

// InvoiceFromRecord maps an invoices row and its items.
func InvoiceFromRecord(r InvoiceRecord) domain.Invoice {
	return domain.Invoice{
		ID:             r.ID,
		ClientID:       deref(r.ClientID),
		BankAccountID:  deref(r.BankAccountID),
		InvoiceNumber:  r.InvoiceNumber,
		Status:         domain.InvoiceStatus(r.Status),
		IssueDate:      deref(r.IssueDate),
		DueDate:        deref(r.DueDate),
		PaidDate:       r.PaidDate,
		Items:          items(r.Items),
		Subtotal:       r.Subtotal,
		TaxRate:        r.TaxRate,
		TaxAmount:      r.TaxAmount,
		Discount:       r.Discount,
		DiscountAmount: r.DiscountAmount,
		Total:          r.Total,
		Currency:       r.Currency,
		EnableTax:      r.EnableTax,
		EnableDiscount: r.EnableDiscount,
		BillingType:    billingType(r.BillingType),
		Notes:          r.Notes,
		Terms:          r.Terms,
		CreatedAt:      r.CreatedAt,
	}
}

// QuotationFromRecord maps a quotations row and its items.
func QuotationFromRecord(r QuotationRecord) domain.Quotation {
	return domain.Quotation{
		ID:              r.ID,
		ClientID:        deref(r.ClientID),
		BankAccountID:   deref(r.BankAccountID),
		QuotationNumber: r.QuotationNumber,
		Status:          domain.QuotationStatus(r.Status),
		IssueDate:       deref(r.IssueDate),
		ValidUntil:      deref(r.ValidUntil),
		Items:           items(r.Items),
		Subtotal:        r.Subtotal,
		TaxRate:         r.TaxRate,
		TaxAmount:       r.TaxAmount,
		Discount:        r.Discount,
		DiscountAmount:  r.DiscountAmount,
		Total:           r.Total,
		Currency:        r.Currency,
		EnableTax:       r.EnableTax,
		EnableDiscount:  r.EnableDiscount,
		BillingType:     billingType(r.BillingType),
		Notes:           r.Notes,
		Terms:           r.Terms,
		CreatedAt:       r.CreatedAt,
	}
}

// ExpenseFromRecord maps an expenses row.
func ExpenseFromRecord(r ExpenseRecord) domain.Expense {
	return domain.Expense{
		ID:          r.ID,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    domain.ExpenseCategory(r.Category),
		Date:        deref(r.Date),
		CreatedAt:   r.CreatedAt,
	}
}

// TimeEntryFromRecord maps a time_entries row.
func TimeEntryFromRecord(r TimeEntryRecord) domain.TimeEntry {
	return domain.TimeEntry{
		ID:          r.ID,
		ClientID:    deref(r.ClientID),
		Project:     r.Project,
		Description: r.Description,
		Billable:    r.Billable,
		Rate:        r.Rate,
		Duration:    r.Duration,
		Date:        deref(r.Date),
		CreatedAt:   r.CreatedAt,
	}
}

// BankAccountFromRecord maps a bank_accounts row.
func BankAccountFromRecord(r BankAccountRecord) domain.BankAccount {
	return domain.BankAccount{
		ID:            r.ID,
		BankName:      r.BankName,
		AccountName:   r.AccountName,
		AccountNumber: r.AccountNumber,
		RoutingNumber: r.RoutingNumber,
		SwiftCode:     r.SwiftCode,
		IBAN:          r.IBAN,
		Currency:      r.Currency,
		CreatedAt:     r.CreatedAt,
	}
}

// MergeSettings resolves the settings of a loaded profile.
// Precedence: defaults < settings blob < non-empty named profile columns.
// A nil profile yields the defaults.
func MergeSettings(p *ProfileRecord) domain.Settings {
	s := domain.DefaultSettings()
	if p == nil {
		return s
	}
	if len(p.Settings) > 0 && string(p.Settings) != "null" {
		blob := s
		if err := json.Unmarshal(p.Settings, &blob); err == nil {
			s = blob
		}
	}
	if p.BusinessName != "" {
		s.BusinessName = p.BusinessName
	}
	if p.BusinessEmail != "" {
		s.BusinessEmail = p.BusinessEmail
	}
	if p.BusinessPhone != "" {
		s.BusinessPhone = p.BusinessPhone
	}
	if p.BusinessAddress != "" {
		s.BusinessAddress = p.BusinessAddress
	}
	if p.LogoURL != nil && *p.LogoURL != "" {
		logo := *p.LogoURL
		s.BusinessLogo = &logo
	}
	return s
}
