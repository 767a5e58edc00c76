// Package domain defines the core business entities of the invoicing BFA.
// These models are independent of the persistence backend and use the
// application (camelCase) field naming the UI works with.
package domain

// ============================================================
// Account
// ============================================================

// User is the authenticated account owning every other entity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session as returned by an auth provider.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
	User         User   `json:"user"`
}

// Credentials are used to sign up or sign in with email and password.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Account is a locally stored login.
type Account struct {
	UserID       string
	Email        string
	PasswordHash string
}

// ============================================================
// Clients
// ============================================================

// Client is a customer that documents are issued to.
type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"createdAt"`
}

// ============================================================
// Invoices & Quotations
// ============================================================

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoicePending   InvoiceStatus = "pending"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// QuotationStatus is the lifecycle state of a quotation.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationRejected QuotationStatus = "rejected"
	QuotationExpired  QuotationStatus = "expired"
)

// Valid reports whether s is a known quotation status.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationDraft, QuotationSent, QuotationAccepted, QuotationRejected, QuotationExpired:
		return true
	}
	return false
}

// BillingType selects how line items are presented: units or hours.
type BillingType string

const (
	BillingQuantity BillingType = "quantity"
	BillingHourly   BillingType = "hourly"
)

// LineItem is one row of an invoice or quotation. Amount is derived.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// Invoice is a billing document sent to a client.
type Invoice struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"clientId"`
	BankAccountID  string        `json:"bankAccountId"`
	InvoiceNumber  string        `json:"invoiceNumber"`
	Status         InvoiceStatus `json:"status"`
	IssueDate      string        `json:"issueDate"`
	DueDate        string        `json:"dueDate"`
	PaidDate       *string       `json:"paidDate"`
	Items          []LineItem    `json:"items"`
	Subtotal       float64       `json:"subtotal"`
	TaxRate        float64       `json:"taxRate"`
	TaxAmount      float64       `json:"taxAmount"`
	Discount       float64       `json:"discount"`
	DiscountAmount float64       `json:"discountAmount"`
	Total          float64       `json:"total"`
	Currency       string        `json:"currency"`
	EnableTax      bool          `json:"enableTax"`
	EnableDiscount bool          `json:"enableDiscount"`
	BillingType    BillingType   `json:"billingType"`
	Notes          string        `json:"notes"`
	Terms          string        `json:"terms"`
	CreatedAt      string        `json:"createdAt"`
}

// Quotation is a price proposal that may later become an invoice.
type Quotation struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"clientId"`
	BankAccountID   string          `json:"bankAccountId"`
	QuotationNumber string          `json:"quotationNumber"`
	Status          QuotationStatus `json:"status"`
	IssueDate       string          `json:"issueDate"`
	ValidUntil      string          `json:"validUntil"`
	Items           []LineItem      `json:"items"`
	Subtotal        float64         `json:"subtotal"`
	TaxRate         float64         `json:"taxRate"`
	TaxAmount       float64         `json:"taxAmount"`
	Discount        float64         `json:"discount"`
	DiscountAmount  float64         `json:"discountAmount"`
	Total           float64         `json:"total"`
	Currency        string          `json:"currency"`
	EnableTax       bool            `json:"enableTax"`
	EnableDiscount  bool            `json:"enableDiscount"`
	BillingType     BillingType     `json:"billingType"`
	Notes           string          `json:"notes"`
	Terms           string          `json:"terms"`
	CreatedAt       string          `json:"createdAt"`
}

// ============================================================
// Expenses & Time tracking
// ============================================================

// ExpenseCategory groups expenses on reports.
type ExpenseCategory string

// ExpenseCategories lists every known category in display order.
var ExpenseCategories = []ExpenseCategory{
	"software", "office", "travel", "marketing", "education", "equipment",
	"utilities", "meals", "insurance", "professional", "other",
}

// Valid reports whether c is a known expense category.
func (c ExpenseCategory) Valid() bool {
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Expense is money spent by the business.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Category    ExpenseCategory `json:"category"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"createdAt"`
}

// TimeEntry is a tracked block of work. Duration is in seconds.
type TimeEntry struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"clientId"`
	Project     string  `json:"project"`
	Description string  `json:"description"`
	Billable    bool    `json:"billable"`
	Rate        float64 `json:"rate"`
	Duration    int64   `json:"duration"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"createdAt"`
}

// BillableAmount is the value of the entry at its hourly rate, 0 when not billable.
func (t TimeEntry) BillableAmount() float64 {
	if !t.Billable {
		return 0
	}
	return float64(t.Duration) / 3600 * t.Rate
}

// ============================================================
// Bank accounts
// ============================================================

// BankAccount holds payment details printed on documents.
type BankAccount struct {
	ID            string `json:"id"`
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
	SwiftCode     string `json:"swiftCode"`
	IBAN          string `json:"iban"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"createdAt"`
}

// Patch is a partial entity keyed by application field names.
// Update actions carry a Patch that must include "id".
type Patch map[string]any

// ID returns the "id" key of the patch, or "" when absent.
func (p Patch) ID() string {
	id, _ := p["id"].(string)
	return id
}

// Has reports whether the patch sets key.
func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}
