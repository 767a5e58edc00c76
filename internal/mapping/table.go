// Package mapping translates between the application field names the UI
// works with (camelCase) and the transport column names of the remote
// store (snake_case). Every entity has one explicit table; no naming
// conversion is inferred at runtime.
package mapping

// Kind is the storage type of a transport column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindInteger
	KindBool
	KindDate
	KindTimestamp
	KindUUID
	KindJSON
)

// Column pairs a transport column with its application field.
// App is empty for transport-only columns (owner, parent key, position).
type Column struct {
	Transport string
	App       string
	Kind      Kind
	Nullable  bool
}

// Table describes one remote table.
type Table struct {
	Name    string
	Columns []Column
	// Owner is the column scoping rows to an account ("" when the key is the account id).
	Owner string
	// Parent is the column referencing the owning document for child tables,
	// and ParentTable the table it points at.
	Parent      string
	ParentTable string
}

// ByApp finds the column mapped to an application field.
func (t Table) ByApp(app string) (Column, bool) {
	for _, c := range t.Columns {
		if c.App != "" && c.App == app {
			return c, true
		}
	}
	return Column{}, false
}

// ByTransport finds a column by its transport name.
func (t Table) ByTransport(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Transport == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the transport column names in declaration order.
func (t Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Transport
	}
	return out
}

// Row is one record keyed by transport column names.
type Row map[string]any

func text(transport, app string) Column { return Column{Transport: transport, App: app, Kind: KindText} }
func number(transport, app string) Column {
	return Column{Transport: transport, App: app, Kind: KindNumber}
}
func boolean(transport, app string) Column {
	return Column{Transport: transport, App: app, Kind: KindBool}
}
func date(transport, app string) Column {
	return Column{Transport: transport, App: app, Kind: KindDate, Nullable: true}
}
func ref(transport, app string) Column {
	return Column{Transport: transport, App: app, Kind: KindUUID, Nullable: true}
}

var (
	idColumn        = Column{Transport: "id", App: "id", Kind: KindUUID}
	ownerColumn     = Column{Transport: "user_id", Kind: KindUUID}
	createdAtColumn = Column{Transport: "created_at", App: "createdAt", Kind: KindTimestamp, Nullable: true}
)

// Clients is the clients table.
var Clients = Table{
	Name:  "clients",
	Owner: "user_id",
	Columns: []Column{
		idColumn,
		ownerColumn,
		text("name", "name"),
		text("email", "email"),
		text("phone", "phone"),
		text("address", "address"),
		text("notes", "notes"),
		createdAtColumn,
	},
}

func documentColumns(numberColumn, numberField, secondDate, secondDateField string) []Column {
	return []Column{
		idColumn,
		ownerColumn,
		ref("client_id", "clientId"),
		ref("bank_account_id", "bankAccountId"),
		text(numberColumn, numberField),
		text("status", "status"),
		date("issue_date", "issueDate"),
		date(secondDate, secondDateField),
		number("subtotal", "subtotal"),
		number("tax_rate", "taxRate"),
		number("tax_amount", "taxAmount"),
		number("discount", "discount"),
		number("discount_amount", "discountAmount"),
		number("total", "total"),
		text("currency", "currency"),
		boolean("enable_tax", "enableTax"),
		boolean("enable_discount", "enableDiscount"),
		text("billing_type", "billingType"),
		text("notes", "notes"),
		text("terms", "terms"),
		createdAtColumn,
	}
}

// Invoices is the invoices table. Line items live in InvoiceItems.
var Invoices = Table{
	Name:    "invoices",
	Owner:   "user_id",
	Columns: append(documentColumns("invoice_number", "invoiceNumber", "due_date", "dueDate"), date("paid_date", "paidDate")),
}

// Quotations is the quotations table. Line items live in QuotationItems.
var Quotations = Table{
	Name:    "quotations",
	Owner:   "user_id",
	Columns: documentColumns("quotation_number", "quotationNumber", "valid_until", "validUntil"),
}

func itemTable(name, parent, parentTable string) Table {
	return Table{
		Name:        name,
		Parent:      parent,
		ParentTable: parentTable,
		Columns: []Column{
			idColumn,
			{Transport: parent, Kind: KindUUID},
			{Transport: "position", Kind: KindInteger},
			text("description", "description"),
			number("quantity", "quantity"),
			number("rate", "rate"),
		},
	}
}

// InvoiceItems holds invoice line items keyed by invoice_id.
var InvoiceItems = itemTable("invoice_items", "invoice_id", "invoices")

// QuotationItems holds quotation line items keyed by quotation_id.
var QuotationItems = itemTable("quotation_items", "quotation_id", "quotations")

// Expenses is the expenses table.
var Expenses = Table{
	Name:  "expenses",
	Owner: "user_id",
	Columns: []Column{
		idColumn,
		ownerColumn,
		text("description", "description"),
		number("amount", "amount"),
		text("category", "category"),
		date("date", "date"),
		createdAtColumn,
	},
}

// TimeEntries is the time_entries table.
var TimeEntries = Table{
	Name:  "time_entries",
	Owner: "user_id",
	Columns: []Column{
		idColumn,
		ownerColumn,
		ref("client_id", "clientId"),
		text("project", "project"),
		text("description", "description"),
		boolean("billable", "billable"),
		number("rate", "rate"),
		{Transport: "duration", App: "duration", Kind: KindInteger},
		date("date", "date"),
		createdAtColumn,
	},
}

// BankAccounts is the bank_accounts table.
var BankAccounts = Table{
	Name:  "bank_accounts",
	Owner: "user_id",
	Columns: []Column{
		idColumn,
		ownerColumn,
		text("bank_name", "bankName"),
		text("account_name", "accountName"),
		text("account_number", "accountNumber"),
		text("routing_number", "routingNumber"),
		text("swift_code", "swiftCode"),
		text("iban", "iban"),
		text("currency", "currency"),
		createdAtColumn,
	},
}

// SettingsColumn holds the full settings object as a JSON blob.
const SettingsColumn = "settings"

// Profiles is the per-account profile row; its id is the account id.
// Named columns carry the business identity; everything else lives in the blob.
var Profiles = Table{
	Name: "profiles",
	Columns: []Column{
		{Transport: "id", Kind: KindUUID},
		text("business_name", "businessName"),
		text("business_email", "businessEmail"),
		text("business_phone", "businessPhone"),
		text("business_address", "businessAddress"),
		{Transport: "logo_url", App: "businessLogo", Kind: KindText, Nullable: true},
		{Transport: SettingsColumn, Kind: KindJSON, Nullable: true},
	},
}

// All lists every table in dependency order (parents before children).
var All = []Table{Profiles, Clients, BankAccounts, Invoices, InvoiceItems, Quotations, QuotationItems, Expenses, TimeEntries}

// Lookup finds a table by name.
func Lookup(name string) (Table, bool) {
	for _, t := range All {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
