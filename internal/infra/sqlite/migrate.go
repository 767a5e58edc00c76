package sqlite

import "fmt"

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id               TEXT PRIMARY KEY,
		business_name    TEXT NOT NULL DEFAULT '',
		business_email   TEXT NOT NULL DEFAULT '',
		business_phone   TEXT NOT NULL DEFAULT '',
		business_address TEXT NOT NULL DEFAULT '',
		logo_url         TEXT,
		settings         TEXT
	);

	CREATE TABLE IF NOT EXISTS clients (
		id         TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		address    TEXT NOT NULL DEFAULT '',
		notes      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_clients_user ON clients(user_id);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id             TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id        TEXT NOT NULL,
		bank_name      TEXT NOT NULL DEFAULT '',
		account_name   TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		routing_number TEXT NOT NULL DEFAULT '',
		swift_code     TEXT NOT NULL DEFAULT '',
		iban           TEXT NOT NULL DEFAULT '',
		currency       TEXT NOT NULL DEFAULT 'USD',
		created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_bank_accounts_user ON bank_accounts(user_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id              TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id         TEXT NOT NULL,
		client_id       TEXT,
		bank_account_id TEXT,
		invoice_number  TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'draft',
		issue_date      TEXT,
		due_date        TEXT,
		paid_date       TEXT,
		subtotal        REAL NOT NULL DEFAULT 0,
		tax_rate        REAL NOT NULL DEFAULT 0,
		tax_amount      REAL NOT NULL DEFAULT 0,
		discount        REAL NOT NULL DEFAULT 0,
		discount_amount REAL NOT NULL DEFAULT 0,
		total           REAL NOT NULL DEFAULT 0,
		currency        TEXT NOT NULL DEFAULT 'USD',
		enable_tax      INTEGER NOT NULL DEFAULT 0,
		enable_discount INTEGER NOT NULL DEFAULT 0,
		billing_type    TEXT NOT NULL DEFAULT 'quantity',
		notes           TEXT NOT NULL DEFAULT '',
		terms           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id);

	CREATE TABLE IF NOT EXISTS invoice_items (
		id          TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		invoice_id  TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		quantity    REAL NOT NULL DEFAULT 0,
		rate        REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id);

	CREATE TABLE IF NOT EXISTS quotations (
		id               TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id          TEXT NOT NULL,
		client_id        TEXT,
		bank_account_id  TEXT,
		quotation_number TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'draft',
		issue_date       TEXT,
		valid_until      TEXT,
		subtotal         REAL NOT NULL DEFAULT 0,
		tax_rate         REAL NOT NULL DEFAULT 0,
		tax_amount       REAL NOT NULL DEFAULT 0,
		discount         REAL NOT NULL DEFAULT 0,
		discount_amount  REAL NOT NULL DEFAULT 0,
		total            REAL NOT NULL DEFAULT 0,
		currency         TEXT NOT NULL DEFAULT 'USD',
		enable_tax       INTEGER NOT NULL DEFAULT 0,
		enable_discount  INTEGER NOT NULL DEFAULT 0,
		billing_type     TEXT NOT NULL DEFAULT 'quantity',
		notes            TEXT NOT NULL DEFAULT '',
		terms            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_quotations_user ON quotations(user_id);

	CREATE TABLE IF NOT EXISTS quotation_items (
		id           TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		quotation_id TEXT NOT NULL REFERENCES quotations(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL DEFAULT 0,
		description  TEXT NOT NULL DEFAULT '',
		quantity     REAL NOT NULL DEFAULT 0,
		rate         REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_quotation_items_quotation ON quotation_items(quotation_id);

	CREATE TABLE IF NOT EXISTS expenses (
		id          TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id     TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount      REAL NOT NULL DEFAULT 0,
		category    TEXT NOT NULL DEFAULT 'other',
		date        TEXT,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_user ON expenses(user_id);

	CREATE TABLE IF NOT EXISTS time_entries (
		id          TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id     TEXT NOT NULL,
		client_id   TEXT,
		project     TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		billable    INTEGER NOT NULL DEFAULT 1,
		rate        REAL NOT NULL DEFAULT 0,
		duration    INTEGER NOT NULL DEFAULT 0,
		date        TEXT,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_time_entries_user ON time_entries(user_id);
	`
	_, err := s.db.Exec(ddl)
	return err
}
