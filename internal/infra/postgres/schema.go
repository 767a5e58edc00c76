package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent. Document references to clients and bank accounts
// carry no foreign keys: batches from separate dispatches are unordered.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            uuid PRIMARY KEY,
	email         text NOT NULL UNIQUE,
	password_hash text NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id               uuid PRIMARY KEY,
	business_name    text NOT NULL DEFAULT '',
	business_email   text NOT NULL DEFAULT '',
	business_phone   text NOT NULL DEFAULT '',
	business_address text NOT NULL DEFAULT '',
	logo_url         text,
	settings         jsonb
);

CREATE TABLE IF NOT EXISTS clients (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id    uuid NOT NULL,
	name       text NOT NULL DEFAULT '',
	email      text NOT NULL DEFAULT '',
	phone      text NOT NULL DEFAULT '',
	address    text NOT NULL DEFAULT '',
	notes      text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS clients_user_id_idx ON clients (user_id);

CREATE TABLE IF NOT EXISTS bank_accounts (
	id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id        uuid NOT NULL,
	bank_name      text NOT NULL DEFAULT '',
	account_name   text NOT NULL DEFAULT '',
	account_number text NOT NULL DEFAULT '',
	routing_number text NOT NULL DEFAULT '',
	swift_code     text NOT NULL DEFAULT '',
	iban           text NOT NULL DEFAULT '',
	currency       text NOT NULL DEFAULT 'USD',
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bank_accounts_user_id_idx ON bank_accounts (user_id);

CREATE TABLE IF NOT EXISTS invoices (
	id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id         uuid NOT NULL,
	client_id       uuid,
	bank_account_id uuid,
	invoice_number  text NOT NULL DEFAULT '',
	status          text NOT NULL DEFAULT 'draft',
	issue_date      date,
	due_date        date,
	paid_date       date,
	subtotal        numeric NOT NULL DEFAULT 0,
	tax_rate        numeric NOT NULL DEFAULT 0,
	tax_amount      numeric NOT NULL DEFAULT 0,
	discount        numeric NOT NULL DEFAULT 0,
	discount_amount numeric NOT NULL DEFAULT 0,
	total           numeric NOT NULL DEFAULT 0,
	currency        text NOT NULL DEFAULT 'USD',
	enable_tax      boolean NOT NULL DEFAULT false,
	enable_discount boolean NOT NULL DEFAULT false,
	billing_type    text NOT NULL DEFAULT 'quantity',
	notes           text NOT NULL DEFAULT '',
	terms           text NOT NULL DEFAULT '',
	created_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS invoices_user_id_idx ON invoices (user_id);

CREATE TABLE IF NOT EXISTS invoice_items (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	invoice_id  uuid NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
	position    integer NOT NULL DEFAULT 0,
	description text NOT NULL DEFAULT '',
	quantity    numeric NOT NULL DEFAULT 0,
	rate        numeric NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS invoice_items_invoice_id_idx ON invoice_items (invoice_id);

CREATE TABLE IF NOT EXISTS quotations (
	id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id          uuid NOT NULL,
	client_id        uuid,
	bank_account_id  uuid,
	quotation_number text NOT NULL DEFAULT '',
	status           text NOT NULL DEFAULT 'draft',
	issue_date       date,
	valid_until      date,
	subtotal         numeric NOT NULL DEFAULT 0,
	tax_rate         numeric NOT NULL DEFAULT 0,
	tax_amount       numeric NOT NULL DEFAULT 0,
	discount         numeric NOT NULL DEFAULT 0,
	discount_amount  numeric NOT NULL DEFAULT 0,
	total            numeric NOT NULL DEFAULT 0,
	currency         text NOT NULL DEFAULT 'USD',
	enable_tax       boolean NOT NULL DEFAULT false,
	enable_discount  boolean NOT NULL DEFAULT false,
	billing_type     text NOT NULL DEFAULT 'quantity',
	notes            text NOT NULL DEFAULT '',
	terms            text NOT NULL DEFAULT '',
	created_at       timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS quotations_user_id_idx ON quotations (user_id);

CREATE TABLE IF NOT EXISTS quotation_items (
	id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	quotation_id uuid NOT NULL REFERENCES quotations (id) ON DELETE CASCADE,
	position     integer NOT NULL DEFAULT 0,
	description  text NOT NULL DEFAULT '',
	quantity     numeric NOT NULL DEFAULT 0,
	rate         numeric NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS quotation_items_quotation_id_idx ON quotation_items (quotation_id);

CREATE TABLE IF NOT EXISTS expenses (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     uuid NOT NULL,
	description text NOT NULL DEFAULT '',
	amount      numeric NOT NULL DEFAULT 0,
	category    text NOT NULL DEFAULT 'other',
	date        date,
	created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS expenses_user_id_idx ON expenses (user_id);

CREATE TABLE IF NOT EXISTS time_entries (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     uuid NOT NULL,
	client_id   uuid,
	project     text NOT NULL DEFAULT '',
	description text NOT NULL DEFAULT '',
	billable    boolean NOT NULL DEFAULT true,
	rate        numeric NOT NULL DEFAULT 0,
	duration    bigint NOT NULL DEFAULT 0,
	date        date,
	created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS time_entries_user_id_idx ON time_entries (user_id);
`

// Migrate creates any missing tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
