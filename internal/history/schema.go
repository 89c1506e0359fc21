package history

// Schema definitions for the vendor payment ledger.
// Compatible with both SQLite and PostgreSQL.

const schemaVendorPayments = `
CREATE TABLE IF NOT EXISTS vendor_payments (
    id TEXT PRIMARY KEY,
    vendor TEXT NOT NULL,
    amount TEXT NOT NULL,
    paid_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vendor_payments_vendor ON vendor_payments(vendor, paid_at);
`

// AllSchemas returns all schema definitions in order.
func AllSchemas() []string {
	return []string{
		schemaVendorPayments,
	}
}
