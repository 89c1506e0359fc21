// Package history provides the vendor payment ledger that supplies prior
// transaction amounts to the duplicate rule.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLStore implements domain.HistoryStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New opens the configured database and runs migrations.
func New(cfg domain.HistoryConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := NewWithDB(db, cfg.Driver)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already open database. Migrations are not run.
func NewWithDB(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the ledger tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// RecordPayment stores a settled vendor payment. An empty ID is assigned.
func (s *SQLStore) RecordPayment(ctx context.Context, p *domain.Payment) error {
	if p == nil {
		return fmt.Errorf("%w: payment is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return fmt.Errorf("%w: vendor is required", ErrInvalidInput)
	}
	if !domain.AmountInRange(p.Amount) {
		return fmt.Errorf("%w: amount out of range", ErrInvalidInput)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	if p.PaidAt.IsZero() {
		return fmt.Errorf("%w: paid_at is required", ErrInvalidInput)
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.PaidAt = p.PaidAt.UTC()
	p.CreatedAt = s.now()

	query := `
		INSERT INTO vendor_payments (id, vendor, amount, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		p.ID, p.Vendor, p.Amount.String(), p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *SQLStore) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	query := `
		SELECT id, vendor, amount, paid_at, created_at
		FROM vendor_payments
		WHERE id = ?
	`

	var p domain.Payment
	var amount string
	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&p.ID, &p.Vendor, &amount, &p.PaidAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("payment %s has invalid amount %q: %w", id, amount, err)
	}

	return &p, nil
}

// PriorPayments returns the amounts paid to vendor at or after since,
// newest first. Vendor matching is exact.
func (s *SQLStore) PriorPayments(ctx context.Context, vendor string, since time.Time) ([]domain.PriorTransaction, error) {
	if vendor == "" {
		return nil, fmt.Errorf("%w: vendor is required", ErrInvalidInput)
	}

	query := `
		SELECT amount FROM vendor_payments
		WHERE vendor = ? AND paid_at >= ?
		ORDER BY paid_at DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), vendor, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var prior []domain.PriorTransaction
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			// Skip rows that were written by hand with a bad amount.
			continue
		}
		prior = append(prior, domain.PriorTransaction{Amount: d})
	}

	return prior, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
