// Package domain defines the core interfaces and types for GovGuard.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a settled payment to a vendor, recorded by operators so the
// ingestion layer can supply duplicate-detection history.
type Payment struct {
	ID        string          `json:"id"`
	Vendor    string          `json:"vendor"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paidAt"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HistoryStore is the read/write interface of the vendor payment ledger.
type HistoryStore interface {
	RecordPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)

	// PriorPayments returns payments to vendor at or after since, newest first.
	PriorPayments(ctx context.Context, vendor string, since time.Time) ([]PriorTransaction, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// HistoryConfig holds configuration for the payment history store.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver" json:"driver"`

	SQLitePath string `mapstructure:"sqlite_path" json:"sqlitePath"`

	PostgresHost     string `mapstructure:"postgres_host" json:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgresPort"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgresUser"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDB       string `mapstructure:"postgres_db" json:"postgresDb"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgresSslMode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"connMaxLifetime"`

	// Lookback bounds how far back prior payments are considered.
	Lookback time.Duration `mapstructure:"lookback" json:"lookback"`
}
