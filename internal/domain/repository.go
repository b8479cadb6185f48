package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Decision operations
	SaveDecision(ctx context.Context, tenantID string, decision *Decision) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*Decision, error)
	GetDecisionsByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*Decision, error)

	// Policy document operations
	SavePolicy(ctx context.Context, tenantID string, policy *PolicyDefinition) error
	GetPolicy(ctx context.Context, tenantID string, name string) (*PolicyDefinition, error)
	ListPolicies(ctx context.Context, tenantID string) ([]*PolicyDefinition, error)
	DeletePolicy(ctx context.Context, tenantID string, name string) error

	// Loss-given-default overrides
	SaveLGDOverride(ctx context.Context, tenantID string, product ProductType, ratio float64) error
	ListLGDOverrides(ctx context.Context, tenantID string) (map[ProductType]float64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
