// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Sentinels alias the domain errors so callers can match with errors.Is
// without importing this package.
var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
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

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDecision stores a decision with tenant isolation. The full
// decision document is persisted as JSON alongside the columns used
// for lookups.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, decision *domain.Decision) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to serialize decision: %w", err)
	}

	approved := 0
	if decision.Approved {
		approved = 1
	}

	query := `
		INSERT INTO decisions (
			id, tenant_id, applicant_id, approved, selected_policy,
			score, pd, config_version, evaluated_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		decision.ID, tenantID, decision.ApplicantID,
		approved, decision.SelectedPolicy,
		decision.Score, decision.PD, decision.ConfigVersion,
		decision.EvaluatedAt, string(payload),
	)
	return err
}

// GetDecision retrieves a decision by ID with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, decisionID string) (*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT payload
		FROM decisions
		WHERE tenant_id = ? AND id = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, decisionID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var decision domain.Decision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse decision %s: %w", decisionID, err)
	}

	return &decision, nil
}

// GetDecisionsByApplicant retrieves decisions for an applicant with
// tenant isolation, newest first.
func (r *SQLRepository) GetDecisionsByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT payload
		FROM decisions
		WHERE tenant_id = ? AND applicant_id = ? AND evaluated_at >= ?
		ORDER BY evaluated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, applicantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var decision domain.Decision
		if err := json.Unmarshal([]byte(payload), &decision); err != nil {
			return nil, fmt.Errorf("failed to parse decision for %s: %w", applicantID, err)
		}
		decisions = append(decisions, &decision)
	}

	return decisions, rows.Err()
}

// SavePolicy stores a policy document with tenant isolation. Saving an
// existing name replaces the document.
func (r *SQLRepository) SavePolicy(ctx context.Context, tenantID string, policy *domain.PolicyDefinition) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	document, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policies (
			name, tenant_id, description, experiment, document, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, tenant_id) DO UPDATE SET
			description = excluded.description,
			experiment = excluded.experiment,
			document = excluded.document,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		policy.Name, tenantID, policy.Description, policy.Experiment,
		string(document), now,
	)
	return err
}

// GetPolicy retrieves a policy document by name with tenant isolation.
func (r *SQLRepository) GetPolicy(ctx context.Context, tenantID string, name string) (*domain.PolicyDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document
		FROM policies
		WHERE tenant_id = ? AND name = ?
	`

	var document string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, name).Scan(&document)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var policy domain.PolicyDefinition
	if err := json.Unmarshal([]byte(document), &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", name, err)
	}

	return &policy, nil
}

// ListPolicies retrieves all policy documents for a tenant.
func (r *SQLRepository) ListPolicies(ctx context.Context, tenantID string) ([]*domain.PolicyDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document
		FROM policies
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.PolicyDefinition
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, err
		}

		var policy domain.PolicyDefinition
		if err := json.Unmarshal([]byte(document), &policy); err != nil {
			return nil, fmt.Errorf("failed to parse stored policy: %w", err)
		}
		policies = append(policies, &policy)
	}

	return policies, rows.Err()
}

// DeletePolicy removes a policy document with tenant isolation.
func (r *SQLRepository) DeletePolicy(ctx context.Context, tenantID string, name string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		DELETE FROM policies
		WHERE tenant_id = ? AND name = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveLGDOverride stores a loss-given-default ratio override for a
// product with tenant isolation.
func (r *SQLRepository) SaveLGDOverride(ctx context.Context, tenantID string, product domain.ProductType, ratio float64) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if !product.Valid() {
		return fmt.Errorf("%w: unknown product %q", ErrInvalidInput, product)
	}
	if ratio <= 0 || ratio > 1 {
		return fmt.Errorf("%w: ratio must be within (0,1]", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO lgd_overrides (
			tenant_id, product, ratio, updated_at
		) VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, product) DO UPDATE SET
			ratio = excluded.ratio,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, string(product), ratio, now)
	return err
}

// ListLGDOverrides retrieves all loss-given-default overrides for a
// tenant keyed by product.
func (r *SQLRepository) ListLGDOverrides(ctx context.Context, tenantID string) (map[domain.ProductType]float64, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT product, ratio
		FROM lgd_overrides
		WHERE tenant_id = ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[domain.ProductType]float64)
	for rows.Next() {
		var product string
		var ratio float64
		if err := rows.Scan(&product, &ratio); err != nil {
			return nil, err
		}
		overrides[domain.ProductType(product)] = ratio
	}

	return overrides, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
