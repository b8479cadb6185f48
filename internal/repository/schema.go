package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    approved INTEGER NOT NULL,
    selected_policy TEXT,
    score INTEGER NOT NULL,
    pd REAL NOT NULL,
    config_version INTEGER NOT NULL,
    evaluated_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_applicant ON decisions(tenant_id, applicant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_evaluated ON decisions(tenant_id, evaluated_at);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    name TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    description TEXT,
    experiment TEXT,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (name, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_policies_tenant ON policies(tenant_id);
`

const schemaLGDOverrides = `
CREATE TABLE IF NOT EXISTS lgd_overrides (
    tenant_id TEXT NOT NULL,
    product TEXT NOT NULL,
    ratio REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, product)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDecisions,
		schemaPolicies,
		schemaLGDOverrides,
	}
}
