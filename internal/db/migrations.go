package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'stage_status') THEN
			CREATE TYPE stage_status AS ENUM ('PENDING', 'AVAILABLE', 'PENDING_VERIFICATION', 'PAID');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'invoice_status') THEN
			CREATE TYPE invoice_status AS ENUM ('PENDING', 'ACCEPTED', 'REJECTED');
		END IF;
	END
	$$;`,
	// Profile and project tables are owned by the back-office application.
	// Created here with the columns this service reads so the schema is
	// usable standalone; IF NOT EXISTS keeps the richer deployed schema
	// untouched.
	`CREATE TABLE IF NOT EXISTS company_profiles (
		id UUID PRIMARY KEY,
		legal_name VARCHAR(120) NOT NULL,
		ruc VARCHAR(20) NOT NULL,
		timbrado VARCHAR(20) NOT NULL,
		establishment_code VARCHAR(3) NOT NULL DEFAULT '001',
		point_code VARCHAR(3) NOT NULL DEFAULT '001',
		address VARCHAR(255) NOT NULL DEFAULT '',
		department VARCHAR(60) NOT NULL DEFAULT '',
		city VARCHAR(60) NOT NULL DEFAULT '',
		phone VARCHAR(20) NOT NULL DEFAULT '',
		email VARCHAR(80) NOT NULL DEFAULT '',
		tax_percentage INT NOT NULL DEFAULT 10,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS client_profiles (
		id UUID PRIMARY KEY,
		legal_name VARCHAR(120) NOT NULL,
		ruc VARCHAR(20) NOT NULL,
		address VARCHAR(255) NOT NULL DEFAULT '',
		department VARCHAR(60) NOT NULL DEFAULT '',
		city VARCHAR(60) NOT NULL DEFAULT '',
		email VARCHAR(80) NOT NULL DEFAULT '',
		phone VARCHAR(20) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		client_id UUID NOT NULL REFERENCES client_profiles(id),
		name VARCHAR(120) NOT NULL,
		progress INT NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS payment_stages (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		company_id UUID NOT NULL REFERENCES company_profiles(id),
		ordinal INT NOT NULL,
		name VARCHAR(120) NOT NULL,
		percentage INT NOT NULL CHECK (percentage BETWEEN 1 AND 100),
		amount NUMERIC(18,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		required_progress INT NOT NULL CHECK (required_progress BETWEEN 0 AND 100),
		status stage_status NOT NULL DEFAULT 'PENDING',
		payment_method VARCHAR(40),
		evidence_note TEXT,
		proof_file_ref TEXT,
		rejection_reason TEXT,
		paid_at TIMESTAMPTZ,
		exchange_rate NUMERIC(18,6),
		exchange_rate_source VARCHAR(40),
		exchange_rate_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_payment_stages_project_id ON payment_stages (project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_payment_stages_status ON payment_stages (status);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_stages_project_ordinal ON payment_stages (project_id, ordinal);`,
	`CREATE TABLE IF NOT EXISTS invoice_sequences (
		company_id UUID PRIMARY KEY REFERENCES company_profiles(id),
		last_value BIGINT NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY,
		stage_id UUID REFERENCES payment_stages(id),
		project_id UUID NOT NULL REFERENCES projects(id),
		company_id UUID NOT NULL REFERENCES company_profiles(id),
		number VARCHAR(20) NOT NULL,
		sequence_value BIGINT NOT NULL,
		amount_source NUMERIC(18,2) NOT NULL,
		source_currency VARCHAR(3) NOT NULL,
		exchange_rate NUMERIC(18,6) NOT NULL,
		amount_local BIGINT NOT NULL,
		tax_rate INT NOT NULL,
		tax_base BIGINT NOT NULL,
		tax_amount BIGINT NOT NULL,
		status invoice_status NOT NULL DEFAULT 'PENDING',
		cdc VARCHAR(64),
		protocol_id VARCHAR(64),
		verification_url TEXT,
		rejection_code VARCHAR(16),
		rejection_reason TEXT,
		raw_document JSONB NOT NULL,
		client_name VARCHAR(60) NOT NULL,
		client_ruc VARCHAR(20) NOT NULL,
		client_address VARCHAR(255) NOT NULL,
		client_department_code INT NOT NULL,
		client_city_code INT NOT NULL,
		client_email VARCHAR(80),
		client_phone VARCHAR(20),
		issued_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_company_number ON invoices (company_id, number);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_stage_id ON invoices (stage_id) WHERE stage_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_project_id ON invoices (project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
