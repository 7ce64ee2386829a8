package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbritez/consultora-billing/internal/model"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO invoices (
			id,
			stage_id,
			project_id,
			company_id,
			number,
			sequence_value,
			amount_source,
			source_currency,
			exchange_rate,
			amount_local,
			tax_rate,
			tax_base,
			tax_amount,
			status,
			raw_document,
			client_name,
			client_ruc,
			client_address,
			client_department_code,
			client_city_code,
			client_email,
			client_phone,
			issued_at,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID,
		inv.StageID,
		inv.ProjectID,
		inv.CompanyID,
		inv.Number,
		inv.SequenceValue,
		inv.AmountSource,
		inv.SourceCurrency,
		inv.ExchangeRate,
		inv.AmountLocal,
		inv.TaxRate,
		inv.TaxBase,
		inv.TaxAmount,
		inv.Status,
		inv.RawDocument,
		inv.ClientName,
		inv.ClientRUC,
		inv.ClientAddress,
		inv.ClientDepartmentCode,
		inv.ClientCityCode,
		inv.ClientEmail,
		inv.ClientPhone,
		inv.IssuedAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			stage_id,
			project_id,
			company_id,
			number,
			sequence_value,
			amount_source,
			source_currency,
			exchange_rate,
			amount_local,
			tax_rate,
			tax_base,
			tax_amount,
			status,
			cdc,
			protocol_id,
			verification_url,
			rejection_code,
			rejection_reason,
			raw_document,
			client_name,
			client_ruc,
			client_address,
			client_department_code,
			client_city_code,
			client_email,
			client_phone,
			issued_at,
			created_at,
			updated_at
		FROM invoices
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == uuid.Nil {
		return nil, nil
	}
	return &inv, nil
}

// MarkAccepted records the authority's proof. Guarded by the PENDING
// status: an accepted invoice is immutable and cannot be re-marked.
func (r *InvoiceRepository) MarkAccepted(ctx context.Context, id uuid.UUID, cdc, protocolID, verificationURL string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE invoices
		SET
			status = ?,
			cdc = ?,
			protocol_id = ?,
			verification_url = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`, model.InvoiceStatusAccepted, cdc, protocolID, verificationURL, time.Now().UTC(), id, model.InvoiceStatusPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *InvoiceRepository) MarkRejected(ctx context.Context, id uuid.UUID, code, reason string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE invoices
		SET
			status = ?,
			rejection_code = ?,
			rejection_reason = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`, model.InvoiceStatusRejected, code, reason, time.Now().UTC(), id, model.InvoiceStatusPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
