package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbritez/consultora-billing/internal/model"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

func (r *StageRepository) CreateStages(ctx context.Context, stages []model.PaymentStage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stage := range stages {
			err := tx.Exec(`
				INSERT INTO payment_stages (
					id,
					project_id,
					company_id,
					ordinal,
					name,
					percentage,
					amount,
					currency,
					required_progress,
					status,
					version,
					created_at,
					updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				stage.ID,
				stage.ProjectID,
				stage.CompanyID,
				stage.Ordinal,
				stage.Name,
				stage.Percentage,
				stage.Amount,
				stage.Currency,
				stage.RequiredProgress,
				stage.Status,
				stage.Version,
				stage.CreatedAt,
				stage.UpdatedAt,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *StageRepository) GetStage(ctx context.Context, id uuid.UUID) (*model.PaymentStage, error) {
	var stage model.PaymentStage
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			project_id,
			company_id,
			ordinal,
			name,
			percentage,
			amount,
			currency,
			required_progress,
			status,
			payment_method,
			evidence_note,
			proof_file_ref,
			rejection_reason,
			paid_at,
			exchange_rate,
			exchange_rate_source,
			exchange_rate_at,
			version,
			created_at,
			updated_at
		FROM payment_stages
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&stage).Error
	if err != nil {
		return nil, err
	}
	if stage.ID == uuid.Nil {
		return nil, nil
	}
	return &stage, nil
}

func (r *StageRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.PaymentStage, error) {
	var stages []model.PaymentStage
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			project_id,
			company_id,
			ordinal,
			name,
			percentage,
			amount,
			currency,
			required_progress,
			status,
			payment_method,
			evidence_note,
			proof_file_ref,
			rejection_reason,
			paid_at,
			exchange_rate,
			exchange_rate_source,
			exchange_rate_at,
			version,
			created_at,
			updated_at
		FROM payment_stages
		WHERE project_id = ?
		ORDER BY ordinal ASC
	`, projectID).Scan(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

// UpdateStage writes all mutable fields guarded by the version column.
// Per-row optimistic locking: concurrent writers race on the version check
// and exactly one commit wins.
func (r *StageRepository) UpdateStage(ctx context.Context, stage *model.PaymentStage, expectedVersion int64) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE payment_stages
		SET
			status = ?,
			payment_method = ?,
			evidence_note = ?,
			proof_file_ref = ?,
			rejection_reason = ?,
			paid_at = ?,
			exchange_rate = ?,
			exchange_rate_source = ?,
			exchange_rate_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`,
		stage.Status,
		stage.PaymentMethod,
		stage.EvidenceNote,
		stage.ProofFileRef,
		stage.RejectionReason,
		stage.PaidAt,
		stage.ExchangeRate,
		stage.ExchangeRateSource,
		stage.ExchangeRateAt,
		stage.UpdatedAt,
		stage.ID,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
