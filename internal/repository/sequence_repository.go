package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextValue increments the company counter in one atomic statement. The
// increment commits independently of whatever the caller does with the
// number afterwards, so numbers are never reused.
func (r *SequenceRepository) NextValue(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO invoice_sequences (company_id, last_value)
		VALUES (?, 1)
		ON CONFLICT (company_id)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, companyID).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
