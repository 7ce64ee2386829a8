package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbritez/consultora-billing/internal/model"
)

// ProfileRepository reads company and client billing profiles. The profile
// tables belong to the outer back-office application; this core only reads
// them.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CompanyByID(ctx context.Context, id uuid.UUID) (*model.CompanyProfile, error) {
	var company model.CompanyProfile
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			legal_name,
			ruc,
			timbrado,
			establishment_code,
			point_code,
			address,
			department,
			city,
			phone,
			email,
			tax_percentage,
			currency
		FROM company_profiles
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == uuid.Nil {
		return nil, nil
	}
	return &company, nil
}

func (r *ProfileRepository) ClientByProject(ctx context.Context, projectID uuid.UUID) (*model.ClientProfile, error) {
	var client model.ClientProfile
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			c.id,
			c.legal_name,
			c.ruc,
			c.address,
			c.department,
			c.city,
			c.email,
			c.phone
		FROM client_profiles c
		JOIN projects p ON p.client_id = c.id
		WHERE p.id = ?
		LIMIT 1
	`, projectID).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == uuid.Nil {
		return nil, nil
	}
	return &client, nil
}
