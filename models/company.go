package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
)

// Company is the tenant root. Every other entity carries its id and must
// never be visible across companies.
type Company struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" validate:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	Active    *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CreateCompany provisions a tenant and seeds its default unit catalog.
func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	company := Company{
		ID:      uuid.NewString(),
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		Active:  utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	if err := SeedDefaultUnits(tx.WithContext(ctx), company.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &company, nil
}

func GetCompany(ctx context.Context, id string) (*Company, error) {
	db := config.GetDB()
	var company Company
	if err := db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &company, nil
}

// EnsureCompanyActive rejects writes for suspended tenants.
func EnsureCompanyActive(ctx context.Context, companyId string) error {
	company, err := GetCompany(ctx, companyId)
	if err != nil {
		return err
	}
	if company.Active == nil || !*company.Active {
		return errors.New("company is not active")
	}
	return nil
}
