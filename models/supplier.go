package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
)

type Supplier struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     string    `gorm:"index;size:36;not null" json:"company_id"`
	Name          string    `gorm:"size:255;not null" json:"name" validate:"required"`
	ContactPerson string    `gorm:"size:255" json:"contact_person"`
	Email         string    `gorm:"size:255" json:"email" validate:"omitempty,email"`
	Phone         string    `gorm:"size:50" json:"phone"`
	Address       string    `gorm:"size:500" json:"address"`
	City          string    `gorm:"size:100" json:"city"`
	Active        *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	supplier := Supplier{
		CompanyId:     companyId,
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		City:          input.City,
		Active:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Supplier](ctx, companyId, id)
}
