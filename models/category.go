package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
)

type Category struct {
	ID          int       `gorm:"primary_key" json:"id"`
	CompanyId   string    `gorm:"index;size:36;not null" json:"company_id"`
	Name        string    `gorm:"size:100;not null" json:"name" validate:"required"`
	Description string    `gorm:"type:text" json:"description"`
	Active      *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Category](ctx, companyId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	category := Category{
		CompanyId:   companyId,
		Name:        input.Name,
		Description: input.Description,
		Active:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &category, nil
}

func GetCategory(ctx context.Context, id int) (*Category, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Category](ctx, companyId, id)
}
