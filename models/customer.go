package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// Customer carries denormalized purchase rollups. total_spent and
// total_orders are caches over the customer's sales and are only written by
// the rollup recompute, never incremented piecemeal.
type Customer struct {
	ID           int             `gorm:"primary_key" json:"id"`
	CompanyId    string          `gorm:"index;size:36;not null;uniqueIndex:uix_customers_company_code" json:"company_id"`
	CustomerCode string          `gorm:"size:20;not null;uniqueIndex:uix_customers_company_code" json:"customer_code"`
	Name         string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Email        string          `gorm:"size:255" json:"email" validate:"omitempty,email"`
	Phone        string          `gorm:"size:50" json:"phone"`
	Address      string          `gorm:"size:500" json:"address"`
	City         string          `gorm:"size:100" json:"city"`
	TotalSpent   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_spent"`
	TotalOrders  int             `gorm:"not null;default:0" json:"total_orders"`
	LastOrderAt  *time.Time      `json:"last_order_at"`
	Active       *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Email != "" {
		if err := utils.ValidateUnique[Customer](ctx, companyId, "email", input.Email, 0); err != nil {
			return nil, err
		}
	}

	code, err := NextCustomerCode(ctx, companyId)
	if err != nil {
		return nil, err
	}

	customer := Customer{
		CompanyId:    companyId,
		CustomerCode: code,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		City:         input.City,
		TotalSpent:   decimal.Zero,
		TotalOrders:  0,
		Active:       utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Customer](ctx, companyId, id)
}
