package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// PaymentRecord is one receipt or disbursement against a sale or a
// purchase. Exactly one of SaleId and PurchaseId is set.
type PaymentRecord struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CompanyId   string          `gorm:"index;size:36;not null" json:"company_id"`
	SaleId      *int            `gorm:"index" json:"sale_id"`
	PurchaseId  *int            `gorm:"index" json:"purchase_id"`
	UserId      int             `json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method      PaymentMethod   `gorm:"type:enum('cash','card','transfer','credit','other');default:cash" json:"method"`
	Reference   string          `gorm:"size:100" json:"reference"`
	Notes       string          `gorm:"size:500" json:"notes"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Method      PaymentMethod   `json:"method"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
	PaymentDate *time.Time      `json:"payment_date"`
}

func GetPaymentsForSale(ctx context.Context, saleId int) ([]PaymentRecord, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var payments []PaymentRecord
	err := db.WithContext(ctx).
		Where("company_id = ? AND sale_id = ?", companyId, saleId).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return payments, nil
}

func GetPaymentsForPurchase(ctx context.Context, purchaseId int) ([]PaymentRecord, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var payments []PaymentRecord
	err := db.WithContext(ctx).
		Where("company_id = ? AND purchase_id = ?", companyId, purchaseId).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return payments, nil
}
