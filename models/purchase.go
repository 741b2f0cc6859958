package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

type Purchase struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"index;size:36;not null;uniqueIndex:uix_purchases_company_number" json:"company_id"`
	PurchaseNumber string          `gorm:"size:30;not null;uniqueIndex:uix_purchases_company_number" json:"purchase_number"`
	SupplierId     *int            `gorm:"index" json:"supplier_id"`
	Supplier       *Supplier       `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	UserId         int             `json:"user_id"`
	PurchaseDate   time.Time       `gorm:"not null" json:"purchase_date"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	AmountDue      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_due"`
	PaymentStatus  string          `gorm:"type:enum('pending','partial','paid');default:pending" json:"payment_status"`
	PaymentMethod  PaymentMethod   `gorm:"type:enum('cash','card','transfer','credit','other');default:cash" json:"payment_method"`
	Status         PurchaseStatus  `gorm:"type:enum('completed','cancelled');default:completed" json:"status"`
	Notes          string          `gorm:"size:1000" json:"notes"`
	Items          []PurchaseItem  `gorm:"foreignKey:PurchaseId" json:"items,omitempty"`
	Payments       []PaymentRecord `gorm:"foreignKey:PurchaseId" json:"payments,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CompanyId   string          `gorm:"index;size:36;not null" json:"company_id"`
	PurchaseId  int             `gorm:"index;not null" json:"purchase_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_cost"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseItem struct {
	ProductId int             `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type NewPurchase struct {
	SupplierId     *int              `json:"supplier_id"`
	PurchaseDate   *time.Time        `json:"purchase_date"`
	Items          []NewPurchaseItem `json:"items" validate:"required,min=1,dive"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	AmountPaid     decimal.Decimal   `json:"amount_paid"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	Notes          string            `json:"notes"`
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Purchase](ctx, companyId, id, "Items", "Supplier", "Payments")
}
