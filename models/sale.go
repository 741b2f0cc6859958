package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCancelled SaleStatus = "cancelled"
	SaleStatusRefunded  SaleStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCredit   PaymentMethod = "credit"
	PaymentMethodOther    PaymentMethod = "other"
)

// Sale is a posted sales document. Money fields on the header are derived
// from the items at posting time and never edited directly.
type Sale struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	CompanyId          string          `gorm:"index;size:36;not null;uniqueIndex:uix_sales_company_number" json:"company_id"`
	SaleNumber         string          `gorm:"size:30;not null;uniqueIndex:uix_sales_company_number" json:"sale_number"`
	CustomerId         *int            `gorm:"index" json:"customer_id"`
	Customer           *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	UserId             int             `json:"user_id"`
	SaleDate           time.Time       `gorm:"not null" json:"sale_date"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount_percentage"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_cost"`
	ProfitAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"profit_amount"`
	ProfitMargin       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"profit_margin"`
	AmountPaid         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	AmountDue          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_due"`
	PaymentStatus      string          `gorm:"type:enum('pending','partial','paid','refunded');default:pending" json:"payment_status"`
	PaymentMethod      PaymentMethod   `gorm:"type:enum('cash','card','transfer','credit','other');default:cash" json:"payment_method"`
	Status             SaleStatus      `gorm:"type:enum('completed','pending','cancelled','refunded');default:completed" json:"status"`
	Notes              string          `gorm:"size:1000" json:"notes"`
	Items              []SaleItem      `gorm:"foreignKey:SaleId" json:"items,omitempty"`
	Payments           []PaymentRecord `gorm:"foreignKey:SaleId" json:"payments,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleItem snapshots the product's name, sku, unit and prices at posting time
// so later catalog edits do not rewrite history.
type SaleItem struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	CompanyId          string          `gorm:"index;size:36;not null" json:"company_id"`
	SaleId             int             `gorm:"index;not null" json:"sale_id"`
	ProductId          int             `gorm:"index;not null" json:"product_id"`
	ProductName        string          `gorm:"size:255;not null" json:"product_name"`
	ProductSku         string          `gorm:"size:100" json:"product_sku"`
	UnitId             *int            `gorm:"index" json:"unit_id"`
	Quantity           decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	CostPrice          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cost_price"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount_percentage"`
	LineTotal          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
	CostTotal          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cost_total"`
	ProfitAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"profit_amount"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSaleItem struct {
	ProductId          int              `json:"product_id" validate:"required"`
	Quantity           decimal.Decimal  `json:"quantity" validate:"required"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
}

type NewSale struct {
	CustomerId         *int            `json:"customer_id"`
	SaleDate           *time.Time      `json:"sale_date"`
	Items              []NewSaleItem   `json:"items" validate:"required,min=1,dive"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	Notes              string          `json:"notes"`
}

type UpdateSale struct {
	CustomerId         *int             `json:"customer_id"`
	SaleDate           *time.Time       `json:"sale_date"`
	Notes              *string          `json:"notes"`
	PaymentMethod      *PaymentMethod   `json:"payment_method"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	TaxAmount          *decimal.Decimal `json:"tax_amount"`
}

// RefundSale is the input for refunding a posted sale. Restocking defaults to
// on; a nil RefundAmount refunds the full sale total.
type RefundSale struct {
	Reason       string           `json:"reason" validate:"required"`
	RestockItems *bool            `json:"restock_items"`
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Sale](ctx, companyId, id, "Items", "Customer", "Payments")
}
