package models

import (
	"context"
	"errors"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CostMethod string

const (
	CostMethodManual       CostMethod = "manual"
	CostMethodLastPurchase CostMethod = "last_purchase"
)

const (
	StockStatusNotTracked = "not_tracked"
	StockStatusOut        = "out_of_stock"
	StockStatusLow        = "low_stock"
	StockStatusIn         = "in_stock"
	StockStatusOver       = "overstocked"
)

type Product struct {
	ID               int             `gorm:"primary_key" json:"id"`
	CompanyId        string          `gorm:"index;size:36;not null" json:"company_id"`
	CategoryId       *int            `gorm:"index" json:"category_id"`
	Category         *Category       `gorm:"foreignKey:CategoryId" json:"category,omitempty"`
	UnitId           *int            `gorm:"index" json:"unit_id"`
	Unit             *Unit           `gorm:"foreignKey:UnitId" json:"unit,omitempty"`
	Name             string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Sku              string          `gorm:"size:100" json:"sku"`
	Barcode          string          `gorm:"size:100" json:"barcode"`
	Description      string          `gorm:"size:1000" json:"description"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cost_price"`
	SellingPrice     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"selling_price"`
	StockQuantity    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"stock_quantity"`
	MinStockLevel    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"min_stock_level"`
	MaxStockLevel    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"max_stock_level"`
	TrackStock       *bool           `gorm:"not null;default:true" json:"track_stock"`
	CostMethod       CostMethod      `gorm:"type:enum('manual','last_purchase');default:manual" json:"cost_method"`
	LastPurchaseCost decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"last_purchase_cost"`
	LastPurchaseDate *time.Time      `json:"last_purchase_date"`
	Active           *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	CategoryId    *int            `json:"category_id"`
	UnitId        *int            `json:"unit_id"`
	Name          string          `json:"name" validate:"required"`
	Sku           string          `json:"sku"`
	Barcode       string          `json:"barcode"`
	Description   string          `json:"description"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	InitialStock  decimal.Decimal `json:"initial_stock"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel decimal.Decimal `json:"max_stock_level"`
	TrackStock    *bool           `json:"track_stock"`
	CostMethod    CostMethod      `json:"cost_method"`
}

func (p Product) IsLowStock() bool {
	if p.TrackStock == nil || !*p.TrackStock {
		return false
	}
	return p.StockQuantity.LessThanOrEqual(p.MinStockLevel)
}

// StockStatus buckets the current balance against the min/max thresholds.
func (p Product) StockStatus() string {
	if p.TrackStock == nil || !*p.TrackStock {
		return StockStatusNotTracked
	}
	if p.StockQuantity.LessThanOrEqual(decimal.Zero) {
		return StockStatusOut
	}
	if p.StockQuantity.LessThanOrEqual(p.MinStockLevel) {
		return StockStatusLow
	}
	if p.MaxStockLevel.IsPositive() && p.StockQuantity.GreaterThan(p.MaxStockLevel) {
		return StockStatusOver
	}
	return StockStatusIn
}

// ProfitMargin is the markup over cost in percent, rounded to 2 places.
// Zero cost yields zero margin rather than a division blowup.
func (p Product) ProfitMargin() decimal.Decimal {
	if !p.CostPrice.IsPositive() {
		return decimal.Zero
	}
	return p.SellingPrice.Sub(p.CostPrice).
		Mul(decimal.NewFromInt(100)).
		DivRound(p.CostPrice, 2)
}

// DisplayStock renders the balance using the product's unit rules when a
// unit is attached.
func (p Product) DisplayStock() string {
	if p.Unit != nil {
		return p.Unit.DisplayQuantity(p.StockQuantity)
	}
	return p.StockQuantity.String()
}

// UpdateCostFromPurchase records the latest purchase cost on the product and,
// when the product's cost method follows purchases, moves cost_price too.
// Runs inside the caller's transaction.
func (p *Product) UpdateCostFromPurchase(tx *gorm.DB, unitCost decimal.Decimal, purchaseDate time.Time) error {
	updates := map[string]interface{}{
		"last_purchase_cost": unitCost,
		"last_purchase_date": purchaseDate,
	}
	p.LastPurchaseCost = unitCost
	p.LastPurchaseDate = &purchaseDate
	if p.CostMethod == CostMethodLastPurchase {
		updates["cost_price"] = unitCost
		p.CostPrice = unitCost
	}

	if err := tx.Model(&Product{}).
		Where("id = ? AND company_id = ?", p.ID, p.CompanyId).
		Updates(updates).Error; err != nil {
		return utils.WrapPersistence(err)
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return nil, utils.Validationf("prices cannot be negative")
	}
	if input.InitialStock.IsNegative() {
		return nil, utils.Validationf("initial stock cannot be negative")
	}
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, companyId, "sku", input.Sku, 0); err != nil {
			return nil, err
		}
	}

	rules := []utils.ValidationRule[int]{}
	if input.CategoryId != nil {
		rules = append(rules, utils.ValidationRule[int]{
			Model:   Category{},
			Ids:     []int{*input.CategoryId},
			Message: "category not found",
			Filter:  utils.Filter{Cond: "company_id = ?", Values: []interface{}{companyId}},
		})
	}
	if input.UnitId != nil {
		rules = append(rules, utils.ValidationRule[int]{
			Model:   Unit{},
			Ids:     []int{*input.UnitId},
			Message: "unit not found",
			Filter:  utils.Filter{Cond: "company_id = ?", Values: []interface{}{companyId}},
		})
	}
	if len(rules) > 0 {
		if err := utils.MassValidateResourceIds(ctx, rules); err != nil {
			return nil, err
		}
	}

	trackStock := input.TrackStock
	if trackStock == nil {
		trackStock = utils.NewTrue()
	}
	costMethod := input.CostMethod
	if costMethod == "" {
		costMethod = CostMethodManual
	}
	if costMethod != CostMethodManual && costMethod != CostMethodLastPurchase {
		return nil, utils.Validationf("invalid cost method: %s", costMethod)
	}

	product := Product{
		CompanyId:     companyId,
		CategoryId:    input.CategoryId,
		UnitId:        input.UnitId,
		Name:          input.Name,
		Sku:           input.Sku,
		Barcode:       input.Barcode,
		Description:   input.Description,
		CostPrice:     input.CostPrice,
		SellingPrice:  input.SellingPrice,
		MinStockLevel: input.MinStockLevel,
		MaxStockLevel: input.MaxStockLevel,
		TrackStock:    trackStock,
		CostMethod:    costMethod,
		Active:        utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.Create(&product).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}

	if input.InitialStock.IsPositive() && *trackStock {
		if _, _, err := AdjustStock(tx, ctx, &product, input.InitialStock,
			MovementTypeIn, StockRefInitialStock, product.ID, "Initial stock"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Product](ctx, companyId, id, "Category", "Unit")
}
