package models

import (
	"context"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovementType string

const (
	MovementTypeIn         MovementType = "in"
	MovementTypeOut        MovementType = "out"
	MovementTypeAdjustment MovementType = "adjustment"
)

type StockReferenceType string

const (
	StockRefSale                 StockReferenceType = "sale"
	StockRefPurchase             StockReferenceType = "purchase"
	StockRefPurchaseCancellation StockReferenceType = "purchase_cancellation"
	StockRefRefund               StockReferenceType = "refund"
	StockRefInitialStock         StockReferenceType = "initial_stock"
	StockRefManualAdjustment     StockReferenceType = "manual_adjustment"
)

// StockMovement is an append-only ledger row. Movements are never updated or
// deleted; corrections are recorded as new movements. Quantity is the signed
// delta that was actually applied, so replaying the history from zero
// reproduces the balance.
type StockMovement struct {
	ID            int                `gorm:"primary_key" json:"id"`
	CompanyId     string             `gorm:"index;size:36;not null" json:"company_id"`
	ProductId     int                `gorm:"index;not null" json:"product_id"`
	MovementType  MovementType       `gorm:"type:enum('in','out','adjustment');not null" json:"movement_type"`
	Quantity      decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"quantity"`
	BalanceBefore decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"balance_after"`
	UnitId        *int               `gorm:"index" json:"unit_id"`
	ReferenceType StockReferenceType `gorm:"type:enum('sale','purchase','purchase_cancellation','refund','initial_stock','manual_adjustment');not null" json:"reference_type"`
	ReferenceId   int                `gorm:"index" json:"reference_id"`
	Notes         string             `gorm:"size:500" json:"notes"`
	UserId        int                `json:"user_id"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

const adjustStockMaxRetries = 5

// ClampDelta resolves the quantity actually applied to a balance. Outbound
// deltas never take the balance below zero; the applied amount is clamped to
// what is available and the caller is told whether clamping happened.
func ClampDelta(balance decimal.Decimal, delta decimal.Decimal) (applied decimal.Decimal, clamped bool) {
	if delta.IsNegative() && balance.Add(delta).IsNegative() {
		if balance.IsNegative() {
			return decimal.Zero, true
		}
		return balance.Neg(), true
	}
	return delta, false
}

// AdjustStock applies a signed quantity delta to a product's stock level and
// records the matching ledger movement inside the caller's transaction.
//
// The balance is re-read with a row lock, then the product row is updated
// with a compare-and-swap on that balance. Inside one transaction the row
// lock makes the swap succeed immediately; the bounded retry covers writers
// outside any transaction, and exhaustion surfaces as a retryable conflict.
//
// A fully clamped delta is a clean no-op: no update, no ledger row, and the
// caller is told the clamp happened.
//
// Returned values are the new balance and whether the delta was clamped to
// avoid a negative balance.
func AdjustStock(tx *gorm.DB, ctx context.Context, product *Product, delta decimal.Decimal,
	movementType MovementType, referenceType StockReferenceType, referenceId int, notes string) (decimal.Decimal, bool, error) {

	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)

	if product.TrackStock == nil || !*product.TrackStock {
		return product.StockQuantity, false, nil
	}
	if delta.IsZero() {
		return product.StockQuantity, false, nil
	}

	var oldBalance decimal.Decimal
	var newBalance decimal.Decimal
	var applied decimal.Decimal
	var clamped bool

	for attempt := 0; ; attempt++ {
		var current Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND company_id = ?", product.ID, companyId).
			First(&current).Error; err != nil {
			return decimal.Zero, false, utils.WrapPersistence(err)
		}

		oldBalance = current.StockQuantity
		applied, clamped = ClampDelta(oldBalance, delta)
		newBalance = oldBalance.Add(applied)

		if applied.IsZero() {
			// Nothing moves, so there is no row to swap; a same-value UPDATE
			// would report zero affected rows and masquerade as a CAS miss.
			product.StockQuantity = oldBalance
			return oldBalance, clamped, nil
		}

		result := tx.Model(&Product{}).
			Where("id = ? AND company_id = ? AND stock_quantity = ?",
				product.ID, companyId, oldBalance).
			Update("stock_quantity", newBalance)
		if result.Error != nil {
			return decimal.Zero, false, utils.WrapPersistence(result.Error)
		}
		if result.RowsAffected > 0 {
			break
		}
		if attempt+1 >= adjustStockMaxRetries {
			return decimal.Zero, false, &utils.ConflictError{Op: "stock adjustment"}
		}
	}
	product.StockQuantity = newBalance

	movement := StockMovement{
		CompanyId:     companyId,
		ProductId:     product.ID,
		MovementType:  movementType,
		Quantity:      applied,
		BalanceBefore: oldBalance,
		BalanceAfter:  newBalance,
		UnitId:        product.UnitId,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Notes:         notes,
		UserId:        userId,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return decimal.Zero, false, utils.WrapPersistence(err)
	}

	return newBalance, clamped, nil
}

// ReplayMovements folds a product's movement history into a balance.
// Quantities are signed, so replaying from zero in chronological order
// reproduces the cached stock_quantity exactly.
func ReplayMovements(movements []StockMovement) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range movements {
		balance = balance.Add(m.Quantity)
	}
	return balance
}

// GetStockMovements returns a product's ledger, newest first.
func GetStockMovements(ctx context.Context, productId int, limit int) ([]StockMovement, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}

	db := config.GetDB()
	var movements []StockMovement
	dbCtx := db.WithContext(ctx).
		Where("company_id = ? AND product_id = ?", companyId, productId).
		Order("id desc")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Find(&movements).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return movements, nil
}
