package workflow

import (
	"context"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustProductStock applies a manual signed correction to a product's
// stock. The delta is clamped at zero like every other ledger write; the
// caller is told when the full correction could not be applied.
func AdjustProductStock(ctx context.Context, productId int, delta decimal.Decimal, notes string) (*models.Product, bool, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, false, utils.Validationf("company id is required")
	}
	if delta.IsZero() {
		return nil, false, utils.Validationf("adjustment delta cannot be zero")
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

	var product models.Product
	if err := tx.Where("id = ? AND company_id = ?", productId, companyId).
		First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "stockWorkflow.go", "AdjustProductStock", "Fetch Product", productId, err)
		return nil, false, utils.WrapPersistence(err)
	}
	if product.TrackStock == nil || !*product.TrackStock {
		return nil, false, utils.Statef("stock is not tracked for %s", product.Name)
	}

	if notes == "" {
		notes = "Manual stock adjustment"
	}
	// Manual adjustments have no source document, so no reference id.
	_, clamped, err := models.AdjustStock(tx, ctx, &product, delta,
		models.MovementTypeAdjustment, models.StockRefManualAdjustment, 0, notes)
	if err != nil {
		config.LogError(logger, "stockWorkflow.go", "AdjustProductStock", "AdjustStock", delta, err)
		return nil, false, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "stockWorkflow.go", "AdjustProductStock", "Commit", nil, err)
		return nil, false, utils.WrapPersistence(err)
	}
	return &product, clamped, nil
}

// SetProductStock records a manual adjustment that brings the balance to an
// exact target, for cycle counts where the shelf is the source of truth.
func SetProductStock(ctx context.Context, productId int, target decimal.Decimal, notes string) (*models.Product, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	if target.IsNegative() {
		return nil, utils.Validationf("target stock cannot be negative")
	}

	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}
	delta := target.Sub(product.StockQuantity)
	if delta.IsZero() {
		return product, nil
	}
	if notes == "" {
		notes = "Stock count correction"
	}

	adjusted, _, err := AdjustProductStock(ctx, productId, delta, notes)
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}
