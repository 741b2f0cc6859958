package workflow

import (
	"context"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecomputeCustomerTotals rebuilds a customer's purchase rollup from their
// completed sales. A full recompute instead of an increment: the cached
// totals converge to the truth no matter how the sale history was mutated.
// Refunded sales do not count.
func RecomputeCustomerTotals(tx *gorm.DB, companyId string, customerId int) error {
	type rollup struct {
		Total    decimal.NullDecimal
		Count    int
		LastDate *time.Time
	}
	var r rollup
	err := tx.Model(&models.Sale{}).
		Where("company_id = ? AND customer_id = ? AND status = ?",
			companyId, customerId, models.SaleStatusCompleted).
		Select("SUM(total_amount) AS total, COUNT(*) AS count, MAX(sale_date) AS last_date").
		Scan(&r).Error
	if err != nil {
		return utils.WrapPersistence(err)
	}

	total := decimal.Zero
	if r.Total.Valid {
		total = r.Total.Decimal
	}

	err = tx.Model(&models.Customer{}).
		Where("id = ? AND company_id = ?", customerId, companyId).
		Updates(map[string]interface{}{
			"total_spent":   total,
			"total_orders":  r.Count,
			"last_order_at": r.LastDate,
		}).Error
	if err != nil {
		return utils.WrapPersistence(err)
	}
	return nil
}

// RecomputeAllCustomerTotals refreshes the rollups of every customer in the
// company. Used by repair tooling after manual data surgery.
func RecomputeAllCustomerTotals(ctx context.Context, companyId string) (int, error) {
	logger := config.GetLogger()

	db := config.GetDB()
	var customerIds []int
	err := db.WithContext(ctx).Model(&models.Customer{}).
		Where("company_id = ?", companyId).
		Pluck("id", &customerIds).Error
	if err != nil {
		return 0, utils.WrapPersistence(err)
	}

	tx := db.WithContext(ctx).Begin()
	defer func() { _ = tx.Rollback().Error }()

	for _, customerId := range customerIds {
		if err := RecomputeCustomerTotals(tx, companyId, customerId); err != nil {
			config.LogError(logger, "rollupWorkflow.go", "RecomputeAllCustomerTotals", "RecomputeCustomerTotals", customerId, err)
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, utils.WrapPersistence(err)
	}
	return len(customerIds), nil
}
