package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreatePurchase posts a purchase document: receives stock, rolls the
// product cost forward per its cost method and records the opening payment.
func CreatePurchase(ctx context.Context, input *models.NewPurchase) (*models.Purchase, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	for _, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return nil, utils.Validationf("item quantity must be positive")
		}
		if item.UnitCost.IsNegative() {
			return nil, utils.Validationf("unit cost cannot be negative")
		}
	}
	if input.AmountPaid.IsNegative() {
		return nil, utils.Validationf("amount paid cannot be negative")
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[models.Supplier](ctx, companyId, *input.SupplierId); err != nil {
			return nil, err
		}
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

	releaseLock, err := AcquireCompanyPostingLock(tx, companyId)
	if err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	purchaseDate := time.Now()
	if input.PurchaseDate != nil {
		purchaseDate = *input.PurchaseDate
	}
	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentMethodCash
	}

	purchaseNumber, err := models.NextPurchaseNumber(ctx, companyId)
	if err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "NextPurchaseNumber", companyId, err)
		return nil, err
	}

	purchase := models.Purchase{
		CompanyId:      companyId,
		PurchaseNumber: purchaseNumber,
		SupplierId:     input.SupplierId,
		UserId:         userId,
		PurchaseDate:   purchaseDate,
		DiscountAmount: input.DiscountAmount,
		TaxAmount:      input.TaxAmount,
		PaymentMethod:  paymentMethod,
		Status:         models.PurchaseStatusCompleted,
		Notes:          input.Notes,
	}
	if err := tx.Create(&purchase).Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Create Purchase", purchase, err)
		return nil, utils.WrapPersistence(err)
	}

	subtotal := decimal.Zero
	purchaseItems := make([]models.PurchaseItem, 0, len(input.Items))

	for _, item := range input.Items {
		var product models.Product
		if err := tx.Where("id = ? AND company_id = ?", item.ProductId, companyId).
			First(&product).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, utils.Validationf("product %d not found", item.ProductId)
			}
			config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Fetch Product", item.ProductId, err)
			return nil, utils.WrapPersistence(err)
		}

		unitCost := item.UnitCost
		if unitCost.IsZero() {
			unitCost = product.CostPrice
		}
		lineTotal := item.Quantity.Mul(unitCost).Round(2)

		if product.TrackStock != nil && *product.TrackStock {
			if _, _, err := models.AdjustStock(tx, ctx, &product, item.Quantity,
				models.MovementTypeIn, models.StockRefPurchase, purchase.ID,
				fmt.Sprintf("Purchase %s", purchaseNumber)); err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "AdjustStock", item, err)
				return nil, err
			}
		}
		if err := product.UpdateCostFromPurchase(tx, unitCost, purchaseDate); err != nil {
			config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "UpdateCostFromPurchase", item, err)
			return nil, err
		}

		purchaseItems = append(purchaseItems, models.PurchaseItem{
			CompanyId:   companyId,
			PurchaseId:  purchase.ID,
			ProductId:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitCost:    unitCost,
			LineTotal:   lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	if err := tx.Create(&purchaseItems).Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Create PurchaseItems", purchaseItems, err)
		return nil, utils.WrapPersistence(err)
	}

	totalAmount := utils.ComputeDocumentTotal(subtotal, input.DiscountAmount, input.TaxAmount)
	paymentStatus, amountDue := utils.DerivePaymentStatus(totalAmount, input.AmountPaid)

	updates := map[string]interface{}{
		"subtotal":       subtotal,
		"total_amount":   totalAmount,
		"amount_paid":    input.AmountPaid,
		"amount_due":     amountDue,
		"payment_status": paymentStatus,
	}
	if err := tx.Model(&models.Purchase{}).Where("id = ?", purchase.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Update Purchase Totals", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	purchase.Subtotal = subtotal
	purchase.TotalAmount = totalAmount
	purchase.AmountPaid = input.AmountPaid
	purchase.AmountDue = amountDue
	purchase.PaymentStatus = paymentStatus
	purchase.Items = purchaseItems

	if input.AmountPaid.IsPositive() {
		payment := models.PaymentRecord{
			CompanyId:   companyId,
			PurchaseId:  &purchase.ID,
			UserId:      userId,
			Amount:      input.AmountPaid,
			Method:      paymentMethod,
			PaymentDate: purchaseDate,
		}
		if err := tx.Create(&payment).Error; err != nil {
			config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Create PaymentRecord", payment, err)
			return nil, utils.WrapPersistence(err)
		}
		purchase.Payments = []models.PaymentRecord{payment}
	}

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CreatePurchase", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &purchase, nil
}

// CancelPurchase reverses a completed purchase by removing the received
// stock again. Unlike the clamping ledger, cancellation is strict: every
// tracked line must still be fully on hand, otherwise the whole cancellation
// is rejected before any stock moves.
func CancelPurchase(ctx context.Context, purchaseId int, reason string) (*models.Purchase, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
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

	releaseLock, err := AcquireCompanyPostingLock(tx, companyId)
	if err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	var purchase models.Purchase
	if err := tx.Preload("Items").
		Where("id = ? AND company_id = ?", purchaseId, companyId).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "Fetch Purchase", purchaseId, err)
		return nil, utils.WrapPersistence(err)
	}
	if purchase.Status != models.PurchaseStatusCompleted {
		return nil, utils.Statef("purchase %s is already %s", purchase.PurchaseNumber, purchase.Status)
	}

	// Precondition pass before any movement is written.
	type reversal struct {
		product  models.Product
		quantity decimal.Decimal
	}
	reversals := make([]reversal, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		var product models.Product
		if err := tx.Where("id = ? AND company_id = ?", item.ProductId, companyId).
			First(&product).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "Fetch Product", item.ProductId, err)
			return nil, utils.WrapPersistence(err)
		}
		if product.TrackStock == nil || !*product.TrackStock {
			continue
		}
		if product.StockQuantity.LessThan(item.Quantity) {
			return nil, utils.Statef("cannot cancel purchase %s: only %s of %s remains for %s",
				purchase.PurchaseNumber, product.StockQuantity.String(), item.Quantity.String(), product.Name)
		}
		reversals = append(reversals, reversal{product: product, quantity: item.Quantity})
	}

	for i := range reversals {
		_, clamped, err := models.AdjustStock(tx, ctx, &reversals[i].product, reversals[i].quantity.Neg(),
			models.MovementTypeAdjustment, models.StockRefPurchaseCancellation, purchase.ID,
			fmt.Sprintf("Cancellation of purchase %s", purchase.PurchaseNumber))
		if err != nil {
			config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "AdjustStock", reversals[i].product.ID, err)
			return nil, err
		}
		if clamped {
			return nil, utils.Statef("cannot cancel purchase %s: stock for %s changed during cancellation",
				purchase.PurchaseNumber, reversals[i].product.Name)
		}
	}

	notes := purchase.Notes
	if reason != "" {
		cancelNote := fmt.Sprintf("CANCELLED: %s", reason)
		if notes != "" {
			notes = notes + "\n" + cancelNote
		} else {
			notes = cancelNote
		}
	}

	updates := map[string]interface{}{
		"status": models.PurchaseStatusCancelled,
		"notes":  notes,
	}
	if err := tx.Model(&models.Purchase{}).Where("id = ?", purchase.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "Update Purchase", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	purchase.Status = models.PurchaseStatusCancelled
	purchase.Notes = notes

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "purchaseWorkflow.go", "CancelPurchase", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &purchase, nil
}
