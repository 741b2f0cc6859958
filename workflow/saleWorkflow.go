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

// CreateSale posts a sales document: prices the lines, checks and deducts
// stock, issues the sale number, records the opening payment and refreshes
// the customer rollup. Everything happens in one transaction serialized by
// the company posting lock.
func CreateSale(ctx context.Context, input *models.NewSale) (*models.Sale, error) {
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
	}
	if input.AmountPaid.IsNegative() {
		return nil, utils.Validationf("amount paid cannot be negative")
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[models.Customer](ctx, companyId, *input.CustomerId); err != nil {
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
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	saleDate := time.Now()
	if input.SaleDate != nil {
		saleDate = *input.SaleDate
	}
	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentMethodCash
	}

	// Validation pass over every line before anything is written: a later
	// item's deficiency must not leave earlier debits behind.
	type pricedLine struct {
		product   models.Product
		quantity  decimal.Decimal
		unitPrice decimal.Decimal
		input     models.NewSaleItem
		values    utils.LineValues
	}
	lines := make([]pricedLine, 0, len(input.Items))
	for _, item := range input.Items {
		var product models.Product
		if err := tx.Where("id = ? AND company_id = ?", item.ProductId, companyId).
			First(&product).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, utils.Validationf("product %d not found", item.ProductId)
			}
			config.LogError(logger, "saleWorkflow.go", "CreateSale", "Fetch Product", item.ProductId, err)
			return nil, utils.WrapPersistence(err)
		}
		if product.TrackStock != nil && *product.TrackStock && product.StockQuantity.LessThan(item.Quantity) {
			return nil, &utils.InsufficientStockError{
				ProductName: product.Name,
				Available:   product.StockQuantity,
				Required:    item.Quantity,
			}
		}

		unitPrice := product.SellingPrice
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		lines = append(lines, pricedLine{
			product:   product,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
			input:     item,
			values:    utils.ComputeLine(item.Quantity, unitPrice, item.DiscountAmount, item.DiscountPercentage, product.CostPrice),
		})
	}

	saleNumber, err := models.NextSaleNumber(ctx, companyId)
	if err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "NextSaleNumber", companyId, err)
		return nil, err
	}

	sale := models.Sale{
		CompanyId:          companyId,
		SaleNumber:         saleNumber,
		CustomerId:         input.CustomerId,
		UserId:             userId,
		SaleDate:           saleDate,
		DiscountAmount:     input.DiscountAmount,
		DiscountPercentage: input.DiscountPercentage,
		TaxAmount:          input.TaxAmount,
		PaymentMethod:      paymentMethod,
		Status:             models.SaleStatusCompleted,
		Notes:              input.Notes,
	}
	if err := tx.Create(&sale).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "Create Sale", sale, err)
		return nil, utils.WrapPersistence(err)
	}

	subtotal := decimal.Zero
	totalCost := decimal.Zero
	saleItems := make([]models.SaleItem, 0, len(lines))

	for i := range lines {
		line := &lines[i]
		if line.product.TrackStock != nil && *line.product.TrackStock {
			balance, clamped, err := models.AdjustStock(tx, ctx, &line.product, line.quantity.Neg(),
				models.MovementTypeOut, models.StockRefSale, sale.ID,
				fmt.Sprintf("Sale %s", saleNumber))
			if err != nil {
				config.LogError(logger, "saleWorkflow.go", "CreateSale", "AdjustStock", line.input, err)
				return nil, err
			}
			if clamped {
				// A concurrent adjustment drained the stock between the
				// validation pass and the deduction.
				return nil, &utils.InsufficientStockError{
					ProductName: line.product.Name,
					Available:   balance,
					Required:    line.quantity,
				}
			}
		}

		saleItems = append(saleItems, models.SaleItem{
			CompanyId:          companyId,
			SaleId:             sale.ID,
			ProductId:          line.product.ID,
			ProductName:        line.product.Name,
			ProductSku:         line.product.Sku,
			UnitId:             line.product.UnitId,
			Quantity:           line.quantity,
			UnitPrice:          line.unitPrice,
			CostPrice:          line.product.CostPrice,
			DiscountAmount:     line.input.DiscountAmount,
			DiscountPercentage: line.input.DiscountPercentage,
			LineTotal:          line.values.LineTotal,
			CostTotal:          line.values.CostTotal,
			ProfitAmount:       line.values.ProfitAmount,
		})
		subtotal = subtotal.Add(line.values.LineTotal)
		totalCost = totalCost.Add(line.values.CostTotal)
	}

	if err := tx.Create(&saleItems).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "Create SaleItems", saleItems, err)
		return nil, utils.WrapPersistence(err)
	}

	// The persisted discount_amount is the effective document discount, fixed
	// and percentage parts combined, so total_amount always equals
	// subtotal - discount_amount + tax_amount.
	documentDiscount := utils.CalculateDiscountAmount(subtotal, input.DiscountAmount, input.DiscountPercentage)
	totalAmount := utils.ComputeDocumentTotal(subtotal, documentDiscount, input.TaxAmount)
	profitAmount, profitMargin := utils.ComputeProfit(totalAmount, totalCost)
	paymentStatus, amountDue := utils.DerivePaymentStatus(totalAmount, input.AmountPaid)

	updates := map[string]interface{}{
		"subtotal":        subtotal,
		"discount_amount": documentDiscount,
		"total_amount":    totalAmount,
		"total_cost":      totalCost,
		"profit_amount":   profitAmount,
		"profit_margin":   profitMargin,
		"amount_paid":     input.AmountPaid,
		"amount_due":      amountDue,
		"payment_status":  paymentStatus,
	}
	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "Update Sale Totals", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	sale.Subtotal = subtotal
	sale.DiscountAmount = documentDiscount
	sale.TotalAmount = totalAmount
	sale.TotalCost = totalCost
	sale.ProfitAmount = profitAmount
	sale.ProfitMargin = profitMargin
	sale.AmountPaid = input.AmountPaid
	sale.AmountDue = amountDue
	sale.PaymentStatus = paymentStatus
	sale.Items = saleItems

	if input.AmountPaid.IsPositive() {
		payment := models.PaymentRecord{
			CompanyId:   companyId,
			SaleId:      &sale.ID,
			UserId:      userId,
			Amount:      input.AmountPaid,
			Method:      paymentMethod,
			PaymentDate: saleDate,
		}
		if err := tx.Create(&payment).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "CreateSale", "Create PaymentRecord", payment, err)
			return nil, utils.WrapPersistence(err)
		}
		sale.Payments = []models.PaymentRecord{payment}
	}

	if sale.CustomerId != nil {
		if err := RecomputeCustomerTotals(tx, companyId, *sale.CustomerId); err != nil {
			config.LogError(logger, "saleWorkflow.go", "CreateSale", "RecomputeCustomerTotals", *sale.CustomerId, err)
			return nil, err
		}
	}

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &sale, nil
}

// RefundSale reverses a completed sale: restocks the lines unless the caller
// opts out, marks the document refunded and stamps the reason and refunded
// amount into the notes. Payment rows already recorded stay on record.
func RefundSale(ctx context.Context, saleId int, input *models.RefundSale) (*models.Sale, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	if input == nil || input.Reason == "" {
		return nil, utils.Validationf("refund reason is required")
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
		config.LogError(logger, "saleWorkflow.go", "RefundSale", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	var sale models.Sale
	if err := tx.Preload("Items").
		Where("id = ? AND company_id = ?", saleId, companyId).
		First(&sale).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "saleWorkflow.go", "RefundSale", "Fetch Sale", saleId, err)
		return nil, utils.WrapPersistence(err)
	}
	if sale.Status != models.SaleStatusCompleted {
		return nil, utils.Statef("sale %s is %s and cannot be refunded", sale.SaleNumber, sale.Status)
	}

	refundAmount := sale.TotalAmount
	if input.RefundAmount != nil {
		if !input.RefundAmount.IsPositive() || input.RefundAmount.GreaterThan(sale.TotalAmount) {
			return nil, utils.Validationf("refund amount %s must be positive and no more than the sale total %s",
				input.RefundAmount.StringFixed(2), sale.TotalAmount.StringFixed(2))
		}
		refundAmount = *input.RefundAmount
	}
	restock := input.RestockItems == nil || *input.RestockItems

	if restock {
		for _, item := range sale.Items {
			var product models.Product
			if err := tx.Where("id = ? AND company_id = ?", item.ProductId, companyId).
				First(&product).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					// Product deleted since the sale; nothing to restock.
					continue
				}
				config.LogError(logger, "saleWorkflow.go", "RefundSale", "Fetch Product", item.ProductId, err)
				return nil, utils.WrapPersistence(err)
			}
			if _, _, err := models.AdjustStock(tx, ctx, &product, item.Quantity,
				models.MovementTypeIn, models.StockRefRefund, sale.ID,
				fmt.Sprintf("Refund of sale %s", sale.SaleNumber)); err != nil {
				config.LogError(logger, "saleWorkflow.go", "RefundSale", "AdjustStock", item, err)
				return nil, err
			}
		}
	}

	notes := sale.Notes
	refundNote := fmt.Sprintf("REFUNDED: %s (Amount: %s)", input.Reason, refundAmount.StringFixed(2))
	if notes != "" {
		notes = notes + "\n" + refundNote
	} else {
		notes = refundNote
	}

	updates := map[string]interface{}{
		"status":         models.SaleStatusRefunded,
		"payment_status": utils.PaymentStatusRefunded,
		"notes":          notes,
	}
	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "RefundSale", "Update Sale", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	sale.Status = models.SaleStatusRefunded
	sale.PaymentStatus = utils.PaymentStatusRefunded
	sale.Notes = notes

	if sale.CustomerId != nil {
		if err := RecomputeCustomerTotals(tx, companyId, *sale.CustomerId); err != nil {
			config.LogError(logger, "saleWorkflow.go", "RefundSale", "RecomputeCustomerTotals", *sale.CustomerId, err)
			return nil, err
		}
	}

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "RefundSale", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &sale, nil
}

// UpdateSaleHeader edits the header fields of a completed sale. Lines and
// stock are immutable after posting; changing the document discount or tax
// recomputes the money fields from the persisted items. Use a refund and a
// new sale to change anything else.
func UpdateSaleHeader(ctx context.Context, saleId int, input *models.UpdateSale) (*models.Sale, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[models.Customer](ctx, companyId, *input.CustomerId); err != nil {
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

	var sale models.Sale
	if err := tx.Where("id = ? AND company_id = ?", saleId, companyId).
		First(&sale).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "saleWorkflow.go", "UpdateSaleHeader", "Fetch Sale", saleId, err)
		return nil, utils.WrapPersistence(err)
	}
	if sale.Status != models.SaleStatusCompleted {
		return nil, utils.Statef("sale %s is %s and cannot be edited", sale.SaleNumber, sale.Status)
	}

	previousCustomerId := sale.CustomerId

	updates := map[string]interface{}{}
	if input.CustomerId != nil {
		updates["customer_id"] = *input.CustomerId
		sale.CustomerId = input.CustomerId
	}
	if input.SaleDate != nil {
		updates["sale_date"] = *input.SaleDate
		sale.SaleDate = *input.SaleDate
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
		sale.Notes = *input.Notes
	}
	if input.PaymentMethod != nil {
		updates["payment_method"] = *input.PaymentMethod
		sale.PaymentMethod = *input.PaymentMethod
	}
	editsDiscount := input.DiscountAmount != nil || input.DiscountPercentage != nil
	if editsDiscount || input.TaxAmount != nil {
		var items []models.SaleItem
		if err := tx.Where("sale_id = ? AND company_id = ?", sale.ID, companyId).
			Find(&items).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "UpdateSaleHeader", "Fetch SaleItems", sale.ID, err)
			return nil, utils.WrapPersistence(err)
		}
		subtotal := decimal.Zero
		totalCost := decimal.Zero
		for _, item := range items {
			subtotal = subtotal.Add(item.LineTotal)
			totalCost = totalCost.Add(item.CostTotal)
		}

		// The persisted discount_amount is the effective combined discount,
		// so a discount edit replaces the whole discount from the input's
		// fixed and percentage parts; an absent part means zero. Editing only
		// the tax keeps the effective discount as stored.
		if editsDiscount {
			fixed := decimal.Zero
			if input.DiscountAmount != nil {
				fixed = *input.DiscountAmount
			}
			percentage := decimal.Zero
			if input.DiscountPercentage != nil {
				percentage = *input.DiscountPercentage
			}
			sale.DiscountAmount = utils.CalculateDiscountAmount(subtotal, fixed, percentage)
			sale.DiscountPercentage = percentage
		}
		if input.TaxAmount != nil {
			sale.TaxAmount = *input.TaxAmount
		}
		sale.TotalAmount = utils.ComputeDocumentTotal(subtotal, sale.DiscountAmount, sale.TaxAmount)
		sale.ProfitAmount, sale.ProfitMargin = utils.ComputeProfit(sale.TotalAmount, totalCost)
		sale.PaymentStatus, sale.AmountDue = utils.DerivePaymentStatus(sale.TotalAmount, sale.AmountPaid)

		updates["discount_amount"] = sale.DiscountAmount
		updates["discount_percentage"] = sale.DiscountPercentage
		updates["tax_amount"] = sale.TaxAmount
		updates["total_amount"] = sale.TotalAmount
		updates["profit_amount"] = sale.ProfitAmount
		updates["profit_margin"] = sale.ProfitMargin
		updates["payment_status"] = sale.PaymentStatus
		updates["amount_due"] = sale.AmountDue
	}
	if len(updates) == 0 {
		return &sale, nil
	}

	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "UpdateSaleHeader", "Update Sale", updates, err)
		return nil, utils.WrapPersistence(err)
	}

	// Rollups follow the customer link, so both sides of a reassignment
	// need a recompute.
	touched := map[int]bool{}
	if previousCustomerId != nil {
		touched[*previousCustomerId] = true
	}
	if sale.CustomerId != nil {
		touched[*sale.CustomerId] = true
	}
	for customerId := range touched {
		if err := RecomputeCustomerTotals(tx, companyId, customerId); err != nil {
			config.LogError(logger, "saleWorkflow.go", "UpdateSaleHeader", "RecomputeCustomerTotals", customerId, err)
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "UpdateSaleHeader", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &sale, nil
}
