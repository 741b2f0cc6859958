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

// AddSalePayment records a payment against a sale and refreshes the header's
// payment fields. The header is recomputed from the full payment history
// rather than incremented, so a replayed or repaired payment row can never
// leave the cached amount_paid out of step.
func AddSalePayment(ctx context.Context, saleId int, input *models.NewPayment) (*models.Sale, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.Validationf("payment amount must be positive")
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
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	var sale models.Sale
	if err := tx.Where("id = ? AND company_id = ?", saleId, companyId).
		First(&sale).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "Fetch Sale", saleId, err)
		return nil, utils.WrapPersistence(err)
	}
	if sale.Status != models.SaleStatusCompleted {
		return nil, utils.Statef("sale %s is %s and cannot take payments", sale.SaleNumber, sale.Status)
	}
	if sale.PaymentStatus == utils.PaymentStatusPaid {
		return nil, utils.Statef("sale %s is already fully paid", sale.SaleNumber)
	}
	if input.Amount.GreaterThan(sale.AmountDue) {
		return nil, utils.Validationf("payment of %s exceeds the %s due on sale %s",
			input.Amount.StringFixed(2), sale.AmountDue.StringFixed(2), sale.SaleNumber)
	}

	method := input.Method
	if method == "" {
		method = models.PaymentMethodCash
	}
	paymentDate := time.Now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}

	payment := models.PaymentRecord{
		CompanyId:   companyId,
		SaleId:      &sale.ID,
		UserId:      userId,
		Amount:      input.Amount,
		Method:      method,
		Reference:   input.Reference,
		Notes:       input.Notes,
		PaymentDate: paymentDate,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "Create PaymentRecord", payment, err)
		return nil, utils.WrapPersistence(err)
	}

	amountPaid, err := sumPayments(tx, companyId, "sale_id", sale.ID)
	if err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "Sum Payments", sale.ID, err)
		return nil, err
	}
	paymentStatus, amountDue := utils.DerivePaymentStatus(sale.TotalAmount, amountPaid)

	updates := map[string]interface{}{
		"amount_paid":    amountPaid,
		"amount_due":     amountDue,
		"payment_status": paymentStatus,
	}
	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "Update Sale", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	sale.AmountPaid = amountPaid
	sale.AmountDue = amountDue
	sale.PaymentStatus = paymentStatus

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddSalePayment", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &sale, nil
}

// AddPurchasePayment records a payment against a purchase, mirroring
// AddSalePayment.
func AddPurchasePayment(ctx context.Context, purchaseId int, input *models.NewPayment) (*models.Purchase, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.Validationf("company id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.Validationf("payment amount must be positive")
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
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "AcquireCompanyPostingLock", companyId, err)
		return nil, utils.WrapPersistence(err)
	}
	defer releaseLock()

	var purchase models.Purchase
	if err := tx.Where("id = ? AND company_id = ?", purchaseId, companyId).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "Fetch Purchase", purchaseId, err)
		return nil, utils.WrapPersistence(err)
	}
	if purchase.Status != models.PurchaseStatusCompleted {
		return nil, utils.Statef("purchase %s is %s and cannot take payments", purchase.PurchaseNumber, purchase.Status)
	}
	if purchase.PaymentStatus == utils.PaymentStatusPaid {
		return nil, utils.Statef("purchase %s is already fully paid", purchase.PurchaseNumber)
	}
	if input.Amount.GreaterThan(purchase.AmountDue) {
		return nil, utils.Validationf("payment of %s exceeds the %s due on purchase %s",
			input.Amount.StringFixed(2), purchase.AmountDue.StringFixed(2), purchase.PurchaseNumber)
	}

	method := input.Method
	if method == "" {
		method = models.PaymentMethodCash
	}
	paymentDate := time.Now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}

	payment := models.PaymentRecord{
		CompanyId:   companyId,
		PurchaseId:  &purchase.ID,
		UserId:      userId,
		Amount:      input.Amount,
		Method:      method,
		Reference:   input.Reference,
		Notes:       input.Notes,
		PaymentDate: paymentDate,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "Create PaymentRecord", payment, err)
		return nil, utils.WrapPersistence(err)
	}

	amountPaid, err := sumPayments(tx, companyId, "purchase_id", purchase.ID)
	if err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "Sum Payments", purchase.ID, err)
		return nil, err
	}
	paymentStatus, amountDue := utils.DerivePaymentStatus(purchase.TotalAmount, amountPaid)

	updates := map[string]interface{}{
		"amount_paid":    amountPaid,
		"amount_due":     amountDue,
		"payment_status": paymentStatus,
	}
	if err := tx.Model(&models.Purchase{}).Where("id = ?", purchase.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "Update Purchase", updates, err)
		return nil, utils.WrapPersistence(err)
	}
	purchase.AmountPaid = amountPaid
	purchase.AmountDue = amountDue
	purchase.PaymentStatus = paymentStatus

	releaseLock()
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "AddPurchasePayment", "Commit", nil, err)
		return nil, utils.WrapPersistence(err)
	}
	return &purchase, nil
}

func sumPayments(tx *gorm.DB, companyId string, column string, documentId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&models.PaymentRecord{}).
		Where("company_id = ? AND "+column+" = ?", companyId, documentId).
		Select("SUM(amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, utils.WrapPersistence(err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
