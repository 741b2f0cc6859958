package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
)

const (
	SaleNumberPrefix     = "SALE"
	PurchaseNumberPrefix = "PUR"
	CustomerCodePrefix   = "CUST"

	documentSequenceWidth = 4
)

// Clock supplies the date embedded in document numbers. Swappable so tests
// can pin the day.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var DocumentClock Clock = systemClock{}

// FormatDocumentNumber renders "PREFIX-YYYYMMDD-NNNN".
func FormatDocumentNumber(prefix string, day time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%0*d", prefix, day.Format("20060102"), documentSequenceWidth, sequence)
}

// ParseDocumentSequence extracts the trailing sequence from a document
// number. Returns 0 for numbers that do not match the expected shape, so a
// stray row can never poison the series.
func ParseDocumentSequence(number string, prefix string, day time.Time) int {
	want := prefix + "-" + day.Format("20060102") + "-"
	if !strings.HasPrefix(number, want) {
		return 0
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, want))
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// FormatCustomerCode renders "CUST-NNNN". The sequence keeps growing past
// four digits rather than wrapping.
func FormatCustomerCode(sequence int) string {
	return fmt.Sprintf("%s-%0*d", CustomerCodePrefix, documentSequenceWidth, sequence)
}

// ParseCustomerCodeSequence extracts the sequence from a customer code,
// 0 when the code does not match.
func ParseCustomerCodeSequence(code string) int {
	want := CustomerCodePrefix + "-"
	if !strings.HasPrefix(code, want) {
		return 0
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(code, want))
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

func nextDocumentNumber(ctx context.Context, companyId string, prefix string,
	model interface{}, column string, funcName string) (string, error) {

	release, err := utils.CompanyLock(ctx, companyId, "numbering", "models", funcName)
	if err != nil {
		return "", err
	}
	defer release()

	day := DocumentClock.Now()
	pattern := prefix + "-" + day.Format("20060102") + "-%"

	db := config.GetDB()
	var lastNumbers []string
	err = db.WithContext(ctx).Model(model).
		Where("company_id = ? AND "+column+" LIKE ?", companyId, pattern).
		Order("CHAR_LENGTH(" + column + ") desc, " + column + " desc").
		Limit(1).
		Pluck(column, &lastNumbers).Error
	if err != nil {
		return "", utils.WrapPersistence(err)
	}

	lastNumber := ""
	if len(lastNumbers) > 0 {
		lastNumber = lastNumbers[0]
	}
	seq := ParseDocumentSequence(lastNumber, prefix, day) + 1
	return FormatDocumentNumber(prefix, day, seq), nil
}

// NextSaleNumber issues the next sale number for the company's current day.
// Serialized with a company-level lock; the unique index on the number is
// the backstop if two processes still race.
func NextSaleNumber(ctx context.Context, companyId string) (string, error) {
	return nextDocumentNumber(ctx, companyId, SaleNumberPrefix, &Sale{}, "sale_number", "NextSaleNumber")
}

// NextPurchaseNumber issues the next purchase number for the company's
// current day.
func NextPurchaseNumber(ctx context.Context, companyId string) (string, error) {
	return nextDocumentNumber(ctx, companyId, PurchaseNumberPrefix, &Purchase{}, "purchase_number", "NextPurchaseNumber")
}

// NextCustomerCode issues the next customer code. Unlike document numbers
// the series is company-wide, not daily.
func NextCustomerCode(ctx context.Context, companyId string) (string, error) {
	release, err := utils.CompanyLock(ctx, companyId, "numbering", "models", "NextCustomerCode")
	if err != nil {
		return "", err
	}
	defer release()

	db := config.GetDB()
	var lastCodes []string
	err = db.WithContext(ctx).Model(&Customer{}).
		Where("company_id = ? AND customer_code LIKE ?", companyId, CustomerCodePrefix+"-%").
		Order("CHAR_LENGTH(customer_code) desc, customer_code desc").
		Limit(1).
		Pluck("customer_code", &lastCodes).Error
	if err != nil {
		return "", utils.WrapPersistence(err)
	}

	lastCode := ""
	if len(lastCodes) > 0 {
		lastCode = lastCodes[0]
	}
	seq := ParseCustomerCodeSequence(lastCode) + 1
	return FormatCustomerCode(seq), nil
}
