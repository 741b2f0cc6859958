package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// Payment status values shared by sales and their payment records.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPartial  = "partial"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// LineValues is the result of pricing a single sale or purchase line.
type LineValues struct {
	LineTotal    decimal.Decimal
	CostTotal    decimal.Decimal
	ProfitAmount decimal.Decimal
}

// CalculateDiscountAmount applies the additive discount rule: a fixed amount
// and a percentage of the subtotal stack, they are not mutually exclusive.
func CalculateDiscountAmount(subtotal decimal.Decimal, discountAmount decimal.Decimal, discountPercentage decimal.Decimal) decimal.Decimal {
	discount := discountAmount
	if discountPercentage.GreaterThan(decimal.Zero) {
		discount = discount.Add(subtotal.Mul(discountPercentage).DivRound(decimalOneHundred, 4))
	}
	return discount
}

// ComputeLine prices one line item. Pure; the caller persists the result.
//
// The line total is NOT floored at zero: a discount larger than the subtotal
// produces a negative line total, and that is kept as-is.
func ComputeLine(quantity decimal.Decimal, unitPrice decimal.Decimal, discountAmount decimal.Decimal, discountPercentage decimal.Decimal, costPrice decimal.Decimal) LineValues {
	subtotal := quantity.Mul(unitPrice)
	discount := CalculateDiscountAmount(subtotal, discountAmount, discountPercentage)

	lineTotal := subtotal.Sub(discount).Round(2)
	costTotal := quantity.Mul(costPrice).Round(2)

	return LineValues{
		LineTotal:    lineTotal,
		CostTotal:    costTotal,
		ProfitAmount: lineTotal.Sub(costTotal),
	}
}

// ComputeDocumentTotal derives a document total from its subtotal, final
// discount and tax: total = subtotal - discount + tax.
func ComputeDocumentTotal(subtotal decimal.Decimal, discount decimal.Decimal, taxAmount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(taxAmount).Round(2)
}

// ComputeProfit returns the profit amount and margin percentage for a
// document. The margin is zero when there is no cost basis.
func ComputeProfit(totalAmount decimal.Decimal, totalCost decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	profit := totalAmount.Sub(totalCost)
	if totalCost.LessThanOrEqual(decimal.Zero) {
		return profit, decimal.Zero
	}
	margin := profit.Mul(decimalOneHundred).DivRound(totalCost, 2)
	return profit, margin
}

// DerivePaymentStatus maps paid-so-far against the document total:
// paid when amountPaid covers the total, partial when something but not all
// has been paid, pending otherwise. The returned due amount is floored at
// zero (overpayment never shows as negative due).
func DerivePaymentStatus(totalAmount decimal.Decimal, amountPaid decimal.Decimal) (string, decimal.Decimal) {
	amountDue := totalAmount.Sub(amountPaid)
	if amountDue.LessThan(decimal.Zero) {
		amountDue = decimal.Zero
	}

	switch {
	case amountPaid.GreaterThanOrEqual(totalAmount):
		return PaymentStatusPaid, amountDue
	case amountPaid.GreaterThan(decimal.Zero):
		return PaymentStatusPartial, amountDue
	default:
		return PaymentStatusPending, amountDue
	}
}
