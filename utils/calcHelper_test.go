package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalculateDiscountAmount_AmountAndPercentageStack(t *testing.T) {
	// 20 fixed + 10% of 500 = 70. The two kinds of discount are additive.
	got := CalculateDiscountAmount(d("500"), d("20"), d("10"))
	if !got.Equal(d("70")) {
		t.Fatalf("discount = %s, want 70", got)
	}
}

func TestCalculateDiscountAmount_AmountOnly(t *testing.T) {
	got := CalculateDiscountAmount(d("500"), d("25"), decimal.Zero)
	if !got.Equal(d("25")) {
		t.Fatalf("discount = %s, want 25", got)
	}
}

func TestComputeLine(t *testing.T) {
	// 2 x 250 = 500, minus 20 fixed minus 10% = 430. Cost 2 x 150 = 300.
	line := ComputeLine(d("2"), d("250"), d("20"), d("10"), d("150"))
	if !line.LineTotal.Equal(d("430")) {
		t.Fatalf("line total = %s, want 430", line.LineTotal)
	}
	if !line.CostTotal.Equal(d("300")) {
		t.Fatalf("cost total = %s, want 300", line.CostTotal)
	}
	if !line.ProfitAmount.Equal(d("130")) {
		t.Fatalf("profit = %s, want 130", line.ProfitAmount)
	}
}

func TestComputeLine_NegativeTotalIsKept(t *testing.T) {
	// A discount larger than the line subtotal goes negative and stays
	// negative.
	line := ComputeLine(d("1"), d("50"), d("80"), decimal.Zero, d("30"))
	if !line.LineTotal.Equal(d("-30")) {
		t.Fatalf("line total = %s, want -30", line.LineTotal)
	}
}

func TestComputeDocumentTotal(t *testing.T) {
	got := ComputeDocumentTotal(d("430"), d("30"), d("21.50"))
	if !got.Equal(d("421.50")) {
		t.Fatalf("total = %s, want 421.50", got)
	}
}

func TestComputeProfit(t *testing.T) {
	profit, margin := ComputeProfit(d("430"), d("300"))
	if !profit.Equal(d("130")) {
		t.Fatalf("profit = %s, want 130", profit)
	}
	if !margin.Equal(d("43.33")) {
		t.Fatalf("margin = %s, want 43.33", margin)
	}
}

func TestComputeProfit_ZeroCostHasZeroMargin(t *testing.T) {
	profit, margin := ComputeProfit(d("100"), decimal.Zero)
	if !profit.Equal(d("100")) {
		t.Fatalf("profit = %s, want 100", profit)
	}
	if !margin.IsZero() {
		t.Fatalf("margin = %s, want 0", margin)
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		name       string
		total      string
		paid       string
		wantStatus string
		wantDue    string
	}{
		{"nothing paid", "300", "0", PaymentStatusPending, "300"},
		{"first installment", "300", "100", PaymentStatusPartial, "200"},
		{"second installment", "300", "200", PaymentStatusPartial, "100"},
		{"fully paid", "300", "300", PaymentStatusPaid, "0"},
		{"overpaid floors due at zero", "300", "400", PaymentStatusPaid, "0"},
		{"zero total is immediately paid", "0", "0", PaymentStatusPaid, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, due := DerivePaymentStatus(d(tc.total), d(tc.paid))
			if status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", status, tc.wantStatus)
			}
			if !due.Equal(d(tc.wantDue)) {
				t.Fatalf("due = %s, want %s", due, tc.wantDue)
			}
		})
	}
}
