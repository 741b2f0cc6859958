package models

import (
	"testing"
	"time"
)

var numberingDay = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func TestFormatDocumentNumber(t *testing.T) {
	got := FormatDocumentNumber(SaleNumberPrefix, numberingDay, 7)
	if got != "SALE-20250314-0007" {
		t.Fatalf("number = %s, want SALE-20250314-0007", got)
	}

	got = FormatDocumentNumber(PurchaseNumberPrefix, numberingDay, 42)
	if got != "PUR-20250314-0042" {
		t.Fatalf("number = %s, want PUR-20250314-0042", got)
	}
}

func TestFormatDocumentNumber_SequenceGrowsPastPadding(t *testing.T) {
	got := FormatDocumentNumber(SaleNumberPrefix, numberingDay, 12345)
	if got != "SALE-20250314-12345" {
		t.Fatalf("number = %s, want SALE-20250314-12345", got)
	}
}

func TestParseDocumentSequence(t *testing.T) {
	cases := []struct {
		name   string
		number string
		want   int
	}{
		{"normal", "SALE-20250314-0007", 7},
		{"large sequence", "SALE-20250314-12345", 12345},
		{"empty string", "", 0},
		{"wrong prefix", "PUR-20250314-0007", 0},
		{"wrong day", "SALE-20250313-0007", 0},
		{"garbage sequence", "SALE-20250314-xyz", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDocumentSequence(tc.number, SaleNumberPrefix, numberingDay)
			if got != tc.want {
				t.Fatalf("sequence = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCustomerCodeRoundTrip(t *testing.T) {
	code := FormatCustomerCode(3)
	if code != "CUST-0003" {
		t.Fatalf("code = %s, want CUST-0003", code)
	}
	if seq := ParseCustomerCodeSequence(code); seq != 3 {
		t.Fatalf("sequence = %d, want 3", seq)
	}
	if seq := ParseCustomerCodeSequence("CUST-10000"); seq != 10000 {
		t.Fatalf("sequence = %d, want 10000", seq)
	}
	if seq := ParseCustomerCodeSequence("SALE-0003"); seq != 0 {
		t.Fatalf("sequence = %d, want 0", seq)
	}
}
