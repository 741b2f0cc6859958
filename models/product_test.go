package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductStockStatus(t *testing.T) {
	track := true
	noTrack := false

	cases := []struct {
		name    string
		product Product
		want    string
	}{
		{"untracked", Product{TrackStock: &noTrack, StockQuantity: d("0")}, StockStatusNotTracked},
		{"out of stock", Product{TrackStock: &track, StockQuantity: d("0"), MinStockLevel: d("5")}, StockStatusOut},
		{"low stock at threshold", Product{TrackStock: &track, StockQuantity: d("5"), MinStockLevel: d("5")}, StockStatusLow},
		{"in stock", Product{TrackStock: &track, StockQuantity: d("6"), MinStockLevel: d("5")}, StockStatusIn},
		{"overstocked", Product{TrackStock: &track, StockQuantity: d("101"), MinStockLevel: d("5"), MaxStockLevel: d("100")}, StockStatusOver},
		{"no max means never overstocked", Product{TrackStock: &track, StockQuantity: d("9999"), MinStockLevel: d("5")}, StockStatusIn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.product.StockStatus(); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestProductIsLowStock(t *testing.T) {
	track := true
	p := Product{TrackStock: &track, StockQuantity: d("4"), MinStockLevel: d("5")}
	if !p.IsLowStock() {
		t.Fatal("expected low stock")
	}
	p.StockQuantity = d("10")
	if p.IsLowStock() {
		t.Fatal("expected not low stock")
	}
}

func TestProductProfitMargin(t *testing.T) {
	p := Product{CostPrice: d("150"), SellingPrice: d("250")}
	if got := p.ProfitMargin(); !got.Equal(d("66.67")) {
		t.Fatalf("margin = %s, want 66.67", got)
	}

	free := Product{CostPrice: decimal.Zero, SellingPrice: d("250")}
	if got := free.ProfitMargin(); !got.IsZero() {
		t.Fatalf("margin = %s, want 0", got)
	}
}
