package models

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

func TestClampDelta(t *testing.T) {
	cases := []struct {
		name        string
		balance     string
		delta       string
		wantApplied string
		wantClamped bool
	}{
		{"inbound never clamps", "10", "5", "5", false},
		{"outbound within balance", "10", "-7", "-7", false},
		{"outbound exactly to zero", "10", "-10", "-10", false},
		{"outbound beyond balance clamps", "10", "-15", "-10", true},
		{"outbound from zero clamps to nothing", "0", "-3", "0", true},
		{"fractional clamp", "2.5", "-4", "-2.5", true},
		{"negative balance clamps to nothing", "-1", "-2", "0", true},
		{"zero delta", "10", "0", "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			applied, clamped := ClampDelta(d(tc.balance), d(tc.delta))
			if !applied.Equal(d(tc.wantApplied)) {
				t.Fatalf("applied = %s, want %s", applied, tc.wantApplied)
			}
			if clamped != tc.wantClamped {
				t.Fatalf("clamped = %v, want %v", clamped, tc.wantClamped)
			}
		})
	}
}

func TestReplayMovements(t *testing.T) {
	movements := []StockMovement{
		{MovementType: MovementTypeIn, Quantity: d("10")},
		{MovementType: MovementTypeOut, Quantity: d("-3")},
		{MovementType: MovementTypeIn, Quantity: d("5")},
		{MovementType: MovementTypeAdjustment, Quantity: d("-2")},
		{MovementType: MovementTypeOut, Quantity: d("-4")},
	}
	got := ReplayMovements(movements)
	if !got.Equal(d("6")) {
		t.Fatalf("replayed balance = %s, want 6", got)
	}
}

func TestReplayMovements_Empty(t *testing.T) {
	if got := ReplayMovements(nil); !got.IsZero() {
		t.Fatalf("replayed balance = %s, want 0", got)
	}
}
