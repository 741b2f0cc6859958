package models

import (
	"testing"
)

func TestUnitFormatQuantity(t *testing.T) {
	allow := true
	deny := false

	pieces := Unit{Name: "Pieces", Symbol: "pcs", AllowDecimals: &deny}
	if got := pieces.FormatQuantity(d("3.75")); !got.Equal(d("3")) {
		t.Fatalf("pieces 3.75 = %s, want 3", got)
	}

	kg := Unit{Name: "Kilogram", Symbol: "kg", AllowDecimals: &allow, DecimalPlaces: 3}
	if got := kg.FormatQuantity(d("1.23456")); !got.Equal(d("1.235")) {
		t.Fatalf("kg 1.23456 = %s, want 1.235", got)
	}

	// Unset pointer behaves like decimals disallowed.
	bare := Unit{Name: "Box", Symbol: "box"}
	if got := bare.FormatQuantity(d("2.9")); !got.Equal(d("2")) {
		t.Fatalf("box 2.9 = %s, want 2", got)
	}
}

func TestUnitDisplayQuantity(t *testing.T) {
	allow := true
	kg := Unit{Name: "Kilogram", Symbol: "kg", AllowDecimals: &allow, DecimalPlaces: 2}
	if got := kg.DisplayQuantity(d("2.5")); got != "2.5 kg" {
		t.Fatalf("display = %q, want %q", got, "2.5 kg")
	}
	if got := kg.DisplayName(); got != "Kilogram (kg)" {
		t.Fatalf("display name = %q", got)
	}
}
