package model

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

func TestATMStrike(t *testing.T) {
	tests := []struct {
		ltp  string
		step string
		want string
	}{
		{"24537", "50", "24550"},
		{"24524", "50", "24500"},
		// Half-step midpoints round to the even strike multiple.
		{"24525", "50", "24500"},
		{"24575", "50", "24600"},
		{"51234", "100", "51200"},
		{"51250", "100", "51200"},
		{"51150", "100", "51200"},
		{"50", "50", "50"},
	}

	for _, tt := range tests {
		got := ATMStrike(d(tt.ltp), d(tt.step))
		if !got.Equal(d(tt.want)) {
			t.Errorf("ATMStrike(%s, %s) = %s, want %s", tt.ltp, tt.step, got, tt.want)
		}
		if !got.Mod(d(tt.step)).IsZero() {
			t.Errorf("ATMStrike(%s, %s) = %s, not a multiple of %s", tt.ltp, tt.step, got, tt.step)
		}
	}
}

func TestPositionFor(t *testing.T) {
	atm := d("24550")
	step := d("50")

	tests := []struct {
		strike string
		want   int
	}{
		{"24550", 0},
		{"24600", 1},
		{"24500", -1},
		{"23550", -20},
		{"25550", 20},
	}

	for _, tt := range tests {
		if got := PositionFor(d(tt.strike), atm, step); got != tt.want {
			t.Errorf("PositionFor(%s) = %d, want %d", tt.strike, got, tt.want)
		}
	}

	// Floor division: a strike below a non-aligned ATM must be negative.
	if got := PositionFor(d("24500"), d("24530"), step); got != -1 {
		t.Errorf("PositionFor below non-aligned ATM = %d, want -1", got)
	}
}

func TestTagFor(t *testing.T) {
	tests := []struct {
		position int
		want     string
	}{
		{0, "ATM"},
		{1, "OTM1"},
		{20, "OTM20"},
		{-1, "ITM1"},
		{-20, "ITM20"},
	}

	for _, tt := range tests {
		if got := TagFor(tt.position); got != tt.want {
			t.Errorf("TagFor(%d) = %q, want %q", tt.position, got, tt.want)
		}
	}
}

func TestSpread(t *testing.T) {
	if got := Spread(d("120"), d("121")); !got.Equal(d("1")) {
		t.Errorf("Spread(120, 121) = %s, want 1", got)
	}
	if got := Spread(d("0"), d("121")); !got.IsZero() {
		t.Errorf("Spread(0, 121) = %s, want 0", got)
	}
	if got := Spread(d("120"), d("0")); !got.IsZero() {
		t.Errorf("Spread(120, 0) = %s, want 0", got)
	}
}
