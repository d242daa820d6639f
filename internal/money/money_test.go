package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"25.00", "USD", 2500, false},
		{"25", "usd", 2500, false},
		{"0.07", "EUR", 7, false},
		{"33.34", "USD", 3334, false},
		{"10.005", "USD", 0, true},
		{"1500", "JPY", 1500, false},
		{"1500.5", "JPY", 0, true},
		{"99999999999999999999", "USD", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			got, err := ToMinor(decimal.RequireFromString(tt.amount), tt.currency)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToMinor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ToMinor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromMinor(t *testing.T) {
	if got := FromMinor(2397, "USD"); !got.Equal(decimal.RequireFromString("23.97")) {
		t.Errorf("FromMinor(2397, USD) = %s, want 23.97", got)
	}
	if got := FromMinor(1500, "JPY"); !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("FromMinor(1500, JPY) = %s, want 1500", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(decimal.RequireFromString("30"), "USD"); got != "30.00" {
		t.Errorf("Format() = %q, want 30.00", got)
	}
	if got := Format(decimal.RequireFromString("1500"), "JPY"); got != "1500" {
		t.Errorf("Format() = %q, want 1500", got)
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
	d, err := Parse(" 12.50 ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !d.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Parse() = %s, want 12.5", d)
	}
}
