package core

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"dot separator", "12.34", 1234, false},
		{"comma separator", "12,34", 1234, false},
		{"integer", "1500", 150000, false},
		{"single fraction digit", "7.5", 750, false},
		{"third decimal rounds down", "12.344", 1234, false},
		{"third decimal rounds up", "12.345", 1235, false},
		{"zero allowed", "0", 0, false},
		{"leading dot", ".50", 50, false},
		{"empty", "", 0, true},
		{"negative rejected", "-5.00", 0, true},
		{"plus sign rejected", "+5.00", 0, true},
		{"two separators", "1.2.3", 0, true},
		{"letters", "12a", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got.Cents != tt.want {
				t.Errorf("ParseAmount(%q) = %d cents, want %d", tt.in, got.Cents, tt.want)
			}
		})
	}
}

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{950, "9.50"},
		{123456, "1,234.56"},
		{100000000, "1,000,000.00"},
		{-1234567, "-12,345.67"},
	}

	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).Display(); got != tt.want {
			t.Errorf("Money{%d}.Display() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	if got := (Money{Cents: 1234}).Decimal(); got != "12.34" {
		t.Errorf("Decimal() = %q, want %q", got, "12.34")
	}
	if got := (Money{Cents: 5}).Decimal(); got != "0.05" {
		t.Errorf("Decimal() = %q, want %q", got, "0.05")
	}
}
