package numeric

import (
	"math/big"
	"testing"
)

func TestParseWei(t *testing.T) {
	got, err := ParseWei("1000000000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(TokensToWei(1)) != 0 {
		t.Fatalf("parse mismatch: %s", got)
	}

	empty, err := ParseWei("")
	if err != nil {
		t.Fatalf("empty string should parse: %v", err)
	}
	if empty.Sign() != 0 {
		t.Fatalf("empty string should be zero, got %s", empty)
	}

	if _, err := ParseWei("not-a-number"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestWeiToFloat(t *testing.T) {
	half := new(big.Int).Div(TokensToWei(1), big.NewInt(2))
	if got := WeiToFloat(half); got != 0.5 {
		t.Fatalf("0.5 token mismatch: %v", got)
	}
	if got := WeiToFloat(nil); got != 0 {
		t.Fatalf("nil should be zero, got %v", got)
	}
}

func TestWeiStringToFloat(t *testing.T) {
	got, err := WeiStringToFloat("1500000000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1.5 {
		t.Fatalf("1.5 token mismatch: %v", got)
	}
}

func TestFloatToWeiRoundTrip(t *testing.T) {
	wei := FloatToWei(2.5)
	want := new(big.Int).Add(TokensToWei(2), new(big.Int).Div(TokensToWei(1), big.NewInt(2)))
	if wei.Cmp(want) != 0 {
		t.Fatalf("2.5 tokens mismatch: %s != %s", wei, want)
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(TokensToWei(5), 18); got != "5.000000000000000000" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := FormatUnits(big.NewInt(42), 0); got != "42" {
		t.Fatalf("zero-decimals mismatch: %s", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("nil mismatch: %s", got)
	}
	if got := FormatUnits(big.NewInt(-150), 2); got != "-1.50" {
		t.Fatalf("negative mismatch: %s", got)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0, "0"},
		{-1, "0"},
		{1234.5, "1234.5"},
		{0.05, "0.05"},
		{0.001, "0.001"},
		{0.0000012345, "0.0₅12345"},
	}

	for _, tc := range tests {
		if got := FormatPrice(tc.price); got != tc.want {
			t.Fatalf("FormatPrice(%v) = %q, want %q", tc.price, got, tc.want)
		}
	}
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{999, "999"},
		{1234, "1.23K"},
		{5600000, "5.6M"},
		{1500000000, "1.5B"},
		{-2500, "-2.5K"},
	}

	for _, tc := range tests {
		if got := Abbreviate(tc.value); got != tc.want {
			t.Fatalf("Abbreviate(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
