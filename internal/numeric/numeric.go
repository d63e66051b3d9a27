// Package numeric converts between 18-decimal fixed-point chain amounts and
// display values. Scaling by 10^18 happens here and nowhere else.
package numeric

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// WeiDecimals is the fixed-point scale used by the launchpad for both token
// and ETH amounts.
const WeiDecimals = 18

var weiUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(WeiDecimals), nil)

// ParseWei parses a decimal string into a wei-scale integer. An empty string
// parses as zero.
func ParseWei(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %s", value)
	}
	return parsed, nil
}

// WeiToFloat converts a wei-scale integer to a whole-unit float64.
func WeiToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	out, _ := new(big.Rat).SetFrac(value, weiUnit).Float64()
	return out
}

// WeiStringToFloat parses a wei-scale decimal string and converts it to a
// whole-unit float64.
func WeiStringToFloat(value string) (float64, error) {
	parsed, err := ParseWei(value)
	if err != nil {
		return 0, err
	}
	return WeiToFloat(parsed), nil
}

// FloatToWei converts a whole-unit amount back to a wei-scale integer,
// rounding to the nearest integer.
func FloatToWei(value float64) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(value), new(big.Float).SetInt(weiUnit))
	out, _ := scaled.Int(nil)
	half := new(big.Float).Sub(scaled, new(big.Float).SetInt(out))
	if v, _ := half.Float64(); v >= 0.5 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// TokensToWei converts a whole-token count to its wei-scale integer.
func TokensToWei(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens), weiUnit)
}

// FormatUnits renders a fixed-point integer as a decimal string with the
// given scale.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

var subscriptDigits = []rune("₀₁₂₃₄₅₆₇₈₉")

// FormatPrice renders a price for display. Prices at or above 0.001 keep up
// to eight decimals with trailing zeros trimmed. Smaller prices compress the
// run of leading zeros after the decimal point into a subscript count, the
// convention launchpad UIs use: 0.0000012345 renders as "0.0₅12345".
func FormatPrice(price float64) string {
	if price <= 0 {
		return "0"
	}
	if price >= 0.001 {
		text := strconv.FormatFloat(price, 'f', 8, 64)
		text = strings.TrimRight(text, "0")
		return strings.TrimRight(text, ".")
	}

	text := strconv.FormatFloat(price, 'f', 24, 64)
	frac := text[strings.Index(text, ".")+1:]
	zeros := 0
	for zeros < len(frac) && frac[zeros] == '0' {
		zeros++
	}
	digits := strings.TrimRight(frac[zeros:], "0")
	if len(digits) > 5 {
		digits = digits[:5]
	}
	if digits == "" {
		return "0"
	}
	if zeros < 3 {
		return "0." + frac[:zeros] + digits
	}
	return "0.0" + subscript(zeros) + digits
}

func subscript(n int) string {
	var sb strings.Builder
	for _, r := range strconv.Itoa(n) {
		sb.WriteRune(subscriptDigits[r-'0'])
	}
	return sb.String()
}

// Abbreviate renders a large value in K/M/B notation with two decimals,
// trailing zeros trimmed: 1234 -> "1.23K", 5600000 -> "5.6M".
func Abbreviate(value float64) string {
	neg := value < 0
	if neg {
		value = -value
	}
	var text string
	switch {
	case value >= 1e9:
		text = trimFixed(value/1e9) + "B"
	case value >= 1e6:
		text = trimFixed(value/1e6) + "M"
	case value >= 1e3:
		text = trimFixed(value/1e3) + "K"
	default:
		text = trimFixed(value)
	}
	if neg {
		return "-" + text
	}
	return text
}

func trimFixed(value float64) string {
	text := strconv.FormatFloat(value, 'f', 2, 64)
	text = strings.TrimRight(text, "0")
	return strings.TrimRight(text, ".")
}
