package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a raw report/statement amount string into a
// decimal, disambiguating thousands and decimal separators:
//
//   - everything except digits, '.', ',' and a leading '-' is stripped
//   - when both '.' and ',' appear, the one appearing later in the string is
//     the decimal point and the other is a thousands separator
//   - when only one separator type appears: a single occurrence followed by
//     1-2 digits is a decimal point; anything else is a thousands separator
//   - empty or unparseable input normalizes to zero
//
// Every amount read anywhere in the module goes through this function, so
// parsing the same row twice always yields the same value.
func NormalizeAmount(raw string) decimal.Decimal {
	cleaned := stripAmountNoise(raw)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			// 1,234.56 style: comma is thousands
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			// 1.234,56 style: dot is thousands, comma is the decimal point
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case lastDot >= 0:
		cleaned = resolveSingleSeparator(cleaned, '.')
	case lastComma >= 0:
		cleaned = resolveSingleSeparator(cleaned, ',')
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// stripAmountNoise removes currency symbols, spaces and any other character
// that is not part of a number. A '-' is kept only in the leading position.
func stripAmountNoise(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveSingleSeparator decides whether the only separator type present is
// a decimal point or a thousands separator.
func resolveSingleSeparator(s string, sep rune) string {
	count := strings.Count(s, string(sep))
	if count == 1 {
		idx := strings.IndexRune(s, sep)
		trailing := len(s) - idx - 1
		if trailing >= 1 && trailing <= 2 {
			if sep == ',' {
				return strings.Replace(s, ",", ".", 1)
			}
			return s
		}
	}
	return strings.ReplaceAll(s, string(sep), "")
}

// RoundToUnit rounds an amount to the nearest multiple of unit (10, 100, ...)
// using banker's rounding, so 305 rounds down to 300 while 306 rounds up to
// 310. The amount-tolerance match predicate compares rounded values to
// absorb fee/rounding noise between platform and bank figures.
func RoundToUnit(d decimal.Decimal, unit int64) decimal.Decimal {
	if unit <= 1 {
		return d.RoundBank(0)
	}
	u := decimal.NewFromInt(unit)
	return d.Div(u).RoundBank(0).Mul(u)
}
