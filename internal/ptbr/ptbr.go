// Package ptbr formats and parses monetary, numeric and percentage values
// using Brazilian Portuguese conventions ("." thousands, "," decimal).
package ptbr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unavailable is rendered when a value cannot be formatted.
const Unavailable = "N/D"

// CurrencyPrefix is the Brazilian real symbol.
const CurrencyPrefix = "R$"

// maxMagnitude guards against corrupted inputs (e.g. values already
// multiplied by a scale factor). It is not a currency ceiling.
const maxMagnitude = 1e15

var printer = message.NewPrinter(language.BrazilianPortuguese)

// plainNumber is the only shape ParseNumber accepts once grouping, symbols
// and the decimal comma have been normalized.
var plainNumber = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

type currencyOptions struct {
	minFractionDigits int
}

// CurrencyOption configures FormatCurrency.
type CurrencyOption func(*currencyOptions)

// WithMinFractionDigits sets the number of decimal places. Default 2.
func WithMinFractionDigits(n int) CurrencyOption {
	return func(o *currencyOptions) {
		if n >= 0 {
			o.minFractionDigits = n
		}
	}
}

// FormatCurrency renders v as "R$ 1.234,56". The value is always rendered
// at face value: no scaling and no magnitude suffix.
func FormatCurrency(v float64, opts ...CurrencyOption) string {
	o := currencyOptions{minFractionDigits: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if !renderable(v) {
		return Unavailable
	}

	sign := ""
	if v < 0 {
		v = -v
		if !roundsToZero(v, o.minFractionDigits) {
			sign = "-"
		}
	}
	return sign + CurrencyPrefix + " " + formatDecimal(v, o.minFractionDigits)
}

// FormatCurrencyString parses a plain numeric string ("50000", "1234.5")
// and formats it like FormatCurrency.
func FormatCurrencyString(s string, opts ...CurrencyOption) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unavailable
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Unavailable
	}
	return FormatCurrency(v, opts...)
}

// FormatNumber renders v with pt-BR grouping and the given number of
// decimals. A negative decimals value means 2.
func FormatNumber(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 2
	}
	if !renderable(v) {
		return Unavailable
	}
	return formatDecimal(v, decimals)
}

// FormatPercent renders v with one decimal and a trailing "%". When
// isFraction is true, v is a ratio (0.125) and is multiplied by 100 first.
func FormatPercent(v float64, isFraction bool) string {
	if isFraction {
		v *= 100
	}
	if !renderable(v) {
		return Unavailable
	}
	return formatDecimal(v, 1) + "%"
}

// ParseNumber is the inverse of the pt-BR formatters. It returns false for
// empty input, garbage or non-finite results.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, CurrencyPrefix, "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	if !plainNumber.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func renderable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) < maxMagnitude
}

func formatDecimal(v float64, decimals int) string {
	if roundsToZero(v, decimals) {
		v = 0
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

func roundsToZero(v float64, decimals int) bool {
	return math.Round(math.Abs(v)*math.Pow10(decimals)) == 0
}
