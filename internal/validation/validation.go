// Package validation holds the billing form checks and price formatting shared
// by the checkout flow. Nothing here panics or returns an error.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ()-]{6,18}[0-9]$`)
	zipPattern   = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
)

func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsPhone accepts 8 to 20 characters of digits with optional spaces, dashes,
// parentheses and a leading plus.
func IsPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// IsZip accepts US 12345 and 12345-6789 codes.
func IsZip(s string) bool {
	return zipPattern.MatchString(strings.TrimSpace(s))
}

func IsName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= 2
}

// DefaultLocale is used when a formatter is built from an unparseable tag.
const DefaultLocale = "en-US"

// PriceFormatter renders minor-unit amounts with locale grouping.
type PriceFormatter struct {
	printer *message.Printer
}

func NewPriceFormatter(locale string) *PriceFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	return &PriceFormatter{printer: message.NewPrinter(tag)}
}

// Format renders amount, given in minor units, with two decimals.
func (f *PriceFormatter) Format(amount int64) string {
	return f.printer.Sprintf("%.2f", float64(amount)/100)
}

var defaultFormatter = NewPriceFormatter(DefaultLocale)

// FormatPrice formats amount in the default locale, e.g. 250000 -> "2,500.00".
func FormatPrice(amount int64) string {
	return defaultFormatter.Format(amount)
}
