package currency

import (
	"fmt"
	"strings"

	bcurrency "github.com/bojanz/currency"
	"github.com/shopspring/decimal"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

const DefaultLocale = "en-US"

// countryCurrency maps a shopper's country to the currency prices are shown in
var countryCurrency = map[string]string{
	"NG": "NGN",
	"US": "USD",
	"GB": "GBP",
	"EU": "EUR",
	"CA": "CAD",
	"AU": "AUD",
	"ZA": "ZAR",
}

// euro area members; the geolocation service reports the member country, never "EU"
var euroArea = []string{
	"AT", "BE", "CY", "DE", "EE", "ES", "FI", "FR", "GR", "HR",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PT", "SI", "SK",
}

func init() {
	for _, cc := range euroArea {
		countryCurrency[cc] = "EUR"
	}
}

// ForCountry returns the display currency for an ISO country code, USD when unmapped
func ForCountry(countryCode string) string {
	if code, ok := countryCurrency[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return code
	}
	return domain.BaseCurrency
}

// FromMinorUnits converts a provider amount (cents, kobo...) into major units
// using the ISO fraction digits of the currency.
func FromMinorUnits(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -Digits(code))
}

// ToMinorUnits converts a major-unit amount into the provider's integer minor units
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(Digits(code)).Round(0).IntPart()
}

// IsKnown reports whether code is an ISO 4217 currency
func IsKnown(code string) bool {
	return bcurrency.IsValid(strings.ToUpper(code))
}

// Digits is the number of ISO fraction digits of a currency, 2 when unknown
func Digits(code string) int32 {
	digits, ok := bcurrency.GetDigits(strings.ToUpper(code))
	if !ok {
		return 2
	}
	return int32(digits)
}

// FormatAmount renders an amount with the currency symbol and grouping of the locale,
// e.g. 690 USD in en-US is "$690.00".
func FormatAmount(amount decimal.Decimal, code, locale string) (string, error) {
	code = strings.ToUpper(code)
	if locale == "" {
		locale = DefaultLocale
	}
	a, err := bcurrency.NewAmount(amount.String(), code)
	if err != nil {
		return "", fmt.Errorf("failed to build %s amount: %w", code, err)
	}
	f := bcurrency.NewFormatter(bcurrency.NewLocale(locale))
	return f.Format(a.Round()), nil
}

// MustFormat is FormatAmount for template helpers: an unknown currency code falls
// back to "<CODE> <amount>" with the currency's fraction digits.
func MustFormat(amount decimal.Decimal, code, locale string) string {
	s, err := FormatAmount(amount, code, locale)
	if err != nil {
		return strings.ToUpper(code) + " " + amount.StringFixed(2)
	}
	return s
}
