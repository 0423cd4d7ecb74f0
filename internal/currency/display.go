package currency

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// CountryResolver finds the country of a shopper
type CountryResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// RateSource provides the USD rate table
type RateSource interface {
	Latest(ctx context.Context) (Rates, error)
}

// Display converts and formats catalog prices for one shopper. It never changes
// what is charged: checkout always uses the catalog USD price.
type Display struct {
	Currency string
	Rates    Rates
	Locale   string
	logger   *zap.Logger
}

// NewDisplay builds a display for a fixed currency and rate table
func NewDisplay(code string, rates Rates, locale string, logger *zap.Logger) Display {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locale == "" {
		locale = DefaultLocale
	}
	return Display{Currency: strings.ToUpper(code), Rates: rates, Locale: locale, logger: logger}
}

// Convert returns amountUSD in target along with the currency the result is really in.
// USD needs no rate. A missing rate leaves the amount unconverted and reports USD,
// so the figure is never shown with the wrong symbol.
func (d Display) Convert(amountUSD decimal.Decimal, target string) (decimal.Decimal, string) {
	target = strings.ToUpper(target)
	if target == "" || target == domain.BaseCurrency {
		return amountUSD, domain.BaseCurrency
	}
	rate, ok := d.Rates[target]
	if !ok || !rate.IsPositive() {
		d.logger.Warn("No exchange rate, showing USD price",
			zap.String("currency", target),
			zap.Int("known_rates", len(d.Rates)),
		)
		return amountUSD, domain.BaseCurrency
	}
	return amountUSD.Mul(rate), target
}

// Price is a display-ready amount
type Price struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

// Price converts amountUSD to the display currency and formats it
func (d Display) Price(amountUSD decimal.Decimal) Price {
	amount, code := d.Convert(amountUSD, d.Currency)
	return Price{
		Amount:    amount.Round(2),
		Currency:  code,
		Formatted: MustFormat(amount, code, d.Locale),
	}
}

// Format converts amountUSD to the display currency and renders it for the locale
func (d Display) Format(amountUSD decimal.Decimal) string {
	return d.Price(amountUSD).Formatted
}

// Detector works out the display currency of a shopper
type Detector struct {
	geo    CountryResolver
	rates  RateSource
	locale string
	logger *zap.Logger
}

func NewDetector(geo CountryResolver, rates RateSource, locale string, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{geo: geo, rates: rates, locale: locale, logger: logger}
}

// Detect resolves country -> currency -> rate table. Any lookup failure falls back
// to USD with no rates; it is not retried.
func (d *Detector) Detect(ctx context.Context, clientIP string) Display {
	country, err := d.geo.Country(ctx, clientIP)
	if err != nil {
		d.logger.Warn("Currency detection failed, using USD", zap.String("client_ip", clientIP), zap.Error(err))
		return NewDisplay(domain.BaseCurrency, nil, d.locale, d.logger)
	}

	code := ForCountry(country)
	rates, err := d.rates.Latest(ctx)
	if err != nil {
		d.logger.Warn("Exchange rate lookup failed, using USD", zap.String("country", country), zap.Error(err))
		return NewDisplay(domain.BaseCurrency, nil, d.locale, d.logger)
	}
	return NewDisplay(code, rates, d.locale, d.logger)
}
