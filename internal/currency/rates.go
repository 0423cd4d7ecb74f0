package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Rates maps a currency code to the number of units per 1 USD
type Rates map[string]decimal.Decimal

// RatesClient fetches the USD rate table and caches it for a TTL
type RatesClient struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	rates     Rates
	fetchedAt time.Time
	sfg       singleflight.Group // collapses concurrent refreshes
}

// NewRatesClient creates a rate table client (exchangerate-api compatible)
func NewRatesClient(url string, ttl time.Duration, logger *zap.Logger) *RatesClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatesClient{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

type ratesResponse struct {
	Base  string `json:"base"`
	Rates Rates  `json:"rates"`
}

// Latest returns the cached rate table, refreshing it when older than the TTL
func (c *RatesClient) Latest(ctx context.Context) (Rates, error) {
	c.mu.RLock()
	if c.rates != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		rates := c.rates
		c.mu.RUnlock()
		return rates, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sfg.Do("latest", func() (interface{}, error) {
		rates, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.rates = rates
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return rates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Rates), nil
}

func (c *RatesClient) fetch(ctx context.Context) (Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rates response: %w", err)
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("rates response has no rates")
	}

	rates := make(Rates, len(parsed.Rates))
	for code, rate := range parsed.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	c.logger.Debug("Fetched exchange rates", zap.String("base", parsed.Base), zap.Int("count", len(rates)))
	return rates, nil
}
