package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GeoClient resolves a shopper's country from their IP address (ipapi.co compatible)
type GeoClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeoClient creates a geolocation HTTP client
func NewGeoClient(baseURL string, logger *zap.Logger) *GeoClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeoClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

type geoResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Country returns the ISO country code for ip. Private, loopback or empty addresses
// are looked up as the caller itself (the server's own location).
func (c *GeoClient) Country(ctx context.Context, ip string) (string, error) {
	url := c.baseURL + "/json/"
	if addr := net.ParseIP(ip); addr != nil && !addr.IsPrivate() && !addr.IsLoopback() && !addr.IsUnspecified() {
		url = fmt.Sprintf("%s/%s/json/", c.baseURL, addr.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read geolocation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation returned %d: %s", resp.StatusCode, string(body))
	}

	var geo geoResponse
	if err := json.Unmarshal(body, &geo); err != nil {
		return "", fmt.Errorf("failed to parse geolocation response: %w", err)
	}
	if geo.Error {
		return "", fmt.Errorf("geolocation error: %s", geo.Reason)
	}
	if geo.CountryCode == "" {
		return "", fmt.Errorf("geolocation response has no country_code")
	}
	return strings.ToUpper(geo.CountryCode), nil
}
