package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// PriceClient reads spot prices from the Jupiter price API.
type PriceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPriceClient creates a price client against baseURL.
func NewPriceClient(baseURL string) *PriceClient {
	return &PriceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Price fetches the current USD price for a mint.
func (c *PriceClient) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/price/v2?ids=%s", c.baseURL, url.QueryEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned status code %d", resp.StatusCode)
	}

	var parsed struct {
		Data map[string]*struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price response: %w", err)
	}

	entry, ok := parsed.Data[mint]
	if !ok || entry == nil || entry.Price == "" {
		return decimal.Zero, fmt.Errorf("no price data for mint %s", mint)
	}
	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", entry.Price, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive price %s for mint %s", price, mint)
	}
	return price, nil
}
