package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

// Router quotes swap routes and builds serialized swap transactions via the
// Jupiter aggregator API.
type Router struct {
	baseURL    string
	httpClient *http.Client
}

// NewRouter creates a router against the aggregator baseURL.
func NewRouter(baseURL string) *Router {
	return &Router{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote asks the aggregator for the best route matching q. A missing route
// surfaces as domain.ErrNoRoute so the caller can fail the order cleanly.
func (r *Router) Quote(ctx context.Context, q domain.RouteQuery) (domain.Route, error) {
	params := url.Values{}
	params.Set("inputMint", q.InputMint)
	params.Set("outputMint", q.OutputMint)
	params.Set("amount", strconv.FormatUint(q.Amount, 10))
	params.Set("slippageBps", strconv.FormatUint(uint64(q.SlippageBps), 10))
	if q.PlatformFeeBps > 0 {
		params.Set("platformFeeBps", strconv.FormatUint(uint64(q.PlatformFeeBps), 10))
	}

	endpoint := fmt.Sprintf("%s/quote?%s", r.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Route{}, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.Route{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Route{}, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
			return domain.Route{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, apiErr.Error)
		}
		return domain.Route{}, fmt.Errorf("quote API returned status code %d: %s", resp.StatusCode, apiErr.Error)
	}

	var parsed struct {
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Route{}, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if parsed.Error != "" || parsed.OutAmount == "" {
		return domain.Route{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, parsed.Error)
	}

	inAmount, err := strconv.ParseUint(parsed.InAmount, 10, 64)
	if err != nil {
		return domain.Route{}, fmt.Errorf("failed to parse inAmount %q: %w", parsed.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return domain.Route{}, fmt.Errorf("failed to parse outAmount %q: %w", parsed.OutAmount, err)
	}

	return domain.Route{InAmount: inAmount, OutAmount: outAmount, Quote: body}, nil
}

// BuildSwap exchanges a quoted route for an unsigned serialized transaction.
// The raw quote payload goes back to the aggregator untouched.
func (r *Router) BuildSwap(ctx context.Context, route domain.Route, p domain.SwapParams) ([]byte, error) {
	payload := map[string]any{
		"quoteResponse":    json.RawMessage(route.Quote),
		"userPublicKey":    p.UserPublicKey,
		"wrapAndUnwrapSol": true,
	}
	if p.FeeAccount != "" {
		payload["feeAccount"] = p.FeeAccount
	}
	if p.TipLamports > 0 {
		payload["prioritizationFeeLamports"] = map[string]uint64{"jitoTipLamports": p.TipLamports}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build swap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("swap API returned status code %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse swap response: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	tx, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	return tx, nil
}
