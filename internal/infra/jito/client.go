package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/solana"
)

// TipAccounts are the well-known Jito tip destinations. The tip transaction
// in a bundle must pay one of these for the bundle to be eligible.
var TipAccounts = []string{
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
}

// Client submits transaction bundles to a Jito block engine over JSON-RPC.
type Client struct {
	url        string
	httpClient *http.Client
	poll       time.Duration
}

// NewClient creates a Jito bundle client.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		poll:       500 * time.Millisecond,
	}
}

// TipAccount picks a random tip destination, spreading load across the set.
func (c *Client) TipAccount() string {
	return TipAccounts[rand.Intn(len(TipAccounts))]
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jito %s: unexpected status code %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("jito %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("jito %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("jito %s: %w", method, err)
		}
	}
	return nil
}

// SendBundle submits signed transactions as one atomic bundle and returns
// the bundle id. Transactions go on the wire base58-encoded.
func (c *Client) SendBundle(ctx context.Context, txs [][]byte) (string, error) {
	encoded := make([]string, len(txs))
	for i, tx := range txs {
		encoded[i] = solana.Base58Encode(tx)
	}

	var bundleID string
	if err := c.call(ctx, "sendBundle", []any{encoded}, &bundleID); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}
	if bundleID == "" {
		return "", fmt.Errorf("%w: empty bundle id", domain.ErrSubmission)
	}
	return bundleID, nil
}

// WaitLanded polls bundle status until it lands or ctx expires.
func (c *Client) WaitLanded(ctx context.Context, bundleID string) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: bundle confirmation timeout", domain.ErrSubmission)
		case <-ticker.C:
		}

		var result struct {
			Value []*struct {
				BundleID           string          `json:"bundle_id"`
				ConfirmationStatus string          `json:"confirmation_status"`
				Err                json.RawMessage `json:"err"`
			} `json:"value"`
		}
		if err := c.call(ctx, "getBundleStatuses", []any{[]string{bundleID}}, &result); err != nil {
			continue
		}
		if len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}

		status := result.Value[0]
		if len(status.Err) > 0 && string(status.Err) != "null" && string(status.Err) != `{"Ok":null}` {
			return fmt.Errorf("%w: bundle rejected: %s", domain.ErrSubmission, status.Err)
		}
		switch status.ConfirmationStatus {
		case "confirmed", "finalized":
			return nil
		}
	}
}
