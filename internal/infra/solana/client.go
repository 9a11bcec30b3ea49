package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

// Client talks JSON-RPC to a Solana node for blockhash fetch, transaction
// submission, and confirmation polling.
type Client struct {
	url        string
	httpClient *http.Client
	poll       time.Duration
}

// NewClient creates an RPC client.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		poll:       500 * time.Millisecond,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
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
		return fmt.Errorf("rpc %s: unexpected status code %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("rpc %s: %w", method, err)
		}
	}
	return nil
}

// LatestBlockhash fetches a recent blockhash for transaction building.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{}, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("empty blockhash in response")
	}
	return result.Value.Blockhash, nil
}

// Send submits a signed transaction and returns its signature.
func (c *Client) Send(ctx context.Context, tx []byte) (string, error) {
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]string{"encoding": "base64"},
	}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}
	return signature, nil
}

// WaitConfirmed polls signature status until the transaction is confirmed,
// the cluster reports an execution error, or ctx expires. The caller bounds
// the wait with a deadline; expiry surfaces as a submission error, never an
// indefinite hang.
func (c *Client) WaitConfirmed(ctx context.Context, signature string) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: confirmation timeout", domain.ErrSubmission)
		case <-ticker.C:
		}

		var result struct {
			Value []*struct {
				ConfirmationStatus string          `json:"confirmationStatus"`
				Err                json.RawMessage `json:"err"`
			} `json:"value"`
		}
		if err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result); err != nil {
			// Transient RPC trouble: keep polling until the deadline.
			continue
		}
		if len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}

		status := result.Value[0]
		if len(status.Err) > 0 && string(status.Err) != "null" {
			return fmt.Errorf("%w: transaction rejected: %s", domain.ErrSubmission, status.Err)
		}
		if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
			return nil
		}
	}
}
