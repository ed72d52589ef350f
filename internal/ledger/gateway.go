// internal/ledger/gateway.go
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	commonhttp "marketplace-sync/internal/common/http"
)

// Receipt statuses reported by the gateway.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// GatewayClient talks JSON over HTTP to the ledger gateway service.
type GatewayClient struct {
	baseURL        string
	httpClient     *commonhttp.Client
	confirmPoll    time.Duration
	confirmTimeout time.Duration
}

type GatewayOption func(*GatewayClient)

// WithConfirmPolling overrides the receipt polling cadence.
func WithConfirmPolling(poll, timeout time.Duration) GatewayOption {
	return func(c *GatewayClient) {
		c.confirmPoll = poll
		c.confirmTimeout = timeout
	}
}

func NewGatewayClient(baseURL string, requestTimeout time.Duration, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		baseURL:        baseURL,
		httpClient:     commonhttp.NewClient(requestTimeout),
		confirmPoll:    2 * time.Second,
		confirmTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GatewayClient) ItemCount(ctx context.Context) (uint64, error) {
	var out struct {
		Count uint64 `json:"count"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/marketplace/items/count", c.baseURL), &out); err != nil {
		return 0, fmt.Errorf("item count: %w", err)
	}
	return out.Count, nil
}

func (c *GatewayClient) Item(ctx context.Context, itemID uint64) (ItemRecord, error) {
	var out struct {
		ItemID  uint64 `json:"itemId"`
		TokenID uint64 `json:"tokenId"`
		Seller  string `json:"seller"`
		Price   string `json:"price"`
		Sold    bool   `json:"sold"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/marketplace/items/%d", c.baseURL, itemID), &out); err != nil {
		return ItemRecord{}, fmt.Errorf("item %d: %w", itemID, err)
	}
	price, err := ParseAmount(out.Price)
	if err != nil {
		return ItemRecord{}, fmt.Errorf("item %d price: %w", itemID, err)
	}
	return ItemRecord{
		ItemID:  out.ItemID,
		TokenID: out.TokenID,
		Seller:  out.Seller,
		Price:   price,
		Sold:    out.Sold,
	}, nil
}

func (c *GatewayClient) TotalPrice(ctx context.Context, itemID uint64) (*big.Int, error) {
	var out struct {
		TotalPrice string `json:"totalPrice"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/marketplace/items/%d/total-price", c.baseURL, itemID), &out); err != nil {
		return nil, fmt.Errorf("total price for item %d: %w", itemID, err)
	}
	return ParseAmount(out.TotalPrice)
}

func (c *GatewayClient) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	var out struct {
		URI string `json:"uri"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/nft/tokens/%d/uri", c.baseURL, tokenID), &out); err != nil {
		return "", fmt.Errorf("token uri for token %d: %w", tokenID, err)
	}
	return out.URI, nil
}

func (c *GatewayClient) PurchaseItem(ctx context.Context, itemID uint64, value *big.Int) (Transaction, error) {
	payload := map[string]interface{}{
		"itemId": itemID,
		"value":  FormatAmount(value),
	}
	return c.submit(ctx, fmt.Sprintf("%s/marketplace/purchases", c.baseURL), payload)
}

func (c *GatewayClient) Mint(ctx context.Context, uri string) (Transaction, error) {
	payload := map[string]interface{}{
		"uri": uri,
	}
	return c.submit(ctx, fmt.Sprintf("%s/nft/mints", c.baseURL), payload)
}

func (c *GatewayClient) SetApprovalForAll(ctx context.Context, operator string, approved bool) (Transaction, error) {
	payload := map[string]interface{}{
		"operator": operator,
		"approved": approved,
	}
	return c.submit(ctx, fmt.Sprintf("%s/nft/approvals", c.baseURL), payload)
}

func (c *GatewayClient) MakeItem(ctx context.Context, tokenAddress string, tokenID uint64, price *big.Int) (Transaction, error) {
	payload := map[string]interface{}{
		"tokenAddress": tokenAddress,
		"tokenId":      tokenID,
		"price":        FormatAmount(price),
	}
	return c.submit(ctx, fmt.Sprintf("%s/marketplace/listings", c.baseURL), payload)
}

func (c *GatewayClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *GatewayClient) submit(ctx context.Context, url string, payload interface{}) (Transaction, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submit rejected (status %d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		TxHash string `json:"txHash"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.TxHash == "" {
		return nil, fmt.Errorf("no transaction hash in response")
	}

	return &gatewayTransaction{client: c, txHash: out.TxHash}, nil
}

// gatewayTransaction polls the gateway for the receipt of a submitted
// transaction.
type gatewayTransaction struct {
	client *GatewayClient
	txHash string
}

func (t *gatewayTransaction) Hash() string {
	return t.txHash
}

func (t *gatewayTransaction) Wait(ctx context.Context) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.client.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(t.client.confirmPoll)
	defer ticker.Stop()

	for {
		receipt, err := t.client.receipt(ctx, t.txHash)
		if err != nil {
			return nil, err
		}

		switch receipt.Status {
		case StatusConfirmed:
			return receipt, nil
		case StatusFailed:
			return nil, fmt.Errorf("transaction %s reverted", t.txHash)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transaction %s: %w", t.txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *GatewayClient) receipt(ctx context.Context, txHash string) (*Receipt, error) {
	var out Receipt
	if err := c.getJSON(ctx, fmt.Sprintf("%s/transactions/%s", c.baseURL, txHash), &out); err != nil {
		return nil, fmt.Errorf("receipt for %s: %w", txHash, err)
	}
	return &out, nil
}
