// Package pinning talks to the content-pinning service. Payloads go up as
// multipart uploads; the service answers with a content identifier.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	commonhttp "marketplace-sync/internal/common/http"
)

type Client struct {
	baseURL        string
	apiKey         string
	apiSecret      string
	gatewayBaseURL string
	httpClient     *commonhttp.Client
}

func NewClient(baseURL, apiKey, apiSecret, gatewayBaseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		apiSecret:      apiSecret,
		gatewayBaseURL: strings.TrimRight(gatewayBaseURL, "/"),
		httpClient:     commonhttp.NewClient(timeout),
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinFile uploads a binary payload with an optional metadata sidecar and
// returns its content identifier.
func (c *Client) PinFile(ctx context.Context, filename string, payload io.Reader, meta map[string]string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return "", fmt.Errorf("failed to copy payload: %w", err)
	}

	if len(meta) > 0 {
		sidecar, err := json.Marshal(map[string]interface{}{
			"name":      filename,
			"keyvalues": meta,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal metadata sidecar: %w", err)
		}
		if err := writer.WriteField("pinataMetadata", string(sidecar)); err != nil {
			return "", fmt.Errorf("failed to write metadata sidecar: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/pinning/pinFileToIPFS", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	return c.execute(req)
}

// PinJSON pins a JSON document directly and returns its content identifier.
func (c *Client) PinJSON(ctx context.Context, content interface{}) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"pinataContent": content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	url := fmt.Sprintf("%s/pinning/pinJSONToIPFS", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.execute(req)
}

// GatewayURL renders the public fetch URL for a pinned content identifier.
func (c *Client) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", c.gatewayBaseURL, cid)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)
}

func (c *Client) execute(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, string(body))
	}

	var out pinResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("no content identifier in response")
	}

	return out.IpfsHash, nil
}
