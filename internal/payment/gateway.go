package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPGateway is a thin client for the external order service.  It posts
// order creation requests and returns the opaque order id and receipt the
// gateway assigns.  Transport-level timeouts live here; the core only
// sees success or ErrGatewayUnavailable.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway builds a gateway client for the given base URL and key.
func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateOrder creates an order at the gateway.
func (g *HTTPGateway) CreateOrder(ctx context.Context, amountCents uint32, currency, receipt string) (GatewayOrder, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return GatewayOrder{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return GatewayOrder{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return GatewayOrder{}, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	var out struct {
		ID      string `json:"id"`
		Receipt string `json:"receipt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GatewayOrder{}, fmt.Errorf("decode gateway response: %w", err)
	}
	return GatewayOrder{ID: out.ID, Receipt: out.Receipt}, nil
}
