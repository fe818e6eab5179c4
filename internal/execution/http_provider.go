package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider submits child orders to an external trade-submission
// relay over HTTP. The relay owns signing and on-chain delivery; this
// side only hands over the intent and reads back the realized fill.
type HTTPProvider struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given relay endpoint. The
// client carries no timeout of its own; the coordinator bounds every
// call through the request context.
func NewHTTPProvider(name, url string) *HTTPProvider {
	return &HTTPProvider{
		name: name,
		url:  url,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return p.name }

type httpSubmitRequest struct {
	OrderID     string  `json:"order_id"`
	Side        string  `json:"side"`
	Mint        string  `json:"mint"`
	Size        float64 `json:"size"`
	RefPrice    float64 `json:"ref_price"`
	MaxSlippage float64 `json:"max_slippage"`
	PriorityFee float64 `json:"priority_fee"`
}

type httpSubmitResponse struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Error string  `json:"error,omitempty"`
}

// Submit implements Provider.
func (p *HTTPProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitReceipt, error) {
	body, err := json.Marshal(httpSubmitRequest{
		OrderID:     req.OrderID,
		Side:        string(req.Side),
		Mint:        req.Mint,
		Size:        req.Size,
		RefPrice:    req.RefPrice,
		MaxSlippage: req.MaxSlippage,
		PriorityFee: req.PriorityFee,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("provider %s: read response: %w", p.name, err)
	}

	var out httpSubmitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("provider %s: decode response (status %d): %w", p.name, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("provider %s: submission rejected: %s", p.name, msg)
	}
	if out.Price <= 0 || out.Size <= 0 {
		return nil, fmt.Errorf("provider %s: malformed receipt (price=%f size=%f)", p.name, out.Price, out.Size)
	}

	return &SubmitReceipt{Price: out.Price, Size: out.Size}, nil
}
