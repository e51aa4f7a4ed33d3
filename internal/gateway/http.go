package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"riskgraph/internal/api"
	"riskgraph/pkg/types"
)

// HTTPPrimary calls POST /orchestrate on a remote pipeline.
type HTTPPrimary struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPrimary returns a client for the pipeline at baseURL. A zero
// timeout leaves the client without one.
func NewHTTPPrimary(baseURL string, timeout time.Duration) *HTTPPrimary {
	return &HTTPPrimary{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Evaluate implements Primary. Transport errors and 5xx replies are
// unavailability; 4xx replies are rejections.
func (p *HTTPPrimary) Evaluate(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*api.OrchestrateResponse, error) {
	body, err := json.Marshal(api.OrchestrateRequest{Transaction: &tx, Customer: &customer})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/orchestrate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500:
		var e api.ErrorResponse
		_ = json.Unmarshal(data, &e)
		msg := e.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, &UnavailableError{TraceID: e.TraceID, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)}
	case resp.StatusCode >= 400:
		var e api.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, e.Error)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &UnavailableError{Err: fmt.Errorf("unexpected HTTP %d", resp.StatusCode)}
	}

	var out api.OrchestrateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// LocalPrimary runs the pipeline in-process. Any run failure is
// unavailability, since the input was already validated by the caller.
type LocalPrimary struct {
	Evaluator api.Evaluator
}

// Evaluate implements Primary.
func (p LocalPrimary) Evaluate(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*api.OrchestrateResponse, error) {
	res, err := p.Evaluator.Run(ctx, tx, customer)
	if err != nil {
		traceID := ""
		if res != nil {
			traceID = res.TraceID
		}
		return nil, &UnavailableError{TraceID: traceID, Err: err}
	}
	out := api.NewResponse(res.Record)
	return &out, nil
}
