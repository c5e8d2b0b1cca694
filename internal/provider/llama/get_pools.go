package llama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Pool is one entry of the /pools payload. Pointer fields are nullable upstream.
type Pool struct {
	Pool       string   `json:"pool"`
	Chain      string   `json:"chain"`
	Project    string   `json:"project"`
	Symbol     string   `json:"symbol"`
	TVLUsd     float64  `json:"tvlUsd"`
	APYBase    *float64 `json:"apyBase"`
	APYReward  *float64 `json:"apyReward"`
	APY        float64  `json:"apy"`
	APYPct1D   *float64 `json:"apyPct1D"`
	APYPct7D   *float64 `json:"apyPct7D"`
	APYPct30D  *float64 `json:"apyPct30D"`
	Stablecoin bool     `json:"stablecoin"`
	ILRisk     string   `json:"ilRisk"`
	Exposure   string   `json:"exposure"`
	PoolMeta   *string  `json:"poolMeta"`
	Mu         *float64 `json:"mu"`
	Sigma      *float64 `json:"sigma"`
	Count      *int     `json:"count"`
	Outlier    bool     `json:"outlier"`
}

type poolsResponse struct {
	Status string `json:"status"`
	Data   []Pool `json:"data"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

// DecodeError is returned when the payload is not the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding pools response: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// GetPools retrieves every pool the yields API tracks.
func (c *Client) GetPools(ctx context.Context, opts ...Option) ([]Pool, error) {
	override := &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
	}
	for _, opt := range opts {
		opt(override)
	}

	url := override.baseURL + "/pools"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusTooManyRequests:
		return nil, &StatusError{Code: res.StatusCode, Body: "rate limited"}

	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, &StatusError{Code: res.StatusCode, Body: string(b)}
	}

	var body poolsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if body.Status != "success" {
		return nil, &DecodeError{Err: fmt.Errorf("status %q", body.Status)}
	}
	return body.Data, nil
}
