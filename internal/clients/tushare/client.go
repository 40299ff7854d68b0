// Package tushare implements clients.Adapter against the Tushare Pro
// HTTP API, grounded on the request/response envelope and field naming of
// the pack's Casper-Mars-trading tushare client (api_name/token/params
// POST envelope, fields+items tabular response).
package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.tushare.pro"

// request is the Tushare Pro wire envelope: one POST body shape for
// every API, selected by APIName.
type request struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Fields  string                 `json:"fields,omitempty"`
}

type response struct {
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      *data  `json:"data"`
}

type data struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// rows converts the fields/items tabular shape into a slice of
// string-keyed maps, which every capability method then projects into
// its typed result.
func (d *data) rows() []map[string]interface{} {
	if d == nil {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(d.Items))
	for _, item := range d.Items {
		row := make(map[string]interface{}, len(d.Fields))
		for i, f := range d.Fields {
			if i < len(item) {
				row[f] = item[i]
			}
		}
		out = append(out, row)
	}
	return out
}

// defaultQPS throttles outbound calls to Tushare Pro's documented
// per-account rate limit, replacing the hand-rolled ticker-based limiter
// the reference client uses with the ecosystem's standard token-bucket.
const defaultQPS = 5

// Client is a thin HTTP client over the Tushare Pro API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a Tushare client. An empty token means the account
// has no token configured; Availability reports false in that case.
func NewClient(token string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultQPS), defaultQPS),
	}
}

func (c *Client) call(ctx context.Context, apiName string, params map[string]interface{}, fields string) (*data, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tushare rate limiter: %w", err)
	}

	reqBody := request{APIName: apiName, Token: c.token, Params: params, Fields: fields}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tushare request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tushare response: %w", err)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode tushare response: %w", err)
	}
	if out.Code != 0 {
		return nil, &APIError{Code: out.Code, Msg: out.Msg}
	}
	return out.Data, nil
}

// APIError wraps a non-zero Tushare response code, including the
// permission-denied codes the premium-endpoint probe looks for.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string { return fmt.Sprintf("tushare api error %d: %s", e.Code, e.Msg) }

// IsPermissionDenied reports whether err indicates the account lacks
// permission for the called endpoint (used by the quote pipeline's
// premium-detection probe).
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if e, ok := err.(*APIError); ok {
		apiErr = e
	} else {
		return false
	}
	return apiErr.Code == 2002 || apiErr.Code == 40203
}
