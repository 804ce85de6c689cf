// Package amap wraps the AMap (Gaode) v5 place-search API.
package amap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://restapi.amap.com/v5/place"

// Service limits documented for the v5 place API.
const (
	// MaxPageSize is the largest per-page record count the API accepts.
	MaxPageSize = 25
	// MaxDetailIDs is the largest id batch a detail lookup accepts.
	MaxDetailIDs = 10
)

// Endpoint selects one of the place-search endpoints.
type Endpoint string

const (
	EndpointText    Endpoint = "text"
	EndpointAround  Endpoint = "around"
	EndpointPolygon Endpoint = "polygon"
	EndpointDetail  Endpoint = "detail"
)

// Response is the API envelope. Count is a decimal string per the wire
// format; POIs is nil (not empty) when the field is absent, which callers
// use to detect malformed success responses.
type Response struct {
	Status   string           `json:"status"`
	Info     string           `json:"info"`
	InfoCode string           `json:"infocode"`
	Count    string           `json:"count"`
	POIs     []map[string]any `json:"pois"`
}

// ReportedCount parses the envelope's count field. The second return is
// false when the field is missing or unparseable.
func (r *Response) ReportedCount() (int, bool) {
	if r.Count == "" {
		return 0, false
	}
	n, err := strconv.Atoi(r.Count)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Client performs AMap place-search requests.
type Client interface {
	Search(ctx context.Context, endpoint Endpoint, params url.Values) (*Response, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient creates an AMap API client with the given key.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, endpoint Endpoint, params url.Values) (*Response, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+string(endpoint)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "amap: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "amap: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "amap: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "amap: unmarshal response")
	}

	if result.Status != "1" {
		return nil, &APIError{InfoCode: result.InfoCode, Info: result.Info}
	}
	// The service reports quota exhaustion with status "1" on some routes.
	if result.InfoCode == codeQuotaExhausted {
		return nil, &APIError{InfoCode: result.InfoCode, Info: result.Info}
	}

	return &result, nil
}
