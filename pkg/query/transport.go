package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport executes a request against the data source.
type Transport interface {
	Do(ctx context.Context, req Request, token string) (map[string]any, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request, token string) (map[string]any, error)

// Do implements Transport.
func (f TransportFunc) Do(ctx context.Context, req Request, token string) (map[string]any, error) {
	return f(ctx, req, token)
}

// ResponseError is returned when the endpoint answers with a non-2xx status
// or a GraphQL errors array.
type ResponseError struct {
	StatusCode int
	Messages   []string
}

func (e *ResponseError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("graphql: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql: %s", strings.Join(e.Messages, "; "))
}

// HTTPTransport speaks GraphQL over HTTP POST.
// One HTTPTransport (and its connection pool) may serve many clients.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	header   http.Header
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = &http.Client{Timeout: d}
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) {
		t.header.Add(key, value)
	}
}

// NewHTTPTransport creates a transport posting to endpoint.
func NewHTTPTransport(endpoint string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		header:   make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   map[string]any `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Do implements Transport. A non-empty token is sent as a bearer token.
func (t *HTTPTransport) Do(ctx context.Context, req Request, token string) (map[string]any, error) {
	body, err := codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", req.Key(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out graphQLResponse
	if decodeErr := codec.Unmarshal(raw, &out); decodeErr != nil {
		if resp.StatusCode/100 != 2 {
			return nil, &ResponseError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	if len(out.Errors) > 0 || resp.StatusCode/100 != 2 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &ResponseError{StatusCode: resp.StatusCode, Messages: msgs}
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out.Data, nil
}
