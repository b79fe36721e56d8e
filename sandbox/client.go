package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/goliatone/go-threeds/core"
)

const KindSandbox = core.TransportKindSandbox

// Client serves requests from an in-process Gateway. It satisfies the
// HTTPDoer shape used by the REST adapter and the challenge client.
type Client struct {
	Gateway http.Handler
}

func NewClient(gateway http.Handler) *Client {
	return &Client{Gateway: gateway}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c == nil || c.Gateway == nil {
		return nil, fmt.Errorf("sandbox: client has no gateway")
	}
	if req == nil {
		return nil, fmt.Errorf("sandbox: request is nil")
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if req.Host == "" && req.URL != nil {
		req.Host = req.URL.Host
	}
	recorder := httptest.NewRecorder()
	c.Gateway.ServeHTTP(recorder, req)
	return recorder.Result(), nil
}

// Adapter is the "sandbox" transport kind. Requests never leave the process.
type Adapter struct {
	client *Client
}

func NewAdapter(gateway http.Handler) *Adapter {
	return &Adapter{client: NewClient(gateway)}
}

func (*Adapter) Kind() string {
	return KindSandbox
}

func (a *Adapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.client == nil {
		return core.TransportResponse{}, fmt.Errorf("sandbox: adapter is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, strings.TrimSpace(req.URL), body)
	if err != nil {
		return core.TransportResponse{}, fmt.Errorf("sandbox: build request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if key := strings.TrimSpace(req.Idempotency); key != "" {
		httpReq.Header.Set(IdempotencyKeyHeader, key)
	}

	res, err := a.client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, err
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return core.TransportResponse{}, fmt.Errorf("sandbox: read response: %w", err)
	}
	headers := make(map[string]string, len(res.Header))
	for key := range res.Header {
		headers[key] = res.Header.Get(key)
	}
	return core.TransportResponse{
		StatusCode: res.StatusCode,
		Headers:    headers,
		Body:       payload,
		Metadata:   map[string]any{"adapter": KindSandbox},
	}, nil
}

var _ core.TransportAdapter = (*Adapter)(nil)
