package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/srcverify/internal/explorers"
)

// maxBodySize caps how much of an explorer response is read.
const maxBodySize = 10 << 20

// DefaultUserAgent is sent with every explorer request.
const DefaultUserAgent = "srcverify"

// Client talks to one explorer endpoint.
type Client struct {
	endpoint   explorers.Endpoint
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimiter throttles requests. The limiter may be shared between
// clients that hit the same explorer.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(client *Client) {
		client.limiter = l
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// WithLogger logs each request at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// NewClient creates a client for endpoint.
func NewClient(endpoint explorers.Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint:  endpoint,
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c.httpClient = withInstrumentation(c.httpClient, c.logger)
	return c
}

// Endpoint returns the explorer endpoint the client talks to.
func (c *Client) Endpoint() explorers.Endpoint {
	return c.endpoint
}

// TxList fetches the first transaction sent to address, oldest first.
func (c *Client) TxList(ctx context.Context, address string) (*Response, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", ActionTxList)
	q.Set("address", address)
	q.Set("page", "1")
	q.Set("sort", "asc")
	q.Set("offset", "1")
	q.Set("apikey", c.endpoint.APIKey)
	return c.get(ctx, ActionTxList, q)
}

// CheckStatus queries the state of a verification submission.
func (c *Client) CheckStatus(ctx context.Context, guid string) (*Response, error) {
	q := url.Values{}
	q.Set("apikey", c.endpoint.APIKey)
	q.Set("module", "contract")
	q.Set("action", ActionCheckStatus)
	q.Set("guid", guid)
	return c.get(ctx, ActionCheckStatus, q)
}

// Submit posts a verification request in the endpoint's payload shape.
func (c *Client) Submit(ctx context.Context, req VerificationRequest) (*Response, error) {
	builder := BuilderFor(c.endpoint.Shape)
	form := builder.Build(req)

	httpReq, err := http.NewRequestWithContext(withAction(ctx, ActionVerify), http.MethodPost, c.endpoint.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setDefaultHeaders(httpReq)
	for k, vs := range builder.Header() {
		httpReq.Header[k] = vs
	}
	return c.do(ctx, httpReq)
}

func (c *Client) get(ctx context.Context, action string, q url.Values) (*Response, error) {
	u, err := url.Parse(c.endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid explorer URL: %w", err)
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()

	httpReq, err := http.NewRequestWithContext(withAction(ctx, action), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setDefaultHeaders(httpReq)
	return c.do(ctx, httpReq)
}

func (c *Client) setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request to %s failed: %w", c.endpoint.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			URL:        c.endpoint.URL,
		}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", c.endpoint.URL, err)
	}
	return &out, nil
}
