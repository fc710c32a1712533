// Package client provides a Go API for publishing verified contract source
// to block explorers.
package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pendergraft/srcverify/internal/chains/evm/foundry"
	"github.com/pendergraft/srcverify/internal/explorers"
	"github.com/pendergraft/srcverify/internal/verification/domain"
	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// Errors returned by Verify before anything is sent to an explorer.
var (
	ErrConfiguration  = domain.ErrConfiguration
	ErrInvalidRequest = domain.ErrInvalidRequest
	ErrFlatten        = domain.ErrFlatten
)

// Client verifies contracts of one Foundry project.
type Client struct {
	projectDir string
	extra      []explorers.Endpoint
	httpClient *http.Client
	progress   io.Writer
	logger     *slog.Logger
	cfg        domain.Config
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithProjectDir sets the Foundry project root. Defaults to ".".
func WithProjectDir(dir string) Option {
	return func(client *Client) {
		client.projectDir = dir
	}
}

// WithExplorer registers an explorer under name, next to the built-in ones.
func WithExplorer(name, url, apiKey string, blockscout bool) Option {
	return func(client *Client) {
		shape := explorers.ShapeEtherscan
		if blockscout {
			shape = explorers.ShapeBlockscout
		}
		client.extra = append(client.extra, explorers.Endpoint{Name: name, URL: url, APIKey: apiKey, Shape: shape})
	}
}

// WithPollInterval sets the delay between explorer polls. Defaults to 10s.
func WithPollInterval(d time.Duration) Option {
	return func(client *Client) {
		client.cfg.PollInterval = d
	}
}

// WithProgress writes human-readable progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(client *Client) {
		client.progress = w
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// WithOmitUnknownLicense submits contracts with an unrecognised license
// without a license code instead of refusing them.
func WithOmitUnknownLicense() Option {
	return func(client *Client) {
		client.cfg.LicensePolicy = domain.LicensePolicyOmit
	}
}

// New creates a new client
func New(opts ...Option) *Client {
	c := &Client{
		projectDir: ".",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		progress:   io.Discard,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:        domain.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes the contract to verify.
type Request struct {
	// Network is a known explorer name or an explorer API URL.
	Network    string
	APIKey     string
	Blockscout bool

	Address      string
	ContractName string
	// SourcePath defaults to src/<ContractName>.sol.
	SourcePath string

	// CompilerVersion and BytecodeLen default to the build output.
	CompilerVersion string
	BytecodeLen     int
	Remappings      map[string]string
}

// Result reports how a verification ended.
type Result struct {
	Verified bool
	// Outcome is success, failed, transport_error or timeout.
	Outcome string
	// Stage is the step the run stopped at.
	Stage           string
	Message         string
	HTTPStatus      int
	GUID            string
	ConstructorArgs string
}

// Verify publishes the contract source and waits for the explorer's verdict.
// Explorer-side failures are reported in the Result; the error is reserved
// for configuration problems, bad requests and cancellation.
func (c *Client) Verify(ctx context.Context, req Request) (*Result, error) {
	registry := explorers.DefaultRegistry().Merge(explorers.NewRegistry(c.extra...))

	sourcePath := req.SourcePath
	if sourcePath == "" {
		sourcePath = "src/" + req.ContractName + ".sol"
	}

	svc := domain.NewService(registry, foundry.New(c.projectDir),
		domain.WithConfig(c.cfg),
		domain.WithLogger(c.logger),
		domain.WithProgress(c.progress),
		domain.WithClientFactory(func(ep explorers.Endpoint) domain.Explorer {
			return transport.NewClient(ep,
				transport.WithHTTPClient(c.httpClient),
				transport.WithLogger(c.logger),
			)
		}),
	)

	res, err := svc.Publish(ctx, domain.Request{
		Network:         req.Network,
		APIKey:          req.APIKey,
		Blockscout:      req.Blockscout,
		Address:         req.Address,
		SourcePath:      sourcePath,
		ContractName:    req.ContractName,
		CompilerVersion: req.CompilerVersion,
		BytecodeLen:     req.BytecodeLen,
		Remappings:      req.Remappings,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Verified:        res.Verified(),
		Outcome:         res.Outcome.String(),
		Stage:           res.Stage.String(),
		Message:         res.Message,
		HTTPStatus:      res.HTTPStatus,
		GUID:            res.GUID,
		ConstructorArgs: res.ConstructorArgs,
	}, nil
}
