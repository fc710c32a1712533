// Package cli implements the srcverify command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pendergraft/srcverify/internal/chains"
	"github.com/pendergraft/srcverify/internal/config"
	"github.com/pendergraft/srcverify/internal/explorers"
	"github.com/pendergraft/srcverify/internal/observability/metrics"
	"github.com/pendergraft/srcverify/internal/server"
	"github.com/pendergraft/srcverify/internal/verification/domain"
	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// serviceName labels every metric.
const serviceName = "srcverify"

// metricsOnce guards metrics.Init, which registers collectors globally.
var metricsOnce sync.Once

// app holds the state shared by the subcommands of one invocation.
type app struct {
	version string

	explorersFile string
	logLevel      string
	logFormat     string
	metricsAddr   string
	licensePolicy string

	cfg      *config.Config
	logger   *slog.Logger
	registry *explorers.Registry
}

// Execute runs the CLI
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	rootCmd := &cobra.Command{
		Use:   "srcverify",
		Short: "Publish verified smart contract source to block explorers",
		Long: `srcverify flattens a compiled contract into standard JSON input and
submits it to an Etherscan-compatible or Blockscout explorer, then waits
for the explorer to confirm the verification.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.explorersFile, "explorers", "", "TOML or YAML file with additional explorers (env SRCVERIFY_EXPLORERS_FILE)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (env SRCVERIFY_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json (env SRCVERIFY_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /runs on this address while running (env SRCVERIFY_METRICS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&a.licensePolicy, "license-policy", "", "unrecognised licenses: fail, omit or none (env SRCVERIFY_LICENSE_POLICY)")

	// Add subcommands
	rootCmd.AddCommand(createVerifyCmd(a))
	rootCmd.AddCommand(createBatchCmd(a))
	rootCmd.AddCommand(createExplorersCmd(a))

	return rootCmd
}

// setup loads the environment configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("explorers") {
		cfg.Explorer.RegistryFile = a.explorersFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = a.metricsAddr
		cfg.Metrics.Enabled = a.metricsAddr != ""
	}
	if flags.Changed("license-policy") {
		policy, err := domain.ParseLicensePolicy(a.licensePolicy)
		if err != nil {
			return err
		}
		cfg.Verification.LicensePolicy = policy
	}

	a.cfg = cfg
	a.logger = setupLogger(cmd.ErrOrStderr(), cfg.Logging)

	registry := explorers.DefaultRegistry()
	if cfg.Explorer.RegistryFile != "" {
		extra, err := explorers.LoadFile(cfg.Explorer.RegistryFile)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		registry = registry.Merge(extra)
	}
	a.registry = registry

	if cfg.Metrics.Enabled {
		metricsOnce.Do(func() { metrics.Init(true, serviceName) })
	}
	return nil
}

// newService wires the verification service for one command run. All
// explorer clients share one rate limiter.
func (a *app) newService(flattener chains.Flattener, progress io.Writer) *domain.Service {
	var limiter *rate.Limiter
	if a.cfg.Explorer.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.Explorer.RateLimitRPS), a.cfg.Explorer.RateLimitBurst)
	}
	httpClient := &http.Client{Timeout: a.cfg.Explorer.HTTPTimeout}
	userAgent := serviceName + "/" + a.version

	return domain.NewService(a.registry, flattener,
		domain.WithConfig(a.cfg.Workflow()),
		domain.WithLogger(a.logger),
		domain.WithProgress(progress),
		domain.WithClientFactory(func(ep explorers.Endpoint) domain.Explorer {
			return transport.NewClient(ep,
				transport.WithHTTPClient(httpClient),
				transport.WithRateLimiter(limiter),
				transport.WithUserAgent(userAgent),
				transport.WithLogger(a.logger),
			)
		}),
	)
}

// startServer starts the metrics server when an address is configured. The
// returned stop function is always safe to call.
func (a *app) startServer() (*server.Server, func(), error) {
	if a.cfg.Metrics.Addr == "" {
		return nil, func() {}, nil
	}
	srv := server.New(a.logger)
	if err := srv.Start(a.cfg.Metrics.Addr); err != nil {
		return nil, nil, err
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	return srv, stop, nil
}

// withTimeout bounds ctx when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
