package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/srcverify/internal/chains"
	"github.com/pendergraft/srcverify/internal/explorers"
	"github.com/pendergraft/srcverify/internal/license"
	"github.com/pendergraft/srcverify/internal/observability/metrics"
	"github.com/pendergraft/srcverify/internal/validation"
	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// Explorer is the subset of the explorer API the workflow needs.
type Explorer interface {
	TxList(ctx context.Context, address string) (*transport.Response, error)
	Submit(ctx context.Context, req transport.VerificationRequest) (*transport.Response, error)
	CheckStatus(ctx context.Context, guid string) (*transport.Response, error)
}

// ClientFactory creates the explorer client for a resolved endpoint.
type ClientFactory func(endpoint explorers.Endpoint) Explorer

// Service runs verification workflows.
type Service struct {
	registry  *explorers.Registry
	flattener chains.Flattener
	newClient ClientFactory
	config    Config
	logger    *slog.Logger
	progress  io.Writer
}

// Option configures a Service
type Option func(*Service)

// WithClientFactory replaces the default transport client.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) {
		s.newClient = f
	}
}

// WithConfig sets the workflow defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithProgress sets where human-readable progress lines go.
func WithProgress(w io.Writer) Option {
	return func(s *Service) {
		s.progress = w
	}
}

// NewService creates a new verification service
func NewService(registry *explorers.Registry, flattener chains.Flattener, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		flattener: flattener,
		config:    DefaultConfig(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		progress:  io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newClient == nil {
		logger := s.logger
		s.newClient = func(ep explorers.Endpoint) Explorer {
			return transport.NewClient(ep, transport.WithLogger(logger))
		}
	}
	return s
}

// run carries the per-invocation state of one workflow.
type run struct {
	*Result
	req      Request
	endpoint explorers.Endpoint
	client   Explorer
	logger   *slog.Logger
	progress io.Writer
	start    time.Time
}

func (r *run) progressf(format string, args ...any) {
	fmt.Fprintf(r.progress, format+"\n", args...)
}

// Publish verifies the source of the contract described by req.
//
// Configuration problems, malformed requests, flattening failures and context
// cancellation are returned as errors. Anything the explorer reports once the
// workflow has started, including transport failures, comes back as a Result
// whose Outcome and Stage describe where the run stopped.
func (s *Service) Publish(ctx context.Context, req Request) (*Result, error) {
	r := &run{
		Result: &Result{RunID: uuid.NewString(), Stage: StageResolvingEndpoint},
		req:    req,
		start:  time.Now(),
	}
	r.logger = s.logger.With("run_id", r.RunID, "network", req.Network, "address", req.Address)
	r.progress = s.progress
	if req.Silent {
		r.progress = io.Discard
	}

	endpoint, err := s.registry.Resolve(req.Network, explorers.ResolveOptions{
		APIKey:     req.APIKey,
		Blockscout: req.Blockscout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	r.endpoint = endpoint
	r.logger = r.logger.With("explorer", endpoint.Name, "shape", endpoint.Shape.String())

	if err := validation.ValidateAddress(req.Address); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.ContractName == "" {
		return nil, fmt.Errorf("%w: contract name is required", ErrInvalidRequest)
	}

	r.Stage = StageFlattening
	flat, err := s.flatten(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrFlatten, err)
	}

	compilerVersion := req.CompilerVersion
	if compilerVersion == "" {
		compilerVersion = flat.CompilerVersion
	}
	if err := validation.ValidateCompilerVersion(compilerVersion); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	bytecodeLen := req.BytecodeLen
	if bytecodeLen == 0 {
		bytecodeLen = flat.BytecodeLen
	}
	if bytecodeLen <= 0 {
		return nil, fmt.Errorf("%w: creation bytecode length is unknown", ErrInvalidRequest)
	}

	r.logger.Info("verification started", "contract", flat.ContractFile+":"+flat.ContractName)
	r.client = s.newClient(endpoint)

	r.Stage = StageClassifyingLicense
	code, err := s.licenseCode(endpoint.Shape, flat.License)
	if err != nil {
		return s.conclude(ctx, r, err)
	}
	r.LicenseCode = code

	r.Stage = StageResolvingConstructorArgs
	args, err := s.resolveConstructorArgs(ctx, r, bytecodeLen)
	if err != nil {
		return s.conclude(ctx, r, err)
	}
	r.ConstructorArgs = args

	r.Stage = StageSubmitting
	guid, err := s.submit(ctx, r, transport.VerificationRequest{
		APIKey:           endpoint.APIKey,
		Address:          req.Address,
		CompilerVersion:  validation.NormalizeCompilerVersion(compilerVersion),
		SourceCode:       string(flat.StandardJSON),
		ContractFile:     flat.ContractFile,
		ContractName:     flat.ContractName,
		ConstructorArgs:  args,
		OptimizationUsed: flat.Optimizer.Enabled,
		Runs:             flat.Optimizer.Runs,
		LicenseType:      int(code),
	})
	if err != nil {
		return s.conclude(ctx, r, err)
	}
	r.GUID = guid

	r.Stage = StagePolling
	result, err := s.pollStatus(ctx, r)
	if err != nil {
		return s.conclude(ctx, r, err)
	}
	r.Message = result
	r.Stage = StageDone
	return s.conclude(ctx, r, nil)
}

func (s *Service) flatten(ctx context.Context, req Request) (*chains.Flattened, error) {
	settings := s.config.Compiler
	if req.Settings != nil {
		settings = *req.Settings
	}
	return s.flattener.Flatten(ctx, chains.FlattenRequest{
		SourcePath:   req.SourcePath,
		ContractName: req.ContractName,
		Remappings:   req.Remappings,
		Settings:     settings,
	})
}

// licenseCode maps the source license to the explorer code. Blockscout takes
// no license code.
func (s *Service) licenseCode(shape explorers.Shape, identifier string) (license.Code, error) {
	if shape == explorers.ShapeBlockscout {
		return 0, nil
	}
	if code, ok := license.Classify(identifier); ok {
		return code, nil
	}
	switch s.config.LicensePolicy {
	case LicensePolicyOmit:
		return 0, nil
	case LicensePolicyNone:
		return license.NoLicense, nil
	default:
		return 0, &failure{
			outcome: OutcomeFailed,
			message: fmt.Sprintf("Unrecognized license %q: no matching explorer license code", identifier),
		}
	}
}

// conclude turns the workflow error into the run's result. Context errors are
// returned as errors.
func (s *Service) conclude(ctx context.Context, r *run, err error) (*Result, error) {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.logger.Warn("verification cancelled", "stage", r.Stage.String(), "error", ctxErr)
			return nil, ctxErr
		}

		var statusErr *transport.StatusError
		var f *failure
		switch {
		case errors.As(err, &statusErr):
			r.Outcome = OutcomeTransportError
			r.HTTPStatus = statusErr.StatusCode
			r.Body = statusErr.Body
			r.Message = statusErr.Error()
		case errors.As(err, &f):
			r.Outcome = f.outcome
			r.Message = f.message
		default:
			r.Outcome = OutcomeTransportError
			r.Message = err.Error()
		}
	}
	r.Duration = time.Since(r.start)

	metrics.WorkflowResult(r.endpoint.Shape.String(), r.Stage.String(), r.Outcome.String(), r.Duration)
	if r.TxListAttempts > 0 {
		metrics.TxListAttempts(r.TxListAttempts)
	}
	if r.Polls > 0 {
		metrics.StatusPolls(r.Polls)
	}

	attrs := []any{
		"stage", r.Stage.String(),
		"outcome", r.Outcome.String(),
		"duration", r.Duration.String(),
	}
	if r.Verified() {
		r.logger.Info("verification finished", append(attrs, "guid", r.GUID)...)
	} else {
		r.logger.Error("verification failed", append(attrs, "message", r.Message)...)
	}
	return r.Result, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
