// Package domain contains the contract source verification workflow.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pendergraft/srcverify/internal/chains"
	"github.com/pendergraft/srcverify/internal/license"
)

// Request is the input of one verification run.
type Request struct {
	// Network is a registry key ("mordor") or a raw explorer API URL.
	Network string `json:"network" toml:"network" yaml:"network"`
	// APIKey overrides the registry's default key.
	APIKey string `json:"apiKey,omitempty" toml:"api_key" yaml:"apiKey"`
	// Blockscout selects the Blockscout payload for raw URLs.
	Blockscout bool `json:"blockscout,omitempty" toml:"blockscout" yaml:"blockscout"`

	Address      string `json:"address" toml:"address" yaml:"address"`
	SourcePath   string `json:"source" toml:"source" yaml:"source"`
	ContractName string `json:"contract" toml:"contract" yaml:"contract"`

	// CompilerVersion and BytecodeLen fall back to what the flattener reads
	// from build output when empty.
	CompilerVersion string `json:"compilerVersion,omitempty" toml:"compiler_version" yaml:"compilerVersion"`
	BytecodeLen     int    `json:"bytecodeLen,omitempty" toml:"bytecode_len" yaml:"bytecodeLen"`

	Remappings map[string]string        `json:"remappings,omitempty" toml:"remappings" yaml:"remappings"`
	Settings   *chains.CompilerSettings `json:"settings,omitempty" toml:"settings" yaml:"settings"`

	// Silent suppresses progress lines.
	Silent bool `json:"silent,omitempty" toml:"silent" yaml:"silent"`
}

// Outcome is the state of a verification run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomePending only drives status polling and is never returned.
	OutcomePending
	OutcomeFailed
	OutcomeTransportError
	// OutcomeTimeout means the deployment was not indexed within the
	// transaction list retry budget.
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePending:
		return "pending"
	case OutcomeFailed:
		return "failed"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stage is a step of the verification workflow.
type Stage int

const (
	StageResolvingEndpoint Stage = iota
	StageFlattening
	StageClassifyingLicense
	StageResolvingConstructorArgs
	StageSubmitting
	StagePolling
	StageDone
)

var stageNames = [...]string{
	StageResolvingEndpoint:        "resolving_endpoint",
	StageFlattening:               "flattening",
	StageClassifyingLicense:       "classifying_license",
	StageResolvingConstructorArgs: "resolving_constructor_args",
	StageSubmitting:               "submitting",
	StagePolling:                  "polling",
	StageDone:                     "done",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Result is what a verification run reports back. Failures reached after
// the endpoint was resolved are results, not errors, so batch callers can
// carry on with the next contract.
type Result struct {
	RunID   string  `json:"runId"`
	Outcome Outcome `json:"-"`
	// Stage is where the run stopped; StageDone on success.
	Stage   Stage  `json:"-"`
	Message string `json:"message,omitempty"`

	// HTTPStatus and Body are set for OutcomeTransportError when the
	// explorer answered.
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Body       string `json:"body,omitempty"`

	GUID            string        `json:"guid,omitempty"`
	ConstructorArgs string        `json:"constructorArgs,omitempty"`
	LicenseCode     license.Code  `json:"licenseType,omitempty"`
	TxListAttempts  int           `json:"txListAttempts"`
	Polls           int           `json:"polls"`
	Duration        time.Duration `json:"duration"`
}

// Verified reports whether the explorer confirmed the verification.
func (r *Result) Verified() bool {
	return r.Outcome == OutcomeSuccess
}

// LicensePolicy decides what happens when the contract's license matches no
// explorer license code.
type LicensePolicy string

const (
	// LicensePolicyFail stops the run before anything is submitted.
	LicensePolicyFail LicensePolicy = "fail"
	// LicensePolicyOmit submits without a licenseType field.
	LicensePolicyOmit LicensePolicy = "omit"
	// LicensePolicyNone submits license code 1 ("No License").
	LicensePolicyNone LicensePolicy = "none"
)

// ParseLicensePolicy parses "fail", "omit" or "none".
func ParseLicensePolicy(s string) (LicensePolicy, error) {
	switch p := LicensePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case LicensePolicyFail, LicensePolicyOmit, LicensePolicyNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown license policy %q (want fail, omit or none)", s)
	}
}

// Config holds the workflow defaults. It is passed by value and never
// modified by the service.
type Config struct {
	// Compiler settings used when build output does not specify them.
	Compiler chains.CompilerSettings
	// PollInterval is the delay between transaction list retries, before the
	// first status check and between status checks.
	PollInterval time.Duration
	// TxListRetries is how many times the transaction list is re-queried
	// after the first not-indexed answer.
	TxListRetries int
	LicensePolicy LicensePolicy
}

// DefaultConfig returns the standard workflow defaults.
func DefaultConfig() Config {
	return Config{
		Compiler: chains.CompilerSettings{
			EVMVersion: "london",
			Optimizer:  chains.OptimizerConfig{Enabled: true, Runs: 200},
		},
		PollInterval:  10 * time.Second,
		TxListRetries: 10,
		LicensePolicy: LicensePolicyFail,
	}
}
