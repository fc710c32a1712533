// Package chains defines the flattener contract that turns a contract in a
// build-tool project into a single standard-JSON compilation unit.
package chains

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrContractNotFound is returned when a flattener has no build output for
// the requested contract.
var ErrContractNotFound = errors.New("contract not found in build output")

// Flattener produces the verification input for one contract.
type Flattener interface {
	// Metadata
	Name() string // "foundry"

	Flatten(ctx context.Context, req FlattenRequest) (*Flattened, error)
}

// FlattenRequest identifies the contract to flatten
type FlattenRequest struct {
	// SourcePath is the contract source file relative to the project root
	// (e.g. "src/Token.sol").
	SourcePath   string
	ContractName string
	// Remappings are import remappings, prefix -> target.
	Remappings map[string]string
	Settings   CompilerSettings
}

// Flattened is the flattener output consumed by the verification workflow.
type Flattened struct {
	StandardJSON json.RawMessage
	License      string // license identifier as written in the source, e.g. "MIT"
	ContractFile string // key of the contract's source in StandardJSON
	ContractName string

	// Filled when the flattener can read them from build output.
	CompilerVersion string // "0.8.20+commit.a1b2c3d4"
	BytecodeLen     int    // hex characters of creation bytecode, without 0x
	Optimizer       OptimizerConfig
}

// CompilerSettings are the solc settings applied when the build output does
// not specify them.
type CompilerSettings struct {
	EVMVersion string          `json:"evmVersion" toml:"evm_version" yaml:"evmVersion"`
	Optimizer  OptimizerConfig `json:"optimizer" toml:"optimizer" yaml:"optimizer"`
	ViaIR      bool            `json:"viaIR" toml:"via_ir" yaml:"viaIR"`
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" yaml:"enabled"`
	Runs    int  `json:"runs" toml:"runs" yaml:"runs"`
}
