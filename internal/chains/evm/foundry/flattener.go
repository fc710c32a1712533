// Package foundry flattens contracts from Foundry build output into
// standard JSON input for explorer verification.
package foundry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pendergraft/srcverify/internal/chains"
	"github.com/pendergraft/srcverify/internal/chains/evm"
)

// defaultOptimizerRuns is solc's default when the optimizer is enabled
// without an explicit run count.
const defaultOptimizerRuns = 200

// Flattener implements chains.Flattener for a Foundry project
type Flattener struct {
	dir string
}

// New creates a flattener rooted at the Foundry project directory dir.
func New(dir string) *Flattener {
	return &Flattener{dir: dir}
}

// Name returns the flattener identifier
func (f *Flattener) Name() string {
	return "foundry"
}

// ConfigFile returns the config file name
func (f *Flattener) ConfigFile() string {
	return "foundry.toml"
}

// Detect checks if the project directory is a Foundry project
func (f *Flattener) Detect() (bool, error) {
	_, err := os.Stat(filepath.Join(f.dir, f.ConfigFile()))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ArtifactPath returns where forge writes the artifact for a contract
// (out/{Source}.sol/{Contract}.json).
func (f *Flattener) ArtifactPath(sourcePath, contractName string) string {
	return filepath.Join(f.dir, "out", filepath.Base(sourcePath), contractName+".json")
}

// Flatten builds a standard JSON input from the contract artifact's
// rawMetadata, embedding every source the contract was compiled from.
func (f *Flattener) Flatten(ctx context.Context, req chains.FlattenRequest) (*chains.Flattened, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ContractName == "" {
		return nil, errors.New("contract name is required")
	}
	if req.SourcePath == "" {
		return nil, errors.New("source path is required")
	}

	artifactPath := f.ArtifactPath(req.SourcePath, req.ContractName)
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (run 'forge build' first)", chains.ErrContractNotFound, artifactPath)
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw FoundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact: %w", err)
	}

	// Skip if no bytecode (interfaces, abstract contracts)
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, fmt.Errorf("contract %s has no bytecode (likely an interface)", req.ContractName)
	}

	if raw.RawMetadata == "" {
		return nil, errors.New("artifact has no rawMetadata")
	}

	var metadata FoundryMetadata
	if err := json.Unmarshal([]byte(raw.RawMetadata), &metadata); err != nil {
		return nil, fmt.Errorf("parsing rawMetadata: %w", err)
	}

	if len(metadata.Sources) == 0 {
		return nil, errors.New("metadata has no sources")
	}

	// Deploy-time linked libraries leave placeholders the explorer cannot resolve
	if evm.HasLibraryPlaceholders(raw.Bytecode.Object) && len(metadata.Settings.Libraries) == 0 {
		return nil, fmt.Errorf("contract %s has unlinked library references; compile with linked library addresses first", req.ContractName)
	}

	contractFile := metadata.Settings.targetFor(req.ContractName)
	if contractFile == "" {
		contractFile = filepath.ToSlash(req.SourcePath)
	}

	sources := make(map[string]sourceContent, len(metadata.Sources))
	for srcPath, meta := range metadata.Sources {
		if meta.Content != "" {
			sources[srcPath] = sourceContent{Content: meta.Content}
			continue
		}
		content, err := os.ReadFile(filepath.Join(f.dir, srcPath))
		if err != nil {
			return nil, fmt.Errorf("reading source %s: %w", srcPath, err)
		}
		sources[srcPath] = sourceContent{Content: string(content)}
	}

	lang := metadata.Language
	if lang == "" {
		lang = "Solidity"
	}

	optSettings := resolveOptimizer(metadata.Settings.Optimizer, req.Settings.Optimizer)

	evmVersion := metadata.Settings.EVMVersion
	if evmVersion == "" {
		evmVersion = req.Settings.EVMVersion
	}

	metaOut := standardJSONMetadataConfig{BytecodeHash: "ipfs"}
	if metadata.Settings.Metadata != nil {
		if metadata.Settings.Metadata.BytecodeHash != "" {
			metaOut.BytecodeHash = metadata.Settings.Metadata.BytecodeHash
		}
		metaOut.UseLiteralContent = metadata.Settings.Metadata.UseLiteralContent
		metaOut.AppendCBOR = metadata.Settings.Metadata.AppendCBOR
	}

	input := standardJSONInput{
		Language: lang,
		Sources:  sources,
		Settings: standardJSONSettings{
			Optimizer:       optSettings,
			EVMVersion:      evmVersion,
			ViaIR:           metadata.Settings.ViaIR || req.Settings.ViaIR,
			Libraries:       metadata.Settings.Libraries,
			Remappings:      mergeRemappings(metadata.Settings.Remappings, req.Remappings),
			Metadata:        metaOut,
			OutputSelection: outputSelectionForVerification(),
		},
	}

	stdJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding standard JSON input: %w", err)
	}

	return &chains.Flattened{
		StandardJSON:    stdJSON,
		License:         metadata.Sources.licenseFor(contractFile),
		ContractFile:    contractFile,
		ContractName:    req.ContractName,
		CompilerVersion: metadata.Compiler.Version,
		BytecodeLen:     evm.BytecodeHexLen(raw.Bytecode.Object),
		Optimizer: chains.OptimizerConfig{
			Enabled: optSettings.Enabled,
			Runs:    optSettings.Runs,
		},
	}, nil
}

// resolveOptimizer prefers the settings the artifact was compiled with and
// falls back to the requested defaults.
func resolveOptimizer(meta *OptimizerMeta, fallback chains.OptimizerConfig) optimizerSettings {
	opt := optimizerSettings{Enabled: fallback.Enabled, Runs: fallback.Runs}
	if meta != nil {
		opt = optimizerSettings{Enabled: meta.Enabled, Runs: meta.Runs}
	}
	// Only default runs when optimizer is enabled; when disabled, runs=0 is correct
	if opt.Enabled && opt.Runs == 0 {
		opt.Runs = fallback.Runs
		if opt.Runs == 0 {
			opt.Runs = defaultOptimizerRuns
		}
	}
	return opt
}

// mergeRemappings combines the artifact's remappings with extra prefix->target
// pairs. Extra entries replace artifact entries with the same prefix.
func mergeRemappings(existing []string, extra map[string]string) []string {
	if len(existing) == 0 && len(extra) == 0 {
		return nil
	}
	byPrefix := make(map[string]string, len(existing)+len(extra))
	for _, r := range existing {
		prefix, _, ok := strings.Cut(r, "=")
		if !ok {
			continue
		}
		byPrefix[prefix] = r
	}
	for prefix, target := range extra {
		byPrefix[prefix] = prefix + "=" + target
	}

	out := make([]string, 0, len(byPrefix))
	for _, r := range byPrefix {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// standardJSONInput is the structure we build for per-contract verification input
type standardJSONInput struct {
	Language string                   `json:"language"`
	Sources  map[string]sourceContent `json:"sources"`
	Settings standardJSONSettings     `json:"settings"`
}

type sourceContent struct {
	Content string `json:"content"`
}

type standardJSONSettings struct {
	Optimizer       optimizerSettings              `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	ViaIR           bool                           `json:"viaIR,omitempty"`
	Libraries       map[string]map[string]string   `json:"libraries,omitempty"`
	Remappings      []string                       `json:"remappings,omitempty"`
	Metadata        standardJSONMetadataConfig     `json:"metadata,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizerSettings struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// standardJSONMetadataConfig holds metadata settings for standard JSON input (not compiler output)
type standardJSONMetadataConfig struct {
	BytecodeHash      string `json:"bytecodeHash,omitempty"`
	UseLiteralContent bool   `json:"useLiteralContent,omitempty"`
	AppendCBOR        *bool  `json:"appendCBOR,omitempty"`
}

func outputSelectionForVerification() map[string]map[string][]string {
	return map[string]map[string][]string{
		"*": {"*": {"abi", "evm.bytecode", "evm.deployedBytecode", "metadata"}},
	}
}

// FoundryArtifact represents the structure of a Foundry artifact JSON file
type FoundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

// BytecodeObject represents bytecode in a Foundry artifact
type BytecodeObject struct {
	Object string `json:"object"`
}

// FoundryMetadata represents the parsed rawMetadata field
type FoundryMetadata struct {
	Compiler CompilerMeta `json:"compiler"`
	Language string       `json:"language"`
	Settings SettingsMeta `json:"settings"`
	Sources  SourcesMeta  `json:"sources"`
	Version  int          `json:"version"`
}

// CompilerMeta contains compiler information
type CompilerMeta struct {
	Version string `json:"version"`
}

// MetadataSettings contains metadata options for standard JSON (bytecodeHash, useLiteralContent, etc.)
type MetadataSettings struct {
	BytecodeHash      string `json:"bytecodeHash,omitempty"`
	UseLiteralContent bool   `json:"useLiteralContent,omitempty"`
	AppendCBOR        *bool  `json:"appendCBOR,omitempty"`
}

// SettingsMeta contains compiler settings
type SettingsMeta struct {
	CompilationTarget map[string]string            `json:"compilationTarget"`
	EVMVersion        string                       `json:"evmVersion"`
	Libraries         map[string]map[string]string `json:"libraries"` // source path -> library name -> address
	Metadata          *MetadataSettings            `json:"metadata,omitempty"`
	Optimizer         *OptimizerMeta               `json:"optimizer,omitempty"`
	Remappings        []string                     `json:"remappings"`
	ViaIR             bool                         `json:"viaIR"`
}

// targetFor returns the compilation target source path for contractName.
func (s SettingsMeta) targetFor(contractName string) string {
	for path, name := range s.CompilationTarget {
		if name == contractName {
			return path
		}
	}
	return ""
}

// OptimizerMeta contains optimizer settings
type OptimizerMeta struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// SourcesMeta contains source file information
type SourcesMeta map[string]SourceMeta

// SourceMeta contains individual source file info
type SourceMeta struct {
	Keccak256 string   `json:"keccak256"`
	License   string   `json:"license"`
	URLs      []string `json:"urls"`
	Content   string   `json:"content,omitempty"` // set when compiled with useLiteralContent
}

// licenseFor returns the license of path, falling back to the first license
// found in any source (sorted by path).
func (s SourcesMeta) licenseFor(path string) string {
	if src, ok := s[path]; ok && src.License != "" {
		return src.License
	}
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if s[p].License != "" {
			return s[p].License
		}
	}
	return ""
}
