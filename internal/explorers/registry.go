// Package explorers holds the registry of block-explorer API endpoints that
// verification requests can be sent to.
package explorers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Shape selects the verification payload an explorer expects.
type Shape int

const (
	// ShapeEtherscan is the generic Etherscan-compatible API.
	ShapeEtherscan Shape = iota
	// ShapeBlockscout is the Blockscout variant of the API.
	ShapeBlockscout
)

func (s Shape) String() string {
	if s == ShapeBlockscout {
		return "blockscout"
	}
	return "etherscan"
}

// ParseShape parses "etherscan" or "blockscout".
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "etherscan", "scan", "":
		return ShapeEtherscan, nil
	case "blockscout":
		return ShapeBlockscout, nil
	default:
		return 0, fmt.Errorf("unknown explorer shape %q", s)
	}
}

// Errors returned by the registry.
var (
	ErrUnknownNetwork = errors.New("explorer API not set for this network")
	ErrMissingAPIKey  = errors.New("no API key for explorer")
)

// Endpoint is an explorer API selected for one verification run.
type Endpoint struct {
	Name   string
	URL    string
	APIKey string
	Shape  Shape
}

// Registry maps network names to explorer endpoints. It is not modified
// after construction.
type Registry struct {
	endpoints map[string]Endpoint
}

// NewRegistry creates a registry from endpoints, keyed by Endpoint.Name.
func NewRegistry(endpoints ...Endpoint) *Registry {
	r := &Registry{endpoints: make(map[string]Endpoint, len(endpoints))}
	for _, e := range endpoints {
		r.endpoints[e.Name] = e
	}
	return r
}

// DefaultRegistry returns the built-in explorers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Endpoint{
			Name:   "rinkeby",
			URL:    "https://api-rinkeby.etherscan.io/api",
			APIKey: "api_key",
			Shape:  ShapeEtherscan,
		},
		Endpoint{
			Name:   "mordor",
			URL:    "https://blockscout.com/etc/mordor/api",
			APIKey: "0",
			Shape:  ShapeBlockscout,
		},
	)
}

// Get retrieves an endpoint by network name
func (r *Registry) Get(name string) (Endpoint, bool) {
	e, ok := r.endpoints[name]
	return e, ok
}

// List returns all endpoints sorted by name
func (r *Registry) List() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge returns a new registry holding r's endpoints overridden by other's.
func (r *Registry) Merge(other *Registry) *Registry {
	merged := NewRegistry(r.List()...)
	for name, e := range other.endpoints {
		merged.endpoints[name] = e
	}
	return merged
}

// ResolveOptions are the caller's endpoint overrides.
type ResolveOptions struct {
	// APIKey overrides the registry default when set.
	APIKey string
	// Blockscout selects the Blockscout shape for raw URLs.
	Blockscout bool
}

// Resolve selects the endpoint for network. Anything containing "api" is
// taken as a raw explorer API URL before the registry is consulted. It never
// touches the network.
func (r *Registry) Resolve(network string, opts ResolveOptions) (Endpoint, error) {
	var ep Endpoint
	if strings.Contains(network, "api") {
		ep = Endpoint{Name: network, URL: network, Shape: ShapeEtherscan}
		if opts.Blockscout {
			ep.Shape = ShapeBlockscout
		}
	} else {
		var ok bool
		if ep, ok = r.Get(network); !ok {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
		}
	}
	if opts.APIKey != "" {
		ep.APIKey = opts.APIKey
	}
	if ep.APIKey == "" {
		return Endpoint{}, fmt.Errorf("%w %q: pass an API key explicitly", ErrMissingAPIKey, network)
	}
	return ep, nil
}

// fileEntry is one explorer in a registry file. Scan mirrors the legacy
// numeric discriminator (1 = Etherscan, 0 = Blockscout) and is only read when
// Shape is empty.
type fileEntry struct {
	URL    string `toml:"url" yaml:"url"`
	APIKey string `toml:"api_key" yaml:"api_key"`
	Shape  string `toml:"shape" yaml:"shape"`
	Scan   *int   `toml:"scan" yaml:"scan"`
}

type registryFile struct {
	Explorers map[string]fileEntry `toml:"explorers" yaml:"explorers"`
}

// LoadFile reads a registry from a TOML or YAML file, picked by extension.
// API keys of the form "$VAR" or "${VAR}" are expanded from the environment.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading explorer registry: %w", err)
	}

	var f registryFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported registry file type %q (use .toml or .yaml)", filepath.Ext(path))
	}

	endpoints := make([]Endpoint, 0, len(f.Explorers))
	for name, entry := range f.Explorers {
		if entry.URL == "" {
			return nil, fmt.Errorf("explorer %q: url is required", name)
		}
		shape, err := entry.shape()
		if err != nil {
			return nil, fmt.Errorf("explorer %q: %w", name, err)
		}
		endpoints = append(endpoints, Endpoint{
			Name:   name,
			URL:    entry.URL,
			APIKey: os.ExpandEnv(entry.APIKey),
			Shape:  shape,
		})
	}
	return NewRegistry(endpoints...), nil
}

func (e fileEntry) shape() (Shape, error) {
	if e.Shape == "" && e.Scan != nil {
		if *e.Scan == 0 {
			return ShapeBlockscout, nil
		}
		return ShapeEtherscan, nil
	}
	return ParseShape(e.Shape)
}
