package explorers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name      string
		network   string
		opts      ResolveOptions
		wantURL   string
		wantKey   string
		wantShape Shape
		wantErr   error
	}{
		{
			name:      "registry default key",
			network:   "mordor",
			wantURL:   "https://blockscout.com/etc/mordor/api",
			wantKey:   "0",
			wantShape: ShapeBlockscout,
		},
		{
			name:      "explicit key overrides default",
			network:   "rinkeby",
			opts:      ResolveOptions{APIKey: "secret"},
			wantURL:   "https://api-rinkeby.etherscan.io/api",
			wantKey:   "secret",
			wantShape: ShapeEtherscan,
		},
		{
			name:      "raw url with key",
			network:   "https://api.etherscan.io/api",
			opts:      ResolveOptions{APIKey: "k"},
			wantURL:   "https://api.etherscan.io/api",
			wantKey:   "k",
			wantShape: ShapeEtherscan,
		},
		{
			name:      "raw blockscout url",
			network:   "https://explorer.example.org/api",
			opts:      ResolveOptions{APIKey: "k", Blockscout: true},
			wantURL:   "https://explorer.example.org/api",
			wantKey:   "k",
			wantShape: ShapeBlockscout,
		},
		{
			name:    "raw url without key",
			network: "https://api.etherscan.io/api",
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "unknown network",
			network: "goerli",
			wantErr: ErrUnknownNetwork,
		},
		{
			name:    "unknown network with explicit key",
			network: "goerli",
			opts:    ResolveOptions{APIKey: "k"},
			wantErr: ErrUnknownNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := reg.Resolve(tt.network, tt.opts)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, ep.URL)
			assert.Equal(t, tt.wantKey, ep.APIKey)
			assert.Equal(t, tt.wantShape, ep.Shape)
		})
	}
}

func TestRegistry_ResolveRawURLBeforeRegistry(t *testing.T) {
	reg := NewRegistry(Endpoint{
		Name:   "rapid-api",
		URL:    "https://rapid.example.org/api",
		APIKey: "registry-key",
		Shape:  ShapeBlockscout,
	})

	_, err := reg.Resolve("rapid-api", ResolveOptions{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	ep, err := reg.Resolve("rapid-api", ResolveOptions{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "rapid-api", ep.URL)
	assert.Equal(t, ShapeEtherscan, ep.Shape)
}

func TestRegistry_ResolveDoesNotMutate(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Resolve("rinkeby", ResolveOptions{APIKey: "override"})
	require.NoError(t, err)

	ep, ok := reg.Get("rinkeby")
	require.True(t, ok)
	assert.Equal(t, "api_key", ep.APIKey)
}

func TestRegistry_ListAndMerge(t *testing.T) {
	base := DefaultRegistry()
	extra := NewRegistry(
		Endpoint{Name: "mordor", URL: "https://mordor.example/api", APIKey: "x", Shape: ShapeBlockscout},
		Endpoint{Name: "sepolia", URL: "https://api-sepolia.etherscan.io/api", APIKey: "y"},
	)

	merged := base.Merge(extra)
	names := []string{}
	for _, e := range merged.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"mordor", "rinkeby", "sepolia"}, names)

	ep, _ := merged.Get("mordor")
	assert.Equal(t, "https://mordor.example/api", ep.URL)

	orig, _ := base.Get("mordor")
	assert.Equal(t, "https://blockscout.com/etc/mordor/api", orig.URL)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("SEPOLIA_KEY", "from-env")

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explorers.toml")
		content := `
[explorers.sepolia]
url = "https://api-sepolia.etherscan.io/api"
api_key = "${SEPOLIA_KEY}"
shape = "etherscan"

[explorers.gnosis]
url = "https://gnosis.blockscout.com/api"
api_key = "0"
scan = 0
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		reg, err := LoadFile(path)
		require.NoError(t, err)

		sepolia, ok := reg.Get("sepolia")
		require.True(t, ok)
		assert.Equal(t, "from-env", sepolia.APIKey)
		assert.Equal(t, ShapeEtherscan, sepolia.Shape)

		gnosis, ok := reg.Get("gnosis")
		require.True(t, ok)
		assert.Equal(t, ShapeBlockscout, gnosis.Shape)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explorers.yaml")
		content := `
explorers:
  mordor:
    url: https://blockscout.com/etc/mordor/api
    api_key: "0"
    shape: blockscout
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		reg, err := LoadFile(path)
		require.NoError(t, err)
		ep, ok := reg.Get("mordor")
		require.True(t, ok)
		assert.Equal(t, ShapeBlockscout, ep.Shape)
	})

	t.Run("missing url", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explorers.toml")
		require.NoError(t, os.WriteFile(path, []byte("[explorers.bad]\napi_key = \"k\"\n"), 0644))
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url is required")
	})

	t.Run("bad shape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explorers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("explorers:\n  x:\n    url: u\n    shape: sourcify\n"), 0644))
		_, err := LoadFile(path)
		require.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explorers.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		_, err := LoadFile(path)
		require.Error(t, err)
	})
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("Blockscout")
	require.NoError(t, err)
	assert.Equal(t, ShapeBlockscout, s)
	assert.Equal(t, "blockscout", s.String())

	s, err = ParseShape("")
	require.NoError(t, err)
	assert.Equal(t, ShapeEtherscan, s)

	_, err = ParseShape("sourcify")
	assert.Error(t, err)
}
