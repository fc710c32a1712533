package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pendergraft/srcverify/internal/explorers"
)

func newTestClient(t *testing.T, shape explorers.Shape, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(explorers.Endpoint{
		Name:   "test",
		URL:    server.URL + "/api",
		APIKey: "test-key",
		Shape:  shape,
	})
}

func writeEnvelope(w http.ResponseWriter, status, message string, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
		"result":  result,
	})
}

func sampleRequest() VerificationRequest {
	return VerificationRequest{
		APIKey:           "test-key",
		Address:          "0x1234567890abcdef1234567890abcdef12345678",
		CompilerVersion:  "0.8.20+commit.a1b10f9e",
		SourceCode:       `{"language":"Solidity"}`,
		ContractFile:     "src/Token.sol",
		ContractName:     "Token",
		ConstructorArgs:  "00ff",
		OptimizationUsed: true,
		Runs:             200,
		LicenseType:      3,
	}
}

func TestClient_TxList(t *testing.T) {
	client := newTestClient(t, explorers.ShapeEtherscan, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, "0xabc", q.Get("address"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "1", q.Get("offset"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		writeEnvelope(w, "1", "OK", []map[string]string{{"hash": "0xdead", "input": "0x6080"}})
	})

	resp, err := client.TxList(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "OK", resp.Message)

	txs, err := resp.Transactions()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0x6080", txs[0].Input)
}

func TestClient_CheckStatus(t *testing.T) {
	client := newTestClient(t, explorers.ShapeEtherscan, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "contract", q.Get("module"))
		assert.Equal(t, "checkverifystatus", q.Get("action"))
		assert.Equal(t, "guid-1", q.Get("guid"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		writeEnvelope(w, "0", "NOTOK", "Pending in queue")
	})

	resp, err := client.CheckStatus(context.Background(), "guid-1")
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "Pending in queue", resp.ResultText())
}

func TestClient_SubmitEtherscan(t *testing.T) {
	var form url.Values
	var contentType string
	client := newTestClient(t, explorers.ShapeEtherscan, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		writeEnvelope(w, "1", "OK", "guid-123")
	})

	resp, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "guid-123", resp.ResultText())

	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "test-key", form.Get("apikey"))
	assert.Equal(t, "contract", form.Get("module"))
	assert.Equal(t, "verifysourcecode", form.Get("action"))
	assert.Equal(t, "solidity-standard-json-input", form.Get("codeformat"))
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", form.Get("contractaddress"))
	assert.Equal(t, "src/Token.sol:Token", form.Get("contractname"))
	assert.Equal(t, "v0.8.20+commit.a1b10f9e", form.Get("compilerversion"))
	assert.Equal(t, "00ff", form.Get("constructorArguements"))
	assert.Equal(t, `{"language":"Solidity"}`, form.Get("sourceCode"))
	assert.Equal(t, "1", form.Get("optimizationUsed"))
	assert.Equal(t, "200", form.Get("runs"))
	assert.Equal(t, "3", form.Get("licenseType"))
}

func TestClient_SubmitBlockscout(t *testing.T) {
	var form url.Values
	var contentType string
	client := newTestClient(t, explorers.ShapeBlockscout, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		writeEnvelope(w, "1", "OK", "guid-456")
	})

	_, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "src/Token.sol:Token", form.Get("contractname"))
	for _, field := range []string{"optimizationUsed", "runs", "licenseType"} {
		_, present := form[field]
		assert.False(t, present, "blockscout payload must not carry %s", field)
	}
}

func TestPayloadBuilders(t *testing.T) {
	req := sampleRequest()

	t.Run("etherscan carries optimizer and license", func(t *testing.T) {
		b := BuilderFor(explorers.ShapeEtherscan)
		v := b.Build(req)
		assert.Equal(t, "1", v.Get("optimizationUsed"))
		assert.Equal(t, "200", v.Get("runs"))
		assert.Equal(t, "3", v.Get("licenseType"))
		assert.Equal(t, "application/x-www-form-urlencoded", b.Header().Get("Content-Type"))
	})

	t.Run("etherscan without license code", func(t *testing.T) {
		noLicense := req
		noLicense.LicenseType = 0
		noLicense.OptimizationUsed = false
		v := BuilderFor(explorers.ShapeEtherscan).Build(noLicense)
		_, present := v["licenseType"]
		assert.False(t, present)
		assert.Equal(t, "0", v.Get("optimizationUsed"))
	})

	t.Run("blockscout sets form content type", func(t *testing.T) {
		b := BuilderFor(explorers.ShapeBlockscout)
		assert.Equal(t, "application/x-www-form-urlencoded", b.Header().Get("Content-Type"))
		v := b.Build(req)
		assert.Len(t, v, 9)
	})
}

func TestClient_SubmitUsesBuilderHeaders(t *testing.T) {
	for _, shape := range []explorers.Shape{explorers.ShapeEtherscan, explorers.ShapeBlockscout} {
		t.Run(shape.String(), func(t *testing.T) {
			var got http.Header
			client := newTestClient(t, shape, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Clone()
				writeEnvelope(w, "1", "OK", "guid")
			})

			_, err := client.Submit(context.Background(), sampleRequest())
			require.NoError(t, err)

			for k := range BuilderFor(shape).Header() {
				assert.Equal(t, BuilderFor(shape).Header().Get(k), got.Get(k), k)
			}
			assert.Equal(t, "application/json", got.Get("Accept"))
		})
	}
}

func TestClient_NonOKStatus(t *testing.T) {
	client := newTestClient(t, explorers.ShapeEtherscan, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.TxList(context.Background(), "0xabc")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "upstream down", statusErr.Body)
	assert.Contains(t, statusErr.Error(), "Status 502 when querying")
}

func TestClient_InvalidJSON(t *testing.T) {
	client := newTestClient(t, explorers.ShapeEtherscan, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	})

	_, err := client.CheckStatus(context.Background(), "g")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeEnvelope(w, "1", "OK", "x")
	}))
	defer server.Close()

	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	client := NewClient(explorers.Endpoint{URL: server.URL, APIKey: "k"}, WithRateLimiter(limiter))

	_, err := client.CheckStatus(context.Background(), "g")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.CheckStatus(ctx, "g")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStatus_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{`{"status":"1"}`, StatusSuccess},
		{`{"status":1}`, StatusSuccess},
		{`{"status":"0"}`, Status("0")},
		{`{"status":0}`, Status("0")},
		{`{"status":null}`, Status("")},
		{`{}`, Status("")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.want, r.Status)
		})
	}
}

func TestResponse_ResultText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string result", `{"status":"0","message":"NOTOK","result":"Already Verified"}`, "Already Verified"},
		{"array result falls back to message", `{"status":"0","message":"No transactions found","result":[]}`, "No transactions found"},
		{"missing result", `{"status":"0","message":"NOTOK"}`, "NOTOK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.want, r.ResultText())
		})
	}
}

func TestAsAPIError(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"status":"0","message":"NOTOK","result":"Invalid API Key"}`), &r))

	err := AsAPIError(ActionVerify, &r)
	assert.Equal(t, "Invalid API Key", err.Result)
	assert.Equal(t, "NOTOK", err.Message)
	assert.Equal(t, "verifysourcecode: Invalid API Key (NOTOK)", err.Error())
}
