// Package transport speaks the explorer verification API: transaction list
// lookups, verification submissions and status checks.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Explorer API actions.
const (
	ActionTxList      = "txlist"
	ActionVerify      = "verifysourcecode"
	ActionCheckStatus = "checkverifystatus"
)

// Response is the envelope every explorer endpoint returns.
type Response struct {
	Status  Status          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// OK reports whether the explorer's status flag is success.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// ResultText returns result when it is a string. For any other result (a
// transaction array, null) it falls back to the message.
func (r *Response) ResultText() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return r.Message
}

// Transactions decodes result as a transaction list.
func (r *Response) Transactions() ([]Transaction, error) {
	var txs []Transaction
	if err := json.Unmarshal(r.Result, &txs); err != nil {
		return nil, fmt.Errorf("decoding transaction list: %w", err)
	}
	return txs, nil
}

// Status is the explorer status flag. Explorers send it as "1"/"0" or as a
// bare number.
type Status string

// StatusSuccess is the status flag of a successful call.
const StatusSuccess Status = "1"

// UnmarshalJSON accepts both string and numeric status values.
func (s *Status) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Status(strings.TrimSpace(str))
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid status %s", data)
	}
	*s = Status(n.String())
	return nil
}

// Transaction is one entry of a txlist result.
type Transaction struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	From            string `json:"from"`
	To              string `json:"to"`
	Input           string `json:"input"`
	ContractAddress string `json:"contractAddress"`
}

// VerificationRequest is the data sent with a verification submission. It is
// built once and not modified afterwards.
type VerificationRequest struct {
	APIKey          string
	Address         string
	CompilerVersion string // without the leading "v"
	SourceCode      string // standard JSON input
	ContractFile    string
	ContractName    string
	ConstructorArgs string // hex, no 0x prefix

	OptimizationUsed bool
	Runs             int
	// LicenseType is the explorer license code. Zero leaves it out.
	LicenseType int
}

// ContractIdentifier returns "<file>:<name>".
func (r VerificationRequest) ContractIdentifier() string {
	return r.ContractFile + ":" + r.ContractName
}
