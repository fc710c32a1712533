// Package validation provides input validation for verification requests.
package validation

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ChecksumAddress returns the EIP-55 form of a valid address.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateCompilerVersion validates a solc version such as
// "0.8.20+commit.a1b10f9e". A leading "v" is accepted.
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeCompilerVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}

	// semver library expects version to start with 'v'
	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid compiler version: must be in format X.Y.Z or X.Y.Z+commit.<hash>")
	}

	mainPart, _, _ := strings.Cut(normalized, "+")
	mainPart, _, _ = strings.Cut(mainPart, "-")
	if strings.Count(mainPart, ".") < 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// NormalizeCompilerVersion strips surrounding whitespace and a leading 'v'.
func NormalizeCompilerVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
