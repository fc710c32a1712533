// Package evm holds EVM-specific helpers for working with creation bytecode
// and deployment transactions.
package evm

import (
	"regexp"
	"strings"
)

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// BytecodeHexLen returns the number of hex characters in bytecode, ignoring
// a leading 0x. Link placeholders have the same width as the address that
// replaces them, so unlinked bytecode reports the deployed length.
func BytecodeHexLen(bytecode string) int {
	return len(strings.TrimPrefix(bytecode, "0x"))
}

// ExtractConstructorArgs returns the ABI-encoded constructor arguments from a
// creation transaction's input data. input is "0x" followed by the creation
// bytecode (bytecodeLen hex characters) and the arguments. The result has no
// 0x prefix and is empty when input carries no arguments.
func ExtractConstructorArgs(input string, bytecodeLen int) string {
	start := 2 + bytecodeLen
	if bytecodeLen < 0 || start >= len(input) {
		return ""
	}
	return input[start:]
}

// HasLibraryPlaceholders checks if bytecode contains library placeholders
func HasLibraryPlaceholders(bytecode string) bool {
	return libraryPlaceholder.MatchString(bytecode)
}
