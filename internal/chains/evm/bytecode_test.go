package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractConstructorArgs(t *testing.T) {
	bytecode := "608060405234801561001057600080fd5b50"
	args := "000000000000000000000000000000000000000000000000000000000000002a"

	tests := []struct {
		name        string
		input       string
		bytecodeLen int
		want        string
	}{
		{
			name:        "bytecode followed by arguments",
			input:       "0x" + bytecode + args,
			bytecodeLen: len(bytecode),
			want:        args,
		},
		{
			name:        "no arguments",
			input:       "0x" + bytecode,
			bytecodeLen: len(bytecode),
			want:        "",
		},
		{
			name:        "input shorter than bytecode",
			input:       "0x6080",
			bytecodeLen: len(bytecode),
			want:        "",
		},
		{
			name:        "zero bytecode length keeps everything after 0x",
			input:       "0xabcdef",
			bytecodeLen: 0,
			want:        "abcdef",
		},
		{
			name:        "negative length",
			input:       "0xabcdef",
			bytecodeLen: -4,
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractConstructorArgs(tt.input, tt.bytecodeLen))
		})
	}
}

func TestBytecodeHexLen(t *testing.T) {
	assert.Equal(t, 4, BytecodeHexLen("0x6080"))
	assert.Equal(t, 4, BytecodeHexLen("6080"))
	assert.Equal(t, 0, BytecodeHexLen("0x"))
}

func TestHasLibraryPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		bytecode string
		want     bool
	}{
		{
			name:     "no placeholders",
			bytecode: "608060405234801561001057600080fd5b50",
			want:     false,
		},
		{
			name:     "with placeholder",
			bytecode: "608060405234801561001057__$1234567890abcdef1234567890abcdef12$__600080fd5b50",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLibraryPlaceholders(tt.bytecode))
		})
	}
}
