package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0x1234567890abcdef1234567890abcdef12345678", false},
		{"valid checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"missing prefix", "1234567890abcdef1234567890abcdef1234567890", true},
		{"too short", "0x1234", true},
		{"non-hex", "0xZZ34567890abcdef1234567890abcdef12345678", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestChecksumAddress(t *testing.T) {
	assert.Equal(t,
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
	)
}

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "0.8.20", false},
		{"with commit", "0.8.20+commit.a1b10f9e", false},
		{"with v prefix", "v0.8.20+commit.a1b10f9e", false},
		{"nightly", "0.8.21-nightly.2023.5.30+commit.abcdef12", false},
		{"missing patch", "0.8", true},
		{"garbage", "latest", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCompilerVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeCompilerVersion(t *testing.T) {
	assert.Equal(t, "0.8.20", NormalizeCompilerVersion("v0.8.20"))
	assert.Equal(t, "0.8.20", NormalizeCompilerVersion(" 0.8.20 "))
}
