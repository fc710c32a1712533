package transport

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/pendergraft/srcverify/internal/explorers"
)

const formContentType = "application/x-www-form-urlencoded"

// PayloadBuilder renders a verification request in one explorer's wire shape.
type PayloadBuilder interface {
	Build(req VerificationRequest) url.Values
	// Header returns the headers for the encoded body, Content-Type included.
	Header() http.Header
}

// BuilderFor returns the payload builder for an explorer shape.
func BuilderFor(shape explorers.Shape) PayloadBuilder {
	if shape == explorers.ShapeBlockscout {
		return blockscoutPayload{}
	}
	return etherscanPayload{}
}

func commonFields(req VerificationRequest) url.Values {
	v := url.Values{}
	v.Set("apikey", req.APIKey)
	v.Set("module", "contract")
	v.Set("action", ActionVerify)
	v.Set("codeformat", "solidity-standard-json-input")
	v.Set("contractaddress", req.Address)
	v.Set("contractname", req.ContractIdentifier())
	v.Set("compilerversion", "v"+req.CompilerVersion)
	// The explorer API spells it this way.
	v.Set("constructorArguements", req.ConstructorArgs)
	v.Set("sourceCode", req.SourceCode)
	return v
}

type etherscanPayload struct{}

func (etherscanPayload) Build(req VerificationRequest) url.Values {
	v := commonFields(req)
	optimizationUsed := "0"
	if req.OptimizationUsed {
		optimizationUsed = "1"
	}
	v.Set("optimizationUsed", optimizationUsed)
	v.Set("runs", strconv.Itoa(req.Runs))
	if req.LicenseType != 0 {
		v.Set("licenseType", strconv.Itoa(req.LicenseType))
	}
	return v
}

func (etherscanPayload) Header() http.Header {
	return formHeader()
}

type blockscoutPayload struct{}

func (blockscoutPayload) Build(req VerificationRequest) url.Values {
	return commonFields(req)
}

func (blockscoutPayload) Header() http.Header {
	return formHeader()
}

func formHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", formContentType)
	return h
}
