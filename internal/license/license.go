// Package license maps SPDX-style license identifiers to the numeric
// license codes used by Etherscan-compatible explorers.
package license

import "strings"

// Code is an explorer license type (https://etherscan.io/contract-license-types).
type Code int

// Explorer license codes.
const (
	NoLicense  Code = 1
	Unlicense  Code = 2
	MIT        Code = 3
	GPL20      Code = 4
	GPL30      Code = 5
	LGPL21     Code = 6
	LGPL30     Code = 7
	BSD2Clause Code = 8
	BSD3Clause Code = 9
	MPL20      Code = 10
	OSL30      Code = 11
	Apache20   Code = 12
	AGPL30     Code = 13
)

var codeNames = map[Code]string{
	NoLicense:  "None",
	Unlicense:  "Unlicense",
	MIT:        "MIT",
	GPL20:      "GPL-2.0",
	GPL30:      "GPL-3.0",
	LGPL21:     "LGPL-2.1",
	LGPL30:     "LGPL-3.0",
	BSD2Clause: "BSD-2-Clause",
	BSD3Clause: "BSD-3-Clause",
	MPL20:      "MPL-2.0",
	OSL30:      "OSL-3.0",
	Apache20:   "Apache-2.0",
	AGPL30:     "AGPL-3.0",
}

// String returns the short license name for the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}

// rule is one entry of the classification table. A rule whose guard matches
// ends classification even if none of its variants match.
type rule struct {
	guard    func(id string) bool
	variants []variant
}

type variant struct {
	match func(id string) bool
	code  Code
}

func contains(sub string) func(string) bool {
	return func(id string) bool { return strings.Contains(id, sub) }
}

func all(preds ...func(string) bool) func(string) bool {
	return func(id string) bool {
		for _, p := range preds {
			if !p(id) {
				return false
			}
		}
		return true
	}
}

func always(string) bool { return true }

func single(match func(string) bool, code Code) rule {
	return rule{guard: match, variants: []variant{{match: always, code: code}}}
}

// rules is evaluated in order. "agpl" and "lgpl" precede "gpl" because "gpl"
// is a substring of both.
var rules = []rule{
	single(contains("unlicensed"), Unlicense),
	single(contains("mit"), MIT),
	single(all(contains("agpl"), contains("3.0")), AGPL30),
	{
		guard: contains("lgpl"),
		variants: []variant{
			{match: contains("2.1"), code: LGPL21},
			{match: contains("3.0"), code: LGPL30},
		},
	},
	{
		guard: contains("gpl"),
		variants: []variant{
			{match: contains("2.0"), code: GPL20},
			{match: contains("3.0"), code: GPL30},
		},
	},
	single(contains("bsd-2-clause"), BSD2Clause),
	single(contains("bsd-3-clause"), BSD3Clause),
	single(all(contains("mpl"), contains("2.0")), MPL20),
	single(all(func(id string) bool { return strings.HasPrefix(id, "osl") }, contains("3.0")), OSL30),
	single(all(contains("apache"), contains("2.0")), Apache20),
}

// longNames rewrites spelled-out license names to their SPDX stem. It is
// only applied when no rule matched the identifier as given.
var longNames = strings.NewReplacer(
	"affero general public license", "agpl",
	"lesser general public license", "lgpl",
	"library general public license", "lgpl",
	"general public license", "gpl",
	"mozilla public license", "mpl",
	"open software license", "osl",
)

// Classify returns the explorer license code for identifier. The boolean is
// false when no rule produced a code.
func Classify(identifier string) (Code, bool) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if code, ok, matched := evaluate(id); matched {
		return code, ok
	}
	if long := longNames.Replace(id); long != id {
		code, ok, _ := evaluate(long)
		return code, ok
	}
	return 0, false
}

// evaluate runs the rules against id. matched reports whether any guard
// accepted id, even when none of its variants produced a code.
func evaluate(id string) (code Code, ok, matched bool) {
	for _, r := range rules {
		if !r.guard(id) {
			continue
		}
		for _, v := range r.variants {
			if v.match(id) {
				return v.code, true, true
			}
		}
		return 0, false, true
	}
	return 0, false, false
}
