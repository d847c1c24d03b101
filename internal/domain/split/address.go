// Package split contains the payment-split resolution rules: fee precedence,
// recipient synthesis, misconfiguration detection and the write-path decision
// machine. Everything here is pure; persistence and brand-config lookups are
// behind interfaces implemented in infrastructure.
package split

import (
	"regexp"
	"strings"
)

var hexAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsHexAddress reports whether s is a 0x-prefixed 40-hex-digit address.
// Leading/trailing whitespace is ignored.
func IsHexAddress(s string) bool {
	return hexAddressPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeAddress trims and lowercases an address. Addresses are always
// persisted and compared in lowercase form.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FirstHexAddress returns the first candidate that is a valid hex address,
// normalized, or "" when none qualify.
func FirstHexAddress(candidates ...string) string {
	for _, c := range candidates {
		if IsHexAddress(c) {
			return NormalizeAddress(c)
		}
	}
	return ""
}

// FirstNonEmpty returns the first candidate with content after trimming,
// lowercased, or "".
func FirstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return strings.ToLower(strings.TrimSpace(c))
		}
	}
	return ""
}
