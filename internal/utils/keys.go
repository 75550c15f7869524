// Package utils holds small shared helpers.
package utils

import (
	"strconv"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// IsBase58 reports whether the value decodes as a non-empty base58 string,
// the encoding used for member public keys.
func IsBase58(value string) bool {
	if value == "" {
		return false
	}
	return len(base58.Decode(value)) > 0
}

// ParseInt64 parses a decimal int64, used by the HTTP layer for path
// parameters.
func ParseInt64(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}
