// Package core holds the transaction model shared by every other package.
//
// This file contains the helpers that turn amounts into text and back.
package core

import (
	"math"
	"strconv"
	"strings"
)

// FormatAmount renders an amount with the shortest decimal representation
// that round-trips, e.g. 100 -> "100", 4.5 -> "4.5". NaN renders as "NaN".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseAmount parses a decimal amount. Text that is not a number yields NaN
// rather than an error, so a bad cell never aborts a whole import.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount(" 7 ")   -> 7
//	ParseAmount("abc")   -> NaN
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
