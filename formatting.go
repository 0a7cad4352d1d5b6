package main

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTokens renders a token count the way the status bar and the update
// command's usage summary do: exact under 1000, one decimal place with a k/m suffix above
// that, trimming a trailing ".0".
func FormatTokens(n int64) string {
	switch {
	case n < 1000:
		return strconv.FormatInt(n, 10)
	case n < 1_000_000:
		return scaledSuffix(n, 1000, "k")
	default:
		return scaledSuffix(n, 1_000_000, "m")
	}
}

func scaledSuffix(n, unit int64, suffix string) string {
	whole := n / unit
	frac := (n % unit) * 10 / unit
	s := fmt.Sprintf("%d.%d", whole, frac)
	s = strings.TrimSuffix(s, ".0")
	return s + suffix
}
