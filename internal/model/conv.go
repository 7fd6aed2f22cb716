package model

import (
	"strconv"
	"strings"
)

const labelPrefix = "T-"

// Label formats the ordinal tick label used by feeds, e.g. Label(31) = "T-31".
func Label(n int) string {
	return labelPrefix + strconv.Itoa(n)
}

// ParseLabel returns the ordinal of a "T-n" label.
func ParseLabel(s string) (int, bool) {
	if !strings.HasPrefix(s, labelPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(labelPrefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}
