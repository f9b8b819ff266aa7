package util

import (
	"strconv"
	"strings"
)

// Plural returns singular when n == 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// JoinInts renders values as a comma-separated list ("1, 2, 3").
func JoinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}
