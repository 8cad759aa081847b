// Package utils contains small helpers shared by the mixer packages.
package utils

import "strings"

// B64Alphabet is the alphabet used to encode small numbers as single
// characters, e.g. meter values.
const B64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// B64Encode encodes a value in the range 0..63 as one character. Values out of
// range yield an empty string.
func B64Encode(value int) string {
	if value < 0 || value >= len(B64Alphabet) {
		return ""
	}
	return B64Alphabet[value : value+1]
}

// B64Decode decodes a single character. Invalid input yields -1.
func B64Decode(value string) int {
	if len(value) != 1 {
		return -1
	}
	return strings.Index(B64Alphabet, value)
}
