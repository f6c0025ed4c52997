package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// HashString generates a SHA1 hash of a string
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// HashParts hashes the parts joined by a unit separator so ("ab","c") and ("a","bc") differ
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}
