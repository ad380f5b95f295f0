package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns the full md5 hex digest of the input.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// ShortHash returns the first n hex characters of the md5 digest.
// Used for content fingerprints on ingested documents (n=8) and
// audit record identifiers (n=12).
func ShortHash(input string, n int) string {
	h := HashString(input)
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}
