// Package checksum computes the content digests used as map versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest for use as an HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether tag names the current version of data. Tags may
// be bare digests or quoted entity tags, optionally weak. An empty tag and
// "*" match any content.
func Matches(data []byte, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`) == Sum(data)
}
