package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so a crafted client address
// cannot land in another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
