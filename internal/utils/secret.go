package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint returns a short stable identifier for a secret, safe to log
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return HashString(secret)[:12]
}

// MaskSecret hides everything but the last four characters of each
// delimiter-separated segment.
func MaskSecret(secret, delimiter string) string {
	if secret == "" {
		return ""
	}
	if delimiter == "" {
		return maskSegment(secret)
	}
	parts := strings.Split(secret, delimiter)
	for i, p := range parts {
		parts[i] = maskSegment(p)
	}
	return strings.Join(parts, delimiter)
}

func maskSegment(s string) string {
	const visible = 4
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
