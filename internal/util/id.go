package util

import (
	"crypto/rand"
	"encoding/base64"
)

// NewLinkToken returns a URL-safe capability token for public form links.
func NewLinkToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}
