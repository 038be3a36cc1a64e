package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
)

// setBaseHeaders sets the headers shared by API responses and pages.
func setBaseHeaders(w http.ResponseWriter, serverURL string) {
	h := w.Header()

	// Prevent clickjacking and MIME sniffing
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")

	// Don't leak the resource path to the redirect target
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// Signatures and links must never be cached
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
}

// SetSecurityHeaders sets security headers on API responses.
// The CSP forbids every resource type since API responses are never rendered.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	setBaseHeaders(w, serverURL)
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
}

// SetPageSecurityHeaders sets security headers on HTML pages.
// Inline script and style are only allowed with the per-response nonce, and
// fetch() may only reach this origin.
func SetPageSecurityHeaders(w http.ResponseWriter, serverURL, nonce string) {
	setBaseHeaders(w, serverURL)
	w.Header().Set("Content-Security-Policy", fmt.Sprintf(
		"default-src 'none'; script-src 'nonce-%s'; style-src 'nonce-%s'; connect-src 'self'; img-src 'self' data:; base-uri 'none'; form-action 'none'; frame-ancestors 'none'",
		nonce, nonce))
}

// GenerateNonce returns a fresh CSP nonce: 144 random bits in unpadded
// URL-safe base64, so it needs no escaping inside HTML attributes.
// It panics if the system random number generator fails.
func GenerateNonce() string {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
