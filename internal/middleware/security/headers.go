package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers for the JSON API.
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
}

// DefaultHeadersConfig returns defaults suited to an API that never serves
// HTML.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'none'; frame-ancestors 'none'",

		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		CrossOriginResource: "same-origin",
	}
}

// Middleware applies the configured headers to every response.
func Middleware(config HeadersConfig) func(http.Handler) http.Handler {
	hsts := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if config.CSP != "" {
				h.Set("Content-Security-Policy", config.CSP)
			}
			if config.HSTSMaxAge > 0 && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			if config.XFrameOptions != "" {
				h.Set("X-Frame-Options", config.XFrameOptions)
			}
			if config.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", config.XContentTypeOptions)
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.CrossOriginResource != "" {
				h.Set("Cross-Origin-Resource-Policy", config.CrossOriginResource)
			}
			next.ServeHTTP(w, r)
		})
	}
}
