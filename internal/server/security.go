package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/livescript/livescript/internal/httputil"
)

type SecurityConfig struct {
	BaseURL         string
	StorageEndpoint string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	storageSuffix := ""
	if cfg.StorageEndpoint != "" {
		storageSuffix = " " + cfg.StorageEndpoint
	}
	connectSrc := "'self'" + websocketOrigin(cfg.BaseURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), autoplay=(self)")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:; media-src 'self' blob:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src %s; frame-ancestors 'self';",
				storageSuffix, nonce, nonce, connectSrc,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// websocketOrigin returns the ws(s) origin matching baseURL, prefixed with a
// space, or "" when baseURL is not absolute. Some browsers do not treat
// 'self' as covering websocket schemes.
func websocketOrigin(baseURL string) string {
	host, secure := strings.CutPrefix(baseURL, "https://")
	if !secure {
		var ok bool
		host, ok = strings.CutPrefix(baseURL, "http://")
		if !ok {
			return ""
		}
	}
	host, _, _ = strings.Cut(host, "/")
	if host == "" {
		return ""
	}
	if secure {
		return " wss://" + host
	}
	return " ws://" + host
}
