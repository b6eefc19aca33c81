// internal/middleware/security.go
//
// Security-header middleware.
//
// Context
// -------
// The dashboard page is a single origin: widget markup, styles, and
// scripts are served from /widgets, and the live feed is a WebSocket on
// the same host.  The policy below allows exactly that plus the inline
// style attributes the layout engine writes on every container.
//
// Notes
// -----
// • Defaults are filled in before next.ServeHTTP; a handler may replace
//   any of them, for example a stricter CSP on one route.
// • WebSocket handshakes are left alone since the response belongs to the
//   feed.
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net/http"
	"strings"
)

// DashboardCSP is the Content-Security-Policy sent with every page.
const DashboardCSP = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; " +
	"connect-src 'self' ws: wss:; object-src 'none'; base-uri 'self'; frame-ancestors 'none'"

// securityHeaders lists the defaults in the order they are written.
var securityHeaders = [...][2]string{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Content-Security-Policy", DashboardCSP},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "same-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// Security fills in any security header the response does not set itself.
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isUpgrade(r) {
			h := w.Header()
			for _, kv := range securityHeaders {
				if h.Get(kv[0]) == "" {
					h.Set(kv[0], kv[1])
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
