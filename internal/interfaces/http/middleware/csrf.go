package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/interfaces/http/dto"
)

// CSRFConfig holds configuration for the same-origin guard
type CSRFConfig struct {
	// Disable turns the check off entirely (local development only)
	Disable bool
	// TrustedOrigins lists origins allowed for state-changing requests.
	// Entries of the form "https://*.example.com" match any subdomain.
	TrustedOrigins []string
	// Logger for rejected requests
	Logger *zap.Logger
}

// normalizeLoopback maps 127.0.0.1 to localhost so both spellings of the
// local origin compare equal.
func normalizeLoopback(s string) string {
	s = strings.Replace(s, "//127.0.0.1", "//localhost", 1)
	return strings.Replace(s, "127.0.0.1:", "localhost:", 1)
}

// requestOrigin reconstructs the origin of the incoming request
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return normalizeLoopback(scheme + "://" + c.Request.Host)
}

// matchesTrusted reports whether the value matches a trusted origin,
// including "https://*." wildcard entries.
func matchesTrusted(value string, trusted []string) bool {
	for _, t := range trusted {
		if t == "" {
			continue
		}
		if value == t || strings.HasPrefix(value, t) {
			return true
		}
		if strings.HasPrefix(t, "https://*.") {
			suffix := strings.TrimPrefix(t, "https://*.")
			rest, ok := strings.CutPrefix(value, "https://")
			if ok && strings.HasSuffix(strings.SplitN(rest, "/", 2)[0], suffix) {
				return true
			}
		}
	}
	return false
}

// IsSameOrigin reports whether the request appears same-origin based on
// Origin and Referer, with allowances for proxies and trusted origins.
func IsSameOrigin(c *gin.Context, trusted []string) bool {
	urlOrigin := requestOrigin(c)
	origin := normalizeLoopback(c.GetHeader("Origin"))
	referer := c.GetHeader("Referer")
	if referer == "" {
		referer = c.GetHeader("Referrer")
	}
	referer = normalizeLoopback(referer)

	if origin != "" && origin == urlOrigin {
		return true
	}
	if referer != "" && strings.HasPrefix(referer, urlOrigin) {
		return true
	}

	// Non-browser clients often omit Origin and Referer entirely.
	if origin == "" && referer == "" {
		return true
	}

	// Behind a proxy or CDN the visible host differs from the public one.
	forwardedProto := c.GetHeader("X-Forwarded-Proto")
	forwardedHost := c.GetHeader("X-Forwarded-Host")
	if forwardedProto != "" && forwardedHost != "" {
		forwardedOrigin := forwardedProto + "://" + forwardedHost
		if origin == forwardedOrigin {
			return true
		}
		if referer != "" && strings.HasPrefix(referer, forwardedOrigin) {
			return true
		}
	}

	if origin != "" && matchesTrusted(origin, trusted) {
		return true
	}
	if referer != "" && matchesTrusted(referer, trusted) {
		return true
	}

	return false
}

// RequireCSRF enforces the same-origin guard for a state-changing request.
// Returns true when the request may proceed; otherwise it writes the raw
// bad_origin error and the caller must stop. It is a per-request call
// rather than mounted middleware because the split write path decides the
// pipeline bypass from the parsed request body.
func RequireCSRF(c *gin.Context, cfg CSRFConfig) bool {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	if cfg.Disable {
		return true
	}
	if IsSameOrigin(c, cfg.TrustedOrigins) {
		return true
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("same-origin check failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("origin", c.GetHeader("Origin")),
			zap.String("referer", c.GetHeader("Referer")),
			zap.String("host", c.Request.Host),
		)
	}
	c.AbortWithStatusJSON(http.StatusForbidden, dto.NewRawError(dto.SplitErrBadOrigin))
	return false
}
