// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file extracts the caller's identity descriptor (an anonymous guest id
// and/or an externally authenticated user id) and stashes the normalized
// values in the Gin context for handlers. Authentication itself happens
// upstream; this middleware only carries already-resolved identifiers across
// the transport boundary.
//
// Sources, in precedence order:
//   - guest id:     "guest_id" cookie, then X-Guest-ID header
//   - auth user id: X-Auth-User header
//
// Values failing validation (length, charset) are dropped rather than
// rejected: an unusable identifier degrades the caller to anonymous instead of
// failing the request.
package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/veiled-app/moments-backend/internal/sysutil"
)

// Identity transport headers and cookie.
const (
	HeaderGuestID  = "X-Guest-ID"
	HeaderAuthUser = "X-Auth-User"
	CookieGuestID  = "guest_id"
)

// Context keys used internally to stash identity state.
const (
	ctxKeyGuestID    = "identity.guest"
	ctxKeyAuthUserID = "identity.auth"
)

// maxIdentifierLen caps accepted identifier length.
const maxIdentifierLen = 64

// identifierPattern is a conservative token pattern for externally supplied
// identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdentityExtractor returns a middleware that validates and stashes the
// caller's identity descriptor. Place it before Logger() so access logs carry
// the descriptor fields.
func IdentityExtractor() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieGuest, _ := c.Cookie(CookieGuestID)
		guest := sysutil.FirstNonEmpty(cookieGuest, c.GetHeader(HeaderGuestID))
		if valid(guest) {
			c.Set(ctxKeyGuestID, guest)
		}
		if auth := c.GetHeader(HeaderAuthUser); valid(auth) {
			c.Set(ctxKeyAuthUserID, auth)
		}
		c.Next()
	}
}

// GuestID returns the validated guest id stored by IdentityExtractor, or "".
func GuestID(c *gin.Context) string {
	return c.GetString(ctxKeyGuestID)
}

// AuthUserID returns the validated auth user id stored by IdentityExtractor,
// or "".
func AuthUserID(c *gin.Context) string {
	return c.GetString(ctxKeyAuthUserID)
}

func valid(s string) bool {
	return s != "" && len(s) <= maxIdentifierLen && identifierPattern.MatchString(s)
}
