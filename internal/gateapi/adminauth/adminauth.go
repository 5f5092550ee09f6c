// Package adminauth guards the Gatekeeper's admin surface (lock,
// unlock, liquidate, calendar) with a bearer JWT, HS256-signed and
// verified against a single shared secret. Grounded on
// chidi150c-coinbase's use of jwt.MapClaims/jwt.NewWithClaims to mint
// request credentials, adapted here to parse-and-verify an incoming
// token instead of minting an outgoing one.
package adminauth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// IssueToken mints an admin token for out-of-band distribution (e.g. a
// one-off CLI command an operator runs to get a token for curl/the
// dashboard). ttl of zero means "no expiry" is not supported; callers
// must pick a duration.
func IssueToken(secret string, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Middleware requires a valid "Authorization: Bearer <token>" header
// signed with secret. Requests failing verification get 401 before
// reaching any admin handler.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired admin token"})
			return
		}

		c.Next()
	}
}
