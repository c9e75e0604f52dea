package store

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialExpired reports whether token is a JWT whose exp has passed.
// Opaque tokens and JWTs without exp are left for the server to judge. The
// signature is not checked; the client cannot verify it.
func credentialExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now)
}
