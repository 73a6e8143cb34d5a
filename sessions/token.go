package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT access token without verifying its
// signature. The portal never trusts the claim for authorization, it only uses
// it to size cookie and storage lifetimes. Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
