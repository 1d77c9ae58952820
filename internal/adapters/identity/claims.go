package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
)

// accessClaims is the subset of backend token claims we project into the
// domain. Signature verification stays upstream; tokens reaching this client
// were just issued to us over TLS, so an unverified parse is sufficient to
// read display fields and expiry.
type accessClaims struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Picture     string `json:"picture"`
	jwt.RegisteredClaims
}

func parseClaims(accessToken string) (accessClaims, bool) {
	if accessToken == "" {
		return accessClaims{}, false
	}
	var claims accessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return accessClaims{}, false
	}
	return claims, true
}

// userFromClaims builds the domain user projection from a token's claims.
// Returns the zero user for opaque (non-JWT) tokens.
func userFromClaims(accessToken string) domainauth.User {
	claims, ok := parseClaims(accessToken)
	if !ok {
		return domainauth.User{}
	}
	return domainauth.User{
		SubjectID:   claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhoneNumber: claims.PhoneNumber,
		PictureURL:  claims.Picture,
	}
}

// expiryFromClaims reads the absolute expiry from a token's exp claim.
func expiryFromClaims(accessToken string) time.Time {
	claims, ok := parseClaims(accessToken)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
