// Package auth consumes the external identity provider: it validates the
// provider's JWTs and applies the report-creation capability policy. It
// never manages credentials or sessions itself.
package auth

import (
	"fmt"

	"safemap/models"

	"github.com/golang-jwt/jwt/v5"
)

// Session carries the authenticated caller explicitly through request
// handling instead of ambient globals.
type Session struct {
	UserID  string
	Profile models.UserProfile
}

// CanCreate is a convenience for handlers holding a session and a gate.
func (s Session) CanCreate(gate Gate) bool {
	return gate.CanCreateReport(s.Profile)
}

// Gate decides who may create reports. Whether the verified-contributor
// flag is required differs between deployments, so it is configuration,
// not code.
type Gate struct {
	RequireVerifiedContributor bool
}

// CanCreateReport is a pure function of the profile and the configured
// policy. Read access is never gated.
func (g Gate) CanCreateReport(profile models.UserProfile) bool {
	if !g.RequireVerifiedContributor {
		return true
	}
	return profile.VerifiedContributor
}

// Validator checks identity-provider JWTs with a shared HMAC secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a token validator.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ValidateToken verifies the signature and expiry and returns the user id
// from the subject claim.
func (v *Validator) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
