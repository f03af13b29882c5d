package auth

import (
	"testing"
	"time"

	"safemap/models"

	"github.com/golang-jwt/jwt/v5"
)

func TestCanCreateReport(t *testing.T) {
	testCases := []struct {
		name            string
		requireVerified bool
		verified        bool
		want            bool
	}{
		{
			name:            "open policy, unverified user",
			requireVerified: false,
			verified:        false,
			want:            true,
		}, {
			name:            "open policy, verified user",
			requireVerified: false,
			verified:        true,
			want:            true,
		}, {
			name:            "verified-only policy, unverified user",
			requireVerified: true,
			verified:        false,
			want:            false,
		}, {
			name:            "verified-only policy, verified user",
			requireVerified: true,
			verified:        true,
			want:            true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gate := Gate{RequireVerifiedContributor: tc.requireVerified}
			profile := models.UserProfile{UID: "u1", VerifiedContributor: tc.verified}

			// Pure function: repeated calls with the same input must agree.
			for i := 0; i < 3; i++ {
				if got := gate.CanCreateReport(profile); got != tc.want {
					t.Errorf("CanCreateReport() call %d = %v, want %v", i, got, tc.want)
				}
			}

			session := Session{UserID: profile.UID, Profile: profile}
			if got := session.CanCreate(gate); got != tc.want {
				t.Errorf("Session.CanCreate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestValidateToken(t *testing.T) {
	v := NewValidator("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	uid, err := v.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if uid != "user-42" {
		t.Errorf("ValidateToken() uid = %q, want %q", uid, "user-42")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := NewValidator("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.ValidateToken(tokenString); err == nil {
		t.Error("ValidateToken() accepted an expired token")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	v := NewValidator("test-secret")

	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.ValidateToken(tokenString); err == nil {
		t.Error("ValidateToken() accepted a token signed with the wrong secret")
	}
}

func TestValidateTokenRejectsMissingSubject(t *testing.T) {
	v := NewValidator("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.ValidateToken(tokenString); err == nil {
		t.Error("ValidateToken() accepted a token without a subject")
	}
}
