package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-key"))
	require.NoError(t, err)
	return s
}

func TestUserID(t *testing.T) {
	t.Parallel()

	withSub := sign(t, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "idp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	// Expiry is not enforced when decoding unverified.
	expired := sign(t, jwt.RegisteredClaims{
		Subject:   "user-old",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	noSub := sign(t, jwt.RegisteredClaims{Issuer: "idp"})

	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid bearer", "Bearer " + withSub, "user-123", true},
		{"expired still decodes", "Bearer " + expired, "user-old", true},
		{"empty header", "", "", false},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", false},
		{"lowercase bearer", "bearer " + withSub, "", false},
		{"bearer without token", "Bearer ", "", false},
		{"garbage token", "Bearer not.a.jwt", "", false},
		{"missing sub", "Bearer " + noSub, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UserID(tt.header)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
