package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikroy01/video-chat/config"
)

const testSecret = "test-secret"

func testGateway() *Gateway {
	return NewGateway(&config.AuthConfig{
		JWTSecret:       testSecret,
		TokenQueryParam: "token",
		BanListKey:      "user:banned",
	}, nil)
}

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(userID string) *Claims {
	return &Claims{
		Alias:       "ShyPanda42",
		Institution: "State University",
		Approved:    true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestGateway_Authenticate_Valid(t *testing.T) {
	g := testGateway()
	token := signToken(t, testSecret, validClaims("user-1"))

	id, err := g.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "ShyPanda42", id.Alias)
	assert.Equal(t, "State University", id.Institution)
}

func TestGateway_Authenticate_Refusals(t *testing.T) {
	g := testGateway()

	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	unapproved := validClaims("user-2")
	unapproved.Approved = false

	noSubject := validClaims("")

	testCases := []struct {
		name     string
		token    string
		expected error
	}{
		{
			name:     "missing token",
			token:    "",
			expected: ErrUnauthenticated,
		},
		{
			name:     "garbage token",
			token:    "not-a-jwt",
			expected: ErrUnauthenticated,
		},
		{
			name:     "wrong signing key",
			token:    signToken(t, "other-secret", validClaims("user-1")),
			expected: ErrUnauthenticated,
		},
		{
			name:     "expired token",
			token:    signToken(t, testSecret, expired),
			expected: ErrUnauthenticated,
		},
		{
			name:     "missing subject",
			token:    signToken(t, testSecret, noSubject),
			expected: ErrUnauthenticated,
		},
		{
			name:     "unapproved user",
			token:    signToken(t, testSecret, unapproved),
			expected: ErrUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authenticate(context.Background(), tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestGateway_Authenticate_RejectsNonHMAC(t *testing.T) {
	g := testGateway()

	// An unsigned token must never pass, whatever its claims say.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("user-1")).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = g.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
