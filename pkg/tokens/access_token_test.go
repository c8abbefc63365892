package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := SignAccess(42, RoleSeller, time.Minute, secret)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(tok, secret)
	require.NoError(t, err)
	require.Equal(t, RoleSeller, claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, uint(42), id)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	tok, err := SignAccess(1, RoleClient, time.Minute, secret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(tok, []byte("other"))
	require.Error(t, err)
}

func TestAccessToken_Expired(t *testing.T) {
	tok, err := SignAccess(1, RoleClient, -time.Minute, secret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(tok, secret)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := AccessClaims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(tok, secret)
	require.Error(t, err)
}

func TestUserID_BadSubject(t *testing.T) {
	c := AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}}
	_, err := c.UserID()
	require.ErrorIs(t, err, ErrBadSubject)
}
