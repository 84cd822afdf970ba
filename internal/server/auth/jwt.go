// Package auth implements the token codec: signing and verification of the
// access and refresh JWTs. Access and refresh tokens are signed with
// independent secrets so compromise of one does not expose the other.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/moviemate/authkeeper/internal/common"
)

// AccessClaims is the claim set carried by access tokens: the subject user id
// plus their email. Access tokens are stateless; nothing about them is
// persisted server-side.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// RefreshClaims is the claim set carried by refresh tokens. The token id
// (jti) lives in RegisteredClaims.ID; FamilyID groups all tokens descended
// from one login.
type RefreshClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	FamilyID string `json:"fid"`
}

// GenerateAccessToken signs a short-lived access token for the user.
func GenerateAccessToken(userID, email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email: email,
	})
	return token.SignedString(secretKey)
}

// GenerateRefreshToken signs a long-lived refresh token carrying the jti and
// family id that tie it to its server-side RefreshRecord.
func GenerateRefreshToken(userID, email, jti, familyID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email:    email,
		FamilyID: familyID,
	})
	return token.SignedString(secretKey)
}

// ParseAccessToken verifies signature and expiry and returns the claims.
func ParseAccessToken(tokenString string, secretKey []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(tokenString, secretKey, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken verifies signature and expiry and returns the claims.
// Callers must still check that jti and fid are present: a structurally
// valid token is not necessarily one we issued records for.
func ParseRefreshToken(tokenString string, secretKey []byte) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenString, secretKey, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func parse(tokenString string, secretKey []byte, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
