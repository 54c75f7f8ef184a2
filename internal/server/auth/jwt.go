// Package auth issues and verifies the credentials handed out by the
// directory: short-lived HS256 JWT access tokens for API callers and
// opaque auth tokens attached to freshly created accounts.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/workdeck/workdeck/internal/common"
)

// Claims carries the registered claims plus the user identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64
}

// GenerateToken mints a signed HS256 token for userID that expires after
// validity.
func GenerateToken(userID int64, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})

	return token.SignedString(secretKey)
}

// GetUserIDFromToken verifies tokenString and returns the embedded user id.
// Expired tokens yield common.ErrTokenExpired; any other verification
// failure yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// NewAuthToken returns a fresh opaque token value. The validity window is
// not encoded in the token itself; it is checked against configuration at
// verification time.
func NewAuthToken() string {
	return uuid.NewString()
}
