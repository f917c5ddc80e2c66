package devserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const accessTokenTTL = 15 * time.Minute

// issueAccessToken signs a short-lived HS256 access token for the user.
func issueAccessToken(secret, userID, role string, now time.Time) (string, int, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", 0, err
	}
	return signed, int(accessTokenTTL.Seconds()), nil
}
