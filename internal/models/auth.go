package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload. Authorization decisions use
// the caller's stored profile, not a role embedded in the token.
type JWTClaims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}
