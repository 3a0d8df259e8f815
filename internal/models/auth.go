package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access-token payload issued by the identity provider.
// The email is the principal key; roles and scopes are resolved from the
// roster stores, never trusted from the token.
type JWTClaims struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}
