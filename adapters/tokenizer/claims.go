package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"` // ID of the refresh token issued alongside
}

// RefreshClaims carry the grant id next to the standard claims.
// The JWT ID of a refresh token is its RefreshID.
type RefreshClaims struct {
	jwt.RegisteredClaims
	GrantID string `json:"gid"`
}
