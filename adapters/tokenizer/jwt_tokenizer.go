package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using ES256 signed JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	clock   clockwork.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer. Expiry is checked against clock.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, clock clockwork.Clock) ports.Tokenizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTTokenizer{signKey: signKey, clock: clock}
}

// GrantToAccessToken converts a Grant to an access JWT token
func (j *JWTTokenizer) GrantToAccessToken(grant *core.Grant) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(grant.AccountID, 10),
			ID:        grant.ID,
			ExpiresAt: jwt.NewNumericDate(grant.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(grant.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		RefreshID: grant.RefreshID,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// GrantToRefreshToken converts a Grant to a refresh JWT token
func (j *JWTTokenizer) GrantToRefreshToken(grant *core.Grant) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(grant.AccountID, 10),
			ID:        grant.RefreshID,
			ExpiresAt: jwt.NewNumericDate(grant.RefreshExpiry),
			IssuedAt:  jwt.NewNumericDate(grant.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceRefresh},
		},
		GrantID: grant.ID,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// AccessTokenToGrant parses an access token and returns the associated grant
func (j *JWTTokenizer) AccessTokenToGrant(tokenStr string) (*core.Grant, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", core.ErrInvalidToken)
	}

	return &core.Grant{
		ID:           claims.ID,
		AccountID:    accountID,
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
		RefreshID:    claims.RefreshID,
	}, nil
}

// RefreshTokenToGrant parses a refresh token. The AccessExpiry of the
// returned grant is zero.
func (j *JWTTokenizer) RefreshTokenToGrant(tokenStr string) (*core.Grant, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, AudienceRefresh); err != nil {
		return nil, err
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", core.ErrInvalidToken)
	}

	return &core.Grant{
		ID:            claims.GrantID,
		AccountID:     accountID,
		IssuedAt:      claims.IssuedAt.Time,
		RefreshExpiry: claims.ExpiresAt.Time,
		RefreshID:     claims.ID,
	}, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %w", core.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return core.ErrInvalidToken
	}

	return nil
}
