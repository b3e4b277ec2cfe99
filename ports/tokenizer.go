package ports

import "github.com/layer-3/pricewatch/core"

// Tokenizer converts between grants and tokens
type Tokenizer interface {
	GrantToAccessToken(grant *core.Grant) (string, error)
	AccessTokenToGrant(token string) (*core.Grant, error)
	GrantToRefreshToken(grant *core.Grant) (string, error)
	RefreshTokenToGrant(token string) (*core.Grant, error)
}
