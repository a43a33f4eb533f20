package token

import (
	svc "github.com/dropDatabas3/bizgate/internal/http/services/token"
)

// Controllers agrupa los controllers del dominio token.
type Controllers struct {
	Token *TokenController
}

// NewControllers crea el agregador de controllers token.
func NewControllers(s svc.TokenService) *Controllers {
	return &Controllers{Token: NewTokenController(s)}
}
