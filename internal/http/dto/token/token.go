// Package token contiene los DTOs del servicio de emisión de tokens.
package token

import (
	"time"

	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
)

// IssueRequest es el body de POST /auth/token.
type IssueRequest struct {
	TenantClass string `json:"tenantClass"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// IssueResult es lo que devuelve el service. TokenPersisted=false indica que
// la write-back al servicio de dominio falló; el token igual es válido.
type IssueResult struct {
	Token          jwtx.Token
	TenantClass    string
	TokenPersisted bool
}

// IssueResponse es la respuesta JSON de POST /auth/token.
type IssueResponse struct {
	Token          string    `json:"token"`
	TokenType      string    `json:"tokenType"`
	ExpiresAt      time.Time `json:"expiresAt"`
	ExpiresIn      int64     `json:"expiresIn"`
	TokenPersisted bool      `json:"tokenPersisted"`
}
