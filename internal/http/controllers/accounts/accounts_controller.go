// Package accounts contiene los controllers del servicio de cuentas de
// referencia: el contrato que consume directory.HTTPClient.
package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	svc "github.com/dropDatabas3/bizgate/internal/accounts"
	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/bizgate/internal/http/errors"
	"github.com/dropDatabas3/bizgate/internal/identity"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

const maxAccountBodySize = 16 * 1024

// AccountsController maneja /accounts.
type AccountsController struct {
	service *svc.Service
}

func NewAccountsController(service *svc.Service) *AccountsController {
	return &AccountsController{service: service}
}

type saveTokenRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Get maneja GET /accounts/{username}
func (c *AccountsController) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	acc, err := c.service.Get(r.Context(), username)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, acc)
}

// GetByToken maneja GET /accounts?token=
func (c *AccountsController) GetByToken(w http.ResponseWriter, r *http.Request) {
	acc, err := c.service.GetByToken(r.Context(), strings.TrimSpace(r.URL.Query().Get("token")))
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, acc)
}

// SaveToken maneja POST /accounts/token {username, token}
func (c *AccountsController) SaveToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBodySize)
	defer r.Body.Close()

	var req saveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if err := c.service.SaveToken(r.Context(), req.Username, req.Token); err != nil {
		writeAccountError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Create maneja POST /accounts
func (c *AccountsController) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBodySize)
	defer r.Body.Close()

	var req svc.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	acc, err := c.service.Create(r.Context(), req)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	// el hash no sale en la respuesta de alta
	acc.PasswordHash = ""
	httperrors.WriteJSON(w, http.StatusCreated, acc)
}

func writeAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case repository.IsNotFound(err):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("account not found"))

	case repository.IsConflict(err):
		httperrors.WriteError(w, httperrors.ErrAlreadyExists.WithDetail("username already exists"))

	case errors.Is(err, identity.ErrInvalidUsername):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))

	case repository.IsInvalidInput(err), errors.Is(err, svc.ErrEmptyToken):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))

	default:
		logger.From(r.Context()).Error("accounts request failed", logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}
