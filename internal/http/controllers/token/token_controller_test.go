package token

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/bizgate/internal/edge"
	dto "github.com/dropDatabas3/bizgate/internal/http/dto/token"
	svc "github.com/dropDatabas3/bizgate/internal/http/services/token"
	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
)

type fakeService struct {
	issueErr error
	got      dto.IssueRequest
}

func (f *fakeService) IssueToken(_ context.Context, in dto.IssueRequest) (*dto.IssueResult, error) {
	f.got = in
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return &dto.IssueResult{
		Token:          jwtx.Token{Raw: "signed.jwt.value", Subject: in.Username, ExpiresAt: time.Date(2030, 1, 1, 0, 30, 0, 0, time.UTC)},
		TenantClass:    in.TenantClass,
		TokenPersisted: false,
	}, nil
}

func (f *fakeService) ValidateToken(_ context.Context, raw string) (*jwtx.Claims, error) {
	if raw != "good" {
		return nil, jwtx.ErrInvalidSignature
	}
	return &jwtx.Claims{TenantClass: "ADMIN", RegisteredClaims: jwtv5.RegisteredClaims{Subject: "alice"}}, nil
}

func newController(f *fakeService) *TokenController {
	c := NewTokenController(f)
	c.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestIssue_OK(t *testing.T) {
	f := &fakeService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"tenantClass":"ADMIN","username":"alice","password":"correct-pw"}`))

	newController(f).Issue(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, dto.IssueRequest{TenantClass: "ADMIN", Username: "alice", Password: "correct-pw"}, f.got)

	var resp dto.IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "signed.jwt.value", resp.Token)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64(1800), resp.ExpiresIn)
	require.False(t, resp.TokenPersisted)
}

func TestIssue_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{"username":`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"missing fields", `{}`, svc.ErrMissingFields, http.StatusBadRequest, "MISSING_FIELDS"},
		{"invalid access", `{"tenantClass":"USER","username":"bob","password":"x"}`, svc.ErrInvalidAccess, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"upstream down", `{"tenantClass":"USER","username":"bob","password":"x"}`, svc.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"signer broke", `{"tenantClass":"USER","username":"bob","password":"x"}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(tc.body))
			newController(&fakeService{issueErr: tc.err}).Issue(rec, req)

			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestIssue_UpstreamDownSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{}`))
	newController(&fakeService{issueErr: svc.ErrUpstreamUnavailable}).Issue(rec, req)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestValidate(t *testing.T) {
	c := newController(&fakeService{})

	rec := httptest.NewRecorder()
	c.Validate(rec, httptest.NewRequest(http.MethodGet, "/auth/validate?token=good", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ValidMessage, rec.Body.String())
	require.Equal(t, "alice", rec.Header().Get(edge.HeaderSubject))
	require.Equal(t, "ADMIN", rec.Header().Get(edge.HeaderTenantClass))

	rec = httptest.NewRecorder()
	c.Validate(rec, httptest.NewRequest(http.MethodGet, "/auth/validate?token=bad", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", errorCode(t, rec))
	require.Empty(t, rec.Header().Get(edge.HeaderSubject))

	rec = httptest.NewRecorder()
	c.Validate(rec, httptest.NewRequest(http.MethodGet, "/auth/validate", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_MISSING", errorCode(t, rec))
}
