package edge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/bizgate/internal/jwt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSigner(t *testing.T, c *clock) *jwt.Signer {
	t.Helper()
	s, err := jwt.NewSigner(jwt.SignerConfig{Secret: testSecret, TTL: 30 * time.Minute, Now: c.now})
	require.NoError(t, err)
	return s
}

func TestAllowList_SubstringContainment(t *testing.T) {
	a := NewAllowList([]string{"/auth/token", "/user/client-client/", "", "  "})
	require.Equal(t, []string{"/auth/token", "/user/client-client/"}, a.Entries())

	require.True(t, a.Allowed("/auth/token"))
	require.True(t, a.Allowed("/v1/auth/token/extra"))
	require.True(t, a.Allowed("/user/client-client/anything/below"))
	require.True(t, a.Allowed("/prefix/user/client-client/x"))
	require.False(t, a.Allowed("/user/client-client"))
	require.False(t, a.Allowed("/clients"))
	require.False(t, a.Allowed("/"))

	var nilList *AllowList
	require.False(t, nilList.Allowed("/auth/token"))
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer   abc", "abc", true},
		{"  BEARER abc  ", "abc", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := BearerToken(r)
		require.Equal(t, tc.ok, ok, tc.header)
		require.Equal(t, tc.want, got, tc.header)
	}
}

// countingVerifier cuenta llamadas; si err != nil siempre rechaza.
type countingVerifier struct {
	calls atomic.Int32
	err   error
}

func (v *countingVerifier) Verify(context.Context, string) (Principal, error) {
	v.calls.Add(1)
	if v.err != nil {
		return Principal{}, v.err
	}
	return Principal{Subject: "alice"}, nil
}

func TestFilter_AllowListedSkipsVerification(t *testing.T) {
	v := &countingVerifier{err: ErrUnauthorized}
	f := NewFilter(NewAllowList([]string{"/auth/token"}), v)

	for _, h := range []string{"", "Bearer garbage"} {
		r := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
		if h != "" {
			r.Header.Set("Authorization", h)
		}
		d, _, err := f.Decide(r.Context(), r)
		require.NoError(t, err)
		require.Equal(t, AllowedPublic, d)
	}
	require.Zero(t, v.calls.Load())
}

func TestFilter_ProtectedPath(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newSigner(t, c)
	f := NewFilter(NewAllowList(DefaultAllowList), NewLocalVerifier(s))

	tok, err := s.Sign("alice", 0, jwt.WithTenantClass("ADMIN"))
	require.NoError(t, err)

	decide := func(auth string) (Decision, Principal, error) {
		r := httptest.NewRequest(http.MethodGet, "/clients", nil)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		return f.Decide(r.Context(), r)
	}

	d, p, err := decide("Bearer " + tok.Raw)
	require.NoError(t, err)
	require.Equal(t, AllowedToken, d)
	require.True(t, d.Allowed())
	require.Equal(t, Principal{Subject: "alice", TenantClass: "ADMIN"}, p)

	d, _, err = decide("")
	require.ErrorIs(t, err, ErrMissingAuthHeader)
	require.Equal(t, RejectedMissing, d)
	require.False(t, d.Allowed())

	d, _, err = decide("Bearer not-a-jwt")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, RejectedInvalid, d)

	c.t = c.t.Add(31 * time.Minute)
	d, _, err = decide("Bearer " + tok.Raw)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, jwt.ErrExpired)
	require.Equal(t, RejectedInvalid, d)
}

func TestRemoteVerifier(t *testing.T) {
	var gotToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultValidatePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		tok := r.URL.Query().Get("token")
		gotToken.Store(tok)
		switch tok {
		case "good+token/=":
			w.Header().Set(HeaderSubject, "alice")
			w.Header().Set(HeaderTenantClass, "ADMIN")
			_, _ = io.WriteString(w, "Token is valid")
		case "slow":
			time.Sleep(500 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v, err := NewRemoteVerifier(RemoteVerifierConfig{BaseURL: srv.URL + "/", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), "good+token/=")
	require.NoError(t, err)
	require.Equal(t, "good+token/=", gotToken.Load())
	require.Equal(t, Principal{Subject: "alice", TenantClass: "ADMIN"}, p)

	_, err = v.Verify(context.Background(), "bad")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "slow")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Verify(ctx, "good+token/=")
	require.True(t, errors.Is(err, ErrUnauthorized))
}

func TestRemoteVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	v, err := NewRemoteVerifier(RemoteVerifierConfig{BaseURL: base, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewRemoteVerifier(RemoteVerifierConfig{BaseURL: "::bad"})
	require.Error(t, err)
}

func TestRouter_LongestPrefix(t *testing.T) {
	backend := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Backend", name)
			w.Header().Set("X-Seen-Subject", r.Header.Get(HeaderSubject))
			w.Header().Set("X-Seen-Forwarded", r.Header.Get(HeaderForwarded))
			_, _ = io.WriteString(w, r.URL.Path)
		}))
	}
	a, b := backend("a"), backend("b")
	defer a.Close()
	defer b.Close()

	rt, err := NewRouter([]Route{
		{Prefix: "/clients", Upstream: a.URL},
		{Prefix: "clients/admin", Upstream: b.URL},
	}, nil)
	require.NoError(t, err)

	do := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(HeaderSubject, "alice")
		rt.ServeHTTP(rr, req)
		return rr
	}

	rr := do("/clients/42")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "a", rr.Header().Get("X-Backend"))
	require.Equal(t, "/clients/42", rr.Body.String())
	require.Equal(t, "alice", rr.Header().Get("X-Seen-Subject"))
	require.Equal(t, "bizgate", rr.Header().Get("X-Seen-Forwarded"))

	rr = do("/clients/admin/7")
	require.Equal(t, "b", rr.Header().Get("X-Backend"))

	rr = do("/unknown")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "ROUTE_NOT_FOUND")

	route, ok := rt.Match("/clients/admin")
	require.True(t, ok)
	require.Equal(t, "/clients/admin", route.Prefix)
}

func TestRouter_UpstreamDownIs502(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rt, err := NewRouter([]Route{{Prefix: "/", Upstream: base}}, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	rt.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "BAD_GATEWAY")
}

func TestNewRouter_Invalid(t *testing.T) {
	_, err := NewRouter([]Route{{Prefix: "/a", Upstream: "nohost"}}, nil)
	require.Error(t, err)
	_, err = NewRouter([]Route{{Prefix: "/a", Upstream: "http://x"}, {Prefix: "a", Upstream: "http://y"}}, nil)
	require.Error(t, err)
}
