package jwt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeClock es un reloj manual para simular el paso del tiempo.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestSigner(t *testing.T, clk *fakeClock) *Signer {
	t.Helper()
	cfg := SignerConfig{Secret: testSecret}
	if clk != nil {
		cfg.Now = clk.Now
	}
	s, err := NewSigner(cfg)
	require.NoError(t, err)
	return s
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner(SignerConfig{})
	require.ErrorIs(t, err, ErrEmptySecret)

	s, err := NewSigner(SignerConfig{Secret: testSecret})
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, s.TTL())
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t, nil)

	for _, sub := range []string{"alice", "bob", "user@example.com"} {
		for _, ttl := range []time.Duration{time.Minute, 30 * time.Minute, 24 * time.Hour} {
			tk, err := s.Sign(sub, ttl)
			require.NoError(t, err)
			require.NotEmpty(t, tk.Raw)
			require.Equal(t, 3, strings.Count(tk.Raw, ".")+1)

			claims, err := s.Verify(tk.Raw)
			require.NoError(t, err)
			require.Equal(t, sub, claims.Subject)
			require.NotNil(t, claims.IssuedAt)
			require.NotNil(t, claims.ExpiresAt)
		}
	}
}

func TestSign_EmbedsTimesAndExtras(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestSigner(t, clk)

	tk, err := s.Sign("alice", 0, WithTenantClass("ADMIN"))
	require.NoError(t, err)
	require.Equal(t, clk.Now(), tk.IssuedAt)
	require.Equal(t, clk.Now().Add(DefaultTTL), tk.ExpiresAt)
	require.NotEmpty(t, tk.ID)

	claims, err := s.Verify(tk.Raw)
	require.NoError(t, err)
	require.Equal(t, "ADMIN", claims.TenantClass)
	require.Equal(t, tk.ID, claims.ID)
}

func TestSign_EmptySubject(t *testing.T) {
	s := newTestSigner(t, nil)
	_, err := s.Sign("  ", time.Minute)
	require.ErrorIs(t, err, ErrEmptySubject)
}

func TestSign_TwoTokensDiffer(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestSigner(t, clk)

	a, err := s.Sign("alice", time.Minute)
	require.NoError(t, err)
	b, err := s.Sign("alice", time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, a.Raw, b.Raw, "mismo segundo, jti distinto")

	_, err = s.Verify(a.Raw)
	require.NoError(t, err)
	_, err = s.Verify(b.Raw)
	require.NoError(t, err)
}

func TestVerify_Expired(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestSigner(t, clk)

	ttl := 30 * time.Minute
	tk, err := s.Sign("alice", ttl)
	require.NoError(t, err)

	clk.Advance(ttl - time.Second)
	_, err = s.Verify(tk.Raw)
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = s.Verify(tk.Raw)
	require.ErrorIs(t, err, ErrExpired)
	require.ErrorIs(t, err, ErrInvalidToken)

	clk.Advance(time.Hour)
	_, err = s.Verify(tk.Raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_MutatedSignature(t *testing.T) {
	s := newTestSigner(t, nil)
	tk, err := s.Sign("alice", time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tk.Raw, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	mutated := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = s.Verify(mutated)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	s := newTestSigner(t, nil)
	other, err := NewSigner(SignerConfig{Secret: "another-secret-another-secret-xx"})
	require.NoError(t, err)

	tk, err := other.Sign("alice", time.Minute)
	require.NoError(t, err)

	_, err = s.Verify(tk.Raw)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	s := newTestSigner(t, nil)
	for _, in := range []string{"", "abc", "a.b", "a.b.c", "!!!.???.***"} {
		_, err := s.Verify(in)
		if !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("Verify(%q): expected ErrMalformedToken, got %v", in, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	s := newTestSigner(t, nil)
	now := time.Now()
	claims := jwtv5.MapClaims{
		"sub": "alice",
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS512, claims)
	signed, err := tk.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = s.Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpAndSubject(t *testing.T) {
	s := newTestSigner(t, nil)

	noExp := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{"sub": "alice"})
	signed, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = s.Verify(signed)
	require.ErrorIs(t, err, ErrMalformedToken)

	noSub := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err = noSub.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = s.Verify(signed)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerify_IssuerEnforcedWhenConfigured(t *testing.T) {
	a, err := NewSigner(SignerConfig{Secret: testSecret, Issuer: "bizgate"})
	require.NoError(t, err)
	b, err := NewSigner(SignerConfig{Secret: testSecret, Issuer: "other"})
	require.NoError(t, err)

	tk, err := b.Sign("alice", time.Minute)
	require.NoError(t, err)
	_, err = a.Verify(tk.Raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	tk, err = a.Sign("alice", time.Minute)
	require.NoError(t, err)
	claims, err := a.Verify(tk.Raw)
	require.NoError(t, err)
	require.Equal(t, "bizgate", claims.Issuer)
}
