package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range Classes {
		for _, u := range []string{"alice", "bob.smith", "x", "user@example.com", "ÑANDÚ"} {
			ns := Encode(c, u)
			gotC, gotU, err := Decode(ns)
			require.NoError(t, err, ns)
			require.Equal(t, c, gotC)
			require.Equal(t, u, gotU)
		}
	}
}

func TestEncode_Format(t *testing.T) {
	require.Equal(t, "ADMIN_alice", Encode(TenantAdmin, "alice"))
	require.Equal(t, "USER_bob", Encode(TenantUser, "bob"))
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"alice",
		"ADMIN",
		"ADMIN_",
		"_alice",
		"GUEST_alice",
		"admin_alice", // la clase codificada es case-sensitive
	}
	for _, in := range cases {
		_, _, err := Decode(in)
		if !errors.Is(err, ErrMalformedIdentity) {
			t.Fatalf("Decode(%q): expected ErrMalformedIdentity, got %v", in, err)
		}
	}
}

func TestDecode_SplitsOnFirstSeparator(t *testing.T) {
	// usernames con "_" son ambiguos; el decode toma el primer separador
	c, u, err := Decode("USER_bob_jr")
	require.NoError(t, err)
	require.Equal(t, TenantUser, c)
	require.Equal(t, "bob_jr", u)
}

func TestParseTenantClass(t *testing.T) {
	c, err := ParseTenantClass(" admin ")
	require.NoError(t, err)
	require.Equal(t, TenantAdmin, c)

	c, err = ParseTenantClass("USER")
	require.NoError(t, err)
	require.Equal(t, TenantUser, c)

	_, err = ParseTenantClass("guest")
	require.ErrorIs(t, err, ErrUnknownTenantClass)

	_, err = ParseTenantClass("")
	require.ErrorIs(t, err, ErrUnknownTenantClass)
}

func TestValidateUsername(t *testing.T) {
	require.NoError(t, ValidateUsername("alice"))
	require.ErrorIs(t, ValidateUsername(""), ErrInvalidUsername)
	require.ErrorIs(t, ValidateUsername("   "), ErrInvalidUsername)
	require.ErrorIs(t, ValidateUsername("bob_jr"), ErrInvalidUsername)
}
