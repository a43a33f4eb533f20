package password

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// params baratos para tests
var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestArgon2id_HashVerify(t *testing.T) {
	t.Parallel()
	h, err := Hash(fast, "correct-pw")
	require.NoError(t, err)
	require.Contains(t, h, "$argon2id$v=19$m=1024,t=1,p=1$")

	require.True(t, Verify("correct-pw", h))
	require.False(t, Verify("wrong-pw", h))
	require.False(t, Verify("", h))
}

func TestArgon2id_SaltIsRandom(t *testing.T) {
	a, err := Hash(fast, "pw")
	require.NoError(t, err)
	b, err := Hash(fast, "pw")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestBcrypt_HashVerify(t *testing.T) {
	t.Parallel()
	h, err := HashBcrypt("correct-pw", bcrypt.MinCost)
	require.NoError(t, err)

	require.True(t, Verify("correct-pw", h))
	require.False(t, Verify("wrong-pw", h))
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	require.ErrorIs(t, err, ErrEmptyPassword)
	_, err = HashBcrypt("", bcrypt.MinCost)
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_UnknownOrCorrupt(t *testing.T) {
	for _, stored := range []string{
		"",
		"plaintext",
		"{noop}secret",
		"$argon2id$v=19$m=1024,t=1,p=1$",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=1024,t=1,p=1$***$ZGs",
	} {
		require.False(t, Verify("secret", stored), stored)
	}
}

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MinLength: 10, RequireUpper: true, RequireDigit: true}

	ok, reasons := p.Validate("short")
	require.False(t, ok)
	require.Contains(t, reasons, "too_short")
	require.Contains(t, reasons, "missing_upper")
	require.Contains(t, reasons, "missing_digit")

	ok, reasons = p.Validate("LongEnough1")
	require.True(t, ok)
	require.Empty(t, reasons)
}

func TestDummyHash_ParsesButNeverMatches(t *testing.T) {
	for _, pw := range []string{"correct-pw", "bizgate-dummy", "x"} {
		require.False(t, Verify(pw, DummyHash))
	}
	// mismo esquema que los hashes reales: paga el costo argon2id
	require.Contains(t, DummyHash, "$argon2id$v=19$m=65536,t=3,p=1$")
}
