package crypto

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", hash)

	require.True(t, VerifyPassword(hash, "secret1"))
	require.False(t, VerifyPassword(hash, "secret2"))
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	first, err := HashPassword("same-input")
	require.NoError(t, err)
	second, err := HashPassword("same-input")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 64; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.Less(t, n, 1000000)
	}
}

func TestHashCodeIsDeterministic(t *testing.T) {
	require.Equal(t, HashCode("123456"), HashCode("123456"))
	require.NotEqual(t, HashCode("123456"), HashCode("654321"))
	require.Len(t, HashCode("123456"), 64)
}
