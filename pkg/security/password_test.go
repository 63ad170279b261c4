package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

var fastParams = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newFastHasher(t *testing.T, cfg config.PasswordConfig) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newFastHasher(t, fastParams)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.Regexp(t, `^\$argon2id\$v=19\$m=64,t=1,p=1\$[A-Za-z0-9+/]+\$[A-Za-z0-9+/]+$`, hash)

	ok, stale, err := h.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, stale)

	ok, _, err = h.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyFlagsOldParameters(t *testing.T) {
	old := newFastHasher(t, fastParams)
	hash, err := old.Hash("pw")
	require.NoError(t, err)

	stronger := fastParams
	stronger.ArgonTime = 2
	ok, stale, err := newFastHasher(t, stronger).Verify("pw", hash)
	require.NoError(t, err)
	assert.True(t, ok, "old hashes keep verifying")
	assert.True(t, stale)
}

func TestHashUsesRandomSalt(t *testing.T) {
	h := newFastHasher(t, fastParams)
	a, err := h.Hash("pw")
	require.NoError(t, err)
	b, err := h.Hash("pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestParamsAreClamped(t *testing.T) {
	p := ParamsFromConfig(config.PasswordConfig{ArgonMemoryKB: 1, ArgonParallelism: 1000, ArgonKeyLen: 4096})
	assert.Equal(t, ArgonParams{Memory: 8, Time: 1, Parallelism: 255, SaltLen: 8, KeyLen: 64}, p)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	h := newFastHasher(t, fastParams)
	for _, encoded := range []string{
		"",
		"$bcrypt$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1,q=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$!!$aGFzaA",
		"x$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, _, err := h.Verify("pw", encoded)
		assert.ErrorIs(t, err, ErrInvalidHash, encoded)
	}
}

func TestDecoyNeverPanics(t *testing.T) {
	h := newFastHasher(t, fastParams)
	h.Decoy("anything")
	h.Decoy("")
}
