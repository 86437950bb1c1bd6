package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = &Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPassphraseRoundTrip(t *testing.T) {
	encoded, err := HashPassphrase("joyeux noël", testParams)
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$")

	ok, err := VerifyPassphrase("joyeux noël", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassphrase("joyeux noel", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassphraseRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassphrase("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassphrase("x", "$argon2id$v=1$m=1,t=1,p=1$AAAA$AAAA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestTokenRoundTrip(t *testing.T) {
	require.NoError(t, Init(time.Hour))

	player := uuid.New()
	token, err := CreateToken(Identity{PlayerID: player})
	require.NoError(t, err)

	id, err := Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, player, id.PlayerID)
	assert.False(t, id.Admin)

	adminToken, err := CreateToken(Identity{PlayerID: player, Admin: true})
	require.NoError(t, err)
	id, err = Authenticate(adminToken)
	require.NoError(t, err)
	assert.True(t, id.Admin)
}

func TestAuthenticateRejectsForeignKey(t *testing.T) {
	require.NoError(t, Init(0))
	token, err := CreateToken(Identity{PlayerID: uuid.New()})
	require.NoError(t, err)

	// rotate keys; the old token no longer verifies
	require.NoError(t, Init(0))
	_, err = Authenticate(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Authenticate("garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFromRequest(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	player := uuid.New()
	token, err := CreateToken(Identity{PlayerID: player})
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/arena/room", nil)
		r.Header.Set("Cookie", CookieName+"="+token)
		id, err := FromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, player, id.PlayerID)
	})

	t.Run("bearer", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/arena/room", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		id, err := FromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, player, id.PlayerID)
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/arena/room", nil)
		_, err := FromRequest(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
