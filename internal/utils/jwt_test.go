package utils

import (
    "strings"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewAccessTokenRoundTrip(t *testing.T) {
    at, err := NewAccessToken("secret", 42, "ADMIN", 15)
    require.NoError(t, err)
    assert.NotEmpty(t, at.Token)
    assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 2*time.Second)

    tok, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
        return []byte("secret"), nil
    })
    require.NoError(t, err)
    require.True(t, tok.Valid)

    claims, ok := tok.Claims.(jwt.MapClaims)
    require.True(t, ok)
    assert.Equal(t, float64(42), claims["sub"])
    assert.Equal(t, "ADMIN", claims["role"])
}

func TestNewAccessTokenRejectsWrongSecret(t *testing.T) {
    at, err := NewAccessToken("secret", 1, "USER", 5)
    require.NoError(t, err)

    _, err = jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
        return []byte("other"), nil
    })
    assert.Error(t, err)
}

func TestNewRefreshToken(t *testing.T) {
    rt, err := NewRefreshToken(7)
    require.NoError(t, err)
    assert.Len(t, rt.Raw, 96)
    assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), rt.Exp, 2*time.Second)

    other, err := NewRefreshToken(7)
    require.NoError(t, err)
    assert.NotEqual(t, rt.Raw, other.Raw)
}

func TestHashRefreshRaw(t *testing.T) {
    h := HashRefreshRaw("token-value")
    assert.Len(t, h, 64)
    assert.Equal(t, h, HashRefreshRaw("token-value"))
    assert.NotEqual(t, h, HashRefreshRaw("token-valu3"))
}

func TestPasswordHashing(t *testing.T) {
    hash, err := HashPassword("s3cret-pass", 4)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "s3cret-pass"))
    assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestPasswordHashingClampsCost(t *testing.T) {
    // A broken BCRYPT_COST still hashes at the library default.
    hash, err := HashPassword("s3cret-pass", 99)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "s3cret-pass"))

    hash, err = HashPassword("s3cret-pass", -1)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "s3cret-pass"))
}

func TestValidatePassword(t *testing.T) {
    assert.NoError(t, ValidatePassword("longenough"))
    assert.Error(t, ValidatePassword("short"))
    assert.Error(t, ValidatePassword(strings.Repeat("x", 73)))
    assert.NoError(t, ValidatePassword(strings.Repeat("x", 72)))
}
