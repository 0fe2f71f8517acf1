package qr

import (
    "encoding/base64"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
    tok := NewToken()
    assert.Len(t, tok, 32)
    assert.NotContains(t, tok, "-")
    for _, r := range tok {
        assert.Contains(t, "0123456789abcdef", string(r))
    }
    assert.NotEqual(t, tok, NewToken(), "tokens are unique")
}

func TestScanURL(t *testing.T) {
    got := ScanURL("http://localhost:8080/", "lend", "abc123")
    assert.Equal(t, "http://localhost:8080/v1/admin/lend/abc123", got)

    got = ScanURL("https://lib.example.com", "return", "def456")
    assert.Equal(t, "https://lib.example.com/v1/admin/return/def456", got)
}

func TestDataURIPNG(t *testing.T) {
    uri, err := DataURIPNG("http://localhost:8080/v1/admin/lend/abc", 128)
    require.NoError(t, err)
    require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

    raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
    require.NoError(t, err)
    // PNG magic bytes.
    assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])

    // A non-positive size falls back to a sane default instead of failing.
    _, err = DataURIPNG("x", 0)
    assert.NoError(t, err)
}
