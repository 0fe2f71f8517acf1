// Package qr issues ticket tokens and renders them as QR images for the
// circulation desk scanner.
package qr

import (
    "encoding/base64"
    "fmt"
    "strings"

    "github.com/google/uuid"
    "github.com/skip2/go-qrcode"
)

// NewToken returns a fresh opaque ticket token: a v4 UUID with the dashes
// stripped, 32 lowercase hex characters.  Tokens are capability secrets;
// they appear only in the owner's QR payload and the desk confirm call.
func NewToken() string {
    return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ScanURL builds the absolute confirm URL a desk scanner lands on, e.g.
// <base>/v1/admin/lend/<token>.
func ScanURL(baseURL, action, token string) string {
    return fmt.Sprintf("%s/v1/admin/%s/%s", strings.TrimRight(baseURL, "/"), action, token)
}

// DataURIPNG renders content as a PNG QR code of size x size pixels and
// returns it as a data URI suitable for direct use in an <img> tag.
func DataURIPNG(content string, size int) (string, error) {
    if size <= 0 {
        size = 256
    }
    png, err := qrcode.Encode(content, qrcode.Medium, size)
    if err != nil {
        return "", fmt.Errorf("encode qr: %w", err)
    }
    return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
