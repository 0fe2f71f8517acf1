// Package vnpay implements the VNPay 2.1.0 wire protocol: building signed
// checkout URLs and verifying signed IPN/return callbacks.  It carries no
// business logic; callers decide what a verified callback means.
package vnpay

import (
    "crypto/hmac"
    "crypto/sha512"
    "encoding/hex"
    "net/url"
    "sort"
    "strings"
)

// IPN response codes returned to the provider.  These are protocol-level
// strings, not HTTP statuses; the provider retries on anything it does not
// recognise as a final answer.
const (
    CodeSuccess          = "00" // processed (settled as success or failure)
    CodeOrderNotFound    = "01" // unknown transaction reference
    CodeAmountInvalid    = "04" // amount or currency mismatch
    CodeSignatureInvalid = "97" // signature or merchant identity mismatch
)

// Response is the structured body the provider expects from an IPN call.
type Response struct {
    RspCode string `json:"RspCode"`
    Message string `json:"Message"`
}

// Params carried in the protocol.  Keys vnp_SecureHash and
// vnp_SecureHashType are never part of the signed data.
const (
    ParamSecureHash     = "vnp_SecureHash"
    ParamSecureHashType = "vnp_SecureHashType"
)

// encode applies the provider's URL-encoding convention.  It matches what
// the provider signs on its side: query escaping with '+' for spaces.
func encode(s string) string {
    return url.QueryEscape(s)
}

// HmacSHA512 returns the lowercase hex HMAC-SHA512 of data under secret.
// The secret is trimmed because merchant portals are notorious for
// surrounding the value with whitespace on copy-paste.
func HmacSHA512(secret, data string) string {
    mac := hmac.New(sha512.New, []byte(strings.TrimSpace(secret)))
    mac.Write([]byte(data))
    return hex.EncodeToString(mac.Sum(nil))
}

// canonicalize filters and sorts the parameter set into the exact form the
// signature covers: signature fields removed, empty values dropped, values
// trimmed, keys in ascending order.
func canonicalize(raw map[string]string) ([]string, map[string]string) {
    m := make(map[string]string, len(raw))
    keys := make([]string, 0, len(raw))
    for k, v := range raw {
        if k == "" || strings.EqualFold(k, ParamSecureHash) || strings.EqualFold(k, ParamSecureHashType) {
            continue
        }
        v = strings.TrimSpace(v)
        if v == "" {
            continue
        }
        m[k] = v
        keys = append(keys, k)
    }
    sort.Strings(keys)
    return keys, m
}

// hashDataEncoded builds the canonical signed string with each key and
// value URL-encoded, the same form used when building the checkout URL.
func hashDataEncoded(params map[string]string) string {
    keys, m := canonicalize(params)
    var b strings.Builder
    for i, k := range keys {
        if i > 0 {
            b.WriteByte('&')
        }
        b.WriteString(encode(k))
        b.WriteByte('=')
        b.WriteString(encode(m[k]))
    }
    return b.String()
}

// hashDataPlain builds the canonical signed string without URL-encoding.
// Some provider SDK samples sign this form; inbound verification accepts
// either so that a framework decoding the query string does not break us.
func hashDataPlain(params map[string]string) string {
    keys, m := canonicalize(params)
    var b strings.Builder
    for i, k := range keys {
        if i > 0 {
            b.WriteByte('&')
        }
        b.WriteString(k)
        b.WriteByte('=')
        b.WriteString(m[k])
    }
    return b.String()
}

// BuildPaymentURL assembles the provider checkout redirect URL: sorted,
// encoded parameters, the hash type marker, and the HMAC-SHA512 signature
// over the canonical encoded form.
func BuildPaymentURL(payURL string, params map[string]string, secret string) string {
    data := hashDataEncoded(params)
    secure := HmacSHA512(secret, data)

    var q strings.Builder
    q.WriteString(data)
    q.WriteString("&" + ParamSecureHashType + "=HMACSHA512")
    q.WriteString("&" + ParamSecureHash + "=")
    q.WriteString(secure)

    if strings.HasSuffix(payURL, "?") {
        return payURL + q.String()
    }
    return payURL + "?" + q.String()
}

// VerifySignature checks an inbound callback's vnp_SecureHash against both
// canonical forms (encoded and plain).  It returns false when the hash is
// absent or matches neither form.  Verification never mutates anything;
// a mismatch is the caller's cue to reject without state change.
func VerifySignature(params map[string]string, secret string) bool {
    received := strings.TrimSpace(params[ParamSecureHash])
    if received == "" {
        return false
    }
    if h := HmacSHA512(secret, hashDataEncoded(params)); strings.EqualFold(received, h) {
        return true
    }
    if h := HmacSHA512(secret, hashDataPlain(params)); strings.EqualFold(received, h) {
        return true
    }
    return false
}
