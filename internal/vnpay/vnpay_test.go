package vnpay

import (
    "net/url"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "DEMOSECRETKEY123"

func TestHmacSHA512(t *testing.T) {
    // Known vector: HMAC-SHA512("key", "The quick brown fox jumps over the lazy dog").
    got := HmacSHA512("key", "The quick brown fox jumps over the lazy dog")
    want := "b42af09057bac1e2d41708e48a902e09b5ff7f12ab428a4fe86653c73dd248fb82f948a549f7b791a5b41915ee4d1ec3935357e4e2317250d0372afa2ebeeb3a"
    assert.Equal(t, want, got)

    // Whitespace around the secret must not change the signature.
    assert.Equal(t, got, HmacSHA512("  key  ", "The quick brown fox jumps over the lazy dog"))
}

func TestBuildPaymentURLSortsAndSigns(t *testing.T) {
    params := map[string]string{
        "vnp_Version":    "2.1.0",
        "vnp_Command":    "pay",
        "vnp_TmnCode":    "TESTTMN",
        "vnp_Amount":     "1000000",
        "vnp_CurrCode":   "VND",
        "vnp_TxnRef":     "F421717000000",
        "vnp_OrderInfo":  "Thanh toan phi tre han",
        "vnp_ReturnUrl":  "http://localhost:8080/v1/payments/vnpay/return",
        "vnp_IpAddr":     "127.0.0.1",
        "vnp_CreateDate": "20250301120000",
    }

    raw := BuildPaymentURL("https://sandbox.vnpayment.vn/paymentv2/vpcpay.html", params, testSecret)

    u, err := url.Parse(raw)
    require.NoError(t, err)
    q := u.Query()

    // Every original parameter survives the round trip through encoding.
    for k, v := range params {
        assert.Equal(t, v, q.Get(k), k)
    }
    assert.Equal(t, "HMACSHA512", q.Get(ParamSecureHashType))
    assert.Len(t, q.Get(ParamSecureHash), 128, "hex HMAC-SHA512")

    // Keys appear in ascending order before the signature fields.
    idx := func(k string) int { return strings.Index(raw, k+"=") }
    assert.Less(t, idx("vnp_Amount"), idx("vnp_Command"))
    assert.Less(t, idx("vnp_Command"), idx("vnp_Version"))
    assert.Less(t, idx("vnp_Version"), idx(ParamSecureHashType))
}

func TestVerifySignatureRoundTrip(t *testing.T) {
    params := map[string]string{
        "vnp_Amount":       "1000000",
        "vnp_TxnRef":       "F421717000000",
        "vnp_ResponseCode": "00",
        "vnp_TmnCode":      "TESTTMN",
        "vnp_OrderInfo":    "Thanh toan phi tre han",
    }

    raw := BuildPaymentURL("https://example.test/pay", params, testSecret)
    u, err := url.Parse(raw)
    require.NoError(t, err)

    // Reconstruct the callback the way a handler sees it: decoded values.
    cb := map[string]string{}
    for k, vs := range u.Query() {
        cb[k] = vs[0]
    }
    assert.True(t, VerifySignature(cb, testSecret))

    // Tampering with any signed value breaks verification.
    cb["vnp_Amount"] = "999999900"
    assert.False(t, VerifySignature(cb, testSecret))
}

func TestVerifySignaturePlainForm(t *testing.T) {
    // A sender that signed the unencoded canonical string must also verify.
    params := map[string]string{
        "vnp_Amount":    "500000",
        "vnp_TxnRef":    "M71717000000",
        "vnp_OrderInfo": "Gia han the thanh vien",
    }
    plain := "vnp_Amount=500000&vnp_OrderInfo=Gia han the thanh vien&vnp_TxnRef=M71717000000"
    params[ParamSecureHash] = HmacSHA512(testSecret, plain)

    assert.True(t, VerifySignature(params, testSecret))
}

func TestVerifySignatureRejects(t *testing.T) {
    params := map[string]string{"vnp_Amount": "1000"}
    assert.False(t, VerifySignature(params, testSecret), "missing hash")

    params[ParamSecureHash] = "deadbeef"
    assert.False(t, VerifySignature(params, testSecret), "bogus hash")

    // Wrong secret.
    data := hashDataEncoded(params)
    params[ParamSecureHash] = HmacSHA512("othersecret", data)
    assert.False(t, VerifySignature(params, testSecret))
}

func TestCanonicalizeDropsSignatureAndEmpty(t *testing.T) {
    keys, m := canonicalize(map[string]string{
        "vnp_TxnRef":        "F1",
        ParamSecureHash:     "abc",
        ParamSecureHashType: "HMACSHA512",
        "vnp_BankCode":      "",
        "vnp_OrderInfo":     "  padded  ",
    })
    assert.Equal(t, []string{"vnp_OrderInfo", "vnp_TxnRef"}, keys)
    assert.Equal(t, "padded", m["vnp_OrderInfo"])
}
