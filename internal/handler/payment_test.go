package handler

import (
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
)

func TestBuildTxnRef(t *testing.T) {
    now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

    ref := buildTxnRef("F", 42, now)
    assert.Equal(t, "F42"+"1741593600", ref)

    ref = buildTxnRef("M", 7, now)
    assert.Equal(t, "M7"+"1741593600", ref)

    // Provider field caps out at 34 characters.
    long := buildTxnRef("F", 99999999999999999, now)
    assert.LessOrEqual(t, len(long), 34)
}

func TestMonthsFrom(t *testing.T) {
    assert.Equal(t, 3, monthsFrom(150000, 50000))
    assert.Equal(t, 1, monthsFrom(50000, 50000))
    // Partial months round down.
    assert.Equal(t, 1, monthsFrom(99999, 50000))
    assert.Equal(t, 0, monthsFrom(49999, 50000))
    assert.Equal(t, 0, monthsFrom(100000, 0))
    assert.Equal(t, 0, monthsFrom(-100, 50000))
}

func TestCallbackSucceeded(t *testing.T) {
    assert.True(t, callbackSucceeded("00", "00"))

    // vnp_TransactionStatus absent from the callback: not a success.
    assert.False(t, callbackSucceeded("00", ""))

    assert.False(t, callbackSucceeded("00", "02"))
    assert.False(t, callbackSucceeded("24", "00"))
    assert.False(t, callbackSucceeded("", ""))
}

func TestQueryParams(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest("GET", "/ipn?vnp_TxnRef=F421741593600&vnp_Amount=1000000&vnp_ResponseCode=00", nil)
    c := e.NewContext(req, httptest.NewRecorder())

    got := queryParams(c)
    assert.Equal(t, "F421741593600", got["vnp_TxnRef"])
    assert.Equal(t, "1000000", got["vnp_Amount"])
    assert.Equal(t, "00", got["vnp_ResponseCode"])
    assert.Len(t, got, 3)
}
