package handler

import (
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/minhnq/library-lending/internal/config"
)

func newTestContext(t *testing.T) echo.Context {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest("GET", "/", nil)
    return e.NewContext(req, httptest.NewRecorder())
}

func TestGetUserID(t *testing.T) {
    cases := []struct {
        name    string
        value   any
        want    uint64
        wantErr bool
    }{
        {"uint64", uint64(7), 7, false},
        {"int", 7, 7, false},
        {"int64", int64(7), 7, false},
        {"float64 from jwt claims", float64(42), 42, false},
        {"numeric string", "13", 13, false},
        {"non-numeric string", "abc", 0, true},
        {"missing", nil, 0, true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            c := newTestContext(t)
            if tc.value != nil {
                c.Set("user_id", tc.value)
            }
            got, err := getUserID(c)
            if tc.wantErr {
                require.Error(t, err)
                return
            }
            require.NoError(t, err)
            assert.Equal(t, tc.want, got)
        })
    }
}

func TestParseIDParam(t *testing.T) {
    c := newTestContext(t)
    c.SetParamNames("id")
    c.SetParamValues("25")
    id, ok := parseIDParam(c, "id")
    assert.True(t, ok)
    assert.Equal(t, uint64(25), id)

    for _, bad := range []string{"0", "-1", "abc", ""} {
        c := newTestContext(t)
        c.SetParamNames("id")
        c.SetParamValues(bad)
        _, ok := parseIDParam(c, "id")
        assert.False(t, ok, "value %q should not parse", bad)
    }
}

func TestTierHelpers(t *testing.T) {
    p := config.Policy{
        MaxBooksStandard:  2,
        MaxBooksMember:    5,
        MaxDaysStandard:   7,
        MaxDaysMember:     14,
        ExtendMaxStandard: 3,
        ExtendMaxMember:   7,
    }

    assert.Equal(t, 2, copyCapFor(p, false))
    assert.Equal(t, 5, copyCapFor(p, true))
    assert.Equal(t, 7, maxDaysFor(p, false))
    assert.Equal(t, 14, maxDaysFor(p, true))
    assert.Equal(t, 3, extendMaxFor(p, false))
    assert.Equal(t, 7, extendMaxFor(p, true))
}
