package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/minhnq/library-lending/internal/utils"
)

const testSecret = "test-secret"

func okHandler(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    err := JWTAuth(testSecret)(okHandler)(c)
    require.NoError(t, err)
    return rec, c
}

func TestJWTAuthValidToken(t *testing.T) {
    at, err := utils.NewAccessToken(testSecret, 42, "USER", 5)
    require.NoError(t, err)

    rec, c := runJWT(t, "Bearer "+at.Token)
    assert.Equal(t, http.StatusOK, rec.Code)
    // Numeric claims come back as float64 from the JSON decoder.
    assert.Equal(t, float64(42), c.Get("user_id"))
    assert.Equal(t, "USER", c.Get("role"))
}

func TestJWTAuthMissingHeader(t *testing.T) {
    rec, _ := runJWT(t, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthGarbageToken(t *testing.T) {
    rec, _ := runJWT(t, "Bearer not.a.jwt")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
    at, err := utils.NewAccessToken("another-secret", 42, "USER", 5)
    require.NoError(t, err)

    rec, _ := runJWT(t, "Bearer "+at.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
    cases := []struct {
        name    string
        role    any
        allowed []string
        want    int
    }{
        {"admin on admin route", "ADMIN", []string{"ADMIN"}, http.StatusOK},
        {"user on admin route", "USER", []string{"ADMIN"}, http.StatusForbidden},
        {"either role accepted", "USER", []string{"ADMIN", "USER"}, http.StatusOK},
        {"role missing", nil, []string{"ADMIN"}, http.StatusForbidden},
        {"role wrong type", 7, []string{"ADMIN"}, http.StatusForbidden},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            e := echo.New()
            req := httptest.NewRequest(http.MethodGet, "/", nil)
            rec := httptest.NewRecorder()
            c := e.NewContext(req, rec)
            if tc.role != nil {
                c.Set("role", tc.role)
            }
            err := RequireRole(tc.allowed...)(okHandler)(c)
            require.NoError(t, err)
            assert.Equal(t, tc.want, rec.Code)
        })
    }
}
