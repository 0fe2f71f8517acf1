package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/minhnq/library-lending/internal/config"
)

// bodyRecorder captures the response body while forwarding it to the
// client, up to limit bytes.  Oversized bodies are forwarded but not
// cached.
type bodyRecorder struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int
    limit  int
}

func (w *bodyRecorder) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
    w.size += len(b)
    if w.size <= w.limit {
        w.buf.Write(b)
    }
    return w.ResponseWriter.Write(b)
}

// NewCatalogCache returns a middleware that serves successful GET
// responses from Redis for a short TTL.  Only the body is cached; every
// response is JSON, so headers need no replay.  A dropped Redis is
// invisible to clients beyond the lost speedup.
func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }

            sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
            key := fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
            ctx := c.Request().Context()

            if body, err := rdb.Get(ctx, key).Bytes(); err == nil {
                c.Response().Header().Set("X-Cache", "HIT")
                return c.JSONBlob(http.StatusOK, body)
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status == http.StatusOK && rec.size <= rec.limit {
                // Detached context: the response is already on the wire.
                _ = rdb.SetEx(context.Background(), key, rec.buf.Bytes(), ttl).Err()
            }
            return nil
        }
    }
}
