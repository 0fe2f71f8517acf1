package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health responds 200 with a tiny JSON body; load balancers probe it.
func Health(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
