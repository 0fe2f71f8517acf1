package handler // handler defines http handlers

import (
    "errors"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/config"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWTAuth stores the sub claim as it came out of the token, so numbers
// arrive as float64.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// parseIDParam parses a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// copyCapFor returns the open-copy borrowing cap for the account tier.
func copyCapFor(p config.Policy, member bool) int {
    if member {
        return p.MaxBooksMember
    }
    return p.MaxBooksStandard
}

// maxDaysFor returns the longest borrow period for the account tier.
func maxDaysFor(p config.Policy, member bool) int {
    if member {
        return p.MaxDaysMember
    }
    return p.MaxDaysStandard
}

// extendMaxFor returns the extension allowance for the account tier.
func extendMaxFor(p config.Policy, member bool) int {
    if member {
        return p.ExtendMaxMember
    }
    return p.ExtendMaxStandard
}
