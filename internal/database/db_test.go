package database

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestPoolInt(t *testing.T) {
    assert.Equal(t, 25, poolInt("DB_MAX_OPEN_CONNS", 25))

    t.Setenv("DB_MAX_OPEN_CONNS", "50")
    assert.Equal(t, 50, poolInt("DB_MAX_OPEN_CONNS", 25))

    // Garbage and non-positive values fall back to the default.
    t.Setenv("DB_MAX_OPEN_CONNS", "lots")
    assert.Equal(t, 25, poolInt("DB_MAX_OPEN_CONNS", 25))
    t.Setenv("DB_MAX_OPEN_CONNS", "0")
    assert.Equal(t, 25, poolInt("DB_MAX_OPEN_CONNS", 25))
}
