package repository

import (
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/minhnq/library-lending/internal/model"
)

func TestGateGuardsLastCopy(t *testing.T) {
    // Only the last free copy is contested.  Zero copies still pass the
    // gate; the conditional stock decrement is what refuses them.
    assert.False(t, gateGuardsLastCopy(0))
    assert.True(t, gateGuardsLastCopy(1))
    assert.False(t, gateGuardsLastCopy(2))
    assert.False(t, gateGuardsLastCopy(10))
}

func TestReadyHoldAllows(t *testing.T) {
    ready := &model.Reservation{UserID: 7}

    // A live READY hold reserves the last copy for its owner.
    assert.True(t, readyHoldAllows(ready, 7))
    assert.False(t, readyHoldAllows(ready, 8))
}

func TestPromotionAllows(t *testing.T) {
    // Empty queue: the copy is up for grabs.
    assert.True(t, promotionAllows(nil, 7))

    // The caller's own reservation was the oldest in line: collecting
    // their turn.
    assert.True(t, promotionAllows(&model.Reservation{UserID: 7}, 7))

    // Someone queued earlier: their promotion claims the copy and the
    // walk-up caller is refused.
    assert.False(t, promotionAllows(&model.Reservation{UserID: 3}, 7))
}
