package fine

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/minhnq/library-lending/internal/model"
)

func due(t time.Time) *time.Time { return &t }

func TestComputeNotLate(t *testing.T) {
    now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

    assert.Zero(t, Compute(due(now), now, 1, 5000, 0), "exactly on time owes nothing")
    assert.Zero(t, Compute(due(now.Add(48*time.Hour)), now, 1, 5000, 0), "returned early owes nothing")
    assert.Zero(t, Compute(nil, now, 1, 5000, 0), "no due date owes nothing")
}

func TestComputeWholeDayBlocks(t *testing.T) {
    d := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

    cases := []struct {
        name string
        late time.Duration
        want int64
    }{
        {"under one day", 23*time.Hour + 59*time.Minute, 0},
        {"exactly one day", 24 * time.Hour, 5000},
        {"partial second day", 47*time.Hour + 59*time.Minute, 5000},
        {"exactly two days", 48 * time.Hour, 10000},
        {"fifty hours", 50 * time.Hour, 10000},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            got := Compute(due(d), d.Add(tc.late), 1, 5000, 0)
            assert.Equal(t, tc.want, got)
        })
    }
}

func TestComputeFreeDays(t *testing.T) {
    d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

    // With two grace days the first 48 hours are free; billing starts on
    // whole days beyond that.
    assert.Zero(t, Compute(due(d), d.Add(48*time.Hour), 1, 5000, 2))
    assert.Zero(t, Compute(due(d), d.Add(71*time.Hour), 1, 5000, 2))
    assert.Equal(t, int64(5000), Compute(due(d), d.Add(72*time.Hour), 1, 5000, 2))
}

func TestComputeScalesByQuantity(t *testing.T) {
    d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
    ref := d.Add(50 * time.Hour) // two whole days late

    assert.Equal(t, int64(10000), Compute(due(d), ref, 1, 5000, 0))
    assert.Equal(t, int64(30000), Compute(due(d), ref, 3, 5000, 0))
    // Non-positive quantities are treated as a single copy.
    assert.Equal(t, int64(10000), Compute(due(d), ref, 0, 5000, 0))
}

func TestOverdueDays(t *testing.T) {
    d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

    assert.Zero(t, OverdueDays(due(d), d.Add(-time.Hour), 0))
    assert.Zero(t, OverdueDays(nil, d, 0))
    assert.Equal(t, 2, OverdueDays(due(d), d.Add(50*time.Hour), 0))
    assert.Equal(t, 1, OverdueDays(due(d), d.Add(50*time.Hour), 1))
}

func TestStatus(t *testing.T) {
    assert.Equal(t, model.FinePaid, Status(0, 0), "no fine is settled by definition")
    assert.Equal(t, model.FineUnpaid, Status(10000, 0))
    assert.Equal(t, model.FinePending, Status(10000, 4000))
    assert.Equal(t, model.FinePaid, Status(10000, 10000))
    assert.Equal(t, model.FinePaid, Status(10000, 15000), "overpayment still settles")
}

func TestRemaining(t *testing.T) {
    assert.Equal(t, int64(6000), Remaining(10000, 4000))
    assert.Zero(t, Remaining(10000, 10000))
    assert.Zero(t, Remaining(10000, 20000), "never negative")
}

// Mirrors the desk flow: a one-copy loan 50 hours past due at 5000/day with
// no grace owes exactly two days, and paying that exact amount settles it.
func TestDebtRoundTrip(t *testing.T) {
    d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
    ref := d.Add(50 * time.Hour)

    owed := Compute(due(d), ref, 1, 5000, 0)
    assert.Equal(t, int64(10000), owed)
    assert.Equal(t, model.FineUnpaid, Status(owed, 0))
    assert.Equal(t, owed, Remaining(owed, 0))

    assert.Equal(t, model.FinePaid, Status(owed, owed))
    assert.Zero(t, Remaining(owed, owed))
}
