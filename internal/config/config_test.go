package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoadPolicyDefaults(t *testing.T) {
    p := loadPolicy()

    assert.Equal(t, int64(5000), p.FinePerDay)
    assert.Equal(t, 0, p.FreeDays)
    assert.Equal(t, 24, p.TicketTTLHours)
    assert.Equal(t, 24, p.HoldWindowHours)
    assert.Equal(t, 2, p.MaxBooksStandard)
    assert.Equal(t, 5, p.MaxBooksMember)
    assert.Equal(t, 7, p.MaxDaysStandard)
    assert.Equal(t, 14, p.MaxDaysMember)
    assert.Equal(t, 2, p.ExtendThresholdDays)
    assert.Equal(t, 3, p.ExtendMaxStandard)
    assert.Equal(t, 7, p.ExtendMaxMember)
    assert.Equal(t, int64(50000), p.MonthlyPrice)
}

func TestLoadPolicyClamps(t *testing.T) {
    t.Setenv("FINE_PER_DAY", "-100")
    t.Setenv("TICKET_TTL_HOURS", "0")
    t.Setenv("MAX_BOOKS_STANDARD", "4")
    t.Setenv("MAX_BOOKS_MEMBER", "1") // below the standard cap
    t.Setenv("MAX_DAYS_STANDARD", "10")
    t.Setenv("MAX_DAYS_MEMBER", "3") // below the standard period

    p := loadPolicy()

    assert.Equal(t, int64(0), p.FinePerDay)
    assert.Equal(t, 1, p.TicketTTLHours)
    assert.Equal(t, 4, p.MaxBooksStandard)
    assert.Equal(t, 4, p.MaxBooksMember, "member cap never drops below standard")
    assert.Equal(t, 10, p.MaxDaysStandard)
    assert.Equal(t, 10, p.MaxDaysMember)
}

func TestLoadCacheConfigDefaults(t *testing.T) {
    c := LoadCacheConfig()
    assert.True(t, c.Enabled)
    assert.Equal(t, 30*time.Second, c.TTL)
    assert.Equal(t, "catalog", c.Prefix)
}
