package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestUserIsMember(t *testing.T) {
    now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

    var u User
    assert.False(t, u.IsMember(now), "no member_until means never a member")

    future := now.Add(time.Hour)
    u.MemberUntil = &future
    assert.True(t, u.IsMember(now))

    // An expired membership does not linger; the boundary itself is out.
    u.MemberUntil = &now
    assert.False(t, u.IsMember(now))

    past := now.Add(-time.Second)
    u.MemberUntil = &past
    assert.False(t, u.IsMember(now))
}

func TestLoanOpen(t *testing.T) {
    var l Loan
    assert.True(t, l.Open())

    ret := time.Now().UTC()
    l.ReturnedAt = &ret
    assert.False(t, l.Open())
}

func TestPaymentTerminal(t *testing.T) {
    p := Payment{Status: PaymentPending}
    assert.False(t, p.Terminal())

    // Either a settled status or a verified callback freezes the payment;
    // a retried provider callback must not settle it again.
    p = Payment{Status: PaymentSuccess, IPNVerified: true}
    assert.True(t, p.Terminal())
    p = Payment{Status: PaymentFailed}
    assert.True(t, p.Terminal())
    p = Payment{Status: PaymentPending, IPNVerified: true}
    assert.True(t, p.Terminal())
}
