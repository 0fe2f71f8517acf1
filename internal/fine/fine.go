// Package fine computes overdue fines for loans.  It is pure: every call
// site (ticket creation, return confirmation, payment settlement, loan
// listing) feeds it the same inputs and gets the same answer, so the fine
// a user sees online is exactly the fine the desk collects.
package fine

import (
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// Compute returns the fine in VND owed on a loan of quantity copies that
// was due at dueAt, evaluated at ref.
//
// Lateness is measured in whole hours and billed in whole 24-hour blocks
// after the grace period: a loan 47h59m past due owes one day, 48h00m owes
// two.  Calendar days play no part.  The result is never negative and a
// loan with no due date owes nothing.
func Compute(dueAt *time.Time, ref time.Time, quantity int, dailyRate int64, freeDays int) int64 {
    if dueAt == nil {
        return 0
    }
    hoursLate := int64(ref.Sub(*dueAt).Hours())
    if hoursLate < 0 {
        hoursLate = 0
    }
    if freeDays < 0 {
        freeDays = 0
    }
    effective := hoursLate - int64(freeDays)*24
    if effective < 0 {
        effective = 0
    }
    days := effective / 24
    if days == 0 {
        return 0
    }
    if quantity < 1 {
        quantity = 1
    }
    if dailyRate < 0 {
        dailyRate = 0
    }
    return days * dailyRate * int64(quantity)
}

// OverdueDays returns the whole billable late days for the same inputs,
// used when snapshotting a loan at return time.
func OverdueDays(dueAt *time.Time, ref time.Time, freeDays int) int {
    if dueAt == nil {
        return 0
    }
    hoursLate := int64(ref.Sub(*dueAt).Hours())
    if hoursLate < 0 {
        hoursLate = 0
    }
    if freeDays < 0 {
        freeDays = 0
    }
    effective := hoursLate - int64(freeDays)*24
    if effective < 0 {
        effective = 0
    }
    return int(effective / 24)
}

// Status maps a fine and the total paid against it to a settlement state.
// A zero fine is PAID — there is nothing to settle.
func Status(fineAmount, paidTotal int64) string {
    switch {
    case fineAmount <= 0:
        return model.FinePaid
    case paidTotal >= fineAmount:
        return model.FinePaid
    case paidTotal > 0:
        return model.FinePending
    default:
        return model.FineUnpaid
    }
}

// Remaining returns the amount still owed, never negative.
func Remaining(fineAmount, paidTotal int64) int64 {
    r := fineAmount - paidTotal
    if r < 0 {
        return 0
    }
    return r
}
