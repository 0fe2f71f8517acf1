package repository

import (
    "errors"
    "fmt"
)

// Sentinel errors shared across repositories and handlers.  Handlers map
// them to HTTP statuses; repositories return them so business outcomes are
// distinguishable from infrastructure failures.
var (
    // ErrForbidden indicates the caller does not own the target resource.
    ErrForbidden = errors.New("forbidden")
    // ErrConflict indicates a state conflict (already confirmed, already
    // cancelled, already returned and similar races).
    ErrConflict = errors.New("conflict")
    // ErrEmailExists indicates a registration attempt with a taken email.
    ErrEmailExists = errors.New("email already registered")
    // ErrUserNotFound is returned when a user lookup yields no rows.
    ErrUserNotFound = errors.New("user not found")
    // ErrBookNotFound is returned when a book lookup yields no rows.
    ErrBookNotFound = errors.New("book not found")
    // ErrLoanNotFound is returned when a loan lookup yields no rows.
    ErrLoanNotFound = errors.New("loan not found")
    // ErrTicketNotFound is returned when a ticket token matches no row.
    ErrTicketNotFound = errors.New("ticket not found")
    // ErrTicketNotPending indicates the ticket left PENDING before the
    // operation ran; the current status travels alongside in the handler.
    ErrTicketNotPending = errors.New("ticket is not pending")
    // ErrTicketExpired indicates the ticket's validity window has passed.
    ErrTicketExpired = errors.New("ticket expired")
    // ErrInsufficientStock indicates the conditional stock decrement found
    // fewer available copies than requested.
    ErrInsufficientStock = errors.New("not enough copies available")
    // ErrBookAvailable indicates a reservation attempt on a title that
    // still has free copies; the user should borrow directly.
    ErrBookAvailable = errors.New("book still available, borrow it directly")
    // ErrHoldExists indicates the user already has a live reservation for
    // this title.
    ErrHoldExists = errors.New("active reservation already exists")
    // ErrHeldForOther indicates the single free copy is held for another
    // user's READY reservation.
    ErrHeldForOther = errors.New("last copy is held for another reader")
    // ErrLimitExceeded indicates the borrow would push the user past the
    // open-copy cap for their tier.
    ErrLimitExceeded = errors.New("borrow limit exceeded")
    // ErrDebtLocked indicates the user has an overdue open loan and must
    // settle before borrowing again.
    ErrDebtLocked = errors.New("account locked by overdue loan")
    // ErrAlreadyReturned indicates a return operation on a closed loan.
    ErrAlreadyReturned = errors.New("loan already returned")
    // ErrNotExtendable indicates the loan does not qualify for an
    // extension under the current policy.
    ErrNotExtendable = errors.New("loan cannot be extended")
    // ErrPaymentNotFound is returned when a txn_ref matches no payment.
    ErrPaymentNotFound = errors.New("payment not found")
)

// FineDueError reports that a return cannot close until the outstanding
// fine is settled.  It carries the remaining amount so the handler can tell
// the user exactly what to pay.
type FineDueError struct {
    Remaining int64 // VND still owed
}

func (e *FineDueError) Error() string {
    return fmt.Sprintf("outstanding fine of %d VND must be settled first", e.Remaining)
}
