package model

import "time"

// Fine settlement states stored in loans.fine_status.  The status is never
// cached on its own: every path that touches due dates, returns or payments
// recomputes it from the fine amount and the paid total.
const (
    FineUnpaid  = "UNPAID"  // a fine exists and nothing has been paid
    FinePending = "PENDING" // partially paid
    FinePaid    = "PAID"    // fully paid, or no fine at all
)

// Loan records one borrowing of one or more copies of a title by a user,
// stored in the `loans` table.  A loan is open while ReturnedAt is null;
// once set the loan is terminal and only the fine settlement fields may
// still change.  Same-user requests that resolve to the same due timestamp
// merge into one row by incrementing Quantity.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – borrower.
//  BookID        – borrowed title.
//  Quantity      – number of copies on this loan.
//  BorrowedAt    – when the loan was confirmed at the desk.
//  DueAt         – return deadline.
//  ReturnedAt    – when the copies came back (null = still open).
//  OverdueDays   – snapshot of whole late days, kept current on mutation.
//  FineAmount    – snapshot of the fine in VND, kept current on mutation.
//  FinePaidTotal – accumulated settled amount in VND, never negative.
//  FinePaidAt    – when the fine became fully paid (nullable).
//  FineStatus    – UNPAID / PENDING / PAID.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Loan struct {
    ID            uint64     // loans.id
    UserID        uint64     // loans.user_id
    BookID        uint64     // loans.book_id
    Quantity      int        // loans.quantity
    BorrowedAt    time.Time  // loans.borrowed_at
    DueAt         *time.Time // loans.due_at (nullable for legacy rows)
    ReturnedAt    *time.Time // loans.returned_at (nullable)
    OverdueDays   int        // loans.overdue_days
    FineAmount    int64      // loans.fine_amount (VND)
    FinePaidTotal int64      // loans.fine_paid_total (VND)
    FinePaidAt    *time.Time // loans.fine_paid_at (nullable)
    FineStatus    string     // loans.fine_status
    CreatedAt     time.Time  // loans.created_at
    UpdatedAt     time.Time  // loans.updated_at
}

// Open reports whether the copies are still out.
func (l *Loan) Open() bool { return l.ReturnedAt == nil }
