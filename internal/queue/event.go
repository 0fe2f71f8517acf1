// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used for circulation events.  One queue per event kind keeps
// consumers trivial; all are durable.
const (
    QueueHoldReady       = "hold.ready"
    QueueLoanConfirmed   = "loan.confirmed"
    QueueReturnConfirmed = "return.confirmed"
)

// HoldReadyEvent is published when a queued reservation is promoted and its
// owner gains a pickup window on the last free copy.  Downstream consumers
// notify the reader without querying the primary database.
type HoldReadyEvent struct {
    ReservationID uint64 `json:"reservation_id"`
    UserID        uint64 `json:"user_id"`
    BookID        uint64 `json:"book_id"`
    BookTitle     string `json:"book_title"`
    ReadyAt       string `json:"ready_at"`
    ExpireAt      string `json:"expire_at"`
}

// LoanConfirmedEvent is published when staff confirm a borrow ticket at the
// desk and copies leave the shelf.
type LoanConfirmedEvent struct {
    LoanID      uint64 `json:"loan_id"`
    TicketID    uint64 `json:"ticket_id"`
    UserID      uint64 `json:"user_id"`
    BookID      uint64 `json:"book_id"`
    BookTitle   string `json:"book_title"`
    Quantity    int    `json:"quantity"`
    DueAt       string `json:"due_at"`
    ConfirmedAt string `json:"confirmed_at"`
}

// ReturnConfirmedEvent is published when staff confirm a return and the
// loan closes.  FineAmount is the frozen final fine in VND.
type ReturnConfirmedEvent struct {
    LoanID      uint64 `json:"loan_id"`
    TicketID    uint64 `json:"ticket_id"`
    UserID      uint64 `json:"user_id"`
    BookID      uint64 `json:"book_id"`
    BookTitle   string `json:"book_title"`
    Quantity    int    `json:"quantity"`
    OverdueDays int    `json:"overdue_days"`
    FineAmount  int64  `json:"fine_amount"`
    ConfirmedAt string `json:"confirmed_at"`
}
