package model

import "time"

// Ticket states shared by borrow and return tickets.  PENDING is the only
// live state; the other three are terminal.  Exactly one CONFIRMED
// transition may ever succeed for a given ticket.
const (
    TicketPending   = "PENDING"
    TicketConfirmed = "CONFIRMED"
    TicketCancelled = "CANCELLED"
    TicketExpired   = "EXPIRED"
)

// BorrowTicket is a short-lived intent to borrow, stored in the
// `borrow_tickets` table.  The user creates it online, receives the token
// rendered as a QR code, and staff confirm it at the desk by scanning.
// The token is an unguessable 32-character hex string, unique across all
// tickets and never reused.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – requesting user (owner until terminal).
//  BookID          – title to borrow.
//  Quantity        – copies requested.
//  Days            – borrow period requested.
//  Token           – opaque confirmation token embedded in the QR code.
//  Status          – PENDING / CONFIRMED / CANCELLED / EXPIRED.
//  RequestedAt     – creation timestamp.
//  ExpiresAt       – hard deadline for confirmation.
//  ConfirmedBy     – staff user who scanned (nullable).
//  ConfirmedAt     – when the scan was accepted (nullable).
//  CancelledReason – why the ticket was cancelled, when it was (nullable).
type BorrowTicket struct {
    ID              uint64     // borrow_tickets.id
    UserID          uint64     // borrow_tickets.user_id
    BookID          uint64     // borrow_tickets.book_id
    Quantity        int        // borrow_tickets.quantity
    Days            int        // borrow_tickets.days
    Token           string     // borrow_tickets.token
    Status          string     // borrow_tickets.status
    RequestedAt     time.Time  // borrow_tickets.requested_at
    ExpiresAt       time.Time  // borrow_tickets.expires_at
    ConfirmedBy     *uint64    // borrow_tickets.confirmed_by (nullable)
    ConfirmedAt     *time.Time // borrow_tickets.confirmed_at (nullable)
    CancelledReason *string    // borrow_tickets.cancelled_reason (nullable)
}

// ReturnTicket is the borrow ticket's mirror image for bringing copies
// back, stored in `return_tickets`.  It references a specific open loan
// instead of a title; confirming it closes that loan.
//
// Fields mirror BorrowTicket except that LoanID replaces BookID,
// Quantity and Days.
type ReturnTicket struct {
    ID              uint64     // return_tickets.id
    LoanID          uint64     // return_tickets.loan_id
    UserID          uint64     // return_tickets.user_id (loan owner, denormalized)
    Token           string     // return_tickets.token
    Status          string     // return_tickets.status
    RequestedAt     time.Time  // return_tickets.requested_at
    ExpiresAt       time.Time  // return_tickets.expires_at
    ConfirmedBy     *uint64    // return_tickets.confirmed_by (nullable)
    ConfirmedAt     *time.Time // return_tickets.confirmed_at (nullable)
    CancelledReason *string    // return_tickets.cancelled_reason (nullable)
}
