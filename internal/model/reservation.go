package model

import "time"

// Reservation states.  PENDING entries form a strict FIFO queue per title
// ordered by created_at.  At most one reservation per title is READY at a
// time; READY carries a hold window during which its owner has exclusive
// borrowing priority for the single free copy.
const (
    ReservationPending   = "PENDING"
    ReservationReady     = "READY"
    ReservationFulfilled = "FULFILLED"
    ReservationCancelled = "CANCELLED"
    ReservationExpired   = "EXPIRED"
)

// Reservation is a user's claim on the next free copy of an out-of-stock
// title, stored in the `reservations` table.  Reservations may only be
// created while the title has zero available copies; when exactly one copy
// frees up, the oldest PENDING reservation is promoted to READY with a
// fresh hold window.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – reserving user.
//  BookID      – reserved title.
//  Status      – PENDING / READY / FULFILLED / CANCELLED / EXPIRED.
//  CreatedAt   – FIFO ordering key.
//  ReadyAt     – when the reservation was promoted (nullable).
//  ExpireAt    – end of the hold window (nullable until READY).
//  FulfilledAt – when the owner borrowed the copy (nullable).
//  CancelledAt – when the owner withdrew (nullable).
type Reservation struct {
    ID          uint64     // reservations.id
    UserID      uint64     // reservations.user_id
    BookID      uint64     // reservations.book_id
    Status      string     // reservations.status
    CreatedAt   time.Time  // reservations.created_at
    ReadyAt     *time.Time // reservations.ready_at (nullable)
    ExpireAt    *time.Time // reservations.expire_at (nullable)
    FulfilledAt *time.Time // reservations.fulfilled_at (nullable)
    CancelledAt *time.Time // reservations.cancelled_at (nullable)
}
