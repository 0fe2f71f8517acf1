package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// BorrowTicketRepo provides data access to the borrow_tickets table.
type BorrowTicketRepo struct {
    db *sql.DB
}

// NewBorrowTicketRepo constructs a BorrowTicketRepo with the given DB handle.
func NewBorrowTicketRepo(db *sql.DB) *BorrowTicketRepo { return &BorrowTicketRepo{db: db} }

const borrowTicketColumns = `id, user_id, book_id, quantity, days, token, status,
requested_at, expires_at, confirmed_by, confirmed_at, cancelled_reason`

func scanBorrowTicket(row interface{ Scan(...any) error }) (*model.BorrowTicket, error) {
    var t model.BorrowTicket
    err := row.Scan(
        &t.ID, &t.UserID, &t.BookID, &t.Quantity, &t.Days, &t.Token, &t.Status,
        &t.RequestedAt, &t.ExpiresAt, &t.ConfirmedBy, &t.ConfirmedAt, &t.CancelledReason,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTicketNotFound
        }
        return nil, err
    }
    return &t, nil
}

// CreateTx inserts a new PENDING borrow ticket.  On success the ticket's
// ID is populated.
func (r *BorrowTicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.BorrowTicket) error {
    const q = `INSERT INTO borrow_tickets (user_id, book_id, quantity, days, token, status, requested_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        t.UserID, t.BookID, t.Quantity, t.Days, t.Token, model.TicketPending,
        t.RequestedAt.UTC().Format("2006-01-02 15:04:05"),
        t.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    t.Status = model.TicketPending
    return nil
}

// GetByTokenForUpdateTx retrieves a ticket by its token under a row lock.
// The lock is what makes the confirm/cancel/expire race a clean
// first-writer-wins: whoever locks the row first settles the status and
// everyone behind sees the terminal state.
func (r *BorrowTicketRepo) GetByTokenForUpdateTx(ctx context.Context, tx *sql.Tx, token string) (*model.BorrowTicket, error) {
    const q = `SELECT ` + borrowTicketColumns + ` FROM borrow_tickets WHERE token = ? FOR UPDATE`
    return scanBorrowTicket(tx.QueryRowContext(ctx, q, token))
}

// ConfirmTx moves a PENDING ticket to CONFIRMED and records the staff
// member and time.  The status guard keeps the transition exactly-once.
func (r *BorrowTicketRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, ticketID, staffID uint64, at time.Time) error {
    const q = `UPDATE borrow_tickets
               SET status = ?, confirmed_by = ?, confirmed_at = ?
               WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q,
        model.TicketConfirmed, staffID, at.UTC().Format("2006-01-02 15:04:05"),
        ticketID, model.TicketPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTicketNotPending
    }
    return nil
}

// MarkExpiredTx moves a PENDING ticket to EXPIRED.
func (r *BorrowTicketRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, ticketID uint64) error {
    const q = `UPDATE borrow_tickets SET status = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, model.TicketExpired, ticketID, model.TicketPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTicketNotPending
    }
    return nil
}

// CancelOwned cancels the user's own PENDING ticket.  It distinguishes a
// foreign ticket (ErrForbidden) from one that already left PENDING
// (ErrConflict) so the handler can answer precisely.
func (r *BorrowTicketRepo) CancelOwned(ctx context.Context, ticketID, userID uint64, reason string) error {
    const q = `UPDATE borrow_tickets
               SET status = ?, cancelled_reason = ?
               WHERE id = ? AND user_id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, model.TicketCancelled, reason, ticketID, userID, model.TicketPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return nil
    }
    var owner uint64
    err = r.db.QueryRowContext(ctx, `SELECT user_id FROM borrow_tickets WHERE id = ?`, ticketID).Scan(&owner)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrTicketNotFound
    }
    if err != nil {
        return err
    }
    if owner != userID {
        return ErrForbidden
    }
    return ErrConflict
}

// CancelAllPendingForUserTx cancels every other PENDING borrow ticket the
// user holds, used when a confirm fills their borrowing cap.  Returns the
// number of tickets cancelled.
func (r *BorrowTicketRepo) CancelAllPendingForUserTx(ctx context.Context, tx *sql.Tx, userID uint64, exceptID uint64, reason string) (int64, error) {
    const q = `UPDATE borrow_tickets
               SET status = ?, cancelled_reason = ?
               WHERE user_id = ? AND status = ? AND id <> ?`
    res, err := tx.ExecContext(ctx, q, model.TicketCancelled, reason, userID, model.TicketPending, exceptID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ListByUser retrieves the user's borrow tickets, newest first.
func (r *BorrowTicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BorrowTicket, error) {
    const q = `SELECT ` + borrowTicketColumns + ` FROM borrow_tickets
               WHERE user_id = ? ORDER BY requested_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.BorrowTicket
    for rows.Next() {
        var t model.BorrowTicket
        if err := rows.Scan(
            &t.ID, &t.UserID, &t.BookID, &t.Quantity, &t.Days, &t.Token, &t.Status,
            &t.RequestedAt, &t.ExpiresAt, &t.ConfirmedBy, &t.ConfirmedAt, &t.CancelledReason,
        ); err != nil {
            return nil, err
        }
        result = append(result, t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// GetOwned retrieves a ticket by id, enforcing ownership.
func (r *BorrowTicketRepo) GetOwned(ctx context.Context, ticketID, userID uint64) (*model.BorrowTicket, error) {
    t, err := scanBorrowTicket(r.db.QueryRowContext(ctx,
        `SELECT `+borrowTicketColumns+` FROM borrow_tickets WHERE id = ?`, ticketID))
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, ErrForbidden
    }
    return t, nil
}

// ExpireOld flips every PENDING ticket whose deadline has passed to
// EXPIRED and returns how many were flipped.  The sweeper calls this; the
// confirm path does not depend on it because expiry is also enforced
// lazily under the row lock.
func (r *BorrowTicketRepo) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE borrow_tickets SET status = ? WHERE status = ? AND expires_at <= ?`
    res, err := r.db.ExecContext(ctx, q, model.TicketExpired, model.TicketPending,
        now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
