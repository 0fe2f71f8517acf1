package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// ReturnTicketRepo provides data access to the return_tickets table.  It
// mirrors BorrowTicketRepo; a return ticket points at an open loan instead
// of a title.
type ReturnTicketRepo struct {
    db *sql.DB
}

// NewReturnTicketRepo constructs a ReturnTicketRepo with the given DB handle.
func NewReturnTicketRepo(db *sql.DB) *ReturnTicketRepo { return &ReturnTicketRepo{db: db} }

const returnTicketColumns = `id, loan_id, user_id, token, status,
requested_at, expires_at, confirmed_by, confirmed_at, cancelled_reason`

func scanReturnTicket(row interface{ Scan(...any) error }) (*model.ReturnTicket, error) {
    var t model.ReturnTicket
    err := row.Scan(
        &t.ID, &t.LoanID, &t.UserID, &t.Token, &t.Status,
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

// CreateTx inserts a new PENDING return ticket.  On success the ticket's
// ID is populated.
func (r *ReturnTicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.ReturnTicket) error {
    const q = `INSERT INTO return_tickets (loan_id, user_id, token, status, requested_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        t.LoanID, t.UserID, t.Token, model.TicketPending,
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

// ExistsPendingForLoanTx reports whether the loan already has a live
// return ticket; a second one would be two QR codes for the same return.
func (r *ReturnTicketRepo) ExistsPendingForLoanTx(ctx context.Context, tx *sql.Tx, loanID uint64, now time.Time) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM return_tickets
                 WHERE loan_id = ? AND status = ? AND expires_at > ?
               )`
    var exists bool
    err := tx.QueryRowContext(ctx, q, loanID, model.TicketPending,
        now.UTC().Format("2006-01-02 15:04:05")).Scan(&exists)
    return exists, err
}

// GetByTokenForUpdateTx retrieves a ticket by its token under a row lock.
func (r *ReturnTicketRepo) GetByTokenForUpdateTx(ctx context.Context, tx *sql.Tx, token string) (*model.ReturnTicket, error) {
    const q = `SELECT ` + returnTicketColumns + ` FROM return_tickets WHERE token = ? FOR UPDATE`
    return scanReturnTicket(tx.QueryRowContext(ctx, q, token))
}

// ConfirmTx moves a PENDING ticket to CONFIRMED, exactly once.
func (r *ReturnTicketRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, ticketID, staffID uint64, at time.Time) error {
    const q = `UPDATE return_tickets
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
func (r *ReturnTicketRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, ticketID uint64) error {
    const q = `UPDATE return_tickets SET status = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, model.TicketExpired, ticketID, model.TicketPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTicketNotPending
    }
    return nil
}

// CancelTx voids a PENDING ticket with a reason, used by the desk when the
// ticket turns out to point at a loan that is already closed.
func (r *ReturnTicketRepo) CancelTx(ctx context.Context, tx *sql.Tx, ticketID uint64, reason string) error {
    const q = `UPDATE return_tickets
               SET status = ?, cancelled_reason = ?
               WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, model.TicketCancelled, reason, ticketID, model.TicketPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTicketNotPending
    }
    return nil
}

// CancelOwned cancels the user's own PENDING ticket.
func (r *ReturnTicketRepo) CancelOwned(ctx context.Context, ticketID, userID uint64, reason string) error {
    const q = `UPDATE return_tickets
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
    err = r.db.QueryRowContext(ctx, `SELECT user_id FROM return_tickets WHERE id = ?`, ticketID).Scan(&owner)
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

// ListByUser retrieves the user's return tickets, newest first.
func (r *ReturnTicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ReturnTicket, error) {
    const q = `SELECT ` + returnTicketColumns + ` FROM return_tickets
               WHERE user_id = ? ORDER BY requested_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.ReturnTicket
    for rows.Next() {
        var t model.ReturnTicket
        if err := rows.Scan(
            &t.ID, &t.LoanID, &t.UserID, &t.Token, &t.Status,
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
func (r *ReturnTicketRepo) GetOwned(ctx context.Context, ticketID, userID uint64) (*model.ReturnTicket, error) {
    t, err := scanReturnTicket(r.db.QueryRowContext(ctx,
        `SELECT `+returnTicketColumns+` FROM return_tickets WHERE id = ?`, ticketID))
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, ErrForbidden
    }
    return t, nil
}

// ExpireOld flips every PENDING ticket past its deadline to EXPIRED.
func (r *ReturnTicketRepo) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE return_tickets SET status = ? WHERE status = ? AND expires_at <= ?`
    res, err := r.db.ExecContext(ctx, q, model.TicketExpired, model.TicketPending,
        now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
