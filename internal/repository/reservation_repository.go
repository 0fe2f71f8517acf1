package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// ReservationRepo provides data access to the reservations table and
// implements the hold gate that protects the last free copy of a title.
// Every method that reasons about availability runs inside a transaction
// that already holds the book row lock; that lock is the serialization
// point, so the reads below need no locks of their own.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo constructs a ReservationRepo with the given DB handle.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, book_id, status, created_at,
ready_at, expire_at, fulfilled_at, cancelled_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
    var v model.Reservation
    err := row.Scan(
        &v.ID, &v.UserID, &v.BookID, &v.Status, &v.CreatedAt,
        &v.ReadyAt, &v.ExpireAt, &v.FulfilledAt, &v.CancelledAt,
    )
    if err != nil {
        return nil, err
    }
    return &v, nil
}

// HasLiveTx reports whether the user already holds a PENDING or READY
// reservation for the title.
func (r *ReservationRepo) HasLiveTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM reservations
                 WHERE user_id = ? AND book_id = ? AND status IN (?, ?)
               )`
    var exists bool
    err := tx.QueryRowContext(ctx, q, userID, bookID,
        model.ReservationPending, model.ReservationReady).Scan(&exists)
    return exists, err
}

// CreateTx inserts a new PENDING reservation.  Callers have already locked
// the book row and verified the title is out of stock and the user has no
// live reservation.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Reservation) error {
    const q = `INSERT INTO reservations (user_id, book_id, status, created_at)
               VALUES (?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, v.UserID, v.BookID, model.ReservationPending,
        v.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    v.ID = uint64(id)
    v.Status = model.ReservationPending
    return nil
}

// expireReadyDueTx lazily expires any READY reservation for the title
// whose hold window has closed.  Returns how many were expired.
func (r *ReservationRepo) expireReadyDueTx(ctx context.Context, tx *sql.Tx, bookID uint64, now time.Time) (int64, error) {
    const q = `UPDATE reservations SET status = ?
               WHERE book_id = ? AND status = ? AND expire_at <= ?`
    res, err := tx.ExecContext(ctx, q, model.ReservationExpired, bookID, model.ReservationReady,
        now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// getReadyTx returns the title's current READY reservation, or nil.
func (r *ReservationRepo) getReadyTx(ctx context.Context, tx *sql.Tx, bookID uint64) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE book_id = ? AND status = ? LIMIT 1`
    v, err := scanReservation(tx.QueryRowContext(ctx, q, bookID, model.ReservationReady))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return v, err
}

// PromoteOldestPendingTx promotes the title's oldest PENDING reservation
// to READY with a hold window of window from now.  Returns the promoted
// reservation, or nil when the queue is empty.
func (r *ReservationRepo) PromoteOldestPendingTx(ctx context.Context, tx *sql.Tx, bookID uint64, now time.Time, window time.Duration) (*model.Reservation, error) {
    const sel = `SELECT ` + reservationColumns + ` FROM reservations
                 WHERE book_id = ? AND status = ?
                 ORDER BY created_at, id LIMIT 1 FOR UPDATE`
    v, err := scanReservation(tx.QueryRowContext(ctx, sel, bookID, model.ReservationPending))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }

    readyAt := now.UTC()
    expireAt := readyAt.Add(window)
    const upd = `UPDATE reservations SET status = ?, ready_at = ?, expire_at = ? WHERE id = ?`
    if _, err := tx.ExecContext(ctx, upd, model.ReservationReady,
        readyAt.Format("2006-01-02 15:04:05"), expireAt.Format("2006-01-02 15:04:05"), v.ID); err != nil {
        return nil, err
    }
    v.Status = model.ReservationReady
    v.ReadyAt = &readyAt
    v.ExpireAt = &expireAt
    return v, nil
}

// gateGuardsLastCopy reports whether availability puts the borrow under
// the single-copy gate at all.  Two or more free copies pass without a
// hold check, and zero copies pass too; the conditional stock decrement
// is what fails in that case.
func gateGuardsLastCopy(available int) bool {
    return available == 1
}

// readyHoldAllows decides the gate when a live READY hold survives lazy
// expiry: the last copy is reserved for the hold's owner and nobody else.
func readyHoldAllows(ready *model.Reservation, userID uint64) bool {
    return ready.UserID == userID
}

// promotionAllows decides the gate after the FIFO promotion ran.  An
// empty queue leaves the copy up for grabs, and a promotion of the
// caller's own reservation is the caller collecting their turn; anyone
// else's promotion claims the copy.
func promotionAllows(promoted *model.Reservation, userID uint64) bool {
    return promoted == nil || promoted.UserID == userID
}

// GateBorrowTx decides whether userID may take copies of the locked book
// right now, given the book's current availability.  With exactly one
// free copy the gate first lazily expires a stale READY hold, then
// enforces priority: an existing READY hold reserves the copy for its
// owner, and an empty READY slot promotes the oldest queued reader
// before deciding.  The promoted reservation (if any) is returned so the
// caller can notify its owner after commit.
func (r *ReservationRepo) GateBorrowTx(ctx context.Context, tx *sql.Tx, book *model.Book, userID uint64, now time.Time, window time.Duration) (*model.Reservation, error) {
    if !gateGuardsLastCopy(book.AvailableQuantity) {
        return nil, nil
    }
    if _, err := r.expireReadyDueTx(ctx, tx, book.ID, now); err != nil {
        return nil, err
    }
    ready, err := r.getReadyTx(ctx, tx, book.ID)
    if err != nil {
        return nil, err
    }
    if ready != nil {
        if readyHoldAllows(ready, userID) {
            return nil, nil
        }
        return nil, ErrHeldForOther
    }
    promoted, err := r.PromoteOldestPendingTx(ctx, tx, book.ID, now, window)
    if err != nil {
        return nil, err
    }
    if promotionAllows(promoted, userID) {
        return promoted, nil
    }
    return promoted, ErrHeldForOther
}

// MarkFulfilledIfAnyTx marks the user's live reservation for the title as
// FULFILLED, if one exists.  Borrowing a reserved title consumes the
// reservation whether it was READY or still queued.
func (r *ReservationRepo) MarkFulfilledIfAnyTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64, now time.Time) (bool, error) {
    const q = `UPDATE reservations
               SET status = ?, fulfilled_at = ?
               WHERE user_id = ? AND book_id = ? AND status IN (?, ?)
               ORDER BY FIELD(status, ?, ?), created_at LIMIT 1`
    res, err := tx.ExecContext(ctx, q,
        model.ReservationFulfilled, now.UTC().Format("2006-01-02 15:04:05"),
        userID, bookID, model.ReservationReady, model.ReservationPending,
        model.ReservationReady, model.ReservationPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// QueueDepthTx returns how many live reservations (PENDING or READY) are
// waiting on the title.  A non-empty queue on an out-of-stock title blocks
// loan extensions.
func (r *ReservationRepo) QueueDepthTx(ctx context.Context, tx *sql.Tx, bookID uint64) (int, error) {
    const q = `SELECT COUNT(*) FROM reservations
               WHERE book_id = ? AND status IN (?, ?)`
    var n int
    err := tx.QueryRowContext(ctx, q, bookID, model.ReservationPending, model.ReservationReady).Scan(&n)
    return n, err
}

// CancelOwn withdraws the user's own live reservation.
func (r *ReservationRepo) CancelOwn(ctx context.Context, reservationID, userID uint64, now time.Time) error {
    const q = `UPDATE reservations SET status = ?, cancelled_at = ?
               WHERE id = ? AND user_id = ? AND status IN (?, ?)`
    res, err := r.db.ExecContext(ctx, q, model.ReservationCancelled,
        now.UTC().Format("2006-01-02 15:04:05"),
        reservationID, userID, model.ReservationPending, model.ReservationReady)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return nil
    }
    var owner uint64
    err = r.db.QueryRowContext(ctx, `SELECT user_id FROM reservations WHERE id = ?`, reservationID).Scan(&owner)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrConflict
    }
    if err != nil {
        return err
    }
    if owner != userID {
        return ErrForbidden
    }
    return ErrConflict
}

// ListByUser retrieves the user's reservations, live first, then by age.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE user_id = ?
               ORDER BY status IN (?, ?) DESC, created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID, model.ReservationPending, model.ReservationReady)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Reservation
    for rows.Next() {
        var v model.Reservation
        if err := rows.Scan(
            &v.ID, &v.UserID, &v.BookID, &v.Status, &v.CreatedAt,
            &v.ReadyAt, &v.ExpireAt, &v.FulfilledAt, &v.CancelledAt,
        ); err != nil {
            return nil, err
        }
        result = append(result, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// ListReadyByUser retrieves the user's currently READY holds whose window
// is still open, for the pickup notice shown after login.
func (r *ReservationRepo) ListReadyByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE user_id = ? AND status = ? AND expire_at > ?
               ORDER BY expire_at`
    rows, err := r.db.QueryContext(ctx, q, userID, model.ReservationReady,
        now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Reservation
    for rows.Next() {
        var v model.Reservation
        if err := rows.Scan(
            &v.ID, &v.UserID, &v.BookID, &v.Status, &v.CreatedAt,
            &v.ReadyAt, &v.ExpireAt, &v.FulfilledAt, &v.CancelledAt,
        ); err != nil {
            return nil, err
        }
        result = append(result, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// BooksWithExpiredReady returns the distinct titles that currently carry a
// READY hold past its window.  The sweeper walks this list and settles
// each title in its own short transaction.
func (r *ReservationRepo) BooksWithExpiredReady(ctx context.Context, now time.Time) ([]uint64, error) {
    const q = `SELECT DISTINCT book_id FROM reservations
               WHERE status = ? AND expire_at <= ?`
    rows, err := r.db.QueryContext(ctx, q, model.ReservationReady,
        now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// PromoteIfNoReadyTx hands out a pickup window when the READY slot is
// empty: it lazily expires a stale READY hold, and promotes the oldest
// queued reader only if no live READY hold remains.  The return confirm
// path calls this after restocking a previously empty shelf.
func (r *ReservationRepo) PromoteIfNoReadyTx(ctx context.Context, tx *sql.Tx, bookID uint64, now time.Time, window time.Duration) (*model.Reservation, error) {
    if _, err := r.expireReadyDueTx(ctx, tx, bookID, now); err != nil {
        return nil, err
    }
    ready, err := r.getReadyTx(ctx, tx, bookID)
    if err != nil {
        return nil, err
    }
    if ready != nil {
        return nil, nil
    }
    return r.PromoteOldestPendingTx(ctx, tx, bookID, now, window)
}

// ExpireAndPromoteTx expires the title's overdue READY hold and, when a
// copy is still free, hands the window to the next reader in line.  The
// caller locks the book row first and passes its availability.
func (r *ReservationRepo) ExpireAndPromoteTx(ctx context.Context, tx *sql.Tx, book *model.Book, now time.Time, window time.Duration) (*model.Reservation, error) {
    n, err := r.expireReadyDueTx(ctx, tx, book.ID, now)
    if err != nil {
        return nil, err
    }
    if n == 0 || book.AvailableQuantity < 1 {
        return nil, nil
    }
    return r.PromoteOldestPendingTx(ctx, tx, book.ID, now, window)
}
