package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// LoanRepo provides data access to the loans table.
type LoanRepo struct {
    db *sql.DB
}

// NewLoanRepo constructs a LoanRepo with the given DB handle.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

const loanColumns = `id, user_id, book_id, quantity, borrowed_at, due_at, returned_at,
overdue_days, fine_amount, fine_paid_total, fine_paid_at, fine_status, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
    var l model.Loan
    err := row.Scan(
        &l.ID, &l.UserID, &l.BookID, &l.Quantity, &l.BorrowedAt, &l.DueAt, &l.ReturnedAt,
        &l.OverdueDays, &l.FineAmount, &l.FinePaidTotal, &l.FinePaidAt, &l.FineStatus,
        &l.CreatedAt, &l.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrLoanNotFound
        }
        return nil, err
    }
    return &l, nil
}

// SumOpenQuantityTx returns the total number of copies the user currently
// has out across all open loans.  Runs inside the caller's transaction so
// cap checks see loans created earlier in the same confirm.
func (r *LoanRepo) SumOpenQuantityTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(quantity), 0) FROM loans
               WHERE user_id = ? AND returned_at IS NULL`
    var sum int
    if err := tx.QueryRowContext(ctx, q, userID).Scan(&sum); err != nil {
        return 0, err
    }
    return sum, nil
}

// ExistsOverdueOpenTx reports whether the user has any open loan already
// past its due date.  One such loan debt-locks all new borrowing.
func (r *LoanRepo) ExistsOverdueOpenTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM loans
                 WHERE user_id = ? AND returned_at IS NULL AND due_at IS NOT NULL AND due_at < ?
               )`
    var exists bool
    err := tx.QueryRowContext(ctx, q, userID, now.UTC().Format("2006-01-02 15:04:05")).Scan(&exists)
    return exists, err
}

// FindOpenForMergeTx locks and returns the user's open loan on the same
// title with exactly the same due timestamp, or nil when no such loan
// exists.  Confirming a second ticket that resolves to an identical due
// date merges into this row instead of opening a parallel loan.
func (r *LoanRepo) FindOpenForMergeTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64, dueAt time.Time) (*model.Loan, error) {
    const q = `SELECT ` + loanColumns + ` FROM loans
               WHERE user_id = ? AND book_id = ? AND returned_at IS NULL AND due_at = ?
               LIMIT 1 FOR UPDATE`
    l, err := scanLoan(tx.QueryRowContext(ctx, q, userID, bookID, dueAt.UTC().Format("2006-01-02 15:04:05")))
    if errors.Is(err, ErrLoanNotFound) {
        return nil, nil
    }
    return l, err
}

// CreateTx inserts a new open loan.  On success the loan's ID is populated.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
    const q = `INSERT INTO loans (user_id, book_id, quantity, borrowed_at, due_at, fine_status)
               VALUES (?, ?, ?, ?, ?, ?)`
    var due any
    if l.DueAt != nil {
        due = l.DueAt.UTC().Format("2006-01-02 15:04:05")
    }
    res, err := tx.ExecContext(ctx, q,
        l.UserID, l.BookID, l.Quantity,
        l.BorrowedAt.UTC().Format("2006-01-02 15:04:05"), due, model.FinePaid)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    l.ID = uint64(id)
    return nil
}

// AddQuantityTx merges qty more copies into an existing open loan.
func (r *LoanRepo) AddQuantityTx(ctx context.Context, tx *sql.Tx, loanID uint64, qty int) error {
    const q = `UPDATE loans SET quantity = quantity + ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, qty, loanID)
    return err
}

// GetByID retrieves a loan by id.
func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
    const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
    return scanLoan(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx retrieves a loan under a row lock.  Return
// confirmation, fine settlement and extension all lock the loan row first
// so their read-decide-write sequences cannot interleave.
func (r *LoanRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
    const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ? FOR UPDATE`
    return scanLoan(tx.QueryRowContext(ctx, q, id))
}

// SetReturnedTx closes the loan: stamps returned_at and freezes the final
// overdue/fine snapshot computed by the caller.
func (r *LoanRepo) SetReturnedTx(ctx context.Context, tx *sql.Tx, loanID uint64, returnedAt time.Time, overdueDays int, fineAmount int64, fineStatus string) error {
    const q = `UPDATE loans
               SET returned_at = ?, overdue_days = ?, fine_amount = ?, fine_status = ?,
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND returned_at IS NULL`
    res, err := tx.ExecContext(ctx, q,
        returnedAt.UTC().Format("2006-01-02 15:04:05"), overdueDays, fineAmount, fineStatus, loanID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrAlreadyReturned
    }
    return nil
}

// UpdateFineSnapshotTx refreshes the stored overdue/fine snapshot on an
// open loan without touching its lifecycle fields.
func (r *LoanRepo) UpdateFineSnapshotTx(ctx context.Context, tx *sql.Tx, loanID uint64, overdueDays int, fineAmount int64, fineStatus string) error {
    const q = `UPDATE loans
               SET overdue_days = ?, fine_amount = ?, fine_status = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, overdueDays, fineAmount, fineStatus, loanID)
    return err
}

// AddFinePaidTx credits a settled amount against the loan's fine and
// stores the recomputed status.  fine_paid_at is stamped only when the
// status reaches PAID.
func (r *LoanRepo) AddFinePaidTx(ctx context.Context, tx *sql.Tx, loanID uint64, amount int64, newStatus string, paidAt time.Time) error {
    q := `UPDATE loans
          SET fine_paid_total = fine_paid_total + ?, fine_status = ?, updated_at = UTC_TIMESTAMP()`
    args := []any{amount, newStatus}
    if newStatus == model.FinePaid {
        q += `, fine_paid_at = ?`
        args = append(args, paidAt.UTC().Format("2006-01-02 15:04:05"))
    }
    q += ` WHERE id = ?`
    args = append(args, loanID)
    _, err := tx.ExecContext(ctx, q, args...)
    return err
}

// UpdateDueDateTx moves an open loan's due date, used by extensions.
func (r *LoanRepo) UpdateDueDateTx(ctx context.Context, tx *sql.Tx, loanID uint64, dueAt time.Time) error {
    const q = `UPDATE loans SET due_at = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND returned_at IS NULL`
    res, err := tx.ExecContext(ctx, q, dueAt.UTC().Format("2006-01-02 15:04:05"), loanID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrAlreadyReturned
    }
    return nil
}

// ListByUser retrieves the user's loans, open first, newest first within
// each group.
func (r *LoanRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Loan, error) {
    const q = `SELECT ` + loanColumns + ` FROM loans
               WHERE user_id = ?
               ORDER BY returned_at IS NOT NULL, borrowed_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Loan
    for rows.Next() {
        var l model.Loan
        if err := rows.Scan(
            &l.ID, &l.UserID, &l.BookID, &l.Quantity, &l.BorrowedAt, &l.DueAt, &l.ReturnedAt,
            &l.OverdueDays, &l.FineAmount, &l.FinePaidTotal, &l.FinePaidAt, &l.FineStatus,
            &l.CreatedAt, &l.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        result = append(result, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}
