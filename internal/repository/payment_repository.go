package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo with the given DB handle.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, user_id, loan_id, amount, currency, provider, txn_ref, order_info,
status, ipn_verified, response_code, transaction_no, bank_code, bank_txn_no, card_type, pay_date,
created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
    var p model.Payment
    err := row.Scan(
        &p.ID, &p.UserID, &p.LoanID, &p.Amount, &p.Currency, &p.Provider, &p.TxnRef, &p.OrderInfo,
        &p.Status, &p.IPNVerified, &p.ResponseCode, &p.TransactionNo, &p.BankCode, &p.BankTxnNo,
        &p.CardType, &p.PayDate, &p.CreatedAt, &p.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrPaymentNotFound
        }
        return nil, err
    }
    return &p, nil
}

// Create inserts a new PENDING payment attempt.  On success the payment's
// ID is populated.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (user_id, loan_id, amount, currency, provider, txn_ref, order_info, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        p.UserID, p.LoanID, p.Amount, p.Currency, p.Provider, p.TxnRef, p.OrderInfo, model.PaymentPending)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    p.Status = model.PaymentPending
    return nil
}

// GetByTxnRef retrieves a payment by its transaction reference without
// locking, for the display-only return page.
func (r *PaymentRepo) GetByTxnRef(ctx context.Context, txnRef string) (*model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments WHERE txn_ref = ?`
    return scanPayment(r.db.QueryRowContext(ctx, q, txnRef))
}

// GetByTxnRefForUpdateTx retrieves a payment by its transaction reference
// under a row lock.  IPN processing locks here so concurrent provider
// retries serialize and only the first one settles the payment.
func (r *PaymentRepo) GetByTxnRefForUpdateTx(ctx context.Context, tx *sql.Tx, txnRef string) (*model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments WHERE txn_ref = ? FOR UPDATE`
    return scanPayment(tx.QueryRowContext(ctx, q, txnRef))
}

// CallbackFields carries the provider-reported details stamped onto a
// payment when its callback settles it.
type CallbackFields struct {
    ResponseCode  string
    TransactionNo string
    BankCode      string
    BankTxnNo     string
    CardType      string
    PayDate       *time.Time
}

func nullIfEmpty(s string) any {
    if s == "" {
        return nil
    }
    return s
}

// MarkSuccessTx settles the payment as SUCCESS with ipn_verified set and
// the provider's details recorded.
func (r *PaymentRepo) MarkSuccessTx(ctx context.Context, tx *sql.Tx, paymentID uint64, f CallbackFields) error {
    return r.settleTx(ctx, tx, paymentID, model.PaymentSuccess, f)
}

// MarkFailedTx settles the payment as FAILED with ipn_verified set; the
// provider reported a signed, final failure.
func (r *PaymentRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, paymentID uint64, f CallbackFields) error {
    return r.settleTx(ctx, tx, paymentID, model.PaymentFailed, f)
}

func (r *PaymentRepo) settleTx(ctx context.Context, tx *sql.Tx, paymentID uint64, status string, f CallbackFields) error {
    const q = `UPDATE payments
               SET status = ?, ipn_verified = TRUE, response_code = ?, transaction_no = ?,
                   bank_code = ?, bank_txn_no = ?, card_type = ?, pay_date = ?,
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status = ?`
    var payDate any
    if f.PayDate != nil {
        payDate = f.PayDate.UTC().Format("2006-01-02 15:04:05")
    }
    res, err := tx.ExecContext(ctx, q,
        status, nullIfEmpty(f.ResponseCode), nullIfEmpty(f.TransactionNo),
        nullIfEmpty(f.BankCode), nullIfEmpty(f.BankTxnNo), nullIfEmpty(f.CardType), payDate,
        paymentID, model.PaymentPending)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrConflict
    }
    return nil
}

// ListByUser retrieves the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments
               WHERE user_id = ? ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Payment
    for rows.Next() {
        var p model.Payment
        if err := rows.Scan(
            &p.ID, &p.UserID, &p.LoanID, &p.Amount, &p.Currency, &p.Provider, &p.TxnRef, &p.OrderInfo,
            &p.Status, &p.IPNVerified, &p.ResponseCode, &p.TransactionNo, &p.BankCode, &p.BankTxnNo,
            &p.CardType, &p.PayDate, &p.CreatedAt, &p.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        result = append(result, p)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}
