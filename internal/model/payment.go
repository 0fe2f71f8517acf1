package model

import "time"

// Payment states.  PENDING is the only live state; SUCCESS and FAILED are
// terminal and idempotent — a repeated provider callback for a terminal
// payment must be a no-op.
const (
    PaymentPending = "PENDING"
    PaymentSuccess = "SUCCESS"
    PaymentFailed  = "FAILED"
)

// Transaction reference prefixes distinguish what a payment settles.
// TxnRef is "F<loanID><unixSeconds>" for fines and "M<userID><unixSeconds>"
// for membership, truncated to the provider's 34-character limit.
const (
    TxnRefFinePrefix       = "F"
    TxnRefMembershipPrefix = "M"
)

// Payment records one online payment attempt against the provider, stored
// in the `payments` table.  A payment settles either a loan fine (LoanID
// set) or a membership extension (LoanID null).  Amount is plain VND; the
// provider's x100 minor-unit scaling happens only at the wire boundary.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – paying user.
//  LoanID        – fined loan being settled (null for membership).
//  Amount        – amount in VND.
//  Currency      – ISO code, always "VND" today.
//  Provider      – payment provider name ("VNPAY").
//  TxnRef        – unique transaction reference sent to the provider.
//  OrderInfo     – human-readable order description.
//  Status        – PENDING / SUCCESS / FAILED.
//  IPNVerified   – whether a signed provider callback confirmed the payment.
//  ResponseCode  – provider response code from the callback (nullable).
//  TransactionNo – provider-side transaction number (nullable).
//  BankCode      – paying bank (nullable).
//  BankTxnNo     – bank-side transaction number (nullable).
//  CardType      – card/wallet type (nullable).
//  PayDate       – provider-reported payment time (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Payment struct {
    ID            uint64     // payments.id
    UserID        uint64     // payments.user_id
    LoanID        *uint64    // payments.loan_id (nullable)
    Amount        int64      // payments.amount (VND)
    Currency      string     // payments.currency
    Provider      string     // payments.provider
    TxnRef        string     // payments.txn_ref
    OrderInfo     string     // payments.order_info
    Status        string     // payments.status
    IPNVerified   bool       // payments.ipn_verified
    ResponseCode  *string    // payments.response_code (nullable)
    TransactionNo *string    // payments.transaction_no (nullable)
    BankCode      *string    // payments.bank_code (nullable)
    BankTxnNo     *string    // payments.bank_txn_no (nullable)
    CardType      *string    // payments.card_type (nullable)
    PayDate       *time.Time // payments.pay_date (nullable)
    CreatedAt     time.Time  // payments.created_at
    UpdatedAt     time.Time  // payments.updated_at
}

// Terminal reports whether the payment can no longer change.  A repeated
// provider callback for a terminal payment is answered idempotently
// instead of settling anything twice.
func (p *Payment) Terminal() bool {
    return p.Status != PaymentPending || p.IPNVerified
}
