package handler

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/config"
    "github.com/minhnq/library-lending/internal/fine"
    "github.com/minhnq/library-lending/internal/model"
    "github.com/minhnq/library-lending/internal/repository"
    "github.com/minhnq/library-lending/internal/vnpay"
)

// PaymentHandler serves payment initiation, the provider's server-to-server
// IPN callback and the browser return page.  The IPN is the only mutation
// path; the return URL is display only.
type PaymentHandler struct {
    DB       *sql.DB
    Cfg      config.Config
    Users    *repository.UserRepo
    Loans    *repository.LoanRepo
    Payments *repository.PaymentRepo
}

func NewPaymentHandler(db *sql.DB, cfg config.Config, users *repository.UserRepo,
    loans *repository.LoanRepo, payments *repository.PaymentRepo) *PaymentHandler {
    if db == nil || users == nil || loans == nil || payments == nil {
        panic("nil dependency passed to NewPaymentHandler")
    }
    return &PaymentHandler{DB: db, Cfg: cfg, Users: users, Loans: loans, Payments: payments}
}

// vnpLocation is the provider's fixed timezone for every wire timestamp.
var vnpLocation = func() *time.Location {
    loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
    if err != nil {
        return time.FixedZone("ICT", 7*3600)
    }
    return loc
}()

const vnpTimeLayout = "20060102150405"

// buildTxnRef builds the provider transaction reference, "F<loanID><unix>"
// for fines and "M<userID><unix>" for membership, clipped to the
// provider's 34-character field.
func buildTxnRef(prefix string, id uint64, now time.Time) string {
    ref := fmt.Sprintf("%s%d%d", prefix, id, now.Unix())
    if len(ref) > 34 {
        ref = ref[:34]
    }
    return ref
}

// callbackSucceeded reports whether a verified provider callback describes
// a successful charge.  Both fields must read 00; a missing
// vnp_TransactionStatus is a failure, not a benign omission.
func callbackSucceeded(responseCode, txnStatus string) bool {
    return responseCode == "00" && txnStatus == "00"
}

// monthsFrom converts a paid amount into whole membership months.
func monthsFrom(amount, monthlyPrice int64) int {
    if monthlyPrice <= 0 || amount <= 0 {
        return 0
    }
    return int(amount / monthlyPrice)
}

// buildPayURL assembles the signed checkout redirect for one payment.
func (h *PaymentHandler) buildPayURL(p *model.Payment, returnURL, clientIP string, now time.Time) string {
    local := now.In(vnpLocation)
    params := map[string]string{
        "vnp_Version":    "2.1.0",
        "vnp_Command":    "pay",
        "vnp_TmnCode":    h.Cfg.VNPay.TmnCode,
        "vnp_Amount":     strconv.FormatInt(p.Amount*100, 10), // provider wants minor units
        "vnp_CurrCode":   "VND",
        "vnp_TxnRef":     p.TxnRef,
        "vnp_OrderInfo":  p.OrderInfo,
        "vnp_OrderType":  "other",
        "vnp_Locale":     "vn",
        "vnp_ReturnUrl":  returnURL,
        "vnp_IpAddr":     clientIP,
        "vnp_CreateDate": local.Format(vnpTimeLayout),
        "vnp_ExpireDate": local.Add(15 * time.Minute).Format(vnpTimeLayout),
    }
    return vnpay.BuildPaymentURL(h.Cfg.VNPay.PayURL, params, h.Cfg.VNPay.HashSecret)
}

type finePaymentReq struct {
    LoanID uint64 `json:"loan_id"`
    Amount int64  `json:"amount"` // optional; defaults to the full remainder
}

// InitiateFine handles POST /v1/payments/fine.  It opens a PENDING payment
// against the loan's outstanding fine and returns the provider checkout URL.
func (h *PaymentHandler) InitiateFine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req finePaymentReq
    if err := c.Bind(&req); err != nil || req.LoanID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "loan_id is required"})
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()
    p := h.Cfg.Policy

    loan, err := h.Loans.GetByID(ctx, req.LoanID)
    if err != nil {
        if errors.Is(err, repository.ErrLoanNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load loan failed"})
    }
    if loan.UserID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    // Quote the fine as of now for open loans; closed loans owe their
    // frozen snapshot.
    owed := loan.FineAmount
    if loan.Open() {
        owed = fine.Compute(loan.DueAt, now, loan.Quantity, p.FinePerDay, p.FreeDays)
    }
    remaining := fine.Remaining(owed, loan.FinePaidTotal)
    if remaining <= 0 {
        return c.JSON(http.StatusConflict, echo.Map{"error": "no outstanding fine on this loan"})
    }
    amount := req.Amount
    if amount == 0 {
        amount = remaining
    }
    if amount < 1 || amount > remaining {
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":     "amount out of range",
            "remaining": remaining,
        })
    }

    loanID := loan.ID
    payment := &model.Payment{
        UserID:    userID,
        LoanID:    &loanID,
        Amount:    amount,
        Currency:  "VND",
        Provider:  "VNPAY",
        TxnRef:    buildTxnRef(model.TxnRefFinePrefix, loan.ID, now),
        OrderInfo: fmt.Sprintf("Thanh toan phi tre han khoan muon %d", loan.ID),
    }
    if err := h.Payments.Create(ctx, payment); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment failed"})
    }

    payURL := h.buildPayURL(payment, h.Cfg.VNPay.ReturnURL, c.RealIP(), now)
    return c.JSON(http.StatusCreated, echo.Map{
        "payment_id": payment.ID,
        "txn_ref":    payment.TxnRef,
        "amount":     payment.Amount,
        "pay_url":    payURL,
    })
}

type membershipPaymentReq struct {
    Months int `json:"months"`
}

// InitiateMembership handles POST /v1/payments/membership.
func (h *PaymentHandler) InitiateMembership(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req membershipPaymentReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.Months < 1 || req.Months > 12 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "months must be between 1 and 12"})
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()

    payment := &model.Payment{
        UserID:    userID,
        Amount:    int64(req.Months) * h.Cfg.Policy.MonthlyPrice,
        Currency:  "VND",
        Provider:  "VNPAY",
        TxnRef:    buildTxnRef(model.TxnRefMembershipPrefix, userID, now),
        OrderInfo: fmt.Sprintf("Gia han the thanh vien %d thang", req.Months),
    }
    if err := h.Payments.Create(ctx, payment); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment failed"})
    }

    returnURL := h.Cfg.VNPay.ReturnURLMembership
    if returnURL == "" {
        returnURL = h.Cfg.VNPay.ReturnURL
    }
    payURL := h.buildPayURL(payment, returnURL, c.RealIP(), now)
    return c.JSON(http.StatusCreated, echo.Map{
        "payment_id": payment.ID,
        "txn_ref":    payment.TxnRef,
        "amount":     payment.Amount,
        "pay_url":    payURL,
    })
}

// queryParams flattens the request query into the map the codec signs over.
func queryParams(c echo.Context) map[string]string {
    out := map[string]string{}
    for k, vs := range c.QueryParams() {
        if len(vs) > 0 {
            out[k] = vs[0]
        }
    }
    return out
}

func ipnReply(c echo.Context, code, msg string) error {
    return c.JSON(http.StatusOK, vnpay.Response{RspCode: code, Message: msg})
}

// IPN handles GET /v1/payments/vnpay/ipn, the provider's server-to-server
// confirmation.  Processing is exactly-once: the payment row lock
// serializes provider retries, terminal payments answer idempotently, and
// the settlement (fine credit or membership extension) commits atomically
// with the payment flip.  Responses use the provider's code vocabulary;
// failure outcomes still answer 00 so the provider stops retrying.
func (h *PaymentHandler) IPN(c echo.Context) error {
    params := queryParams(c)
    if !vnpay.VerifySignature(params, h.Cfg.VNPay.HashSecret) {
        return ipnReply(c, vnpay.CodeSignatureInvalid, "Invalid signature")
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()

    tx, err := h.DB.BeginTx(ctx, nil)
    if err != nil {
        return ipnReply(c, "99", "Unknown error")
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    payment, err := h.Payments.GetByTxnRefForUpdateTx(ctx, tx, params["vnp_TxnRef"])
    if err != nil {
        if errors.Is(err, repository.ErrPaymentNotFound) {
            return ipnReply(c, vnpay.CodeOrderNotFound, "Order not found")
        }
        return ipnReply(c, "99", "Unknown error")
    }
    if payment.Terminal() {
        return ipnReply(c, vnpay.CodeSuccess, "Order already confirmed")
    }
    if params["vnp_TmnCode"] != h.Cfg.VNPay.TmnCode {
        return ipnReply(c, vnpay.CodeSignatureInvalid, "Invalid merchant")
    }
    if cur, ok := params["vnp_CurrCode"]; ok && cur != payment.Currency {
        return ipnReply(c, vnpay.CodeAmountInvalid, "Invalid currency")
    }
    fields := repository.CallbackFields{
        ResponseCode:  params["vnp_ResponseCode"],
        TransactionNo: params["vnp_TransactionNo"],
        BankCode:      params["vnp_BankCode"],
        BankTxnNo:     params["vnp_BankTranNo"],
        CardType:      params["vnp_CardType"],
    }
    if pd, err := time.ParseInLocation(vnpTimeLayout, params["vnp_PayDate"], vnpLocation); err == nil {
        utc := pd.UTC()
        fields.PayDate = &utc
    }

    // A signed callback with the wrong amount is a provider-side mismatch;
    // record the attempt as failed so it cannot settle anything later.
    wantAmount := strconv.FormatInt(payment.Amount*100, 10)
    if params["vnp_Amount"] != wantAmount {
        if err := h.Payments.MarkFailedTx(ctx, tx, payment.ID, fields); err != nil {
            return ipnReply(c, "99", "Unknown error")
        }
        if err := tx.Commit(); err != nil {
            return ipnReply(c, "99", "Unknown error")
        }
        committed = true
        return ipnReply(c, vnpay.CodeAmountInvalid, "Invalid amount")
    }

    succeeded := callbackSucceeded(params["vnp_ResponseCode"], params["vnp_TransactionStatus"])

    if !succeeded {
        if err := h.Payments.MarkFailedTx(ctx, tx, payment.ID, fields); err != nil {
            return ipnReply(c, "99", "Unknown error")
        }
        if err := tx.Commit(); err != nil {
            return ipnReply(c, "99", "Unknown error")
        }
        committed = true
        // 00 on purpose: the failure is recorded, stop the retries.
        return ipnReply(c, vnpay.CodeSuccess, "Confirm Failed")
    }

    if err := h.Payments.MarkSuccessTx(ctx, tx, payment.ID, fields); err != nil {
        return ipnReply(c, "99", "Unknown error")
    }
    if payment.LoanID != nil {
        if err := h.settleFineTx(ctx, tx, *payment.LoanID, payment.Amount, now); err != nil {
            return ipnReply(c, "99", "Unknown error")
        }
    } else {
        months := monthsFrom(payment.Amount, h.Cfg.Policy.MonthlyPrice)
        if months > 0 {
            if _, err := h.Users.ExtendMembershipTx(ctx, tx, payment.UserID, months, now); err != nil {
                return ipnReply(c, "99", "Unknown error")
            }
        }
    }
    if err := tx.Commit(); err != nil {
        return ipnReply(c, "99", "Unknown error")
    }
    committed = true
    return ipnReply(c, vnpay.CodeSuccess, "Confirm Success")
}

// settleFineTx credits a successful payment against the loan's fine inside
// the IPN transaction.  The loan row lock keeps the paid total and status
// consistent with a concurrent desk return.
func (h *PaymentHandler) settleFineTx(ctx context.Context, tx *sql.Tx, loanID uint64, amount int64, now time.Time) error {
    p := h.Cfg.Policy
    loan, err := h.Loans.GetByIDForUpdateTx(ctx, tx, loanID)
    if err != nil {
        return err
    }
    owed := loan.FineAmount
    if loan.Open() {
        owed = fine.Compute(loan.DueAt, now, loan.Quantity, p.FinePerDay, p.FreeDays)
        overdueDays := fine.OverdueDays(loan.DueAt, now, p.FreeDays)
        if err := h.Loans.UpdateFineSnapshotTx(ctx, tx, loan.ID, overdueDays, owed,
            fine.Status(owed, loan.FinePaidTotal)); err != nil {
            return err
        }
    }
    newPaid := loan.FinePaidTotal + amount
    return h.Loans.AddFinePaidTx(ctx, tx, loan.ID, amount, fine.Status(owed, newPaid), now)
}

// Return handles GET /v1/payments/vnpay/return, where the provider sends
// the reader's browser after checkout.  Display only: it validates the
// signature and shows the payment as the IPN left it, or as still pending
// when the IPN has not landed yet.
func (h *PaymentHandler) Return(c echo.Context) error {
    params := queryParams(c)
    if !vnpay.VerifySignature(params, h.Cfg.VNPay.HashSecret) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
    }
    payment, err := h.Payments.GetByTxnRef(c.Request().Context(), params["vnp_TxnRef"])
    if err != nil {
        if errors.Is(err, repository.ErrPaymentNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load payment failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "txn_ref":       payment.TxnRef,
        "amount":        payment.Amount,
        "status":        payment.Status,
        "ipn_verified":  payment.IPNVerified,
        "response_code": params["vnp_ResponseCode"],
    })
}

// List handles GET /v1/payments.
func (h *PaymentHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Payments.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
    }
    if items == nil {
        items = []model.Payment{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
