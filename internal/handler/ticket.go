package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/config"
    "github.com/minhnq/library-lending/internal/fine"
    "github.com/minhnq/library-lending/internal/model"
    "github.com/minhnq/library-lending/internal/qr"
    "github.com/minhnq/library-lending/internal/repository"
)

// TicketHandler serves the reader-facing ticket endpoints: requesting a
// borrow or return, rendering the QR, cancelling and listing.  Every
// request path that reads availability runs inside a transaction holding
// the book row lock, so the decision it makes is the decision that
// commits.
type TicketHandler struct {
    DB            *sql.DB
    Cfg           config.Config
    Users         *repository.UserRepo
    Books         *repository.BookRepo
    Loans         *repository.LoanRepo
    BorrowTickets *repository.BorrowTicketRepo
    ReturnTickets *repository.ReturnTicketRepo
    Reservations  *repository.ReservationRepo
}

func NewTicketHandler(db *sql.DB, cfg config.Config, users *repository.UserRepo, books *repository.BookRepo,
    loans *repository.LoanRepo, bt *repository.BorrowTicketRepo, rt *repository.ReturnTicketRepo,
    rv *repository.ReservationRepo) *TicketHandler {
    if db == nil || users == nil || books == nil || loans == nil || bt == nil || rt == nil || rv == nil {
        panic("nil dependency passed to NewTicketHandler")
    }
    return &TicketHandler{DB: db, Cfg: cfg, Users: users, Books: books, Loans: loans,
        BorrowTickets: bt, ReturnTickets: rt, Reservations: rv}
}

type borrowTicketReq struct {
    BookID   uint64 `json:"book_id"`
    Quantity int    `json:"quantity"`
    Days     int    `json:"days"`
}

type returnTicketReq struct {
    LoanID uint64 `json:"loan_id"`
}

// ticketQR renders the scan URL and inline QR image for a ticket token.
func (h *TicketHandler) ticketQR(action, token string) (echo.Map, error) {
    scanURL := qr.ScanURL(h.Cfg.BaseURL, action, token)
    img, err := qr.DataURIPNG(scanURL, 256)
    if err != nil {
        return nil, err
    }
    return echo.Map{"scan_url": scanURL, "qr_png": img}, nil
}

// ticketCreatedBody builds the 201 payload for a freshly persisted ticket.
// The commit already happened, so a failed QR render must not read as a
// failed request; the qr field comes back null and the client re-renders
// through the ticket's /qr endpoint.
func ticketCreatedBody(ticket interface{}, qrPart echo.Map, qrErr error) echo.Map {
    body := echo.Map{"ticket": ticket, "qr": nil}
    if qrErr == nil {
        body["qr"] = qrPart
    }
    return body
}

// CreateBorrow handles POST /v1/tickets/borrow.  It validates the request
// against the lending policy under the book row lock and issues a PENDING
// ticket with a QR code for the desk.  No stock moves here; copies leave
// the shelf only when staff confirm the scan.
func (h *TicketHandler) CreateBorrow(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req borrowTicketReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.BookID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "book_id is required"})
    }
    if req.Quantity == 0 {
        req.Quantity = 1
    }
    if req.Quantity < 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()

    tx, err := h.DB.BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    u, err := h.Users.GetByIDTx(ctx, tx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    member := u.IsMember(now)
    maxDays := maxDaysFor(h.Cfg.Policy, member)
    if req.Days == 0 {
        req.Days = maxDays
    }
    if req.Days < 1 || req.Days > maxDays {
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":    "days out of range for this account",
            "max_days": maxDays,
        })
    }

    book, err := h.Books.GetByIDForUpdateTx(ctx, tx, req.BookID)
    if err != nil {
        if errors.Is(err, repository.ErrBookNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load book failed"})
    }

    // An overdue open loan freezes all new borrowing until settled.
    locked, err := h.Loans.ExistsOverdueOpenTx(ctx, tx, userID, now)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "debt check failed"})
    }
    if locked {
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrDebtLocked.Error()})
    }

    open, err := h.Loans.SumOpenQuantityTx(ctx, tx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cap check failed"})
    }
    capLimit := copyCapFor(h.Cfg.Policy, member)
    if open+req.Quantity > capLimit {
        return c.JSON(http.StatusConflict, echo.Map{
            "error": repository.ErrLimitExceeded.Error(),
            "open":  open,
            "cap":   capLimit,
        })
    }

    if book.AvailableQuantity < req.Quantity {
        return c.JSON(http.StatusConflict, echo.Map{
            "error":     repository.ErrInsufficientStock.Error(),
            "available": book.AvailableQuantity,
        })
    }

    window := time.Duration(h.Cfg.Policy.HoldWindowHours) * time.Hour
    promoted, err := h.Reservations.GateBorrowTx(ctx, tx, book, userID, now, window)
    if err != nil {
        if errors.Is(err, repository.ErrHeldForOther) {
            if promoted != nil {
                // The promotion stands even though this caller is refused.
                if errC := tx.Commit(); errC == nil {
                    committed = true
                    announceHoldReady(promoted, book)
                }
            }
            return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrHeldForOther.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hold gate failed"})
    }

    ticket := &model.BorrowTicket{
        UserID:      userID,
        BookID:      book.ID,
        Quantity:    req.Quantity,
        Days:        req.Days,
        Token:       qr.NewToken(),
        RequestedAt: now,
        ExpiresAt:   now.Add(time.Duration(h.Cfg.Policy.TicketTTLHours) * time.Hour),
    }
    if err := h.BorrowTickets.CreateTx(ctx, tx, ticket); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ticket failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    if promotionIsNews(promoted, userID) {
        announceHoldReady(promoted, book)
    }

    qrPart, err := h.ticketQR("lend", ticket.Token)
    if err != nil {
        c.Logger().Warnf("render qr for borrow ticket %d failed: %v", ticket.ID, err)
    }
    return c.JSON(http.StatusCreated, ticketCreatedBody(ticket, qrPart, err))
}

// CreateReturn handles POST /v1/tickets/return.  It issues a PENDING
// return ticket for one of the caller's open loans.
func (h *TicketHandler) CreateReturn(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req returnTicketReq
    if err := c.Bind(&req); err != nil || req.LoanID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "loan_id is required"})
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()

    tx, err := h.DB.BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    loan, err := h.Loans.GetByIDForUpdateTx(ctx, tx, req.LoanID)
    if err != nil {
        if errors.Is(err, repository.ErrLoanNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load loan failed"})
    }
    if loan.UserID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    if !loan.Open() {
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrAlreadyReturned.Error()})
    }
    // The desk will refuse the hand-back while a fine is outstanding, so
    // the ticket is refused up front with the same number the desk quotes.
    p := h.Cfg.Policy
    owed := fine.Compute(loan.DueAt, now, loan.Quantity, p.FinePerDay, p.FreeDays)
    if remaining := fine.Remaining(owed, loan.FinePaidTotal); remaining > 0 {
        due := &repository.FineDueError{Remaining: remaining}
        return c.JSON(http.StatusPaymentRequired, echo.Map{
            "error":       due.Error(),
            "fine_amount": owed,
            "paid_total":  loan.FinePaidTotal,
            "remaining":   remaining,
        })
    }
    exists, err := h.ReturnTickets.ExistsPendingForLoanTx(ctx, tx, loan.ID, now)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ticket check failed"})
    }
    if exists {
        return c.JSON(http.StatusConflict, echo.Map{"error": "a return ticket for this loan is already pending"})
    }

    ticket := &model.ReturnTicket{
        LoanID:      loan.ID,
        UserID:      userID,
        Token:       qr.NewToken(),
        RequestedAt: now,
        ExpiresAt:   now.Add(time.Duration(h.Cfg.Policy.TicketTTLHours) * time.Hour),
    }
    if err := h.ReturnTickets.CreateTx(ctx, tx, ticket); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ticket failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    qrPart, err := h.ticketQR("return", ticket.Token)
    if err != nil {
        c.Logger().Warnf("render qr for return ticket %d failed: %v", ticket.ID, err)
    }
    return c.JSON(http.StatusCreated, ticketCreatedBody(ticket, qrPart, err))
}

// BorrowQR handles GET /v1/tickets/borrow/:id/qr, re-rendering the QR for
// a ticket the caller owns while it is still PENDING.
func (h *TicketHandler) BorrowQR(c echo.Context) error {
    return h.ticketQRByID(c, "lend")
}

// ReturnQR handles GET /v1/tickets/return/:id/qr.
func (h *TicketHandler) ReturnQR(c echo.Context) error {
    return h.ticketQRByID(c, "return")
}

func (h *TicketHandler) ticketQRByID(c echo.Context, action string) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    ctx := c.Request().Context()

    var token, status string
    if action == "lend" {
        t, err := h.BorrowTickets.GetOwned(ctx, id, userID)
        if err != nil {
            return ticketLookupError(c, err)
        }
        token, status = t.Token, t.Status
    } else {
        t, err := h.ReturnTickets.GetOwned(ctx, id, userID)
        if err != nil {
            return ticketLookupError(c, err)
        }
        token, status = t.Token, t.Status
    }
    if status != model.TicketPending {
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not pending", "status": status})
    }
    qrPart, err := h.ticketQR(action, token)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render qr failed"})
    }
    return c.JSON(http.StatusOK, qrPart)
}

func ticketLookupError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrTicketNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket failed"})
    }
}

// CancelBorrow handles DELETE /v1/tickets/borrow/:id.
func (h *TicketHandler) CancelBorrow(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    return cancelTicketResponse(c, h.BorrowTickets.CancelOwned(c.Request().Context(), id, userID, "cancelled by user"))
}

// CancelReturn handles DELETE /v1/tickets/return/:id.
func (h *TicketHandler) CancelReturn(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    return cancelTicketResponse(c, h.ReturnTickets.CancelOwned(c.Request().Context(), id, userID, "cancelled by user"))
}

func cancelTicketResponse(c echo.Context, err error) error {
    switch {
    case err == nil:
        return c.NoContent(http.StatusNoContent)
    case errors.Is(err, repository.ErrTicketNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already settled"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel ticket failed"})
    }
}

// ListBorrow handles GET /v1/tickets/borrow.
func (h *TicketHandler) ListBorrow(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.BorrowTickets.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
    }
    if items == nil {
        items = []model.BorrowTicket{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListReturn handles GET /v1/tickets/return.
func (h *TicketHandler) ListReturn(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.ReturnTickets.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
    }
    if items == nil {
        items = []model.ReturnTicket{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
