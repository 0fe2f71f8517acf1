package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/config"
    "github.com/minhnq/library-lending/internal/fine"
    "github.com/minhnq/library-lending/internal/model"
    q "github.com/minhnq/library-lending/internal/queue"
    "github.com/minhnq/library-lending/internal/repository"
    queue_publisher "github.com/minhnq/library-lending/internal/service"
)

// DeskHandler serves the staff confirmation endpoints hit by scanning a
// ticket QR at the circulation desk.  Each confirm is one transaction:
// ticket row lock first, then book row lock, then every policy check
// against current state.  The checks at ticket creation were advisory;
// these are the ones that count.
type DeskHandler struct {
    DB            *sql.DB
    Cfg           config.Config
    Users         *repository.UserRepo
    Books         *repository.BookRepo
    Loans         *repository.LoanRepo
    BorrowTickets *repository.BorrowTicketRepo
    ReturnTickets *repository.ReturnTicketRepo
    Reservations  *repository.ReservationRepo
}

func NewDeskHandler(db *sql.DB, cfg config.Config, users *repository.UserRepo, books *repository.BookRepo,
    loans *repository.LoanRepo, bt *repository.BorrowTicketRepo, rt *repository.ReturnTicketRepo,
    rv *repository.ReservationRepo) *DeskHandler {
    if db == nil || users == nil || books == nil || loans == nil || bt == nil || rt == nil || rv == nil {
        panic("nil dependency passed to NewDeskHandler")
    }
    return &DeskHandler{DB: db, Cfg: cfg, Users: users, Books: books, Loans: loans,
        BorrowTickets: bt, ReturnTickets: rt, Reservations: rv}
}

// ConfirmLend handles POST /v1/admin/lend/:token.  On success the copies
// leave the shelf, the loan opens (or merges into an identical open loan)
// and the ticket turns CONFIRMED, all atomically.
func (h *DeskHandler) ConfirmLend(c echo.Context) error {
    staffID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    token := c.Param("token")
    if token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
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

    ticket, err := h.BorrowTickets.GetByTokenForUpdateTx(ctx, tx, token)
    if err != nil {
        if errors.Is(err, repository.ErrTicketNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket failed"})
    }
    if ticket.Status != model.TicketPending {
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not pending", "status": ticket.Status})
    }
    if !now.Before(ticket.ExpiresAt) {
        // Settle the expiry now so the row reflects what the desk saw.
        if err := h.BorrowTickets.MarkExpiredTx(ctx, tx, ticket.ID); err == nil {
            if errC := tx.Commit(); errC == nil {
                committed = true
            }
        }
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket expired", "status": model.TicketExpired})
    }

    book, err := h.Books.GetByIDForUpdateTx(ctx, tx, ticket.BookID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load book failed"})
    }
    u, err := h.Users.GetByIDTx(ctx, tx, ticket.UserID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    member := u.IsMember(now)

    locked, err := h.Loans.ExistsOverdueOpenTx(ctx, tx, ticket.UserID, now)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "debt check failed"})
    }
    if locked {
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrDebtLocked.Error()})
    }

    open, err := h.Loans.SumOpenQuantityTx(ctx, tx, ticket.UserID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cap check failed"})
    }
    capLimit := copyCapFor(h.Cfg.Policy, member)
    if open+ticket.Quantity > capLimit {
        return c.JSON(http.StatusConflict, echo.Map{
            "error": repository.ErrLimitExceeded.Error(),
            "open":  open,
            "cap":   capLimit,
        })
    }

    window := time.Duration(h.Cfg.Policy.HoldWindowHours) * time.Hour
    promoted, err := h.Reservations.GateBorrowTx(ctx, tx, book, ticket.UserID, now, window)
    if err != nil {
        if errors.Is(err, repository.ErrHeldForOther) {
            if promoted != nil {
                if errC := tx.Commit(); errC == nil {
                    committed = true
                    announceHoldReady(promoted, book)
                }
            }
            return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrHeldForOther.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hold gate failed"})
    }

    if err := h.Books.DecrementAvailableTx(ctx, tx, book.ID, ticket.Quantity); err != nil {
        if errors.Is(err, repository.ErrInsufficientStock) {
            return c.JSON(http.StatusConflict, echo.Map{
                "error":     repository.ErrInsufficientStock.Error(),
                "available": book.AvailableQuantity,
            })
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stock update failed"})
    }

    // Same user, same title, same due timestamp: merge instead of opening
    // a parallel loan.
    dueAt := now.Add(time.Duration(ticket.Days) * 24 * time.Hour)
    loan, err := h.Loans.FindOpenForMergeTx(ctx, tx, ticket.UserID, book.ID, dueAt)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "loan lookup failed"})
    }
    if loan != nil {
        if err := h.Loans.AddQuantityTx(ctx, tx, loan.ID, ticket.Quantity); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "loan merge failed"})
        }
        loan.Quantity += ticket.Quantity
    } else {
        loan = &model.Loan{
            UserID:     ticket.UserID,
            BookID:     book.ID,
            Quantity:   ticket.Quantity,
            BorrowedAt: now,
            DueAt:      &dueAt,
            FineStatus: model.FinePaid,
        }
        if err := h.Loans.CreateTx(ctx, tx, loan); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create loan failed"})
        }
    }

    if err := h.BorrowTickets.ConfirmTx(ctx, tx, ticket.ID, staffID, now); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm ticket failed"})
    }
    if _, err := h.Reservations.MarkFulfilledIfAnyTx(ctx, tx, ticket.UserID, book.ID, now); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation update failed"})
    }

    // At the cap, the reader's other pending borrow tickets can never
    // confirm; cancel them so the desk is not scanning dead QR codes.
    cancelled := int64(0)
    if open+ticket.Quantity == capLimit {
        cancelled, err = h.BorrowTickets.CancelAllPendingForUserTx(ctx, tx, ticket.UserID, ticket.ID, "borrow limit reached")
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ticket cleanup failed"})
        }
    }

    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    if promotionIsNews(promoted, ticket.UserID) {
        announceHoldReady(promoted, book)
    }
    ev := q.LoanConfirmedEvent{
        LoanID:      loan.ID,
        TicketID:    ticket.ID,
        UserID:      ticket.UserID,
        BookID:      book.ID,
        BookTitle:   book.Title,
        Quantity:    ticket.Quantity,
        DueAt:       dueAt.Format(time.RFC3339),
        ConfirmedAt: now.Format(time.RFC3339),
    }
    go func() { _ = queue_publisher.PublishLoanConfirmed(context.Background(), ev) }()

    return c.JSON(http.StatusOK, echo.Map{
        "loan_id":           loan.ID,
        "quantity":          loan.Quantity,
        "due_at":            dueAt,
        "cancelled_tickets": cancelled,
    })
}

// ConfirmReturn handles POST /v1/admin/return/:token.  A loan with an
// unsettled fine does not close; the desk gets the remaining amount and
// the reader pays online or at the counter first.
func (h *DeskHandler) ConfirmReturn(c echo.Context) error {
    staffID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    token := c.Param("token")
    if token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
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

    ticket, err := h.ReturnTickets.GetByTokenForUpdateTx(ctx, tx, token)
    if err != nil {
        if errors.Is(err, repository.ErrTicketNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket failed"})
    }
    if ticket.Status != model.TicketPending {
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not pending", "status": ticket.Status})
    }
    if !now.Before(ticket.ExpiresAt) {
        if err := h.ReturnTickets.MarkExpiredTx(ctx, tx, ticket.ID); err == nil {
            if errC := tx.Commit(); errC == nil {
                committed = true
            }
        }
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket expired", "status": model.TicketExpired})
    }

    loan, err := h.Loans.GetByIDForUpdateTx(ctx, tx, ticket.LoanID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load loan failed"})
    }
    if !loan.Open() {
        // The loan closed through another ticket; void this one so it
        // stops showing up as pending.
        if err := h.ReturnTickets.CancelTx(ctx, tx, ticket.ID, "loan already returned"); err == nil {
            if errC := tx.Commit(); errC == nil {
                committed = true
            }
        }
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrAlreadyReturned.Error()})
    }

    p := h.Cfg.Policy
    fineAmount := fine.Compute(loan.DueAt, now, loan.Quantity, p.FinePerDay, p.FreeDays)
    overdueDays := fine.OverdueDays(loan.DueAt, now, p.FreeDays)
    remaining := fine.Remaining(fineAmount, loan.FinePaidTotal)
    if remaining > 0 {
        // Persist the refreshed snapshot so the reader sees the same
        // amount online that the desk just quoted.
        status := fine.Status(fineAmount, loan.FinePaidTotal)
        if err := h.Loans.UpdateFineSnapshotTx(ctx, tx, loan.ID, overdueDays, fineAmount, status); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fine update failed"})
        }
        if errC := tx.Commit(); errC == nil {
            committed = true
        }
        due := &repository.FineDueError{Remaining: remaining}
        return c.JSON(http.StatusPaymentRequired, echo.Map{
            "error":        due.Error(),
            "fine_amount":  fineAmount,
            "paid_total":   loan.FinePaidTotal,
            "remaining":    remaining,
            "overdue_days": overdueDays,
        })
    }

    book, err := h.Books.GetByIDForUpdateTx(ctx, tx, loan.BookID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load book failed"})
    }

    if err := h.Loans.SetReturnedTx(ctx, tx, loan.ID, now, overdueDays, fineAmount, fine.Status(fineAmount, loan.FinePaidTotal)); err != nil {
        if errors.Is(err, repository.ErrAlreadyReturned) {
            return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrAlreadyReturned.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "close loan failed"})
    }
    if err := h.ReturnTickets.ConfirmTx(ctx, tx, ticket.ID, staffID, now); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm ticket failed"})
    }
    if err := h.Books.IncrementAvailableTx(ctx, tx, book.ID, loan.Quantity); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stock update failed"})
    }

    // Copies just came back; if the shelf was empty, hand the next queued
    // reader their pickup window.
    var promoted *model.Reservation
    if book.AvailableQuantity == 0 {
        window := time.Duration(p.HoldWindowHours) * time.Hour
        promoted, err = h.Reservations.PromoteIfNoReadyTx(ctx, tx, book.ID, now, window)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation update failed"})
        }
    }

    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    if promoted != nil {
        announceHoldReady(promoted, book)
    }
    ev := q.ReturnConfirmedEvent{
        LoanID:      loan.ID,
        TicketID:    ticket.ID,
        UserID:      loan.UserID,
        BookID:      book.ID,
        BookTitle:   book.Title,
        Quantity:    loan.Quantity,
        OverdueDays: overdueDays,
        FineAmount:  fineAmount,
        ConfirmedAt: now.Format(time.RFC3339),
    }
    go func() { _ = queue_publisher.PublishReturnConfirmed(context.Background(), ev) }()

    return c.JSON(http.StatusOK, echo.Map{
        "loan_id":      loan.ID,
        "returned_at":  now,
        "overdue_days": overdueDays,
        "fine_amount":  fineAmount,
    })
}

// promotionIsNews reports whether a promotion that survived the commit
// should be announced.  Someone else's promotion always is; the caller's
// own never, they are either holding the response for it or just had the
// reservation fulfilled.
func promotionIsNews(promoted *model.Reservation, userID uint64) bool {
    return promoted != nil && promoted.UserID != userID
}

// announceHoldReady publishes the promotion event after commit; shared by
// the ticket and desk handlers.
func announceHoldReady(rv *model.Reservation, book *model.Book) {
    ev := q.HoldReadyEvent{
        ReservationID: rv.ID,
        UserID:        rv.UserID,
        BookID:        rv.BookID,
        BookTitle:     book.Title,
    }
    if rv.ReadyAt != nil {
        ev.ReadyAt = rv.ReadyAt.UTC().Format(time.RFC3339)
    }
    if rv.ExpireAt != nil {
        ev.ExpireAt = rv.ExpireAt.UTC().Format(time.RFC3339)
    }
    go func() { _ = queue_publisher.PublishHoldReady(context.Background(), ev) }()
}
