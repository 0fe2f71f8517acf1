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
    "github.com/minhnq/library-lending/internal/repository"
)

// LoanHandler serves the reader's loan views and the due-date extension.
type LoanHandler struct {
    DB           *sql.DB
    Cfg          config.Config
    Users        *repository.UserRepo
    Books        *repository.BookRepo
    Loans        *repository.LoanRepo
    Reservations *repository.ReservationRepo
}

func NewLoanHandler(db *sql.DB, cfg config.Config, users *repository.UserRepo, books *repository.BookRepo,
    loans *repository.LoanRepo, rv *repository.ReservationRepo) *LoanHandler {
    if db == nil || users == nil || books == nil || loans == nil || rv == nil {
        panic("nil dependency passed to NewLoanHandler")
    }
    return &LoanHandler{DB: db, Cfg: cfg, Users: users, Books: books, Loans: loans, Reservations: rv}
}

// loanView is a loan with its fine evaluated now rather than as stored.
// Closed loans keep their frozen snapshot; open loans show what returning
// at this moment would cost.
type loanView struct {
    model.Loan
    CurrentFine   int64  `json:"current_fine"`
    FineRemaining int64  `json:"fine_remaining"`
    LiveStatus    string `json:"live_fine_status"`
    Extendable    bool   `json:"extendable"`
}

func (h *LoanHandler) view(l model.Loan, now time.Time) loanView {
    p := h.Cfg.Policy
    v := loanView{Loan: l}
    if l.Open() {
        v.CurrentFine = fine.Compute(l.DueAt, now, l.Quantity, p.FinePerDay, p.FreeDays)
    } else {
        v.CurrentFine = l.FineAmount
    }
    v.FineRemaining = fine.Remaining(v.CurrentFine, l.FinePaidTotal)
    v.LiveStatus = fine.Status(v.CurrentFine, l.FinePaidTotal)
    v.Extendable = l.Open() && l.DueAt != nil &&
        l.DueAt.Sub(now) <= time.Duration(p.ExtendThresholdDays)*24*time.Hour
    return v
}

// List handles GET /v1/loans.
func (h *LoanHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    loans, err := h.Loans.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load loans"})
    }
    now := time.Now().UTC()
    items := make([]loanView, 0, len(loans))
    for _, l := range loans {
        items = append(items, h.view(l, now))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/loans/:id.
func (h *LoanHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
    }
    l, err := h.Loans.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrLoanNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load loan"})
    }
    if l.UserID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, echo.Map{"item": h.view(*l, time.Now().UTC())})
}

type extendReq struct {
    Days int `json:"days"`
}

// Extend handles POST /v1/loans/:id/extend.  A loan can be extended only
// near its due date, by at most the tier allowance, and never while other
// readers are queued on an out-of-stock title.
func (h *LoanHandler) Extend(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
    }
    var req extendReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx := c.Request().Context()
    now := time.Now().UTC()
    p := h.Cfg.Policy

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

    loan, err := h.Loans.GetByIDForUpdateTx(ctx, tx, id)
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
    if loan.DueAt == nil {
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrNotExtendable.Error()})
    }
    if loan.DueAt.Sub(now) > time.Duration(p.ExtendThresholdDays)*24*time.Hour {
        return c.JSON(http.StatusConflict, echo.Map{
            "error":          repository.ErrNotExtendable.Error(),
            "reason":         "too early to extend",
            "threshold_days": p.ExtendThresholdDays,
        })
    }

    u, err := h.Users.GetByIDTx(ctx, tx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    maxExtend := extendMaxFor(p, u.IsMember(now))
    if req.Days == 0 {
        req.Days = maxExtend
    }
    if req.Days < 1 || req.Days > maxExtend {
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":    "days out of range for this account",
            "max_days": maxExtend,
        })
    }

    book, err := h.Books.GetByIDForUpdateTx(ctx, tx, loan.BookID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load book failed"})
    }
    if book.AvailableQuantity == 0 {
        depth, err := h.Reservations.QueueDepthTx(ctx, tx, book.ID)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation check failed"})
        }
        if depth > 0 {
            return c.JSON(http.StatusConflict, echo.Map{
                "error":  repository.ErrNotExtendable.Error(),
                "reason": "other readers are waiting for this title",
            })
        }
    }

    newDue := loan.DueAt.Add(time.Duration(req.Days) * 24 * time.Hour)
    if err := h.Loans.UpdateDueDateTx(ctx, tx, loan.ID, newDue); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "extend failed"})
    }
    // Moving the due date changes the live fine; refresh the snapshot so
    // listings do not show a stale amount.
    fineAmount := fine.Compute(&newDue, now, loan.Quantity, p.FinePerDay, p.FreeDays)
    overdueDays := fine.OverdueDays(&newDue, now, p.FreeDays)
    if err := h.Loans.UpdateFineSnapshotTx(ctx, tx, loan.ID, overdueDays, fineAmount,
        fine.Status(fineAmount, loan.FinePaidTotal)); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fine update failed"})
    }

    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    return c.JSON(http.StatusOK, echo.Map{
        "loan_id": loan.ID,
        "due_at":  newDue,
    })
}
