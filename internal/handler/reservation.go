package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/model"
    "github.com/minhnq/library-lending/internal/repository"
)

// ReservationHandler serves the reader's hold queue endpoints.
type ReservationHandler struct {
    DB           *sql.DB
    Books        *repository.BookRepo
    Reservations *repository.ReservationRepo
}

func NewReservationHandler(db *sql.DB, books *repository.BookRepo, rv *repository.ReservationRepo) *ReservationHandler {
    if db == nil || books == nil || rv == nil {
        panic("nil dependency passed to NewReservationHandler")
    }
    return &ReservationHandler{DB: db, Books: books, Reservations: rv}
}

type reservationReq struct {
    BookID uint64 `json:"book_id"`
}

// Create handles POST /v1/reservations.  Holds exist only for out-of-stock
// titles; while copies sit on the shelf the reader simply borrows one.
func (h *ReservationHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req reservationReq
    if err := c.Bind(&req); err != nil || req.BookID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "book_id is required"})
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

    book, err := h.Books.GetByIDForUpdateTx(ctx, tx, req.BookID)
    if err != nil {
        if errors.Is(err, repository.ErrBookNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load book failed"})
    }
    if book.AvailableQuantity > 0 {
        return c.JSON(http.StatusConflict, echo.Map{
            "error":     repository.ErrBookAvailable.Error(),
            "available": book.AvailableQuantity,
        })
    }
    live, err := h.Reservations.HasLiveTx(ctx, tx, userID, book.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation check failed"})
    }
    if live {
        return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrHoldExists.Error()})
    }

    rv := &model.Reservation{UserID: userID, BookID: book.ID, CreatedAt: now}
    if err := h.Reservations.CreateTx(ctx, tx, rv); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    return c.JSON(http.StatusCreated, echo.Map{"item": rv})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    err = h.Reservations.CancelOwn(c.Request().Context(), id, userID, time.Now().UTC())
    switch {
    case err == nil:
        return c.NoContent(http.StatusNoContent)
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already settled"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel reservation failed"})
    }
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Reservations.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
    }
    if items == nil {
        items = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Ready handles GET /v1/reservations/ready, the pickup notices.
func (h *ReservationHandler) Ready(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Reservations.ListReadyByUser(c.Request().Context(), userID, time.Now().UTC())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
    }
    if items == nil {
        items = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
