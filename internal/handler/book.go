package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/model"
    "github.com/minhnq/library-lending/internal/repository"
)

// BookHandler serves the public catalog and the staff title management
// endpoints.
type BookHandler struct {
    Books *repository.BookRepo
}

func NewBookHandler(b *repository.BookRepo) *BookHandler {
    if b == nil {
        panic("nil repository passed to NewBookHandler")
    }
    return &BookHandler{Books: b}
}

type bookReq struct {
    Title         string `json:"title"`
    Author        string `json:"author"`
    TotalQuantity int    `json:"total_quantity"`
}

// List handles GET /v1/books.  Public, cacheable.
func (h *BookHandler) List(c echo.Context) error {
    books, err := h.Books.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load books"})
    }
    if books == nil {
        books = []model.Book{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": books})
}

// Get handles GET /v1/books/:id.
func (h *BookHandler) Get(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    b, err := h.Books.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrBookNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load book"})
    }
    return c.JSON(http.StatusOK, echo.Map{"item": b})
}

// Create handles POST /v1/admin/books (staff only).
func (h *BookHandler) Create(c echo.Context) error {
    var req bookReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Title = strings.TrimSpace(req.Title)
    req.Author = strings.TrimSpace(req.Author)
    if req.Title == "" || req.TotalQuantity < 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and a positive total_quantity are required"})
    }

    b := &model.Book{Title: req.Title, Author: req.Author, TotalQuantity: req.TotalQuantity}
    if err := h.Books.Create(c.Request().Context(), b); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create book failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"item": b})
}

// Update handles PUT /v1/admin/books/:id (staff only).  Shrinking the
// total below the copies currently out is rejected with 409.
func (h *BookHandler) Update(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    var req bookReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Title = strings.TrimSpace(req.Title)
    if req.Title == "" || req.TotalQuantity < 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and a positive total_quantity are required"})
    }

    if err := h.Books.Update(c.Request().Context(), id, req.Title, strings.TrimSpace(req.Author), req.TotalQuantity); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "total below copies currently on loan"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update book failed"})
    }
    b, err := h.Books.GetByID(c.Request().Context(), id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load book"})
    }
    return c.JSON(http.StatusOK, echo.Map{"item": b})
}
