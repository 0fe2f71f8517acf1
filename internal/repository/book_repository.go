package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/minhnq/library-lending/internal/model"
)

// BookRepo provides data access to the books table.  Stock lives in the
// available_quantity column and is mutated only through the conditional
// updates below, so a decrement can never oversell and an increment can
// never exceed total_quantity.
type BookRepo struct {
    db *sql.DB
}

// NewBookRepo constructs a BookRepo with the given DB handle.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookColumns = `id, title, author, total_quantity, available_quantity, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
    var b model.Book
    err := row.Scan(&b.ID, &b.Title, &b.Author, &b.TotalQuantity, &b.AvailableQuantity, &b.CreatedAt, &b.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrBookNotFound
        }
        return nil, err
    }
    return &b, nil
}

// Create inserts a new title with all copies available.  On success the
// book's ID is populated.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
    const q = `INSERT INTO books (title, author, total_quantity, available_quantity)
               VALUES (?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, b.Title, b.Author, b.TotalQuantity, b.TotalQuantity)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    b.AvailableQuantity = b.TotalQuantity
    return nil
}

// List retrieves all titles ordered by title.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
    const q = `SELECT ` + bookColumns + ` FROM books ORDER BY title, id`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Book
    for rows.Next() {
        var b model.Book
        if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.TotalQuantity, &b.AvailableQuantity, &b.CreatedAt, &b.UpdatedAt); err != nil {
            return nil, err
        }
        result = append(result, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// GetByID retrieves a title by its id.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
    const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
    return scanBook(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx retrieves a title under a row lock.  The book row is
// the serialization point for the hold gate: every path that reads the
// availability count to make a decision must lock it first.
func (r *BookRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
    const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ? FOR UPDATE`
    return scanBook(tx.QueryRowContext(ctx, q, id))
}

// DecrementAvailableTx takes qty copies off the shelf.  The WHERE guard
// makes the decrement conditional; zero rows affected means there were not
// enough copies, reported as ErrInsufficientStock.
func (r *BookRepo) DecrementAvailableTx(ctx context.Context, tx *sql.Tx, bookID uint64, qty int) error {
    const q = `UPDATE books
               SET available_quantity = available_quantity - ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND available_quantity >= ?`
    res, err := tx.ExecContext(ctx, q, qty, bookID, qty)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrInsufficientStock
    }
    return nil
}

// IncrementAvailableTx puts qty copies back on the shelf, never past
// total_quantity.  Zero rows affected means the invariant would break,
// which indicates corrupted stock accounting, reported as ErrConflict.
func (r *BookRepo) IncrementAvailableTx(ctx context.Context, tx *sql.Tx, bookID uint64, qty int) error {
    const q = `UPDATE books
               SET available_quantity = available_quantity + ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND available_quantity + ? <= total_quantity`
    res, err := tx.ExecContext(ctx, q, qty, bookID, qty)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrConflict
    }
    return nil
}

// Update changes a title's metadata and total stock.  Shrinking the total
// below the copies currently out is rejected by the guard.
func (r *BookRepo) Update(ctx context.Context, id uint64, title, author string, total int) error {
    const q = `UPDATE books
               SET title = ?, author = ?,
                   available_quantity = available_quantity + (? - total_quantity),
                   total_quantity = ?,
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND available_quantity + (? - total_quantity) >= 0`
    res, err := r.db.ExecContext(ctx, q, title, author, total, total, id, total)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrConflict
    }
    return nil
}
