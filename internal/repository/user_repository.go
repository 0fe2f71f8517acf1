package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/minhnq/library-lending/internal/model"
)

// UserRepo provides data access to the users table.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo constructs a UserRepo with the given DB handle.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, role, member_until, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
    var u model.User
    err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.MemberUntil, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrUserNotFound
        }
        return nil, err
    }
    return &u, nil
}

// Create inserts a new user.  On success the user's ID is populated.
// A duplicate email returns ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
    const q = `INSERT INTO users (email, password_hash, role, is_active)
               VALUES (?, ?, ?, TRUE)`
    res, err := r.db.ExecContext(ctx, q, strings.ToLower(u.Email), u.PasswordHash, u.Role)
    if err != nil {
        // MySQL duplicate key error 1062 on the unique email index.
        if strings.Contains(err.Error(), "1062") {
            return ErrEmailExists
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    u.ID = uint64(id)
    return nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
    const q = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
    return scanUser(r.db.QueryRowContext(ctx, q, strings.ToLower(email)))
}

// GetByID retrieves a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
    const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
    return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx retrieves a user inside a transaction.  Membership and cap
// checks read through this so they see any earlier writes in the same tx.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
    const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
    return scanUser(tx.QueryRowContext(ctx, q, id))
}

// ExtendMembershipTx pushes the user's member_until forward by months whole
// months.  The extension is additive: it starts from member_until when that
// is still in the future, otherwise from now.  Returns the new expiry.
func (r *UserRepo) ExtendMembershipTx(ctx context.Context, tx *sql.Tx, userID uint64, months int, now time.Time) (time.Time, error) {
    u, err := r.GetByIDTx(ctx, tx, userID)
    if err != nil {
        return time.Time{}, err
    }
    base := now.UTC()
    if u.MemberUntil != nil && u.MemberUntil.After(base) {
        base = u.MemberUntil.UTC()
    }
    until := base.AddDate(0, months, 0)
    const q = `UPDATE users SET member_until = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
    if _, err := tx.ExecContext(ctx, q, until.Format("2006-01-02 15:04:05"), userID); err != nil {
        return time.Time{}, err
    }
    return until, nil
}
