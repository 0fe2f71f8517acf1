package model

import "time"

// Role names stored in users.role.  ADMIN accounts confirm tickets at the
// desk; USER accounts borrow, reserve and pay.
const (
    RoleAdmin = "ADMIN"
    RoleUser  = "USER"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  Membership
// is not a role: it is the MemberUntil timestamp, extended additively by
// successful membership payments, and an account counts as a member only
// while that timestamp lies in the future.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or USER.
//  MemberUntil  – end of the paid membership period (null = never a member).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64     // users.id
    Email        string     // users.email
    PasswordHash string     // users.password_hash
    Role         string     // users.role
    MemberUntil  *time.Time // users.member_until (nullable)
    IsActive     bool       // users.is_active
    CreatedAt    time.Time  // users.created_at
    UpdatedAt    time.Time  // users.updated_at
}

// IsMember reports whether the user's paid membership is active at the
// given instant.  Callers pass the same reference time they use for the
// rest of the operation so cap and day limits stay consistent.
func (u *User) IsMember(now time.Time) bool {
    return u.MemberUntil != nil && u.MemberUntil.After(now)
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
