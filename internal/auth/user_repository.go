package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amarati/amarati-core/internal/infrastructure/database"
)

// UserFilter narrows a user listing. Zero values mean "no filter".
type UserFilter struct {
	Role     Role
	IsActive *bool
	Limit    int
	Offset   int
}

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	Deactivate(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context, role Role) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, now: time.Now}
}

const userColumns = "id, email, phone, full_name, password_hash, role, is_active, is_verified, avatar_url, created_at, updated_at"

// Create inserts a new user account. The ID is generated if empty and the
// email is normalised before storage.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()
	}
	user.Email = NormalizeEmail(user.Email)

	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	ts := database.FormatTime(now)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, nullString(user.Phone), user.FullName,
		user.PasswordHash, string(user.Role), boolToInt(user.IsActive), boolToInt(user.IsVerified),
		nullString(user.AvatarURL), ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "phone") {
				return ErrPhoneExists
			}
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email))
}

// GetByPhone retrieves a user by phone number.
func (r *SQLiteUserRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE phone = ?", phone)
}

// List returns one page of users matching filter, ordered by creation
// date, plus the total number of matches.
func (r *SQLiteUserRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	var where []string
	var args []any

	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolToInt(*filter.IsActive))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := "SELECT " + userColumns + " FROM users" + clause + " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}

	return users, total, nil
}

// Update modifies a user's mutable fields (full_name, phone, avatar_url,
// role, is_active, is_verified).
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = r.now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, phone = ?, avatar_url = ?, role = ?, is_active = ?, is_verified = ?, updated_at = ?
		 WHERE id = ?`,
		user.FullName, nullString(user.Phone), nullString(user.AvatarURL), string(user.Role),
		boolToInt(user.IsActive), boolToInt(user.IsVerified), database.FormatTime(user.UpdatedAt), user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPhoneExists
		}
		return fmt.Errorf("updating user: %w", err)
	}

	return requireRow(result)
}

// UpdatePassword changes a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, database.FormatTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(result)
}

// SetVerified sets the verification flag.
func (r *SQLiteUserRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_verified = ?, updated_at = ? WHERE id = ?",
		boolToInt(verified), database.FormatTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("setting verified: %w", err)
	}
	return requireRow(result)
}

// Deactivate clears is_active. The row is kept.
func (r *SQLiteUserRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?",
		database.FormatTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	return requireRow(result)
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// CountByRole returns the number of accounts holding role.
func (r *SQLiteUserRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = ?", string(role)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users by role: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var phone, avatarURL sql.NullString
	var role string
	var isActive, isVerified int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Email, &phone, &u.FullName,
		&u.PasswordHash, &role, &isActive, &isVerified,
		&avatarURL, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.IsActive = isActive != 0
	u.IsVerified = isVerified != 0
	u.Phone = phone.String
	u.AvatarURL = avatarURL.String

	if u.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	if u.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	return &u, nil
}

// Helper functions.

func requireRow(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
