package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amarati/amarati-core/internal/infrastructure/database"
)

// Default OTP settings.
const (
	DefaultOTPLength = 6
	DefaultOTPTTL    = 5 * time.Minute
)

var tenDigits = big.NewInt(10)

// GenerateOTP returns a numeric code of the given length with each digit
// drawn uniformly from a cryptographically secure source.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}

	var b strings.Builder
	b.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, tenDigits)
		if err != nil {
			return "", fmt.Errorf("generating otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// OTPRepository persists one-time codes keyed by (user, purpose).
type OTPRepository interface {
	Create(ctx context.Context, userID, code string, purpose Purpose, ttl time.Duration) (*OTPCode, error)
	LatestValid(ctx context.Context, userID string, purpose Purpose) (*OTPCode, error)
	MarkUsed(ctx context.Context, id string) error
	InvalidateAll(ctx context.Context, userID string, purpose Purpose) error
	Replace(ctx context.Context, userID, code string, purpose Purpose, ttl time.Duration) (*OTPCode, error)
}

// SQLiteOTPRepository implements OTPRepository using SQLite.
type SQLiteOTPRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOTPRepository creates a new SQLite-backed OTP repository.
func NewOTPRepository(db *sql.DB) *SQLiteOTPRepository {
	return &SQLiteOTPRepository{db: db, now: time.Now}
}

// SetClock replaces the repository's time source. Intended for tests.
func (r *SQLiteOTPRepository) SetClock(now func() time.Time) {
	r.now = now
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create stores a new unused code expiring ttl from now.
func (r *SQLiteOTPRepository) Create(ctx context.Context, userID, code string, purpose Purpose, ttl time.Duration) (*OTPCode, error) {
	return r.create(ctx, r.db, userID, code, purpose, ttl)
}

func (r *SQLiteOTPRepository) create(ctx context.Context, ex execer, userID, code string, purpose Purpose, ttl time.Duration) (*OTPCode, error) {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}

	now := r.now().UTC()
	otp := &OTPCode{
		ID:        "otp-" + uuid.NewString(),
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := ex.ExecContext(ctx,
		`INSERT INTO otp_codes (id, user_id, code, purpose, is_used, expires_at, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		otp.ID, otp.UserID, otp.Code, string(otp.Purpose),
		database.FormatTime(otp.ExpiresAt), database.FormatTime(otp.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otp: %w", err)
	}

	return otp, nil
}

// LatestValid returns the most recently created unused code for the pair,
// or ErrOTPNotFound. Expiry is not checked here; callers test IsExpired.
func (r *SQLiteOTPRepository) LatestValid(ctx context.Context, userID string, purpose Purpose) (*OTPCode, error) {
	var o OTPCode
	var p string
	var isUsed int
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, code, purpose, is_used, expires_at, created_at
		 FROM otp_codes
		 WHERE user_id = ? AND purpose = ? AND is_used = 0
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT 1`, userID, string(purpose),
	).Scan(&o.ID, &o.UserID, &o.Code, &p, &isUsed, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("getting latest otp: %w", err)
	}

	o.Purpose = Purpose(p)
	o.IsUsed = isUsed != 0
	if o.ExpiresAt, err = database.ParseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("reading otp expiry: %w", err)
	}
	if o.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("reading otp creation time: %w", err)
	}

	return &o, nil
}

// MarkUsed flips is_used on a single code. Marking an already used code
// is not an error.
func (r *SQLiteOTPRepository) MarkUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE otp_codes SET is_used = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking otp used: %w", err)
	}
	return nil
}

// InvalidateAll marks every unused code for the pair as used.
func (r *SQLiteOTPRepository) InvalidateAll(ctx context.Context, userID string, purpose Purpose) error {
	return invalidateAll(ctx, r.db, userID, purpose)
}

func invalidateAll(ctx context.Context, ex execer, userID string, purpose Purpose) error {
	_, err := ex.ExecContext(ctx,
		"UPDATE otp_codes SET is_used = 1 WHERE user_id = ? AND purpose = ? AND is_used = 0",
		userID, string(purpose))
	if err != nil {
		return fmt.Errorf("invalidating otps: %w", err)
	}
	return nil
}

// Replace invalidates outstanding codes for the pair and stores a new one
// in a single transaction, leaving exactly one valid code.
func (r *SQLiteOTPRepository) Replace(ctx context.Context, userID, code string, purpose Purpose, ttl time.Duration) (*OTPCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning otp transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if err := invalidateAll(ctx, tx, userID, purpose); err != nil {
		return nil, err
	}

	otp, err := r.create(ctx, tx, userID, code, purpose, ttl)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing otp replacement: %w", err)
	}
	return otp, nil
}
